// Package validation 只根据渲染像素判定场景是否合格。
//
// 每个产物依次检查：能否读取、是否纯色（三通道标准差均值）、各语义类别
// （RGB 闭区间盒）像素占比、类别总占比，以及结构像素是否落在同一行水体
// 横向范围内。所有产物都会被检查，Verdict 汇总每个失败产物的原因。
package validation
