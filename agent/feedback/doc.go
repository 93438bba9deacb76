// Package feedback 把引擎诊断与校验结论映射为下一次提示中的纠正指令。
//
// 诊断文本按一张静态签名表（正则 → 指令）匹配，每个命中的签名追加一句
// 纠正；诊断为空而校验拒绝时追加校验原因。扩展行为只需要增加表项。
package feedback
