// Package scene 定义场景描述（自然语言需求 + 产物布局）以及发给代码生成器的
// 默认系统指令和首轮提示。
//
// 产物布局是 sanitizer、执行器和校验器之间的契约：
//
//	<程序目录>/renders/render.png            Count == 1
//	<程序目录>/renders/render_1..N.png       Count > 1
package scene
