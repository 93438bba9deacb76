// Package sanitizer 把代码生成器的原始输出清洗为可以交给引擎执行的程序。
//
// 两层处理，按固定顺序执行一张规则表：
//
//	strip                       去围栏、去说明文字、去注释与空行、截断入口块之后的文本
//	ambient-object              bpy.context.object / active_object → bpy.data.objects[-1]
//	renamed-identifiers         BLENDER_EEVEE → BLENDER_EEVEE_NEXT，Principled BSDF 新输入名
//	unsupported-material-inputs 删除引用 Specular / Roughness 输入的整行
//	output-path                 渲染输出固定到程序旁的子目录，缺失时补齐赋值与渲染调用
//	defensive-declarations      被引用却从未赋值的簿记变量补空列表声明
//
// 整个过程是纯函数：Sanitize(Sanitize(x)) == Sanitize(x)，任何规则失败都退化为原样通过。
package sanitizer
