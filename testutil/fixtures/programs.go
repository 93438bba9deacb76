package fixtures

// ValidProgram 一段已经规范化的生成程序：没有注释、没有围栏、显式对象句柄。
const ValidProgram = `import bpy
import math
def add_plane(name, size, location, rgba):
    bpy.ops.mesh.primitive_plane_add(size=size, location=location)
    obj = bpy.data.objects[-1]
    obj.name = name
    mat = bpy.data.materials.new(name + "_mat")
    mat.use_nodes = True
    mat.node_tree.nodes["Principled BSDF"].inputs["Base Color"].default_value = rgba
    obj.data.materials.append(mat)
    return obj
def add_tree(i, x, y):
    bpy.ops.mesh.primitive_cone_add(radius1=0.3, depth=2, location=(x, y, 1))
    trunk = bpy.data.objects[-1]
    trunk.name = "trunk_%d" % i
    bpy.ops.mesh.primitive_uv_sphere_add(radius=1, location=(x, y, 2.5))
    bpy.data.objects[-1].name = "foliage_%d" % i
ground = add_plane("ground", 50, (0, 0, 0), (0.1, 0.7, 0.1, 1))
river = add_plane("river", 1, (0, 0, 0.01), (0.0, 0.3, 0.7, 0.8))
river.scale = (4, 50, 1)
for i, (x, y) in enumerate([(-6, 3), (7, -4), (-9, -8)]):
    add_tree(i + 1, x, y)
bpy.ops.object.light_add(type='SUN', location=(0, 0, 30))
bpy.data.objects[-1].name = "sun"
bpy.ops.object.camera_add(location=(-20, -20, 20), rotation=(math.radians(55), 0, math.radians(-45)))
cam = bpy.data.objects[-1]
bpy.context.scene.camera = cam
bpy.context.scene.render.engine = 'BLENDER_EEVEE'
bpy.context.scene.render.filepath = "C:/renders/render_1.png"
bpy.ops.render.render(write_still=True)
`

// RawGeneration 模型常见的"脏"输出：前置说明、Markdown 围栏、注释、
// 访问当前激活对象、过时的引擎标识、主入口之后的尾随说明。
const RawGeneration = "Here is the script you asked for:\n" +
	"```python\n" +
	"import bpy\n" +
	"# create the ground\n" +
	"bpy.ops.mesh.primitive_plane_add(size=50)\n" +
	"ground = bpy.context.active_object  # grab it\n" +
	"\n" +
	"mat = bpy.data.materials.new('g')\n" +
	"mat.node_tree.nodes['Principled BSDF'].inputs['Specular'].default_value = 0.5\n" +
	"bpy.context.scene.render.engine = 'BLENDER_EEVEE'\n" +
	"for p in positions:\n" +
	"    print(p)\n" +
	"bpy.context.scene.render.filepath = '/tmp/out.png'\n" +
	"bpy.ops.render.render()\n" +
	"```\n" +
	"This script creates a green plane and renders it.\n"
