package scene

// DefaultSystemInstructions 发给生成器的系统指令。
// 禁止依赖"当前选中/激活对象"，对应 sanitizer 的 active-object 改写规则。
const DefaultSystemInstructions = `GOAL: Generate a Python script for Blender 4.4 that builds a 3D scene from the user request.
The script is executed headless inside Blender to produce the scene and its renders.

GENERAL GUIDELINES:
- Generate ONLY executable Python code: no comments, no explanations, no Markdown fences.
- Use the bpy library.
- Keep the code modular with reusable functions:
    - primitive helpers (add_plane, add_cube, add_cylinder, ...)
    - higher-level objects (add_tree, add_river, ...) composed from the primitives
    - group complex objects into their own collections.

IMPORTANT RULES:
- NEVER use bpy.context.object or bpy.context.active_object.
    - Capture created objects with obj = bpy.data.objects[-1] right after creation,
      or name them and retrieve them with bpy.data.objects.get("MyObject").
    - Never rely on the current selection or the active object.
- Name every object logically (ground, river, tree_1, trunk_1, ...).
- Create at least one light with an appropriate energy and position.
- Apply materials or colors so the scene is visually coherent.
- Keep realistic proportions and placements.
- Do not add superfluous indentation outside for/if/def blocks.

CAMERA & RENDERING:
- For each camera: set it as the active camera, set scene.render.filepath, then call
  bpy.ops.render.render(write_still=True).
- Save renders in a folder named 'renders' created next to the script file
  (os.path.dirname(os.path.abspath(__file__))).

CONSTRAINTS:
- The script must run in Blender 4.4 without manual corrections.
- The script is self-contained: it creates all data, objects, materials, lights and cameras.
- If the request lacks detail, assume a rich natural environment.
`

// DefaultDescription 内置自然场景描述
const DefaultDescription = `Create a Python script for Blender 4.4 that generates a coherent natural scene:
- A green ground (plane of 50x50 units, color RGBA 0.1, 0.7, 0.1, 1) centered at the origin (0, 0, 0).
- A rectangular river (blue plane RGBA 0.0, 0.3, 0.7, 0.8), 4 units wide (X axis) and 50 units long (Y axis),
  slightly raised (Z=0.01) at the center of the ground (location (0, 0, 0.01)). Give it real rectangular
  geometry, not a visual scale.
- A forest: about fifteen trees spread randomly over the ground while avoiding the river
  (more than 2 units away from the center on X). Each tree has:
    - a trunk (cone, dark brown RGBA 0.05, 0.03, 0.0, 1)
    - foliage (green sphere RGBA 0.0, 0.5, 0.0, 1) above the trunk
- A 'SUN' light placed high above the scene.
- Three cameras, activated one after the other, with a PNG render for each:
    1. 3/4 view from the north-west corner (location (-20, -20, 20), rotated toward the scene)
    2. Top-down view (location (0, 0, 80), looking down)
    3. Ground-level view centered on the river (location (0, -20, 1.5), looking toward (0, 0, 1))
`
