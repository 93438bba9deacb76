package sanitizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// 模型输出中常见的行，混合少量随机噪声行
var vocabulary = []string{
	"import bpy",
	"import math",
	"from mathutils import Vector",
	"```python",
	"```",
	"Here is your script:",
	"# build the scene",
	"    # nested comment",
	"",
	"   ",
	"x = 1  # trailing",
	"obj = bpy.context.active_object",
	"bpy.context.object.location = (0, 0, 1)",
	"bpy.context.object = obj",
	"bpy.context.scene.render.engine = 'BLENDER_EEVEE'",
	`bsdf.inputs["Specular"].default_value = 0.5`,
	`bsdf.inputs['Emission'].default_value = (1, 1, 1, 1)`,
	"if obj:",
	"    obj.name = 'a'",
	"    bsdf.inputs.get('Roughness')",
	"for p in positions:",
	"    print(p)",
	"def build():",
	"    return 1",
	`bpy.context.scene.render.filepath = "/tmp/render_2.png"`,
	`    scene.render.filepath = f"//out/cam_{i}.png"`,
	"scene.render.filepath = out_path",
	"scene.render.filepath = base + '_' + str(k)",
	"bpy.ops.render.render()",
	"    bpy.ops.render.render(animation=False)",
	"bpy.ops.render.render(write_still=False)",
	`if __name__ == "__main__":`,
	"    build()",
	"print('# not a comment')",
	`s = "a'b"`,
	"\tx = 2",
	"SCENE_OUTPUT_DIR = '/abs'",
	"positions = []",
}

func genProgram() *rapid.Generator[string] {
	line := rapid.OneOf(
		rapid.SampledFrom(vocabulary),
		rapid.StringMatching(`[ ]{0,4}[a-z_ =:'"#().\[\]{}0-9]{0,20}`),
	)
	return rapid.Custom(func(t *rapid.T) string {
		lines := rapid.SliceOfN(line, 0, 30).Draw(t, "lines")
		return strings.Join(lines, "\n")
	})
}

func TestProperty_Sanitize_Idempotent(t *testing.T) {
	for _, count := range []int{1, 3} {
		opts := DefaultOptions()
		opts.Layout.Count = count
		s, err := New(opts, nil)
		require.NoError(t, err)

		rapid.Check(t, func(rt *rapid.T) {
			raw := genProgram().Draw(rt, "raw")
			once := s.Sanitize(raw)
			twice := s.Sanitize(once)
			if once != twice {
				rt.Fatalf("not idempotent\n--- once ---\n%s\n--- twice ---\n%s", once, twice)
			}
		})
	}
}

func TestProperty_Sanitize_NoFencesOrComments(t *testing.T) {
	s, err := New(DefaultOptions(), nil)
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		out := s.Sanitize(genProgram().Draw(rt, "raw"))
		for _, line := range splitLines(strings.TrimSuffix(out, "\n")) {
			assert.False(rt, isFence(line), "fence line %q", line)
			assert.False(rt, isComment(line), "comment line %q", line)
			assert.False(rt, isBlank(line), "blank line in output")
			assert.Equal(rt, strings.TrimRight(line, " \t"), line, "trailing whitespace")
		}
	})
}

func TestProperty_Sanitize_OutputPathsAreCanonical(t *testing.T) {
	s, err := New(DefaultOptions(), nil)
	require.NoError(t, err)
	dirLine := newOutputPath(DefaultOptions().Layout).dirLine

	rapid.Check(t, func(rt *rapid.T) {
		out := s.Sanitize(genProgram().Draw(rt, "raw"))
		lines := splitLines(strings.TrimSuffix(out, "\n"))

		assert.Contains(rt, lines, "import bpy")
		assert.Contains(rt, lines, headerImportOS)
		assert.Contains(rt, lines, dirLine)
		assert.Contains(rt, lines, headerMakedirs)

		assignments, renders := 0, 0
		for _, line := range lines {
			if m := filepathAssign.FindStringSubmatch(line); m != nil {
				assignments++
				assert.True(rt, strings.HasPrefix(m[3], "os.path.join("+OutputDirVar+", "), "filepath %q", m[3])
			}
			if m := renderCall.FindStringSubmatch(line); m != nil {
				renders++
				assert.Contains(rt, m[2], "write_still=True")
			}
		}
		assert.GreaterOrEqual(rt, renders, 1)
		assert.GreaterOrEqual(rt, assignments, 1)
	})
}

func TestProperty_Sanitize_NeverPanics(t *testing.T) {
	s, err := New(DefaultOptions(), nil)
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		raw := rapid.String().Draw(rt, "raw")
		res := s.Apply(raw)
		assert.Empty(rt, res.Failed)
	})
}
