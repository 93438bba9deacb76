package feedback

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/sceneforge/agent/validation"
)

// Signature 诊断文本中的一种已知失败特征及其纠正指令。
type Signature struct {
	Name        string
	Pattern     *regexp.Regexp
	Instruction string
}

// SignatureSpec 配置文件中的签名定义，Pattern 为 RE2 正则。
type SignatureSpec struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Instruction string `yaml:"instruction"`
}

// Compile 编译为 Signature
func (s SignatureSpec) Compile() (Signature, error) {
	if s.Name == "" || s.Instruction == "" {
		return Signature{}, fmt.Errorf("feedback: signature needs a name and an instruction")
	}
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return Signature{}, fmt.Errorf("feedback: signature %q: %w", s.Name, err)
	}
	return Signature{Name: s.Name, Pattern: re, Instruction: s.Instruction}, nil
}

// DefaultSignatures 引擎 Python 运行时常见的失败特征。顺序即纠正指令的输出顺序。
func DefaultSignatures() []Signature {
	return []Signature{
		{
			Name:        "indentation",
			Pattern:     regexp.MustCompile(`IndentationError|unexpected indent|unindent does not match`),
			Instruction: "Fix the indentation problems: no superfluous indentation and no missing indented block.",
		},
		{
			Name:        "expected-block",
			Pattern:     regexp.MustCompile(`expected an indented block`),
			Instruction: "Add the expected indented blocks after `for`, `if` and `def` statements.",
		},
		{
			Name:        "use-before-definition",
			Pattern:     regexp.MustCompile(`referenced before assignment|NameError: name '[^']+' is not defined`),
			Instruction: "Make sure every variable is defined before it is used.",
		},
		{
			Name:        "unsupported-module",
			Pattern:     regexp.MustCompile(`No module named|ModuleNotFoundError`),
			Instruction: "Only use the modules bundled with Blender, such as `bpy` and `mathutils`.",
		},
		{
			Name:        "syntax",
			Pattern:     regexp.MustCompile(`SyntaxError`),
			Instruction: "Return syntactically valid Python only, without Markdown or explanations.",
		},
		{
			Name:        "missing-attribute",
			Pattern:     regexp.MustCompile(`AttributeError: .*has no attribute`),
			Instruction: "Only use attributes and operators that exist in the Blender 4 Python API.",
		},
		{
			Name:        "missing-key",
			Pattern:     regexp.MustCompile(`KeyError: .*not found`),
			Instruction: "Only look up node inputs and collection items by names that exist in Blender 4.",
		},
		{
			Name:        "context",
			Pattern:     regexp.MustCompile(`poll\(\) failed|context is incorrect`),
			Instruction: "Do not call operators that depend on the active object or the UI context; work through `bpy.data` instead.",
		},
		{
			Name:        "timeout",
			Pattern:     regexp.MustCompile(`execution timed out`),
			Instruction: "Keep the scene light enough to render quickly: fewer objects, a lower resolution and fewer samples.",
		},
	}
}

// reasonInstructions 校验失败原因 → 纠正指令
var reasonInstructions = map[string]string{
	validation.ReasonMissingArtifact:    "Render with every camera and save each image with `bpy.ops.render.render(write_still=True)` under the agreed file names in the 'renders' folder next to the script.",
	validation.ReasonUnreadableArtifact: "Save every render as a PNG image.",
	validation.ReasonUniformImage:       "The render is a single flat color: point each camera at the scene and add a light.",
	validation.ReasonLowDiversity:       "The render lacks the requested colors: apply the requested materials to the ground, the river and the trees.",
	validation.ReasonObjectOverlap:      "Trees overlap the river: place every tree outside the river footprint.",
	validation.InsufficientReason(validation.ClassGround): "The green ground is missing or too small: make the ground plane large, green and visible to every camera.",
	validation.InsufficientReason(validation.ClassWater):  "The blue river is missing or too small: make the river plane blue and visible to every camera.",
	validation.InsufficientReason(validation.ClassTrunk):  "Tree trunks are not visible: give every trunk a dark brown material and keep the trees in view.",
}

// reasonInstruction 未登记的 insufficient-<class> 生成通用指令
func reasonInstruction(reason string) string {
	if s, ok := reasonInstructions[reason]; ok {
		return s
	}
	if class, ok := strings.CutPrefix(reason, "insufficient-"); ok {
		return fmt.Sprintf("Not enough %s is visible in the render: give it the requested color and keep it in view of every camera.", class)
	}
	return ""
}
