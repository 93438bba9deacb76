package sanitizer

import (
	"fmt"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// (a) 当前选中/激活对象 → 显式句柄
// ---------------------------------------------------------------------------

var ambientObject = regexp.MustCompile(`\bbpy\.context\.(?:active_object|object|selected_objects\[0\])`)

const lastCreated = "bpy.data.objects[-1]"

var assignmentAhead = regexp.MustCompile(`^[ \t]*=(?:[^=]|$)`)

// rewriteAmbientObject 把读取 bpy.context.object / active_object / selected_objects[0]
// 的表达式改写为 bpy.data.objects[-1]。赋值目标保持不变。
func rewriteAmbientObject(src string) string {
	lines := splitLines(src)
	for i, line := range lines {
		locs := ambientObject.FindAllStringIndex(line, -1)
		if len(locs) == 0 {
			continue
		}
		var b strings.Builder
		prev := 0
		for _, loc := range locs {
			b.WriteString(line[prev:loc[0]])
			if loc[1] < len(line) && isWordByte(line[loc[1]]) {
				// bpy.context.objects 之类的更长标识符
				b.WriteString(line[loc[0]:loc[1]])
			} else if assignmentAhead.MatchString(line[loc[1]:]) {
				b.WriteString(line[loc[0]:loc[1]])
			} else {
				b.WriteString(lastCreated)
			}
			prev = loc[1]
		}
		b.WriteString(line[prev:])
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// ---------------------------------------------------------------------------
// (b) 已改名的引擎标识
// ---------------------------------------------------------------------------

// renamedIdentifiers Blender 4.x 中改名的渲染引擎与 Principled BSDF 输入。
// 每个旧值都带完整引号，替换结果不会再次匹配。
var renamedIdentifiers = buildRenames(map[string]string{
	"BLENDER_EEVEE": "BLENDER_EEVEE_NEXT",
}, map[string]string{
	"Emission":     "Emission Color",
	"Transmission": "Transmission Weight",
	"Subsurface":   "Subsurface Weight",
	"Clearcoat":    "Coat Weight",
	"Sheen":        "Sheen Weight",
})

func buildRenames(literals, inputs map[string]string) *strings.Replacer {
	var pairs []string
	for _, q := range []string{"'", `"`} {
		for from, to := range literals {
			pairs = append(pairs, q+from+q, q+to+q)
		}
		for from, to := range inputs {
			pairs = append(pairs,
				"inputs["+q+from+q+"]", "inputs["+q+to+q+"]",
				"inputs.get("+q+from+q, "inputs.get("+q+to+q,
			)
		}
	}
	return strings.NewReplacer(pairs...)
}

func renameIdentifiers(src string) string {
	return renamedIdentifiers.Replace(src)
}

// ---------------------------------------------------------------------------
// (c) 不受支持的材质通道
// ---------------------------------------------------------------------------

var unsupportedInput = regexp.MustCompile(`inputs(?:\[|\.get\()[ \t]*['"](?:Specular|Roughness)['"]`)

// dropUnsupportedInputs 删除引用不受支持材质通道的整行。
// 删除后若块体为空则补一个 pass。
func dropUnsupportedInputs(src string) string {
	lines := splitLines(src)
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if !unsupportedInput.MatchString(line) {
			out = append(out, line)
			continue
		}
		if len(out) == 0 {
			continue
		}
		prev := out[len(out)-1]
		if !strings.HasSuffix(prev, ":") {
			continue
		}
		next := nextKept(lines[i+1:])
		if next == "" || indentWidth(next) <= indentWidth(prev) {
			indent := indentOf(line)
			if indentWidth(line) <= indentWidth(prev) {
				indent = indentOf(prev) + "    "
			}
			out = append(out, indent+"pass")
		}
	}
	return strings.Join(out, "\n")
}

func nextKept(rest []string) string {
	for _, line := range rest {
		if isBlank(line) || unsupportedInput.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

// ---------------------------------------------------------------------------
// (e) 防御性声明
// ---------------------------------------------------------------------------

type declaration struct {
	name       string
	referenced *regexp.Regexp
	assigned   []*regexp.Regexp
}

func newDeclaration(name string) declaration {
	q := regexp.QuoteMeta(name)
	return declaration{
		name:       name,
		referenced: regexp.MustCompile(`\b` + q + `\b`),
		assigned: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^[ \t]*(?:[\w.\[\]]+[ \t]*,[ \t]*)*` + q + `[ \t]*(?:,[ \t]*[\w.\[\]]+[ \t]*)*(?::[^=\n]+)?[-+*/|&]?=(?:[^=]|$)`),
			regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?for[ \t]+[\w \t,()]*\b` + q + `\b[\w \t,()]*[ \t]in[ \t]`),
			regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?def[ \t]+\w+[ \t]*\([^)]*\b` + q + `\b`),
			regexp.MustCompile(`\bas[ \t]+` + q + `\b`),
			regexp.MustCompile(`(?m)^[ \t]*global[ \t]+[\w \t,]*\b` + q + `\b`),
		},
	}
}

func (d declaration) needed(src string) bool {
	if !d.referenced.MatchString(src) {
		return false
	}
	for _, re := range d.assigned {
		if re.MatchString(src) {
			return false
		}
	}
	return true
}

// declareDefensively 为被引用却从未赋值的簿记变量补一个空列表声明，
// 位置在输出目录头之后（没有头时在 import bpy 之后）。
func declareDefensively(src string, decls []declaration) string {
	var missing []string
	for _, d := range decls {
		if d.needed(src) {
			missing = append(missing, fmt.Sprintf("%s = []", d.name))
		}
	}
	if len(missing) == 0 {
		return src
	}

	lines := splitLines(src)
	at := 0
	for i, line := range lines {
		if line == headerMakedirs {
			at = i + 1
			break
		}
		if line == "import bpy" && at == 0 {
			at = i + 1
		}
	}
	out := make([]string, 0, len(lines)+len(missing))
	out = append(out, lines[:at]...)
	out = append(out, missing...)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n")
}
