package sanitizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/BaSui01/sceneforge/agent/scene"
)

// OutputDirVar 生成程序中指向产物目录的变量名
const OutputDirVar = "SCENE_OUTPUT_DIR"

const (
	headerImportOS = "import os"
	headerMakedirs = "os.makedirs(" + OutputDirVar + ", exist_ok=True)"
	defaultTarget  = "bpy.context.scene.render.filepath"
)

var (
	outputDirLine   = regexp.MustCompile(`^` + OutputDirVar + `[ \t]*=`)
	filepathAssign  = regexp.MustCompile(`^([ \t]*)((?:[A-Za-z_]\w*(?:\[(?:'[^'\n]*'|"[^"\n]*"|[\w.+-]*)\])*\.)*render\.filepath)[ \t]*=[ \t]*([^=].*)$`)
	renderCall      = regexp.MustCompile(`^([ \t]*)bpy\.ops\.render\.render\((.*)\)$`)
	renderCallOpen  = regexp.MustCompile(`^[ \t]*bpy\.ops\.render\.render\(`)
	writeStillArg   = regexp.MustCompile(`\bwrite_still[ \t]*=[ \t]*[^,)]*`)
	explicitIndex   = regexp.MustCompile(`_(\d+)`)
	plainIdentifier = regexp.MustCompile(`^[A-Za-z_][\w.]*$`)

	// 动态序号的几种常见写法：f-string、str() 拼接、.format()、% 格式化
	indexPlaceholders = []*regexp.Regexp{
		regexp.MustCompile(`_\{([^{}'"\\#]+)\}`),
		regexp.MustCompile(`_['"][ \t]*\+[ \t]*str\(([^()'"\\{}#]+)\)`),
		regexp.MustCompile(`_\{\}[^'"]*['"]\.format\(([^()'"\\{}#]+)\)`),
		regexp.MustCompile(`_%[dis][^'"]*['"][ \t]*%[ \t]*\(?([\w.+\- ]+?)\)?$`),
	}
)

// outputPath 实现输出路径改写（patch layer 的 d 项）。
type outputPath struct {
	layout scene.OutputLayout

	dirLine       string
	canonicalLit  map[string]bool
	canonicalFStr *regexp.Regexp
	canonicalBase *regexp.Regexp
}

func newOutputPath(layout scene.OutputLayout) *outputPath {
	p := &outputPath{
		layout:       layout,
		dirLine:      fmt.Sprintf("%s = os.path.join(os.path.dirname(os.path.abspath(__file__)), '%s')", OutputDirVar, layout.Dir),
		canonicalLit: make(map[string]bool),
		canonicalBase: regexp.MustCompile(`^os\.path\.join\(` + OutputDirVar +
			`, os\.path\.basename\([A-Za-z_][\w.]*\)\)$`),
	}
	for _, name := range layout.Filenames() {
		p.canonicalLit[p.literal(name)] = true
	}
	if layout.Count > 1 {
		p.canonicalFStr = regexp.MustCompile(`^os\.path\.join\(` + OutputDirVar + `, f'` +
			regexp.QuoteMeta(layout.Base) + `_\{[^{}'"\\#]+\}` + regexp.QuoteMeta(layout.Ext) + `'\)$`)
	}
	return p
}

func (p *outputPath) literal(name string) string {
	return fmt.Sprintf("os.path.join(%s, '%s')", OutputDirVar, name)
}

func (p *outputPath) fstring(expr string) string {
	return fmt.Sprintf("os.path.join(%s, f'%s_{%s}%s')", OutputDirVar, p.layout.Base, strings.TrimSpace(expr), p.layout.Ext)
}

func (p *outputPath) nth(k int) string {
	if k > p.layout.Count {
		k = p.layout.Count
	}
	return p.layout.Filename(k)
}

func (p *outputPath) apply(src string) string {
	lines := nonBlank(splitLines(src))
	lines = joinRenderCalls(lines)
	lines = p.ensureHeader(lines)
	lines = p.rewriteAssignments(lines)
	lines = p.ensureRenderCall(lines)
	lines = p.insertMissingAssignments(lines)
	lines = p.forceWriteStill(lines)
	return joinLines(lines)
}

func nonBlank(lines []string) []string {
	out := lines[:0]
	for _, line := range lines {
		if !isBlank(line) {
			out = append(out, line)
		}
	}
	return out
}

// joinRenderCalls 把跨行的渲染调用合并成一行；括号到末尾仍未闭合时保持原样。
func joinRenderCalls(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		depth := parenDepth(line)
		if !renderCallOpen.MatchString(line) || depth <= 0 {
			out = append(out, line)
			continue
		}
		joined, end := line, i
		for end+1 < len(lines) && depth > 0 {
			end++
			next := strings.TrimSpace(lines[end])
			if !strings.HasSuffix(joined, "(") && !strings.HasPrefix(next, ")") {
				joined += " "
			}
			joined += next
			depth += parenDepth(next)
		}
		if depth != 0 {
			out = append(out, line)
			continue
		}
		out = append(out, joined)
		i = end
	}
	return out
}

// parenDepth 引号外左右括号数之差
func parenDepth(line string) int {
	var quote rune
	escaped := false
	depth := 0
	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote == 0 && r == '(':
			depth++
		case quote == 0 && r == ')':
			depth--
		}
	}
	return depth
}

// ensureHeader 保证 import bpy 存在，并在其后插入产物目录头。
func (p *outputPath) ensureHeader(lines []string) []string {
	hasBpy := false
	for _, line := range lines {
		if line == "import bpy" {
			hasBpy = true
			break
		}
	}
	if !hasBpy {
		lines = append([]string{"import bpy"}, lines...)
	}

	hasOS, hasMakedirs, dirAt := false, false, -1
	for i, line := range lines {
		switch {
		case line == headerImportOS:
			hasOS = true
		case line == headerMakedirs:
			hasMakedirs = true
		case outputDirLine.MatchString(line):
			lines[i] = p.dirLine
			if dirAt < 0 {
				dirAt = i
			}
		}
	}

	if dirAt >= 0 {
		// 已有目录变量：只补缺失的 import 与 makedirs
		out := make([]string, 0, len(lines)+2)
		for i, line := range lines {
			if i == dirAt && !hasOS {
				out = append(out, headerImportOS)
			}
			out = append(out, line)
			if i == dirAt && !hasMakedirs {
				out = append(out, headerMakedirs)
			}
		}
		return out
	}

	out := make([]string, 0, len(lines)+3)
	inserted := false
	for _, line := range lines {
		out = append(out, line)
		if !inserted && line == "import bpy" {
			out = append(out, headerImportOS, p.dirLine, headerMakedirs)
			inserted = true
		}
	}
	return out
}

// resolve 为一条 filepath 赋值的右值选出规范化形式。
func (p *outputPath) resolve(rhs string, ordinal int) string {
	rhs = strings.TrimSpace(rhs)
	if p.canonicalLit[rhs] || p.canonicalBase.MatchString(rhs) ||
		(p.canonicalFStr != nil && p.canonicalFStr.MatchString(rhs)) {
		return rhs
	}
	if plainIdentifier.MatchString(rhs) {
		return fmt.Sprintf("os.path.join(%s, os.path.basename(%s))", OutputDirVar, rhs)
	}
	if p.layout.Count == 1 {
		return p.literal(p.layout.Filename(1))
	}

	matches := explicitIndex.FindAllStringSubmatch(rhs, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		n, err := strconv.Atoi(matches[i][1])
		if err == nil && n >= 1 && n <= p.layout.Count {
			return p.literal(p.layout.Filename(n))
		}
	}
	for _, re := range indexPlaceholders {
		if m := re.FindStringSubmatch(rhs); m != nil && strings.TrimSpace(m[1]) != "" {
			return p.fstring(m[1])
		}
	}
	return p.literal(p.nth(ordinal))
}

func (p *outputPath) rewriteAssignments(lines []string) []string {
	ordinal := 0
	for i, line := range lines {
		m := filepathAssign.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ordinal++
		lines[i] = fmt.Sprintf("%s%s = %s", m[1], m[2], p.resolve(m[3], ordinal))
	}
	return lines
}

// ensureRenderCall 没有任何渲染调用时补一个；有入口块时放进块内。
func (p *outputPath) ensureRenderCall(lines []string) []string {
	for _, line := range lines {
		if renderCall.MatchString(line) {
			return lines
		}
	}
	call := "bpy.ops.render.render(write_still=True)"
	for i, line := range lines {
		if !mainGuard.MatchString(line) {
			continue
		}
		if i+1 < len(lines) && indentWidth(lines[i+1]) > 0 && strings.HasSuffix(line, ":") {
			return append(lines, indentOf(lines[i+1])+call)
		}
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:i]...)
		out = append(out, call)
		return append(out, lines[i:]...)
	}
	return append(lines, call)
}

// insertMissingAssignments 渲染调用之前（自上一次渲染调用起）没有 filepath
// 赋值时，按渲染序号插入一条。
func (p *outputPath) insertMissingAssignments(lines []string) []string {
	out := make([]string, 0, len(lines)+p.layout.Count)
	seen := false
	k := 0
	for _, line := range lines {
		if filepathAssign.MatchString(line) {
			seen = true
		}
		if m := renderCall.FindStringSubmatch(line); m != nil {
			k++
			if !seen {
				out = append(out, fmt.Sprintf("%s%s = %s", m[1], defaultTarget, p.literal(p.nth(k))))
			}
			seen = false
		}
		out = append(out, line)
	}
	return out
}

func (p *outputPath) forceWriteStill(lines []string) []string {
	for i, line := range lines {
		m := renderCall.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		args := strings.TrimSpace(m[2])
		switch {
		case writeStillArg.MatchString(args):
			args = writeStillArg.ReplaceAllString(args, "write_still=True")
		case args == "":
			args = "write_still=True"
		default:
			args = strings.TrimRight(args, ", \t") + ", write_still=True"
		}
		lines[i] = fmt.Sprintf("%sbpy.ops.render.render(%s)", m[1], args)
	}
	return lines
}
