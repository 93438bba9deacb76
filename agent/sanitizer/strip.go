package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

const fenceToken = "```"

var (
	topLevelImport = regexp.MustCompile(`^(?:import[ \t]+[A-Za-z_][\w.]*|from[ \t]+[A-Za-z_.][\w.]*[ \t]+import[ \t])`)
	mainGuard      = regexp.MustCompile(`^if[ \t]+__name__[ \t]*==[ \t]*(?:'__main__'|"__main__")[ \t]*:`)
)

// splitLines 统一换行符后按行切分
func splitLines(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return strings.Split(src, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), fenceToken)
}

func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// strip 去掉 Markdown 围栏、围栏外的说明文字、注释、空行和入口块之后的尾随文本。
func strip(src string) string {
	lines := splitLines(src)
	lines = keepFenced(lines)
	lines = dropLeadingNarrative(lines)

	kept := lines[:0]
	for _, line := range lines {
		if isComment(line) {
			continue
		}
		line = strings.TrimRightFunc(cutInlineComment(line), unicode.IsSpace)
		if isBlank(line) {
			continue
		}
		kept = append(kept, line)
	}
	return joinLines(truncateAfterMain(kept))
}

// keepFenced 有围栏时只保留围栏内的行；没有围栏时原样返回。
// 围栏数为奇数且第一个围栏之前已有顶层 import 时，该围栏只是结束标记：
// 保留它之前的代码，丢弃之后的说明文字。
func keepFenced(lines []string) []string {
	first, count := -1, 0
	for i, line := range lines {
		if isFence(line) {
			if first < 0 {
				first = i
			}
			count++
		}
	}
	if count == 0 {
		return lines
	}
	if count%2 == 1 {
		for _, line := range lines[:first] {
			if topLevelImport.MatchString(line) {
				return lines[:first]
			}
		}
	}

	var out []string
	inside := false
	for _, line := range lines {
		if isFence(line) {
			inside = !inside
			continue
		}
		if inside {
			out = append(out, line)
		}
	}
	return out
}

// dropLeadingNarrative 丢弃第一条顶层 import 之前的内容
func dropLeadingNarrative(lines []string) []string {
	for i, line := range lines {
		if topLevelImport.MatchString(line) {
			return lines[i:]
		}
	}
	return lines
}

// cutInlineComment 去掉引号外的 # 注释
func cutInlineComment(line string) string {
	var quote rune
	escaped := false
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote == 0 && r == '#':
			return line[:i]
		}
	}
	return line
}

// truncateAfterMain 保留入口块本身，丢弃其后第一条顶层语句开始的全部内容。
func truncateAfterMain(lines []string) []string {
	for i, line := range lines {
		if !mainGuard.MatchString(line) {
			continue
		}
		end := i + 1
		for end < len(lines) && indentWidth(lines[end]) > 0 {
			end++
		}
		return lines[:end]
	}
	return lines
}

func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func indentOf(line string) string {
	return line[:indentWidth(line)]
}
