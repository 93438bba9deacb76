package scene

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// OutputLayout 约定渲染产物的位置：程序文件旁的 Dir 子目录。
// Count 为 1 时文件名为 Base+Ext，大于 1 时为 Base_1..Base_N+Ext。
type OutputLayout struct {
	Dir   string `yaml:"dir" env:"DIR"`
	Base  string `yaml:"base" env:"BASE"`
	Ext   string `yaml:"ext" env:"EXT"`
	Count int    `yaml:"count" env:"COUNT"`
}

// DefaultLayout 三台相机，renders/render_1.png … render_3.png
func DefaultLayout() OutputLayout {
	return OutputLayout{Dir: "renders", Base: "render", Ext: ".png", Count: 3}
}

var (
	dirPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	basePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)
	extPattern  = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)
)

// Validate 检查布局是否可用。目录是单级相对子目录；文件名会被写进生成的
// Python 字符串字面量，只允许字母数字和连字符。
func (l OutputLayout) Validate() error {
	if l.Count < 1 {
		return fmt.Errorf("output layout: count must be >= 1, got %d", l.Count)
	}
	if !dirPattern.MatchString(l.Dir) {
		return fmt.Errorf("output layout: dir %q must be a single relative directory name", l.Dir)
	}
	if !basePattern.MatchString(l.Base) {
		return fmt.Errorf("output layout: invalid base name %q", l.Base)
	}
	if !extPattern.MatchString(l.Ext) {
		return fmt.Errorf("output layout: invalid extension %q", l.Ext)
	}
	return nil
}

// Filename 返回第 i 个产物的文件名（i 从 1 开始）。
func (l OutputLayout) Filename(i int) string {
	if l.Count <= 1 {
		return l.Base + l.Ext
	}
	return fmt.Sprintf("%s_%d%s", l.Base, i, l.Ext)
}

// Filenames 按序返回全部约定文件名
func (l OutputLayout) Filenames() []string {
	n := l.Count
	if n < 1 {
		n = 1
	}
	names := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		names = append(names, l.Filename(i))
	}
	return names
}

// Paths 返回相对程序所在目录的全部产物路径。
func (l OutputLayout) Paths(programDir string) []string {
	names := l.Filenames()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(programDir, l.Dir, name)
	}
	return paths
}

// Spec 是调用方提供的场景描述，核心只读。
type Spec struct {
	Name        string
	Description string
	Layout      OutputLayout
}

// ErrEmptyDescription 场景描述为空
var ErrEmptyDescription = errors.New("scene description is empty")

// New 创建场景描述；layout 不合法时返回错误。
func New(name, description string, layout OutputLayout) (Spec, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Spec{}, ErrEmptyDescription
	}
	if err := layout.Validate(); err != nil {
		return Spec{}, err
	}
	return Spec{Name: name, Description: description, Layout: layout}, nil
}

// Default 返回内置的自然场景：草地、河流、树林、太阳光、三台相机。
func Default() Spec {
	return Spec{Name: "river-forest", Description: DefaultDescription, Layout: DefaultLayout()}
}

// Prompt 渲染首轮用户提示：场景描述 + 产物命名约定。
func (s Spec) Prompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.Description))
	b.WriteString("\n\nOUTPUT:\n")
	fmt.Fprintf(&b, "- Save every render as PNG in a folder named '%s' created next to the script file.\n", s.Layout.Dir)
	names := s.Layout.Filenames()
	if len(names) == 1 {
		fmt.Fprintf(&b, "- Name the output file '%s'.\n", names[0])
	} else {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = "'" + n + "'"
		}
		fmt.Fprintf(&b, "- Render once per camera and name the files %s.\n", strings.Join(quoted, ", "))
	}
	b.WriteString("- Generate only Python code, without comments or Markdown fences.\n")
	return b.String()
}
