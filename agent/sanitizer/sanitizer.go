package sanitizer

import (
	"fmt"
	"regexp"

	"github.com/BaSui01/sceneforge/agent/scene"
	"go.uber.org/zap"
)

// 规则名，也用于 Options.Disabled
const (
	RuleStrip            = "strip"
	RuleAmbientObject    = "ambient-object"
	RuleRenamedIdents    = "renamed-identifiers"
	RuleUnsupportedInput = "unsupported-material-inputs"
	RuleOutputPath       = "output-path"
	RuleDefensiveDecl    = "defensive-declarations"
)

// Options 配置 Sanitizer
type Options struct {
	Layout scene.OutputLayout

	// DefensiveNames 被引用但从未赋值时补声明的簿记变量
	DefensiveNames []string

	// Disabled 按名称关闭规则
	Disabled []string
}

// DefaultOptions 默认三相机布局，防御 positions 变量
func DefaultOptions() Options {
	return Options{
		Layout:         scene.DefaultLayout(),
		DefensiveNames: []string{"positions"},
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate 检查选项
func (o Options) Validate() error {
	if err := o.Layout.Validate(); err != nil {
		return err
	}
	for _, name := range o.DefensiveNames {
		if !identifier.MatchString(name) {
			return fmt.Errorf("sanitizer: %q is not a valid identifier", name)
		}
	}
	known := map[string]bool{
		RuleStrip: true, RuleAmbientObject: true, RuleRenamedIdents: true,
		RuleUnsupportedInput: true, RuleOutputPath: true, RuleDefensiveDecl: true,
	}
	for _, name := range o.Disabled {
		if !known[name] {
			return fmt.Errorf("sanitizer: unknown rule %q", name)
		}
	}
	return nil
}

// Rule 是规则表中的一项：纯函数，输入输出都是程序文本。
type Rule struct {
	Name  string
	Apply func(src string) string
}

// Result 一次清洗的结果
type Result struct {
	Program string
	// Applied 实际改动了文本的规则，按执行顺序
	Applied []string
	// Failed 执行中 panic 并被跳过的规则
	Failed []string
}

// Sanitizer 把生成器的原始输出清洗为可执行程序。纯函数、确定性、幂等，永不 panic。
type Sanitizer struct {
	rules  []Rule
	logger *zap.Logger
}

// New 创建 Sanitizer。选项不合法时返回错误。
func New(opts Options, logger *zap.Logger) (*Sanitizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	decls := make([]declaration, 0, len(opts.DefensiveNames))
	for _, name := range opts.DefensiveNames {
		decls = append(decls, newDeclaration(name))
	}
	out := newOutputPath(opts.Layout)

	table := []Rule{
		{Name: RuleStrip, Apply: strip},
		{Name: RuleAmbientObject, Apply: rewriteAmbientObject},
		{Name: RuleRenamedIdents, Apply: renameIdentifiers},
		{Name: RuleUnsupportedInput, Apply: dropUnsupportedInputs},
		{Name: RuleOutputPath, Apply: out.apply},
		{Name: RuleDefensiveDecl, Apply: func(src string) string { return declareDefensively(src, decls) }},
	}

	disabled := make(map[string]bool, len(opts.Disabled))
	for _, name := range opts.Disabled {
		disabled[name] = true
	}
	rules := table[:0]
	for _, r := range table {
		if !disabled[r.Name] {
			rules = append(rules, r)
		}
	}

	return &Sanitizer{rules: rules, logger: logger.With(zap.String("component", "sanitizer"))}, nil
}

// Rules 返回生效的规则名
func (s *Sanitizer) Rules() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name
	}
	return names
}

// Sanitize 返回清洗后的程序
func (s *Sanitizer) Sanitize(raw string) string {
	return s.Apply(raw).Program
}

// Apply 依次执行规则表。单条规则 panic 时该规则视为 no-op。
func (s *Sanitizer) Apply(raw string) Result {
	var res Result
	src := raw
	for _, rule := range s.rules {
		next, ok := s.run(rule, src)
		if !ok {
			res.Failed = append(res.Failed, rule.Name)
			continue
		}
		if next != src {
			res.Applied = append(res.Applied, rule.Name)
		}
		src = next
	}
	res.Program = joinLines(nonBlank(splitLines(src)))
	return res
}

func (s *Sanitizer) run(rule Rule, src string) (out string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sanitizer rule panicked, skipping",
				zap.String("rule", rule.Name),
				zap.Any("panic", r))
			out, ok = src, false
		}
	}()
	return rule.Apply(src), true
}
