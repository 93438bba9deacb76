package feedback

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/sceneforge/agent/validation"
	"go.uber.org/zap"
)

// Header 纠正段落的开头
const Header = "The previous script failed. Apply the following corrections:"

// Config 配置反馈合成
type Config struct {
	// Signatures 追加在默认表之后的签名
	Signatures []SignatureSpec `yaml:"signatures"`
	// IncludeDiagnostics 没有签名命中时附上诊断文本末尾
	IncludeDiagnostics bool `yaml:"include_diagnostics" env:"INCLUDE_DIAGNOSTICS"`
	DiagnosticsTail    int  `yaml:"diagnostics_tail" env:"DIAGNOSTICS_TAIL"`
	// IncludePriorSource 附上上一次清洗后的程序供模型修改
	IncludePriorSource bool `yaml:"include_prior_source" env:"INCLUDE_PRIOR_SOURCE"`
	// RequiredIdentifiers 程序中必须出现的变量名，缺失时追加纠正
	RequiredIdentifiers []string `yaml:"required_identifiers" env:"REQUIRED_IDENTIFIERS"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		IncludeDiagnostics: true,
		DiagnosticsTail:    1500,
	}
}

// Input 一次尝试的结果
type Input struct {
	Diagnostics string
	Verdict     *validation.Verdict
	// Program 上一次清洗后的程序，可为空
	Program string
}

// Result 合成结果
type Result struct {
	Prompt      string   `json:"prompt"`
	Matched     []string `json:"matched,omitempty"`
	Corrections []string `json:"corrections,omitempty"`
}

// Changed 是否追加了任何内容
func (r Result) Changed() bool { return len(r.Corrections) > 0 }

// Synthesizer 把诊断文本与校验结论映射为下一次提示中的纠正指令。
type Synthesizer struct {
	cfg        Config
	signatures []Signature
	required   []*regexp.Regexp
	logger     *zap.Logger
}

// New 创建 Synthesizer，使用默认签名表并追加 cfg.Signatures。
func New(cfg Config, logger *zap.Logger) (*Synthesizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sigs := DefaultSignatures()
	for _, spec := range cfg.Signatures {
		sig, err := spec.Compile()
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	var required []*regexp.Regexp
	for _, name := range cfg.RequiredIdentifiers {
		required = append(required, regexp.MustCompile(`\b`+regexp.QuoteMeta(name)+`\b`))
	}
	if cfg.DiagnosticsTail <= 0 {
		cfg.DiagnosticsTail = DefaultConfig().DiagnosticsTail
	}
	return &Synthesizer{
		cfg:        cfg,
		signatures: sigs,
		required:   required,
		logger:     logger.With(zap.String("component", "feedback")),
	}, nil
}

// Signatures 返回生效的签名表
func (s *Synthesizer) Signatures() []Signature {
	return append([]Signature(nil), s.signatures...)
}

// Synthesize 在原始提示后追加纠正段落。
// 没有任何签名命中且结论为接受时原样返回提示。
func (s *Synthesizer) Synthesize(prompt string, in Input) Result {
	res := Result{Prompt: prompt}
	seen := make(map[string]bool)
	add := func(name, instruction string) {
		if instruction == "" || seen[instruction] {
			return
		}
		seen[instruction] = true
		res.Matched = append(res.Matched, name)
		res.Corrections = append(res.Corrections, instruction)
	}

	diag := strings.TrimSpace(in.Diagnostics)
	for _, sig := range s.signatures {
		if diag != "" && sig.Pattern.MatchString(diag) {
			add(sig.Name, sig.Instruction)
		}
	}

	var extra []string
	switch {
	case diag != "" && len(res.Corrections) == 0 && s.cfg.IncludeDiagnostics:
		add("diagnostics", "Fix the error reported by the engine below.")
		extra = append(extra, "Engine error output:\n"+tail(diag, s.cfg.DiagnosticsTail))
	case diag == "" && in.Verdict != nil && !in.Verdict.Accepted:
		for _, reason := range in.Verdict.Reasons() {
			add(reason, reasonInstruction(reason))
		}
		add("validation", "Validation failed: "+in.Verdict.Reason())
	}

	if in.Program != "" {
		for i, re := range s.required {
			if !re.MatchString(in.Program) {
				name := s.cfg.RequiredIdentifiers[i]
				add("missing-"+name, fmt.Sprintf("Correct this: the variable '%s' is not defined.", name))
			}
		}
	}

	if !res.Changed() {
		return res
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n")
	b.WriteString(Header)
	b.WriteString("\n")
	for _, c := range res.Corrections {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	for _, e := range extra {
		b.WriteString("\n")
		b.WriteString(e)
		b.WriteString("\n")
	}
	if s.cfg.IncludePriorSource && in.Program != "" {
		b.WriteString("\nPrevious script:\n")
		b.WriteString(in.Program)
		if !strings.HasSuffix(in.Program, "\n") {
			b.WriteString("\n")
		}
	}
	res.Prompt = b.String()

	s.logger.Debug("feedback synthesized", zap.Strings("matched", res.Matched))
	return res
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	// 从下一行开始，避免半行
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return s
}
