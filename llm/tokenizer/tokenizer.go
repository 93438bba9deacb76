package tokenizer

import (
	"sync"

	"go.uber.org/zap"
)

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Message 是一个轻量级消息结构, 由 tokenizer 包使用
// 以避免与 llm 包的循环依赖。
type Message struct {
	Role    string
	Content string
}

// ForModel 返回模型对应的分词器：优先 tiktoken，
// 编码数据不可用（离线环境）时退回字符估算器。
func ForModel(model string, logger *zap.Logger) Tokenizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	primary := NewTiktokenTokenizer(model)
	return &fallbackTokenizer{
		primary:  primary,
		fallback: NewEstimator(primary.MaxTokens()),
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

type fallbackTokenizer struct {
	primary  *TiktokenTokenizer
	fallback *Estimator
	logger   *zap.Logger
	warnOnce sync.Once
}

func (f *fallbackTokenizer) active() Tokenizer {
	if err := f.primary.init(); err != nil {
		f.warnOnce.Do(func() {
			f.logger.Warn("tiktoken unavailable, using estimator", zap.Error(err))
		})
		return f.fallback
	}
	return f.primary
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	return f.active().CountTokens(text)
}

func (f *fallbackTokenizer) CountMessages(messages []Message) (int, error) {
	return f.active().CountMessages(messages)
}

func (f *fallbackTokenizer) MaxTokens() int { return f.primary.MaxTokens() }

func (f *fallbackTokenizer) Name() string { return f.active().Name() }
