package tokenizer

import "unicode"

// 每条消息的角色标记开销与对话结束开销，与 tiktoken 实现保持一致
const (
	messageOverhead      = 4
	conversationOverhead = 3
)

// Estimator 离线字符估算器，针对生成的脚本源码：
// 标识符与数字按每 4 字符一个 token，标点、换行与非 ASCII 字符各计一个，
// 连续空格（缩进）按每 4 个一个 token。
type Estimator struct {
	maxTokens int
}

// NewEstimator 创建估算器；maxTokens <= 0 时取 8192
func NewEstimator(maxTokens int) *Estimator {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Estimator{maxTokens: maxTokens}
}

func (e *Estimator) CountTokens(text string) (int, error) {
	return estimate(text), nil
}

func (e *Estimator) CountMessages(messages []Message) (int, error) {
	total := conversationOverhead
	for _, m := range messages {
		total += messageOverhead + estimate(m.Content)
	}
	return total, nil
}

func (e *Estimator) MaxTokens() int { return e.maxTokens }

func (e *Estimator) Name() string { return "estimator" }

func estimate(text string) int {
	tokens := 0
	word, spaces := 0, 0
	flush := func() {
		tokens += ceilDiv(word, 4) + ceilDiv(spaces, 4)
		word, spaces = 0, 0
	}
	for _, r := range text {
		switch {
		case r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if spaces > 0 {
				flush()
			}
			word++
		case r == ' ' || r == '\t':
			if word > 0 {
				flush()
			}
			spaces++
		default:
			flush()
			tokens++
		}
	}
	flush()
	return tokens
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
