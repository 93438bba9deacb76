package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 基于 tiktoken 的精确计数实现.
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

// modelEncodings 将模型名称映射到 tiktoken 编码和上下文大小。
// Mistral 系列没有公开的 tiktoken 编码，用 cl100k_base 近似。
var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"codestral":     {encoding: "cl100k_base", maxTokens: 256000},
	"mistral-large": {encoding: "cl100k_base", maxTokens: 128000},
	"mistral-small": {encoding: "cl100k_base", maxTokens: 32000},
	"gpt-4o":        {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4.1":       {encoding: "o200k_base", maxTokens: 1047576},
	"gpt-4-turbo":   {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-3.5-turbo": {encoding: "cl100k_base", maxTokens: 16385},
}

// lookupEncoding 精确匹配优先，其次取最长前缀（codestral-latest → codestral）。
func lookupEncoding(model string) (string, int) {
	if info, ok := modelEncodings[model]; ok {
		return info.encoding, info.maxTokens
	}
	best := ""
	for prefix := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		info := modelEncodings[best]
		return info.encoding, info.maxTokens
	}
	return "cl100k_base", 8192
}

// NewTiktokenTokenizer 为给定模型创建基于 tiktoken 的分词器.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	encoding, maxTokens := lookupEncoding(model)
	return &TiktokenTokenizer{
		model:     model,
		encoding:  encoding,
		maxTokens: maxTokens,
	}
}

// init 惰性初始化 tiktoken 编码（首次使用时可能需要下载 BPE 数据）.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	tokens := t.enc.Encode(text, nil, nil)
	return len(tokens), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// 每条消息的开销: <|start|>role\n content<|end|>\n
		total += 4
		tokens := t.enc.Encode(msg.Content, nil, nil)
		total += len(tokens)
		roleTokens := t.enc.Encode(msg.Role, nil, nil)
		total += len(roleTokens)
	}
	total += 3 // conversation-end overhead
	return total, nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
