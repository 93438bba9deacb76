package generator

import (
	"github.com/BaSui01/sceneforge/llm"
	"github.com/BaSui01/sceneforge/llm/tokenizer"
)

// Conversation 是一次运行的对话状态：系统指令 + 严格交替的 user/assistant 轮次。
// 由单个 Orchestrator 独占，不做并发保护。
type Conversation struct {
	System string
	turns  []llm.Message
}

// NewConversation 创建空对话
func NewConversation(system string) *Conversation {
	return &Conversation{System: system}
}

// Len 返回轮次数（不含系统指令）
func (c *Conversation) Len() int { return len(c.turns) }

// Turns 返回轮次副本
func (c *Conversation) Turns() []llm.Message {
	out := make([]llm.Message, len(c.turns))
	copy(out, c.turns)
	return out
}

// LastAssistant 返回最后一条 assistant 回复
func (c *Conversation) LastAssistant() (string, bool) {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == llm.RoleAssistant {
			return c.turns[i].Content, true
		}
	}
	return "", false
}

// Messages 返回发往 Provider 的完整消息列表
func (c *Conversation) Messages() []llm.Message {
	msgs := make([]llm.Message, 0, len(c.turns)+1)
	if c.System != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: c.System})
	}
	return append(msgs, c.turns...)
}

func (c *Conversation) append(role llm.Role, content string) {
	c.turns = append(c.turns, llm.Message{Role: role, Content: content})
}

// truncate 回滚到 n 轮
func (c *Conversation) truncate(n int) {
	if n < len(c.turns) {
		c.turns = c.turns[:n]
	}
}

func (c *Conversation) tokenizerMessages() []tokenizer.Message {
	msgs := c.Messages()
	out := make([]tokenizer.Message, len(msgs))
	for i, m := range msgs {
		out[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
