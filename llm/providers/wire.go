package providers

import (
	"net/http"
	"time"

	"github.com/BaSui01/sceneforge/llm"
)

// Chat Completions 线上格式（OpenAI 与 Mistral 共用）

type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []WireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      WireMessage `json:"message"`
}

type ChatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *ChatCompletionUsage   `json:"usage,omitempty"`
	Created int64                  `json:"created,omitempty"`
}

// NewChatCompletionRequest 按给定模型构造线上请求
func NewChatCompletionRequest(req *llm.ChatRequest, model string) ChatCompletionRequest {
	msgs := make([]WireMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = WireMessage{Role: string(m.Role), Content: m.Content}
	}
	return ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
}

// ToLLM 转换为 llm.ChatResponse；所有选项的角色统一为 assistant
func (r ChatCompletionResponse) ToLLM(provider string) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:       r.ID,
		Provider: provider,
		Model:    r.Model,
		Choices:  make([]llm.ChatChoice, len(r.Choices)),
	}
	for i, c := range r.Choices {
		out.Choices[i] = llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content},
		}
	}
	if r.Usage != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		}
	}
	if r.Created != 0 {
		out.CreatedAt = time.Unix(r.Created, 0)
	}
	return out
}

// ChooseModel 请求 > 配置默认 > 兜底
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	switch {
	case req != nil && req.Model != "":
		return req.Model
	case defaultModel != "":
		return defaultModel
	default:
		return fallbackModel
	}
}

// BearerTokenHeaders 标准 Bearer 认证
func BearerTokenHeaders(r *http.Request, apiKey string) {
	r.Header.Set("Authorization", "Bearer "+apiKey)
	r.Header.Set("Content-Type", "application/json")
}
