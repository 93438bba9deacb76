package providers

import (
	"testing"
	"time"

	"github.com/BaSui01/sceneforge/llm"
	"github.com/stretchr/testify/assert"
)

func TestNewChatCompletionRequest(t *testing.T) {
	req := &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "sys"},
			{Role: llm.RoleUser, Content: "scene"},
		},
		MaxTokens:   4096,
		Temperature: 0.2,
	}
	wire := NewChatCompletionRequest(req, "codestral-latest")
	assert.Equal(t, "codestral-latest", wire.Model)
	assert.Equal(t, []WireMessage{{"system", "sys"}, {"user", "scene"}}, wire.Messages)
	assert.Equal(t, 4096, wire.MaxTokens)
	assert.InDelta(t, 0.2, wire.Temperature, 1e-6)
}

func TestChatCompletionResponse_ToLLM(t *testing.T) {
	resp := ChatCompletionResponse{
		ID:    "cmpl-1",
		Model: "codestral-latest",
		Choices: []ChatCompletionChoice{
			{Index: 0, FinishReason: "stop", Message: WireMessage{Role: "assistant", Content: "import bpy"}},
		},
		Usage:   &ChatCompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		Created: 1_700_000_000,
	}.ToLLM("mistral")

	assert.Equal(t, "mistral", resp.Provider)
	content, ok := resp.FirstContent()
	assert.True(t, ok)
	assert.Equal(t, "import bpy", content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, time.Unix(1_700_000_000, 0), resp.CreatedAt)
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "def", "fb"))
	assert.Equal(t, "def", ChooseModel(&llm.ChatRequest{}, "def", "fb"))
	assert.Equal(t, "fb", ChooseModel(nil, "", "fb"))
}
