// MockProvider 的 LLM 提供商测试模拟实现。
//
// 支持固定响应、按序脚本（限流、错误、正常响应交替）与错误注入场景。
package mocks

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/sceneforge/llm"
)

// --- MockProvider 结构 ---

// Step 是脚本中的一步：返回 Content，或返回 Err。
type Step struct {
	Content string
	Err     error
}

// MockProvider 是 LLM Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	// 响应配置
	response string
	err      error
	script   []Step

	// Token 使用统计
	promptTokens     int
	completionTokens int

	// 调用记录
	calls          []MockProviderCall
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	delay time.Duration
}

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		response:         "import bpy",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithResponse 设置固定响应内容
func (m *MockProvider) WithResponse(response string) *MockProvider {
	return m.with(func() {
		m.response = response
	})
}

// WithError 设置每次调用都返回的错误
func (m *MockProvider) WithError(err error) *MockProvider {
	return m.with(func() {
		m.err = err
	})
}

// WithScript 设置按序消费的脚本；脚本耗尽后回落到固定响应。
func (m *MockProvider) WithScript(steps ...Step) *MockProvider {
	return m.with(func() {
		m.script = append(m.script, steps...)
	})
}

// WithTokenUsage 设置 Token 使用量
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	return m.with(func() {
		m.promptTokens = prompt
		m.completionTokens = completion
	})
}

// WithDelay 设置模拟延迟
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	return m.with(func() {
		m.delay = d
	})
}

// WithCompletionFunc 设置自定义 Completion 函数
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	return m.with(func() {
		m.completionFunc = fn
	})
}

// with 在锁内修改配置，供链式调用
func (m *MockProvider) with(fn func()) *MockProvider {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	return m
}

// --- Provider 接口实现 ---

// Name 返回 Provider 名称
func (m *MockProvider) Name() string {
	return "mock"
}

// HealthCheck 执行健康检查
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 按脚本 → 固定错误 → 固定响应的优先级返回结果
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	fn := m.completionFunc
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	snapshot := cloneRequest(req)

	if fn != nil {
		resp, err := fn(ctx, req)
		m.record(snapshot, resp, err)
		return resp, err
	}

	m.mu.Lock()
	var (
		content string
		err     error
	)
	switch {
	case len(m.script) > 0:
		step := m.script[0]
		m.script = m.script[1:]
		content, err = step.Content, step.Err
	case m.err != nil:
		err = m.err
	default:
		content = m.response
	}
	prompt, completion := m.promptTokens, m.completionTokens
	m.mu.Unlock()

	if err != nil {
		m.record(snapshot, nil, err)
		return nil, err
	}

	resp := &llm.ChatResponse{
		ID:       "mock-response",
		Provider: "mock",
		Model:    "mock-model",
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
		Usage: llm.ChatUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
		CreatedAt: time.Now(),
	}
	m.record(snapshot, resp, nil)
	return resp, nil
}

func (m *MockProvider) record(req *llm.ChatRequest, resp *llm.ChatResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
}

// --- 查询方法 ---

// Calls 返回调用记录副本
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest 返回最后一次请求
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}

// Reset 清空调用记录和脚本
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.script = nil
}

// --- 常用错误 ---

// RateLimitError 构造 429 限流错误
func RateLimitError() *llm.Error {
	return &llm.Error{
		Code:       llm.ErrRateLimited,
		Message:    "Requests rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
		Provider:   "mock",
	}
}

// UnauthorizedError 构造 401 鉴权错误
func UnauthorizedError() *llm.Error {
	return &llm.Error{
		Code:       llm.ErrUnauthorized,
		Message:    "invalid api key",
		HTTPStatus: http.StatusUnauthorized,
		Provider:   "mock",
	}
}

// UpstreamError 构造 502 上游错误
func UpstreamError() *llm.Error {
	return &llm.Error{
		Code:       llm.ErrUpstreamError,
		Message:    "bad gateway",
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Provider:   "mock",
	}
}

func cloneRequest(req *llm.ChatRequest) *llm.ChatRequest {
	if req == nil {
		return nil
	}
	c := *req
	c.Messages = append([]llm.Message(nil), req.Messages...)
	return &c
}

var _ llm.Provider = (*MockProvider)(nil)
