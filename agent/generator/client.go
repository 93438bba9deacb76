package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/sceneforge/llm"
	"github.com/BaSui01/sceneforge/llm/retry"
	"github.com/BaSui01/sceneforge/llm/tokenizer"
	"github.com/BaSui01/sceneforge/types"
	"go.uber.org/zap"
)

// Config 生成器配置
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int

	// RateLimitDelay 收到限流信号后的固定等待时间
	RateLimitDelay time.Duration
	// RateLimitCeiling 单次生成内限流重试的墙钟上限
	RateLimitCeiling time.Duration

	// ContextWarnRatio 对话 token 占上下文窗口的告警比例，0 关闭
	ContextWarnRatio float64
}

// DefaultConfig 与原始代理保持一致：temperature 0.3，max_tokens 10000，限流等待 60s。
func DefaultConfig() Config {
	return Config{
		Model:            "codestral-latest",
		Temperature:      0.3,
		MaxTokens:        10000,
		RateLimitDelay:   60 * time.Second,
		RateLimitCeiling: retry.DefaultCeiling,
		ContextWarnRatio: 0.8,
	}
}

// Result 一次成功生成的结果
type Result struct {
	Text        string
	RateLimited int
	Usage       llm.ChatUsage
	Duration    time.Duration
}

// Option 配置 Client
type Option func(*Client)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTokenizer 设置 token 计数器
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(c *Client) { c.tokenizer = t }
}

// WithRateLimitHook 每次限流等待前回调
func WithRateLimitHook(fn func(wait time.Duration)) Option {
	return func(c *Client) { c.onRateLimit = fn }
}

// Client 是代码生成客户端：追加用户轮次、请求 Provider、限流时固定延迟重发、
// 成功后追加 assistant 轮次并返回原始文本。
type Client struct {
	provider    llm.Provider
	cfg         Config
	logger      *zap.Logger
	tokenizer   tokenizer.Tokenizer
	onRateLimit func(wait time.Duration)
}

// NewClient 创建生成客户端
func NewClient(provider llm.Provider, cfg Config, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.RateLimitDelay <= 0 {
		c.cfg.RateLimitDelay = DefaultConfig().RateLimitDelay
	}
	if c.cfg.RateLimitCeiling <= 0 {
		c.cfg.RateLimitCeiling = retry.DefaultCeiling
	}
	c.logger = c.logger.With(zap.String("component", "generator"), zap.String("provider", provider.Name()))
	return c
}

// Generate 把 prompt 作为新的用户轮次追加到 conv 并请求补全。
// 失败时回滚该用户轮次，保证对话严格交替。返回的错误均为 *types.Error：
// FATAL_API（鉴权/请求格式/配额）、TRANSIENT_API（限流超过墙钟上限）、
// CANCELLED 或 GENERATION_FAILED。
func (c *Client) Generate(ctx context.Context, conv *Conversation, prompt string) (*Result, error) {
	mark := conv.Len()
	conv.append(llm.RoleUser, prompt)
	c.checkContextWindow(conv)

	req := &llm.ChatRequest{
		Model:       c.cfg.Model,
		Messages:    conv.Messages(),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if runID, ok := types.RunID(ctx); ok {
		req.TraceID = runID
	}

	rateLimited := 0
	policy := retry.Fixed(c.cfg.RateLimitDelay, c.cfg.RateLimitCeiling, llm.IsRateLimited)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		rateLimited++
		c.logger.Warn("rate limited, retrying after fixed delay",
			zap.Int("retry", attempt),
			zap.Duration("delay", delay))
		if c.onRateLimit != nil {
			c.onRateLimit(delay)
		}
	}
	retryer := retry.New(policy, c.logger)

	start := time.Now()
	resp, err := retry.Call(ctx, retryer, func(ctx context.Context) (*llm.ChatResponse, error) {
		return c.provider.Completion(ctx, req)
	})
	if err != nil {
		conv.truncate(mark)
		return nil, c.classify(ctx, err)
	}

	text, ok := resp.FirstContent()
	if !ok || strings.TrimSpace(text) == "" {
		conv.truncate(mark)
		return nil, types.NewError(types.ErrGenerationFailed, "completion contained no text").
			WithProvider(c.provider.Name())
	}

	conv.append(llm.RoleAssistant, text)
	c.logger.Debug("generation finished",
		zap.Int("chars", len(text)),
		zap.Int("rate_limited", rateLimited),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Int("turns", conv.Len()))

	return &Result{
		Text:        text,
		RateLimited: rateLimited,
		Usage:       resp.Usage,
		Duration:    time.Since(start),
	}, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	var llmErr *llm.Error
	hasLLM := errors.As(err, &llmErr)

	switch {
	case ctx.Err() != nil:
		return types.NewError(types.ErrCancelled, "generation cancelled").WithCause(err)
	case llm.IsFatal(err):
		return types.NewError(types.ErrFatalAPI, llmErr.Message).
			WithCause(err).
			WithHTTPStatus(llmErr.HTTPStatus).
			WithProvider(llmErr.Provider)
	case errors.Is(err, retry.ErrCeilingExceeded):
		return types.NewError(types.ErrTransientAPI,
			fmt.Sprintf("rate limited for longer than %s", c.cfg.RateLimitCeiling)).
			WithCause(err).
			WithRetryable(true).
			WithProvider(c.provider.Name())
	case hasLLM:
		return types.NewError(types.ErrGenerationFailed, llmErr.Message).
			WithCause(err).
			WithHTTPStatus(llmErr.HTTPStatus).
			WithProvider(llmErr.Provider)
	default:
		return types.NewError(types.ErrGenerationFailed, "completion request failed").
			WithCause(err).
			WithProvider(c.provider.Name())
	}
}

func (c *Client) checkContextWindow(conv *Conversation) {
	if c.tokenizer == nil || c.cfg.ContextWarnRatio <= 0 {
		return
	}
	n, err := c.tokenizer.CountMessages(conv.tokenizerMessages())
	if err != nil {
		c.logger.Debug("token count failed", zap.Error(err))
		return
	}
	limit := c.tokenizer.MaxTokens()
	if limit > 0 && float64(n+c.cfg.MaxTokens) > float64(limit)*c.cfg.ContextWarnRatio {
		c.logger.Warn("conversation approaching context window",
			zap.Int("prompt_tokens", n),
			zap.Int("max_tokens", c.cfg.MaxTokens),
			zap.Int("context_window", limit),
			zap.String("tokenizer", c.tokenizer.Name()))
	}
}
