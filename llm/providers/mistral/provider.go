package mistral

import (
	"github.com/BaSui01/sceneforge/llm"
	"github.com/BaSui01/sceneforge/llm/providers"
	"github.com/BaSui01/sceneforge/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL Mistral La Plateforme 地址
	DefaultBaseURL = "https://api.mistral.ai"
	// DefaultModel 代码生成默认模型
	DefaultModel = "codestral-latest"
)

// Provider Mistral AI（OpenAI 兼容格式）
type Provider struct {
	*openaicompat.Provider
}

// New 创建 Mistral Provider；BaseURL 为空时使用官方地址
func New(cfg providers.Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:      "mistral",
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			DefaultModel:      cfg.Model,
			FallbackModel:     DefaultModel,
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}, logger),
	}
}

var _ llm.Provider = (*Provider)(nil)
