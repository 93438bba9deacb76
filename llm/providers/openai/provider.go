package openai

import (
	"net/http"

	"github.com/BaSui01/sceneforge/llm"
	"github.com/BaSui01/sceneforge/llm/providers"
	"github.com/BaSui01/sceneforge/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o"
)

// Provider OpenAI Chat Completions
type Provider struct {
	*openaicompat.Provider
	organization string
}

// New 创建 OpenAI Provider；设置 Organization 时附加 OpenAI-Organization 头
func New(cfg providers.Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	p := &Provider{organization: cfg.Organization}
	p.Provider = openaicompat.New(openaicompat.Config{
		ProviderName:      "openai",
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		DefaultModel:      cfg.Model,
		FallbackModel:     DefaultModel,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		BuildHeaders:      p.buildHeaders,
	}, logger)
	return p
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	providers.BearerTokenHeaders(req, apiKey)
	if p.organization != "" {
		req.Header.Set("OpenAI-Organization", p.organization)
	}
}

var _ llm.Provider = (*Provider)(nil)
