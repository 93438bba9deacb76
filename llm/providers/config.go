package providers

import "time"

// Config 代码生成 Provider 的连接配置
type Config struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// RequestsPerMinute 客户端侧请求节流，0 表示不限制
	RequestsPerMinute int `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty"`

	// Organization 仅 OpenAI 使用
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
}
