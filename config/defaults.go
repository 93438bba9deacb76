// =============================================================================
// 📦 SceneForge 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/sceneforge/agent/execution"
	"github.com/BaSui01/sceneforge/agent/feedback"
	"github.com/BaSui01/sceneforge/agent/persistence"
	"github.com/BaSui01/sceneforge/agent/scene"
	"github.com/BaSui01/sceneforge/agent/validation"
	"github.com/BaSui01/sceneforge/internal/lock"
	"github.com/BaSui01/sceneforge/llm/providers/mistral"
	"github.com/BaSui01/sceneforge/llm/retry"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LLM:        DefaultLLMConfig(),
		Engine:     execution.DefaultConfig(),
		Scene:      DefaultSceneConfig(),
		Sanitizer:  DefaultSanitizerConfig(),
		Validation: validation.DefaultConfig(),
		Feedback:   feedback.DefaultConfig(),
		Loop:       DefaultLoopConfig(),
		Journal:    persistence.DefaultStoreConfig(),
		Lock:       lock.DefaultConfig(),
		Archive:    DefaultArchiveConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// DefaultLLMConfig 返回默认 LLM 配置：Mistral codestral，temperature 0.3
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:         "mistral",
		Model:            mistral.DefaultModel,
		Temperature:      0.3,
		MaxTokens:        10000,
		Timeout:          2 * time.Minute,
		RateLimitDelay:   60 * time.Second,
		RateLimitCeiling: retry.DefaultCeiling,
		ContextWarnRatio: 0.8,
	}
}

// DefaultSceneConfig 返回内置场景与三相机布局
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Name:   "river-forest",
		Output: scene.DefaultLayout(),
	}
}

// DefaultSanitizerConfig 返回默认清洗配置
func DefaultSanitizerConfig() SanitizerConfig {
	return SanitizerConfig{
		DefensiveNames: []string{"positions"},
	}
}

// DefaultLoopConfig 返回默认循环配置
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxAttempts: 6,
		ProgramPath: "generated_scene.py",
		Cooldown:    5 * time.Second,
	}
}

// DefaultArchiveConfig 返回默认归档配置（关闭）
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled: false,
		Root:    "archive",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
		Rotation: RotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "sceneforge",
		SampleRate:   1.0,
		Insecure:     true,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Addr:      "",
		Namespace: "sceneforge",
	}
}
