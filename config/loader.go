// =============================================================================
// 📦 SceneForge 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("sceneforge.yaml").
//	    WithEnvPrefix("SCENEFORGE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/sceneforge/agent/execution"
	"github.com/BaSui01/sceneforge/agent/feedback"
	"github.com/BaSui01/sceneforge/agent/persistence"
	"github.com/BaSui01/sceneforge/agent/scene"
	"github.com/BaSui01/sceneforge/agent/validation"
	"github.com/BaSui01/sceneforge/internal/lock"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 SceneForge 的完整配置结构
type Config struct {
	// LLM 代码生成模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Engine 外部 3D 引擎（子进程）配置
	Engine execution.Config `yaml:"engine" env:"ENGINE"`

	// Scene 场景描述与产物布局
	Scene SceneConfig `yaml:"scene" env:"SCENE"`

	// Sanitizer 代码清洗规则
	Sanitizer SanitizerConfig `yaml:"sanitizer" env:"SANITIZER"`

	// Validation 像素校验阈值
	Validation validation.Config `yaml:"validation" env:"VALIDATION"`

	// Feedback 反馈合成
	Feedback feedback.Config `yaml:"feedback" env:"FEEDBACK"`

	// Loop 重试循环
	Loop LoopConfig `yaml:"loop" env:"LOOP"`

	// Journal 运行日志
	Journal persistence.StoreConfig `yaml:"journal" env:"JOURNAL"`

	// Lock 输出目录锁
	Lock lock.Config `yaml:"lock" env:"LOCK"`

	// Archive 每次 attempt 的产物归档
	Archive ArchiveConfig `yaml:"archive" env:"ARCHIVE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// Provider: mistral, openai
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key；为空时回退到 MISTRAL_API_KEY / OPENAI_API_KEY
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// OpenAI 组织（可选）
	Organization string `yaml:"organization" env:"ORGANIZATION"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 客户端侧节流，0 表示不限制
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	// 收到限流后的固定等待
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" env:"RATE_LIMIT_DELAY"`
	// 限流重试的墙钟上限
	RateLimitCeiling time.Duration `yaml:"rate_limit_ceiling" env:"RATE_LIMIT_CEILING"`
	// 对话 token 占上下文窗口的告警比例
	ContextWarnRatio float64 `yaml:"context_warn_ratio" env:"CONTEXT_WARN_RATIO"`
}

// SceneConfig 场景配置
type SceneConfig struct {
	// 场景名称
	Name string `yaml:"name" env:"NAME"`
	// 自然语言描述；为空且没有 DescriptionFile 时使用内置场景
	Description string `yaml:"description" env:"DESCRIPTION"`
	// 从文件读取描述
	DescriptionFile string `yaml:"description_file" env:"DESCRIPTION_FILE"`
	// 系统指令；为空时使用内置指令
	SystemInstructions string `yaml:"system_instructions" env:"SYSTEM_INSTRUCTIONS"`
	// 产物布局
	Output scene.OutputLayout `yaml:"output" env:"OUTPUT"`
}

// SanitizerConfig 清洗配置
type SanitizerConfig struct {
	// 被引用但从未赋值时补声明的变量
	DefensiveNames []string `yaml:"defensive_names" env:"DEFENSIVE_NAMES"`
	// 按名称关闭规则
	Disabled []string `yaml:"disabled" env:"DISABLED"`
}

// LoopConfig 重试循环配置
type LoopConfig struct {
	// 最大 attempt 数
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	// 单槽程序文件路径，产物目录与之同级
	ProgramPath string `yaml:"program_path" env:"PROGRAM_PATH"`
	// 失败后到下一次 attempt 之前的冷却
	Cooldown time.Duration `yaml:"cooldown" env:"COOLDOWN"`
	// 日志中记录清洗后的程序
	RecordPrograms bool `yaml:"record_programs" env:"RECORD_PROGRAMS"`
}

// ArchiveConfig 归档配置
type ArchiveConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 归档根目录
	Root string `yaml:"root" env:"ROOT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径；stdout / stderr 以外的路径按文件轮转
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
	// 文件轮转
	Rotation RotationConfig `yaml:"rotation" env:"ROTATION"`
}

// RotationConfig 日志文件轮转配置
type RotationConfig struct {
	// 单文件最大体积（MB）
	MaxSizeMB int `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	// 保留的旧文件数
	MaxBackups int `yaml:"max_backups" env:"MAX_BACKUPS"`
	// 旧文件保留天数
	MaxAgeDays int `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	// 是否压缩旧文件
	Compress bool `yaml:"compress" env:"COMPRESS"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 不使用 TLS 连接 OTLP 端点
	Insecure bool `yaml:"insecure" env:"INSECURE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// /metrics 监听地址，为空时只采集不暴露
	Addr string `yaml:"addr" env:"ADDR"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SCENEFORGE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量 → API Key 回退
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := bindEnv(cfg, l.envPrefix, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 服务商约定的 API Key 环境变量
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerAPIKey(cfg.LLM.Provider)
	}

	// 5. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// providerAPIKey 返回服务商约定的环境变量中的 key
func providerAPIKey(provider string) string {
	switch provider {
	case "mistral":
		return os.Getenv("MISTRAL_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	switch c.LLM.Provider {
	case "mistral", "openai":
	default:
		errs = append(errs, fmt.Sprintf("unsupported llm provider %q (supported: mistral, openai)", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, "max_tokens must be positive")
	}
	if c.LLM.RateLimitDelay <= 0 {
		errs = append(errs, "rate_limit_delay must be positive")
	}
	if c.LLM.RateLimitCeiling < c.LLM.RateLimitDelay {
		errs = append(errs, "rate_limit_ceiling must not be shorter than rate_limit_delay")
	}

	if c.Loop.MaxAttempts <= 0 {
		errs = append(errs, "max_attempts must be positive")
	}
	if strings.TrimSpace(c.Loop.ProgramPath) == "" {
		errs = append(errs, "program_path is required")
	}
	if c.Loop.Cooldown < 0 {
		errs = append(errs, "cooldown must not be negative")
	}

	add(c.Engine.Validate())
	add(c.Scene.Output.Validate())
	add(c.Validation.Validate())
	if c.Journal.Enabled {
		add(c.Journal.Validate())
	}
	add(c.Lock.Validate())

	if c.Archive.Enabled && strings.TrimSpace(c.Archive.Root) == "" {
		errs = append(errs, "archive root is required when archive is enabled")
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("unsupported log format %q", c.Log.Format))
	}
	if c.Telemetry.Enabled && (c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1) {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Spec 根据场景配置构造场景描述
func (s SceneConfig) Spec() (scene.Spec, error) {
	description := s.Description
	if s.DescriptionFile != "" {
		data, err := os.ReadFile(s.DescriptionFile)
		if err != nil {
			return scene.Spec{}, fmt.Errorf("failed to read scene description: %w", err)
		}
		description = string(data)
	}
	if strings.TrimSpace(description) == "" {
		description = scene.DefaultDescription
	}
	return scene.New(s.Name, description, s.Output)
}

// Instructions 返回系统指令
func (s SceneConfig) Instructions() string {
	if strings.TrimSpace(s.SystemInstructions) == "" {
		return scene.DefaultSystemInstructions
	}
	return s.SystemInstructions
}
