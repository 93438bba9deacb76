// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec
	llmRateLimited     *prometheus.CounterVec

	// 循环指标
	runsTotal        *prometheus.CounterVec
	runAttempts      *prometheus.HistogramVec
	attemptsTotal    *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	stateTransitions *prometheus.CounterVec

	// 引擎指标
	engineExecutionsTotal   *prometheus.CounterVec
	engineExecutionDuration *prometheus.HistogramVec

	// 清洗与校验指标
	sanitizerRulesApplied *prometheus.CounterVec
	validationRejections  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时注册到默认 Registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// LLM 指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of code generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Code generation duration in seconds, including rate-limit waits",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.llmRateLimited = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_rate_limited_total",
			Help:      "Total number of rate-limit responses that were retried",
		},
		[]string{"provider"},
	)

	// 循环指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished runs by terminal state",
		},
		[]string{"state"},
	)

	c.runAttempts = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_attempts",
			Help:      "Attempts consumed per finished run",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		},
		[]string{"state"},
	)

	c.attemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of attempts by outcome",
		},
		[]string{"outcome"},
	)

	c.attemptDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Attempt duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	c.stateTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of orchestrator state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// 引擎指标
	c.engineExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_executions_total",
			Help:      "Total number of engine invocations",
		},
		[]string{"status"}, // status: success, failure, timeout
	)

	c.engineExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_execution_duration_seconds",
			Help:      "Engine invocation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	c.sanitizerRulesApplied = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sanitizer_rules_applied_total",
			Help:      "Total number of sanitizer rules that changed a program",
		},
		[]string{"rule"},
	)

	c.validationRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Total number of rejected artifacts by reason",
		},
		[]string{"reason"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录一次生成请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordRateLimited 记录一次限流重试
func (c *Collector) RecordRateLimited(provider string) {
	c.llmRateLimited.WithLabelValues(provider).Inc()
}

// =============================================================================
// 🔁 循环指标记录
// =============================================================================

// RecordRun 记录一次结束的运行
func (c *Collector) RecordRun(state string, attempts int) {
	c.runsTotal.WithLabelValues(state).Inc()
	c.runAttempts.WithLabelValues(state).Observe(float64(attempts))
}

// RecordAttempt 记录一次 attempt 的结果
func (c *Collector) RecordAttempt(outcome string, duration time.Duration) {
	c.attemptsTotal.WithLabelValues(outcome).Inc()
	c.attemptDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordStateTransition 记录状态转换
func (c *Collector) RecordStateTransition(fromState, toState string) {
	c.stateTransitions.WithLabelValues(fromState, toState).Inc()
}

// =============================================================================
// 🎬 引擎 / 清洗 / 校验指标记录
// =============================================================================

// RecordEngineExecution 记录一次引擎调用
func (c *Collector) RecordEngineExecution(succeeded, timedOut bool, duration time.Duration) {
	status := engineStatus(succeeded, timedOut)
	c.engineExecutionsTotal.WithLabelValues(status).Inc()
	c.engineExecutionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordSanitizerRules 记录本次生效的清洗规则
func (c *Collector) RecordSanitizerRules(rules []string) {
	for _, rule := range rules {
		c.sanitizerRulesApplied.WithLabelValues(rule).Inc()
	}
}

// RecordValidationRejections 记录校验拒绝原因
func (c *Collector) RecordValidationRejections(reasons []string) {
	for _, reason := range reasons {
		c.validationRejections.WithLabelValues(reason).Inc()
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func engineStatus(succeeded, timedOut bool) string {
	switch {
	case timedOut:
		return "timeout"
	case succeeded:
		return "success"
	default:
		return "failure"
	}
}
