package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LoopMetrics 通过 OTel Meter 导出重试循环指标，方法集与 agent.Metrics 一致。
// 与 Prometheus Collector 并存时由 agent.CombineMetrics 同时写入。
type LoopMetrics struct {
	transitions metric.Int64Counter
	attempts    metric.Float64Histogram
	runs        metric.Int64Histogram
	llmDuration metric.Float64Histogram
	llmTokens   metric.Int64Counter
	engine      metric.Float64Histogram
	rules       metric.Int64Counter
	rejections  metric.Int64Counter
}

// NewLoopMetrics 在 meter 上创建全部 instrument
func NewLoopMetrics(meter metric.Meter) (*LoopMetrics, error) {
	var (
		m    LoopMetrics
		errs []error
		err  error
	)
	m.transitions, err = meter.Int64Counter("sceneforge.state.transitions",
		metric.WithDescription("Orchestrator state transitions"))
	errs = append(errs, err)
	m.attempts, err = meter.Float64Histogram("sceneforge.attempt.duration",
		metric.WithDescription("Wall-clock time of one attempt"), metric.WithUnit("s"))
	errs = append(errs, err)
	m.runs, err = meter.Int64Histogram("sceneforge.run.attempts",
		metric.WithDescription("Attempts consumed per run"))
	errs = append(errs, err)
	m.llmDuration, err = meter.Float64Histogram("sceneforge.llm.duration",
		metric.WithDescription("Code generation request latency including rate-limit waits"), metric.WithUnit("s"))
	errs = append(errs, err)
	m.llmTokens, err = meter.Int64Counter("sceneforge.llm.tokens",
		metric.WithDescription("Tokens reported by the provider"))
	errs = append(errs, err)
	m.engine, err = meter.Float64Histogram("sceneforge.engine.duration",
		metric.WithDescription("Engine subprocess run time"), metric.WithUnit("s"))
	errs = append(errs, err)
	m.rules, err = meter.Int64Counter("sceneforge.sanitizer.rules",
		metric.WithDescription("Sanitizer rules that changed the program"))
	errs = append(errs, err)
	m.rejections, err = meter.Int64Counter("sceneforge.validation.rejections",
		metric.WithDescription("Artifact validation failures by reason"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LoopMetrics) RecordStateTransition(from, to string) {
	m.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to)))
}

func (m *LoopMetrics) RecordAttempt(outcome string, d time.Duration) {
	m.attempts.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.String("outcome", outcome)))
}

func (m *LoopMetrics) RecordRun(state string, attempts int) {
	m.runs.Record(context.Background(), int64(attempts), metric.WithAttributes(
		attribute.String("state", state)))
}

func (m *LoopMetrics) RecordLLMRequest(provider, model, status string, d time.Duration, promptTokens, completionTokens int) {
	ctx := context.Background()
	m.llmDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("status", status)))
	if promptTokens > 0 {
		m.llmTokens.Add(ctx, int64(promptTokens), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", "prompt")))
	}
	if completionTokens > 0 {
		m.llmTokens.Add(ctx, int64(completionTokens), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", "completion")))
	}
}

func (m *LoopMetrics) RecordEngineExecution(succeeded, timedOut bool, d time.Duration) {
	status := "failure"
	switch {
	case timedOut:
		status = "timeout"
	case succeeded:
		status = "success"
	}
	m.engine.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.String("status", status)))
}

func (m *LoopMetrics) RecordSanitizerRules(rules []string) {
	for _, r := range rules {
		m.rules.Add(context.Background(), 1, metric.WithAttributes(attribute.String("rule", r)))
	}
}

func (m *LoopMetrics) RecordValidationRejections(reasons []string) {
	for _, r := range reasons {
		m.rejections.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", r)))
	}
}
