package agent

import (
	"context"
	"time"

	"github.com/BaSui01/sceneforge/agent/artifacts"
	"github.com/BaSui01/sceneforge/agent/execution"
	"github.com/BaSui01/sceneforge/agent/feedback"
	"github.com/BaSui01/sceneforge/agent/generator"
	"github.com/BaSui01/sceneforge/agent/sanitizer"
	"github.com/BaSui01/sceneforge/agent/validation"
)

// Generator 代码生成客户端。*generator.Client 实现此接口。
type Generator interface {
	Generate(ctx context.Context, conv *generator.Conversation, prompt string) (*generator.Result, error)
}

// Sanitizer 代码清洗。*sanitizer.Sanitizer 实现此接口。
type Sanitizer interface {
	Apply(raw string) sanitizer.Result
}

// Executor 引擎执行。*execution.Supervisor 实现此接口。
type Executor interface {
	Execute(ctx context.Context, programPath string) (*execution.Result, error)
}

// Validator 产物校验。*validation.Validator 实现此接口。
type Validator interface {
	Validate(ctx context.Context, paths []string) (*validation.Verdict, error)
}

// Synthesizer 反馈合成。*feedback.Synthesizer 实现此接口。
type Synthesizer interface {
	Synthesize(prompt string, in feedback.Input) feedback.Result
}

// Archiver 每次 attempt 的归档。*artifacts.Archiver 实现此接口。
type Archiver interface {
	Archive(ctx context.Context, snap artifacts.Snapshot) (*artifacts.Manifest, error)
}

// Metrics 循环指标。*metrics.Collector 实现此接口。
type Metrics interface {
	RecordStateTransition(fromState, toState string)
	RecordAttempt(outcome string, duration time.Duration)
	RecordRun(state string, attempts int)
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
	RecordEngineExecution(succeeded, timedOut bool, duration time.Duration)
	RecordSanitizerRules(rules []string)
	RecordValidationRejections(reasons []string)
}

type nopMetrics struct{}

func (nopMetrics) RecordStateTransition(string, string) {}
func (nopMetrics) RecordAttempt(string, time.Duration) {}
func (nopMetrics) RecordRun(string, int) {}
func (nopMetrics) RecordLLMRequest(string, string, string, time.Duration, int, int) {}
func (nopMetrics) RecordEngineExecution(bool, bool, time.Duration) {}
func (nopMetrics) RecordSanitizerRules([]string) {}
func (nopMetrics) RecordValidationRejections([]string) {}

// CombineMetrics 把同一事件写入多个 Metrics，nil 项被忽略
func CombineMetrics(ms ...Metrics) Metrics {
	var out multiMetrics
	for _, m := range ms {
		if m != nil {
			out = append(out, m)
		}
	}
	switch len(out) {
	case 0:
		return nopMetrics{}
	case 1:
		return out[0]
	}
	return out
}

type multiMetrics []Metrics

func (mm multiMetrics) RecordStateTransition(from, to string) {
	for _, m := range mm {
		m.RecordStateTransition(from, to)
	}
}

func (mm multiMetrics) RecordAttempt(outcome string, d time.Duration) {
	for _, m := range mm {
		m.RecordAttempt(outcome, d)
	}
}

func (mm multiMetrics) RecordRun(state string, attempts int) {
	for _, m := range mm {
		m.RecordRun(state, attempts)
	}
}

func (mm multiMetrics) RecordLLMRequest(provider, model, status string, d time.Duration, promptTokens, completionTokens int) {
	for _, m := range mm {
		m.RecordLLMRequest(provider, model, status, d, promptTokens, completionTokens)
	}
}

func (mm multiMetrics) RecordEngineExecution(succeeded, timedOut bool, d time.Duration) {
	for _, m := range mm {
		m.RecordEngineExecution(succeeded, timedOut, d)
	}
}

func (mm multiMetrics) RecordSanitizerRules(rules []string) {
	for _, m := range mm {
		m.RecordSanitizerRules(rules)
	}
}

func (mm multiMetrics) RecordValidationRejections(reasons []string) {
	for _, m := range mm {
		m.RecordValidationRejections(reasons)
	}
}
