package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("sceneforge", reg, zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector, _ := newTestCollector(t)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.runsTotal)
	assert.NotNil(t, collector.engineExecutionsTotal)
	assert.NotNil(t, collector.validationRejections)
}

func TestNewCollector_NilRegistererUsesDefault(t *testing.T) {
	// 默认 Registry 是进程级的，重复注册同名指标会 panic，这里只注册一次
	assert.NotPanics(t, func() { NewCollector("sceneforge_default_test", nil, nil) })
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordLLMRequest("mistral", "codestral-latest", "success", 2*time.Second, 1200, 800)
	collector.RecordLLMRequest("mistral", "codestral-latest", "success", time.Second, 100, 50)
	collector.RecordRateLimited("mistral")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("mistral", "codestral-latest", "success")))
	assert.Equal(t, 1300.0, testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("mistral", "codestral-latest", "prompt")))
	assert.Equal(t, 850.0, testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("mistral", "codestral-latest", "completion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.llmRateLimited.WithLabelValues("mistral")))
}

func TestCollector_RecordLoop(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordStateTransition("GENERATE", "PATCH")
	collector.RecordStateTransition("GENERATE", "PATCH")
	collector.RecordAttempt("rejected", 30*time.Second)
	collector.RecordAttempt("accepted", 20*time.Second)
	collector.RecordRun("ACCEPTED", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.stateTransitions.WithLabelValues("GENERATE", "PATCH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.attemptsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.runsTotal.WithLabelValues("ACCEPTED")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.runAttempts))
}

func TestCollector_RecordEngineExecution(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordEngineExecution(true, false, 10*time.Second)
	collector.RecordEngineExecution(false, false, time.Second)
	collector.RecordEngineExecution(false, true, 10*time.Minute)

	for _, status := range []string{"success", "failure", "timeout"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(collector.engineExecutionsTotal.WithLabelValues(status)), status)
	}
}

func TestCollector_RecordSanitizerAndValidation(t *testing.T) {
	collector, reg := newTestCollector(t)

	collector.RecordSanitizerRules([]string{"strip", "output-path"})
	collector.RecordValidationRejections([]string{"uniform-image", "object-overlap", "uniform-image"})

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.validationRejections.WithLabelValues("uniform-image")))

	expected := `
# HELP sceneforge_sanitizer_rules_applied_total Total number of sanitizer rules that changed a program
# TYPE sceneforge_sanitizer_rules_applied_total counter
sceneforge_sanitizer_rules_applied_total{rule="output-path"} 1
sceneforge_sanitizer_rules_applied_total{rule="strip"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sceneforge_sanitizer_rules_applied_total"))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordLLMRequest("openai", "gpt-4o", "success", 500*time.Millisecond, 100, 50)
			collector.RecordAttempt("rejected", time.Second)
			collector.RecordStateTransition("VALIDATE", "FEEDBACK")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("openai", "gpt-4o", "success")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.stateTransitions.WithLabelValues("VALIDATE", "FEEDBACK")))
}

func TestEngineStatus(t *testing.T) {
	assert.Equal(t, "timeout", engineStatus(false, true))
	assert.Equal(t, "success", engineStatus(true, false))
	assert.Equal(t, "failure", engineStatus(false, false))
}
