package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/sceneforge/config"
)

// keepGlobals 测试结束时恢复全局 provider
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func enabledConfig() config.TelemetryConfig {
	cfg := config.DefaultTelemetryConfig()
	cfg.Enabled = true
	cfg.ServiceName = "sceneforge-test"
	return cfg
}

func shutdown(t *testing.T, p *Providers) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx) // 没有 collector，忽略导出错误
	})
}

func TestInit_Disabled(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	p, err := Init(config.TelemetryConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Same(t, before, otel.GetTracerProvider(), "globals untouched")

	lm, err := p.LoopMetrics()
	require.NoError(t, err)
	assert.Nil(t, lm)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	keepGlobals(t)

	p, err := Init(enabledConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	shutdown(t, p)

	assert.True(t, p.Enabled())
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
	_, ok = otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, ok)

	lm, err := p.LoopMetrics()
	require.NoError(t, err)
	assert.NotNil(t, lm)
}

func TestShutdown_Nil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, p.Enabled())
}

func TestBuildVersion(t *testing.T) {
	// 测试二进制的主模块版本为 (devel)
	assert.Equal(t, "dev", BuildVersion())
}

func TestTracer_UsesGlobalProvider(t *testing.T) {
	keepGlobals(t)

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	_, span := Tracer().Start(context.Background(), "sceneforge.run")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "sceneforge.run", ended[0].Name())
	assert.Equal(t, InstrumentationName, ended[0].InstrumentationScope().Name)
}

// ---------------------------------------------------------------------------
// LoopMetrics
// ---------------------------------------------------------------------------

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumWhere(t *testing.T, data metricdata.Aggregation, key, value string) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "%T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestLoopMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewLoopMetrics(mp.Meter("test"))
	require.NoError(t, err)

	m.RecordStateTransition("GENERATE", "PATCH")
	m.RecordStateTransition("GENERATE", "PATCH")
	m.RecordAttempt("rejected", 2*time.Second)
	m.RecordAttempt("accepted", time.Second)
	m.RecordRun("ACCEPTED", 2)
	m.RecordLLMRequest("mistral", "codestral-latest", "success", 3*time.Second, 120, 800)
	m.RecordEngineExecution(false, true, 5*time.Second)
	m.RecordSanitizerRules([]string{"strip-fences", "render-filepath"})
	m.RecordValidationRejections([]string{"insufficient-water", "insufficient-water"})

	data := collect(t, reader)

	assert.Equal(t, int64(2), sumWhere(t, data["sceneforge.state.transitions"], "to", "PATCH"))
	assert.Equal(t, int64(120), sumWhere(t, data["sceneforge.llm.tokens"], "kind", "prompt"))
	assert.Equal(t, int64(800), sumWhere(t, data["sceneforge.llm.tokens"], "kind", "completion"))
	assert.Equal(t, int64(1), sumWhere(t, data["sceneforge.sanitizer.rules"], "rule", "strip-fences"))
	assert.Equal(t, int64(2), sumWhere(t, data["sceneforge.validation.rejections"], "reason", "insufficient-water"))

	attempts, ok := data["sceneforge.attempt.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range attempts.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)

	engine, ok := data["sceneforge.engine.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, engine.DataPoints, 1)
	status, _ := engine.DataPoints[0].Attributes.Value("status")
	assert.Equal(t, "timeout", status.AsString())

	runs, ok := data["sceneforge.run.attempts"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, runs.DataPoints, 1)
	assert.Equal(t, int64(2), runs.DataPoints[0].Sum)
}
