package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/llmcouncil/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

// restoreGlobals 测试结束后恢复全局 OTel Provider
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func inMemory() (*tracetest.InMemoryExporter, *sdkmetric.ManualReader, Exporters) {
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	return spans, reader, Exporters{Spans: spans, Metrics: reader}
}

// ---------------------------------------------------------------------------
// Init
// ---------------------------------------------------------------------------

func TestInit_Disabled(t *testing.T) {
	restoreGlobals(t)

	p, err := Init(config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.mp)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_EnabledCreatesOTLPExporters(t *testing.T) {
	restoreGlobals(t)

	// gRPC 连接是惰性的，没有 collector 也能创建
	p, err := Init(config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "llmcouncil-test",
		SampleRate:   1.0,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, tpIsSDK)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NotPanics(t, func() { _ = p.Shutdown(ctx) })
}

func TestInitWithExporters_RequiresBoth(t *testing.T) {
	_, err := InitWithExporters(config.TelemetryConfig{Enabled: true}, Exporters{}, nil)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Tracer / Meter
// ---------------------------------------------------------------------------

func TestProviders_ExportsCouncilSpans(t *testing.T) {
	restoreGlobals(t)
	spans, _, exp := inMemory()

	p, err := InitWithExporters(config.TelemetryConfig{
		Enabled:     true,
		ServiceName: "llmcouncil-test",
		SampleRate:  1.0,
	}, exp, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, run := p.Tracer().Start(context.Background(), "council.run")
	_, stage := p.Tracer().Start(ctx, "council.stage")
	stage.End()
	run.End()

	// Shutdown 刷出 batcher 中的 span
	require.NoError(t, p.Shutdown(context.Background()))

	got := spans.GetSpans()
	require.Len(t, got, 2)
	assert.Equal(t, "council.stage", got[0].Name)
	assert.Equal(t, "council.run", got[1].Name)
	assert.Equal(t, got[1].SpanContext.SpanID(), got[0].Parent.SpanID())
	assert.Equal(t, InstrumentationName, got[0].InstrumentationScope.Name)
}

func TestProviders_MeterFeedsRecorder(t *testing.T) {
	restoreGlobals(t)
	_, reader, exp := inMemory()

	p, err := InitWithExporters(config.TelemetryConfig{Enabled: true, SampleRate: 1.0}, exp, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	rec, err := NewMeterRecorder(p.Meter())
	require.NoError(t, err)
	rec.RecordDeliberation("completed", time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)
	assert.Equal(t, InstrumentationName, rm.ScopeMetrics[0].Scope.Name)
}

func TestProviders_NilAndDisabledFallBack(t *testing.T) {
	restoreGlobals(t)

	var nilProviders *Providers
	assert.False(t, nilProviders.Enabled())
	assert.NotNil(t, nilProviders.Tracer())
	assert.NotNil(t, nilProviders.Meter())
	assert.NoError(t, nilProviders.Shutdown(context.Background()))

	p, err := Init(config.TelemetryConfig{}, nil)
	require.NoError(t, err)
	_, span := p.Tracer().Start(context.Background(), "council.run")
	span.End()
}

func TestBuildVersion(t *testing.T) {
	// 测试二进制中 ReadBuildInfo 返回 (devel)
	assert.Equal(t, "dev", buildVersion())
}
