// =============================================================================
// llmcouncil OpenTelemetry SDK Initialization
// =============================================================================
// 审议流水线的 span（council.run / council.stage / council.invoke）与 OTel 指标
// 通过这里创建的 Provider 导出。禁用时不创建任何 exporter，全局 Provider 保持 noop。
// =============================================================================

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/BaSui01/llmcouncil/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InstrumentationName 审议核心使用的 tracer / meter 名称
const InstrumentationName = "github.com/BaSui01/llmcouncil/council"

// Providers 持有 SDK 的 TracerProvider 与 MeterProvider。
// 禁用时两者均为 nil，Tracer/Meter 回退到全局 Provider，Shutdown 为空操作。
type Providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Exporters 指定 span 导出器与指标 Reader，测试中可替换为内存实现
type Exporters struct {
	Spans   sdktrace.SpanExporter
	Metrics sdkmetric.Reader
}

// Init 按配置初始化 OTel SDK，使用 OTLP gRPC 导出
func Init(cfg config.TelemetryConfig, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("telemetry disabled, using noop providers")
		return &Providers{}, nil
	}

	exp, err := otlpExporters(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	return InitWithExporters(cfg, exp, logger)
}

// InitWithExporters 使用给定导出器初始化 SDK 并注册为全局 Provider
func InitWithExporters(cfg config.TelemetryConfig, exp Exporters, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exp.Spans == nil || exp.Metrics == nil {
		return nil, errors.New("telemetry: span exporter and metric reader are required")
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	p := &Providers{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp.Spans),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		),
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exp.Metrics),
			sdkmetric.WithResource(res),
		),
	}

	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sample_rate", cfg.SampleRate),
	)
	return p, nil
}

func otlpExporters(ctx context.Context, endpoint string) (Exporters, error) {
	spans, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return Exporters{}, fmt.Errorf("create trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return Exporters{}, fmt.Errorf("create metric exporter: %w", err)
	}
	return Exporters{Spans: spans, Metrics: sdkmetric.NewPeriodicReader(metrics)}, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(buildVersion()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}
	return res, nil
}

// Enabled 是否创建了 SDK Provider
func (p *Providers) Enabled() bool {
	return p != nil && p.tp != nil
}

// Tracer 返回审议 tracer；未启用时回退到全局 Provider
func (p *Providers) Tracer() trace.Tracer {
	if p.Enabled() {
		return p.tp.Tracer(InstrumentationName)
	}
	return otel.GetTracerProvider().Tracer(InstrumentationName)
}

// Meter 返回审议 meter
func (p *Providers) Meter() metric.Meter {
	if p != nil && p.mp != nil {
		return p.mp.Meter(InstrumentationName)
	}
	return otel.GetMeterProvider().Meter(InstrumentationName)
}

// Shutdown 刷出未导出的 span / 指标并关闭导出器
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildVersion 从构建信息读取模块版本，取不到时为 "dev"
func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
