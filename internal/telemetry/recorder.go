package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterRecorder records deliberation metrics through an OTel meter, so they
// reach the OTLP collector alongside traces.
type MeterRecorder struct {
	deliberations metric.Int64Counter
	deliberationS metric.Float64Histogram
	stageS        metric.Float64Histogram
	transitions   metric.Int64Counter
	invocations   metric.Int64Counter
	invocationS   metric.Float64Histogram
	promptTokens  metric.Int64Counter
	rankingParses metric.Int64Counter
}

// NewMeterRecorder creates all instruments on meter.
func NewMeterRecorder(meter metric.Meter) (*MeterRecorder, error) {
	r := &MeterRecorder{}
	var err error

	if r.deliberations, err = meter.Int64Counter("council.deliberations",
		metric.WithDescription("Deliberations by outcome")); err != nil {
		return nil, err
	}
	if r.deliberationS, err = meter.Float64Histogram("council.deliberation.duration",
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.stageS, err = meter.Float64Histogram("council.stage.duration",
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.transitions, err = meter.Int64Counter("council.state.transitions"); err != nil {
		return nil, err
	}
	if r.invocations, err = meter.Int64Counter("council.member.invocations"); err != nil {
		return nil, err
	}
	if r.invocationS, err = meter.Float64Histogram("council.member.invocation.duration",
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.promptTokens, err = meter.Int64Counter("council.prompt.tokens"); err != nil {
		return nil, err
	}
	if r.rankingParses, err = meter.Int64Counter("council.ranking.parses"); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MeterRecorder) RecordDeliberation(outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.deliberations.Add(context.Background(), 1, attrs)
	r.deliberationS.Record(context.Background(), d.Seconds(), attrs)
}

func (r *MeterRecorder) RecordStage(stage string, d time.Duration) {
	r.stageS.Record(context.Background(), d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

func (r *MeterRecorder) RecordTransition(from, to string) {
	r.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (r *MeterRecorder) RecordInvocation(round, status string, d time.Duration) {
	r.invocations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("round", round),
		attribute.String("status", status),
	))
	r.invocationS.Record(context.Background(), d.Seconds(), metric.WithAttributes(attribute.String("round", round)))
}

func (r *MeterRecorder) RecordPromptTokens(round string, tokens int) {
	r.promptTokens.Add(context.Background(), int64(tokens), metric.WithAttributes(attribute.String("round", round)))
}

func (r *MeterRecorder) RecordParse(strategy string) {
	r.rankingParses.Add(context.Background(), 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}
