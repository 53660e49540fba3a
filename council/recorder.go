package council

import "time"

// Recorder 审议指标接口。
// internal/metrics.Collector (Prometheus) 与 internal/telemetry.MeterRecorder (OTel) 都实现了它。
type Recorder interface {
	RecordDeliberation(outcome string, duration time.Duration)
	RecordStage(stage string, duration time.Duration)
	RecordTransition(from, to string)
	RecordInvocation(round, status string, duration time.Duration)
	RecordPromptTokens(round string, tokens int)
	RecordParse(strategy string)
}

// TokenCounter 估算提示词 token 数，通常为 tokenizer.Registry.CountTokens
type TokenCounter func(model, text string) int

type nopRecorder struct{}

func (nopRecorder) RecordDeliberation(string, time.Duration)       {}
func (nopRecorder) RecordStage(string, time.Duration)              {}
func (nopRecorder) RecordTransition(string, string)                {}
func (nopRecorder) RecordInvocation(string, string, time.Duration) {}
func (nopRecorder) RecordPromptTokens(string, int)                 {}
func (nopRecorder) RecordParse(string)                             {}

// MultiRecorder 把指标分发给多个 Recorder
type MultiRecorder []Recorder

// NewMultiRecorder 忽略 nil 项
func NewMultiRecorder(recorders ...Recorder) MultiRecorder {
	out := make(MultiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m MultiRecorder) RecordDeliberation(outcome string, d time.Duration) {
	for _, r := range m {
		r.RecordDeliberation(outcome, d)
	}
}

func (m MultiRecorder) RecordStage(stage string, d time.Duration) {
	for _, r := range m {
		r.RecordStage(stage, d)
	}
}

func (m MultiRecorder) RecordTransition(from, to string) {
	for _, r := range m {
		r.RecordTransition(from, to)
	}
}

func (m MultiRecorder) RecordInvocation(round, status string, d time.Duration) {
	for _, r := range m {
		r.RecordInvocation(round, status, d)
	}
}

func (m MultiRecorder) RecordPromptTokens(round string, tokens int) {
	for _, r := range m {
		r.RecordPromptTokens(round, tokens)
	}
}

func (m MultiRecorder) RecordParse(strategy string) {
	for _, r := range m {
		r.RecordParse(strategy)
	}
}
