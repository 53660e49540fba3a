package metrics

import (
	"strings"
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
	return NewCollectorWithRegistry(reg, "test", zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollectorWithRegistry(t *testing.T) {
	c, _ := newTestCollector(t)

	assert.NotNil(t, c.deliberationsTotal)
	assert.NotNil(t, c.stageDuration)
	assert.NotNil(t, c.memberInvocationsTotal)
	assert.NotNil(t, c.rankingParses)
	assert.NotNil(t, c.llmRequestsTotal)
	assert.NotNil(t, c.dbQueryDuration)
}

func TestNewCollectorWithRegistry_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollectorWithRegistry(prometheus.NewRegistry(), "test", nil)
	})
}

func TestCollector_RecordDeliberation(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordDeliberation("completed", 3*time.Second)
	c.RecordDeliberation("completed", 2*time.Second)
	c.RecordDeliberation("synthesis_failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.deliberationsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliberationsTotal.WithLabelValues("synthesis_failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.deliberationDuration))
}

func TestCollector_RecordStageAndTransition(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordStage("stage1", 500*time.Millisecond)
	c.RecordStage("stage2", 700*time.Millisecond)
	c.RecordTransition("created", "stage1_complete")
	c.RecordTransition("stage1_complete", "stage2_complete")
	c.RecordTransition("created", "stage1_complete")

	assert.Equal(t, 2, testutil.CollectAndCount(c.stageDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.stateTransitions.WithLabelValues("created", "stage1_complete")))
}

func TestCollector_RecordInvocation(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordInvocation("stage1", "success", 100*time.Millisecond)
	c.RecordInvocation("stage1", "failure", 50*time.Millisecond)
	c.RecordInvocation("stage2", "success", 80*time.Millisecond)
	c.RecordPromptTokens("stage1", 120)
	c.RecordPromptTokens("stage1", 30)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.memberInvocationsTotal.WithLabelValues("stage1", "failure")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.memberInvocationsTotal))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.promptTokens.WithLabelValues("stage1")))
}

func TestCollector_RecordParse(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordParse("strict")
	c.RecordParse("strict")
	c.RecordParse("fallback")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rankingParses.WithLabelValues("strict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rankingParses.WithLabelValues("fallback")))
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordLLMRequest("openai", "gpt-5", "success", 500*time.Millisecond, 100, 50)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("openai", "gpt-5", "success")))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("openai", "gpt-5", "prompt")))
	assert.Equal(t, 50.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("openai", "gpt-5", "completion")))
}

func TestCollector_RecordDBQuery(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordDBQuery("save", 2*time.Millisecond)
	c.RecordDBQuery("list", time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(c.dbQueryDuration))
}

func TestCollector_ExpositionNames(t *testing.T) {
	c, reg := newTestCollector(t)
	c.RecordDeliberation("completed", time.Second)

	expected := `
# HELP test_deliberations_total Total number of deliberations by outcome
# TYPE test_deliberations_total counter
test_deliberations_total{outcome="completed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_deliberations_total"))
}
