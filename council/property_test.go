package council

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestProperty_Anonymize_Bijection 对任意成功的回答集合，resolve(label_of(m)) == m
func TestProperty_Anonymize_Bijection(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 60).Draw(rt, "n")
		responses := make([]ModelResponse, n)
		succeeded := 0
		for i := range responses {
			id := fmt.Sprintf("member-%d", i)
			if rapid.Bool().Draw(rt, fmt.Sprintf("ok_%d", i)) {
				responses[i] = ok(id, "answer")
				succeeded++
			} else {
				responses[i] = failed(id)
			}
		}

		m := Anonymize(responses)
		require.Equal(rt, succeeded, m.Len())

		seen := make(map[string]bool)
		for _, r := range responses {
			label, found := m.LabelOf(r.MemberID)
			if !r.Succeeded {
				assert.False(rt, found, "failed member %s must not be labeled", r.MemberID)
				continue
			}
			require.True(rt, found)
			assert.False(rt, seen[label], "label %s assigned twice", label)
			seen[label] = true

			id, resolved := m.Resolve(label)
			require.True(rt, resolved)
			assert.Equal(rt, r.MemberID, id)
		}
	})
}

// TestProperty_Anonymize_Deterministic 相同输入总是得到相同的标签分配
func TestProperty_Anonymize_Deterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,8}/[a-z0-9-]{1,12}`), 1, 30, rapid.ID[string]).Draw(rt, "ids")
		responses := make([]ModelResponse, len(ids))
		for i, id := range ids {
			responses[i] = ok(id, "x")
		}

		first := Anonymize(responses)
		second := Anonymize(responses)
		assert.Equal(rt, first.Labels(), second.Labels())
		assert.Equal(rt, first.LabelToMember(), second.LabelToMember())

		// 标签顺序即输入顺序
		for i, id := range ids {
			label, _ := first.LabelOf(id)
			assert.Equal(rt, LabelFor(i), label)
		}
	})
}

// TestProperty_Parser_NeverReturnsForeignLabels 任意文本（包括伪造的标签）都不会产生非法标签
func TestProperty_Parser_NeverReturnsForeignLabels(t *testing.T) {
	p := NewParser("")
	fragments := []string{
		"FINAL RANKING:", "final ranking:", "\n", "1. ", "2) ", "- ", "**", " ",
		"Response A", "Response B", "Response C", "Response D", "Response AA", "Response Z",
		"response a", "ResponseA", "Response", "A", "better than", ".",
	}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "valid")
		valid := make([]string, n)
		for i := range valid {
			valid[i] = LabelFor(i)
		}
		validSet := make(map[string]bool, n)
		for _, v := range valid {
			validSet[v] = true
		}

		parts := rapid.SliceOfN(rapid.SampledFrom(fragments), 0, 40).Draw(rt, "parts")
		noise := rapid.String().Draw(rt, "noise")
		raw := strings.Join(parts, "") + noise

		out := p.ParseDetailed(raw, valid)
		require.NotNil(rt, out.Order)
		seen := make(map[string]bool)
		for _, label := range out.Order {
			assert.True(rt, validSet[label], "foreign label %q", label)
			assert.False(rt, seen[label], "duplicate label %q", label)
			seen[label] = true
		}
		if len(out.Order) == 0 {
			assert.Equal(rt, ParseNone, out.Strategy)
		}
	})
}

// TestProperty_Parser_StrictRoundTrip 规范格式的排名总能被严格模式完整解析
func TestProperty_Parser_StrictRoundTrip(t *testing.T) {
	p := NewParser("")
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		valid := make([]string, n)
		for i := range valid {
			valid[i] = LabelFor(i)
		}
		order := rapid.Permutation(valid).Draw(rt, "order")

		var b strings.Builder
		b.WriteString("Some evaluation text mentioning Response A.\n\nFINAL RANKING:\n")
		for i, label := range order {
			fmt.Fprintf(&b, "%d. %s\n", i+1, label)
		}

		out := p.ParseDetailed(b.String(), valid)
		assert.Equal(rt, ParseStrict, out.Strategy)
		assert.Equal(rt, order, out.Order)
	})
}

// TestProperty_Parser_InlineRankingKeepsEveryLabel 写在一行里的排名不会丢票
func TestProperty_Parser_InlineRankingKeepsEveryLabel(t *testing.T) {
	p := NewParser("")
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 12).Draw(rt, "n")
		valid := make([]string, n)
		for i := range valid {
			valid[i] = LabelFor(i)
		}
		order := rapid.Permutation(valid).Draw(rt, "order")
		sep := rapid.SampledFrom([]string{" ", " > ", ", "}).Draw(rt, "sep")

		items := make([]string, len(order))
		for i, label := range order {
			items[i] = fmt.Sprintf("%d. %s", i+1, label)
		}
		raw := "FINAL RANKING: " + strings.Join(items, sep)

		out := p.ParseDetailed(raw, valid)
		assert.Equal(rt, order, out.Order)
		assert.Equal(rt, ParseFallback, out.Strategy)
	})
}

// genSubmissions 生成 6 份随机排名，允许重复与缺失的标签
func genSubmissions(labels []string) gopter.Gen {
	return gen.SliceOfN(6, gen.SliceOf(gen.IntRange(0, len(labels)-1))).Map(func(idx [][]int) []RankingSubmission {
		subs := make([]RankingSubmission, len(idx))
		for i, picks := range idx {
			order := make([]string, 0, len(picks))
			for _, p := range picks {
				order = append(order, labels[p])
			}
			subs[i] = RankingSubmission{EvaluatorID: fmt.Sprintf("member-%d", i), ParsedOrder: order}
		}
		return subs
	})
}

// TestProperty_Aggregate_PermutationInvariant 打乱提交列表的顺序不改变聚合结果
func TestProperty_Aggregate_PermutationInvariant(t *testing.T) {
	labels := labelsFor("member-0", "member-1", "member-2", "member-3")
	valid := labels.Labels()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("aggregate is independent of submission order", prop.ForAll(
		func(subs []RankingSubmission, seed int64) bool {
			shuffled := make([]RankingSubmission, len(subs))
			copy(shuffled, subs)
			// 确定性的 Fisher-Yates，由 seed 驱动
			s := uint64(seed)
			for i := len(shuffled) - 1; i > 0; i-- {
				s = s*6364136223846793005 + 1442695040888963407
				j := int(s>>33) % (i + 1)
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			}

			for _, policy := range []SelfVotePolicy{SelfVoteCount, SelfVoteExclude} {
				a := AggregateWithPolicy(subs, labels, policy)
				b := AggregateWithPolicy(shuffled, labels, policy)
				if !reflect.DeepEqual(a, b) {
					t.Logf("policy %s: %v != %v", policy, a, b)
					return false
				}
			}
			return true
		},
		genSubmissions(valid),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// TestProperty_Aggregate_Unanimous 一致的排名 [A, B, C] 得到名次 1, 2, 3 且票数等于提交数
func TestProperty_Aggregate_Unanimous(t *testing.T) {
	labels := labelsFor("a", "b", "c")
	unanimous := []string{"Response A", "Response B", "Response C"}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("unanimous rankings aggregate to the same order", prop.ForAll(
		func(n int) bool {
			subs := make([]RankingSubmission, n)
			for i := range subs {
				subs[i] = RankingSubmission{EvaluatorID: fmt.Sprintf("e%d", i), ParsedOrder: unanimous}
			}
			agg := Aggregate(subs, labels)
			if len(agg) != 3 {
				return false
			}
			for i, e := range agg {
				if e.Label != unanimous[i] || e.MeanRank != float64(i+1) || e.VoteCount != n {
					t.Logf("entry %d: %+v", i, e)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

// TestProperty_Aggregate_CoversExactlyRankedLabels 聚合结果恰好覆盖至少被一位评审提及的标签
func TestProperty_Aggregate_CoversExactlyRankedLabels(t *testing.T) {
	labels := labelsFor("member-0", "member-1", "member-2", "member-3")
	valid := labels.Labels()

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("aggregate labels equal the union of parsed orders", prop.ForAll(
		func(subs []RankingSubmission) bool {
			want := make(map[string]bool)
			for _, s := range subs {
				for _, l := range s.ParsedOrder {
					want[l] = true
				}
			}
			agg := Aggregate(subs, labels)
			got := make(map[string]bool, len(agg))
			for _, e := range agg {
				if got[e.Label] {
					return false
				}
				got[e.Label] = true
			}
			if !reflect.DeepEqual(want, got) {
				return false
			}
			return len(UnrankedLabels(agg, labels))+len(agg) == len(valid)
		},
		genSubmissions(valid),
	))

	properties.TestingRun(t)
}
