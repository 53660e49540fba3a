package council

import "sort"

// Aggregate 合并所有评审的排名（自评照常计入）。
//
// 名次为标签在该评审排名中的位置（从 1 开始，只计本轮已知且首次出现的标签）；
// 未被某评审提及的标签不从该评审获得任何票。结果按平均名次升序，
// 平均名次相同按票数降序，再按标签字典序。
func Aggregate(submissions []RankingSubmission, labels *AnonymizationMap) AggregateRanking {
	return AggregateWithPolicy(submissions, labels, SelfVoteCount)
}

// AggregateWithPolicy 与 Aggregate 相同，但可以剔除评审者对自己回答的投票
func AggregateWithPolicy(submissions []RankingSubmission, labels *AnonymizationMap, policy SelfVotePolicy) AggregateRanking {
	type tally struct {
		sum   int
		votes int
	}
	tallies := make(map[string]*tally)

	for _, sub := range submissions {
		own, _ := labels.LabelOf(sub.EvaluatorID)
		seen := make(map[string]bool, len(sub.ParsedOrder))
		pos := 0
		for _, label := range sub.ParsedOrder {
			if seen[label] || !labels.Contains(label) {
				continue
			}
			seen[label] = true
			if policy == SelfVoteExclude && label == own {
				continue
			}
			pos++
			t, ok := tallies[label]
			if !ok {
				t = &tally{}
				tallies[label] = t
			}
			t.sum += pos
			t.votes++
		}
	}

	out := make(AggregateRanking, 0, len(tallies))
	for label, t := range tallies {
		memberID, _ := labels.Resolve(label)
		out = append(out, AggregateEntry{
			Label:     label,
			MemberID:  memberID,
			MeanRank:  float64(t.sum) / float64(t.votes),
			VoteCount: t.votes,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanRank != out[j].MeanRank {
			return out[i].MeanRank < out[j].MeanRank
		}
		if out[i].VoteCount != out[j].VoteCount {
			return out[i].VoteCount > out[j].VoteCount
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// UnrankedLabels 返回本轮没有获得任何票的标签（按分配顺序）
func UnrankedLabels(agg AggregateRanking, labels *AnonymizationMap) []string {
	ranked := make(map[string]bool, len(agg))
	for _, e := range agg {
		ranked[e.Label] = true
	}
	var out []string
	for _, label := range labels.Labels() {
		if !ranked[label] {
			out = append(out, label)
		}
	}
	return out
}
