package council

import (
	"fmt"
	"strings"
)

// LabeledResponse 第二轮提示词中的一条匿名回答
type LabeledResponse struct {
	Label   string
	Content string
}

// AttributedResponse 第三轮提示词中的一条已还原身份的回答
type AttributedResponse struct {
	Label    string
	MemberID string
	Content  string
}

// Stage1Prompt 第一轮：独立作答，附带调用方提供的上下文
func Stage1Prompt(query string, evidence []Evidence) string {
	if len(evidence) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString("Use the following context if it is relevant to the question.\n\n")
	for i, ev := range evidence {
		if ev.Source != "" {
			fmt.Fprintf(&b, "[Context %d: %s]\n", i+1, ev.Source)
		} else {
			fmt.Fprintf(&b, "[Context %d]\n", i+1)
		}
		b.WriteString(strings.TrimSpace(ev.Content))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

// RankingPrompt 第二轮：只包含标签与内容，不包含任何成员身份
func RankingPrompt(query string, responses []LabeledResponse, header string) string {
	if header == "" {
		header = DefaultRankingHeader
	}

	var b strings.Builder
	b.WriteString("You are evaluating different responses to the following question:\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	b.WriteString("Here are the responses from different models (anonymized):\n\n")
	for _, r := range responses {
		fmt.Fprintf(&b, "%s:\n%s\n\n", r.Label, strings.TrimSpace(r.Content))
	}

	b.WriteString("Your task:\n")
	b.WriteString("1. Evaluate each response individually. For each one, explain what it does well and what it does poorly.\n")
	b.WriteString("2. Then, at the very end of your answer, provide a final ranking.\n\n")
	b.WriteString("IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:\n")
	fmt.Fprintf(&b, "- Start with the line \"%s\" (all caps, with colon)\n", header)
	b.WriteString("- Then list the responses from best to worst as a numbered list\n")
	b.WriteString("- Each line should be: number, period, space, then ONLY the response label (e.g., \"1. Response A\")\n")
	b.WriteString("- Do not add any other text or explanations in the ranking section\n\n")
	b.WriteString("Example of the correct format for your ENTIRE response:\n\n")
	b.WriteString("Response A provides good detail on X but misses Y...\n")
	b.WriteString("Response B is accurate but lacks depth on Z...\n\n")
	b.WriteString(header)
	b.WriteString("\n")
	for i := range responses {
		fmt.Fprintf(&b, "%d. %s\n", i+1, exampleLabel(responses, i))
	}
	b.WriteString("\nNow provide your evaluation and ranking:")
	return b.String()
}

// 示例排名使用倒序标签，避免暗示真实顺序
func exampleLabel(responses []LabeledResponse, i int) string {
	return responses[len(responses)-1-i].Label
}

// ChairmanPrompt 第三轮：原始问题、还原身份的回答以及聚合排名
func ChairmanPrompt(query string, responses []AttributedResponse, ranking AggregateRanking) string {
	var b strings.Builder
	b.WriteString("You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, ")
	b.WriteString("and then ranked each other's responses.\n\n")
	fmt.Fprintf(&b, "Original Question: %s\n\n", query)

	b.WriteString("STAGE 1 - Individual Responses:\n\n")
	for _, r := range responses {
		fmt.Fprintf(&b, "Model: %s (%s)\nResponse: %s\n\n", r.MemberID, r.Label, strings.TrimSpace(r.Content))
	}

	b.WriteString("STAGE 2 - Aggregate Peer Ranking (best first):\n\n")
	if len(ranking) == 0 {
		b.WriteString("No usable peer rankings were produced. Judge the responses on their own merits.\n\n")
	} else {
		for i, e := range ranking {
			fmt.Fprintf(&b, "%d. %s (mean rank %.2f, %d votes)\n", i+1, e.MemberID, e.MeanRank, e.VoteCount)
		}
		b.WriteString("\n")
	}

	b.WriteString("Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer ")
	b.WriteString("to the user's original question. Consider the individual responses and their insights, ")
	b.WriteString("the peer rankings and what they reveal about response quality, ")
	b.WriteString("and any patterns of agreement or disagreement.\n\n")
	b.WriteString("Provide a clear, well-reasoned final answer that represents the council's collective wisdom:")
	return b.String()
}
