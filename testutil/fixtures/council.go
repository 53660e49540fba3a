// =============================================================================
// 📦 测试数据工厂 - 议会成员与评审文本
// =============================================================================
// 提供预定义的议会配置、排名文本与 ChatResponse，用于测试
// =============================================================================
package fixtures

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/llmcouncil/council"
	"github.com/BaSui01/llmcouncil/llm"
)

// =============================================================================
// 🎯 议会成员工厂
// =============================================================================

// Member 返回 provider/model 形式标识的成员
func Member(provider, model string) council.CouncilMember {
	return council.CouncilMember{
		ID:          provider + "/" + model,
		Provider:    provider,
		Model:       model,
		Temperature: 0.7,
	}
}

// Council 返回 n 个成员：mock/model-1 … mock/model-n
func Council(n int) []council.CouncilMember {
	out := make([]council.CouncilMember, n)
	for i := range out {
		out[i] = Member("mock", fmt.Sprintf("model-%d", i+1))
	}
	return out
}

// DefaultCouncil 与默认配置相同的三个成员
func DefaultCouncil() []council.CouncilMember {
	return []council.CouncilMember{
		Member("openai", "gpt-5"),
		Member("google", "gemini-3-pro-preview"),
		Member("anthropic", "claude-sonnet-4-5-20250929"),
	}
}

// Chairman 默认主席
func Chairman() council.CouncilMember {
	return Member("mock", "chairman")
}

// =============================================================================
// 📝 评审文本工厂
// =============================================================================

// RankingText 返回格式规范的评审文本
func RankingText(labels ...string) string {
	var b strings.Builder
	b.WriteString("Each response has strengths and weaknesses.\n\n")
	b.WriteString(council.DefaultRankingHeader)
	b.WriteString("\n")
	for i, l := range labels {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l)
	}
	return b.String()
}

// ProseRanking 返回没有排名段落、只在正文中按顺序提及标签的评审文本
func ProseRanking(labels ...string) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s is my choice number %d", l, i+1)
	}
	return "I could not decide on a format. " + strings.Join(parts, "; ") + "."
}

// MalformedRanking 不包含任何可识别标签的评审文本
const MalformedRanking = "All of the answers were fine, I have no preference whatsoever."

// =============================================================================
// 🎯 ChatResponse 工厂
// =============================================================================

// SimpleResponse 返回简单的文本响应
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "gpt-5",
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: llm.Message{
					Role:    llm.RoleAssistant,
					Content: content,
				},
			},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		CreatedAt: time.Now(),
	}
}

// EmptyChoicesResponse 没有任何 choice 的响应
func EmptyChoicesResponse() *llm.ChatResponse {
	resp := SimpleResponse("")
	resp.Choices = nil
	return resp
}
