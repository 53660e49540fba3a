package council

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Caser 有状态，不能跨 goroutine 共享
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// DisplayName 把模型标识转换为展示名称：
//
//	openai/gpt-4o-mini            -> GPT-4o Mini
//	claude-sonnet-4-5-20250929    -> Claude Sonnet 4.5
//	anthropic/claude-3-5-sonnet   -> Claude 3.5 Sonnet
//	google/gemini-3-pro-preview   -> Gemini 3 Pro Preview
func DisplayName(modelID string) string {
	name := modelID
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return modelID
	}

	parts := strings.Split(name, "-")
	if len(parts) > 1 && isDateStamp(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}

	switch strings.ToLower(parts[0]) {
	case "gpt":
		if len(parts) == 1 {
			return "GPT"
		}
		words := []string{"GPT-" + parts[1]}
		for _, p := range parts[2:] {
			words = append(words, title(p))
		}
		return strings.Join(words, " ")
	case "claude":
		return "Claude " + strings.Join(joinVersions(parts[1:]), " ")
	}

	words := make([]string, 0, len(parts))
	for _, p := range parts {
		words = append(words, title(p))
	}
	return strings.Join(words, " ")
}

// joinVersions 合并相邻的纯数字片段：["sonnet","4","5"] -> ["Sonnet","4.5"]
func joinVersions(parts []string) []string {
	var out []string
	var version []string
	flush := func() {
		if len(version) > 0 {
			out = append(out, strings.Join(version, "."))
			version = nil
		}
	}
	for _, p := range parts {
		if isDigits(p) {
			version = append(version, p)
			continue
		}
		flush()
		out = append(out, title(p))
	}
	flush()
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isDateStamp(s string) bool {
	return len(s) == 8 && isDigits(s)
}

// FormatMarkdown 把审议结果渲染为 Markdown 文档。
// 失败的审议同样可以渲染，未完成的阶段会被省略或标注。
func FormatMarkdown(r *Result) string {
	if r == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Council Deliberation\n\n")
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Date:** %s  \n", r.CreatedAt.UTC().Format(time.RFC3339))
	}
	if r.SessionID != "" {
		fmt.Fprintf(&b, "**Session:** `%s`  \n", r.SessionID)
	}
	fmt.Fprintf(&b, "**State:** %s\n\n", r.State)

	b.WriteString("## Query\n\n")
	b.WriteString(r.Query)
	b.WriteString("\n\n")

	if len(r.Evidence) > 0 {
		b.WriteString("## Context\n\n")
		for _, e := range r.Evidence {
			writeEvidence(&b, e)
		}
	}

	if len(r.Responses) > 0 {
		b.WriteString("## Stage 1: Individual Model Responses\n\n")
		for _, resp := range r.Responses {
			fmt.Fprintf(&b, "### %s\n\n", memberDisplayName(r, resp.MemberID))
			if resp.Succeeded {
				b.WriteString(strings.TrimSpace(resp.Content))
			} else {
				fmt.Fprintf(&b, "*No response: %s*", resp.Error)
			}
			b.WriteString("\n\n")
		}
	}

	if r.State != StateCreated && r.LabelMap != nil {
		writePeerReview(&b, r)
	}

	if r.Synthesis != nil {
		b.WriteString("## Stage 3: Final Synthesis\n\n")
		if r.Synthesis.Succeeded {
			fmt.Fprintf(&b, "*Chairman: %s*\n\n", memberDisplayName(r, r.Chairman.ID))
			b.WriteString(strings.TrimSpace(r.FinalAnswer))
		} else {
			fmt.Fprintf(&b, "*Synthesis failed: %s*", r.Synthesis.Error)
		}
		b.WriteString("\n")
		writeSources(&b, r.Evidence)
	}

	return b.String()
}

// writeEvidence 渲染一条上下文材料；代码内容放进围栏代码块
func writeEvidence(b *strings.Builder, e Evidence) {
	fmt.Fprintf(b, "### Evidence: %s\n\n", evidenceTitle(e))

	lang := e.Meta(MetaLanguage)
	date := e.Meta(MetaDate)
	if len(date) > 10 {
		date = date[:10]
	}
	fields := [][2]string{
		{"Author", e.Meta(MetaAuthor)},
		{"Date", date},
		{"Language", lang},
		{"Relevance", e.Meta(MetaRelevance)},
	}
	wrote := false
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintf(b, "**%s:** %s  \n", f[0], f[1])
		wrote = true
	}
	if wrote {
		b.WriteString("\n")
	}

	content := strings.TrimRight(e.Content, "\n")
	if lang != "" || looksLikeCode(content) {
		fmt.Fprintf(b, "```%s\n%s\n```\n\n", strings.ToLower(lang), content)
		return
	}
	b.WriteString(content)
	b.WriteString("\n\n")
}

// evidenceTitle 有仓库和路径时给出 GitHub 链接，否则用 Source
func evidenceTitle(e Evidence) string {
	repo, file := e.Meta(MetaRepo), e.Meta(MetaFilePath)
	if repo != "" && file != "" {
		return fmt.Sprintf("[%s/%s](%s)", repo, file, githubURL(e))
	}
	if e.Source != "" {
		return e.Source
	}
	if file != "" {
		return file
	}
	return "context"
}

func githubURL(e Evidence) string {
	ref := e.Meta(MetaCommit)
	if ref == "" {
		ref = "main"
	}
	return fmt.Sprintf("https://github.com/%s/blob/%s/%s", e.Meta(MetaRepo), ref, e.Meta(MetaFilePath))
}

// writeSources 综合回答之后列出引用的材料，按仓库分组
func writeSources(b *strings.Builder, evidence []Evidence) {
	if len(evidence) == 0 {
		return
	}
	b.WriteString("\n## Sources\n\n")

	byRepo := make(map[string][]Evidence)
	var loose []Evidence
	for _, e := range evidence {
		if repo := e.Meta(MetaRepo); repo != "" && e.Meta(MetaFilePath) != "" {
			byRepo[repo] = append(byRepo[repo], e)
			continue
		}
		loose = append(loose, e)
	}

	repos := make([]string, 0, len(byRepo))
	for repo := range byRepo {
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	for _, repo := range repos {
		fmt.Fprintf(b, "**%s**\n\n", repo)
		for _, e := range byRepo[repo] {
			fmt.Fprintf(b, "- [%s](%s)\n", e.Meta(MetaFilePath), githubURL(e))
		}
		b.WriteString("\n")
	}
	for _, e := range loose {
		fmt.Fprintf(b, "- %s\n", evidenceTitle(e))
	}
	if len(loose) > 0 {
		b.WriteString("\n")
	}
}

var codeIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\bdef\s+\w+\(`),
	regexp.MustCompile(`\bclass\s+\w+`),
	regexp.MustCompile(`\bfunc(tion)?\s+\w+\(`),
	regexp.MustCompile(`\bconst\s+\w+\s*=`),
	regexp.MustCompile(`\blet\s+\w+\s*=`),
	regexp.MustCompile(`\bimport\s+`),
	regexp.MustCompile(`\brequire\(`),
	regexp.MustCompile(`=>`),
	regexp.MustCompile(`(?m)\{\s*$`),
	regexp.MustCompile(`(?m);\s*$`),
	regexp.MustCompile(`(?m)^\s{4,}\w+`),
}

// looksLikeCode 至少两行且命中两类以上代码特征
func looksLikeCode(content string) bool {
	if strings.Count(strings.TrimSpace(content), "\n") < 1 {
		return false
	}
	hits := 0
	for _, re := range codeIndicators {
		if re.MatchString(content) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}

func writePeerReview(b *strings.Builder, r *Result) {
	b.WriteString("## Stage 2: Peer Review\n\n")
	b.WriteString("*Models evaluated each other's responses anonymously.*\n\n")

	if len(r.Aggregate) == 0 {
		b.WriteString("No usable rankings were produced.\n\n")
	} else {
		b.WriteString("| Rank | Response | Model | Mean Rank | Votes |\n")
		b.WriteString("|---:|---|---|---:|---:|\n")
		for i, e := range r.Aggregate {
			fmt.Fprintf(b, "| %d | %s | %s | %.2f | %d |\n",
				i+1, e.Label, memberDisplayName(r, e.MemberID), e.MeanRank, e.VoteCount)
		}
		b.WriteString("\n")
	}

	d := r.Diagnostics
	writeList(b, "Unranked responses", d.UnrankedLabels)
	writeList(b, "Evaluators that failed", displayNames(r, d.FailedEvaluators))
	writeList(b, "Rankings that could not be parsed", displayNames(r, d.UnparsedEvaluators))
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:** %s\n\n", heading, strings.Join(items, ", "))
}

func displayNames(r *Result, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = memberDisplayName(r, id)
	}
	return out
}

// memberDisplayName 优先使用成员配置中的模型名
func memberDisplayName(r *Result, memberID string) string {
	for _, m := range r.Council {
		if m.ID == memberID && m.Model != "" {
			return DisplayName(m.Model)
		}
	}
	if r.Chairman.ID == memberID && r.Chairman.Model != "" {
		return DisplayName(r.Chairman.Model)
	}
	return DisplayName(memberID)
}
