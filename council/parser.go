package council

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultRankingHeader 评审者被要求输出的排名段落标题
const DefaultRankingHeader = "FINAL RANKING:"

// 列表行："1." "1)" "-" "*" "•"
var listItemRe = regexp.MustCompile(`^(?:(\d+)\s*[.)]|[-*•])\s*(.*)$`)

// ParseOutcome 解析结果及所用策略
type ParseOutcome struct {
	Order    []string      `json:"order"`
	Strategy ParseStrategy `json:"strategy"`
}

// Parser 从评审文本中提取标签顺序。
// 先在标题之后读取列表行，失败时退化为扫描标签出现顺序。
type Parser struct {
	header   string
	headerRe *regexp.Regexp
}

// NewParser 创建解析器，header 为空时使用 DefaultRankingHeader
func NewParser(header string) *Parser {
	header = strings.TrimSpace(header)
	if header == "" {
		header = DefaultRankingHeader
	}
	return &Parser{
		header:   header,
		headerRe: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(header)),
	}
}

// Header 返回排名段落标题
func (p *Parser) Header() string { return p.header }

// Parse 返回标签顺序，可能为空，且只包含 valid 中的标签
func (p *Parser) Parse(raw string, valid []string) []string {
	return p.ParseDetailed(raw, valid).Order
}

// ParseDetailed 与 Parse 相同，同时返回所用策略
func (p *Parser) ParseDetailed(raw string, valid []string) ParseOutcome {
	m := newLabelMatcher(valid)
	if m == nil || raw == "" {
		return ParseOutcome{Order: []string{}, Strategy: ParseNone}
	}

	section, hasHeader := p.section(raw)
	if hasHeader {
		scanned := m.scan(section)
		// 严格结果必须覆盖段落中出现的全部标签；
		// 行内列表、"A > B > C" 链式写法或中途截断的列表都退化为扫描
		if order := p.strict(section, m); len(order) > 0 && len(order) >= len(scanned) {
			return ParseOutcome{Order: order, Strategy: ParseStrict}
		}
		if len(scanned) > 0 {
			return ParseOutcome{Order: scanned, Strategy: ParseFallback}
		}
	}

	if order := m.scan(raw); len(order) > 0 {
		return ParseOutcome{Order: order, Strategy: ParseFallback}
	}
	return ParseOutcome{Order: []string{}, Strategy: ParseNone}
}

// section 返回最后一个标题之后的文本
func (p *Parser) section(raw string) (string, bool) {
	locs := p.headerRe.FindAllStringIndex(raw, -1)
	if len(locs) == 0 {
		return "", false
	}
	return raw[locs[len(locs)-1][1]:], true
}

// strict 读取连续的列表行；遇到非列表行、无标签、重复标签或编号不连续时停止
func (p *Parser) strict(section string, m *labelMatcher) []string {
	order := make([]string, 0, len(m.valid))
	seen := make(map[string]bool, len(m.valid))

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		// 空行以及 "**FINAL RANKING:**" 残留的 "**"
		if strings.TrimSpace(stripEmphasis(line)) == "" {
			continue
		}

		num, rest, ok := splitListItem(line)
		if !ok {
			break
		}
		if num > 0 && num != len(order)+1 {
			break
		}

		label, found := m.first(stripEmphasis(rest))
		if !found || seen[label] {
			break
		}
		seen[label] = true
		order = append(order, label)
	}
	return order
}

// splitListItem 拆出列表标记；num 为 0 表示无编号的项目符号
func splitListItem(line string) (int, string, bool) {
	if sm := listItemRe.FindStringSubmatch(line); sm != nil {
		return listNumber(sm[1]), sm[2], true
	}
	// **1.** Response A
	trimmed := strings.TrimLeft(line, "*_ ")
	if trimmed != line {
		if sm := listItemRe.FindStringSubmatch(trimmed); sm != nil && sm[1] != "" {
			return listNumber(sm[1]), sm[2], true
		}
	}
	return 0, "", false
}

func listNumber(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func stripEmphasis(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '`':
			return -1
		}
		return r
	}, s)
}

// labelMatcher 按最长优先匹配合法标签，并检查词边界
type labelMatcher struct {
	valid map[string]bool
	re    *regexp.Regexp
}

func newLabelMatcher(valid []string) *labelMatcher {
	set := make(map[string]bool, len(valid))
	alts := make([]string, 0, len(valid))
	for _, v := range valid {
		if v == "" || set[v] {
			continue
		}
		set[v] = true
		alts = append(alts, v)
	}
	if len(alts) == 0 {
		return nil
	}

	// Response AB 必须先于 Response A 尝试
	sort.Slice(alts, func(i, j int) bool {
		if len(alts[i]) != len(alts[j]) {
			return len(alts[i]) > len(alts[j])
		}
		return alts[i] < alts[j]
	})
	for i := range alts {
		alts[i] = regexp.QuoteMeta(alts[i])
	}

	return &labelMatcher{
		valid: set,
		re:    regexp.MustCompile(strings.Join(alts, "|")),
	}
}

// matches 返回文本中所有满足词边界的标签，按出现顺序
func (m *labelMatcher) matches(text string) []string {
	var out []string
	for _, loc := range m.re.FindAllStringIndex(text, -1) {
		if !isBoundary(text, loc[0], loc[1]) {
			continue
		}
		out = append(out, text[loc[0]:loc[1]])
	}
	return out
}

func (m *labelMatcher) first(text string) (string, bool) {
	all := m.matches(text)
	if len(all) == 0 {
		return "", false
	}
	return all[0], true
}

// scan 按首次出现顺序去重
func (m *labelMatcher) scan(text string) []string {
	seen := make(map[string]bool, len(m.valid))
	out := make([]string, 0, len(m.valid))
	for _, label := range m.matches(text) {
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

func isBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
