package council

import (
	"time"
)

// Round 标识一次审议中的调用轮次
type Round string

const (
	RoundStage1 Round = "stage1" // 独立作答
	RoundStage2 Round = "stage2" // 匿名互评
	RoundStage3 Round = "stage3" // 主席综合
)

// State 审议状态
type State string

const (
	StateCreated        State = "created"
	StateStage1Complete State = "stage1_complete"
	StateStage2Complete State = "stage2_complete"
	StateStage3Complete State = "stage3_complete"
	StateFailed         State = "failed"
)

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateStage3Complete || s == StateFailed
}

// ParseStrategy 排名解析所用的策略
type ParseStrategy string

const (
	ParseStrict   ParseStrategy = "strict"   // 标题后的列表行
	ParseFallback ParseStrategy = "fallback" // 全文扫描
	ParseNone     ParseStrategy = "none"     // 未识别到任何标签
)

// SelfVotePolicy 决定评审者对自己回答的投票如何处理
type SelfVotePolicy string

const (
	SelfVoteCount   SelfVotePolicy = "count"   // 与其他投票同等计算
	SelfVoteExclude SelfVotePolicy = "exclude" // 聚合时剔除
)

// CouncilMember 议会成员：身份 + 调用参数，单次审议内不可变
type CouncilMember struct {
	ID          string        `json:"id"`
	Provider    string        `json:"provider,omitempty"`
	Model       string        `json:"model,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Identity 返回成员标识，未设置 ID 时为 provider/model
func (m CouncilMember) Identity() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Provider == "" {
		return m.Model
	}
	return m.Provider + "/" + m.Model
}

func (m CouncilMember) normalized() CouncilMember {
	m.ID = m.Identity()
	return m
}

// ModelResponse 一次成员调用的结果，创建后不再修改
type ModelResponse struct {
	MemberID  string        `json:"member_id"`
	Content   string        `json:"content,omitempty"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty"`
	Latency   time.Duration `json:"latency"`
}

// RankingSubmission 一位评审者的排名
type RankingSubmission struct {
	EvaluatorID string        `json:"evaluator_id"`
	RawText     string        `json:"raw_text"`
	ParsedOrder []string      `json:"parsed_order"`
	Strategy    ParseStrategy `json:"strategy"`
}

// AggregateEntry 聚合排名中的一项
type AggregateEntry struct {
	Label     string  `json:"label"`
	MemberID  string  `json:"member_id"`
	MeanRank  float64 `json:"mean_rank"`
	VoteCount int     `json:"vote_count"`
}

// AggregateRanking 按平均名次排序的聚合结果
type AggregateRanking []AggregateEntry

// Labels 按名次返回标签
func (a AggregateRanking) Labels() []string {
	out := make([]string, len(a))
	for i, e := range a {
		out[i] = e.Label
	}
	return out
}

// MemberIDs 按名次返回成员标识
func (a AggregateRanking) MemberIDs() []string {
	out := make([]string, len(a))
	for i, e := range a {
		out[i] = e.MemberID
	}
	return out
}

// Evidence 调用方提供的额外上下文，只出现在第一轮提示词中
type Evidence struct {
	Source  string `json:"source,omitempty"`
	Content string `json:"content"`
	// Metadata 可选的来源信息，常用键见 Meta* 常量
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Evidence.Metadata 的常用键
const (
	MetaRepo      = "repo"
	MetaFilePath  = "file_path"
	MetaCommit    = "commit_hash"
	MetaAuthor    = "author"
	MetaDate      = "date"
	MetaLanguage  = "language"
	MetaRelevance = "relevance"
)

// Meta 读取元数据，不存在时返回空串
func (e Evidence) Meta(key string) string {
	return e.Metadata[key]
}

// Transition 一次状态转换
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Diagnostics 可恢复问题的汇总：缺席的成员、解析失败的评审
type Diagnostics struct {
	FailedMembers      []string `json:"failed_members,omitempty"`
	FailedEvaluators   []string `json:"failed_evaluators,omitempty"`
	UnparsedEvaluators []string `json:"unparsed_evaluators,omitempty"`
	FallbackParses     []string `json:"fallback_parses,omitempty"`
	UnrankedLabels     []string `json:"unranked_labels,omitempty"`
}

// Empty 是否没有任何诊断信息
func (d Diagnostics) Empty() bool {
	return len(d.FailedMembers) == 0 &&
		len(d.FailedEvaluators) == 0 &&
		len(d.UnparsedEvaluators) == 0 &&
		len(d.FallbackParses) == 0 &&
		len(d.UnrankedLabels) == 0
}

// Result 一次审议返回给调用方的结构化结果。
// 失败时仍包含已完成阶段的数据。
type Result struct {
	SessionID   string              `json:"session_id"`
	Query       string              `json:"query"`
	State       State               `json:"state"`
	Council     []CouncilMember     `json:"council"`
	Chairman    CouncilMember       `json:"chairman"`
	Evidence    []Evidence          `json:"evidence,omitempty"`
	Responses   []ModelResponse     `json:"responses"`
	Evaluations []ModelResponse     `json:"evaluations,omitempty"`
	Submissions []RankingSubmission `json:"submissions,omitempty"`
	Aggregate   AggregateRanking    `json:"aggregate,omitempty"`
	LabelMap    *AnonymizationMap   `json:"label_map,omitempty"`
	Synthesis   *ModelResponse      `json:"synthesis,omitempty"`
	FinalAnswer string              `json:"final_answer,omitempty"`
	Diagnostics Diagnostics         `json:"diagnostics"`
	Transitions []Transition        `json:"transitions"`
	CreatedAt   time.Time           `json:"created_at"`
	Duration    time.Duration       `json:"duration"`
}

// Succeeded 审议是否完成全部三个阶段
func (r *Result) Succeeded() bool {
	return r != nil && r.State == StateStage3Complete
}

// SuccessfulResponses 返回第一轮成功的回答（保持成员顺序）
func (r *Result) SuccessfulResponses() []ModelResponse {
	if r == nil {
		return nil
	}
	return successful(r.Responses)
}

func successful(responses []ModelResponse) []ModelResponse {
	out := make([]ModelResponse, 0, len(responses))
	for _, resp := range responses {
		if resp.Succeeded {
			out = append(out, resp)
		}
	}
	return out
}
