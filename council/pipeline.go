package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/llmcouncil/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTimeout 单次成员调用的默认超时
const DefaultTimeout = 120 * time.Second

// Request 一次审议的输入
type Request struct {
	Query    string          `json:"query"`
	Council  []CouncilMember `json:"council"`
	Chairman CouncilMember   `json:"chairman"`
	// Evidence 本次审议额外的上下文，追加在 WithContext 配置之后
	Evidence []Evidence `json:"evidence,omitempty"`
}

// Pipeline 三阶段审议流水线。
// 不持有任何跨审议的可变状态，可被多个 goroutine 并发使用。
type Pipeline struct {
	collector       *Collector
	parser          *Parser
	logger          *zap.Logger
	recorder        Recorder
	tracer          trace.Tracer
	tokens          TokenCounter
	timeout         time.Duration
	chairmanTimeout time.Duration
	maxConcurrency  int
	selfVote        SelfVotePolicy
	evidence        []Evidence
	now             func() time.Time
}

// Option 配置 Pipeline
type Option func(*Pipeline)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTimeout 设置成员调用超时（成员自身的 Timeout 优先）
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithChairmanTimeout 设置主席调用超时，未设置时与成员超时相同
func WithChairmanTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.chairmanTimeout = d
		}
	}
}

// WithMaxConcurrency 限制单轮并发调用数
func WithMaxConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxConcurrency = n
		}
	}
}

// WithParser 替换排名解析器
func WithParser(parser *Parser) Option {
	return func(p *Pipeline) {
		if parser != nil {
			p.parser = parser
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithTracer 设置 OpenTelemetry tracer
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithSelfVotePolicy 设置自评投票策略
func WithSelfVotePolicy(policy SelfVotePolicy) Option {
	return func(p *Pipeline) {
		if policy == SelfVoteCount || policy == SelfVoteExclude {
			p.selfVote = policy
		}
	}
}

// WithContext 为每次审议的第一轮提示词附加上下文
func WithContext(evidence []Evidence) Option {
	return func(p *Pipeline) {
		p.evidence = append([]Evidence(nil), evidence...)
	}
}

// WithTokenCounter 统计每次调用的提示词 token 数
func WithTokenCounter(counter TokenCounter) Option {
	return func(p *Pipeline) { p.tokens = counter }
}

// NewPipeline 创建审议流水线
func NewPipeline(invoker Invoker, opts ...Option) *Pipeline {
	p := &Pipeline{
		parser:   NewParser(DefaultRankingHeader),
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
		timeout:  DefaultTimeout,
		selfVote: SelfVoteCount,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.chairmanTimeout == 0 {
		p.chairmanTimeout = p.timeout
	}
	p.logger = p.logger.With(zap.String("component", "pipeline"))
	p.collector = NewCollector(invoker, CollectorConfig{
		MaxConcurrency: p.maxConcurrency,
		Recorder:       p.recorder,
		Tracer:         p.tracer,
		Tokens:         p.tokens,
	}, p.logger)
	return p
}

// Run 执行一次完整审议。
//
// 输入非法时返回 (nil, INVALID_REQUEST/INVALID_COUNCIL)，不会调用任何模型。
// 致命失败（ALL_MEMBERS_FAILED、SYNTHESIS_FAILED）时返回 State=failed 的部分结果和错误；
// err == nil 时 Diagnostics 描述缺席的成员与无法解析的评审。
func (p *Pipeline) Run(ctx context.Context, query string, council []CouncilMember, chairman CouncilMember) (*Result, error) {
	return p.Deliberate(ctx, Request{Query: query, Council: council, Chairman: chairman})
}

// Deliberate 与 Run 相同，额外支持单次审议的上下文
func (p *Pipeline) Deliberate(ctx context.Context, req Request) (*Result, error) {
	council, chairman, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	ctx = types.WithSessionID(ctx, sessionID)
	if _, ok := types.TraceID(ctx); !ok {
		ctx = types.WithTraceID(ctx, sessionID)
	}
	ctx, span := p.tracer.Start(ctx, "council.run", trace.WithAttributes(
		attribute.String("council.session_id", sessionID),
		attribute.Int("council.members", len(council)),
		attribute.String("council.chairman", chairman.ID),
	))
	defer span.End()

	start := p.now()
	s := &session{
		result: &Result{
			SessionID:   sessionID,
			Query:       req.Query,
			State:       StateCreated,
			Council:     council,
			Chairman:    chairman,
			Transitions: []Transition{},
			CreatedAt:   start,
		},
		recorder: p.recorder,
		logger:   p.logger.With(zap.String("session_id", sessionID)),
		now:      p.now,
	}
	s.logger.Info("deliberation started",
		zap.Int("members", len(council)),
		zap.String("chairman", chairman.ID),
	)

	evidence := append(append([]Evidence(nil), p.evidence...), req.Evidence...)
	if len(evidence) > 0 {
		s.result.Evidence = evidence
	}
	err = p.run(ctx, s, evidence)

	result := s.result
	result.Duration = p.now().Sub(start)
	outcome := "success"
	if err != nil {
		outcome = outcomeLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("deliberation failed", zap.String("state", string(result.State)), zap.Error(err))
	} else {
		s.logger.Info("deliberation completed",
			zap.Duration("duration", result.Duration),
			zap.Int("failed_members", len(result.Diagnostics.FailedMembers)),
			zap.Int("unparsed_evaluators", len(result.Diagnostics.UnparsedEvaluators)),
		)
	}
	span.SetAttributes(attribute.String("council.state", string(result.State)))
	p.recorder.RecordDeliberation(outcome, result.Duration)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, s *session, evidence []Evidence) error {
	r := s.result

	// 第一轮：独立作答
	err := p.stage(ctx, RoundStage1, func(ctx context.Context) error {
		responses, err := p.collector.CollectPrompt(ctx, r.Council, Stage1Prompt(r.Query, evidence), p.timeout)
		r.Responses = responses
		r.Diagnostics.FailedMembers = failedMembers(responses)
		return err
	})
	if err != nil {
		s.fail(err)
		return err
	}
	s.transition(StateStage1Complete)

	// 第二轮：匿名互评，所有成员都参与（包括第一轮失败的成员）
	_ = p.stage(ctx, RoundStage2, func(ctx context.Context) error {
		labels := Anonymize(r.Responses)
		r.LabelMap = labels

		prompt := RankingPrompt(r.Query, labeledResponses(r.Responses, labels), p.parser.Header())
		evaluations, err := p.collector.CollectPrompt(ctx, r.Council, prompt, p.timeout)
		if err != nil {
			s.logger.Warn("no evaluator produced a ranking", zap.Error(err))
		}
		r.Evaluations = evaluations
		r.Submissions = p.parseEvaluations(s.logger, evaluations, labels, &r.Diagnostics)
		r.Aggregate = AggregateWithPolicy(r.Submissions, labels, p.selfVote)
		r.Diagnostics.UnrankedLabels = UnrankedLabels(r.Aggregate, labels)
		return nil
	})
	s.transition(StateStage2Complete)

	// 第三轮：主席综合
	err = p.stage(ctx, RoundStage3, func(ctx context.Context) error {
		prompt := ChairmanPrompt(r.Query, attributedResponses(r.Responses, r.LabelMap), r.Aggregate)
		responses, err := p.collector.CollectPrompt(ctx, []CouncilMember{r.Chairman}, prompt, p.chairmanTimeout)
		if len(responses) == 1 {
			synthesis := responses[0]
			r.Synthesis = &synthesis
		}
		if err != nil {
			cause := err
			if r.Synthesis != nil && r.Synthesis.Error != "" {
				cause = errors.New(r.Synthesis.Error)
			}
			return types.NewError(types.ErrSynthesisFailed,
				fmt.Sprintf("chairman %s failed to synthesize", r.Chairman.ID)).
				WithRound(string(RoundStage3)).
				WithCause(cause)
		}
		r.FinalAnswer = r.Synthesis.Content
		return nil
	})
	if err != nil {
		s.fail(err)
		return err
	}
	s.transition(StateStage3Complete)
	return nil
}

// stage 为一轮调用加上轮次上下文、span 与耗时指标
func (p *Pipeline) stage(ctx context.Context, round Round, fn func(ctx context.Context) error) error {
	ctx = types.WithRound(ctx, string(round))
	ctx, span := p.tracer.Start(ctx, "council.stage", trace.WithAttributes(
		attribute.String("council.round", string(round)),
	))
	defer span.End()

	start := p.now()
	err := fn(ctx)
	p.recorder.RecordStage(string(round), p.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// parseEvaluations 把成功的评审文本解析为排名，失败的评审只记入诊断
func (p *Pipeline) parseEvaluations(logger *zap.Logger, evaluations []ModelResponse, labels *AnonymizationMap, diag *Diagnostics) []RankingSubmission {
	valid := labels.Labels()
	submissions := make([]RankingSubmission, 0, len(evaluations))
	for _, ev := range evaluations {
		if !ev.Succeeded {
			diag.FailedEvaluators = append(diag.FailedEvaluators, ev.MemberID)
			continue
		}

		outcome := p.parser.ParseDetailed(ev.Content, valid)
		p.recorder.RecordParse(string(outcome.Strategy))
		switch outcome.Strategy {
		case ParseNone:
			diag.UnparsedEvaluators = append(diag.UnparsedEvaluators, ev.MemberID)
			logger.Warn("ranking could not be parsed", zap.String("evaluator", ev.MemberID))
		case ParseFallback:
			diag.FallbackParses = append(diag.FallbackParses, ev.MemberID)
			logger.Debug("ranking parsed by fallback scan",
				zap.String("evaluator", ev.MemberID),
				zap.Strings("order", outcome.Order),
			)
		}

		submissions = append(submissions, RankingSubmission{
			EvaluatorID: ev.MemberID,
			RawText:     ev.Content,
			ParsedOrder: outcome.Order,
			Strategy:    outcome.Strategy,
		})
	}
	return submissions
}

// validateRequest 校验输入并补全成员标识
func validateRequest(req Request) ([]CouncilMember, CouncilMember, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, CouncilMember{}, types.NewError(types.ErrInvalidRequest, "query must not be empty")
	}
	if len(req.Council) == 0 {
		return nil, CouncilMember{}, types.NewError(types.ErrInvalidCouncil, "council must have at least one member")
	}

	council := make([]CouncilMember, len(req.Council))
	seen := make(map[string]bool, len(req.Council))
	for i, m := range req.Council {
		m = m.normalized()
		if m.ID == "" {
			return nil, CouncilMember{}, types.NewError(types.ErrInvalidCouncil,
				fmt.Sprintf("council member %d has no id, provider or model", i))
		}
		if seen[m.ID] {
			return nil, CouncilMember{}, types.NewError(types.ErrInvalidCouncil,
				fmt.Sprintf("duplicate council member %q", m.ID))
		}
		seen[m.ID] = true
		council[i] = m
	}

	chairman := req.Chairman.normalized()
	if chairman.ID == "" {
		return nil, CouncilMember{}, types.NewError(types.ErrInvalidCouncil, "chairman has no id, provider or model")
	}
	return council, chairman, nil
}

func failedMembers(responses []ModelResponse) []string {
	var out []string
	for _, r := range responses {
		if !r.Succeeded {
			out = append(out, r.MemberID)
		}
	}
	return out
}

func labeledResponses(responses []ModelResponse, labels *AnonymizationMap) []LabeledResponse {
	out := make([]LabeledResponse, 0, labels.Len())
	for _, r := range responses {
		label, ok := labels.LabelOf(r.MemberID)
		if !ok || !r.Succeeded {
			continue
		}
		out = append(out, LabeledResponse{Label: label, Content: r.Content})
	}
	return out
}

func attributedResponses(responses []ModelResponse, labels *AnonymizationMap) []AttributedResponse {
	out := make([]AttributedResponse, 0, labels.Len())
	for _, label := range labels.Labels() {
		memberID, _ := labels.Resolve(label)
		for _, r := range responses {
			if r.MemberID == memberID && r.Succeeded {
				out = append(out, AttributedResponse{Label: label, MemberID: memberID, Content: r.Content})
				break
			}
		}
	}
	return out
}

func outcomeLabel(err error) string {
	if code := types.GetErrorCode(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

// session 单次审议的可变状态，只被当前 Run 访问
type session struct {
	result   *Result
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func (s *session) transition(to State) {
	from := s.result.State
	s.result.State = to
	s.result.Transitions = append(s.result.Transitions, Transition{From: from, To: to, At: s.now()})
	s.recorder.RecordTransition(string(from), string(to))
	s.logger.Info("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
}

func (s *session) fail(err error) {
	if s.result.State.Terminal() {
		return
	}
	s.transition(StateFailed)
	s.logger.Debug("session failed", zap.String("code", string(types.GetErrorCode(err))))
}
