package screener

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"screening-agent-go/internal/condition"
	"screening-agent-go/internal/logger"
	"screening-agent-go/internal/tracing"
	"screening-agent-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var screenerTracer = otel.Tracer("screening-agent-go/screener")

// FilterConfigSource 提供筛选配置的条件树
type FilterConfigSource interface {
	// LoadConditionTree 加载并解码指定配置的条件树
	LoadConditionTree(ctx context.Context, configID string) (condition.Node, error)
}

// ProfileSource 提供候选人的结构化事实和简历文本
type ProfileSource interface {
	// LoadCandidate 加载候选人记录，TextContent可为空
	LoadCandidate(ctx context.Context, submissionUUID string) (*types.CandidateRecord, error)
}

// OutcomeSink 接收筛选结论
type OutcomeSink interface {
	// PersistVerdict 持久化一条筛选结论
	PersistVerdict(ctx context.Context, verdict *types.ScreeningVerdict) error
}

// Screener 候选人筛选器: 取条件树和候选人数据，产出结论
type Screener struct {
	configs  FilterConfigSource
	profiles ProfileSource
	sink     OutcomeSink // 可选，nil时不持久化

	workers        int
	rulesetVersion string
	logger         zerolog.Logger
}

// ScreenerOption 筛选器选项函数类型
type ScreenerOption func(*Screener)

// WithWorkers 设置批量筛选的工作协程数
func WithWorkers(workers int) ScreenerOption {
	return func(s *Screener) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// WithOutcomeSink 设置结论持久化目标
func WithOutcomeSink(sink OutcomeSink) ScreenerOption {
	return func(s *Screener) {
		s.sink = sink
	}
}

// WithRulesetVersion 设置记录在结论上的规则集版本
func WithRulesetVersion(version string) ScreenerOption {
	return func(s *Screener) {
		s.rulesetVersion = version
	}
}

// WithScreenerLogger 设置自定义日志记录器
func WithScreenerLogger(l zerolog.Logger) ScreenerOption {
	return func(s *Screener) {
		s.logger = l
	}
}

// NewScreener 创建筛选器
func NewScreener(configs FilterConfigSource, profiles ProfileSource, opts ...ScreenerOption) (*Screener, error) {
	if configs == nil {
		return nil, fmt.Errorf("筛选配置源不能为空")
	}
	if profiles == nil {
		return nil, fmt.Errorf("候选人画像源不能为空")
	}

	s := &Screener{
		configs:  configs,
		profiles: profiles,
		workers:  4,
		logger:   logger.Logger.With().Str("component", "screener").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Screen 对单个候选人执行一次筛选，返回完整结论。
// 条件配置错误会快速失败；候选人数据缺失只会降级为不匹配。
func (s *Screener) Screen(ctx context.Context, submissionUUID, configID string) (*types.ScreeningVerdict, error) {
	ctx, span := screenerTracer.Start(ctx, "Screener.Screen",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("screening.submission_uuid", submissionUUID),
			attribute.String("screening.filter_config_id", configID),
		))
	defer span.End()

	root, err := s.configs.LoadConditionTree(ctx, configID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeFilterConfig)
		return nil, NewConfigLoadError(configID, err.Error())
	}

	record, err := s.profiles.LoadCandidate(ctx, submissionUUID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, NewProfileLoadError(submissionUUID, err.Error())
	}

	verdict, err := s.evaluate(ctx, record, root, configID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeFilterConfig)
		return nil, err
	}

	if s.sink != nil {
		if err := s.sink.PersistVerdict(ctx, verdict); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, NewPersistError(submissionUUID, configID, err.Error())
		}
	}

	span.SetAttributes(
		attribute.Bool("screening.qualified", verdict.Qualified),
		attribute.String("screening.reason", tracing.SafeReason(verdict.Reason)),
	)
	span.SetStatus(codes.Ok, "")

	s.logger.Info().
		Str("submission_uuid", submissionUUID).
		Str("filter_config_id", configID).
		Bool("qualified", verdict.Qualified).
		Msg("候选人筛选完成")

	return verdict, nil
}

// evaluate 执行条件树评估并组装结论
func (s *Screener) evaluate(ctx context.Context, record *types.CandidateRecord, root condition.Node, configID string) (*types.ScreeningVerdict, error) {
	eval := condition.NewEvaluator(record.Facts,
		condition.WithTextContent(record.TextContent),
		condition.WithLogger(s.logger))

	qualified, err := eval.Evaluate(root)
	if err != nil {
		// 配置错误快速失败，不产出部分结论
		return nil, NewEvaluationError(record.SubmissionUUID, configID, err.Error())
	}

	outcomes := eval.Outcomes()
	return &types.ScreeningVerdict{
		SubmissionUUID: record.SubmissionUUID,
		FilterConfigID: configID,
		Qualified:      qualified,
		Reason:         assembleReason(qualified, outcomes),
		Outcomes:       outcomes,
		EvaluatedAt:    time.Now().Unix(),
	}, nil
}

// assembleReason 从叶子明细组装人类可读的筛选理由
func assembleReason(qualified bool, outcomes []condition.LeafOutcome) string {
	if len(outcomes) == 0 {
		if qualified {
			return "通过筛选"
		}
		return "未通过筛选"
	}

	var matched, missed []string
	for _, o := range outcomes {
		desc := describeLeaf(o)
		if o.Matched {
			matched = append(matched, desc)
		} else {
			missed = append(missed, desc)
		}
	}

	var sb strings.Builder
	if qualified {
		sb.WriteString("通过筛选")
		if len(matched) > 0 {
			sb.WriteString("; 满足: ")
			sb.WriteString(strings.Join(matched, ", "))
		}
	} else {
		sb.WriteString("未通过筛选")
		if len(missed) > 0 {
			sb.WriteString("; 未满足: ")
			sb.WriteString(strings.Join(missed, ", "))
		}
	}
	return sb.String()
}

// describeLeaf 描述单条叶子条件, 如 "work_years gte 3"
func describeLeaf(o condition.LeafOutcome) string {
	return fmt.Sprintf("%s %s %v", o.Field, o.Operator, o.Value)
}

// batchResult 批量筛选中单个候选人的结果
type batchResult struct {
	verdict *types.ScreeningVerdict
	err     error
	uuid    string
}

// ScreenBatch 用工作协程池对一批候选人执行筛选。
// 单个候选人的失败不会中止整批，汇总在返回的summary中。
func (s *Screener) ScreenBatch(ctx context.Context, submissionUUIDs []string, configID string) ([]*types.ScreeningVerdict, *types.BatchScreeningSummary, error) {
	ctx, span := screenerTracer.Start(ctx, "Screener.ScreenBatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("screening.filter_config_id", configID),
			attribute.Int("screening.batch_size", len(submissionUUIDs)),
		))
	defer span.End()

	// 条件树只加载一次，整批复用
	root, err := s.configs.LoadConditionTree(ctx, configID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeFilterConfig)
		return nil, nil, NewConfigLoadError(configID, err.Error())
	}

	jobs := make(chan string)
	results := make(chan batchResult, len(submissionUUIDs))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for uuid := range jobs {
				verdict, err := s.screenWithTree(ctx, uuid, configID, root)
				results <- batchResult{verdict: verdict, err: err, uuid: uuid}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, uuid := range submissionUUIDs {
			select {
			case <-ctx.Done():
				return
			case jobs <- uuid:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := &types.BatchScreeningSummary{FilterConfigID: configID}
	verdicts := make([]*types.ScreeningVerdict, 0, len(submissionUUIDs))
	for res := range results {
		summary.Total++
		if res.err != nil {
			summary.Failed++
			s.logger.Warn().
				Err(res.err).
				Str("submission_uuid", res.uuid).
				Str("filter_config_id", configID).
				Msg("批量筛选中单个候选人失败")
			continue
		}
		if res.verdict.Qualified {
			summary.Qualified++
		}
		verdicts = append(verdicts, res.verdict)
	}

	span.SetAttributes(
		attribute.Int("screening.qualified_count", summary.Qualified),
		attribute.Int("screening.failed_count", summary.Failed),
	)
	span.SetStatus(codes.Ok, "")

	return verdicts, summary, nil
}

// screenWithTree 用已加载的条件树筛选单个候选人
func (s *Screener) screenWithTree(ctx context.Context, submissionUUID, configID string, root condition.Node) (*types.ScreeningVerdict, error) {
	record, err := s.profiles.LoadCandidate(ctx, submissionUUID)
	if err != nil {
		return nil, NewProfileLoadError(submissionUUID, err.Error())
	}

	verdict, err := s.evaluate(ctx, record, root, configID)
	if err != nil {
		return nil, err
	}

	if s.sink != nil {
		if err := s.sink.PersistVerdict(ctx, verdict); err != nil {
			return nil, NewPersistError(submissionUUID, configID, err.Error())
		}
	}
	return verdict, nil
}
