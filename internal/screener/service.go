package screener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"screening-agent-go/internal/condition"
	"screening-agent-go/internal/config"
	"screening-agent-go/internal/logger"
	"screening-agent-go/internal/storage"
	"screening-agent-go/internal/storage/models"
	"screening-agent-go/internal/tracing"
	"screening-agent-go/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Service 基于存储层的筛选服务。实现Screener依赖的三个数据接口，
// 并提供消息队列消费入口。
type Service struct {
	storage  *storage.Storage
	cfg      *config.Config
	screener *Screener
	logger   zerolog.Logger
}

// 编译期检查: Service同时是配置源、画像源和结论落地端
var (
	_ FilterConfigSource = (*Service)(nil)
	_ ProfileSource      = (*Service)(nil)
	_ OutcomeSink        = (*Service)(nil)
)

// NewService 创建筛选服务
func NewService(cfg *config.Config, st *storage.Storage) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if st == nil || st.MySQL == nil {
		return nil, fmt.Errorf("筛选服务需要MySQL存储")
	}

	svc := &Service{
		storage: st,
		cfg:     cfg,
		logger:  logger.Logger.With().Str("component", "screener_service").Logger(),
	}

	scr, err := NewScreener(svc, svc,
		WithOutcomeSink(svc),
		WithWorkers(cfg.Screener.Workers),
		WithRulesetVersion(cfg.ActiveRulesetVersion),
		WithScreenerLogger(svc.logger))
	if err != nil {
		return nil, fmt.Errorf("创建筛选器失败: %w", err)
	}
	svc.screener = scr

	return svc, nil
}

// Screener 返回内部筛选器，测试和批量任务使用
func (s *Service) Screener() *Screener {
	return s.screener
}

// LoadConditionTree 加载条件树: 先查Redis缓存，未命中回源MySQL并回填
func (s *Service) LoadConditionTree(ctx context.Context, configID string) (condition.Node, error) {
	if s.storage.Redis != nil {
		cached, err := s.storage.Redis.GetCachedFilterConfig(ctx, configID)
		if err == nil && cached != "" {
			root, decErr := condition.DecodeTree([]byte(cached))
			if decErr == nil {
				return root, nil
			}
			// 缓存内容损坏，回源并覆盖
			s.logger.Warn().Err(decErr).Str("filter_config_id", configID).Msg("缓存的条件树解码失败，回源MySQL")
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Str("filter_config_id", configID).Msg("读取条件树缓存失败，回源MySQL")
		}
	}

	record, err := s.storage.MySQL.GetFilterConfigByID(ctx, configID)
	if err != nil {
		return nil, err
	}

	root, err := condition.DecodeTree(record.ConditionTree)
	if err != nil {
		return nil, err
	}

	// 回填缓存，失败不影响主流程
	if s.storage.Redis != nil {
		if cacheErr := s.storage.Redis.CacheFilterConfig(ctx, configID, string(record.ConditionTree)); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Str("filter_config_id", configID).Msg("回填条件树缓存失败")
		}
	}

	return root, nil
}

// LoadCandidate 加载候选人记录: MySQL取结构化事实，MinIO取简历文本。
// 文本缺失只降级为空文本，不阻断筛选。
func (s *Service) LoadCandidate(ctx context.Context, submissionUUID string) (*types.CandidateRecord, error) {
	profile, err := s.storage.MySQL.GetCandidateProfile(ctx, submissionUUID)
	if err != nil {
		return nil, err
	}

	factsMap, err := models.JSONToMap(profile.FactsJSON)
	if err != nil {
		return nil, fmt.Errorf("解码候选人事实失败: %w", err)
	}

	record := &types.CandidateRecord{
		SubmissionUUID: submissionUUID,
		Facts:          condition.Facts(factsMap),
	}

	if profile.ParsedTextPathOSS != "" && s.storage.MinIO != nil {
		text, textErr := s.storage.MinIO.GetParsedText(ctx, profile.ParsedTextPathOSS)
		if textErr != nil {
			// 文本取不到时关键词条件按不匹配处理
			s.logger.Warn().Err(textErr).Str("submission_uuid", submissionUUID).Msg("获取简历文本失败，关键词条件将不匹配")
		} else {
			record.TextContent = text
			s.logger.Debug().
				Str("submission_uuid", submissionUUID).
				Str("text_preview", tracing.SafeResumeContent(text)).
				Msg("已加载简历文本")
		}
	}

	return record, nil
}

// PersistVerdict 持久化筛选结论: MySQL写结论表，Redis缓存结论，
// 可选地把完整报告写入对象存储。
func (s *Service) PersistVerdict(ctx context.Context, verdict *types.ScreeningVerdict) error {
	outcomesJSON, err := json.Marshal(verdict.Outcomes)
	if err != nil {
		return fmt.Errorf("序列化叶子明细失败: %w", err)
	}

	outcome := &models.ScreeningOutcome{
		SubmissionUUID: verdict.SubmissionUUID,
		FilterConfigID: verdict.FilterConfigID,
		Qualified:      verdict.Qualified,
		ReasonText:     verdict.Reason,
		OutcomesJSON:   outcomesJSON,
		RulesetVersion: s.cfg.ActiveRulesetVersion,
		EvaluatedAt:    time.Unix(verdict.EvaluatedAt, 0),
	}
	if err := s.storage.MySQL.UpsertScreeningOutcome(ctx, outcome); err != nil {
		return err
	}

	if err := s.storage.MySQL.UpdateProfileStatus(ctx, verdict.SubmissionUUID, string(types.StatusScreened)); err != nil {
		s.logger.Warn().Err(err).Str("submission_uuid", verdict.SubmissionUUID).Msg("更新画像状态失败")
	}

	// 缓存结论，失败不影响主流程
	if s.storage.Redis != nil {
		verdictJSON, marshalErr := json.Marshal(verdict)
		if marshalErr == nil {
			ttl := config.GetDuration(s.cfg.Screener.VerdictTTL, 12*time.Hour)
			if cacheErr := s.storage.Redis.CacheVerdict(ctx, verdict.FilterConfigID, verdict.SubmissionUUID, string(verdictJSON), ttl); cacheErr != nil {
				s.logger.Warn().Err(cacheErr).Str("submission_uuid", verdict.SubmissionUUID).Msg("缓存筛选结论失败")
			}
		}
	}

	// 完整理由报告写入对象存储(可选)
	if s.cfg.Screener.PersistReport && s.storage.MinIO != nil {
		report, marshalErr := json.MarshalIndent(verdict, "", "  ")
		if marshalErr == nil {
			if _, upErr := s.storage.MinIO.UploadScreeningReport(ctx, verdict.SubmissionUUID, verdict.FilterConfigID, report); upErr != nil {
				s.logger.Warn().Err(upErr).Str("submission_uuid", verdict.SubmissionUUID).Msg("上传筛选报告失败")
			}
		}
	}

	return nil
}

// GetCachedVerdict 取缓存的筛选结论，未命中返回nil
func (s *Service) GetCachedVerdict(ctx context.Context, configID, submissionUUID string) (*types.ScreeningVerdict, error) {
	if s.storage.Redis == nil {
		return nil, nil
	}
	raw, err := s.storage.Redis.GetCachedVerdict(ctx, configID, submissionUUID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var verdict types.ScreeningVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("解码缓存的筛选结论失败: %w", err)
	}
	return &verdict, nil
}

// EnqueueScreeningTask 把一条筛选任务投递到任务队列
func (s *Service) EnqueueScreeningTask(ctx context.Context, submissionUUID, configID string) (string, error) {
	if s.storage.RabbitMQ == nil {
		return "", fmt.Errorf("RabbitMQ未初始化，无法投递筛选任务")
	}

	taskID := uuid.NewString()
	task := &storage.ScreeningTaskMessage{
		TaskID:         taskID,
		SubmissionUUID: submissionUUID,
		FilterConfigID: configID,
		EnqueuedAt:     time.Now().Unix(),
		RulesetVersion: s.cfg.ActiveRulesetVersion,
	}
	if err := s.storage.RabbitMQ.PublishScreeningTask(ctx, task); err != nil {
		return "", NewPublishError(submissionUUID, configID, err.Error())
	}
	return taskID, nil
}

// handleTask 处理一条筛选任务消息。返回值决定ack还是nack重投:
// 条件配置错误重投也不会恢复，发布失败结果后ack；其余错误nack重投。
func (s *Service) handleTask(ctx context.Context, body []byte) bool {
	var task storage.ScreeningTaskMessage
	if err := json.Unmarshal(body, &task); err != nil {
		s.logger.Error().Err(err).Msg("筛选任务消息格式错误，丢弃")
		return true
	}

	ctx, span := screenerTracer.Start(ctx, "Service.HandleScreeningTask",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.message_id", task.TaskID),
			attribute.String("screening.submission_uuid", task.SubmissionUUID),
			attribute.String("screening.filter_config_id", task.FilterConfigID),
		))
	defer span.End()

	verdict, err := s.screener.Screen(ctx, task.SubmissionUUID, task.FilterConfigID)

	result := &storage.ScreeningResultMessage{
		TaskID:         task.TaskID,
		SubmissionUUID: task.SubmissionUUID,
		FilterConfigID: task.FilterConfigID,
		CompletedAt:    time.Now().Unix(),
	}

	if err != nil {
		if errors.Is(err, condition.ErrBadFilterConfig) || errors.Is(err, ErrConfigLoadFailed) || errors.Is(err, ErrEvaluationFailed) {
			// 配置类错误: 标记失败并ack，避免无限重投
			s.logger.Error().Err(err).
				Str("submission_uuid", task.SubmissionUUID).
				Str("filter_config_id", task.FilterConfigID).
				Msg("筛选配置错误，任务标记失败")

			if stErr := s.storage.MySQL.UpdateProfileStatus(ctx, task.SubmissionUUID, string(types.StatusScreeningFailed)); stErr != nil {
				s.logger.Warn().Err(stErr).Str("submission_uuid", task.SubmissionUUID).Msg("更新画像失败状态出错")
			}

			tracing.RecordError(span, err, tracing.ErrorTypeFilterConfig)
			result.Error = err.Error()
			s.publishResult(ctx, result)
			return true
		}

		// 瞬时错误(数据库、对象存储等): nack重投
		tracing.RecordRabbitMQNack(span, task.TaskID, err.Error())
		s.logger.Warn().Err(err).
			Str("submission_uuid", task.SubmissionUUID).
			Str("filter_config_id", task.FilterConfigID).
			Msg("筛选任务处理失败，重新入队")
		return false
	}

	span.SetStatus(codes.Ok, "")
	result.Qualified = verdict.Qualified
	result.Reason = verdict.Reason
	s.publishResult(ctx, result)
	return true
}

// publishResult 发布筛选结果消息，失败只记日志
func (s *Service) publishResult(ctx context.Context, result *storage.ScreeningResultMessage) {
	if s.storage.RabbitMQ == nil {
		return
	}
	if err := s.storage.RabbitMQ.PublishScreeningResult(ctx, result); err != nil {
		s.logger.Error().Err(err).
			Str("task_id", result.TaskID).
			Msg("发布筛选结果消息失败")
	}
}

// StartScreeningConsumer 启动筛选任务消费者。
// 返回的stop通道用于在进程退出时停止消费。
func (s *Service) StartScreeningConsumer(ctx context.Context) (<-chan struct{}, error) {
	if s.storage.RabbitMQ == nil {
		return nil, fmt.Errorf("RabbitMQ未初始化，无法启动消费者")
	}

	if err := s.storage.RabbitMQ.DeclareScreeningTopology(); err != nil {
		return nil, err
	}

	return s.storage.RabbitMQ.StartConsumer(
		s.cfg.RabbitMQ.ScreeningTaskQueue,
		s.cfg.RabbitMQ.PrefetchCount,
		func(body []byte) bool {
			return s.handleTask(ctx, body)
		})
}
