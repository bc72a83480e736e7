package screener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"screening-agent-go/internal/condition"
	"screening-agent-go/internal/constants"
	"screening-agent-go/internal/storage"
	"screening-agent-go/internal/storage/models"
	"screening-agent-go/internal/tracing"
	"screening-agent-go/internal/types"
)

// CreateFilterConfig 新建筛选配置并持久化条件树。
// 树在入库前先编码校验，非法的树不会写入数据库。
func (s *Service) CreateFilterConfig(ctx context.Context, name, description, createdBy string, root condition.Node) (*models.FilterConfig, error) {
	if name == "" {
		return nil, fmt.Errorf("筛选配置名称不能为空")
	}

	treeJSON, err := condition.EncodeTree(root)
	if err != nil {
		return nil, err
	}
	// 解码一遍确认树结构合法(操作符在封闭集合内由评估时校验)
	if _, err := condition.DecodeTree(treeJSON); err != nil {
		return nil, err
	}

	record := &models.FilterConfig{
		Name:            name,
		Description:     description,
		ConditionTree:   models.StringToJSON(string(treeJSON)),
		RulesetVersion:  s.cfg.ActiveRulesetVersion,
		Status:          "ACTIVE",
		CreatedByUserID: createdBy,
	}
	if err := s.storage.MySQL.SaveFilterConfig(ctx, record); err != nil {
		return nil, err
	}

	// 预热缓存，失败不影响主流程
	if s.storage.Redis != nil {
		if cacheErr := s.storage.Redis.CacheFilterConfig(ctx, record.ConfigID, string(treeJSON)); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Str("filter_config_id", record.ConfigID).Msg("预热条件树缓存失败")
		}
	}

	return record, nil
}

// UpdateFilterConfigTree 替换已有配置的条件树并让缓存失效
func (s *Service) UpdateFilterConfigTree(ctx context.Context, configID string, root condition.Node) error {
	record, err := s.storage.MySQL.GetFilterConfigByID(ctx, configID)
	if err != nil {
		return err
	}

	treeJSON, err := condition.EncodeTree(root)
	if err != nil {
		return err
	}

	record.ConditionTree = models.StringToJSON(string(treeJSON))
	record.RulesetVersion = s.cfg.ActiveRulesetVersion
	if err := s.storage.MySQL.SaveFilterConfig(ctx, record); err != nil {
		return err
	}

	if s.storage.Redis != nil {
		if invErr := s.storage.Redis.InvalidateFilterConfig(ctx, configID); invErr != nil {
			s.logger.Warn().Err(invErr).Str("filter_config_id", configID).Msg("删除条件树缓存失败")
		}
	}
	return nil
}

// ListFilterConfigs 列出所有ACTIVE状态的筛选配置
func (s *Service) ListFilterConfigs(ctx context.Context) ([]models.FilterConfig, error) {
	return s.storage.MySQL.ListActiveFilterConfigs(ctx)
}

// DeleteFilterConfig 删除筛选配置并清掉缓存
func (s *Service) DeleteFilterConfig(ctx context.Context, configID string) error {
	if err := s.storage.MySQL.DeleteFilterConfig(ctx, configID); err != nil {
		return err
	}
	if s.storage.Redis != nil {
		if invErr := s.storage.Redis.InvalidateFilterConfig(ctx, configID); invErr != nil {
			s.logger.Warn().Err(invErr).Str("filter_config_id", configID).Msg("删除条件树缓存失败")
		}
	}
	return nil
}

// IngestCandidate 录入一个候选人: 简历文本写入对象存储，事实写入数据库。
// 依据文本MD5去重，重复文本返回false且不落库。
func (s *Service) IngestCandidate(ctx context.Context, submissionUUID, candidateName string, facts condition.Facts, parsedText string) (bool, error) {
	if submissionUUID == "" {
		return false, fmt.Errorf("提交UUID不能为空")
	}

	profile := &models.CandidateProfile{
		SubmissionUUID: submissionUUID,
		CandidateName:  candidateName,
		Status:         string(types.StatusPendingScreening),
	}

	md5Added := ""
	if parsedText != "" && s.storage.MinIO != nil {
		objectKey, md5Hex, err := s.storage.MinIO.UploadParsedTextWithMD5(ctx, submissionUUID, parsedText)
		if err != nil {
			return false, err
		}

		if s.storage.Redis != nil {
			exists, dedupErr := s.storage.Redis.CheckAndAddScreenedTextMD5(ctx, md5Hex)
			if dedupErr != nil {
				// 去重检查失败时放行，避免Redis故障阻断录入
				s.logger.Warn().Err(dedupErr).Str("submission_uuid", submissionUUID).Msg("文本去重检查失败，跳过去重")
			} else if exists {
				s.logger.Info().
					Str("submission_uuid", submissionUUID).
					Str("raw_text_md5", md5Hex).
					Msg("简历文本重复，跳过录入")
				return false, nil
			} else {
				md5Added = md5Hex
			}
		}

		profile.ParsedTextPathOSS = objectKey
		profile.RawTextMD5 = md5Hex
	}

	factsJSON, err := models.MapToJSON(map[string]interface{}(facts))
	if err != nil {
		return false, fmt.Errorf("序列化候选人事实失败: %w", err)
	}
	profile.FactsJSON = factsJSON

	if err := s.storage.MySQL.SaveCandidateProfile(ctx, profile); err != nil {
		// 落库失败回滚去重记录，让同样的文本可以重试
		if md5Added != "" {
			if rmErr := s.storage.Redis.RemoveScreenedTextMD5(ctx, md5Added); rmErr != nil {
				s.logger.Warn().Err(rmErr).Str("raw_text_md5", md5Added).Msg("回滚去重记录失败")
			}
		}
		return false, err
	}

	s.logger.Info().
		Str("submission_uuid", submissionUUID).
		Str("candidate_name", tracing.SafeAttributeValue("candidate_name", candidateName, 50)).
		Msg("候选人录入完成")
	return true, nil
}

// ScreenPendingBatch 对所有待筛选候选人按指定配置跑一轮批量筛选。
// 同一配置同一时刻只允许一个批量任务，用分布式锁防止并发重复筛选。
func (s *Service) ScreenPendingBatch(ctx context.Context, configID string) ([]*types.ScreeningVerdict, *types.BatchScreeningSummary, error) {
	if s.storage.Redis != nil {
		lockKey := fmt.Sprintf(constants.KeyScreeningLock, configID)
		lockValue, err := s.storage.Redis.AcquireLock(ctx, lockKey, constants.ScreeningLockDuration)
		if err != nil {
			return nil, nil, fmt.Errorf("获取批量筛选锁失败: %w", err)
		}
		if lockValue == "" {
			return nil, nil, fmt.Errorf("配置 %s 已有批量筛选在运行", configID)
		}
		defer func() {
			if _, relErr := s.storage.Redis.ReleaseLock(ctx, lockKey, lockValue); relErr != nil {
				s.logger.Warn().Err(relErr).Str("filter_config_id", configID).Msg("释放批量筛选锁失败")
			}
		}()
	}

	profiles, err := s.storage.MySQL.ListPendingProfiles(ctx, s.cfg.Screener.BatchSize)
	if err != nil {
		return nil, nil, err
	}
	if len(profiles) == 0 {
		return nil, &types.BatchScreeningSummary{FilterConfigID: configID}, nil
	}

	uuids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		uuids = append(uuids, p.SubmissionUUID)
	}

	verdicts, summary, err := s.screener.ScreenBatch(ctx, uuids, configID)
	if err != nil {
		return nil, nil, err
	}

	// 批次结束后记录该配置的累计通过率
	if qualified, total, cntErr := s.storage.MySQL.CountOutcomesByConfig(ctx, configID); cntErr == nil {
		s.logger.Info().
			Str("filter_config_id", configID).
			Int("batch_total", summary.Total).
			Int("batch_qualified", summary.Qualified).
			Int64("cumulative_qualified", qualified).
			Int64("cumulative_total", total).
			Msg("批量筛选完成")
	} else {
		s.logger.Warn().Err(cntErr).Str("filter_config_id", configID).Msg("统计累计筛选结论失败")
	}

	return verdicts, summary, nil
}

// GetVerdict 查询某候选人在某配置下的筛选结论，优先走缓存，
// 未命中回源数据库重建。两边都没有时返回nil。
func (s *Service) GetVerdict(ctx context.Context, configID, submissionUUID string) (*types.ScreeningVerdict, error) {
	if cached, err := s.GetCachedVerdict(ctx, configID, submissionUUID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("读取结论缓存失败，回源MySQL")
	}

	outcome, err := s.storage.MySQL.GetScreeningOutcome(ctx, submissionUUID, configID)
	if err != nil {
		if errors.Is(err, storage.ErrOutcomeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var leaves []condition.LeafOutcome
	if len(outcome.OutcomesJSON) > 0 {
		if err := json.Unmarshal(outcome.OutcomesJSON, &leaves); err != nil {
			return nil, fmt.Errorf("解码叶子明细失败: %w", err)
		}
	}

	return &types.ScreeningVerdict{
		SubmissionUUID: outcome.SubmissionUUID,
		FilterConfigID: outcome.FilterConfigID,
		Qualified:      outcome.Qualified,
		Reason:         outcome.ReasonText,
		Outcomes:       leaves,
		EvaluatedAt:    outcome.EvaluatedAt.Unix(),
	}, nil
}
