package types

import (
	"screening-agent-go/internal/condition"
)

// ScreeningStatus 筛选结果处理状态
type ScreeningStatus string

const (
	// StatusPendingScreening 等待筛选
	StatusPendingScreening ScreeningStatus = "PENDING_SCREENING"
	// StatusScreened 筛选完成
	StatusScreened ScreeningStatus = "SCREENED"
	// StatusScreeningFailed 筛选失败(配置错误等)
	StatusScreeningFailed ScreeningStatus = "SCREENING_FAILED"
)

// ScreeningVerdict 一次候选人筛选的完整结论
type ScreeningVerdict struct {
	// 简历提交UUID
	SubmissionUUID string `json:"submission_uuid"`

	// 使用的筛选配置ID
	FilterConfigID string `json:"filter_config_id"`

	// 是否合格
	Qualified bool `json:"qualified"`

	// 人类可读的筛选理由，由叶子明细拼装
	Reason string `json:"reason"`

	// 每条叶子条件的评估明细
	Outcomes []condition.LeafOutcome `json:"outcomes"`

	// 评估时间(Unix秒)
	EvaluatedAt int64 `json:"evaluated_at"`
}

// CandidateRecord 参与筛选的候选人记录: 结构化事实加可选的简历原文
type CandidateRecord struct {
	SubmissionUUID string          `json:"submission_uuid"`
	Facts          condition.Facts `json:"facts"`
	TextContent    string          `json:"text_content,omitempty"`
}

// BatchScreeningSummary 一批筛选的汇总统计
type BatchScreeningSummary struct {
	FilterConfigID string `json:"filter_config_id"`
	Total          int    `json:"total"`
	Qualified      int    `json:"qualified"`
	Failed         int    `json:"failed"`
}
