package storage

// ScreeningTaskMessage 筛选任务消息，投递到筛选任务队列
type ScreeningTaskMessage struct {
	TaskID         string `json:"task_id"`                  // 任务唯一标识
	SubmissionUUID string `json:"submission_uuid"`          // 待筛选的候选人提交UUID
	FilterConfigID string `json:"filter_config_id"`         // 使用的筛选配置ID
	EnqueuedAt     int64  `json:"enqueued_at"`              // 入队时间(Unix秒)
	Attempt        int    `json:"attempt,omitempty"`        // 第几次尝试，重投时递增
	RulesetVersion string `json:"ruleset_version,omitempty"` // 规则集版本，留空时使用当前生效版本
}

// ScreeningResultMessage 筛选结果消息，任务完成后发布到结果队列
type ScreeningResultMessage struct {
	TaskID         string `json:"task_id"`
	SubmissionUUID string `json:"submission_uuid"`
	FilterConfigID string `json:"filter_config_id"`
	Qualified      bool   `json:"qualified"`
	Reason         string `json:"reason,omitempty"`
	Error          string `json:"error,omitempty"` // 失败时的错误描述，成功时为空
	CompletedAt    int64  `json:"completed_at"`    // 完成时间(Unix秒)
}
