package screener

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrConfigLoadFailed     = errors.New("加载筛选配置失败")
	ErrProfileLoadFailed    = errors.New("加载候选人画像失败")
	ErrEvaluationFailed     = errors.New("评估筛选条件失败")
	ErrOutcomePersistFailed = errors.New("持久化筛选结论失败")
	ErrPublishResultFailed  = errors.New("发布筛选结果消息失败")
)

// ScreeningError 包含详细错误信息的自定义错误
type ScreeningError struct {
	SubmissionUUID string
	FilterConfigID string
	Op             string
	BaseErr        error
	Detail         string
}

func (e *ScreeningError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s, 配置:%s): %s", e.BaseErr, e.Op, e.SubmissionUUID, e.FilterConfigID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s, 配置:%s)", e.BaseErr, e.Op, e.SubmissionUUID, e.FilterConfigID)
}

func (e *ScreeningError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ScreeningError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewConfigLoadError(configID, detail string) error {
	return &ScreeningError{
		FilterConfigID: configID,
		Op:             "load_config",
		BaseErr:        ErrConfigLoadFailed,
		Detail:         detail,
	}
}

func NewProfileLoadError(uuid, detail string) error {
	return &ScreeningError{
		SubmissionUUID: uuid,
		Op:             "load_profile",
		BaseErr:        ErrProfileLoadFailed,
		Detail:         detail,
	}
}

func NewEvaluationError(uuid, configID, detail string) error {
	return &ScreeningError{
		SubmissionUUID: uuid,
		FilterConfigID: configID,
		Op:             "evaluate",
		BaseErr:        ErrEvaluationFailed,
		Detail:         detail,
	}
}

func NewPersistError(uuid, configID, detail string) error {
	return &ScreeningError{
		SubmissionUUID: uuid,
		FilterConfigID: configID,
		Op:             "persist",
		BaseErr:        ErrOutcomePersistFailed,
		Detail:         detail,
	}
}

func NewPublishError(uuid, configID, detail string) error {
	return &ScreeningError{
		SubmissionUUID: uuid,
		FilterConfigID: configID,
		Op:             "publish",
		BaseErr:        ErrPublishResultFailed,
		Detail:         detail,
	}
}
