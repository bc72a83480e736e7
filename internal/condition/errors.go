package condition

import (
	"errors"
	"fmt"
)

// ErrBadFilterConfig 筛选条件配置错误的基础错误。
// 区别于普通的"不满足条件"结果：配置错误说明条件定义本身坏了，需要人工修复。
var ErrBadFilterConfig = errors.New("筛选条件配置无效")

// ConfigError 带定位信息的配置错误
type ConfigError struct {
	Op     string // 出错环节: decode, compare, combine
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s (环节:%s): %s", ErrBadFilterConfig, e.Op, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return ErrBadFilterConfig
}

func newConfigError(op, detail string) error {
	return &ConfigError{Op: op, Detail: detail}
}
