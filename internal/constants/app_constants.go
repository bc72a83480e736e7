package constants

import "time"

const (
	// DefaultRulesetVer 筛选规则集版本占位
	DefaultRulesetVer = "1.0"

	// FilterConfigCacheDuration 筛选配置缓存时长
	FilterConfigCacheDuration = 24 * time.Hour

	// ScreeningLockDuration 批量筛选分布式锁时长
	ScreeningLockDuration = 10 * time.Minute
)
