package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ScreenModulePrefix 筛选模块
	ScreenModulePrefix = "screen"

	// EntityConfig 筛选配置实体
	EntityConfig = "config"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityVerdict 筛选结论实体
	EntityVerdict = "verdict"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"

	// KeyFilterConfigCache 筛选配置缓存 (STRING, 存条件树JSON)
	// 格式: app:screen:config:{configID}
	KeyFilterConfigCache = AppPrefix + ":" + ScreenModulePrefix + ":" + EntityConfig + ":%s"

	// KeyScreeningLock 批量筛选分布式锁 (STRING)
	// 格式: app:screen:lock:{configID}
	KeyScreeningLock = AppPrefix + ":" + ScreenModulePrefix + ":" + EntityLock + ":%s"

	// KeyVerdictCache 单候选人筛选结论缓存 (STRING)
	// 格式: app:screen:verdict:{configID}:{submissionUUID}
	KeyVerdictCache = AppPrefix + ":" + ScreenModulePrefix + ":" + EntityVerdict + ":%s:%s"

	// KeyScreenedTextMD5Set 已筛选文本MD5集合，快速去重 (SET)
	// 格式: app:screen:dedup_set
	KeyScreenedTextMD5Set = AppPrefix + ":" + ScreenModulePrefix + ":" + EntityDedupSet
)
