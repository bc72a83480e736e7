package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"screening-agent-go/internal/config"
	"screening-agent-go/internal/storage/models"
	"screening-agent-go/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("screening-agent-go/storage/mysql")

// ErrFilterConfigNotFound 请求的筛选配置不存在
var ErrFilterConfigNotFound = errors.New("筛选配置不存在")

// ErrProfileNotFound 请求的候选人画像不存在
var ErrProfileNotFound = errors.New("候选人画像不存在")

// ErrOutcomeNotFound 请求的筛选结论不存在
var ErrOutcomeNotFound = errors.New("筛选结论不存在")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	// 为所有CRUD操作注册Before和After回调
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())),
		)

		// 记录错误（如果有），但正确处理ErrRecordNotFound
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// Database 关系数据库接口
type Database interface {
	// DB 返回GORM数据库连接实例
	DB() *gorm.DB

	// Close 关闭数据库连接
	Close() error
}

// 确保MySQL实现了Database接口
var _ Database = (*MySQL)(nil)

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	// 注册OpenTelemetry追踪插件
	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移期间关闭SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.FilterConfig{},
		&models.CandidateProfile{},
		&models.ScreeningOutcome{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// GetFilterConfigByID 通过ID获取筛选配置
func (m *MySQL) GetFilterConfigByID(ctx context.Context, configID string) (*models.FilterConfig, error) {
	var cfg models.FilterConfig
	err := m.db.WithContext(ctx).Where("config_id = ?", configID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFilterConfigNotFound, configID)
		}
		return nil, fmt.Errorf("查询筛选配置失败: %w", err)
	}
	return &cfg, nil
}

// ListActiveFilterConfigs 列出所有ACTIVE状态的筛选配置
func (m *MySQL) ListActiveFilterConfigs(ctx context.Context) ([]models.FilterConfig, error) {
	var configs []models.FilterConfig
	if err := m.db.WithContext(ctx).Where("status = ?", "ACTIVE").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("查询ACTIVE筛选配置失败: %w", err)
	}
	return configs, nil
}

// SaveFilterConfig 保存筛选配置，ConfigID为空时生成UUIDv7
func (m *MySQL) SaveFilterConfig(ctx context.Context, cfg *models.FilterConfig) error {
	if cfg == nil {
		return fmt.Errorf("筛选配置不能为空")
	}
	if cfg.ConfigID == "" {
		newUUID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成UUIDv7失败: %w", err)
		}
		cfg.ConfigID = newUUID.String()
	}
	if err := m.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return fmt.Errorf("保存筛选配置失败: %w", err)
	}
	return nil
}

// DeleteFilterConfig 删除筛选配置。结论表对配置ID有级联外键，
// 该配置下的历史结论会一并删除。
func (m *MySQL) DeleteFilterConfig(ctx context.Context, configID string) error {
	result := m.db.WithContext(ctx).Where("config_id = ?", configID).Delete(&models.FilterConfig{})
	if result.Error != nil {
		return fmt.Errorf("删除筛选配置失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrFilterConfigNotFound, configID)
	}
	return nil
}

// GetCandidateProfile 通过提交UUID获取候选人画像
func (m *MySQL) GetCandidateProfile(ctx context.Context, submissionUUID string) (*models.CandidateProfile, error) {
	var profile models.CandidateProfile
	err := m.db.WithContext(ctx).Where("submission_uuid = ?", submissionUUID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, submissionUUID)
		}
		return nil, fmt.Errorf("查询候选人画像失败: %w", err)
	}
	return &profile, nil
}

// SaveCandidateProfile 保存候选人画像，主键冲突时更新事实和文本路径
func (m *MySQL) SaveCandidateProfile(ctx context.Context, profile *models.CandidateProfile) error {
	if profile == nil || profile.SubmissionUUID == "" {
		return fmt.Errorf("候选人画像或提交UUID不能为空")
	}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"candidate_name", "facts_json", "parsed_text_path_oss", "raw_text_md5", "status"}),
	}).Create(profile).Error
}

// ListPendingProfiles 按批量大小取待筛选的候选人画像
func (m *MySQL) ListPendingProfiles(ctx context.Context, limit int) ([]models.CandidateProfile, error) {
	var profiles []models.CandidateProfile
	query := m.db.WithContext(ctx).Where("status = ?", "PENDING_SCREENING").Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("查询待筛选画像失败: %w", err)
	}
	return profiles, nil
}

// UpdateProfileStatus 更新候选人画像的筛选处理状态
func (m *MySQL) UpdateProfileStatus(ctx context.Context, submissionUUID string, status string) error {
	return m.db.WithContext(ctx).Model(&models.CandidateProfile{}).
		Where("submission_uuid = ?", submissionUUID).
		Update("status", status).Error
}

// UpsertScreeningOutcome 写入筛选结论，同一(候选人,配置)组合重复筛选时覆盖旧结论
func (m *MySQL) UpsertScreeningOutcome(ctx context.Context, outcome *models.ScreeningOutcome) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpsertScreeningOutcome",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.operation", "INSERT_ON_DUPLICATE"),
		attribute.String("db.sql.table", "screening_outcomes"),
		attribute.String("screening.submission_uuid", outcome.SubmissionUUID),
		attribute.String("screening.filter_config_id", outcome.FilterConfigID),
		attribute.Bool("screening.qualified", outcome.Qualified),
	)

	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_uuid"}, {Name: "filter_config_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"qualified", "reason_text", "outcomes_json", "ruleset_version", "evaluated_at"}),
	}).Create(outcome).Error

	if err != nil {
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeDB,
			attribute.String("screening.reason", tracing.SafeReason(outcome.ReasonText)))
		return fmt.Errorf("写入筛选结论失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetScreeningOutcome 查询某候选人在某配置下的筛选结论
func (m *MySQL) GetScreeningOutcome(ctx context.Context, submissionUUID, configID string) (*models.ScreeningOutcome, error) {
	var outcome models.ScreeningOutcome
	err := m.db.WithContext(ctx).
		Where("submission_uuid = ? AND filter_config_id = ?", submissionUUID, configID).
		First(&outcome).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrOutcomeNotFound, submissionUUID, configID)
		}
		return nil, fmt.Errorf("查询筛选结论失败: %w", err)
	}
	return &outcome, nil
}

// CountOutcomesByConfig 统计某配置下合格/不合格的结论数
func (m *MySQL) CountOutcomesByConfig(ctx context.Context, configID string) (qualified int64, total int64, err error) {
	base := m.db.WithContext(ctx).Model(&models.ScreeningOutcome{}).Where("filter_config_id = ?", configID)
	if err = base.Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("统计筛选结论总数失败: %w", err)
	}
	if err = base.Where("qualified = ?", true).Count(&qualified).Error; err != nil {
		return 0, 0, fmt.Errorf("统计合格结论数失败: %w", err)
	}
	return qualified, total, nil
}
