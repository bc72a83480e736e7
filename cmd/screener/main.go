package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screening-agent-go/internal/config"
	"screening-agent-go/internal/logger"
	"screening-agent-go/internal/screener"
	"screening-agent-go/internal/storage"
	"screening-agent-go/internal/tracing"

	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"              //nolint:gochecknoglobals
	serviceName = "screening-agent-go" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	// 1. 加载配置文件
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		// logger还没初始化，直接写stderr退出
		os.Stderr.WriteString("加载配置失败: " + err.Error() + "\n")
		os.Exit(1)
	}

	// 2. 初始化日志系统
	initLogger(cfg)
	logger.Info().Str("version", version).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化链路追踪
	shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("关闭链路追踪失败")
		}
	}()

	// 4. 初始化存储管理器
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储管理器失败")
	}
	defer storageManager.Close()

	// 5. 初始化筛选服务
	svc, err := screener.NewService(cfg, storageManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化筛选服务失败")
	}
	logger.Info().Msg("筛选服务初始化成功")

	// 6. 启动筛选任务消费者
	if _, err := svc.StartScreeningConsumer(ctx); err != nil {
		logger.Fatal().Err(err).Msg("启动筛选任务消费者失败")
	}
	logger.Info().
		Str("queue", cfg.RabbitMQ.ScreeningTaskQueue).
		Int("prefetch", cfg.RabbitMQ.PrefetchCount).
		Msg("筛选任务消费者已启动")

	// 7. 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	// cancel让处理中的任务尽快收尾，进程退出时消费者随连接关闭停止
	cancel()

	logger.Info().Msg("优雅退出完成")
}

// 初始化日志系统
func initLogger(cfg *config.Config) {
	logConfig := logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	}
	if logConfig.Level == "" {
		logConfig.Level = "info"
	}
	if logConfig.TimeFormat == "" {
		logConfig.TimeFormat = time.RFC3339
	}

	logger.Init(logConfig)

	// 全局字段
	logger.Logger = logger.Logger.With().
		Str("app", serviceName).
		Str("version", version).
		Logger()
}
