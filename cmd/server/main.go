package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"hums/backend/config"
	"hums/backend/internal/access"
	"hums/backend/internal/api/handler"
	"hums/backend/internal/api/router"
	"hums/backend/internal/event"
	"hums/backend/internal/repository"
	"hums/backend/internal/service"
	"hums/backend/internal/worker"
	"hums/backend/pkg/calendar"
	"hums/backend/pkg/database"
	"hums/backend/pkg/jwt"
	applogger "hums/backend/pkg/logger"
	"hums/backend/pkg/metrics"
	"hums/backend/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Schedule.Timezone),
	)

	// 3. 排班时区
	cal, err := calendar.New(cfg.Schedule.Timezone)
	if err != nil {
		logger.Fatal("加载排班时区失败", zap.Error(err))
	}

	// 4. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 5. 连接 Redis（可选：未配置或连接失败时降级为进程内限流，黑名单不可用）
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，降级运行", zap.Error(err))
			rdb = nil
		}
	}

	// 6. 指标
	var (
		collector metrics.Collector = metrics.NewNop()
		gatherer  prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.NewPrometheus(reg, cfg.Metrics.Namespace)
		gatherer = reg
	}

	// 7. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	checker := access.NewClaimsChecker()
	broker := event.NewBroker(event.Options{
		BufferSize: cfg.Schedule.EventBufferSize,
		ReplaySize: cfg.Schedule.EventReplaySize,
	}, collector, logger)

	repo := repository.NewRepository(db)
	svc := service.NewService(service.Deps{
		Config:   cfg,
		Repo:     repo,
		Calendar: cal,
		Events:   broker,
		Metrics:  collector,
		Access:   checker,
		Logger:   logger,
	})
	h := handler.NewHandler(cfg, svc, broker, logger)

	// 8. 初始化路由
	engine := router.Setup(router.Deps{
		Config:     cfg,
		Handler:    h,
		JWT:        jwtMgr,
		Redis:      rdb,
		Permission: checker,
		Gatherer:   gatherer,
		Logger:     logger,
	})

	// 9. 后台任务：缺勤扫描
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	sweeper := worker.NewAttendanceSweeper(svc.Attendance, cfg.Schedule.SweepInterval, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal("启动缺勤扫描失败", zap.Error(err))
	}

	// 10. 启动 HTTP 服务器（优雅关闭）
	// 事件流是长连接，不设置 WriteTimeout
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	// 先关闭事件订阅，否则长连接会阻塞 Shutdown
	broker.Close()

	wait := time.Duration(cfg.Server.ShutdownWait) * time.Second
	if wait <= 0 {
		wait = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := sweeper.Stop(); err != nil {
		logger.Warn("停止缺勤扫描失败", zap.Error(err))
	}
	stop()

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
