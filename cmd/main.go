package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"crm_configurator_v1/internal/config"
	"crm_configurator_v1/internal/controller"
	"crm_configurator_v1/internal/middleware"
	"crm_configurator_v1/internal/model"
	"crm_configurator_v1/internal/repository"
	"crm_configurator_v1/internal/router"
	"crm_configurator_v1/internal/service"
	"crm_configurator_v1/internal/task"
	"crm_configurator_v1/pkg/database"
	"crm_configurator_v1/pkg/logger"
	"crm_configurator_v1/pkg/oracle"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger 尚未创建
		panic(err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 2. 初始化数据库
	db := initDatabase(cfg, log)

	// 3. 初始化依赖
	deps := initDependencies(cfg, db, log)

	// 4. 启动定时任务
	sweep := initTasks(cfg, deps, log)
	defer sweep.Stop()

	// 5. 初始化路由
	r := router.SetupRouter(router.Options{
		Configurator: deps.Controller,
		Auth:         deps.Auth,
		Throttle:     deps.Throttle,
	})

	// 6. 启动服务
	startServer(cfg.Server.Port, r, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB         *gorm.DB
	Oracle     *oracle.Client
	Submission repository.SubmissionRepository
	Sessions   *service.SessionManager
	Throttle   *middleware.Throttle
	Auth       *middleware.Authenticator
	Controller *controller.ConfiguratorController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库并注册审计回调
func initDatabase(cfg *config.Config, log *logger.Logger) *gorm.DB {
	db, err := database.Open(database.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.Log.Mode != "production" && cfg.Log.Mode != "prod",
	}, &model.Submission{})
	if err != nil {
		log.Fatal("数据库初始化失败", "error", err)
	}
	if err := middleware.RegisterAuditCallbacks(db); err != nil {
		log.Fatal("注册审计回调失败", "error", err)
	}
	log.Info("数据库连接成功", "driver", cfg.Database.Driver)
	return db
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB, log *logger.Logger) *Dependencies {
	headers := map[string]string{}
	if cfg.Oracle.Cookie != "" {
		headers["Cookie"] = cfg.Oracle.Cookie
	}
	oracleClient := oracle.NewClient(&oracle.Config{
		BaseURL:    cfg.Oracle.BaseURL,
		Timeout:    cfg.Oracle.Timeout,
		RetryCount: cfg.Oracle.Retries,
		Debug:      cfg.Oracle.Debug,
		Headers:    headers,
	})

	submissionRepo := repository.NewSubmissionRepository(db)
	sessions := service.NewSessionManager(oracleClient, submissionRepo, cfg.Rules(), log)
	throttle := middleware.NewThrottle(cfg.Session.SubmitCooldown)

	return &Dependencies{
		DB:         db,
		Oracle:     oracleClient,
		Submission: submissionRepo,
		Sessions:   sessions,
		Throttle:   throttle,
		Auth: middleware.NewAuthenticator(middleware.JWTConfig{
			SecretKey: cfg.Auth.JWTSecret,
			Issuer:    cfg.Auth.Issuer,
			Required:  cfg.Auth.Required,
		}),
		Controller: controller.NewConfiguratorController(sessions, func(id string) {
			throttle.Reset(middleware.ConfirmKey(id))
		}),
	}
}

// ==================== 定时任务 ====================

// initTasks 启动空闲会话清理
func initTasks(cfg *config.Config, deps *Dependencies, log *logger.Logger) *task.SessionSweepTask {
	sweep := task.NewSessionSweepTask(
		deps.Sessions,
		cfg.Session.SweepCron,
		cfg.Session.IdleTTL,
		log,
		func(id string) { deps.Throttle.Reset(middleware.ConfirmKey(id)) },
	)
	if err := sweep.Start(); err != nil {
		log.Fatal("定时任务启动失败", "error", err)
	}
	return sweep
}

// ==================== 服务启动 ====================

// startServer 启动服务并等待退出信号
func startServer(port string, r *gin.Engine, log *logger.Logger) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("服务启动", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("服务启动失败", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务强制关闭", "error", err)
	}
	log.Info("服务已退出")
}
