package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/config"
	"github.com/Somye55/seatplanner-sub002/internal/api/handler"
	"github.com/Somye55/seatplanner-sub002/internal/api/router"
	"github.com/Somye55/seatplanner-sub002/internal/queue"
	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	"github.com/Somye55/seatplanner-sub002/internal/repository/memrepo"
	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/database"
	"github.com/Somye55/seatplanner-sub002/pkg/jwt"
	applogger "github.com/Somye55/seatplanner-sub002/pkg/logger"
	"github.com/Somye55/seatplanner-sub002/pkg/redis"
)

func main() {
	var (
		configPath string
		issueToken string
	)
	flagSet := pflag.NewFlagSet("seatplanner", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flagSet.StringVar(&issueToken, "issue-token", "", "签发一个 access token 后退出，格式 <user_id>:<role>")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "参数解析失败: %v\n", err)
		os.Exit(2)
	}

	// 1. 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化 JWT 管理器（签发模式不需要其余依赖）
	jwtMgr := jwt.NewManager(&cfg.Auth)
	if issueToken != "" {
		if err := printToken(jwtMgr, issueToken); err != nil {
			fmt.Fprintf(os.Stderr, "签发 token 失败: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// 3. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.String("log_level", cfg.Log.Level),
	)

	// 4. 初始化存储
	repo, closeStore := openStore(cfg, logger)
	defer closeStore()

	// 5. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，Token 黑名单、限流与跨实例推送将不可用", zap.Error(err))
			rdb = nil
		}
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 6. 实时推送
	hub := realtime.NewHub(cfg.Realtime.SendBuffer, logger)
	if cfg.Realtime.RedisRelay && rdb != nil {
		relay := realtime.NewRedisRelay(rdb, cfg.Realtime.RelayChannel, logger)
		hub.SetForwarder(relay)
		relay.Start(rootCtx, hub)
	}
	go hub.Run(rootCtx)

	// 7. 依赖注入: Repository → Service → Handler
	publisher := queue.NewPublisher(&cfg.AMQP, logger)
	svc := service.NewService(cfg, repo, hub, publisher, logger)

	// 未启用 Redis 时登出不可用，所有 token 视为未吊销
	var blacklist service.TokenBlacklist
	if rdb != nil {
		blacklist = rdb
	}
	authSvc := service.NewAuthService(blacklist, logger)
	h := handler.NewHandler(svc, authSvc, hub, cfg.Server.CORS.AllowOrigins, logger)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, authSvc, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 停止 Hub 与 Redis 转发
	stop()

	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// openStore 按配置打开记录存储，返回关闭函数
func openStore(cfg *config.Config, logger *zap.Logger) (*repository.Repository, func()) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("使用进程内存储，重启后数据丢失")
		return memrepo.New(), func() {}
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.Driver, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	return repository.NewRepository(db), func() { _ = sqlDB.Close() }
}

// printToken 运维/联调用：本服务不负责登录，token 通常由外部身份服务签发
func printToken(mgr *jwt.Manager, arg string) error {
	userID, role, ok := strings.Cut(arg, ":")
	if !ok || userID == "" {
		return fmt.Errorf("格式应为 <user_id>:<role>")
	}
	switch role {
	case jwt.RoleAdmin, jwt.RoleTeacher, jwt.RoleStudent:
	default:
		return fmt.Errorf("未知角色 %q", role)
	}
	token, err := mgr.GenerateAccessToken(userID, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
