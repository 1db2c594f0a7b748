package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/router"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/gbbspro/gbbs-archive/internal/setup"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	db          *gorm.DB
	redisClient *redis.Client
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	// 初始化数据库连接，包含表结构迁移
	setup.InitMySQL(&cfg.MySQL)

	// 初始化 Redis 连接
	setup.InitRedis(cfg)

	// 初始化 Elasticsearch，失败不阻断启动
	setup.InitElasticsearchClient(&cfg.Elasticsearch)

	// 初始化存储后端
	fileStorageService := setup.InitStorage(cfg)

	// 设置仓库在首次启动时写入默认设置行
	settingsRepo := repositories.NewSettingsRepository(setup.DB)
	settingsStore, err := settings.NewStore(settingsRepo, cfg.Server.BaseURL, cfg.Server.PrettyURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize settings store: %w", err)
	}
	logger.Info("设置已加载", zap.Uint64("version", settingsStore.Version()))

	// 初始化 Gin 引擎和注册路由
	routerCfg := router.NewRouterConfig(
		setup.DB, setup.RedisClientGlobal, fileStorageService,
		setup.EsClient, settingsStore, cfg,
	)
	engine := router.InitRouter(routerCfg)

	addr := ":" + cfg.Server.Port
	logger.Info(fmt.Sprintf("Server is running on %s", cfg.Server.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	return &Server{
		router:      engine,
		httpServer:  httpServer,
		db:          setup.DB,
		redisClient: setup.RedisClientGlobal,
	}, nil
}

// Run 启动服务器并处理优雅关机
func (s *Server) Run(stopChan chan os.Signal) {
	defer setup.CloseRedis()
	defer setup.CloseMySQLDB()

	// 启动 HTTP 服务器
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// 等待停止信号
	<-stopChan
	logger.Info("Shutting down server...")

	// 优雅关机
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}
