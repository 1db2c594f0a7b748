package router

import (
	"net/http"

	_ "github.com/gbbspro/gbbs-archive/docs"
	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/handlers"
	"github.com/gbbspro/gbbs-archive/internal/middlewares"
	"github.com/gbbspro/gbbs-archive/internal/pkg/cache"
	"github.com/gbbspro/gbbs-archive/internal/pkg/storage"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/services/admin"
	"github.com/gbbspro/gbbs-archive/internal/services/archive"
	"github.com/gbbspro/gbbs-archive/internal/services/download"
	"github.com/gbbspro/gbbs-archive/internal/services/search"
	"github.com/gbbspro/gbbs-archive/internal/services/stats"
	"github.com/gbbspro/gbbs-archive/internal/services/upload"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// RouterConfig 包含初始化路由所需的所有依赖
type RouterConfig struct {
	db                 *gorm.DB
	redisClient        *redis.Client
	fileStorageService storage.StorageService
	esClient           *elasticsearch.Client // 可为 nil，搜索退回数据库查询
	settingsStore      *settings.Store
	cfg                *config.Config
}

func NewRouterConfig(
	db *gorm.DB,
	redisClient *redis.Client,
	fileStorageService storage.StorageService,
	esClient *elasticsearch.Client,
	settingsStore *settings.Store,
	cfg *config.Config,
) *RouterConfig {
	return &RouterConfig{
		db:                 db,
		redisClient:        redisClient,
		fileStorageService: fileStorageService,
		esClient:           esClient,
		settingsStore:      settingsStore,
		cfg:                cfg,
	}
}

func InitRouter(routerCfg *RouterConfig) *gin.Engine {
	gin.SetMode(gin.DebugMode)

	router := gin.Default()

	// Health Check 路由
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	store := routerCfg.settingsStore
	cacheService := cache.NewRedisCache(routerCfg.redisClient)
	registry := settings.NewFileTypeRegistry(store)
	resolver := settings.NewUploadPathResolver(store, routerCfg.cfg.Storage.UploadBasePath, routerCfg.cfg.Storage.UploadBaseURL)
	limiter := settings.NewRateLimiter(store, cacheService)
	ipResolver := download.NewTrustedProxyResolver(routerCfg.cfg.Server.TrustedProxies)

	archiveRepo := repositories.NewArchiveRepository(routerCfg.db)
	volumeRepo := repositories.NewVolumeRepository(routerCfg.db)
	attachmentRepo := repositories.NewAttachmentRepository(routerCfg.db)
	logRepo := repositories.NewDownloadLogRepository(routerCfg.db)

	searchService := search.NewSearchService(routerCfg.esClient, routerCfg.cfg.Elasticsearch.ArchiveIndex, archiveRepo)
	statsService := stats.NewStatsService(logRepo, archiveRepo, volumeRepo, resolver, cacheService)
	downloadService := download.NewDownloadService(archiveRepo, logRepo, store, resolver, limiter)
	archiveService := archive.NewArchiveService(
		archiveRepo, volumeRepo, attachmentRepo,
		registry, resolver, store,
		routerCfg.fileStorageService, cacheService, searchService,
	)

	// 本地存储时静态托管上传目录，实际下发仍走下载端点
	if routerCfg.cfg.Storage.Type == "local" {
		router.Static("/uploads", routerCfg.cfg.Storage.UploadBasePath)
	}

	v1 := router.Group("/api/v1")
	{
		// 认证相关路由 (无需认证)
		authGroup := v1.Group("/auth")
		{
			userRepo := repositories.NewUserRepository(routerCfg.db)
			authService := admin.NewAuthService(userRepo, routerCfg.cfg)

			authGroup.POST("/register", handlers.InitRegisterHandler(authService))
			authGroup.POST("/login", handlers.InitLoginHandler(authService))
			authGroup.GET("/me", middlewares.AuthMiddleware(routerCfg.cfg), handlers.InitMeHandler(authService))
		}

		// 档案浏览与搜索 (公开)
		v1.GET("/archives", handlers.InitListArchivesHandler(archiveService, statsService, store))
		v1.GET("/archives/search", handlers.InitSearchArchivesHandler(searchService, store))
		v1.GET("/archives/:id", handlers.InitGetArchiveHandler(archiveService, statsService, store))
		v1.GET("/volumes", handlers.InitListVolumesHandler(volumeRepo))
		v1.GET("/stats", handlers.InitStatsHandler(statsService))

		// 需要认证的路由组
		authenticated := v1.Group("/")
		authenticated.Use(middlewares.AuthMiddleware(routerCfg.cfg))

		// 档案管理，角色需在设置的许可列表中
		managed := authenticated.Group("/")
		managed.Use(middlewares.RequireArchiveManager(store))
		{
			managed.POST("/archives", handlers.InitCreateArchiveHandler(archiveService))
			managed.PUT("/archives/:id", handlers.InitSaveArchiveHandler(archiveService))
			managed.POST("/archives/:id/trash", handlers.InitTrashArchiveHandler(archiveService))
			managed.DELETE("/archives/:id", handlers.InitDeleteArchiveHandler(archiveService))

			managed.POST("/volumes", handlers.InitCreateVolumeHandler(volumeRepo))
			managed.PUT("/volumes/:id", handlers.InitUpdateVolumeHandler(volumeRepo))
			managed.DELETE("/volumes/:id", handlers.InitDeleteVolumeHandler(volumeRepo))

			uploadService := upload.NewUploadService(attachmentRepo, registry, resolver, store, routerCfg.fileStorageService)
			managed.POST("/upload", handlers.InitUploadHandler(uploadService))

			managed.GET("/stats/recent-downloads", handlers.InitRecentDownloadsHandler(statsService))
		}

		// 设置管理，仅管理员
		adminGroup := authenticated.Group("/settings")
		adminGroup.Use(middlewares.RequireAdmin())
		{
			adminGroup.GET("", handlers.InitGetSettingsHandler(store))
			adminGroup.PUT("", handlers.InitUpdateSettingsHandler(store))
			adminGroup.POST("/reset", handlers.InitResetSettingsHandler(store))
			adminGroup.GET("/export", handlers.InitExportSettingsHandler(store))
			adminGroup.POST("/import", handlers.InitImportSettingsHandler(store))
			adminGroup.GET("/file-types", handlers.InitListFileTypesHandler(registry))
			adminGroup.POST("/file-types/:category/:action", handlers.InitToggleFileTypeCategoryHandler(registry))
		}

		statsAdmin := authenticated.Group("/stats")
		statsAdmin.Use(middlewares.RequireAdmin())
		{
			statsAdmin.DELETE("/cache", handlers.InitClearStatsCacheHandler(statsService))
		}
	}

	// 下载端点名是运行时设置，挂在 NoRoute 上按当前设置分发
	// 未命中时返回标准 404
	router.NoRoute(
		middlewares.OptionalAuth(routerCfg.cfg),
		handlers.DownloadDispatch(downloadService, ipResolver, store),
	)

	return router
}
