package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
)

// @title GBBS 软件档案服务 API
// @version 1.0
// @description Apple II GBBS 软件档案的管理与下载服务
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("加载配置出错", zap.Error(err))
	}

	//初始化日志系统
	if err = os.MkdirAll("logs", 0755); err != nil {
		logger.Fatal("初始化日志系统失败", zap.Error(err))
	}
	logger.InitLogger(cfg.Log.OutputPath, cfg.Log.ErrorPath, cfg.Log.Level)
	defer logger.Sync() // 确保在应用退出时刷新所有缓冲的日志条目

	logger.Info("启动 GBBS 软件档案服务...")

	// 创建并构建应用服务器实例
	srv, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("无法启动应用程序", zap.Error(err))
	}

	// 创建一个通道用于接收停止信号
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	// 启动服务器
	srv.Run(stopChan)

	logger.Info("GBBS 软件档案服务已退出。")
}
