package setup

import (
	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/pkg/storage"
	"go.uber.org/zap"
)

// InitStorage 按配置初始化文件存储后端
// local 直接落盘在上传根目录，minio 与 aliyun_oss 走对象存储
func InitStorage(cfg *config.Config) storage.StorageService {
	fileStorageService, err := storage.NewStorageService(cfg)
	if err != nil {
		logger.Fatal("初始化存储服务失败", zap.String("type", cfg.Storage.Type), zap.Error(err))
	}
	logger.Info("存储服务已初始化", zap.String("type", cfg.Storage.Type))
	return fileStorageService
}
