package storage

import (
	"context"
	"errors"
	"io"

	"github.com/gbbspro/gbbs-archive/internal/config"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("存储对象不存在")

// StorageService 定义了通用的文件存储操作接口
// objectName 是相对上传根的路径，例如 gbbs-archive/12/game.dsk
type StorageService interface {
	// 上传文件，返回存储对象的信息或错误
	PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error)
	// 下载文件，返回一个读取器和对象信息
	GetObject(ctx context.Context, objectName string) (GetObjectResult, error)
	// 获取对象元信息，不存在时返回 ErrObjectNotFound
	StatObject(ctx context.Context, objectName string) (ObjectInfo, error)
	// 删除文件
	RemoveObject(ctx context.Context, objectName string) error
	// 检查对象是否存在
	ObjectExists(ctx context.Context, objectName string) (bool, error)
	// 获取对象的公开访问URL
	ObjectURL(objectName string) string
}

type PutObjectResult struct {
	Key  string
	Size int64
	ETag string // 对象哈希值
}

type ObjectInfo struct {
	Key      string
	Size     int64
	MimeType string
}

type GetObjectResult struct {
	Reader   io.ReadCloser // 文件内容读取器，需要在使用后关闭
	Size     int64
	MimeType string
}

// NewStorageService 根据配置创建存储后端
func NewStorageService(cfg *config.Config) (StorageService, error) {
	switch cfg.Storage.Type {
	case "local":
		return NewLocalStorageService(&cfg.Storage)
	case "minio":
		return NewMinIOStorageService(&cfg.MinIO)
	case "aliyun_oss":
		return NewAliyunOSSStorageService(&cfg.AliyunOSS)
	default:
		return nil, errors.New("invalid storageType")
	}
}
