package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
)

// LocalStorageService 基于本地文件系统的存储后端
// 对象直接落在上传根目录下，URL 由静态文件路由对外提供
type LocalStorageService struct {
	basePath string
	baseURL  string
}

// NewLocalStorageService 创建并返回一个 LocalStorageService 实例
func NewLocalStorageService(cfg *config.StorageConfig) (*LocalStorageService, error) {
	basePath := filepath.Clean(cfg.UploadBasePath)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error("初始化本地存储目录失败", zap.String("basePath", basePath), zap.Error(err))
		return nil, fmt.Errorf("无法初始化本地存储目录: %w", err)
	}

	logger.Info("本地存储初始化成功", zap.String("basePath", basePath))
	return &LocalStorageService{
		basePath: basePath,
		baseURL:  strings.TrimRight(cfg.UploadBaseURL, "/"),
	}, nil
}

// resolve 把对象名映射为物理路径，拒绝逃出根目录的路径
func (s *LocalStorageService) resolve(objectName string) (string, error) {
	full := filepath.Join(s.basePath, filepath.FromSlash(objectName))
	if !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("对象名非法: %s", objectName)
	}
	return full, nil
}

func (s *LocalStorageService) PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error) {
	full, err := s.resolve(objectName)
	if err != nil {
		return PutObjectResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return PutObjectResult{}, fmt.Errorf("创建对象目录失败: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("创建对象文件失败: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(full)
		return PutObjectResult{}, fmt.Errorf("写入对象文件失败: %w", err)
	}
	return PutObjectResult{Key: objectName, Size: written}, nil
}

func (s *LocalStorageService) GetObject(ctx context.Context, objectName string) (GetObjectResult, error) {
	full, err := s.resolve(objectName)
	if err != nil {
		return GetObjectResult{}, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return GetObjectResult{}, ErrObjectNotFound
		}
		return GetObjectResult{}, fmt.Errorf("打开对象文件失败: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return GetObjectResult{}, fmt.Errorf("读取对象信息失败: %w", err)
	}
	return GetObjectResult{
		Reader:   f,
		Size:     info.Size(),
		MimeType: mimeTypeByName(objectName),
	}, nil
}

func (s *LocalStorageService) StatObject(ctx context.Context, objectName string) (ObjectInfo, error) {
	full, err := s.resolve(objectName)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("读取对象信息失败: %w", err)
	}
	return ObjectInfo{
		Key:      objectName,
		Size:     info.Size(),
		MimeType: mimeTypeByName(objectName),
	}, nil
}

func (s *LocalStorageService) RemoveObject(ctx context.Context, objectName string) error {
	full, err := s.resolve(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除对象文件失败: %w", err)
	}
	return nil
}

func (s *LocalStorageService) ObjectExists(ctx context.Context, objectName string) (bool, error) {
	_, err := s.StatObject(ctx, objectName)
	if err != nil {
		if err == ErrObjectNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStorageService) ObjectURL(objectName string) string {
	return s.baseURL + "/" + strings.TrimLeft(objectName, "/")
}

func mimeTypeByName(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
