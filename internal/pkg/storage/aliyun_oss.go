package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
)

type AliyunOSSStorageService struct {
	client *oss.Client
	bucket *oss.Bucket
	cfg    *config.AliyunOSSConfig // 阿里云OSS的配置信息
}

// NewAliyunOSSStorageService 创建并返回一个 AliyunOSSStorageService 实例
func NewAliyunOSSStorageService(cfg *config.AliyunOSSConfig) (*AliyunOSSStorageService, error) {
	// OSS Endpoint 应该包含 http:// 或 https:// 前缀
	ossClient, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		logger.Error("初始化阿里云OSS客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化阿里云OSS客户端: %w", err)
	}
	bucket, err := ossClient.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}

	logger.Info("阿里云OSS客户端初始化成功", zap.String("endpoint", cfg.Endpoint))
	return &AliyunOSSStorageService{
		client: ossClient,
		bucket: bucket,
		cfg:    cfg,
	}, nil
}

func (s *AliyunOSSStorageService) PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error) {
	options := []oss.Option{
		oss.ContentType(contentType),
	}
	err := s.bucket.PutObject(objectName, reader, options...)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("阿里云OSS上传文件失败: %w", err)
	}

	// PutObject 本身不返回对象信息，尺寸沿用传入值
	return PutObjectResult{
		Key:  objectName,
		Size: objectSize,
	}, nil
}

func (s *AliyunOSSStorageService) GetObject(ctx context.Context, objectName string) (GetObjectResult, error) {
	reader, err := s.bucket.GetObject(objectName)
	if err != nil {
		if isOSSNotFound(err) {
			return GetObjectResult{}, ErrObjectNotFound
		}
		return GetObjectResult{}, fmt.Errorf("阿里云OSS获取文件失败: %w", err)
	}

	info, err := s.StatObject(ctx, objectName)
	if err != nil {
		logger.Warn("获取OSS对象元数据失败", zap.String("object", objectName), zap.Error(err))
		return GetObjectResult{Reader: reader, Size: -1}, nil
	}

	return GetObjectResult{
		Reader:   reader,
		Size:     info.Size,
		MimeType: info.MimeType,
	}, nil
}

func (s *AliyunOSSStorageService) StatObject(ctx context.Context, objectName string) (ObjectInfo, error) {
	props, err := s.bucket.GetObjectDetailedMeta(objectName)
	if err != nil {
		if isOSSNotFound(err) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("获取OSS对象元数据失败: %w", err)
	}

	size := int64(0)
	if lenStr := props.Get("Content-Length"); lenStr != "" {
		if parsed, perr := strconv.ParseInt(lenStr, 10, 64); perr == nil {
			size = parsed
		}
	}
	return ObjectInfo{
		Key:      objectName,
		Size:     size,
		MimeType: props.Get("Content-Type"),
	}, nil
}

func (s *AliyunOSSStorageService) RemoveObject(ctx context.Context, objectName string) error {
	if err := s.bucket.DeleteObject(objectName); err != nil {
		return fmt.Errorf("阿里云OSS删除文件失败: %w", err)
	}
	return nil
}

func (s *AliyunOSSStorageService) ObjectExists(ctx context.Context, objectName string) (bool, error) {
	exists, err := s.bucket.IsObjectExist(objectName)
	if err != nil {
		return false, fmt.Errorf("检查OSS对象存在性失败: %w", err)
	}
	return exists, nil
}

func (s *AliyunOSSStorageService) ObjectURL(objectName string) string {
	scheme := "https"
	if !s.cfg.UseSSL {
		scheme = "http"
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(s.cfg.Endpoint, "https://"), "http://")
	return fmt.Sprintf("%s://%s.%s/%s", scheme, s.cfg.BucketName, endpoint, strings.TrimLeft(objectName, "/"))
}

// isOSSNotFound 判断错误是否为对象不存在
func isOSSNotFound(err error) bool {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == 404
	}
	return false
}
