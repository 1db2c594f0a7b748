package upload

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/pkg/storage"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadService 档案文件上传
// 档案尚无 ID 时文件落在 temp 目录，档案保存时由保存管线搬迁
type UploadService interface {
	Upload(ctx context.Context, archiveID uint64, volumeSlug, fileName, contentType string, size int64, reader io.Reader) (*models.Attachment, error)
}

type uploadService struct {
	attachmentRepo repositories.AttachmentRepository
	registry       *settings.FileTypeRegistry
	resolver       *settings.UploadPathResolver
	provider       settings.Provider
	storageSvc     storage.StorageService
}

var _ UploadService = (*uploadService)(nil)

// NewUploadService 创建上传服务实例
func NewUploadService(
	attachmentRepo repositories.AttachmentRepository,
	registry *settings.FileTypeRegistry,
	resolver *settings.UploadPathResolver,
	provider settings.Provider,
	storageSvc storage.StorageService,
) UploadService {
	return &uploadService{
		attachmentRepo: attachmentRepo,
		registry:       registry,
		resolver:       resolver,
		provider:       provider,
		storageSvc:     storageSvc,
	}
}

func (s *uploadService) Upload(ctx context.Context, archiveID uint64, volumeSlug, fileName, contentType string, size int64, reader io.Reader) (*models.Attachment, error) {
	agg := s.provider.Settings()

	name := sanitizeFileName(fileName)
	if name == "" {
		return nil, xerr.ErrInvalidParams
	}
	if !s.registry.IsAllowed(name) {
		return nil, xerr.ErrFileTypeNotAllowed
	}
	if size > agg.MaxFileSizeBytes() {
		return nil, xerr.ErrFileTooLarge
	}

	// 本地后端需要目录和哨兵文件先就位
	if _, err := s.resolver.EnsureUploadDirectory(archiveID, volumeSlug); err != nil {
		logger.Warn("上传目录准备失败", zap.Error(err))
	}

	objectName := s.objectName(archiveID, volumeSlug, name)
	if exists, err := s.storageSvc.ObjectExists(ctx, objectName); err == nil && exists {
		// 同名对象已存在，文件名加唯一前缀避免覆盖
		name = uuid.New().String()[:8] + "-" + name
		objectName = s.objectName(archiveID, volumeSlug, name)
	}

	result, err := s.storageSvc.PutObject(ctx, objectName, reader, size, contentType)
	if err != nil {
		logger.Error("上传存储对象失败", zap.String("object", objectName), zap.Error(err))
		return nil, xerr.ErrStorageError
	}

	attachment := &models.Attachment{
		FileName: name,
		Path:     objectName,
		URL:      s.storageSvc.ObjectURL(objectName),
		MimeType: contentType,
		Size:     uint64(result.Size),
	}
	if err := s.attachmentRepo.Create(attachment); err != nil {
		return nil, err
	}

	logger.Info("文件上传完成",
		zap.String("fileName", name),
		zap.String("object", objectName),
		zap.Int64("size", result.Size))
	return attachment, nil
}

// objectName 计算对象在存储后端中的键，相对上传根目录
func (s *uploadService) objectName(archiveID uint64, volumeSlug, name string) string {
	dir := s.resolver.UploadDirectory(archiveID, volumeSlug)
	rel, err := filepath.Rel(s.resolver.BasePath(), dir)
	if err != nil || rel == "." {
		return name
	}
	return path.Join(filepath.ToSlash(rel), name)
}

// sanitizeFileName 剥离路径成分，拒绝目录穿越
func sanitizeFileName(fileName string) string {
	name := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
