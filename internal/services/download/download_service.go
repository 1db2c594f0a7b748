package download

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequestMeta 下载请求的来访信息，用于访问控制与日志
type RequestMeta struct {
	UserID    *uint64
	IP        string
	UserAgent string
	Referer   string
	LoggedIn  bool
}

// Resolution 下载标识解析结果
// LocalPath 非空时直接流式下发本地文件，否则重定向到远程 URL
type Resolution struct {
	Archive   *models.Archive
	File      *models.ArchiveFile
	FileName  string
	FileURL   string
	LocalPath string
	Size      int64
}

// DownloadService 下载请求的解析、策略检查与日志
type DownloadService interface {
	// Resolve 执行完整的下载检查链:
	// 登录校验、限流、标识解析、档案与文件定位、文件存在性检查、日志
	Resolve(ctx context.Context, downloadID string, meta RequestMeta) (*Resolution, error)
	// CheckFileExists 文件存在性检查，含历史文件名回退
	CheckFileExists(fileURL string) bool
	// WriteBundle 把档案的全部本地文件打成 zip 写入 w
	WriteBundle(ctx context.Context, archiveRef string, w io.Writer) (string, error)
}

type downloadService struct {
	archiveRepo repositories.ArchiveRepository
	logRepo     repositories.DownloadLogRepository
	provider    settings.Provider
	resolver    *settings.UploadPathResolver
	limiter     *settings.RateLimiter
}

var _ DownloadService = (*downloadService)(nil)

// NewDownloadService 创建下载服务实例
func NewDownloadService(
	archiveRepo repositories.ArchiveRepository,
	logRepo repositories.DownloadLogRepository,
	provider settings.Provider,
	resolver *settings.UploadPathResolver,
	limiter *settings.RateLimiter,
) DownloadService {
	return &downloadService{
		archiveRepo: archiveRepo,
		logRepo:     logRepo,
		provider:    provider,
		resolver:    resolver,
		limiter:     limiter,
	}
}

// ParseDownloadID 把下载标识拆成档案引用与文件键
// 在第一个 '-' 处切分，档案引用是数字 ID 或 slug 不含 '-'，
// 文件键是稳定标识或历史链接中的数字序号
func ParseDownloadID(downloadID string) (archiveRef, fileKey string, err error) {
	archiveRef, fileKey, found := strings.Cut(downloadID, "-")
	if !found || archiveRef == "" || fileKey == "" {
		return "", "", xerr.ErrInvalidDownloadID
	}
	return archiveRef, fileKey, nil
}

func (s *downloadService) Resolve(ctx context.Context, downloadID string, meta RequestMeta) (*Resolution, error) {
	agg := s.provider.Settings()

	// AUTH_CHECK
	if agg.RequireLogin && !meta.LoggedIn {
		return nil, xerr.ErrLoginRequired
	}

	// RATE_CHECK
	if s.limiter.IsExceeded(ctx, meta.IP) {
		return nil, xerr.ErrRateLimited
	}

	// ID_PARSE
	archiveRef, fileKey, err := ParseDownloadID(downloadID)
	if err != nil {
		return nil, err
	}

	// ARCHIVE_LOOKUP
	archive, err := s.lookupArchive(archiveRef)
	if err != nil {
		return nil, err
	}
	if !archive.IsPublished() {
		return nil, xerr.ErrArchiveNotFound
	}

	// FILE_LOOKUP
	file, err := s.lookupFile(archive, fileKey)
	if err != nil {
		return nil, err
	}
	fileName := file.EffectiveName()

	// EXISTENCE_CHECK
	localPath, size, ok := s.resolveBinary(file.URL)
	if !ok {
		return nil, xerr.ErrBinaryNotFound
	}

	// LOG
	if agg.DownloadLogging {
		entry := &models.DownloadLog{
			ArchiveID:    archive.ID,
			FileUID:      file.UID,
			FileName:     fileName,
			FileURL:      file.URL,
			UserID:       meta.UserID,
			UserIP:       meta.IP,
			UserAgent:    meta.UserAgent,
			Referer:      meta.Referer,
			DownloadDate: time.Now(),
		}
		if err := s.logRepo.Insert(entry); err != nil {
			// 日志失败不阻断下载
			logger.Warn("下载日志写入失败", zap.Uint64("archiveID", archive.ID), zap.Error(err))
		}
	}

	return &Resolution{
		Archive:   archive,
		File:      file,
		FileName:  fileName,
		FileURL:   file.URL,
		LocalPath: localPath,
		Size:      size,
	}, nil
}

// lookupArchive 按数字 ID 或 slug 定位档案
func (s *downloadService) lookupArchive(ref string) (*models.Archive, error) {
	var archive *models.Archive
	var err error
	if id, perr := strconv.ParseUint(ref, 10, 64); perr == nil {
		archive, err = s.archiveRepo.FindByID(id)
	} else {
		archive, err = s.archiveRepo.FindBySlug(ref)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrArchiveNotFound
		}
		return nil, err
	}
	return archive, nil
}

// lookupFile 按稳定标识定位文件，纯数字键按历史链接中的序号处理
// 序号寻址在文件被重排或删除后会指向错误文件，仅为兼容旧链接保留
func (s *downloadService) lookupFile(archive *models.Archive, fileKey string) (*models.ArchiveFile, error) {
	if file, _ := archive.Files.FindByUID(fileKey); file != nil {
		return file, nil
	}
	if idx, err := strconv.Atoi(fileKey); err == nil {
		if idx < 0 || idx >= len(archive.Files) {
			return nil, xerr.ErrFileNotFound
		}
		return &archive.Files[idx], nil
	}
	return nil, xerr.ErrFileNotFound
}

// resolveBinary 把文件 URL 解析为可下发的形态
// 托管范围内的 URL 还原为本地路径并检查存在性，远程 URL 不做网络探测
func (s *downloadService) resolveBinary(fileURL string) (localPath string, size int64, ok bool) {
	path, local := s.resolver.LocalPathForURL(fileURL)
	if !local {
		// 远程文件只做语法校验，假定存在
		if u, err := url.Parse(fileURL); err == nil && u.Scheme != "" && u.Host != "" {
			return "", -1, true
		}
		return "", 0, false
	}

	resolved, ok := resolveWithLegacyFallback(path)
	if !ok {
		return "", 0, false
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", 0, false
	}
	return resolved, info.Size(), true
}

// CheckFileExists 文件存在性检查，供档案管理端标记失效文件
func (s *downloadService) CheckFileExists(fileURL string) bool {
	if fileURL == "" {
		return false
	}
	path, local := s.resolver.LocalPathForURL(fileURL)
	if !local {
		u, err := url.Parse(fileURL)
		return err == nil && u.Scheme != "" && u.Host != ""
	}
	_, ok := resolveWithLegacyFallback(path)
	return ok
}

// resolveWithLegacyFallback 精确路径不存在时尝试历史文件名变体
// 早年的文件名净化把多个点折叠成下划线，两个方向的变体都要试:
// 下划线换回点(磁盘上是原始名)，以及主干中的点换成下划线(磁盘上是净化名)
func resolveWithLegacyFallback(path string) (string, bool) {
	if _, err := os.Stat(path); err == nil {
		return path, true
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)

	if strings.Contains(name, "_") {
		candidate := filepath.Join(dir, strings.ReplaceAll(name, "_", "."))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if strings.Contains(stem, ".") {
		candidate := filepath.Join(dir, strings.ReplaceAll(stem, ".", "_")+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// WriteBundle 把档案的全部可用本地文件打包成一个 zip
// 远程文件与缺失文件跳过，返回建议的下载文件名
func (s *downloadService) WriteBundle(ctx context.Context, archiveRef string, w io.Writer) (string, error) {
	archive, err := s.lookupArchive(archiveRef)
	if err != nil {
		return "", err
	}
	if !archive.IsPublished() {
		return "", xerr.ErrArchiveNotFound
	}
	if len(archive.Files) == 0 {
		return "", xerr.ErrFileNotFound
	}

	zw := zip.NewWriter(w)
	added := 0
	for i := range archive.Files {
		file := &archive.Files[i]
		path, local := s.resolver.LocalPathForURL(file.URL)
		if !local {
			continue
		}
		resolved, ok := resolveWithLegacyFallback(path)
		if !ok {
			continue
		}
		if err := addFileToZip(zw, resolved, file.EffectiveName()); err != nil {
			logger.Warn("打包文件失败，跳过", zap.String("path", resolved), zap.Error(err))
			continue
		}
		added++
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	if added == 0 {
		return "", xerr.ErrBinaryNotFound
	}

	bundleName := archive.Slug
	if bundleName == "" {
		bundleName = strconv.FormatUint(archive.ID, 10)
	}
	return bundleName + ".zip", nil
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}
