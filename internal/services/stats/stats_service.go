package stats

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gbbspro/gbbs-archive/internal/pkg/cache"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"go.uber.org/zap"
)

// 聚合统计缓存 1 小时，按 URL 键控的文件大小缓存 24 小时
// 文件大小缓存不随档案变更清除，独立按 TTL 过期
const (
	aggregateTTL = time.Hour
	fileSizeTTL  = 24 * time.Hour
)

// ArchiveStats 统计页的汇总数据
type ArchiveStats struct {
	TotalArchives  int64      `json:"total_archives"`
	TotalFiles     int64      `json:"total_files"`
	TotalSize      int64      `json:"total_size"`
	TotalSizeHuman string     `json:"total_size_human"`
	TotalDownloads int64      `json:"total_downloads"`
	VolumeCount    int64      `json:"volume_count"`
	NewestArchive  *time.Time `json:"newest_archive,omitempty"`
}

// StatsService 下载与档案的聚合统计
type StatsService interface {
	TotalDownloads(ctx context.Context) (int64, error)
	FileDownloads(ctx context.Context, archiveID uint64, fileUID string) (int64, error)
	ArchiveDownloads(ctx context.Context, archiveID uint64) (int64, error)
	// BulkArchiveDownloads 列表页一次取回多个档案的下载数，避免 N+1 查询
	BulkArchiveDownloads(ctx context.Context, archiveIDs []uint64) (map[uint64]int64, error)

	ArchiveStats(ctx context.Context, search string, volumeID uint64) (*ArchiveStats, error)
	FileSize(ctx context.Context, fileURL string) (int64, error)
	RecentDownloads(ctx context.Context, limit int) ([]DownloadRecord, error)

	// ClearStatsCache 档案变更后清除聚合缓存，文件大小缓存刻意不清
	ClearStatsCache(ctx context.Context) error
}

// DownloadRecord 管理端最近下载列表的一行
type DownloadRecord struct {
	ArchiveID    uint64    `json:"archive_id"`
	FileName     string    `json:"file_name"`
	UserIP       string    `json:"user_ip"`
	DownloadDate time.Time `json:"download_date"`
}

type statsService struct {
	logRepo     repositories.DownloadLogRepository
	archiveRepo repositories.ArchiveRepository
	volumeRepo  repositories.VolumeRepository
	resolver    *settings.UploadPathResolver
	cache       cache.Cache
}

var _ StatsService = (*statsService)(nil)

// NewStatsService 创建统计服务实例
func NewStatsService(
	logRepo repositories.DownloadLogRepository,
	archiveRepo repositories.ArchiveRepository,
	volumeRepo repositories.VolumeRepository,
	resolver *settings.UploadPathResolver,
	c cache.Cache,
) StatsService {
	return &statsService{
		logRepo:     logRepo,
		archiveRepo: archiveRepo,
		volumeRepo:  volumeRepo,
		resolver:    resolver,
		cache:       c,
	}
}

// TotalDownloads 全站下载总数，缓存 1 小时
func (s *statsService) TotalDownloads(ctx context.Context) (int64, error) {
	key := cache.TotalDownloadsKey()
	var cached int64
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	count, err := s.logRepo.CountAll()
	if err != nil {
		return 0, err
	}
	if err := s.cache.Set(ctx, key, count, aggregateTTL); err != nil {
		logger.Warn("写入下载总数缓存失败", zap.Error(err))
	}
	return count, nil
}

// FileDownloads 单文件下载数，点查不走缓存
func (s *statsService) FileDownloads(ctx context.Context, archiveID uint64, fileUID string) (int64, error) {
	return s.logRepo.CountByFile(archiveID, fileUID)
}

// ArchiveDownloads 单个档案全部文件的下载数之和
func (s *statsService) ArchiveDownloads(ctx context.Context, archiveID uint64) (int64, error) {
	return s.logRepo.CountByArchive(archiveID)
}

func (s *statsService) BulkArchiveDownloads(ctx context.Context, archiveIDs []uint64) (map[uint64]int64, error) {
	counts, err := s.logRepo.CountByArchives(archiveIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[uint64]int64, len(counts))
	for _, c := range counts {
		result[c.ArchiveID] = c.Count
	}
	return result, nil
}

// ArchiveStats 统计页汇总，文件数与总大小按查询条件分键缓存
func (s *statsService) ArchiveStats(ctx context.Context, search string, volumeID uint64) (*ArchiveStats, error) {
	stats := &ArchiveStats{}
	query := repositories.ArchiveQuery{Search: search, VolumeID: volumeID}
	volumeKey := ""
	if volumeID != 0 {
		volumeKey = fmt.Sprintf("%d", volumeID)
	}

	total, err := s.archiveRepo.CountByStatus("")
	if err != nil {
		return nil, err
	}
	stats.TotalArchives = total

	// 文件总数
	filesKey := cache.TotalFilesKey(search, volumeKey)
	if err := s.cache.Get(ctx, filesKey, &stats.TotalFiles); err != nil {
		fileCount, archives, err := s.archiveRepo.CountFiles(query)
		if err != nil {
			return nil, err
		}
		stats.TotalFiles = fileCount
		if err := s.cache.Set(ctx, filesKey, fileCount, aggregateTTL); err != nil {
			logger.Warn("写入文件总数缓存失败", zap.Error(err))
		}

		// 顺便计算总大小，复用同一批档案数据
		sizeKey := cache.TotalSizeKey(search, volumeKey)
		if err := s.cache.Get(ctx, sizeKey, &stats.TotalSize); err != nil {
			var totalSize int64
			for i := range archives {
				for j := range archives[i].Files {
					size, err := s.FileSize(ctx, archives[i].Files[j].URL)
					if err != nil {
						continue
					}
					totalSize += size
				}
			}
			stats.TotalSize = totalSize
			if err := s.cache.Set(ctx, sizeKey, totalSize, aggregateTTL); err != nil {
				logger.Warn("写入总大小缓存失败", zap.Error(err))
			}
		}
	} else {
		sizeKey := cache.TotalSizeKey(search, volumeKey)
		if err := s.cache.Get(ctx, sizeKey, &stats.TotalSize); err != nil {
			stats.TotalSize = 0
		}
	}
	stats.TotalSizeHuman = FormatFileSize(stats.TotalSize)

	// 下载总数
	stats.TotalDownloads, err = s.TotalDownloads(ctx)
	if err != nil {
		return nil, err
	}

	// 卷数量
	volumeCountKey := cache.VolumeCountKey()
	if err := s.cache.Get(ctx, volumeCountKey, &stats.VolumeCount); err != nil {
		count, err := s.volumeRepo.Count()
		if err != nil {
			return nil, err
		}
		stats.VolumeCount = count
		if err := s.cache.Set(ctx, volumeCountKey, count, aggregateTTL); err != nil {
			logger.Warn("写入卷数量缓存失败", zap.Error(err))
		}
	}

	// 最新档案时间
	newestKey := cache.NewestArchiveKey()
	var newest time.Time
	if err := s.cache.Get(ctx, newestKey, &newest); err != nil {
		archive, err := s.archiveRepo.FindNewest()
		if err == nil && archive != nil {
			newest = archive.CreatedAt
			if err := s.cache.Set(ctx, newestKey, newest, aggregateTTL); err != nil {
				logger.Warn("写入最新档案缓存失败", zap.Error(err))
			}
		}
	}
	if !newest.IsZero() {
		stats.NewestArchive = &newest
	}

	return stats, nil
}

// FileSize 按 URL 查询文件大小，缓存 24 小时
// 托管范围外的远程文件大小未知，返回 0
func (s *statsService) FileSize(ctx context.Context, fileURL string) (int64, error) {
	key := cache.FileSizeKey(fileURL)
	var cached int64
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	var size int64
	if path, local := s.resolver.LocalPathForURL(fileURL); local {
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
	}
	if err := s.cache.Set(ctx, key, size, fileSizeTTL); err != nil {
		logger.Warn("写入文件大小缓存失败", zap.String("url", fileURL), zap.Error(err))
	}
	return size, nil
}

func (s *statsService) RecentDownloads(ctx context.Context, limit int) ([]DownloadRecord, error) {
	logs, err := s.logRepo.Recent(limit)
	if err != nil {
		return nil, err
	}
	records := make([]DownloadRecord, 0, len(logs))
	for _, l := range logs {
		records = append(records, DownloadRecord{
			ArchiveID:    l.ArchiveID,
			FileName:     l.FileName,
			UserIP:       l.UserIP,
			DownloadDate: l.DownloadDate,
		})
	}
	return records, nil
}

func (s *statsService) ClearStatsCache(ctx context.Context) error {
	return s.cache.DelPattern(ctx, "gbbs:stats:*")
}

// FormatFileSize 把字节数格式化为可读形式
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
