package repositories

import (
	"time"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ArchiveDownloadCount 按档案聚合的下载次数
type ArchiveDownloadCount struct {
	ArchiveID uint64 `json:"archive_id"`
	Count     int64  `json:"count"`
}

// DownloadLogRepository 定义下载日志数据访问层接口
type DownloadLogRepository interface {
	Insert(log *models.DownloadLog) error

	CountAll() (int64, error)
	CountByArchive(archiveID uint64) (int64, error)
	CountByFile(archiveID uint64, fileUID string) (int64, error)
	CountByArchives(archiveIDs []uint64) ([]ArchiveDownloadCount, error)
	CountSince(since time.Time) (int64, error)

	Recent(limit int) ([]models.DownloadLog, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type downloadLogRepository struct {
	db *gorm.DB
}

var _ DownloadLogRepository = (*downloadLogRepository)(nil)

// NewDownloadLogRepository 创建一个新的 DownloadLogRepository 实例
func NewDownloadLogRepository(db *gorm.DB) DownloadLogRepository {
	return &downloadLogRepository{db: db}
}

func (r *downloadLogRepository) Insert(log *models.DownloadLog) error {
	err := r.db.Create(log).Error
	if err != nil {
		logger.Error("Error inserting download log", zap.Uint64("archiveID", log.ArchiveID), zap.Error(err))
		return err
	}
	return nil
}

func (r *downloadLogRepository) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&models.DownloadLog{}).Count(&count).Error
	if err != nil {
		logger.Error("Error counting all downloads", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *downloadLogRepository) CountByArchive(archiveID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.DownloadLog{}).
		Where("archive_id = ?", archiveID).
		Count(&count).Error
	if err != nil {
		logger.Error("Error counting downloads by archive", zap.Uint64("archiveID", archiveID), zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *downloadLogRepository) CountByFile(archiveID uint64, fileUID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.DownloadLog{}).
		Where("archive_id = ? AND file_uid = ?", archiveID, fileUID).
		Count(&count).Error
	if err != nil {
		logger.Error("Error counting downloads by file", zap.Uint64("archiveID", archiveID), zap.String("fileUID", fileUID), zap.Error(err))
		return 0, err
	}
	return count, nil
}

// CountByArchives 一次查询聚合多个档案的下载次数，避免列表页 N+1
func (r *downloadLogRepository) CountByArchives(archiveIDs []uint64) ([]ArchiveDownloadCount, error) {
	if len(archiveIDs) == 0 {
		return nil, nil
	}
	var counts []ArchiveDownloadCount
	err := r.db.Model(&models.DownloadLog{}).
		Select("archive_id", "COUNT(*) AS count").
		Where("archive_id IN ?", archiveIDs).
		Group("archive_id").
		Scan(&counts).Error
	if err != nil {
		logger.Error("Error counting downloads by archives", zap.Error(err))
		return nil, err
	}
	return counts, nil
}

func (r *downloadLogRepository) CountSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.DownloadLog{}).
		Where("download_date >= ?", since).
		Count(&count).Error
	if err != nil {
		logger.Error("Error counting downloads since", zap.Time("since", since), zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *downloadLogRepository) Recent(limit int) ([]models.DownloadLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.DownloadLog
	err := r.db.Order("download_date DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		logger.Error("Error listing recent downloads", zap.Error(err))
		return nil, err
	}
	return logs, nil
}

// DeleteOlderThan 清理历史日志，返回删除行数
func (r *downloadLogRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("download_date < ?", cutoff).Delete(&models.DownloadLog{})
	if result.Error != nil {
		logger.Error("Error pruning download logs", zap.Time("cutoff", cutoff), zap.Error(result.Error))
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
