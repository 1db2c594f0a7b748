package repositories

import (
	"encoding/json"
	"errors"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettingsRepository 定义设置数据访问层接口
// 设置整体作为单行 JSON 存储，带乐观锁版本号
type SettingsRepository interface {
	// Load 读取设置行，不存在时返回 gorm.ErrRecordNotFound
	Load() (*models.SettingRecord, error)
	// Init 首次写入设置行
	Init(data json.RawMessage) (*models.SettingRecord, error)
	// Save 按版本号条件更新，版本不匹配时返回 xerr.ErrSettingsConflict
	Save(data json.RawMessage, expectedVersion uint64) (*models.SettingRecord, error)
}

type settingsRepository struct {
	db *gorm.DB
}

var _ SettingsRepository = (*settingsRepository)(nil)

// NewSettingsRepository 创建一个新的 SettingsRepository 实例
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Load() (*models.SettingRecord, error) {
	var record models.SettingRecord
	err := r.db.Order("id ASC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		logger.Error("Error loading settings record", zap.Error(err))
		return nil, err
	}
	return &record, nil
}

func (r *settingsRepository) Init(data json.RawMessage) (*models.SettingRecord, error) {
	record := &models.SettingRecord{Data: data, Version: 1}
	if err := r.db.Create(record).Error; err != nil {
		logger.Error("Error initializing settings record", zap.Error(err))
		return nil, err
	}
	return record, nil
}

// Save 通过 WHERE version = ? 的条件更新实现乐观锁
// 没有命中任何行说明设置已被并发修改
func (r *settingsRepository) Save(data json.RawMessage, expectedVersion uint64) (*models.SettingRecord, error) {
	result := r.db.Model(&models.SettingRecord{}).
		Where("version = ?", expectedVersion).
		Updates(map[string]any{
			"data":    string(data),
			"version": expectedVersion + 1,
		})
	if result.Error != nil {
		logger.Error("Error saving settings record", zap.Uint64("expectedVersion", expectedVersion), zap.Error(result.Error))
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, xerr.ErrSettingsConflict
	}
	return r.Load()
}
