package repositories

import (
	"errors"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VolumeRepository 定义卷数据访问层接口
type VolumeRepository interface {
	Create(volume *models.Volume) error
	Update(volume *models.Volume) error
	FindByID(id uint64) (*models.Volume, error)
	FindBySlug(slug string) (*models.Volume, error)
	List() ([]models.Volume, error)
	Count() (int64, error)
	Delete(id uint64) error
}

type volumeRepository struct {
	db *gorm.DB
}

var _ VolumeRepository = (*volumeRepository)(nil)

// NewVolumeRepository 创建一个新的 VolumeRepository 实例
func NewVolumeRepository(db *gorm.DB) VolumeRepository {
	return &volumeRepository{db: db}
}

func (r *volumeRepository) Create(volume *models.Volume) error {
	err := r.db.Create(volume).Error
	if err != nil {
		logger.Error("Error creating volume", zap.String("name", volume.Name), zap.Error(err))
		return err
	}
	return nil
}

func (r *volumeRepository) Update(volume *models.Volume) error {
	err := r.db.Save(volume).Error
	if err != nil {
		logger.Error("Error updating volume", zap.Uint64("id", volume.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *volumeRepository) FindByID(id uint64) (*models.Volume, error) {
	var volume models.Volume
	err := r.db.Where("id = ?", id).First(&volume).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		logger.Error("Error getting volume by ID", zap.Uint64("id", id), zap.Error(err))
		return nil, err
	}
	return &volume, nil
}

func (r *volumeRepository) FindBySlug(slug string) (*models.Volume, error) {
	var volume models.Volume
	err := r.db.Where("slug = ?", slug).First(&volume).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		logger.Error("Error getting volume by slug", zap.String("slug", slug), zap.Error(err))
		return nil, err
	}
	return &volume, nil
}

func (r *volumeRepository) List() ([]models.Volume, error) {
	var volumes []models.Volume
	err := r.db.Order("name ASC").Find(&volumes).Error
	if err != nil {
		logger.Error("Error listing volumes", zap.Error(err))
		return nil, err
	}
	return volumes, nil
}

func (r *volumeRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Volume{}).Count(&count).Error
	if err != nil {
		logger.Error("Error counting volumes", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *volumeRepository) Delete(id uint64) error {
	err := r.db.Delete(&models.Volume{}, id).Error
	if err != nil {
		logger.Error("Error deleting volume", zap.Uint64("id", id), zap.Error(err))
		return err
	}
	return nil
}
