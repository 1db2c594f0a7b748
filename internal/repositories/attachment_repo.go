package repositories

import (
	"errors"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttachmentRepository 定义附件数据访问层接口
// archive_attachments 关联表也由它维护
type AttachmentRepository interface {
	Create(attachment *models.Attachment) error
	FindByID(id uint64) (*models.Attachment, error)
	FindByURL(url string) (*models.Attachment, error)
	FindByIDs(ids []uint64) ([]models.Attachment, error)
	Delete(id uint64) error

	// ReplaceArchiveRefs 将档案的附件引用整体替换为给定集合
	ReplaceArchiveRefs(archiveID uint64, attachmentIDs []uint64) error
	// DeleteArchiveRefs 删除档案的全部附件引用
	DeleteArchiveRefs(archiveID uint64) error
	// CountRefsExcluding 统计附件在其他档案中的引用数，用于判断能否物理删除
	CountRefsExcluding(attachmentID, excludeArchiveID uint64) (int64, error)
	// FindRefsByArchive 返回档案当前引用的附件 ID
	FindRefsByArchive(archiveID uint64) ([]uint64, error)
}

type attachmentRepository struct {
	db *gorm.DB
}

var _ AttachmentRepository = (*attachmentRepository)(nil)

// NewAttachmentRepository 创建一个新的 AttachmentRepository 实例
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(attachment *models.Attachment) error {
	err := r.db.Create(attachment).Error
	if err != nil {
		logger.Error("Error creating attachment", zap.String("fileName", attachment.FileName), zap.Error(err))
		return err
	}
	return nil
}

func (r *attachmentRepository) FindByID(id uint64) (*models.Attachment, error) {
	var attachment models.Attachment
	err := r.db.Where("id = ?", id).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		logger.Error("Error getting attachment by ID", zap.Uint64("id", id), zap.Error(err))
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) FindByURL(url string) (*models.Attachment, error) {
	var attachment models.Attachment
	err := r.db.Where("url = ?", url).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		logger.Error("Error getting attachment by URL", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) FindByIDs(ids []uint64) ([]models.Attachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var attachments []models.Attachment
	err := r.db.Where("id IN ?", ids).Find(&attachments).Error
	if err != nil {
		logger.Error("Error getting attachments by IDs", zap.Error(err))
		return nil, err
	}
	return attachments, nil
}

func (r *attachmentRepository) Delete(id uint64) error {
	err := r.db.Unscoped().Delete(&models.Attachment{}, id).Error
	if err != nil {
		logger.Error("Error deleting attachment", zap.Uint64("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ReplaceArchiveRefs 在事务中先清后插，保证关联表与档案文件列表一致
func (r *attachmentRepository) ReplaceArchiveRefs(archiveID uint64, attachmentIDs []uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("archive_id = ?", archiveID).Delete(&models.ArchiveAttachment{}).Error; err != nil {
			logger.Error("Error clearing archive attachment refs", zap.Uint64("archiveID", archiveID), zap.Error(err))
			return err
		}
		if len(attachmentIDs) == 0 {
			return nil
		}
		refs := make([]models.ArchiveAttachment, 0, len(attachmentIDs))
		for _, id := range attachmentIDs {
			refs = append(refs, models.ArchiveAttachment{ArchiveID: archiveID, AttachmentID: id})
		}
		if err := tx.Create(&refs).Error; err != nil {
			logger.Error("Error inserting archive attachment refs", zap.Uint64("archiveID", archiveID), zap.Error(err))
			return err
		}
		return nil
	})
}

func (r *attachmentRepository) DeleteArchiveRefs(archiveID uint64) error {
	err := r.db.Where("archive_id = ?", archiveID).Delete(&models.ArchiveAttachment{}).Error
	if err != nil {
		logger.Error("Error deleting archive attachment refs", zap.Uint64("archiveID", archiveID), zap.Error(err))
		return err
	}
	return nil
}

func (r *attachmentRepository) CountRefsExcluding(attachmentID, excludeArchiveID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.ArchiveAttachment{}).
		Where("attachment_id = ? AND archive_id <> ?", attachmentID, excludeArchiveID).
		Count(&count).Error
	if err != nil {
		logger.Error("Error counting attachment refs", zap.Uint64("attachmentID", attachmentID), zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *attachmentRepository) FindRefsByArchive(archiveID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.Model(&models.ArchiveAttachment{}).
		Where("archive_id = ?", archiveID).
		Pluck("attachment_id", &ids).Error
	if err != nil {
		logger.Error("Error getting attachment refs by archive", zap.Uint64("archiveID", archiveID), zap.Error(err))
		return nil, err
	}
	return ids, nil
}
