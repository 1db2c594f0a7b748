package repositories

import (
	"errors"
	"strings"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ArchiveQuery 档案列表查询条件
// Sort 仅支持能下推数据库的 name/date，下载数与体积排序由调用方在内存中完成
type ArchiveQuery struct {
	Search   string // 标题模糊匹配
	VolumeID uint64 // 0 表示不过滤
	Status   string // 空表示不过滤
	Sort     string // name/date，其余值走缺省排序
	SortDir  string // asc/desc
	Page     int
	PageSize int
}

// ArchiveRepository 定义档案数据访问层接口
type ArchiveRepository interface {
	Create(archive *models.Archive) error
	Update(archive *models.Archive) error

	FindByID(id uint64) (*models.Archive, error)
	FindBySlug(slug string) (*models.Archive, error)
	List(query ArchiveQuery) ([]models.Archive, int64, error)
	ListAll(query ArchiveQuery) ([]models.Archive, error)
	FindNewest() (*models.Archive, error)
	CountByStatus(status string) (int64, error)
	CountFiles(query ArchiveQuery) (int64, []models.Archive, error)

	SoftDelete(id uint64) error
	PermanentDelete(id uint64) error
}

type archiveRepository struct {
	db *gorm.DB
}

var _ ArchiveRepository = (*archiveRepository)(nil)

// NewArchiveRepository 创建一个新的 ArchiveRepository 实例
func NewArchiveRepository(db *gorm.DB) ArchiveRepository {
	return &archiveRepository{db: db}
}

func (r *archiveRepository) Create(archive *models.Archive) error {
	err := r.db.Create(archive).Error
	if err != nil {
		logger.Error("Error creating archive", zap.String("title", archive.Title), zap.Error(err))
		return err
	}
	return nil
}

func (r *archiveRepository) Update(archive *models.Archive) error {
	err := r.db.Save(archive).Error
	if err != nil {
		logger.Error("Error updating archive", zap.Uint64("id", archive.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *archiveRepository) FindByID(id uint64) (*models.Archive, error) {
	var archive models.Archive
	err := r.db.Preload("Volume").Where("id = ?", id).First(&archive).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		logger.Error("Error getting archive by ID", zap.Uint64("id", id), zap.Error(err))
		return nil, err
	}
	return &archive, nil
}

func (r *archiveRepository) FindBySlug(slug string) (*models.Archive, error) {
	var archive models.Archive
	err := r.db.Preload("Volume").Where("slug = ?", slug).First(&archive).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		logger.Error("Error getting archive by slug", zap.String("slug", slug), zap.Error(err))
		return nil, err
	}
	return &archive, nil
}

// List 分页查询档案，返回当前页数据与总记录数
func (r *archiveRepository) List(query ArchiveQuery) ([]models.Archive, int64, error) {
	db := r.applyQuery(query)

	var total int64
	if err := db.Model(&models.Archive{}).Count(&total).Error; err != nil {
		logger.Error("Error counting archives", zap.Error(err))
		return nil, 0, err
	}

	var archives []models.Archive
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	err := db.Preload("Volume").
		Order(orderClause(query)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&archives).Error
	if err != nil {
		logger.Error("Error listing archives", zap.Error(err))
		return nil, 0, err
	}
	return archives, total, nil
}

// ListAll 返回全部匹配的档案，不分页
// 下载数与体积这类无法下推数据库的排序需要全量数据
func (r *archiveRepository) ListAll(query ArchiveQuery) ([]models.Archive, error) {
	var archives []models.Archive
	err := r.applyQuery(query).
		Preload("Volume").
		Order(orderClause(query)).
		Find(&archives).Error
	if err != nil {
		logger.Error("Error listing all archives", zap.Error(err))
		return nil, err
	}
	return archives, nil
}

func orderClause(query ArchiveQuery) string {
	dir := "ASC"
	if strings.EqualFold(query.SortDir, "desc") {
		dir = "DESC"
	}
	switch query.Sort {
	case "name":
		return "title " + dir
	case "date":
		return "created_at " + dir
	default:
		return "created_at DESC"
	}
}

// FindNewest 返回最新发布的档案，用于统计页展示
func (r *archiveRepository) FindNewest() (*models.Archive, error) {
	var archive models.Archive
	err := r.db.Where("status = ?", models.ArchiveStatusPublish).
		Order("created_at DESC").
		First(&archive).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		logger.Error("Error getting newest archive", zap.Error(err))
		return nil, err
	}
	return &archive, nil
}

func (r *archiveRepository) CountByStatus(status string) (int64, error) {
	var count int64
	db := r.db.Model(&models.Archive{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&count).Error; err != nil {
		logger.Error("Error counting archives by status", zap.String("status", status), zap.Error(err))
		return 0, err
	}
	return count, nil
}

// CountFiles 统计匹配条件的档案内文件总数
// 文件列表存在 JSON 列中，需要取回逐条累加，调用方负责缓存结果
func (r *archiveRepository) CountFiles(query ArchiveQuery) (int64, []models.Archive, error) {
	var archives []models.Archive
	err := r.applyQuery(query).
		Select("id", "title", "files").
		Find(&archives).Error
	if err != nil {
		logger.Error("Error loading archives for file count", zap.Error(err))
		return 0, nil, err
	}
	var total int64
	for i := range archives {
		total += int64(len(archives[i].Files))
	}
	return total, archives, nil
}

func (r *archiveRepository) SoftDelete(id uint64) error {
	err := r.db.Delete(&models.Archive{}, id).Error
	if err != nil {
		logger.Error("Error soft deleting archive", zap.Uint64("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (r *archiveRepository) PermanentDelete(id uint64) error {
	err := r.db.Unscoped().Delete(&models.Archive{}, id).Error
	if err != nil {
		logger.Error("Error permanently deleting archive", zap.Uint64("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (r *archiveRepository) applyQuery(query ArchiveQuery) *gorm.DB {
	db := r.db.Model(&models.Archive{})
	if query.Search != "" {
		db = db.Where("title LIKE ?", "%"+query.Search+"%")
	}
	if query.VolumeID != 0 {
		db = db.Where("volume_id = ?", query.VolumeID)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	return db
}
