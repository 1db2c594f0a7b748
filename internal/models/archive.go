package models

import (
	"time"

	"gorm.io/gorm"
)

// 档案发布状态
const (
	ArchiveStatusDraft   = "draft"   // 草稿，不对外提供下载
	ArchiveStatusPublish = "publish" // 已发布
	ArchiveStatusTrash   = "trash"   // 回收站
)

// Archive 对应 archives 表
// Files 以 JSON 数组存储文件条目，PreviousFiles 保存上一次成功保存的列表，
// 用于在本次保存时对比出被移除的文件并清理其附件引用
type Archive struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string  `gorm:"type:varchar(255);not null" json:"title"`
	Slug        string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Status      string  `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Description string  `gorm:"type:text" json:"description"`
	VolumeID    *uint64 `gorm:"default:null;index" json:"volume_id"`

	// 软件元数据
	Version           string `gorm:"type:varchar(100)" json:"version"`
	Author            string `gorm:"type:varchar(255)" json:"author"`
	ReleaseYear       string `gorm:"type:varchar(20)" json:"release_year"`
	Requirements      string `gorm:"type:text" json:"requirements"`
	InstallationNotes string `gorm:"type:text" json:"installation_notes"`
	HistoricalNotes   string `gorm:"type:text" json:"historical_notes"`

	Files         ArchiveFileList `gorm:"type:json" json:"files"`
	PreviousFiles ArchiveFileList `gorm:"type:json" json:"-"`
	AuthorID      uint64          `gorm:"not null;default:0" json:"author_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`

	// 定义 GORM 关联，方便预加载
	Volume *Volume `gorm:"foreignKey:VolumeID" json:"volume,omitempty"`
}

// TableName 指定 GORM 使用的表名
func (Archive) TableName() string {
	return "archives"
}

// IsPublished 只有已发布的档案才能对外提供下载
func (a *Archive) IsPublished() bool {
	return a.Status == ArchiveStatusPublish
}
