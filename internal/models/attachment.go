package models

import (
	"time"

	"gorm.io/gorm"
)

// Attachment 对应 attachments 表，记录已上传到存储后端的文件实体
// Path 是相对上传根目录的存储路径，URL 是对外可访问地址
type Attachment struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	FileName  string         `gorm:"type:varchar(255);not null" json:"file_name"`
	Path      string         `gorm:"type:varchar(1024);not null" json:"path"`
	URL       string         `gorm:"type:varchar(1024);not null" json:"url"`
	MimeType  string         `gorm:"type:varchar(128);not null;default:''" json:"mime_type"`
	Size      uint64         `gorm:"type:bigint unsigned;not null;default:0" json:"size"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName 指定 GORM 使用的表名
func (Attachment) TableName() string {
	return "attachments"
}

// ArchiveAttachment 对应 archive_attachments 关联表
// 记录哪些档案引用了哪些附件，删除档案时据此判断附件是否还有其他引用
type ArchiveAttachment struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ArchiveID    uint64    `gorm:"not null;index;uniqueIndex:uk_archive_attachment,priority:1" json:"archive_id"`
	AttachmentID uint64    `gorm:"not null;index;uniqueIndex:uk_archive_attachment,priority:2" json:"attachment_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定 GORM 使用的表名
func (ArchiveAttachment) TableName() string {
	return "archive_attachments"
}
