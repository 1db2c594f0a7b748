package models

import "time"

// DownloadLog 对应 download_logs 表，每次成功放行的下载记录一行
// archive_id / user_ip / download_date 上建索引，支撑统计查询
type DownloadLog struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ArchiveID    uint64    `gorm:"not null;index" json:"archive_id"`
	FileUID      string    `gorm:"type:varchar(36);not null;default:''" json:"file_uid"`
	FileName     string    `gorm:"type:varchar(255);not null" json:"file_name"`
	FileURL      string    `gorm:"type:varchar(1024);not null" json:"file_url"`
	UserID       *uint64   `gorm:"default:null" json:"user_id"`
	UserIP       string    `gorm:"type:varchar(45);not null;index" json:"user_ip"` // IPv6 最长 45 字符
	UserAgent    string    `gorm:"type:varchar(512);not null;default:''" json:"user_agent"`
	Referer      string    `gorm:"type:varchar(1024);not null;default:''" json:"referer"`
	DownloadDate time.Time `gorm:"not null;index" json:"download_date"`
}

// TableName 指定 GORM 使用的表名
func (DownloadLog) TableName() string {
	return "download_logs"
}
