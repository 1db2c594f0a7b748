package models

import (
	"time"

	"gorm.io/gorm"
)

// 用户角色，决定设置管理与档案管理的权限
const (
	RoleAdmin      = "admin"      // 可修改全局设置
	RoleEditor     = "editor"     // 可管理档案
	RoleSubscriber = "subscriber" // 仅可在需要登录的站点下载
)

// User 对应 users 表
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"type:varchar(64);unique;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"` // - 表示不输出到 JSON
	Email        string `gorm:"type:varchar(255);unique;not null" json:"email"`
	Role         string `gorm:"type:varchar(20);not null;default:'subscriber'" json:"role"`
	Status       uint8  `gorm:"type:tinyint unsigned;not null;default:1" json:"status"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName 指定 GORM 使用的表名
func (User) TableName() string {
	return "users"
}

// CanManageArchives 编辑及以上角色可以管理档案
func (u *User) CanManageArchives() bool {
	return u.Role == RoleAdmin || u.Role == RoleEditor
}

// CanManageSettings 只有管理员可以修改全局设置
func (u *User) CanManageSettings() bool {
	return u.Role == RoleAdmin
}
