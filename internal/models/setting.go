package models

import (
	"encoding/json"
	"time"
)

// SettingRecord 对应 settings 表，全部设置作为单行 JSON 存储
// Version 是乐观锁版本号，并发保存时只有版本匹配的写入会成功
type SettingRecord struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Data      json.RawMessage `gorm:"type:json;not null" json:"data"`
	Version   uint64          `gorm:"not null;default:1" json:"version"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定 GORM 使用的表名
func (SettingRecord) TableName() string {
	return "settings"
}
