package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// 文件在档案内的用途分类
const (
	CategoryMain          = "main"
	CategoryDocumentation = "documentation"
	CategorySource        = "source"
	CategoryConfig        = "config"
	CategoryUtility       = "utility"
	CategoryOther         = "other" // 未分类文件的兜底
)

// CategoryDisplayName 返回分类的展示名称
func CategoryDisplayName(category string) string {
	switch category {
	case CategoryMain:
		return "Main Program"
	case CategoryDocumentation:
		return "Documentation"
	case CategorySource:
		return "Source Code"
	case CategoryConfig:
		return "Configuration"
	case CategoryUtility:
		return "Utility"
	default:
		return "Other"
	}
}

// ArchiveFile 档案中的单个文件条目，以 JSON 数组形式存储在 archives.files 列中
// UID 在文件首次入库时生成，之后保持不变，下载链接以它定位文件
type ArchiveFile struct {
	UID          string `json:"uid"`
	AttachmentID uint64 `json:"attachment_id,omitempty"` // 对应 attachments 表记录，外部 URL 时为 0
	URL          string `json:"url"`
	Name         string `json:"name,omitempty"`
	Category     string `json:"category,omitempty"`
	Description  string `json:"description,omitempty"`
}

// EffectiveName 返回文件的展示名称，未设置时回退为 URL 中的文件名
func (f *ArchiveFile) EffectiveName() string {
	if f.Name != "" {
		return f.Name
	}
	u, err := url.Parse(f.URL)
	if err != nil || u.Path == "" {
		return path.Base(f.URL)
	}
	return path.Base(u.Path)
}

// Extension 返回文件的小写扩展名，不带点
func (f *ArchiveFile) Extension() string {
	ext := strings.TrimPrefix(path.Ext(f.EffectiveName()), ".")
	return strings.ToLower(ext)
}

// ArchiveFileList 实现 GORM 的 JSON 列序列化
type ArchiveFileList []ArchiveFile

// Value 实现 driver.Valuer，写库时序列化为 JSON
func (l ArchiveFileList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("序列化文件列表失败: %w", err)
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner，读库时反序列化
func (l *ArchiveFileList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("文件列表列类型不支持: %T", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// FindByUID 按稳定标识查找文件，返回文件和它在列表中的序号
func (l ArchiveFileList) FindByUID(uid string) (*ArchiveFile, int) {
	for i := range l {
		if l[i].UID == uid {
			return &l[i], i
		}
	}
	return nil, -1
}

// AttachmentIDs 返回列表中引用的全部附件 ID，去重
func (l ArchiveFileList) AttachmentIDs() []uint64 {
	seen := make(map[uint64]struct{}, len(l))
	ids := make([]uint64, 0, len(l))
	for i := range l {
		if l[i].AttachmentID == 0 {
			continue
		}
		if _, ok := seen[l[i].AttachmentID]; ok {
			continue
		}
		seen[l[i].AttachmentID] = struct{}{}
		ids = append(ids, l[i].AttachmentID)
	}
	return ids
}
