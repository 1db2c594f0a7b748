package settings

import (
	"path"
	"sort"
	"strings"
)

// 文件类型注册表的分类
const (
	TypeCategoryDiskImages    = "disk_images"
	TypeCategoryPrograms      = "programs"
	TypeCategoryArchives      = "archives"
	TypeCategoryDocumentation = "documentation"
)

// FileTypeDefinition 描述一种受支持的文件扩展名
type FileTypeDefinition struct {
	Extension   string `json:"extension"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	MimeType    string `json:"mime_type"`
	Enabled     bool   `json:"enabled"`
}

// fileTypeDefinitions 静态目录: 扩展名 -> 定义
// 覆盖 Apple II 磁盘映像、程序文件、归档格式与文档四类
var fileTypeDefinitions = map[string]FileTypeDefinition{
	// Apple II 磁盘映像
	"dsk": {Extension: "dsk", Name: "Disk Image", Description: "Apple II disk image files", Category: TypeCategoryDiskImages, MimeType: "application/octet-stream"},
	"po":  {Extension: "po", Name: "ProDOS Order", Description: "ProDOS disk image files", Category: TypeCategoryDiskImages, MimeType: "application/octet-stream"},
	"do":  {Extension: "do", Name: "DOS Order", Description: "DOS disk image files", Category: TypeCategoryDiskImages, MimeType: "application/octet-stream"},
	"nib": {Extension: "nib", Name: "Nibble", Description: "Nibble disk image files", Category: TypeCategoryDiskImages, MimeType: "application/octet-stream"},
	"woz": {Extension: "woz", Name: "WOZ", Description: "WOZ disk image files", Category: TypeCategoryDiskImages, MimeType: "application/octet-stream"},
	"2mg": {Extension: "2mg", Name: "2MG", Description: "2MG disk image files", Category: TypeCategoryDiskImages, MimeType: "application/octet-stream"},

	// Apple II 程序文件
	"bas": {Extension: "bas", Name: "BASIC", Description: "Apple II BASIC program files", Category: TypeCategoryPrograms, MimeType: "text/plain"},
	"int": {Extension: "int", Name: "Integer BASIC", Description: "Apple II Integer BASIC program files", Category: TypeCategoryPrograms, MimeType: "text/plain"},
	"asm": {Extension: "asm", Name: "Assembly", Description: "Assembly language source files", Category: TypeCategoryPrograms, MimeType: "text/plain"},
	"s":   {Extension: "s", Name: "Source Code", Description: "Source code files", Category: TypeCategoryPrograms, MimeType: "text/plain"},
	"bin": {Extension: "bin", Name: "Binary", Description: "Binary executable files", Category: TypeCategoryPrograms, MimeType: "application/octet-stream"},
	"a2s": {Extension: "a2s", Name: "Apple II Source", Description: "Apple II source code files", Category: TypeCategoryPrograms, MimeType: "application/octet-stream"},
	"a2d": {Extension: "a2d", Name: "Apple II Data", Description: "Apple II data files", Category: TypeCategoryPrograms, MimeType: "application/octet-stream"},
	"bxy": {Extension: "bxy", Name: "Binary XY", Description: "Binary XY format files", Category: TypeCategoryPrograms, MimeType: "application/octet-stream"},
	"bqy": {Extension: "bqy", Name: "Binary QY", Description: "Binary QY format files", Category: TypeCategoryPrograms, MimeType: "application/octet-stream"},

	// 归档格式
	"shk": {Extension: "shk", Name: "ShrinkIt", Description: "ShrinkIt archive files", Category: TypeCategoryArchives, MimeType: "application/octet-stream"},
	"bny": {Extension: "bny", Name: "Binary NY", Description: "Binary NY archive files", Category: TypeCategoryArchives, MimeType: "application/octet-stream"},
	"sea": {Extension: "sea", Name: "Self-Extracting Archive", Description: "Self-extracting archive files", Category: TypeCategoryArchives, MimeType: "application/octet-stream"},
	"zip": {Extension: "zip", Name: "ZIP Archive", Description: "ZIP archive files", Category: TypeCategoryArchives, MimeType: "application/zip"},

	// 文档
	"txt": {Extension: "txt", Name: "Text File", Description: "Plain text files", Category: TypeCategoryDocumentation, MimeType: "text/plain"},
	"doc": {Extension: "doc", Name: "Word Document", Description: "Microsoft Word document files", Category: TypeCategoryDocumentation, MimeType: "application/msword"},
	"pdf": {Extension: "pdf", Name: "PDF Document", Description: "PDF document files", Category: TypeCategoryDocumentation, MimeType: "application/pdf"},
}

// TypeCategoryDisplayName 返回注册表分类的展示名称
func TypeCategoryDisplayName(category string) string {
	switch category {
	case TypeCategoryDiskImages:
		return "Apple II Disk Images"
	case TypeCategoryPrograms:
		return "Apple II File Formats"
	case TypeCategoryArchives:
		return "Archive Formats"
	case TypeCategoryDocumentation:
		return "Documentation"
	default:
		return category
	}
}

// FileTypeRegistry 提供文件类型查询与按分类的批量启停
// 启用集合存在设置聚合中，注册表自身无状态
type FileTypeRegistry struct {
	store *Store
}

// NewFileTypeRegistry 创建文件类型注册表
func NewFileTypeRegistry(store *Store) *FileTypeRegistry {
	return &FileTypeRegistry{store: store}
}

// Definition 按扩展名查找定义，大小写不敏感
func (r *FileTypeRegistry) Definition(ext string) (FileTypeDefinition, bool) {
	def, ok := fileTypeDefinitions[strings.ToLower(ext)]
	return def, ok
}

// Definitions 返回全部定义，按扩展名排序并标注启用状态
func (r *FileTypeRegistry) Definitions() []FileTypeDefinition {
	enabled := r.enabledSet()
	defs := make([]FileTypeDefinition, 0, len(fileTypeDefinitions))
	for _, def := range fileTypeDefinitions {
		def.Enabled = enabled[def.Extension]
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Extension < defs[j].Extension })
	return defs
}

// DefinitionsByCategory 返回按分类分组的定义
func (r *FileTypeRegistry) DefinitionsByCategory() map[string][]FileTypeDefinition {
	grouped := make(map[string][]FileTypeDefinition)
	for _, def := range r.Definitions() {
		grouped[def.Category] = append(grouped[def.Category], def)
	}
	return grouped
}

// IsAllowed 判断文件名的扩展名是否被允许
// 未开启类型限制时一律放行
func (r *FileTypeRegistry) IsAllowed(filename string) bool {
	agg := r.store.Settings()
	if !agg.RestrictFileTypes {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range agg.AllowedFileTypes {
		if allowed == ext {
			return true
		}
	}
	return false
}

// EnableCategory 批量启用某个分类下的全部扩展名
func (r *FileTypeRegistry) EnableCategory(category string) error {
	return r.store.Update(func(agg *Aggregate) {
		enabled := make(map[string]struct{}, len(agg.AllowedFileTypes))
		for _, ext := range agg.AllowedFileTypes {
			enabled[ext] = struct{}{}
		}
		for ext, def := range fileTypeDefinitions {
			if def.Category != category {
				continue
			}
			if _, ok := enabled[ext]; !ok {
				agg.AllowedFileTypes = append(agg.AllowedFileTypes, ext)
			}
		}
	})
}

// DisableCategory 批量停用某个分类下的全部扩展名
func (r *FileTypeRegistry) DisableCategory(category string) error {
	return r.store.Update(func(agg *Aggregate) {
		kept := make([]string, 0, len(agg.AllowedFileTypes))
		for _, ext := range agg.AllowedFileTypes {
			if def, ok := fileTypeDefinitions[ext]; ok && def.Category == category {
				continue
			}
			kept = append(kept, ext)
		}
		agg.AllowedFileTypes = kept
	})
}

// FileTypeStats 文件类型启用情况统计
type FileTypeStats struct {
	Total      int            `json:"total"`
	Enabled    int            `json:"enabled"`
	ByCategory map[string]int `json:"by_category"` // 分类 -> 已启用数量
}

// Stats 汇总当前启用情况，供设置页展示
func (r *FileTypeRegistry) Stats() FileTypeStats {
	enabled := r.enabledSet()
	stats := FileTypeStats{
		Total:      len(fileTypeDefinitions),
		ByCategory: make(map[string]int),
	}
	for ext, def := range fileTypeDefinitions {
		if enabled[ext] {
			stats.Enabled++
			stats.ByCategory[def.Category]++
		}
	}
	return stats
}

func (r *FileTypeRegistry) enabledSet() map[string]bool {
	agg := r.store.Settings()
	enabled := make(map[string]bool, len(agg.AllowedFileTypes))
	for _, ext := range agg.AllowedFileTypes {
		enabled[ext] = true
	}
	return enabled
}
