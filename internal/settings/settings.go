package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 档案寻址方式
const (
	EndpointTypeID   = "id"
	EndpointTypeSlug = "slug"
)

// 上传目录结构
const (
	StructureDefault   = "wordpress_default" // 直接使用上传根目录，不做组织
	StructureDedicated = "gbbs_dedicated"    // 专用 gbbs-archive 目录树
)

// 文件组织策略
const (
	OrganizeByArchive = "by_archive"
	OrganizeByVolume  = "by_volume"
	OrganizeFlat      = "flat"
)

// 列表默认排序
const (
	SortByName      = "name"
	SortByDate      = "date"
	SortByDownloads = "downloads"
	SortBySize      = "size"
)

// Aggregate 全部设置的聚合，整体作为一行 JSON 持久化
type Aggregate struct {
	// 基础设置
	DownloadEndpoint string   `json:"download_endpoint"`
	EndpointType     string   `json:"endpoint_type"`
	RolePermissions  []string `json:"role_permissions"`
	ArchiveTitle     string   `json:"archive_title"`
	ItemsPerPage     int      `json:"items_per_page"`

	// 展示设置
	ShowDownloadCounts bool `json:"show_download_counts"`
	ShowFileSizes      bool `json:"show_file_sizes"`
	ShowUploadDates    bool `json:"show_upload_dates"`
	EnableSearch       bool `json:"enable_search"`
	EnableVolumeFilter bool `json:"enable_volume_filter"`

	// 下载设置
	RequireLogin      bool `json:"require_login"`
	TrackDownloads    bool `json:"track_downloads"`
	DownloadTimeout   int  `json:"download_timeout"` // 秒，仅作为提示值，不强制限制传输时长
	DownloadLogging   bool `json:"download_logging"`
	DownloadCounter   bool `json:"download_counter"`
	RateLimiting      bool `json:"rate_limiting"`
	RateLimitRequests int  `json:"rate_limit_requests"`
	RateLimitWindow   int  `json:"rate_limit_window"` // 秒

	// 档案页设置
	ArchiveDescription string `json:"archive_description"`
	ShowArchiveStats   bool   `json:"show_archive_stats"`
	EnableSorting      bool   `json:"enable_sorting"`
	DefaultSorting     string `json:"default_sorting"`

	// URL 设置
	PostTypeEndpoint string `json:"post_type_endpoint"`
	VolumeEndpoint   string `json:"volume_endpoint"`

	// 上传设置
	UploadFolderStructure string   `json:"upload_folder_structure"`
	FileOrganization      string   `json:"file_organization"`
	MaxFileSize           int      `json:"max_file_size"` // MB
	RestrictFileTypes     bool     `json:"restrict_file_types"`
	AllowedFileTypes      []string `json:"allowed_file_types"`
}

// Defaults 返回出厂默认设置
func Defaults() Aggregate {
	return Aggregate{
		DownloadEndpoint: "gbbs-download",
		EndpointType:     EndpointTypeID,
		RolePermissions:  []string{"admin", "editor"},
		ArchiveTitle:     "GBBS Pro Software Archive",
		ItemsPerPage:     20,

		ShowDownloadCounts: true,
		ShowFileSizes:      true,
		ShowUploadDates:    true,
		EnableSearch:       true,
		EnableVolumeFilter: true,

		RequireLogin:      false,
		TrackDownloads:    true,
		DownloadTimeout:   300,
		DownloadLogging:   true,
		DownloadCounter:   true,
		RateLimiting:      true,
		RateLimitRequests: 10,
		RateLimitWindow:   60,

		ArchiveDescription: "Your gateway to GBBS Pro and GBBS II software",
		ShowArchiveStats:   true,
		EnableSorting:      true,
		DefaultSorting:     SortByName,

		PostTypeEndpoint: "gbbs-archive",
		VolumeEndpoint:   "gbbs-volume",

		UploadFolderStructure: StructureDedicated,
		FileOrganization:      OrganizeByArchive,
		MaxFileSize:           50,
		RestrictFileTypes:     true,
		AllowedFileTypes: []string{
			// Apple II 磁盘映像
			"dsk", "po", "do", "nib", "woz", "2mg",
			// Apple II 程序文件
			"bas", "int", "asm", "s", "bin", "a2s", "a2d",
			// 归档格式
			"shk", "bny", "sea", "bxy", "bqy", "zip",
			// 文档
			"txt", "doc", "pdf",
		},
	}
}

// MaxFileSizeBytes 返回文件大小上限，单位字节
func (a *Aggregate) MaxFileSizeBytes() int64 {
	return int64(a.MaxFileSize) * 1024 * 1024
}

// RoleCanEditArchives 判断角色是否在档案管理许可列表中
func (a *Aggregate) RoleCanEditArchives(role string) bool {
	for _, allowed := range a.RolePermissions {
		if allowed == role {
			return true
		}
	}
	return false
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]+`)

// sanitizeSlug 将任意字符串收敛为 URL 安全的 slug
func sanitizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	return s
}

// sanitizeText 去除控制字符与首尾空白
func sanitizeText(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// 输入值转换辅助，表单与 JSON 导入都会走到这里

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

// truthy 复选框语义: 字段存在且非空即为 true
func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != "" && b != "0" && b != "false"
	case int:
		return b != 0
	case float64:
		return b != 0
	default:
		return v != nil
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Sanitize 把原始输入合并进当前设置并做净化，是无副作用的纯函数
// 数值字段做范围收敛，枚举字段回退默认值
// 布尔字段严格按输入中是否出现判定，缺席即 false，对应复选框未勾选不提交的语义
func Sanitize(current Aggregate, input map[string]any) Aggregate {
	out := current

	if v, ok := input["download_endpoint"]; ok {
		if s, ok := toString(v); ok {
			out.DownloadEndpoint = sanitizeSlug(s)
		}
	}
	if v, ok := input["endpoint_type"]; ok {
		if s, ok := toString(v); ok {
			if oneOf(s, EndpointTypeID, EndpointTypeSlug) {
				out.EndpointType = s
			} else {
				out.EndpointType = EndpointTypeID
			}
		}
	}
	if v, ok := input["role_permissions"]; ok {
		if roles, ok := toStringSlice(v); ok {
			cleaned := make([]string, 0, len(roles))
			for _, role := range roles {
				cleaned = append(cleaned, sanitizeText(role))
			}
			out.RolePermissions = cleaned
		}
	}
	if v, ok := input["archive_title"]; ok {
		if s, ok := toString(v); ok {
			out.ArchiveTitle = sanitizeText(s)
		}
	}
	if v, ok := input["items_per_page"]; ok {
		if n, ok := toInt(v); ok {
			if n < 1 {
				n = 1
			}
			out.ItemsPerPage = n
		}
	}

	// 展示开关，按字段存在性判定
	out.ShowDownloadCounts = truthy(input["show_download_counts"])
	out.ShowFileSizes = truthy(input["show_file_sizes"])
	out.ShowUploadDates = truthy(input["show_upload_dates"])
	out.EnableSearch = truthy(input["enable_search"])
	out.EnableVolumeFilter = truthy(input["enable_volume_filter"])

	// 下载开关
	out.RequireLogin = truthy(input["require_login"])
	out.TrackDownloads = truthy(input["track_downloads"])
	out.DownloadLogging = truthy(input["download_logging"])
	out.DownloadCounter = truthy(input["download_counter"])
	out.RateLimiting = truthy(input["rate_limiting"])

	if v, ok := input["download_timeout"]; ok {
		if n, ok := toInt(v); ok {
			if n < 30 {
				n = 30
			}
			out.DownloadTimeout = n
		}
	}
	if v, ok := input["rate_limit_requests"]; ok {
		if n, ok := toInt(v); ok {
			out.RateLimitRequests = clamp(n, 1, 100)
		}
	}
	if v, ok := input["rate_limit_window"]; ok {
		if n, ok := toInt(v); ok {
			out.RateLimitWindow = clamp(n, 10, 3600)
		}
	}

	if v, ok := input["archive_description"]; ok {
		if s, ok := toString(v); ok {
			out.ArchiveDescription = sanitizeText(s)
		}
	}
	out.ShowArchiveStats = truthy(input["show_archive_stats"])
	out.EnableSorting = truthy(input["enable_sorting"])
	if v, ok := input["default_sorting"]; ok {
		if s, ok := toString(v); ok {
			if oneOf(s, SortByName, SortByDate, SortByDownloads, SortBySize) {
				out.DefaultSorting = s
			} else {
				out.DefaultSorting = SortByName
			}
		}
	}

	if v, ok := input["post_type_endpoint"]; ok {
		if s, ok := toString(v); ok {
			out.PostTypeEndpoint = sanitizeSlug(s)
		}
	}
	if v, ok := input["volume_endpoint"]; ok {
		if s, ok := toString(v); ok {
			out.VolumeEndpoint = sanitizeSlug(s)
		}
	}

	if v, ok := input["upload_folder_structure"]; ok {
		if s, ok := toString(v); ok {
			if oneOf(s, StructureDefault, StructureDedicated) {
				out.UploadFolderStructure = s
			} else {
				out.UploadFolderStructure = StructureDedicated
			}
		}
	}
	if v, ok := input["file_organization"]; ok {
		if s, ok := toString(v); ok {
			if oneOf(s, OrganizeByArchive, OrganizeByVolume, OrganizeFlat) {
				out.FileOrganization = s
			} else {
				out.FileOrganization = OrganizeByArchive
			}
		}
	}
	if v, ok := input["max_file_size"]; ok {
		if n, ok := toInt(v); ok {
			out.MaxFileSize = clamp(n, 1, 1000)
		}
	}
	out.RestrictFileTypes = truthy(input["restrict_file_types"])
	if v, ok := input["allowed_file_types"]; ok {
		if types, ok := toStringSlice(v); ok {
			cleaned := make([]string, 0, len(types))
			for _, t := range types {
				cleaned = append(cleaned, strings.ToLower(sanitizeText(t)))
			}
			out.AllowedFileTypes = cleaned
		}
	}

	return out
}

// ToInput 将聚合转为 Sanitize 可消费的输入 map，用于导入与幂等校验
func (a Aggregate) ToInput() map[string]any {
	data, _ := json.Marshal(a)
	var input map[string]any
	_ = json.Unmarshal(data, &input)
	// 复选框语义下 false 等同于字段缺席
	for key, v := range input {
		if b, ok := v.(bool); ok && !b {
			delete(input, key)
		}
	}
	return input
}

// Provider 是设置的只读访问接口
// 下载处理、路径解析等消费方依赖它而不是具体 Store，便于测试注入
type Provider interface {
	Settings() Aggregate
}

// Store 管理设置的加载与持久化
// 内存中持有一份副本，写入走乐观锁，版本冲突时重读重放
type Store struct {
	repo       repositories.SettingsRepository
	baseURL    string
	prettyURLs bool

	mu      sync.RWMutex
	current Aggregate
	version uint64
}

var _ Provider = (*Store)(nil)

// saveRetries 乐观锁冲突时的重放次数
const saveRetries = 3

// NewStore 加载设置并创建 Store，设置行不存在时写入默认值
func NewStore(repo repositories.SettingsRepository, baseURL string, prettyURLs bool) (*Store, error) {
	s := &Store{
		repo:       repo,
		baseURL:    strings.TrimRight(baseURL, "/"),
		prettyURLs: prettyURLs,
	}

	record, err := repo.Load()
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("加载设置失败: %w", err)
		}
		defaults := Defaults()
		data, merr := json.Marshal(defaults)
		if merr != nil {
			return nil, merr
		}
		record, err = repo.Init(data)
		if err != nil {
			return nil, fmt.Errorf("初始化设置失败: %w", err)
		}
		logger.Info("设置行不存在，已写入默认设置")
	}

	s.current = decodeAggregate(record.Data)
	s.version = record.Version
	return s, nil
}

// decodeAggregate 以默认值为底座解码持久化数据，缺失字段自动补默认
func decodeAggregate(data json.RawMessage) Aggregate {
	agg := Defaults()
	if err := json.Unmarshal(data, &agg); err != nil {
		logger.Warn("设置数据解码失败，回退默认值", zap.Error(err))
		return Defaults()
	}
	return agg
}

// Settings 返回当前设置的副本
func (s *Store) Settings() Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version 返回当前乐观锁版本号
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Update 对当前设置应用变更函数并持久化
// 版本冲突时重新加载最新设置重放变更，连续失败返回 xerr.ErrSettingsConflict
func (s *Store) Update(mutate func(*Aggregate)) error {
	for i := 0; i < saveRetries; i++ {
		s.mu.RLock()
		agg := s.current
		version := s.version
		s.mu.RUnlock()

		mutate(&agg)

		data, err := json.Marshal(agg)
		if err != nil {
			return fmt.Errorf("序列化设置失败: %w", err)
		}

		record, err := s.repo.Save(data, version)
		if err == nil {
			s.mu.Lock()
			s.current = agg
			s.version = record.Version
			s.mu.Unlock()
			return nil
		}
		if !errors.Is(err, xerr.ErrSettingsConflict) {
			return err
		}

		logger.Warn("设置版本冲突，重新加载后重试", zap.Uint64("version", version))
		if err := s.Reload(); err != nil {
			return err
		}
	}
	return xerr.ErrSettingsConflict
}

// Reload 从数据库重新加载设置
func (s *Store) Reload() error {
	record, err := s.repo.Load()
	if err != nil {
		return fmt.Errorf("重新加载设置失败: %w", err)
	}
	s.mu.Lock()
	s.current = decodeAggregate(record.Data)
	s.version = record.Version
	s.mu.Unlock()
	return nil
}

// ApplyInput 净化原始输入并保存，是设置保存接口的入口
func (s *Store) ApplyInput(input map[string]any) error {
	return s.Update(func(agg *Aggregate) {
		*agg = Sanitize(*agg, input)
	})
}

// ResetToDefaults 恢复出厂设置
func (s *Store) ResetToDefaults() error {
	return s.Update(func(agg *Aggregate) {
		*agg = Defaults()
	})
}

// Export 导出当前设置
func (s *Store) Export() Aggregate {
	return s.Settings()
}

// Import 导入设置，导入内容同样经过净化
func (s *Store) Import(input map[string]any) error {
	if input == nil {
		return xerr.ErrInvalidParams
	}
	return s.ApplyInput(input)
}

// DownloadURL 为档案中的文件生成下载链接
// fileKey 是文件的稳定标识，寻址方式为 slug 且 slug 非空时使用 slug 引用档案
// 未启用美化 URL 时退化为查询参数形式
func (s *Store) DownloadURL(archiveID uint64, archiveSlug, fileKey string) string {
	agg := s.Settings()

	ref := strconv.FormatUint(archiveID, 10)
	if agg.EndpointType == EndpointTypeSlug && archiveSlug != "" {
		ref = archiveSlug
	}
	downloadID := ref + "-" + fileKey

	if s.prettyURLs {
		return s.baseURL + "/" + agg.DownloadEndpoint + "/" + downloadID + "/"
	}
	return s.baseURL + "/?" + url.Values{agg.DownloadEndpoint: {downloadID}}.Encode()
}
