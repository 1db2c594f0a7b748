package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
)

// 专用目录树的根目录名
const dedicatedDirName = "gbbs-archive"

// UploadPathResolver 按组织策略计算上传文件的物理路径与公开 URL
// 路径计算是纯函数，目录创建与临时文件搬迁是显式副作用方法
type UploadPathResolver struct {
	provider Provider
	basePath string
	baseURL  string
}

// NewUploadPathResolver 创建路径解析器
func NewUploadPathResolver(provider Provider, basePath, baseURL string) *UploadPathResolver {
	return &UploadPathResolver{
		provider: provider,
		basePath: filepath.Clean(basePath),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// BasePath 返回上传根目录
func (r *UploadPathResolver) BasePath() string {
	return r.basePath
}

// DedicatedBasePath 返回专用目录树根路径
func (r *UploadPathResolver) DedicatedBasePath() string {
	return filepath.Join(r.basePath, dedicatedDirName)
}

// UploadDirectory 计算上传目录的物理路径
// 组织键(档案 ID 或卷 slug)未知时回退到 temp 目录，档案保存后再搬迁
func (r *UploadPathResolver) UploadDirectory(archiveID uint64, volumeSlug string) string {
	agg := r.provider.Settings()

	if agg.UploadFolderStructure == StructureDefault {
		return r.basePath
	}

	gbbsDir := r.DedicatedBasePath()
	switch agg.FileOrganization {
	case OrganizeByArchive:
		if archiveID != 0 {
			return filepath.Join(gbbsDir, strconv.FormatUint(archiveID, 10))
		}
		return filepath.Join(gbbsDir, "temp")
	case OrganizeByVolume:
		if volumeSlug != "" {
			return filepath.Join(gbbsDir, "volumes", volumeSlug)
		}
		return filepath.Join(gbbsDir, "volumes", "temp")
	default:
		return filepath.Join(gbbsDir, "files")
	}
}

// UploadURL 计算上传目录对应的公开 URL，路径规则与 UploadDirectory 一致
func (r *UploadPathResolver) UploadURL(archiveID uint64, volumeSlug string) string {
	agg := r.provider.Settings()

	if agg.UploadFolderStructure == StructureDefault {
		return r.baseURL
	}

	gbbsURL := r.baseURL + "/" + dedicatedDirName
	switch agg.FileOrganization {
	case OrganizeByArchive:
		if archiveID != 0 {
			return gbbsURL + "/" + strconv.FormatUint(archiveID, 10)
		}
		return gbbsURL + "/temp"
	case OrganizeByVolume:
		if volumeSlug != "" {
			return gbbsURL + "/volumes/" + volumeSlug
		}
		return gbbsURL + "/volumes/temp"
	default:
		return gbbsURL + "/files"
	}
}

// LocalPathForURL 将托管范围内的公开 URL 还原为物理路径
// URL 不在上传根之下时返回 false，表示这是远程文件
func (r *UploadPathResolver) LocalPathForURL(fileURL string) (string, bool) {
	prefix := r.baseURL + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(fileURL, prefix)
	rel = strings.SplitN(rel, "?", 2)[0]
	rel = filepath.FromSlash(rel)
	full := filepath.Join(r.basePath, rel)
	// 防止 ../ 逃出上传根目录
	if !strings.HasPrefix(full, r.basePath+string(filepath.Separator)) && full != r.basePath {
		return "", false
	}
	return full, true
}

// htaccessContent 禁止目录内文件被直接访问，图片类请求重写到占位图
func (r *UploadPathResolver) htaccessContent() string {
	var b strings.Builder
	b.WriteString("deny from all\n")
	b.WriteString("<FilesMatch \"\\.(jpg|jpeg|png|gif)$\">\n")
	b.WriteString("  allow from all\n")
	b.WriteString("  RewriteEngine On\n")
	b.WriteString("  RewriteRule .*$ " + r.baseURL + "/assets/images/placeholder.png [L]\n")
	b.WriteString("</FilesMatch>\n")
	return b.String()
}

// EnsureUploadDirectory 确保上传目录存在并放置哨兵文件
// 幂等，已存在的目录和哨兵文件不会被改写
func (r *UploadPathResolver) EnsureUploadDirectory(archiveID uint64, volumeSlug string) (string, error) {
	dir := r.UploadDirectory(archiveID, volumeSlug)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("创建上传目录失败", zap.String("dir", dir), zap.Error(err))
			return "", fmt.Errorf("创建上传目录失败: %w", err)
		}
	}

	// 哨兵文件: .htaccess 拒绝目录浏览，空 index.html 防止列目录
	htaccess := filepath.Join(dir, ".htaccess")
	if _, err := os.Stat(htaccess); os.IsNotExist(err) {
		if err := os.WriteFile(htaccess, []byte(r.htaccessContent()), 0o644); err != nil {
			logger.Warn("写入 .htaccess 失败", zap.String("dir", dir), zap.Error(err))
		}
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); os.IsNotExist(err) {
		if err := os.WriteFile(index, nil, 0o644); err != nil {
			logger.Warn("写入 index.html 失败", zap.String("dir", dir), zap.Error(err))
		}
	}

	return dir, nil
}

// OrganizeTempFiles 把档案保存前暂存在 temp 目录的文件搬到正式目录
// 只在 by_archive 组织策略下需要，返回搬迁的文件数
func (r *UploadPathResolver) OrganizeTempFiles(archiveID uint64) (int, error) {
	agg := r.provider.Settings()
	if agg.FileOrganization != OrganizeByArchive || agg.UploadFolderStructure == StructureDefault {
		return 0, nil
	}

	tempDir := filepath.Join(r.DedicatedBasePath(), "temp")
	archiveDir := filepath.Join(r.DedicatedBasePath(), strconv.FormatUint(archiveID, 10))

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("读取 temp 目录失败: %w", err)
	}

	if _, err := os.Stat(archiveDir); os.IsNotExist(err) {
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return 0, fmt.Errorf("创建档案目录失败: %w", err)
		}
	}

	moved := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(tempDir, entry.Name())
		dst := filepath.Join(archiveDir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			logger.Warn("搬迁临时文件失败", zap.String("src", src), zap.Error(err))
			continue
		}
		moved++
	}

	// temp 目录清空后顺手移除
	if remaining, err := os.ReadDir(tempDir); err == nil && len(remaining) == 0 {
		_ = os.Remove(tempDir)
	}

	logger.Info("临时文件搬迁完成", zap.Uint64("archiveID", archiveID), zap.Int("moved", moved))
	return moved, nil
}

// RemoveArchiveDirectory 递归删除档案的专属目录，删除档案时调用
// 只有 by_archive 组织策略下档案才有专属目录
func (r *UploadPathResolver) RemoveArchiveDirectory(archiveID uint64) error {
	agg := r.provider.Settings()
	if agg.UploadFolderStructure == StructureDefault || agg.FileOrganization != OrganizeByArchive {
		return nil
	}
	if archiveID == 0 {
		return nil
	}

	dir := filepath.Join(r.DedicatedBasePath(), strconv.FormatUint(archiveID, 10))
	if err := os.RemoveAll(dir); err != nil {
		logger.Error("删除档案目录失败", zap.String("dir", dir), zap.Error(err))
		return fmt.Errorf("删除档案目录失败: %w", err)
	}
	return nil
}
