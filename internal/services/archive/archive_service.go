package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/cache"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/pkg/storage"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VolumeNoChange 卷分配的哨兵值，批量编辑场景下表示保持现状
// 0 表示清除卷分配
const VolumeNoChange int64 = -1

// FileInput 保存请求中的单个文件条目
type FileInput struct {
	UID          string `json:"uid"`
	AttachmentID uint64 `json:"attachment_id"`
	URL          string `json:"url"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Description  string `json:"description"`
}

// SaveInput 档案保存请求
// 元数据字段用指针表达字段是否提交: nil 保持现状，空串清除
type SaveInput struct {
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	VolumeID    int64       `json:"volume_id"` // VolumeNoChange 保持现状，0 清除
	Files       []FileInput `json:"files"`

	Version           *string `json:"version"`
	Author            *string `json:"author"`
	ReleaseYear       *string `json:"release_year"`
	Requirements      *string `json:"requirements"`
	InstallationNotes *string `json:"installation_notes"`
	HistoricalNotes   *string `json:"historical_notes"`
}

// SaveWarning 文件级校验失败的非致命警告，保存整体仍然成功
type SaveWarning struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// Indexer 档案搜索索引接口，保存与删除后同步索引
type Indexer interface {
	IndexArchive(ctx context.Context, archive *models.Archive) error
	DeleteArchive(ctx context.Context, archiveID uint64) error
}

// ArchiveService 档案的保存与删除生命周期
type ArchiveService interface {
	Create(ctx context.Context, input SaveInput) (*models.Archive, []SaveWarning, error)
	Save(ctx context.Context, archiveID uint64, input SaveInput) (*models.Archive, []SaveWarning, error)
	Delete(ctx context.Context, archiveID uint64) error
	Trash(ctx context.Context, archiveID uint64) error

	GetByID(archiveID uint64) (*models.Archive, error)
	GetBySlug(slug string) (*models.Archive, error)
	List(query repositories.ArchiveQuery) ([]models.Archive, int64, error)
	ListAll(query repositories.ArchiveQuery) ([]models.Archive, error)
}

type archiveService struct {
	archiveRepo    repositories.ArchiveRepository
	volumeRepo     repositories.VolumeRepository
	attachmentRepo repositories.AttachmentRepository
	registry       *settings.FileTypeRegistry
	resolver       *settings.UploadPathResolver
	provider       settings.Provider
	storageSvc     storage.StorageService
	cache          cache.Cache
	indexer        Indexer // 可为 nil，未配置搜索时跳过索引
}

var _ ArchiveService = (*archiveService)(nil)

// NewArchiveService 创建档案服务实例
func NewArchiveService(
	archiveRepo repositories.ArchiveRepository,
	volumeRepo repositories.VolumeRepository,
	attachmentRepo repositories.AttachmentRepository,
	registry *settings.FileTypeRegistry,
	resolver *settings.UploadPathResolver,
	provider settings.Provider,
	storageSvc storage.StorageService,
	c cache.Cache,
	indexer Indexer,
) ArchiveService {
	return &archiveService{
		archiveRepo:    archiveRepo,
		volumeRepo:     volumeRepo,
		attachmentRepo: attachmentRepo,
		registry:       registry,
		resolver:       resolver,
		provider:       provider,
		storageSvc:     storageSvc,
		cache:          c,
		indexer:        indexer,
	}
}

// Create 新建档案并立即走一遍保存管线
func (s *archiveService) Create(ctx context.Context, input SaveInput) (*models.Archive, []SaveWarning, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, nil, xerr.ErrInvalidParams
	}

	archive := &models.Archive{
		Title:  strings.TrimSpace(input.Title),
		Slug:   input.Slug,
		Status: models.ArchiveStatusDraft,
	}
	if archive.Slug == "" {
		archive.Slug = slugify(archive.Title)
	}
	if err := s.archiveRepo.Create(archive); err != nil {
		return nil, nil, err
	}
	return s.Save(ctx, archive.ID, input)
}

// Save 档案保存管线
// 元数据净化、文件列表校验(整体替换)、卷分配、临时文件搬迁、
// 与上一次文件列表做差清理被移除的附件，最后刷新关联表与统计缓存
func (s *archiveService) Save(ctx context.Context, archiveID uint64, input SaveInput) (*models.Archive, []SaveWarning, error) {
	archive, err := s.archiveRepo.FindByID(archiveID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, xerr.ErrArchiveNotFound
		}
		return nil, nil, err
	}

	// 元数据
	if strings.TrimSpace(input.Title) != "" {
		archive.Title = strings.TrimSpace(input.Title)
	}
	if input.Slug != "" {
		archive.Slug = slugify(input.Slug)
	}
	archive.Description = strings.TrimSpace(input.Description)
	if input.Status != "" {
		if input.Status != models.ArchiveStatusDraft &&
			input.Status != models.ArchiveStatusPublish &&
			input.Status != models.ArchiveStatusTrash {
			return nil, nil, xerr.ErrInvalidParams
		}
		archive.Status = input.Status
	}

	// 软件元数据，只更新本次提交的字段
	applyMetadata(archive, input)

	// 卷分配，每个档案至多属于一个卷
	if err := s.applyVolume(archive, input.VolumeID); err != nil {
		return nil, nil, err
	}

	// 文件列表校验，校验失败的条目被剔除并记录警告
	newFiles, warnings := s.validateFiles(ctx, input.Files, archive.Files)

	// 档案保存前上传的文件暂存在 temp 目录，这里搬到正式位置并改写 URL
	if moved, err := s.resolver.OrganizeTempFiles(archive.ID); err != nil {
		logger.Warn("临时文件搬迁失败", zap.Uint64("archiveID", archive.ID), zap.Error(err))
	} else if moved > 0 {
		s.rewriteTempURLs(archive.ID, newFiles)
	}

	previous := archive.Files
	archive.Files = newFiles
	archive.PreviousFiles = newFiles

	if err := s.archiveRepo.Update(archive); err != nil {
		return nil, nil, err
	}

	// 刷新附件关联表，供跨档案共享判断使用
	if err := s.attachmentRepo.ReplaceArchiveRefs(archive.ID, models.ArchiveFileList(newFiles).AttachmentIDs()); err != nil {
		return nil, nil, err
	}

	// 本次保存中被移除的文件，无其他档案引用时删除底层附件
	s.cleanupRemovedFiles(ctx, archive.ID, previous, newFiles)

	s.invalidateStatsCaches(ctx)
	s.indexArchive(ctx, archive)

	return archive, warnings, nil
}

// Delete 删除档案并级联清理文件实体与存储目录
func (s *archiveService) Delete(ctx context.Context, archiveID uint64) error {
	archive, err := s.archiveRepo.FindByID(archiveID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xerr.ErrArchiveNotFound
		}
		return err
	}

	// 文件实体清理，共享附件保留
	for i := range archive.Files {
		s.deleteFileEntity(ctx, archive.ID, &archive.Files[i])
	}

	if err := s.attachmentRepo.DeleteArchiveRefs(archive.ID); err != nil {
		logger.Warn("清理附件关联失败", zap.Uint64("archiveID", archive.ID), zap.Error(err))
	}

	// 递归删除档案专属目录
	if err := s.resolver.RemoveArchiveDirectory(archive.ID); err != nil {
		logger.Warn("删除档案目录失败", zap.Uint64("archiveID", archive.ID), zap.Error(err))
	}
	s.sweepOrphanDirectories()

	if err := s.archiveRepo.PermanentDelete(archive.ID); err != nil {
		return err
	}

	s.invalidateStatsCaches(ctx)
	if s.indexer != nil {
		if err := s.indexer.DeleteArchive(ctx, archive.ID); err != nil {
			logger.Warn("删除搜索索引失败", zap.Uint64("archiveID", archive.ID), zap.Error(err))
		}
	}
	return nil
}

// Trash 将档案移入回收站，不清理文件实体
func (s *archiveService) Trash(ctx context.Context, archiveID uint64) error {
	archive, err := s.archiveRepo.FindByID(archiveID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xerr.ErrArchiveNotFound
		}
		return err
	}
	archive.Status = models.ArchiveStatusTrash
	if err := s.archiveRepo.Update(archive); err != nil {
		return err
	}
	s.invalidateStatsCaches(ctx)
	s.indexArchive(ctx, archive)
	return nil
}

func (s *archiveService) GetByID(archiveID uint64) (*models.Archive, error) {
	archive, err := s.archiveRepo.FindByID(archiveID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrArchiveNotFound
		}
		return nil, err
	}
	return archive, nil
}

func (s *archiveService) GetBySlug(slug string) (*models.Archive, error) {
	archive, err := s.archiveRepo.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrArchiveNotFound
		}
		return nil, err
	}
	return archive, nil
}

func (s *archiveService) List(query repositories.ArchiveQuery) ([]models.Archive, int64, error) {
	return s.archiveRepo.List(query)
}

func (s *archiveService) ListAll(query repositories.ArchiveQuery) ([]models.Archive, error) {
	return s.archiveRepo.ListAll(query)
}

// applyVolume 持久化卷分配
// VolumeNoChange 保持现状，0 清除，其余值要求卷存在
func (s *archiveService) applyVolume(archive *models.Archive, volumeID int64) error {
	switch {
	case volumeID == VolumeNoChange:
		return nil
	case volumeID == 0:
		archive.VolumeID = nil
		archive.Volume = nil
		return nil
	default:
		id := uint64(volumeID)
		if _, err := s.volumeRepo.FindByID(id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return xerr.ErrVolumeNotFound
			}
			return err
		}
		archive.VolumeID = &id
		archive.Volume = nil
		return nil
	}
}

// applyMetadata 持久化软件元数据，未提交的字段保持现状
func applyMetadata(archive *models.Archive, input SaveInput) {
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	assign(&archive.Version, input.Version)
	assign(&archive.Author, input.Author)
	assign(&archive.ReleaseYear, input.ReleaseYear)
	assign(&archive.Requirements, input.Requirements)
	assign(&archive.InstallationNotes, input.InstallationNotes)
	assign(&archive.HistoricalNotes, input.HistoricalNotes)
}

// validateFiles 逐条校验提交的文件，返回接受的列表与警告
// URL 非法、类型不允许、本地文件超限的条目被剔除，保存整体不失败
// 未带稳定标识的条目先按附件 ID、再按 URL 与上一次列表匹配，匹配到则沿用原标识
func (s *archiveService) validateFiles(ctx context.Context, inputs []FileInput, previous models.ArchiveFileList) (models.ArchiveFileList, []SaveWarning) {
	agg := s.provider.Settings()
	files := make(models.ArchiveFileList, 0, len(inputs))
	var warnings []SaveWarning

	for _, in := range inputs {
		rawURL := strings.TrimSpace(in.URL)
		if rawURL == "" {
			continue
		}

		file := models.ArchiveFile{
			UID:          in.UID,
			AttachmentID: in.AttachmentID,
			URL:          rawURL,
			Name:         strings.TrimSpace(in.Name),
			Category:     in.Category,
			Description:  strings.TrimSpace(in.Description),
		}
		name := file.EffectiveName()

		parsed, err := url.Parse(rawURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			warnings = append(warnings, SaveWarning{FileName: name, Reason: "文件 URL 非法"})
			continue
		}

		if agg.RestrictFileTypes && !s.registry.IsAllowed(name) {
			warnings = append(warnings, SaveWarning{FileName: name, Reason: "文件类型不在允许列表中"})
			continue
		}

		// 托管范围内的文件检查大小上限，远程 URL 不做网络探测
		if localPath, ok := s.resolver.LocalPathForURL(rawURL); ok {
			if info, err := os.Stat(localPath); err == nil && info.Size() > agg.MaxFileSizeBytes() {
				warnings = append(warnings, SaveWarning{
					FileName: name,
					Reason:   fmt.Sprintf("文件超出 %dMB 大小上限", agg.MaxFileSize),
				})
				continue
			}
		}

		if file.Category == "" {
			file.Category = models.CategoryOther
		}
		// 稳定标识在文件首次入库时分配，之后不再变化
		// 客户端重新提交同一文件时未必带回标识，从上一次列表中找回
		if file.UID == "" {
			file.UID = carryForwardUID(previous, &file)
		}
		if file.UID == "" {
			file.UID = uuid.New().String()
		}
		files = append(files, file)
	}
	return files, warnings
}

// carryForwardUID 按附件 ID、其次按 URL 在上一次文件列表中定位同一文件
func carryForwardUID(previous models.ArchiveFileList, file *models.ArchiveFile) string {
	if file.AttachmentID != 0 {
		for i := range previous {
			if previous[i].AttachmentID == file.AttachmentID {
				return previous[i].UID
			}
		}
	}
	for i := range previous {
		if previous[i].URL == file.URL {
			return previous[i].UID
		}
	}
	return ""
}

// rewriteTempURLs 临时文件搬迁后把 temp URL 改写为正式 URL
func (s *archiveService) rewriteTempURLs(archiveID uint64, files models.ArchiveFileList) {
	tempURL := s.resolver.UploadURL(0, "") + "/"
	finalURL := s.resolver.UploadURL(archiveID, "") + "/"
	for i := range files {
		if strings.HasPrefix(files[i].URL, tempURL) {
			files[i].URL = finalURL + strings.TrimPrefix(files[i].URL, tempURL)
		}
	}
}

// cleanupRemovedFiles 对比前后两次文件列表的附件引用，清理被移除的附件
// 以附件 ID 为准，仍出现在新列表中的附件一律不动，外部 URL 条目无附件可清
func (s *archiveService) cleanupRemovedFiles(ctx context.Context, archiveID uint64, previous, current models.ArchiveFileList) {
	kept := make(map[uint64]struct{})
	for _, id := range current.AttachmentIDs() {
		kept[id] = struct{}{}
	}
	for i := range previous {
		if previous[i].AttachmentID == 0 {
			continue
		}
		if _, ok := kept[previous[i].AttachmentID]; ok {
			continue
		}
		s.deleteFileEntity(ctx, archiveID, &previous[i])
	}
}

// deleteFileEntity 删除文件底层附件与存储对象
// 附件仍被其他档案引用时保留
func (s *archiveService) deleteFileEntity(ctx context.Context, archiveID uint64, file *models.ArchiveFile) {
	if file.AttachmentID == 0 {
		return
	}

	refs, err := s.attachmentRepo.CountRefsExcluding(file.AttachmentID, archiveID)
	if err != nil {
		logger.Warn("附件引用检查失败，跳过删除", zap.Uint64("attachmentID", file.AttachmentID), zap.Error(err))
		return
	}
	if refs > 0 {
		logger.Info("附件被其他档案共享，保留",
			zap.Uint64("attachmentID", file.AttachmentID),
			zap.Int64("refs", refs))
		return
	}

	attachment, err := s.attachmentRepo.FindByID(file.AttachmentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("附件记录查询失败", zap.Uint64("attachmentID", file.AttachmentID), zap.Error(err))
		}
		return
	}

	if err := s.storageSvc.RemoveObject(ctx, attachment.Path); err != nil {
		logger.Warn("删除存储对象失败", zap.String("path", attachment.Path), zap.Error(err))
	}
	if err := s.attachmentRepo.Delete(attachment.ID); err != nil {
		logger.Warn("删除附件记录失败", zap.Uint64("attachmentID", attachment.ID), zap.Error(err))
		return
	}
	logger.Info("附件已清理", zap.Uint64("attachmentID", attachment.ID), zap.String("path", attachment.Path))
}

// sweepOrphanDirectories 档案删除后兜底清扫专用目录树中的空目录
func (s *archiveService) sweepOrphanDirectories() {
	base := s.resolver.DedicatedBasePath()
	entries, err := os.ReadDir(base)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := base + string(os.PathSeparator) + entry.Name()
		children, err := os.ReadDir(dir)
		if err != nil || len(children) > 0 {
			continue
		}
		_ = os.Remove(dir)
	}
}

// invalidateStatsCaches 档案变更后清除聚合统计缓存
// 按 URL 键控的文件大小缓存独立走 24 小时 TTL，这里刻意不清
func (s *archiveService) invalidateStatsCaches(ctx context.Context) {
	if err := s.cache.DelPattern(ctx, "gbbs:stats:*"); err != nil {
		logger.Warn("清除统计缓存失败", zap.Error(err))
	}
}

func (s *archiveService) indexArchive(ctx context.Context, archive *models.Archive) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexArchive(ctx, archive); err != nil {
		logger.Warn("刷新搜索索引失败", zap.Uint64("archiveID", archive.ID), zap.Error(err))
	}
}

// slugify 生成 URL 安全的 slug
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
