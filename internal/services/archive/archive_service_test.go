package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/cache"
	"github.com/gbbspro/gbbs-archive/internal/pkg/storage"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- 内存版依赖 ---

type memSettingsRepo struct {
	record *models.SettingRecord
}

func (f *memSettingsRepo) Load() (*models.SettingRecord, error) {
	if f.record == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.record
	return &copied, nil
}

func (f *memSettingsRepo) Init(data json.RawMessage) (*models.SettingRecord, error) {
	f.record = &models.SettingRecord{ID: 1, Data: data, Version: 1}
	copied := *f.record
	return &copied, nil
}

func (f *memSettingsRepo) Save(data json.RawMessage, expectedVersion uint64) (*models.SettingRecord, error) {
	if f.record == nil || f.record.Version != expectedVersion {
		return nil, xerr.ErrSettingsConflict
	}
	f.record.Data = data
	f.record.Version = expectedVersion + 1
	copied := *f.record
	return &copied, nil
}

type memArchiveRepo struct {
	nextID   uint64
	archives map[uint64]*models.Archive
	deleted  []uint64
}

func newMemArchiveRepo() *memArchiveRepo {
	return &memArchiveRepo{nextID: 1, archives: make(map[uint64]*models.Archive)}
}

func (r *memArchiveRepo) Create(archive *models.Archive) error {
	archive.ID = r.nextID
	r.nextID++
	copied := *archive
	r.archives[archive.ID] = &copied
	return nil
}

func (r *memArchiveRepo) Update(archive *models.Archive) error {
	copied := *archive
	r.archives[archive.ID] = &copied
	return nil
}

func (r *memArchiveRepo) FindByID(id uint64) (*models.Archive, error) {
	if a, ok := r.archives[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memArchiveRepo) FindBySlug(slug string) (*models.Archive, error) {
	for _, a := range r.archives {
		if a.Slug == slug {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memArchiveRepo) List(query repositories.ArchiveQuery) ([]models.Archive, int64, error) {
	out := make([]models.Archive, 0, len(r.archives))
	for _, a := range r.archives {
		out = append(out, *a)
	}
	return out, int64(len(out)), nil
}

func (r *memArchiveRepo) ListAll(query repositories.ArchiveQuery) ([]models.Archive, error) {
	out, _, err := r.List(query)
	return out, err
}

func (r *memArchiveRepo) FindNewest() (*models.Archive, error) { return nil, gorm.ErrRecordNotFound }
func (r *memArchiveRepo) CountByStatus(status string) (int64, error) {
	return int64(len(r.archives)), nil
}
func (r *memArchiveRepo) CountFiles(query repositories.ArchiveQuery) (int64, []models.Archive, error) {
	return 0, nil, nil
}
func (r *memArchiveRepo) SoftDelete(id uint64) error { return nil }
func (r *memArchiveRepo) PermanentDelete(id uint64) error {
	delete(r.archives, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type memVolumeRepo struct {
	volumes map[uint64]*models.Volume
}

func (r *memVolumeRepo) Create(volume *models.Volume) error { return nil }
func (r *memVolumeRepo) Update(volume *models.Volume) error { return nil }
func (r *memVolumeRepo) FindByID(id uint64) (*models.Volume, error) {
	if v, ok := r.volumes[id]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (r *memVolumeRepo) FindBySlug(slug string) (*models.Volume, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *memVolumeRepo) List() ([]models.Volume, error) { return nil, nil }
func (r *memVolumeRepo) Count() (int64, error)          { return int64(len(r.volumes)), nil }
func (r *memVolumeRepo) Delete(id uint64) error         { return nil }

type memAttachmentRepo struct {
	attachments map[uint64]*models.Attachment
	// archiveID -> attachmentIDs
	refs       map[uint64][]uint64
	deletedIDs []uint64
}

func newMemAttachmentRepo() *memAttachmentRepo {
	return &memAttachmentRepo{
		attachments: make(map[uint64]*models.Attachment),
		refs:        make(map[uint64][]uint64),
	}
}

func (r *memAttachmentRepo) Create(attachment *models.Attachment) error {
	r.attachments[attachment.ID] = attachment
	return nil
}

func (r *memAttachmentRepo) FindByID(id uint64) (*models.Attachment, error) {
	if a, ok := r.attachments[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAttachmentRepo) FindByURL(url string) (*models.Attachment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *memAttachmentRepo) FindByIDs(ids []uint64) ([]models.Attachment, error) { return nil, nil }

func (r *memAttachmentRepo) Delete(id uint64) error {
	delete(r.attachments, id)
	r.deletedIDs = append(r.deletedIDs, id)
	return nil
}

func (r *memAttachmentRepo) ReplaceArchiveRefs(archiveID uint64, attachmentIDs []uint64) error {
	r.refs[archiveID] = attachmentIDs
	return nil
}

func (r *memAttachmentRepo) DeleteArchiveRefs(archiveID uint64) error {
	delete(r.refs, archiveID)
	return nil
}

func (r *memAttachmentRepo) CountRefsExcluding(attachmentID, excludeArchiveID uint64) (int64, error) {
	var count int64
	for archiveID, ids := range r.refs {
		if archiveID == excludeArchiveID {
			continue
		}
		for _, id := range ids {
			if id == attachmentID {
				count++
			}
		}
	}
	return count, nil
}

func (r *memAttachmentRepo) FindRefsByArchive(archiveID uint64) ([]uint64, error) {
	return r.refs[archiveID], nil
}

type memStorage struct {
	removed []string
}

func (s *memStorage) PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (storage.PutObjectResult, error) {
	return storage.PutObjectResult{Key: objectName, Size: objectSize}, nil
}
func (s *memStorage) GetObject(ctx context.Context, objectName string) (storage.GetObjectResult, error) {
	return storage.GetObjectResult{Reader: io.NopCloser(bytes.NewReader(nil))}, nil
}
func (s *memStorage) StatObject(ctx context.Context, objectName string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{Key: objectName}, nil
}
func (s *memStorage) RemoveObject(ctx context.Context, objectName string) error {
	s.removed = append(s.removed, objectName)
	return nil
}
func (s *memStorage) ObjectExists(ctx context.Context, objectName string) (bool, error) {
	return false, nil
}
func (s *memStorage) ObjectURL(objectName string) string { return "http://archive.test/" + objectName }

type noopCache struct{}

func (noopCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return nil
}
func (noopCache) Get(ctx context.Context, key string, target any) error { return cache.ErrCacheMiss }
func (noopCache) Del(ctx context.Context, keys ...string) error         { return nil }
func (noopCache) DelPattern(ctx context.Context, pattern string) error  { return nil }
func (noopCache) Exists(ctx context.Context, key string) (bool, error)  { return false, nil }
func (noopCache) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 1, nil
}
func (noopCache) TTL(ctx context.Context, key string) (time.Duration, error) { return 0, nil }

// --- 测试脚手架 ---

type archiveFixture struct {
	svc         ArchiveService
	archiveRepo *memArchiveRepo
	volumeRepo  *memVolumeRepo
	attachments *memAttachmentRepo
	storage     *memStorage
	store       *settings.Store
	basePath    string
	baseURL     string
}

func newArchiveFixture(t *testing.T) *archiveFixture {
	t.Helper()
	basePath := t.TempDir()
	baseURL := "http://archive.test/uploads"

	store, err := settings.NewStore(&memSettingsRepo{}, "http://archive.test", true)
	require.NoError(t, err)

	archiveRepo := newMemArchiveRepo()
	volumeRepo := &memVolumeRepo{volumes: map[uint64]*models.Volume{
		3: {ID: 3, Name: "Utilities", Slug: "utilities"},
	}}
	attachments := newMemAttachmentRepo()
	storageSvc := &memStorage{}
	registry := settings.NewFileTypeRegistry(store)
	resolver := settings.NewUploadPathResolver(store, basePath, baseURL)

	svc := NewArchiveService(archiveRepo, volumeRepo, attachments, registry, resolver, store, storageSvc, noopCache{}, nil)

	return &archiveFixture{
		svc:         svc,
		archiveRepo: archiveRepo,
		volumeRepo:  volumeRepo,
		attachments: attachments,
		storage:     storageSvc,
		store:       store,
		basePath:    basePath,
		baseURL:     baseURL,
	}
}

func (f *archiveFixture) fileURL(archiveID uint64, name string) string {
	return f.baseURL + "/gbbs-archive/" + strconv.FormatUint(archiveID, 10) + "/" + name
}

func TestCreateAssignsSlug(t *testing.T) {
	f := newArchiveFixture(t)

	a, warnings, err := f.svc.Create(context.Background(), SaveInput{
		Title:    "GBBS Pro v2.1",
		VolumeID: VolumeNoChange,
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "gbbs-pro-v2-1", a.Slug)
	assert.Equal(t, models.ArchiveStatusDraft, a.Status)
}

func TestCreateRequiresTitle(t *testing.T) {
	f := newArchiveFixture(t)
	_, _, err := f.svc.Create(context.Background(), SaveInput{Title: "   ", VolumeID: VolumeNoChange})
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)
}

func TestSaveFileRoundTripPreservesOrder(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	files := []FileInput{
		{URL: "http://mirror.example/one.dsk", Name: "one.dsk", Category: models.CategoryMain},
		{URL: "http://mirror.example/two.txt", Name: "two.txt", Category: models.CategoryDocumentation},
		{URL: "http://mirror.example/three.bas", Name: "three.bas"},
	}
	saved, warnings, err := f.svc.Save(context.Background(), a.ID, SaveInput{Files: files, VolumeID: VolumeNoChange})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, saved.Files, 3)

	// 顺序保持，稳定标识已分配
	assert.Equal(t, "one.dsk", saved.Files[0].Name)
	assert.Equal(t, "two.txt", saved.Files[1].Name)
	assert.Equal(t, "three.bas", saved.Files[2].Name)
	for i := range saved.Files {
		assert.NotEmpty(t, saved.Files[i].UID)
	}
	// 缺省分类
	assert.Equal(t, models.CategoryOther, saved.Files[2].Category)
}

func strPtr(s string) *string { return &s }

func TestSaveMetadataPresentFieldSemantics(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "GBBS Pro", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	saved, _, err := f.svc.Save(context.Background(), a.ID, SaveInput{
		VolumeID:        VolumeNoChange,
		Version:         strPtr(" 2.1 "),
		Author:          strPtr("Greg Schaefer"),
		ReleaseYear:     strPtr("1987"),
		Requirements:    strPtr("Apple IIe, 128K"),
		HistoricalNotes: strPtr("最早的 GBBS Pro 公开版本"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2.1", saved.Version)
	assert.Equal(t, "Greg Schaefer", saved.Author)
	assert.Equal(t, "1987", saved.ReleaseYear)
	assert.Equal(t, "Apple IIe, 128K", saved.Requirements)

	// 未提交的字段保持现状
	saved, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{
		VolumeID: VolumeNoChange,
		Version:  strPtr("2.2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2.2", saved.Version)
	assert.Equal(t, "Greg Schaefer", saved.Author)
	assert.Equal(t, "1987", saved.ReleaseYear)

	// 提交空串清除
	saved, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{
		VolumeID:    VolumeNoChange,
		ReleaseYear: strPtr(""),
	})
	require.NoError(t, err)
	assert.Empty(t, saved.ReleaseYear)
	assert.Equal(t, "2.2", saved.Version)
}

func TestSaveUIDStableAcrossReorder(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	saved, _, err := f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/one.dsk"},
		{URL: "http://mirror.example/two.dsk"},
	}})
	require.NoError(t, err)
	uid0, uid1 := saved.Files[0].UID, saved.Files[1].UID

	// 交换顺序重新保存，标识跟随文件
	saved, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{UID: uid1, URL: "http://mirror.example/two.dsk"},
		{UID: uid0, URL: "http://mirror.example/one.dsk"},
	}})
	require.NoError(t, err)
	assert.Equal(t, uid1, saved.Files[0].UID)
	assert.Equal(t, uid0, saved.Files[1].UID)
}

func TestSaveRejectsInvalidURLWithWarning(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	saved, warnings, err := f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "not a url", Name: "bad.dsk"},
		{URL: "http://mirror.example/good.dsk", Name: "good.dsk"},
	}})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "bad.dsk", warnings[0].FileName)
	require.Len(t, saved.Files, 1)
	assert.Equal(t, "good.dsk", saved.Files[0].Name)
}

func TestSaveRejectsDisallowedFileType(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	saved, warnings, err := f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/tool.exe", Name: "tool.exe"},
	}})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Empty(t, saved.Files)

	// 关闭类型限制后放行
	require.NoError(t, f.store.Update(func(agg *settings.Aggregate) {
		agg.RestrictFileTypes = false
	}))
	saved, warnings, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/tool.exe", Name: "tool.exe"},
	}})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Len(t, saved.Files, 1)
}

func TestSaveRejectsOversizedLocalFile(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	// 上限压到 1MB，写一个 2MB 的本地文件
	require.NoError(t, f.store.Update(func(agg *settings.Aggregate) {
		agg.MaxFileSize = 1
	}))
	dir := filepath.Join(f.basePath, "gbbs-archive", "42")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.dsk"), make([]byte, 2*1024*1024), 0o644))

	saved, warnings, err := f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: f.fileURL(42, "big.dsk"), Name: "big.dsk"},
	}})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "1MB")
	assert.Empty(t, saved.Files)
}

func TestSaveVolumeAssignment(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	// 分配到卷 3
	saved, _, err := f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: 3})
	require.NoError(t, err)
	require.NotNil(t, saved.VolumeID)
	assert.Equal(t, uint64(3), *saved.VolumeID)

	// VolumeNoChange 保持现状
	saved, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange})
	require.NoError(t, err)
	require.NotNil(t, saved.VolumeID)

	// 0 清除分配
	saved, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: 0})
	require.NoError(t, err)
	assert.Nil(t, saved.VolumeID)

	// 不存在的卷被拒绝
	_, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: 99})
	assert.ErrorIs(t, err, xerr.ErrVolumeNotFound)
}

func TestSaveCleansUpRemovedFiles(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	f.attachments.attachments[7] = &models.Attachment{ID: 7, Path: "gbbs-archive/1/one.dsk"}
	_, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/one.dsk", AttachmentID: 7},
	}})
	require.NoError(t, err)

	// 移除文件后保存，附件无其他引用，存储对象与记录一并清理
	_, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: nil})
	require.NoError(t, err)
	assert.Contains(t, f.attachments.deletedIDs, uint64(7))
	assert.Contains(t, f.storage.removed, "gbbs-archive/1/one.dsk")
}

func TestSaveResubmitWithoutUIDKeepsAttachment(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	f.attachments.attachments[7] = &models.Attachment{ID: 7, Path: "gbbs-archive/1/one.dsk"}
	saved, _, err := f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/one.dsk", AttachmentID: 7},
	}})
	require.NoError(t, err)
	uid := saved.Files[0].UID
	require.NotEmpty(t, uid)

	// 客户端重新提交同一文件但没带回稳定标识
	// 附件仍被引用，不得清理，标识沿用原值
	saved, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/one.dsk", AttachmentID: 7},
	}})
	require.NoError(t, err)
	assert.NotContains(t, f.attachments.deletedIDs, uint64(7))
	assert.Empty(t, f.storage.removed)
	require.Len(t, saved.Files, 1)
	assert.Equal(t, uid, saved.Files[0].UID)
}

func TestSaveCarriesForwardUIDByURL(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	// 外部 URL 条目没有附件，按 URL 匹配找回标识
	saved, _, err := f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/one.dsk"},
	}})
	require.NoError(t, err)
	uid := saved.Files[0].UID

	saved, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/one.dsk", Description: "更新了说明"},
	}})
	require.NoError(t, err)
	assert.Equal(t, uid, saved.Files[0].UID)
}

func TestSaveKeepsSharedAttachment(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	f.attachments.attachments[7] = &models.Attachment{ID: 7, Path: "gbbs-archive/shared/one.dsk"}
	// 另一个档案也引用同一附件
	f.attachments.refs[999] = []uint64{7}

	_, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/one.dsk", AttachmentID: 7},
	}})
	require.NoError(t, err)

	_, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Files: nil})
	require.NoError(t, err)
	assert.NotContains(t, f.attachments.deletedIDs, uint64(7))
	assert.Empty(t, f.storage.removed)
}

func TestDeleteRemovesArchiveAndDirectory(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	dir := filepath.Join(f.basePath, "gbbs-archive", "1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.dsk"), []byte("data"), 0o644))

	require.NoError(t, f.svc.Delete(context.Background(), a.ID))

	assert.Contains(t, f.archiveRepo.deleted, a.ID)
	assert.NoDirExists(t, dir)
	_, err = f.svc.GetByID(a.ID)
	assert.ErrorIs(t, err, xerr.ErrArchiveNotFound)
}

func TestTrashKeepsFiles(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange, Files: []FileInput{
		{URL: "http://mirror.example/one.dsk", AttachmentID: 7},
	}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Trash(context.Background(), a.ID))

	got, err := f.svc.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ArchiveStatusTrash, got.Status)
	assert.Len(t, got.Files, 1)
	assert.Empty(t, f.attachments.deletedIDs)
}

func TestSaveInvalidStatusRejected(t *testing.T) {
	f := newArchiveFixture(t)
	a, _, err := f.svc.Create(context.Background(), SaveInput{Title: "Test", VolumeID: VolumeNoChange})
	require.NoError(t, err)

	_, _, err = f.svc.Save(context.Background(), a.ID, SaveInput{VolumeID: VolumeNoChange, Status: "bogus"})
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "gbbs-pro-v2-1", slugify("GBBS Pro v2.1"))
	assert.Equal(t, "hello-world", slugify("  Hello,  World!  "))
	assert.Equal(t, "", slugify("!!!"))
}
