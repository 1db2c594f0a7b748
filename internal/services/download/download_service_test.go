package download

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/cache"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixedSettings 测试用的固定设置源
type fixedSettings struct {
	agg settings.Aggregate
}

func (p *fixedSettings) Settings() settings.Aggregate { return p.agg }

// fakeArchiveRepo 内存档案仓库
type fakeArchiveRepo struct {
	byID   map[uint64]*models.Archive
	bySlug map[string]*models.Archive
}

func newFakeArchiveRepo(archives ...*models.Archive) *fakeArchiveRepo {
	r := &fakeArchiveRepo{
		byID:   make(map[uint64]*models.Archive),
		bySlug: make(map[string]*models.Archive),
	}
	for _, a := range archives {
		r.byID[a.ID] = a
		if a.Slug != "" {
			r.bySlug[a.Slug] = a
		}
	}
	return r
}

func (r *fakeArchiveRepo) Create(archive *models.Archive) error { return nil }
func (r *fakeArchiveRepo) Update(archive *models.Archive) error { return nil }

func (r *fakeArchiveRepo) FindByID(id uint64) (*models.Archive, error) {
	if a, ok := r.byID[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeArchiveRepo) FindBySlug(slug string) (*models.Archive, error) {
	if a, ok := r.bySlug[slug]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeArchiveRepo) List(query repositories.ArchiveQuery) ([]models.Archive, int64, error) {
	return nil, 0, nil
}
func (r *fakeArchiveRepo) ListAll(query repositories.ArchiveQuery) ([]models.Archive, error) {
	return nil, nil
}
func (r *fakeArchiveRepo) FindNewest() (*models.Archive, error)        { return nil, gorm.ErrRecordNotFound }
func (r *fakeArchiveRepo) CountByStatus(status string) (int64, error)  { return 0, nil }
func (r *fakeArchiveRepo) CountFiles(query repositories.ArchiveQuery) (int64, []models.Archive, error) {
	return 0, nil, nil
}
func (r *fakeArchiveRepo) SoftDelete(id uint64) error      { return nil }
func (r *fakeArchiveRepo) PermanentDelete(id uint64) error { return nil }

// fakeLogRepo 记录插入的下载日志
type fakeLogRepo struct {
	entries []*models.DownloadLog
}

func (r *fakeLogRepo) Insert(log *models.DownloadLog) error { r.entries = append(r.entries, log); return nil }
func (r *fakeLogRepo) CountAll() (int64, error)             { return int64(len(r.entries)), nil }
func (r *fakeLogRepo) CountByArchive(archiveID uint64) (int64, error)          { return 0, nil }
func (r *fakeLogRepo) CountByFile(archiveID uint64, fileUID string) (int64, error) { return 0, nil }
func (r *fakeLogRepo) CountByArchives(archiveIDs []uint64) ([]repositories.ArchiveDownloadCount, error) {
	return nil, nil
}
func (r *fakeLogRepo) CountSince(since time.Time) (int64, error)        { return 0, nil }
func (r *fakeLogRepo) Recent(limit int) ([]models.DownloadLog, error)   { return nil, nil }
func (r *fakeLogRepo) DeleteOlderThan(cutoff time.Time) (int64, error)  { return 0, nil }

// memCache 内存计数缓存，限流测试用
type memCache struct {
	counts map[string]int64
}

func newMemCache() *memCache { return &memCache{counts: make(map[string]int64)} }

func (c *memCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return nil
}
func (c *memCache) Get(ctx context.Context, key string, target any) error { return cache.ErrCacheMiss }
func (c *memCache) Del(ctx context.Context, keys ...string) error         { return nil }
func (c *memCache) DelPattern(ctx context.Context, pattern string) error  { return nil }
func (c *memCache) Exists(ctx context.Context, key string) (bool, error)  { return false, nil }
func (c *memCache) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.counts[key]++
	return c.counts[key], nil
}
func (c *memCache) TTL(ctx context.Context, key string) (time.Duration, error) { return 0, nil }

type downloadFixture struct {
	svc      DownloadService
	provider *fixedSettings
	logs     *fakeLogRepo
	basePath string
	baseURL  string
}

func newDownloadFixture(t *testing.T, archives ...*models.Archive) *downloadFixture {
	t.Helper()
	basePath := t.TempDir()
	baseURL := "http://archive.test/uploads"

	provider := &fixedSettings{agg: settings.Defaults()}
	resolver := settings.NewUploadPathResolver(provider, basePath, baseURL)
	limiter := settings.NewRateLimiter(provider, newMemCache())
	logs := &fakeLogRepo{}

	return &downloadFixture{
		svc:      NewDownloadService(newFakeArchiveRepo(archives...), logs, provider, resolver, limiter),
		provider: provider,
		logs:     logs,
		basePath: basePath,
		baseURL:  baseURL,
	}
}

// writeArchiveFile 在档案目录下落一个物理文件并返回其公开 URL
func (f *downloadFixture) writeArchiveFile(t *testing.T, archiveID uint64, name, content string) string {
	t.Helper()
	idStr := strconv.FormatUint(archiveID, 10)
	dir := filepath.Join(f.basePath, "gbbs-archive", idStr)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return f.baseURL + "/gbbs-archive/" + idStr + "/" + name
}

func publishedArchive(id uint64, slug string, files ...models.ArchiveFile) *models.Archive {
	return &models.Archive{
		ID:     id,
		Title:  "Test Archive",
		Slug:   slug,
		Status: models.ArchiveStatusPublish,
		Files:  models.ArchiveFileList(files),
	}
}

func meta() RequestMeta {
	return RequestMeta{IP: "203.0.113.7", UserAgent: "test-agent", Referer: "http://ref.test"}
}

func TestParseDownloadID(t *testing.T) {
	ref, key, err := ParseDownloadID("12-a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, "12", ref)
	assert.Equal(t, "a1b2c3", key)

	ref, key, err = ParseDownloadID("12-0")
	require.NoError(t, err)
	assert.Equal(t, "12", ref)
	assert.Equal(t, "0", key)

	for _, bad := range []string{"abc", "", "-abc", "abc-"} {
		_, _, err := ParseDownloadID(bad)
		assert.ErrorIs(t, err, xerr.ErrInvalidDownloadID, "input %q", bad)
	}
}

func TestResolveServesLocalFile(t *testing.T) {
	f := newDownloadFixture(t)
	url := f.writeArchiveFile(t, 42, "game.dsk", "disk image data")
	archive := publishedArchive(42, "test-archive", models.ArchiveFile{UID: "abc123", URL: url})
	f.svc = NewDownloadService(newFakeArchiveRepo(archive), f.logs, f.provider,
		settings.NewUploadPathResolver(f.provider, f.basePath, f.baseURL),
		settings.NewRateLimiter(f.provider, newMemCache()))

	res, err := f.svc.Resolve(context.Background(), "42-abc123", meta())
	require.NoError(t, err)
	assert.Equal(t, "game.dsk", res.FileName)
	assert.Equal(t, int64(len("disk image data")), res.Size)
	assert.NotEmpty(t, res.LocalPath)

	// 下载被记录
	require.Len(t, f.logs.entries, 1)
	entry := f.logs.entries[0]
	assert.Equal(t, uint64(42), entry.ArchiveID)
	assert.Equal(t, "abc123", entry.FileUID)
	assert.Equal(t, "203.0.113.7", entry.UserIP)
	assert.Equal(t, "test-agent", entry.UserAgent)
}

func TestResolveRequiresLogin(t *testing.T) {
	f := newDownloadFixture(t, publishedArchive(42, ""))
	f.provider.agg.RequireLogin = true

	_, err := f.svc.Resolve(context.Background(), "42-0", meta())
	assert.ErrorIs(t, err, xerr.ErrLoginRequired)

	// 已登录请求继续走后续检查
	m := meta()
	m.LoggedIn = true
	_, err = f.svc.Resolve(context.Background(), "42-0", m)
	assert.NotErrorIs(t, err, xerr.ErrLoginRequired)
}

func TestResolveRateLimited(t *testing.T) {
	f := newDownloadFixture(t, publishedArchive(42, ""))
	f.provider.agg.RateLimitRequests = 1

	// 第一次请求占满窗口，第二次被拒
	_, _ = f.svc.Resolve(context.Background(), "42-0", meta())
	_, err := f.svc.Resolve(context.Background(), "42-0", meta())
	assert.ErrorIs(t, err, xerr.ErrRateLimited)
}

func TestResolveUnpublishedArchiveHidden(t *testing.T) {
	draft := publishedArchive(42, "draft-archive", models.ArchiveFile{UID: "abc", URL: "http://x.test/f.dsk"})
	draft.Status = models.ArchiveStatusDraft
	f := newDownloadFixture(t, draft)

	_, err := f.svc.Resolve(context.Background(), "42-abc", meta())
	assert.ErrorIs(t, err, xerr.ErrArchiveNotFound)
}

func TestResolveUnknownArchiveAndFile(t *testing.T) {
	f := newDownloadFixture(t, publishedArchive(42, "", models.ArchiveFile{UID: "abc", URL: "http://x.test/f.dsk"}))

	_, err := f.svc.Resolve(context.Background(), "99-abc", meta())
	assert.ErrorIs(t, err, xerr.ErrArchiveNotFound)

	_, err = f.svc.Resolve(context.Background(), "42-nope", meta())
	assert.ErrorIs(t, err, xerr.ErrFileNotFound)

	// 序号越界
	_, err = f.svc.Resolve(context.Background(), "42-5", meta())
	assert.ErrorIs(t, err, xerr.ErrFileNotFound)
}

func TestResolveNumericIndexFallback(t *testing.T) {
	f := newDownloadFixture(t)
	url := f.writeArchiveFile(t, 42, "game.dsk", "data")
	// 旧链接里的文件键是序号，没有稳定标识可匹配
	archive := publishedArchive(42, "", models.ArchiveFile{UID: "abc", URL: url})
	f.svc = NewDownloadService(newFakeArchiveRepo(archive), f.logs, f.provider,
		settings.NewUploadPathResolver(f.provider, f.basePath, f.baseURL),
		settings.NewRateLimiter(f.provider, newMemCache()))

	res, err := f.svc.Resolve(context.Background(), "42-0", meta())
	require.NoError(t, err)
	assert.Equal(t, "game.dsk", res.FileName)
}

func TestResolveBySlug(t *testing.T) {
	f := newDownloadFixture(t)
	url := f.writeArchiveFile(t, 42, "game.dsk", "data")
	archive := publishedArchive(42, "myarchive", models.ArchiveFile{UID: "abc", URL: url})
	f.svc = NewDownloadService(newFakeArchiveRepo(archive), f.logs, f.provider,
		settings.NewUploadPathResolver(f.provider, f.basePath, f.baseURL),
		settings.NewRateLimiter(f.provider, newMemCache()))

	res, err := f.svc.Resolve(context.Background(), "myarchive-abc", meta())
	require.NoError(t, err)
	assert.Equal(t, "game.dsk", res.FileName)
}

func TestResolveLegacyFilenameFallback(t *testing.T) {
	f := newDownloadFixture(t)
	// 磁盘上是净化过的下划线文件名，链接里是原始的带点文件名
	f.writeArchiveFile(t, 42, "My_Program.bin", "binary data")
	url := f.baseURL + "/gbbs-archive/42/My.Program.bin"
	archive := publishedArchive(42, "", models.ArchiveFile{UID: "abc", URL: url})
	f.svc = NewDownloadService(newFakeArchiveRepo(archive), f.logs, f.provider,
		settings.NewUploadPathResolver(f.provider, f.basePath, f.baseURL),
		settings.NewRateLimiter(f.provider, newMemCache()))

	res, err := f.svc.Resolve(context.Background(), "42-abc", meta())
	require.NoError(t, err)
	assert.Equal(t, "My_Program.bin", filepath.Base(res.LocalPath))
	assert.Equal(t, int64(len("binary data")), res.Size)
}

func TestResolveLegacyFallbackOtherDirection(t *testing.T) {
	f := newDownloadFixture(t)
	// 磁盘上是原始带点文件名，链接里是下划线变体
	f.writeArchiveFile(t, 42, "My.Program.bin", "binary data")
	url := f.baseURL + "/gbbs-archive/42/My_Program.bin"
	archive := publishedArchive(42, "", models.ArchiveFile{UID: "abc", URL: url})
	f.svc = NewDownloadService(newFakeArchiveRepo(archive), f.logs, f.provider,
		settings.NewUploadPathResolver(f.provider, f.basePath, f.baseURL),
		settings.NewRateLimiter(f.provider, newMemCache()))

	res, err := f.svc.Resolve(context.Background(), "42-abc", meta())
	require.NoError(t, err)
	assert.Equal(t, "My.Program.bin", filepath.Base(res.LocalPath))
}

func TestResolveRemoteFileRedirect(t *testing.T) {
	url := "http://mirror.example/files/game.dsk"
	f := newDownloadFixture(t, publishedArchive(42, "", models.ArchiveFile{UID: "abc", URL: url}))

	res, err := f.svc.Resolve(context.Background(), "42-abc", meta())
	require.NoError(t, err)
	assert.Empty(t, res.LocalPath)
	assert.Equal(t, int64(-1), res.Size)
	assert.Equal(t, url, res.FileURL)
}

func TestResolveMissingBinary(t *testing.T) {
	f := newDownloadFixture(t)
	url := f.baseURL + "/gbbs-archive/42/gone.dsk"
	archive := publishedArchive(42, "", models.ArchiveFile{UID: "abc", URL: url})
	f.svc = NewDownloadService(newFakeArchiveRepo(archive), f.logs, f.provider,
		settings.NewUploadPathResolver(f.provider, f.basePath, f.baseURL),
		settings.NewRateLimiter(f.provider, newMemCache()))

	_, err := f.svc.Resolve(context.Background(), "42-abc", meta())
	assert.ErrorIs(t, err, xerr.ErrBinaryNotFound)
}

func TestResolveLoggingDisabled(t *testing.T) {
	f := newDownloadFixture(t)
	f.provider.agg.DownloadLogging = false
	url := f.writeArchiveFile(t, 42, "game.dsk", "data")
	archive := publishedArchive(42, "", models.ArchiveFile{UID: "abc", URL: url})
	f.svc = NewDownloadService(newFakeArchiveRepo(archive), f.logs, f.provider,
		settings.NewUploadPathResolver(f.provider, f.basePath, f.baseURL),
		settings.NewRateLimiter(f.provider, newMemCache()))

	_, err := f.svc.Resolve(context.Background(), "42-abc", meta())
	require.NoError(t, err)
	assert.Empty(t, f.logs.entries)
}

func TestCheckFileExists(t *testing.T) {
	f := newDownloadFixture(t)
	url := f.writeArchiveFile(t, 42, "game.dsk", "data")

	assert.True(t, f.svc.CheckFileExists(url))
	assert.False(t, f.svc.CheckFileExists(f.baseURL+"/gbbs-archive/42/gone.dsk"))
	assert.True(t, f.svc.CheckFileExists("http://mirror.example/files/game.dsk"))
	assert.False(t, f.svc.CheckFileExists(""))
	assert.False(t, f.svc.CheckFileExists("not a url"))
}

func TestWriteBundle(t *testing.T) {
	f := newDownloadFixture(t)
	url1 := f.writeArchiveFile(t, 42, "game.dsk", "disk data")
	url2 := f.writeArchiveFile(t, 42, "readme.txt", "docs")
	archive := publishedArchive(42, "my-bundle",
		models.ArchiveFile{UID: "a", URL: url1},
		models.ArchiveFile{UID: "b", URL: url2},
		// 远程文件被跳过
		models.ArchiveFile{UID: "c", URL: "http://mirror.example/extra.shk"},
	)
	f.svc = NewDownloadService(newFakeArchiveRepo(archive), f.logs, f.provider,
		settings.NewUploadPathResolver(f.provider, f.basePath, f.baseURL),
		settings.NewRateLimiter(f.provider, newMemCache()))

	var buf bytes.Buffer
	name, err := f.svc.WriteBundle(context.Background(), "42", &buf)
	require.NoError(t, err)
	assert.Equal(t, "my-bundle.zip", name)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	names := []string{zr.File[0].Name, zr.File[1].Name}
	assert.Contains(t, names, "game.dsk")
	assert.Contains(t, names, "readme.txt")
}

func TestWriteBundleNoUsableFiles(t *testing.T) {
	archive := publishedArchive(42, "empty-bundle",
		models.ArchiveFile{UID: "c", URL: "http://mirror.example/extra.shk"})
	f := newDownloadFixture(t, archive)

	var buf bytes.Buffer
	_, err := f.svc.WriteBundle(context.Background(), "42", &buf)
	assert.ErrorIs(t, err, xerr.ErrBinaryNotFound)
}

func TestWriteBundleUnpublished(t *testing.T) {
	archive := publishedArchive(42, "", models.ArchiveFile{UID: "a", URL: "http://x.test/f.dsk"})
	archive.Status = models.ArchiveStatusTrash
	f := newDownloadFixture(t, archive)

	var buf bytes.Buffer
	_, err := f.svc.WriteBundle(context.Background(), "42", &buf)
	assert.ErrorIs(t, err, xerr.ErrArchiveNotFound)
}
