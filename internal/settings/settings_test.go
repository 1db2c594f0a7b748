package settings

import (
	"encoding/json"
	"testing"

	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeSettingsRepo 内存版设置仓库，conflictTimes 用于模拟乐观锁冲突
type fakeSettingsRepo struct {
	record        *models.SettingRecord
	conflictTimes int
	saveCalls     int
}

func (f *fakeSettingsRepo) Load() (*models.SettingRecord, error) {
	if f.record == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.record
	return &copied, nil
}

func (f *fakeSettingsRepo) Init(data json.RawMessage) (*models.SettingRecord, error) {
	f.record = &models.SettingRecord{ID: 1, Data: data, Version: 1}
	copied := *f.record
	return &copied, nil
}

func (f *fakeSettingsRepo) Save(data json.RawMessage, expectedVersion uint64) (*models.SettingRecord, error) {
	f.saveCalls++
	if f.conflictTimes > 0 {
		f.conflictTimes--
		// 模拟并发写入者抢先一步
		f.record.Version++
		return nil, xerr.ErrSettingsConflict
	}
	if f.record == nil || f.record.Version != expectedVersion {
		return nil, xerr.ErrSettingsConflict
	}
	f.record.Data = data
	f.record.Version = expectedVersion + 1
	copied := *f.record
	return &copied, nil
}

func newTestStore(t *testing.T) (*Store, *fakeSettingsRepo) {
	t.Helper()
	repo := &fakeSettingsRepo{}
	store, err := NewStore(repo, "http://archive.test", true)
	require.NoError(t, err)
	return store, repo
}

func TestNewStoreWritesDefaults(t *testing.T) {
	store, repo := newTestStore(t)

	assert.NotNil(t, repo.record)
	assert.Equal(t, uint64(1), store.Version())

	agg := store.Settings()
	assert.Equal(t, "gbbs-download", agg.DownloadEndpoint)
	assert.Equal(t, EndpointTypeID, agg.EndpointType)
	assert.Equal(t, 50, agg.MaxFileSize)
	assert.Equal(t, 10, agg.RateLimitRequests)
	assert.Equal(t, 60, agg.RateLimitWindow)
	assert.True(t, agg.RestrictFileTypes)
	assert.Len(t, agg.AllowedFileTypes, 22)
}

func TestSanitizeClampsNumericFields(t *testing.T) {
	agg := Sanitize(Defaults(), map[string]any{
		"rate_limit_requests": 500,
		"rate_limit_window":   5,
		"max_file_size":       "2000",
		"items_per_page":      0,
		"download_timeout":    1,
	})

	assert.Equal(t, 100, agg.RateLimitRequests)
	assert.Equal(t, 10, agg.RateLimitWindow)
	assert.Equal(t, 1000, agg.MaxFileSize)
	assert.Equal(t, 1, agg.ItemsPerPage)
	assert.Equal(t, 30, agg.DownloadTimeout)
}

func TestSanitizeEnumFallsBackToDefault(t *testing.T) {
	agg := Sanitize(Defaults(), map[string]any{
		"endpoint_type":           "bogus",
		"default_sorting":         "bogus",
		"upload_folder_structure": "bogus",
		"file_organization":       "bogus",
	})

	assert.Equal(t, EndpointTypeID, agg.EndpointType)
	assert.Equal(t, SortByName, agg.DefaultSorting)
	assert.Equal(t, StructureDedicated, agg.UploadFolderStructure)
	assert.Equal(t, OrganizeByArchive, agg.FileOrganization)
}

func TestSanitizeCheckboxAbsenceMeansFalse(t *testing.T) {
	current := Defaults()
	require.True(t, current.RateLimiting)
	require.True(t, current.RequireLogin == false)

	// 提交中只勾选了 require_login，其余复选框全部落为 false
	agg := Sanitize(current, map[string]any{
		"require_login": "on",
	})

	assert.True(t, agg.RequireLogin)
	assert.False(t, agg.RateLimiting)
	assert.False(t, agg.TrackDownloads)
	assert.False(t, agg.ShowDownloadCounts)
	assert.False(t, agg.RestrictFileTypes)
}

func TestSanitizeSlugFields(t *testing.T) {
	agg := Sanitize(Defaults(), map[string]any{
		"download_endpoint": "  My Downloads!  ",
	})
	assert.Equal(t, "my-downloads", agg.DownloadEndpoint)
}

func TestSanitizeIdempotent(t *testing.T) {
	input := map[string]any{
		"download_endpoint":   "files",
		"rate_limit_requests": 999,
		"require_login":       true,
		"max_file_size":       0,
	}
	once := Sanitize(Defaults(), input)
	twice := Sanitize(once, once.ToInput())
	assert.Equal(t, once, twice)
}

func TestStoreUpdateRetriesOnConflict(t *testing.T) {
	store, repo := newTestStore(t)
	repo.conflictTimes = 2

	err := store.Update(func(agg *Aggregate) {
		agg.ItemsPerPage = 42
	})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.saveCalls)
	assert.Equal(t, 42, store.Settings().ItemsPerPage)
}

func TestStoreUpdateGivesUpAfterRetries(t *testing.T) {
	store, repo := newTestStore(t)
	repo.conflictTimes = 10

	err := store.Update(func(agg *Aggregate) {
		agg.ItemsPerPage = 42
	})
	assert.ErrorIs(t, err, xerr.ErrSettingsConflict)
}

func TestStoreResetToDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.ApplyInput(map[string]any{"items_per_page": 99}))
	require.Equal(t, 99, store.Settings().ItemsPerPage)

	require.NoError(t, store.ResetToDefaults())
	assert.Equal(t, 20, store.Settings().ItemsPerPage)
}

func TestStoreImportRejectsNil(t *testing.T) {
	store, _ := newTestStore(t)
	assert.ErrorIs(t, store.Import(nil), xerr.ErrInvalidParams)
}

func TestDownloadURLPrettyForm(t *testing.T) {
	store, _ := newTestStore(t)

	url := store.DownloadURL(12, "my-program", "a1b2c3")
	assert.Equal(t, "http://archive.test/gbbs-download/12-a1b2c3/", url)
}

func TestDownloadURLSlugEndpointType(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Update(func(agg *Aggregate) {
		agg.EndpointType = EndpointTypeSlug
	}))

	assert.Equal(t, "http://archive.test/gbbs-download/my-program-0/", store.DownloadURL(12, "my-program", "0"))
	// slug 缺失时退回数字 ID 引用
	assert.Equal(t, "http://archive.test/gbbs-download/12-0/", store.DownloadURL(12, "", "0"))
}

func TestDownloadURLQueryStringForm(t *testing.T) {
	repo := &fakeSettingsRepo{}
	store, err := NewStore(repo, "http://archive.test/", false)
	require.NoError(t, err)

	assert.Equal(t, "http://archive.test/?gbbs-download=12-abc", store.DownloadURL(12, "", "abc"))
}

func TestDecodeAggregateFillsMissingFields(t *testing.T) {
	agg := decodeAggregate(json.RawMessage(`{"items_per_page": 5}`))
	assert.Equal(t, 5, agg.ItemsPerPage)
	// 其余字段补默认
	assert.Equal(t, "gbbs-download", agg.DownloadEndpoint)
	assert.Equal(t, 50, agg.MaxFileSize)
}
