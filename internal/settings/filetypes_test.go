package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCoversAllDefinitions(t *testing.T) {
	store, _ := newTestStore(t)
	registry := NewFileTypeRegistry(store)

	defs := registry.Definitions()
	assert.Len(t, defs, 22)
	for _, def := range defs {
		assert.True(t, def.Enabled, "extension %s should be enabled by default", def.Extension)
	}

	grouped := registry.DefinitionsByCategory()
	assert.Len(t, grouped[TypeCategoryDiskImages], 6)
	assert.Len(t, grouped[TypeCategoryPrograms], 9)
	assert.Len(t, grouped[TypeCategoryArchives], 4)
	assert.Len(t, grouped[TypeCategoryDocumentation], 3)
}

func TestIsAllowedCaseInsensitive(t *testing.T) {
	store, _ := newTestStore(t)
	registry := NewFileTypeRegistry(store)

	assert.True(t, registry.IsAllowed("GAME.DSK"))
	assert.True(t, registry.IsAllowed("game.dsk"))
	assert.True(t, registry.IsAllowed("My.Program.bin"))
	assert.False(t, registry.IsAllowed("malware.exe"))
	assert.False(t, registry.IsAllowed("noextension"))
}

func TestIsAllowedWhenRestrictionOff(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Update(func(agg *Aggregate) {
		agg.RestrictFileTypes = false
	}))
	registry := NewFileTypeRegistry(store)

	assert.True(t, registry.IsAllowed("anything.exe"))
	assert.True(t, registry.IsAllowed("noextension"))
}

func TestDisableAndEnableCategory(t *testing.T) {
	store, _ := newTestStore(t)
	registry := NewFileTypeRegistry(store)

	require.NoError(t, registry.DisableCategory(TypeCategoryDiskImages))
	assert.False(t, registry.IsAllowed("game.dsk"))
	assert.False(t, registry.IsAllowed("image.woz"))
	// 其他分类不受影响
	assert.True(t, registry.IsAllowed("prog.bas"))

	require.NoError(t, registry.EnableCategory(TypeCategoryDiskImages))
	assert.True(t, registry.IsAllowed("game.dsk"))
}

func TestEnableCategoryDoesNotDuplicate(t *testing.T) {
	store, _ := newTestStore(t)
	registry := NewFileTypeRegistry(store)

	require.NoError(t, registry.EnableCategory(TypeCategoryDiskImages))
	require.NoError(t, registry.EnableCategory(TypeCategoryDiskImages))

	agg := store.Settings()
	seen := make(map[string]int)
	for _, ext := range agg.AllowedFileTypes {
		seen[ext]++
	}
	for ext, n := range seen {
		assert.Equal(t, 1, n, "extension %s duplicated", ext)
	}
}

func TestRegistryStats(t *testing.T) {
	store, _ := newTestStore(t)
	registry := NewFileTypeRegistry(store)

	stats := registry.Stats()
	assert.Equal(t, 22, stats.Total)
	assert.Equal(t, 22, stats.Enabled)

	require.NoError(t, registry.DisableCategory(TypeCategoryDocumentation))
	stats = registry.Stats()
	assert.Equal(t, 19, stats.Enabled)
	assert.Zero(t, stats.ByCategory[TypeCategoryDocumentation])
}

func TestTypeCategoryDisplayName(t *testing.T) {
	assert.Equal(t, "Apple II Disk Images", TypeCategoryDisplayName(TypeCategoryDiskImages))
	assert.Equal(t, "Documentation", TypeCategoryDisplayName(TypeCategoryDocumentation))
	assert.Equal(t, "unknown", TypeCategoryDisplayName("unknown"))
}
