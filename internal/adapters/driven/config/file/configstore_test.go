package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

func newTestSettingsStore(t *testing.T) *SettingsStore {
	t.Helper()
	store, err := NewSettingsStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSettingsStore_Load_MissingFile(t *testing.T) {
	store := newTestSettingsStore(t)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRaptorSettings(), settings)
}

func TestSettingsStore_SaveAndLoad(t *testing.T) {
	store := newTestSettingsStore(t)

	settings := domain.DefaultRaptorSettings()
	settings.Enabled = true
	settings.MaxDepth = 3
	settings.Model = "llama3.2"

	require.NoError(t, store.Save(settings))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.Enabled)
	assert.Equal(t, 3, loaded.MaxDepth)
	assert.Equal(t, "llama3.2", loaded.Model)
}

func TestSettingsStore_Load_PartialFile(t *testing.T) {
	// Absent keys keep their defaults.
	dir := t.TempDir()
	store, err := NewSettingsStore(dir)
	require.NoError(t, err)

	content := "enabled = true\nmax_depth = 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, settingsFile), []byte(content), 0600))

	settings, err := store.Load()
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, 2, settings.MaxDepth)

	defaults := domain.DefaultRaptorSettings()
	assert.Equal(t, defaults.MinClusterSize, settings.MinClusterSize)
	assert.Equal(t, defaults.MaxSearchResults, settings.MaxSearchResults)
}

func TestSettingsStore_Load_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSettingsStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, settingsFile), []byte("not [valid toml"), 0600))

	settings, err := store.Load()
	require.Error(t, err)
	// A broken file never yields broken settings.
	assert.Equal(t, domain.DefaultRaptorSettings(), settings)
}

func TestSettingsStore_Save_RejectsInvalid(t *testing.T) {
	store := newTestSettingsStore(t)

	settings := domain.DefaultRaptorSettings()
	settings.MaxDepth = -1

	err := store.Save(settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Nothing was written.
	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestSettingsStore_Load_NormalisesValues(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSettingsStore(dir)
	require.NoError(t, err)

	// Out-of-range values clamp instead of propagating.
	content := "max_search_results = 0\nbuild_concurrency = 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, settingsFile), []byte(content), 0600))

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Positive(t, settings.MaxSearchResults)
	assert.Positive(t, settings.BuildConcurrency)
}
