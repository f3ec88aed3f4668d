package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DownloadRoot)

	// first load persisted the defaults
	assert.FileExists(t, path)

	again, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DownloadRoot, again.DownloadRoot)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	require.NoError(t, SaveTo(path, &Config{DownloadRoot: "/data/manga"}))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/manga", cfg.DownloadRoot)
}

func TestLoadFromToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DownloadRoot)

	// the broken file is left in place for the user to inspect
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))
}

func TestLoadFromFillsMissingRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DownloadRoot)
}
