package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePipelineConfig(t *testing.T) {
	cfg, err := ParsePipelineConfig([]byte(`
cache_dir = "build/cache"
log_level = "debug"
background_import = true
import_workers = 3
watch_sources = true

[import]
triangulate = true
flip_winding_order = false
flip_uvs = false
calc_tangent_space = true
`))
	require.NoError(t, err)

	assert.Equal(t, "build/cache", cfg.CacheDir)
	assert.Equal(t, "assets", cfg.AssetDir, "unset keys keep their default")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.BackgroundImport)
	assert.True(t, cfg.WatchSources)
	assert.Equal(t, 3, cfg.ImportWorkers)
	assert.Equal(t, importer.FlagTriangulate|importer.FlagCalcTangentSpace, cfg.ImportFlags())
}

func TestParsePipelineConfigDefaults(t *testing.T) {
	cfg, err := ParsePipelineConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, importer.DefaultFlags, cfg.ImportFlags())
	assert.False(t, cfg.BackgroundImport)
	assert.GreaterOrEqual(t, cfg.ImportWorkers, 1)
}

func TestParsePipelineConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		is    error
	}{
		{name: "unknown key", input: "cache_directory = \"x\"\n"},
		{name: "bad syntax", input: "cache_dir = \n"},
		{name: "bad log level", input: "log_level = \"chatty\"\n"},
		{name: "negative workers", input: "import_workers = -2\n"},
		{name: "find instances", input: "[import]\nfind_instances = true\n", is: core.ErrInvalidImportFlags},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipelineConfig([]byte(tt.input))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestLoadPipelineConfigMissing(t *testing.T) {
	_, err := LoadPipelineConfig(filepath.Join(t.TempDir(), "pipeline.toml"))
	assert.Error(t, err)
}

func TestAssetConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defs", "hero.toml")
	mesh := filepath.Join(dir, "models", "hero.gltf")

	require.NoError(t, WriteAssetConfig(path, &AssetConfig{Name: "hero", MeshFile: mesh}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "../models/hero.gltf")

	cfg, err := LoadAssetConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hero", cfg.Name)
	assert.Equal(t, mesh, cfg.MeshFile)

	// Existing definitions are left alone.
	assert.Error(t, WriteAssetConfig(path, &AssetConfig{Name: "other", MeshFile: mesh}))
}

func TestAssetConfigValidation(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, WriteAssetConfig(filepath.Join(dir, "a.toml"), &AssetConfig{Name: "a"}))
	assert.Error(t, WriteAssetConfig(filepath.Join(dir, "b.toml"), &AssetConfig{MeshFile: "b.obj"}))

	path := filepath.Join(dir, "c.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"c\"\nmesh = \"c.obj\"\n"), 0o644))
	_, err := LoadAssetConfig(path)
	assert.Error(t, err)
}
