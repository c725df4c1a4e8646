package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/skinmesh/engine/config"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func init() {
	core.SetLogOutput(io.Discard)
}

const quadOBJ = `o plane
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
f 1 2 3 4
`

func writeQuad(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))
	return path
}

func TestParseVec3(t *testing.T) {
	v, err := parseVec3("1, -2.5,3")
	require.NoError(t, err)
	assert.Equal(t, math.NewVec3(1, -2.5, 3), v)

	for _, bad := range []string{"", "1,2", "1,2,x", "1,2,3,4"} {
		_, err := parseVec3(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunCreate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "defs", "quad.toml")
	var stdout bytes.Buffer
	require.NoError(t, runCreate([]string{"-name", "quad", "-mesh", "quad.obj", "-out", out}, &stdout))
	assert.Contains(t, stdout.String(), out)

	cfg, err := config.LoadAssetConfig(out)
	require.NoError(t, err)
	assert.Equal(t, "quad", cfg.Name)

	assert.ErrorIs(t, runCreate([]string{"-name", "x", "-mesh", "x.fbx", "-out", out + ".2"}, &stdout), core.ErrUnsupportedFormat)
	assert.Error(t, runCreate([]string{"-name", "quad", "-mesh", "quad.obj", "-out", out}, &stdout))
}

func TestRunCreateDefaultsToNameInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	var stdout bytes.Buffer
	require.NoError(t, runCreate([]string{"-name", "rock", "-mesh", "models/rock.obj"}, &stdout))
	assert.Contains(t, stdout.String(), "rock"+config.AssetDefinitionExt)

	cfg, err := config.LoadAssetConfig(filepath.Join(dir, "rock"+config.AssetDefinitionExt))
	require.NoError(t, err)
	assert.Equal(t, "rock", cfg.Name)
	assert.Equal(t, filepath.Join(dir, "models", "rock.obj"), cfg.MeshFile)
}

func TestRunImportWritesCache(t *testing.T) {
	src := writeQuad(t)
	cache := filepath.Join(t.TempDir(), "cache")

	var stdout bytes.Buffer
	require.NoError(t, runImport([]string{"-cache", cache, "-quiet", src}, &stdout))
	assert.Contains(t, stdout.String(), "1 submeshes")
	assert.FileExists(t, mesh.CachePath(cache, src))

	err := runImport([]string{"-no-cache", "-quiet", filepath.Join(t.TempDir(), "missing.obj")}, &stdout)
	assert.Error(t, err)
	assert.Error(t, runImport([]string{"-quiet"}, &stdout))
}

func TestRunInspect(t *testing.T) {
	src := writeQuad(t)

	var stdout bytes.Buffer
	require.NoError(t, runInspect([]string{"-no-cache", "-quiet", src}, &stdout))

	var got assetSummary
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, "quad", got.Name)
	assert.Equal(t, "ready", got.State)
	assert.False(t, got.Animated)
	require.Len(t, got.SubMeshes, 1)
	assert.Equal(t, 4, got.SubMeshes[0].Vertices)
	assert.Equal(t, 2, got.SubMeshes[0].Triangles)
	assert.Equal(t, [3]float32{-1, -1, 0}, got.BoundsMin)

	stdout.Reset()
	require.NoError(t, runInspect([]string{"-no-cache", "-quiet", "-dump", src}, &stdout))
	assert.Contains(t, stdout.String(), "plane")
}

func TestRunRaycast(t *testing.T) {
	src := writeQuad(t)

	var stdout bytes.Buffer
	require.NoError(t, runRaycast([]string{"-no-cache", "-quiet", "-from", "0.5,-0.25,-5", "-to", "0.5,-0.25,5", src}, &stdout))
	var got raycastSummary
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &got))
	assert.True(t, got.Hit)
	require.NotNil(t, got.Point)
	assert.InDelta(t, 0.5, got.Point[0], 1e-5)
	assert.InDelta(t, 0, got.Point[2], 1e-5)

	stdout.Reset()
	require.NoError(t, runRaycast([]string{"-no-cache", "-quiet", "-from", "5,5,-5", "-to", "5,5,5", src}, &stdout))
	got = raycastSummary{}
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &got))
	assert.False(t, got.Hit)
	assert.Nil(t, got.Point)

	assert.Error(t, runRaycast([]string{"-no-cache", "-quiet", "-from", "bad", "-to", "0,0,0", src}, &stdout))
}

func TestRunSampleStaticMesh(t *testing.T) {
	src := writeQuad(t)
	var stdout bytes.Buffer
	err := runSample([]string{"-no-cache", "-quiet", src}, &stdout)
	assert.ErrorIs(t, err, core.ErrNotAnimated)
}
