package mesh

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCacheData() *CacheData {
	v := SkinVertex{
		Position:  math.NewVec3(1, 2, 3),
		UV:        math.NewVec2(0.25, 0.75),
		Tangent:   math.NewVec3(1, 0, 0),
		Bitangent: math.NewVec3(0, 1, 0),
		Normal:    math.NewVec3(0, 0, 1),
	}
	v.AddBoneInfluence(0, 1)
	v.AddBoneInfluence(3, 0.5)

	return &CacheData{
		SubMeshes: []*SubMesh{
			{
				Name:          "body",
				NodeName:      "armature",
				Transform:     math.NewMat4Translation(math.NewVec3(4, 5, 6)),
				Bounds:        math.Extents3D{Min: math.NewVec3(-1, -1, -1), Max: math.NewVec3(1, 2, 3)},
				MaterialIndex: 2,
				Vertices:      []SkinVertex{v, v, v},
				Indices:       []uint16{0, 1, 2, 1, 2},
				Faces:         []Face{{0, 1, 2}},
			},
			{
				Name:      "empty",
				Transform: math.NewMat4Identity(),
			},
		},
		MaterialCount: 3,
	}
}

func TestSkinVertexSize(t *testing.T) {
	var buf bytes.Buffer
	e := &encoder{w: &buf}
	e.write(SkinVertex{})
	require.NoError(t, e.err)
	assert.Equal(t, SkinVertexSize, buf.Len())
	assert.Equal(t, uint32(SkinVertexSize), SkinVertexLayout.Stride)
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()
	data := sampleCacheData()

	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, data))
	encoded := buf.Bytes()
	assert.Equal(t, CacheVersion, encoded[0])

	decoded, err := codec.Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, data.SubMeshes[0], decoded.SubMeshes[0])
	assert.Equal(t, "empty", decoded.SubMeshes[1].Name)
	assert.Empty(t, decoded.SubMeshes[1].Vertices)
	assert.Equal(t, data.MaterialCount, decoded.MaterialCount)

	var again bytes.Buffer
	require.NoError(t, codec.Encode(&again, decoded))
	assert.Equal(t, encoded, again.Bytes())
}

func TestCodecFile(t *testing.T) {
	codec := NewCodec()
	path := filepath.Join(t.TempDir(), "nested", "dir", "mesh.obj.bin")

	require.NoError(t, codec.Write(path, sampleCacheData()))
	decoded, err := codec.Read(path)
	require.NoError(t, err)
	assert.Len(t, decoded.SubMeshes, 2)
}

func TestCodecMisses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.bin")

	_, err := NewCodec().Read(path)
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	old := &Codec{Version: CacheVersion - 1}
	require.NoError(t, old.Write(path, sampleCacheData()))
	_, err = NewCodec().Read(path)
	assert.ErrorIs(t, err, core.ErrCacheMiss)
	assert.ErrorIs(t, err, core.ErrCacheVersion)

	var buf bytes.Buffer
	require.NoError(t, NewCodec().Encode(&buf, sampleCacheData()))
	full := buf.Bytes()
	for _, n := range []int{0, 1, 3, 20, len(full) - 1} {
		_, err := NewCodec().Decode(bytes.NewReader(full[:n]))
		assert.ErrorIs(t, err, core.ErrCacheMiss, "truncated to %d bytes", n)
	}

	require.NoError(t, os.WriteFile(path, []byte{CacheVersion, 0xff, 0xff, 0xff, 0x7f}, 0o644))
	_, err = NewCodec().Read(path)
	assert.ErrorIs(t, err, core.ErrCacheMiss)
}

func TestCachePath(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"assets/models/hero.gltf", filepath.Join("cache", "assets", "models", "hero.gltf.bin")},
		{"./hero.obj", filepath.Join("cache", "hero.obj.bin")},
		{"../outside/hero.obj", filepath.Join("cache", "outside", "hero.obj.bin")},
		{"/abs/hero.glb", filepath.Join("cache", "abs", "hero.glb.bin")},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, CachePath("cache", tt.source))
		})
	}
}
