package mesh

import (
	"fmt"
	"io"
	"testing"

	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func TestAddBoneInfluence(t *testing.T) {
	var v SkinVertex

	require.True(t, v.AddBoneInfluence(0, 1.0))
	assert.Equal(t, [4]uint8{1, 0, 0, 0}, v.BoneIndex)
	assert.InDelta(t, 1.0, v.BoneWeight[0], 1e-6)

	require.True(t, v.AddBoneInfluence(1, 0.5))
	assert.Equal(t, [4]uint8{1, 2, 0, 0}, v.BoneIndex)
	assert.InDelta(t, 0.5, v.BoneWeight[0], 1e-6)
	assert.InDelta(t, 0.25, v.BoneWeight[1], 1e-6)

	require.True(t, v.AddBoneInfluence(2, 0.3))
	assert.InDelta(t, 1.0/6.0, v.BoneWeight[0], 1e-6)
	assert.InDelta(t, 1.0/6.0, v.BoneWeight[1], 1e-6)
	assert.InDelta(t, 0.1, v.BoneWeight[2], 1e-6)

	require.True(t, v.AddBoneInfluence(3, 0.2))
	assert.Equal(t, [4]uint8{1, 2, 3, 4}, v.BoneIndex)
	assert.InDelta(t, 1.0/24.0, v.BoneWeight[0], 1e-6)
	assert.InDelta(t, 1.0/12.0, v.BoneWeight[1], 1e-6)
	assert.InDelta(t, 0.075, v.BoneWeight[2], 1e-6)
	assert.InDelta(t, 0.05, v.BoneWeight[3], 1e-6)

	before := v
	assert.False(t, v.AddBoneInfluence(4, 1.0))
	assert.Equal(t, before, v)
}

// Only a single influence keeps the raw weight. Every insertion rescales
// the earlier slots, so from the second influence on the stored weights
// add up to less than the raw ones. A fifth influence changes nothing.
func TestAddBoneInfluenceStoredSumBelowRawSum(t *testing.T) {
	tests := []struct {
		name   string
		raw    []float32
		stored float32
	}{
		{name: "one", raw: []float32{0.8}, stored: 0.8},
		{name: "two", raw: []float32{0.5, 0.5}, stored: 0.5},
		{name: "three", raw: []float32{0.5, 0.3, 0.2}, stored: 0.25},
		{name: "four", raw: []float32{1.0, 0.5, 0.3, 0.2}, stored: 0.25},
		{name: "five", raw: []float32{1.0, 0.5, 0.3, 0.2, 0.9}, stored: 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v SkinVertex
			var rawSum float32
			for i, w := range tt.raw {
				v.AddBoneInfluence(uint32(i), w)
				rawSum += w
			}

			var sum float32
			for _, w := range v.BoneWeight {
				sum += w
			}
			assert.InDelta(t, tt.stored, sum, 1e-6)
			if len(tt.raw) > 1 {
				assert.Less(t, sum, rawSum)
			}
		})
	}
}

func TestAddBoneInfluenceSingleKeepsWeight(t *testing.T) {
	var v SkinVertex
	require.True(t, v.AddBoneInfluence(7, 0.8))
	assert.Equal(t, uint8(8), v.BoneIndex[0])
	assert.InDelta(t, 0.8, v.BoneWeight[0], 1e-6)
}

func TestBindSkin(t *testing.T) {
	offsetA := math.NewMat4Translation(math.NewVec3(0, -1, 0))
	offsetB := math.NewMat4Translation(math.NewVec3(0, -2, 0))

	vertices := make([]SkinVertex, 2)
	table := NewBoneTable()
	BindSkin(vertices, []*scene.Bone{
		{Name: "hip", Offset: offsetA, Weights: []scene.VertexWeight{{VertexID: 0, Weight: 1}, {VertexID: 9, Weight: 1}}},
		{Name: "knee", Offset: offsetA, Weights: []scene.VertexWeight{{VertexID: 1, Weight: 1}}},
	}, table)

	require.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"hip", "knee"}, table.Names())
	assert.Equal(t, uint8(1), vertices[0].BoneIndex[0])
	assert.Equal(t, uint8(2), vertices[1].BoneIndex[0])

	// A second mesh sharing a bone reuses its index and replaces its offset.
	more := make([]SkinVertex, 1)
	BindSkin(more, []*scene.Bone{
		{Name: "knee", Offset: offsetB, Weights: []scene.VertexWeight{{VertexID: 0, Weight: 1}}},
	}, table)

	idx, ok := table.Lookup("knee")
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)
	assert.Equal(t, offsetB, table.Offset(idx))
	assert.Equal(t, uint8(2), more[0].BoneIndex[0])
}

func TestBoneTableFull(t *testing.T) {
	table := NewBoneTable()
	for i := 0; i < MaxBones; i++ {
		_, ok := table.Intern(fmt.Sprintf("bone_%d", i), math.NewMat4Identity())
		require.True(t, ok)
	}

	_, ok := table.Intern("one-too-many", math.NewMat4Identity())
	assert.False(t, ok)
	assert.Equal(t, MaxBones, table.Len())

	var empty *BoneTable
	assert.Equal(t, 0, empty.Len())
	_, ok = empty.Lookup("hip")
	assert.False(t, ok)
}
