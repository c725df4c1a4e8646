package mesh

import (
	"testing"

	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSubMesh(t *testing.T) {
	s := scene.NewScene("test")
	s.Materials = []*scene.Material{{Name: "default"}}
	node := scene.NewNode("part", s.RootNode)
	node.Transform = math.NewMat4Translation(math.NewVec3(5, 0, 0))
	node.Meshes = []uint32{0}

	s.Meshes = []*scene.Mesh{{
		Name: "square",
		Vertices: []math.Vec3{
			math.NewVec3(1, 1, 0),
			math.NewVec3(2, 1, 0),
			math.NewVec3(2, 2, 0),
			math.NewVec3(1, 2, 0),
		},
		TextureCoords: []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Faces: []scene.Face{
			{Indices: []uint32{0, 1, 2}},
			{Indices: []uint32{0, 2, 3}},
			{Indices: []uint32{1, 2}},
			{Indices: []uint32{0, 1, 2, 3}},
			{Indices: []uint32{0, 1, 70000}},
		},
	}}

	ex := Extract(s)
	require.Len(t, ex.SubMeshes, 1)
	assert.False(t, ex.Animated)
	assert.Equal(t, uint32(1), ex.MaterialCount)
	assert.Equal(t, 0, ex.Bones.Len())

	sub := ex.SubMeshes[0]
	assert.Equal(t, "square", sub.Name)
	assert.Equal(t, "part", sub.NodeName)
	assert.Equal(t, node.Transform, sub.Transform)
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3, 1, 2}, sub.Indices)
	assert.Equal(t, []Face{{0, 1, 2}, {0, 2, 3}}, sub.Faces)

	// Bounds grow from the origin, not from the first vertex.
	assert.Equal(t, math.Extents3D{Min: math.NewVec3(0, 0, 0), Max: math.NewVec3(2, 2, 0)}, sub.Bounds)
	assert.Equal(t, sub.Bounds, ex.Bounds)

	v := sub.Vertices[2]
	assert.Equal(t, math.NewVec3(2, 2, 0), v.Position)
	assert.Equal(t, math.Vec2{X: 1, Y: 1}, v.UV)
	assert.Equal(t, math.NewVec3Zero(), v.Normal)
	assert.Equal(t, math.NewVec3Zero(), v.Tangent)
	assert.Equal(t, [4]uint8{}, v.BoneIndex)
	assert.Equal(t, [4]float32{}, v.BoneWeight)
}

func TestExtractLineOnlyMesh(t *testing.T) {
	s := scene.NewScene("test")
	s.Meshes = []*scene.Mesh{{
		Name:     "wire",
		Vertices: []math.Vec3{math.NewVec3(0, 0, 0), math.NewVec3(0, 1, 0)},
		Faces:    []scene.Face{{Indices: []uint32{0, 1}}},
	}}

	ex := Extract(s)
	require.Len(t, ex.SubMeshes, 1)
	sub := ex.SubMeshes[0]
	assert.Equal(t, []uint16{0, 1}, sub.Indices)
	assert.Empty(t, sub.Faces)
	assert.Empty(t, sub.NodeName)
	assert.Equal(t, math.NewMat4Identity(), sub.Transform)
}

func TestExtractNodeSearchIsShallow(t *testing.T) {
	s := scene.NewScene("test")
	parent := scene.NewNode("group", s.RootNode)
	deep := scene.NewNode("deep", parent)
	deep.Transform = math.NewMat4Translation(math.NewVec3(0, 3, 0))
	deep.Meshes = []uint32{0}
	s.Meshes = []*scene.Mesh{{Name: "hidden", Vertices: []math.Vec3{math.NewVec3Zero()}}}

	ex := Extract(s)
	require.Len(t, ex.SubMeshes, 1)
	assert.Empty(t, ex.SubMeshes[0].NodeName)
	assert.Equal(t, math.NewMat4Identity(), ex.SubMeshes[0].Transform)
}

func TestExtractSkinnedAnimatedScene(t *testing.T) {
	s := animatedScene()

	ex := Extract(s)
	assert.True(t, ex.Animated)
	require.Equal(t, []string{"hip", "knee"}, ex.Bones.Names())

	sub := ex.SubMeshes[0]
	assert.Equal(t, "armature", sub.NodeName)
	assert.Equal(t, uint8(1), sub.Vertices[0].BoneIndex[0])
	assert.Equal(t, uint8(1), sub.Vertices[1].BoneIndex[0])
	assert.Equal(t, uint8(2), sub.Vertices[2].BoneIndex[0])
	assert.InDelta(t, 1.0, sub.Vertices[2].BoneWeight[0], 1e-6)
}

func TestExtractSubMeshUnionBounds(t *testing.T) {
	s := scene.NewScene("test")
	s.Meshes = []*scene.Mesh{
		{Name: "a", Vertices: []math.Vec3{math.NewVec3(1, 1, 1)}},
		{Name: "b", Vertices: []math.Vec3{math.NewVec3(-2, 0, 0)}},
	}

	ex := Extract(s)
	require.Len(t, ex.SubMeshes, 2)
	assert.Equal(t, math.Extents3D{Min: math.NewVec3(-2, 0, 0), Max: math.NewVec3(1, 1, 1)}, ex.Bounds)
}

// animatedScene is a triangle skinned to a two bone chain, hip then knee,
// with one four tick walk cycle moving the hip along x.
func animatedScene() *scene.Scene {
	s := scene.NewScene("walker")
	s.Materials = []*scene.Material{{Name: "skin", BaseColor: math.NewVec4(1, 1, 1, 1)}}

	armature := scene.NewNode("armature", s.RootNode)
	armature.Meshes = []uint32{0}
	hip := scene.NewNode("hip", armature)
	hip.Transform = math.NewMat4Translation(math.NewVec3(0, 1, 0))
	scene.NewNode("knee", hip)

	bindInverse := math.NewMat4Translation(math.NewVec3(0, -1, 0))
	s.Meshes = []*scene.Mesh{{
		Name: "body",
		Vertices: []math.Vec3{
			math.NewVec3(-1, -1, 0),
			math.NewVec3(1, -1, 0),
			math.NewVec3(0, 1, 0),
		},
		Faces: []scene.Face{{Indices: []uint32{0, 1, 2}}},
		Bones: []*scene.Bone{
			{Name: "hip", Offset: bindInverse, Weights: []scene.VertexWeight{{VertexID: 0, Weight: 1}, {VertexID: 1, Weight: 1}}},
			{Name: "knee", Offset: bindInverse, Weights: []scene.VertexWeight{{VertexID: 2, Weight: 1}}},
		},
	}}

	s.Animations = []*scene.Animation{{
		Name:           "walk",
		Duration:       4,
		TicksPerSecond: 1,
		Channels: []*scene.NodeAnim{{
			NodeName: "hip",
			PositionKeys: []scene.VectorKey{
				{Time: 0, Value: math.NewVec3(0, 1, 0)},
				{Time: 4, Value: math.NewVec3(4, 1, 0)},
			},
		}},
	}}
	return s
}
