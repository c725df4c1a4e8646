package mesh

import (
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/renderer"
)

const (
	/** @brief The number of bones that can influence a single vertex. */
	MaxBoneInfluences = 4
	/** @brief Bone slots store index+1 in a byte, so 255 bones fit. */
	MaxBones = 255
	/** @brief Index buffers are 16 bit. */
	MaxIndexableVertices = 1 << 16
	/** @brief The size of SkinVertex in bytes, on disk and on the GPU. */
	SkinVertexSize = 76
)

/**
 * @brief A GPU-ready vertex with up to four bone influences. The field
 * order is the in-memory, on-disk and GPU attribute order.
 */
type SkinVertex struct {
	Position  math.Vec3
	UV        math.Vec2
	Tangent   math.Vec3
	Bitangent math.Vec3
	Normal    math.Vec3
	/** @brief Bone index + 1 per slot. 0 means the slot is unbound. */
	BoneIndex [MaxBoneInfluences]uint8
	/** @brief Bone weight per slot. */
	BoneWeight [MaxBoneInfluences]float32
}

/** @brief The vertex layout matching SkinVertex. */
var SkinVertexLayout = renderer.NewVertexLayout(
	renderer.VertexAttribute{Name: "position", Type: renderer.AttributeFloat32, Components: 3},
	renderer.VertexAttribute{Name: "texcoord", Type: renderer.AttributeFloat32, Components: 2},
	renderer.VertexAttribute{Name: "tangent", Type: renderer.AttributeFloat32, Components: 3},
	renderer.VertexAttribute{Name: "bitangent", Type: renderer.AttributeFloat32, Components: 3},
	renderer.VertexAttribute{Name: "normal", Type: renderer.AttributeFloat32, Components: 3},
	renderer.VertexAttribute{Name: "bone_index", Type: renderer.AttributeUint8, Components: MaxBoneInfluences},
	renderer.VertexAttribute{Name: "bone_weight", Type: renderer.AttributeFloat32, Components: MaxBoneInfluences},
)

/** @brief A triangle as three indices into the submesh vertices. */
type Face [3]uint32

/**
 * @brief One drawable part of a mesh asset, produced from one imported mesh.
 */
type SubMesh struct {
	Name string
	/** @brief The name of the node the mesh hangs off, empty if none was found. */
	NodeName string
	/** @brief The node transform, identity if no node was found. */
	Transform     math.Mat4
	Bounds        math.Extents3D
	MaterialIndex uint32
	Vertices      []SkinVertex
	/** @brief Triangle and line list for the GPU. */
	Indices []uint16
	/** @brief Triangles only, used for ray queries. */
	Faces []Face
}

// BoneTable maps bone names to dense indices in first-seen order, with the
// bind-pose offset matrix of each bone.
type BoneTable struct {
	index   map[string]uint32
	names   []string
	offsets []math.Mat4
}

func NewBoneTable() *BoneTable {
	return &BoneTable{index: map[string]uint32{}}
}

// Intern returns the index of name, adding it if unseen. The stored offset
// is always replaced by offset, so the last occurrence of a bone wins. It
// returns false when the table is full and name is new.
func (bt *BoneTable) Intern(name string, offset math.Mat4) (uint32, bool) {
	if idx, ok := bt.index[name]; ok {
		bt.offsets[idx] = offset
		return idx, true
	}
	if len(bt.names) >= MaxBones {
		core.LogWarn("bone table full (%d bones), bone '%s' is ignored.", MaxBones, name)
		return 0, false
	}
	idx := uint32(len(bt.names))
	bt.index[name] = idx
	bt.names = append(bt.names, name)
	bt.offsets = append(bt.offsets, offset)
	return idx, true
}

func (bt *BoneTable) Lookup(name string) (uint32, bool) {
	if bt == nil {
		return 0, false
	}
	idx, ok := bt.index[name]
	return idx, ok
}

func (bt *BoneTable) Len() int {
	if bt == nil {
		return 0
	}
	return len(bt.names)
}

func (bt *BoneTable) Name(idx uint32) string {
	return bt.names[idx]
}

func (bt *BoneTable) Offset(idx uint32) math.Mat4 {
	return bt.offsets[idx]
}

// Names returns the bone names in index order.
func (bt *BoneTable) Names() []string {
	if bt == nil {
		return nil
	}
	out := make([]string, len(bt.names))
	copy(out, bt.names)
	return out
}
