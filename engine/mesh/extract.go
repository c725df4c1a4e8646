package mesh

import (
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/scene"
)

// Extraction is everything the pipeline derives from an imported scene.
type Extraction struct {
	SubMeshes     []*SubMesh
	Bones         *BoneTable
	Bounds        math.Extents3D
	MaterialCount uint32
	Animated      bool
}

// Extract builds one submesh per scene mesh, in scene order, and binds
// their skins into a single bone table.
func Extract(s *scene.Scene) *Extraction {
	ex := &Extraction{
		Bones:    NewBoneTable(),
		Bounds:   math.NewExtents3DZero(),
		Animated: s.HasAnimations(),
	}
	if s == nil {
		return ex
	}
	ex.MaterialCount = uint32(len(s.Materials))

	for i, m := range s.Meshes {
		sub := ExtractSubMesh(s, uint32(i), m, ex.Bones)
		ex.SubMeshes = append(ex.SubMeshes, sub)
		ex.Bounds = ex.Bounds.Union(sub.Bounds)
	}
	return ex
}

// ExtractSubMesh converts one imported mesh. Missing channels are zero
// filled and the bounding box starts at the origin.
func ExtractSubMesh(s *scene.Scene, meshIndex uint32, m *scene.Mesh, bones *BoneTable) *SubMesh {
	sub := &SubMesh{
		Name:          m.Name,
		Transform:     math.NewMat4Identity(),
		Bounds:        math.NewExtents3DZero(),
		MaterialIndex: m.MaterialIndex,
		Vertices:      make([]SkinVertex, len(m.Vertices)),
	}

	// Only the root's direct children are searched.
	if s != nil && s.RootNode != nil {
		for _, child := range s.RootNode.Children {
			if child.HasMesh(meshIndex) {
				sub.Transform = child.Transform
				sub.NodeName = child.Name
				break
			}
		}
	}

	hasUV := m.HasTextureCoords()
	hasTangents := m.HasTangentsAndBitangents()
	hasNormals := m.HasNormals()

	for n, p := range m.Vertices {
		v := &sub.Vertices[n]
		v.Position = p
		sub.Bounds = sub.Bounds.Grow(p)

		if hasUV {
			v.UV = m.TextureCoords[n]
		}
		if hasTangents {
			v.Tangent = m.Tangents[n]
			v.Bitangent = m.Bitangents[n]
		}
		if hasNormals {
			v.Normal = m.Normals[n]
		}
	}

	if m.HasBones() {
		BindSkin(sub.Vertices, m.Bones, bones)
	}

	if len(sub.Vertices) > MaxIndexableVertices {
		core.LogWarn("mesh '%s' has %d vertices, faces past vertex %d are dropped.", m.Name, len(sub.Vertices), MaxIndexableVertices-1)
	}

	skipped := 0
	for _, f := range m.Faces {
		if !indexable(f.Indices) {
			skipped++
			continue
		}
		switch len(f.Indices) {
		case 2:
			sub.Indices = append(sub.Indices, uint16(f.Indices[0]), uint16(f.Indices[1]))
		case 3:
			sub.Indices = append(sub.Indices, uint16(f.Indices[0]), uint16(f.Indices[1]), uint16(f.Indices[2]))
			sub.Faces = append(sub.Faces, Face{f.Indices[0], f.Indices[1], f.Indices[2]})
		default:
			core.LogWarn("mesh '%s': face with %d indices skipped, only lines and triangles are supported.", m.Name, len(f.Indices))
		}
	}
	if skipped > 0 {
		core.LogWarn("mesh '%s': %d faces reference vertices outside the 16 bit index range.", m.Name, skipped)
	}

	return sub
}

func indexable(indices []uint32) bool {
	for _, i := range indices {
		if i >= MaxIndexableVertices {
			return false
		}
	}
	return true
}
