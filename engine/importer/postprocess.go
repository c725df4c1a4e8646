package importer

import (
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/scene"
)

// PostProcess applies the steps selected by flags to every mesh of s, in
// place. Tangents are generated before UVs and winding are flipped, so they
// describe the mapping as authored.
func PostProcess(s *scene.Scene, flags Flags) {
	flags = flags.Sanitize()
	for _, m := range s.Meshes {
		if flags.Has(FlagTriangulate) {
			triangulate(m)
		}
		if flags.Has(FlagCalcTangentSpace) {
			calcTangentSpace(m)
		}
		if flags.Has(FlagFlipUVs) {
			flipUVs(m)
		}
		if flags.Has(FlagFlipWindingOrder) {
			flipWindingOrder(m)
		}
	}
}

// triangulate turns every polygon with more than three corners into a
// triangle fan around its first corner. Points and lines are left alone.
func triangulate(m *scene.Mesh) {
	split := 0
	faces := make([]scene.Face, 0, len(m.Faces))
	for _, f := range m.Faces {
		if len(f.Indices) <= 3 {
			faces = append(faces, f)
			continue
		}
		split++
		for i := 1; i+1 < len(f.Indices); i++ {
			faces = append(faces, scene.Face{Indices: []uint32{f.Indices[0], f.Indices[i], f.Indices[i+1]}})
		}
	}
	if split > 0 {
		core.LogDebug("triangulate: mesh '%s' split %d polygons into %d faces.", m.Name, split, len(faces))
	}
	m.Faces = faces
}

func calcTangentSpace(m *scene.Mesh) {
	if m.HasTangentsAndBitangents() || !m.HasNormals() || !m.HasTextureCoords() {
		return
	}

	indices := make([]uint32, 0, len(m.Faces)*3)
	for _, f := range m.Faces {
		if len(f.Indices) == 3 {
			indices = append(indices, f.Indices...)
		}
	}
	m.Tangents, m.Bitangents = math.GeometryGenerateTangents(m.Vertices, m.TextureCoords, indices)
}

func flipUVs(m *scene.Mesh) {
	for i := range m.TextureCoords {
		m.TextureCoords[i].Y = 1.0 - m.TextureCoords[i].Y
	}
}

func flipWindingOrder(m *scene.Mesh) {
	for _, f := range m.Faces {
		for i, j := 0, len(f.Indices)-1; i < j; i, j = i+1, j-1 {
			f.Indices[i], f.Indices[j] = f.Indices[j], f.Indices[i]
		}
	}
}
