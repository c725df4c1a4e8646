package importer

import "strings"

// Flags selects the post-process steps applied to an imported scene.
type Flags uint32

const (
	// Split every polygon with more than three corners into a triangle fan.
	FlagTriangulate Flags = 1 << iota
	// Reverse the corner order of every face.
	FlagFlipWindingOrder
	// Replace every texture coordinate v with 1 - v.
	FlagFlipUVs
	// Generate tangents and bitangents for meshes that carry normals and
	// texture coordinates but no tangent data.
	FlagCalcTangentSpace
	// Merge meshes that look identical. Never honoured: instanced meshes
	// would share one bone list and break per-mesh bone indexing.
	FlagFindInstances
)

// DefaultFlags is the flag set every mesh asset is imported with.
const DefaultFlags = FlagTriangulate | FlagFlipWindingOrder | FlagFlipUVs | FlagCalcTangentSpace

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagTriangulate, "triangulate"},
	{FlagFlipWindingOrder, "flip_winding_order"},
	{FlagFlipUVs, "flip_uvs"},
	{FlagCalcTangentSpace, "calc_tangent_space"},
	{FlagFindInstances, "find_instances"},
}

// Sanitize clears the flags the pipeline cannot work with.
func (f Flags) Sanitize() Flags {
	return f &^ FlagFindInstances
}

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}
