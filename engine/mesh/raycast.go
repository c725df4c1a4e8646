package mesh

import (
	"github.com/spaghettifunk/skinmesh/engine/math"
)

// Raycast tests the segment start-end against every triangle, submesh by
// submesh and face by face, and reports the first triangle hit. That is
// not necessarily the hit closest to start. Faces pointing at missing
// vertices are ignored.
func Raycast(subMeshes []*SubMesh, start, end math.Vec3) (bool, math.Vec3) {
	dir := end.Sub(start)

	for _, sm := range subMeshes {
		n := uint32(len(sm.Vertices))
		for _, f := range sm.Faces {
			if f[0] >= n || f[1] >= n || f[2] >= n {
				continue
			}
			t, ok := math.RayTriangleIntersect(
				sm.Vertices[f[0]].Position,
				sm.Vertices[f[1]].Position,
				sm.Vertices[f[2]].Position,
				start,
				dir)
			if ok {
				return true, start.Add(dir.MulScalar(t))
			}
		}
	}
	return false, math.NewVec3Zero()
}
