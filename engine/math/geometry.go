package math

// GeometryGenerateTangents computes a per-vertex tangent and bitangent from
// positions and texture coordinates, accumulating over every triangle the
// vertex belongs to. Triangles with a degenerate UV mapping are skipped.
func GeometryGenerateTangents(positions []Vec3, uvs []Vec2, indices []uint32) ([]Vec3, []Vec3) {
	tangents := make([]Vec3, len(positions))
	bitangents := make([]Vec3, len(positions))
	if len(uvs) < len(positions) {
		return tangents, bitangents
	}

	for i := 0; i+2 < len(indices); i += 3 {
		i0 := indices[i+0]
		i1 := indices[i+1]
		i2 := indices[i+2]
		if int(i0) >= len(positions) || int(i1) >= len(positions) || int(i2) >= len(positions) {
			continue
		}

		edge1 := positions[i1].Sub(positions[i0])
		edge2 := positions[i2].Sub(positions[i0])

		deltaU1 := uvs[i1].X - uvs[i0].X
		deltaV1 := uvs[i1].Y - uvs[i0].Y

		deltaU2 := uvs[i2].X - uvs[i0].X
		deltaV2 := uvs[i2].Y - uvs[i0].Y

		dividend := (deltaU1*deltaV2 - deltaU2*deltaV1)
		if kabs(dividend) < K_FLOAT_EPSILON {
			continue
		}
		fc := 1.0 / dividend

		tangent := Vec3{
			(fc * (deltaV2*edge1.X - deltaV1*edge2.X)),
			(fc * (deltaV2*edge1.Y - deltaV1*edge2.Y)),
			(fc * (deltaV2*edge1.Z - deltaV1*edge2.Z))}

		bitangent := Vec3{
			(fc * (deltaU1*edge2.X - deltaU2*edge1.X)),
			(fc * (deltaU1*edge2.Y - deltaU2*edge1.Y)),
			(fc * (deltaU1*edge2.Z - deltaU2*edge1.Z))}

		for _, idx := range [3]uint32{i0, i1, i2} {
			tangents[idx] = tangents[idx].Add(tangent)
			bitangents[idx] = bitangents[idx].Add(bitangent)
		}
	}

	for i := range tangents {
		tangents[i] = tangents[i].Normalized()
		bitangents[i] = bitangents[i].Normalized()
	}
	return tangents, bitangents
}

/**
 * @brief Non-culling Moller-Trumbore ray/triangle test.
 *
 * @param v1 The first triangle corner.
 * @param v2 The second triangle corner.
 * @param v3 The third triangle corner.
 * @param origin The ray origin.
 * @param direction The ray direction. Not required to be normalized; the
 * returned distance is expressed in multiples of it.
 * @return The parametric distance along direction and true on a hit.
 */
func RayTriangleIntersect(v1, v2, v3, origin, direction Vec3) (float32, bool) {
	e1 := v2.Sub(v1)
	e2 := v3.Sub(v1)

	p := direction.Cross(e2)
	det := e1.Dot(p)
	// Ray parallel to the triangle plane.
	if det > -K_FLOAT_EPSILON && det < K_FLOAT_EPSILON {
		return 0, false
	}
	invDet := 1.0 / det

	t := origin.Sub(v1)
	u := t.Dot(p) * invDet
	if u < 0.0 || u > 1.0 {
		return 0, false
	}

	q := t.Cross(e1)
	v := direction.Dot(q) * invDet
	if v < 0.0 || u+v > 1.0 {
		return 0, false
	}

	dist := e2.Dot(q) * invDet
	if dist > K_FLOAT_EPSILON {
		return dist, true
	}
	return 0, false
}

/**
 * @brief Returns an extents that starts at zero on every axis, matching how
 * mesh bounds are seeded before any vertex is seen.
 */
func NewExtents3DZero() Extents3D {
	return Extents3D{}
}

/**
 * @brief Grows the extents so they include point. Never shrinks.
 */
func (e Extents3D) Grow(point Vec3) Extents3D {
	e.Min = Vec3{Min(e.Min.X, point.X), Min(e.Min.Y, point.Y), Min(e.Min.Z, point.Z)}
	e.Max = Vec3{Max(e.Max.X, point.X), Max(e.Max.Y, point.Y), Max(e.Max.Z, point.Z)}
	return e
}

/**
 * @brief Returns the smallest extents containing both e and other.
 */
func (e Extents3D) Union(other Extents3D) Extents3D {
	return e.Grow(other.Min).Grow(other.Max)
}

/**
 * @brief Returns the center point of the extents.
 */
func (e Extents3D) Center() Vec3 {
	return e.Min.Add(e.Max).MulScalar(0.5)
}

/**
 * @brief Returns the size of the extents on each axis.
 */
func (e Extents3D) Size() Vec3 {
	return e.Max.Sub(e.Min)
}
