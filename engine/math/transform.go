package math

// NewTransform returns the rest pose: no translation, no rotation and unit
// scale.
func NewTransform() Transform {
	return Transform{
		Position: NewVec3Zero(),
		Rotation: NewQuatIdentity(),
		Scale:    NewVec3One(),
	}
}

// Matrix composes the transform as Translation * Rotation * Scale, so a
// point is scaled first and translated last.
func (t Transform) Matrix() Mat4 {
	return NewMat4Translation(t.Position).
		Mul(t.Rotation.ToMat4()).
		Mul(NewMat4Scale(t.Scale))
}
