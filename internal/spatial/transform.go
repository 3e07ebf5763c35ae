package spatial

// Transform is a 4x4 affine matrix stored in column-major order,
// matching the layout used by AR frameworks. Columns 0-2 hold the
// rotation basis and column 3 holds the translation.
type Transform [16]float64

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a transform that moves the origin to p with no rotation.
func Translation(p Vec3) Transform {
	t := Identity()
	t[12], t[13], t[14] = p.X, p.Y, p.Z
	return t
}

// FromBasis builds a transform from orthonormal axes and a position.
func FromBasis(x, y, z, pos Vec3) Transform {
	return Transform{
		x.X, x.Y, x.Z, 0,
		y.X, y.Y, y.Z, 0,
		z.X, z.Y, z.Z, 0,
		pos.X, pos.Y, pos.Z, 1,
	}
}

// Position returns the translation component.
func (t Transform) Position() Vec3 {
	return Vec3{t[12], t[13], t[14]}
}

// Column returns column i (0-3) as a vector, ignoring the w component.
func (t Transform) Column(i int) Vec3 {
	return Vec3{t[i*4], t[i*4+1], t[i*4+2]}
}

// Rotate applies only the rotation part of t to direction d.
func (t Transform) Rotate(d Vec3) Vec3 {
	return t.Column(0).Scale(d.X).Add(t.Column(1).Scale(d.Y)).Add(t.Column(2).Scale(d.Z))
}

// Apply transforms point p by t.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.Rotate(p).Add(t.Position())
}
