package spatial

import "math"

// PinholeCamera answers surface queries for a fixed camera using a simple
// pinhole projection and a set of estimated planes. It stands in for the
// plane estimation an AR runtime would attach to each frame.
type PinholeCamera struct {
	// Pose maps camera space to world space. The camera looks down -Z with +Y up.
	Pose Transform
	// VerticalFOV is the vertical field of view in radians.
	VerticalFOV float64
	// Aspect is image width divided by image height.
	Aspect float64
	// Planes are the surfaces currently known to exist in the scene.
	Planes []Plane
}

// NewPinholeCamera returns a camera at the world origin.
func NewPinholeCamera(verticalFOVDeg, aspect float64, planes ...Plane) *PinholeCamera {
	return &PinholeCamera{
		Pose:        Identity(),
		VerticalFOV: verticalFOVDeg * math.Pi / 180,
		Aspect:      aspect,
		Planes:      planes,
	}
}

// CastRay unprojects p through the camera.
func (c *PinholeCamera) CastRay(p Point2) (Ray, bool) {
	if c == nil || !p.InUnitSquare() || c.VerticalFOV <= 0 || c.Aspect <= 0 {
		return Ray{}, false
	}

	tanHalf := math.Tan(c.VerticalFOV / 2)
	ndcX := 2*p.X - 1
	ndcY := 1 - 2*p.Y

	dir := Vec3{X: ndcX * tanHalf * c.Aspect, Y: ndcY * tanHalf, Z: -1}
	return Ray{
		Origin:    c.Pose.Position(),
		Direction: c.Pose.Rotate(dir).Normalize(),
	}, true
}

// HitTest intersects the ray through p with the nearest known plane.
// The returned transform has its Y axis along the plane normal.
func (c *PinholeCamera) HitTest(p Point2) (Transform, bool) {
	ray, ok := c.CastRay(p)
	if !ok {
		return Transform{}, false
	}

	best := math.Inf(1)
	var hit Plane
	for _, pl := range c.Planes {
		if d, ok := pl.Intersect(ray); ok && d < best {
			best = d
			hit = pl
		}
	}
	if math.IsInf(best, 1) {
		return Transform{}, false
	}

	return surfaceTransform(ray.At(best), hit.Normal), true
}

func surfaceTransform(pos, normal Vec3) Transform {
	y := normal.Normalize()
	ref := Vec3{Z: 1}
	if math.Abs(y.Dot(ref)) > 0.99 {
		ref = Vec3{X: 1}
	}
	z := ref.Sub(y.Scale(ref.Dot(y))).Normalize()
	x := y.Cross(z)
	return FromBasis(x, y, z, pos)
}
