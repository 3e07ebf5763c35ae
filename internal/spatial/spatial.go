// Package spatial provides the small amount of 3D math needed to anchor
// annotations in world space.
package spatial

import "math"

// Vec3 is a point or direction in world units (meters).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the Euclidean length of v.
func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l < 1e-12 {
		return v
	}
	return v.Scale(1 / l)
}

// Point2 is a normalized image-space point in [0,1] x [0,1].
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InUnitSquare reports whether p lies inside the normalized image.
func (p Point2) InUnitSquare() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// Ray is a half-line starting at Origin. Direction is expected to be unit length.
type Ray struct {
	Origin    Vec3 `json:"origin"`
	Direction Vec3 `json:"direction"`
}

// At returns the point at distance d along the ray.
func (r Ray) At(d float64) Vec3 {
	return r.Origin.Add(r.Direction.Scale(d))
}

// Plane is an estimated real-world surface.
type Plane struct {
	Point  Vec3 `json:"point"`
	Normal Vec3 `json:"normal"`
}

// Intersect returns the distance along r at which it meets the plane.
// The second result is false for parallel rays and hits behind the origin.
func (p Plane) Intersect(r Ray) (float64, bool) {
	n := p.Normal.Normalize()
	denom := n.Dot(r.Direction)
	if math.Abs(denom) < 1e-9 {
		return 0, false
	}
	t := p.Point.Sub(r.Origin).Dot(n) / denom
	if t <= 0 {
		return 0, false
	}
	return t, true
}

// SurfaceQuery answers spatial queries for a single captured frame.
// Points are normalized with a top-left origin.
type SurfaceQuery interface {
	// HitTest returns the world transform of the real surface under p, if any.
	HitTest(p Point2) (Transform, bool)

	// CastRay returns the world-space ray from the camera through p, if one exists.
	CastRay(p Point2) (Ray, bool)
}
