// Package placement converts a detected hand into a world-space anchor.
package placement

import (
	"errors"

	"github.com/ayusman/handcard/internal/detector"
	"github.com/ayusman/handcard/internal/spatial"
)

// Default placement settings.
const (
	DefaultLandmarkFloor    = 0.3
	DefaultFallbackDistance = 0.5
)

var (
	// ErrNoLandmarks is returned when no landmark clears the confidence floor.
	ErrNoLandmarks = errors.New("no landmarks above confidence floor")
	// ErrNoSurfaces is returned when the frame carries no spatial query capability.
	ErrNoSurfaces = errors.New("frame has no surface estimate")
	// ErrUnresolvable is returned when neither a surface hit nor a ray exists.
	ErrUnresolvable = errors.New("no surface hit and no castable ray")
)

// Path records which strategy produced a placement.
type Path string

const (
	// PathSurface means the anchor sits on a detected real-world surface.
	PathSurface Path = "surface"
	// PathRay means the anchor floats a fixed distance along the camera ray.
	PathRay Path = "ray"
)

// Placement is a resolved anchor.
type Placement struct {
	Transform  spatial.Transform
	Path       Path
	QueryPoint spatial.Point2
}

// Resolver finds where to anchor an annotation for a hand observation.
type Resolver struct {
	// LandmarkFloor excludes points at or below this confidence from the bounding box.
	LandmarkFloor float64
	// FallbackDistance is how far along the camera ray to place the anchor when no surface is hit.
	FallbackDistance float64
}

// NewResolver returns a Resolver with the given settings.
func NewResolver(landmarkFloor, fallbackDistance float64) *Resolver {
	return &Resolver{
		LandmarkFloor:    landmarkFloor,
		FallbackDistance: fallbackDistance,
	}
}

// QueryPoint returns the center of the observation's confident landmarks,
// flipped from the detector's bottom-up space into the top-down space used
// by surface queries.
func (r *Resolver) QueryPoint(obs *detector.PoseObservation) (spatial.Point2, error) {
	box, ok := obs.BoundingBox(r.LandmarkFloor)
	if !ok {
		return spatial.Point2{}, ErrNoLandmarks
	}

	cx, cy := box.Center()
	return spatial.Point2{X: cx, Y: 1 - cy}, nil
}

// Resolve prefers a real surface hit and falls back to a point along the
// camera ray. The fallback has no orientation; billboarding is left to the renderer.
func (r *Resolver) Resolve(obs *detector.PoseObservation, surfaces spatial.SurfaceQuery) (Placement, error) {
	point, err := r.QueryPoint(obs)
	if err != nil {
		return Placement{}, err
	}
	if surfaces == nil {
		return Placement{}, ErrNoSurfaces
	}

	if t, ok := surfaces.HitTest(point); ok {
		return Placement{Transform: t, Path: PathSurface, QueryPoint: point}, nil
	}

	ray, ok := surfaces.CastRay(point)
	if !ok {
		return Placement{}, ErrUnresolvable
	}

	return Placement{
		Transform:  spatial.Translation(ray.At(r.FallbackDistance)),
		Path:       PathRay,
		QueryPoint: point,
	}, nil
}
