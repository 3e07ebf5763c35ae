// Package detector provides hand pose detection interfaces and types.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// LandmarkNames maps landmark indices to stable names.
var LandmarkNames = [NumLandmarks]string{
	"wrist",
	"thumb_cmc", "thumb_mcp", "thumb_ip", "thumb_tip",
	"index_mcp", "index_pip", "index_dip", "index_tip",
	"middle_mcp", "middle_pip", "middle_dip", "middle_tip",
	"ring_mcp", "ring_pip", "ring_dip", "ring_tip",
	"pinky_mcp", "pinky_pip", "pinky_dip", "pinky_tip",
}

// Landmark is a single detected hand point.
// X and Y are normalized to [0,1] with the origin at the bottom-left of the image.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// PoseObservation is one detected hand. It is not modified after detection.
type PoseObservation struct {
	Points     [NumLandmarks]Landmark `json:"points"`
	Handedness string                 `json:"handedness"` // "Left" or "Right"
	Confidence float64                `json:"confidence"`
}

// Named returns the landmarks keyed by name.
func (o *PoseObservation) Named() map[string]Landmark {
	if o == nil {
		return nil
	}
	named := make(map[string]Landmark, NumLandmarks)
	for i, p := range o.Points {
		named[LandmarkNames[i]] = p
	}
	return named
}

// Box is an axis-aligned bounding box in normalized image coordinates.
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Center returns the midpoint of the box.
func (b Box) Center() (float64, float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// BoundingBox computes the box around all points whose confidence is
// strictly greater than floor. It returns false when no point qualifies.
func (o *PoseObservation) BoundingBox(floor float64) (Box, bool) {
	if o == nil {
		return Box{}, false
	}

	var box Box
	found := false
	for _, p := range o.Points {
		if p.Confidence <= floor {
			continue
		}
		if !found {
			box = Box{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
			found = true
			continue
		}
		box.MinX = min(box.MinX, p.X)
		box.MinY = min(box.MinY, p.Y)
		box.MaxX = max(box.MaxX, p.X)
		box.MaxY = max(box.MaxY, p.Y)
	}

	return box, found
}
