package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	obs   *PoseObservation
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetObservation sets the observation returned by Detect. Nil means no hand.
func (m *MockDetector) SetObservation(obs *PoseObservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = obs
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured observation or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*PoseObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.obs == nil {
		return nil, nil
	}
	obs := *m.obs
	return &obs, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// BoxObservation returns an observation whose confident points span a box
// centered on (cx, cy) with the given half extents. The remaining points sit
// at the center with zero confidence.
func BoxObservation(cx, cy, halfW, halfH, confidence float64) PoseObservation {
	obs := PoseObservation{
		Handedness: "Right",
		Confidence: confidence,
	}
	for i := range obs.Points {
		obs.Points[i] = Landmark{X: cx, Y: cy}
	}

	obs.Points[Wrist] = Landmark{X: cx - halfW, Y: cy - halfH, Confidence: 0.9}
	obs.Points[ThumbTip] = Landmark{X: cx + halfW, Y: cy - halfH, Confidence: 0.9}
	obs.Points[MiddleTip] = Landmark{X: cx + halfW, Y: cy + halfH, Confidence: 0.9}
	obs.Points[PinkyTip] = Landmark{X: cx - halfW, Y: cy + halfH, Confidence: 0.9}

	return obs
}

// OpenPalmObservation returns a preset observation of an open right palm
// held up to the camera. All fingers are extended.
func OpenPalmObservation() PoseObservation {
	obs := PoseObservation{
		Handedness: "Right",
		Confidence: 0.95,
	}

	// Coordinates are written top-down for readability and flipped below.
	topDown := [NumLandmarks][2]float64{
		Wrist: {0.5, 0.8},

		ThumbCMC: {0.55, 0.75},
		ThumbMCP: {0.62, 0.70},
		ThumbIP:  {0.68, 0.65},
		ThumbTip: {0.73, 0.60},

		IndexMCP: {0.55, 0.68},
		IndexPIP: {0.57, 0.55},
		IndexDIP: {0.58, 0.45},
		IndexTip: {0.58, 0.35},

		MiddleMCP: {0.50, 0.66},
		MiddlePIP: {0.50, 0.52},
		MiddleDIP: {0.50, 0.40},
		MiddleTip: {0.50, 0.28},

		RingMCP: {0.45, 0.68},
		RingPIP: {0.43, 0.55},
		RingDIP: {0.42, 0.45},
		RingTip: {0.42, 0.35},

		PinkyMCP: {0.40, 0.70},
		PinkyPIP: {0.37, 0.60},
		PinkyDIP: {0.35, 0.50},
		PinkyTip: {0.34, 0.42},
	}

	for i, p := range topDown {
		obs.Points[i] = Landmark{X: p[0], Y: 1 - p[1], Confidence: 0.9}
	}

	return obs
}
