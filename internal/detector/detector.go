package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand pose detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the most confident hand.
	// Returns nil without an error if no hand is found.
	Detect(frame *gocv.Mat) (*PoseObservation, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// ScriptPath overrides the location of mediapipe_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the service.
	PythonPath string

	// IdleTimeout stops the service after this long without a request (default: 30s).
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 30 * time.Second,
	}
}
