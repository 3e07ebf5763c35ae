// Package dwell turns a stream of per-frame hand observations into a single
// trigger once a hand has been held up continuously for long enough.
package dwell

import (
	"time"

	"github.com/ayusman/handcard/internal/detector"
)

// Default gate settings.
const (
	DefaultConfidenceThreshold = 0.8
	DefaultDwell               = 2 * time.Second
)

// Config holds the debounce thresholds.
type Config struct {
	// ConfidenceThreshold is the minimum observation confidence that counts as a hand.
	ConfidenceThreshold float64
	// Dwell is how long qualifying frames must continue before a trigger fires.
	Dwell time.Duration
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Dwell:               DefaultDwell,
	}
}

// Debouncer is a two-state gate: idle, or sustaining since a start time.
// It is not safe for concurrent use; callers must serialize Observe.
type Debouncer struct {
	config         Config
	sustainedSince time.Time
	sustaining     bool
}

// New creates a Debouncer in the idle state.
func New(config Config) *Debouncer {
	return &Debouncer{config: config}
}

// Qualifies reports whether obs passes the confidence threshold.
func (d *Debouncer) Qualifies(obs *detector.PoseObservation) bool {
	return obs != nil && obs.Confidence >= d.config.ConfidenceThreshold
}

// Observe feeds one frame's observation captured at time at.
// It returns true exactly once per completed dwell period.
//
// suppressed is true while an enrichment request is in flight; a suppressed
// frame never triggers and always leaves the gate idle.
func (d *Debouncer) Observe(obs *detector.PoseObservation, at time.Time, suppressed bool) bool {
	if suppressed || !d.Qualifies(obs) {
		d.Reset()
		return false
	}

	if !d.sustaining {
		d.sustainedSince = at
		d.sustaining = true
	}

	if at.Sub(d.sustainedSince) < d.config.Dwell {
		return false
	}

	d.Reset()
	return true
}

// State returns the start of the current dwell period, if sustaining.
func (d *Debouncer) State() (time.Time, bool) {
	return d.sustainedSince, d.sustaining
}

// Reset returns the gate to idle.
func (d *Debouncer) Reset() {
	d.sustainedSince = time.Time{}
	d.sustaining = false
}
