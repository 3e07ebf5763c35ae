package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// motionBlurKernel smooths sensor noise before differencing.
	motionBlurKernel = 21
	// motionPixelDelta is the per-pixel intensity change that counts as motion.
	motionPixelDelta = 25
	// DefaultMotionThreshold is the percentage of changed pixels that counts as motion.
	DefaultMotionThreshold = 1.0
)

// MotionDetector compares each frame with the previous one.
// It only paces the capture rate; it never decides whether a frame is analyzed.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	baseline  gocv.Mat
	primed    bool
}

// NewMotionDetector creates a detector that reports motion when more than
// threshold percent of pixels change between frames.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Detect reports whether frame moved relative to the previous frame and the
// percentage of pixels that changed. The first frame only primes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(motionBlurKernel, motionBlurKernel), 0, 0, gocv.BorderDefault)

	if !m.primed {
		blurred.CopyTo(&m.baseline)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.baseline, &diff)
	gocv.Threshold(diff, &diff, motionPixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	blurred.CopyTo(&m.baseline)

	return changed > m.threshold, changed
}

// Threshold returns the configured change percentage.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold ignores non-positive values.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Primed reports whether a baseline frame has been seen.
func (m *MotionDetector) Primed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primed
}

// Reset drops the baseline so the next frame primes it again.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropBaseline()
}

// Close releases the baseline. The detector may still be used afterwards.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropBaseline()
}

func (m *MotionDetector) dropBaseline() {
	if !m.baseline.Empty() {
		m.baseline.Close()
		m.baseline = gocv.NewMat()
	}
	m.primed = false
}

// Activity switches between the idle and active capture rates.
// Motion switches to active immediately; idle resumes after a quiet period.
type Activity struct {
	IdleFPS   int
	ActiveFPS int
	IdleAfter time.Duration

	active     bool
	lastMotion time.Time
}

// NewActivity returns a tracker that starts idle.
func NewActivity(idleFPS, activeFPS int, idleAfter time.Duration) *Activity {
	return &Activity{IdleFPS: idleFPS, ActiveFPS: activeFPS, IdleAfter: idleAfter}
}

// Update records whether the frame at now moved and returns the frame rate to
// use next and whether it changed.
func (a *Activity) Update(moved bool, now time.Time) (fps int, changed bool) {
	switch {
	case moved:
		a.lastMotion = now
		if !a.active {
			a.active = true
			return a.ActiveFPS, true
		}
	case a.active && now.Sub(a.lastMotion) > a.IdleAfter:
		a.active = false
		return a.IdleFPS, true
	}
	return a.FPS(), false
}

// Active reports whether the tracker is in active mode.
func (a *Activity) Active() bool { return a.active }

// FPS returns the current frame rate.
func (a *Activity) FPS() int {
	if a.active {
		return a.ActiveFPS
	}
	return a.IdleFPS
}
