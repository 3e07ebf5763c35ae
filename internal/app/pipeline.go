package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handcard/internal/capture"
	"github.com/ayusman/handcard/internal/detector"
	"github.com/ayusman/handcard/internal/spatial"
)

// triggerEvent hands a completed dwell to the coordinator loop.
type triggerEvent struct {
	obs      detector.PoseObservation
	surfaces spatial.SurfaceQuery
	jpeg     []byte
	at       time.Time
}

// Submit offers a frame for analysis. At most one frame is analyzed at a
// time; a frame arriving while another is in flight is rejected, never
// queued. The coordinator takes ownership of accepted frames.
func (c *Coordinator) Submit(frame capture.Frame) bool {
	if !c.enabled.Load() {
		return false
	}
	if !c.processing.CompareAndSwap(false, true) {
		c.stats.framesDropped.Add(1)
		return false
	}

	go c.process(frame)
	return true
}

// process runs detection and the dwell debounce for one frame, handing a
// trigger to the loop. It releases the single-flight flag when done.
func (c *Coordinator) process(frame capture.Frame) {
	defer c.processing.Store(false)
	defer frame.Close()

	if c.resetDwell.Swap(false) {
		c.debouncer.Reset()
	}

	obs, err := c.detector.Detect(frame.Mat)
	c.stats.framesProcessed.Add(1)
	if err != nil {
		c.stats.detectionErrors.Add(1)
		c.logger.Debug("detection failed", zap.Error(err))
		c.debouncer.Reset()
		return
	}

	suppressed := c.gate.InProgress()
	if suppressed && c.debouncer.Qualifies(obs) {
		c.stats.suppressedFrames.Add(1)
	}

	if !c.debouncer.Observe(obs, frame.Timestamp, suppressed) {
		return
	}

	// The gate is taken here, before the hand-off, so later frames see it.
	if !c.gate.TryAcquire() {
		c.stats.suppressedFrames.Add(1)
		return
	}

	jpeg, err := c.encode(frame)
	if err != nil {
		c.logger.Warn("snapshot encode failed", zap.Error(err))
	}

	c.stats.triggers.Add(1)
	c.logger.Info("dwell complete",
		zap.Float64("confidence", obs.Confidence),
		zap.String("handedness", obs.Handedness))

	ev := triggerEvent{
		obs:      *obs,
		surfaces: frame.Surfaces,
		jpeg:     jpeg,
		at:       frame.Timestamp,
	}

	select {
	case c.events <- ev:
	default:
		// Loop not draining; release the gate instead of blocking.
		c.gate.Release()
		c.logger.Warn("trigger dropped, coordinator loop busy")
	}
}
