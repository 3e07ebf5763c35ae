package capture

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handcard/internal/spatial"
)

// Sink accepts frames for analysis. Submit returns false when the frame was
// rejected; the feed then closes it.
type Sink interface {
	Submit(f Frame) bool
}

// FeedConfig paces the capture loop.
type FeedConfig struct {
	IdleFPS   int
	ActiveFPS int
	// IdleAfter is how long without motion before dropping back to IdleFPS.
	IdleAfter time.Duration
	// ErrorBackoff is the pause after a failed read.
	ErrorBackoff time.Duration
}

// DefaultFeedConfig returns the default pacing.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		IdleFPS:      DefaultIdleFPS,
		ActiveFPS:    DefaultActiveFPS,
		IdleAfter:    2 * time.Second,
		ErrorBackoff: 100 * time.Millisecond,
	}
}

// Feed reads frames from a camera and pushes them to a sink.
// Every frame is offered to the sink regardless of motion; motion only
// changes how often the camera is read.
type Feed struct {
	camera   Camera
	motion   *MotionDetector
	sink     Sink
	surfaces spatial.SurfaceQuery
	preview  *Preview
	activity *Activity
	config   FeedConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewFeed wires camera to sink. surfaces is attached to every frame and may be nil.
func NewFeed(camera Camera, motion *MotionDetector, sink Sink, surfaces spatial.SurfaceQuery, config FeedConfig, logger *zap.Logger) *Feed {
	def := DefaultFeedConfig()
	if config.IdleFPS <= 0 {
		config.IdleFPS = def.IdleFPS
	}
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = def.ActiveFPS
	}
	if config.IdleAfter <= 0 {
		config.IdleAfter = def.IdleAfter
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = def.ErrorBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Feed{
		camera:   camera,
		motion:   motion,
		sink:     sink,
		surfaces: surfaces,
		activity: NewActivity(config.IdleFPS, config.ActiveFPS, config.IdleAfter),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// SetPreview publishes encoded frames to p while it has viewers.
func (f *Feed) SetPreview(p *Preview) {
	f.preview = p
}

// Run opens the camera and reads until ctx is done. The camera is closed on return.
func (f *Feed) Run(ctx context.Context) error {
	if err := f.camera.Open(); err != nil {
		return err
	}
	defer func() {
		if err := f.camera.Close(); err != nil {
			f.logger.Warn("closing camera", zap.Error(err))
		}
	}()

	f.camera.SetFPS(f.activity.FPS())
	ticker := time.NewTicker(interval(f.activity.FPS()))
	defer ticker.Stop()

	f.logger.Info("capture started", zap.Int("fps", f.activity.FPS()))

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("capture stopped")
			return nil
		case <-ticker.C:
		}

		fps, changed, err := f.Step()
		if errors.Is(err, ErrNoMoreFrames) {
			return err
		}
		if err != nil {
			f.logger.Debug("frame read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(f.config.ErrorBackoff):
			}
			continue
		}
		if changed {
			f.camera.SetFPS(fps)
			ticker.Reset(interval(fps))
			f.logger.Debug("capture rate changed", zap.Int("fps", fps), zap.Bool("active", f.activity.Active()))
		}
	}
}

// Step reads one frame, updates the capture rate and offers the frame to the sink.
// It returns the frame rate to use next and whether it changed.
func (f *Feed) Step() (int, bool, error) {
	mat, err := f.camera.ReadFrame()
	if err != nil {
		return f.activity.FPS(), false, err
	}

	frame := Frame{Mat: mat, Timestamp: f.now(), Surfaces: f.surfaces}

	moved := false
	if f.motion != nil {
		moved, _ = f.motion.Detect(mat)
	}
	fps, changed := f.activity.Update(moved, frame.Timestamp)

	if f.preview != nil && f.preview.Watching() {
		if jpeg, err := frame.EncodeJPEG(DefaultJPEGQuality); err == nil {
			f.preview.Publish(jpeg)
		}
	}

	if !f.sink.Submit(frame) {
		frame.Close()
	}
	return fps, changed, nil
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultIdleFPS
	}
	return time.Second / time.Duration(fps)
}
