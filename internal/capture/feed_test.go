package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handcard/internal/spatial"
)

type recordingSink struct {
	mu       sync.Mutex
	accept   bool
	accepted []Frame
	offered  int
}

func (s *recordingSink) Submit(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offered++
	if !s.accept {
		return false
	}
	s.accepted = append(s.accepted, f)
	return true
}

func (s *recordingSink) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.accepted {
		f.Close()
	}
}

func newBlackMockCamera(t *testing.T, n int, loop bool) *MockCamera {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
		frames[i] = &m
		t.Cleanup(func() { m.Close() })
	}
	return NewMockCamera(frames, loop)
}

func TestFeed_StepAttachesSurfaces(t *testing.T) {
	cam := newBlackMockCamera(t, 1, true)
	cam.Open()

	sink := &recordingSink{accept: true}
	defer sink.closeAll()

	surfaces := spatial.NewPinholeCamera(60, 4.0/3.0)
	feed := NewFeed(cam, nil, sink, surfaces, FeedConfig{}, nil)
	stamp := time.Date(2025, 9, 13, 12, 0, 0, 0, time.UTC)
	feed.now = func() time.Time { return stamp }

	if _, _, err := feed.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	if len(sink.accepted) != 1 {
		t.Fatalf("expected one accepted frame, got %d", len(sink.accepted))
	}
	got := sink.accepted[0]
	if got.Surfaces != spatial.SurfaceQuery(surfaces) {
		t.Error("frame should carry the feed's surfaces")
	}
	if !got.Timestamp.Equal(stamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, stamp)
	}
}

func TestFeed_StepOffersEveryFrame(t *testing.T) {
	cam := newBlackMockCamera(t, 1, true)
	cam.Open()

	sink := &recordingSink{accept: false}
	motion := NewMotionDetector(1.0)
	defer motion.Close()

	feed := NewFeed(cam, motion, sink, nil, FeedConfig{}, nil)

	// Static frames never move, yet every one is still offered for analysis.
	for i := 0; i < 4; i++ {
		fps, changed, err := feed.Step()
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if changed || fps != DefaultIdleFPS {
			t.Errorf("static scene: fps=%d changed=%v, want idle unchanged", fps, changed)
		}
	}
	if sink.offered != 4 {
		t.Errorf("offered = %d, want 4", sink.offered)
	}
}

func TestFeed_StepReadError(t *testing.T) {
	cam := newBlackMockCamera(t, 1, false)
	sink := &recordingSink{accept: true}
	feed := NewFeed(cam, nil, sink, nil, FeedConfig{}, nil)

	if _, _, err := feed.Step(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("Step() error = %v, want ErrCameraNotOpen", err)
	}
	if sink.offered != 0 {
		t.Error("nothing should be offered after a failed read")
	}
}

func TestFeed_StepPublishesPreview(t *testing.T) {
	cam := newBlackMockCamera(t, 1, true)
	cam.Open()

	sink := &recordingSink{accept: false}
	feed := NewFeed(cam, nil, sink, nil, FeedConfig{}, nil)
	preview := NewPreview()
	feed.SetPreview(preview)

	feed.Step()
	if _, seq, _ := preview.Latest(); seq != 0 {
		t.Fatal("preview should not encode without viewers")
	}

	stop := preview.Watch()
	defer stop()

	feed.Step()
	jpeg, seq, _ := preview.Latest()
	if seq != 1 || len(jpeg) == 0 {
		t.Errorf("expected one published frame, got seq=%d len=%d", seq, len(jpeg))
	}
}

func TestFeed_RunStopsAtEndOfPlayback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timed capture loop")
	}

	cam := newBlackMockCamera(t, 2, false)
	sink := &recordingSink{accept: true}
	defer sink.closeAll()

	feed := NewFeed(cam, nil, sink, nil, FeedConfig{IdleFPS: 50, ActiveFPS: 50}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := feed.Run(ctx); !errors.Is(err, ErrNoMoreFrames) {
		t.Errorf("Run() error = %v, want ErrNoMoreFrames", err)
	}
	if len(sink.accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(sink.accepted))
	}
	if cam.IsOpen() {
		t.Error("Run should close the camera")
	}
}

func TestFeed_RunStopsOnCancel(t *testing.T) {
	cam := newBlackMockCamera(t, 1, true)
	sink := &recordingSink{accept: false}
	feed := NewFeed(cam, nil, sink, nil, FeedConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := feed.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil on cancel", err)
	}
}
