// Package app coordinates the handcard pipeline: frames in, anchored cards out.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handcard/internal/annotation"
	"github.com/ayusman/handcard/internal/capture"
	"github.com/ayusman/handcard/internal/detector"
	"github.com/ayusman/handcard/internal/dwell"
	"github.com/ayusman/handcard/internal/enrich"
	"github.com/ayusman/handcard/internal/placement"
	"github.com/ayusman/handcard/internal/store"
)

// ErrAlreadyRunning is returned when Run is called on a running coordinator.
var ErrAlreadyRunning = errors.New("coordinator already running")

// Enricher answers what the user is holding.
type Enricher interface {
	Request(ctx context.Context, jpeg []byte, profile enrich.Profile) annotation.Content
}

// History records placed cards and their outcomes.
type History interface {
	Create(rec *store.Record) error
	UpdateContent(id string, c annotation.Content, at time.Time) error
	MarkCleared(id string, signal int, at time.Time) error
}

// EncodeFunc turns a frame into the JPEG snapshot sent for enrichment.
type EncodeFunc func(f capture.Frame) ([]byte, error)

// Config holds the coordinator's collaborators and settings.
type Config struct {
	Detector detector.Detector
	Manager  *annotation.Manager
	Enricher Enricher
	Dwell    dwell.Config
	Resolver *placement.Resolver
	Profile  enrich.Profile

	// History is optional.
	History History
	// Encode defaults to JPEG at capture.DefaultJPEGQuality.
	Encode  EncodeFunc
	Logger  *zap.Logger
	Enabled bool
}

// Coordinator owns the pipeline state. Frames arrive on any goroutine through
// Submit; all annotation mutation happens on the goroutine running Run.
type Coordinator struct {
	detector  detector.Detector
	manager   *annotation.Manager
	enricher  Enricher
	debouncer *dwell.Debouncer
	resolver  *placement.Resolver
	profile   enrich.Profile
	history   History
	encode    EncodeFunc
	logger    *zap.Logger
	now       func() time.Time

	processing   atomic.Bool
	gate         enrich.Gate
	enabled      atomic.Bool
	resetDwell   atomic.Bool
	running      atomic.Bool
	clearSignal  atomic.Int64
	clearPending chan struct{}
	events       chan any
	inflight     sync.WaitGroup

	stats counters
}

// New creates a coordinator. Detector, Manager and Enricher are required.
func New(config Config) *Coordinator {
	if config.Resolver == nil {
		config.Resolver = placement.NewResolver(placement.DefaultLandmarkFloor, placement.DefaultFallbackDistance)
	}
	if config.Dwell == (dwell.Config{}) {
		config.Dwell = dwell.DefaultConfig()
	}
	if config.Encode == nil {
		config.Encode = func(f capture.Frame) ([]byte, error) {
			return f.EncodeJPEG(capture.DefaultJPEGQuality)
		}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	c := &Coordinator{
		detector:     config.Detector,
		manager:      config.Manager,
		enricher:     config.Enricher,
		debouncer:    dwell.New(config.Dwell),
		resolver:     config.Resolver,
		profile:      config.Profile,
		history:      config.History,
		encode:       config.Encode,
		logger:       config.Logger,
		now:          time.Now,
		clearPending: make(chan struct{}, 1),
		events:       make(chan any, 4),
	}
	c.clearSignal.Store(int64(config.Manager.LastClearSignal()))
	c.enabled.Store(config.Enabled)
	return c
}

// SetEnabled turns frame analysis on or off. Capture keeps running either way.
// Re-enabling starts a fresh dwell.
func (c *Coordinator) SetEnabled(enabled bool) {
	if prev := c.enabled.Swap(enabled); prev != enabled {
		if enabled {
			c.resetDwell.Store(true)
		}
		c.logger.Info("analysis toggled", zap.Bool("enabled", enabled))
	}
}

// IsEnabled reports whether frames are analyzed.
func (c *Coordinator) IsEnabled() bool {
	return c.enabled.Load()
}

// SetClearSignal publishes the latest clear counter value. Values that do not
// exceed the last published value are ignored.
func (c *Coordinator) SetClearSignal(signal int) {
	for {
		cur := c.clearSignal.Load()
		if int64(signal) <= cur {
			return
		}
		if c.clearSignal.CompareAndSwap(cur, int64(signal)) {
			break
		}
	}
	select {
	case c.clearPending <- struct{}{}:
	default:
	}
}

// InProgress reports whether an enrichment request is in flight.
func (c *Coordinator) InProgress() bool {
	return c.gate.InProgress()
}

// Processing reports whether a frame is being analyzed.
func (c *Coordinator) Processing() bool {
	return c.processing.Load()
}

// Stats returns a copy of the pipeline counters.
func (c *Coordinator) Stats() Stats {
	return c.stats.snapshot()
}

// Snapshot is what the rendering layer needs to draw the current state.
type Snapshot struct {
	Annotation  *annotation.Annotation `json:"annotation"`
	InProgress  bool                   `json:"in_progress"`
	Enabled     bool                   `json:"enabled"`
	ClearSignal int                    `json:"clear_signal"`
	Version     uint64                 `json:"version"`
}

// Snapshot returns the current card and pipeline flags.
func (c *Coordinator) Snapshot() Snapshot {
	s := Snapshot{
		InProgress:  c.gate.InProgress(),
		Enabled:     c.enabled.Load(),
		ClearSignal: c.manager.LastClearSignal(),
		Version:     c.manager.Version(),
	}
	if a, ok := c.manager.Current(); ok {
		s.Annotation = &a
	}
	return s
}

// Manager returns the annotation manager.
func (c *Coordinator) Manager() *annotation.Manager {
	return c.manager
}
