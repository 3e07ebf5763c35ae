// Package enrich asks a vision-language model what the user is holding and
// turns the answer into annotation content.
package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handcard/internal/annotation"
)

// NoTextMessage is shown when the model answers without any text.
const NoTextMessage = "No response text found."

var (
	// ErrNoText is returned by a Generator whose response carried no text.
	ErrNoText = errors.New("no response text")
	// ErrNoImage is returned when there is no captured frame to send.
	ErrNoImage = errors.New("no captured frame")
)

// Generator is the remote vision-language collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string, jpeg []byte) (string, error)
}

// Gate is the single in-flight flag for enrichment requests.
type Gate struct {
	inProgress atomic.Bool
}

// TryAcquire marks a request as in flight. It returns false if one already is.
func (g *Gate) TryAcquire() bool {
	return g.inProgress.CompareAndSwap(false, true)
}

// Release clears the in-flight flag.
func (g *Gate) Release() {
	g.inProgress.Store(false)
}

// InProgress reports whether a request is in flight.
func (g *Gate) InProgress() bool {
	return g.inProgress.Load()
}

// Requester performs one enrichment: cache lookup, generation, parsing.
type Requester struct {
	generator Generator
	cache     Cache
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRequester creates a Requester. cache and logger may be nil.
func NewRequester(g Generator, cache Cache, timeout time.Duration, logger *zap.Logger) *Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requester{
		generator: g,
		cache:     cache,
		timeout:   timeout,
		logger:    logger,
	}
}

// Request asks about the object in the user's hand. It never returns an
// error: failures are folded into Failed content so the card shows them.
func (r *Requester) Request(ctx context.Context, jpeg []byte, profile Profile) annotation.Content {
	if len(jpeg) == 0 {
		return annotation.Failed(ErrNoImage.Error())
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(profile)
	key := CacheKey(prompt, jpeg)

	if r.cache != nil {
		if c, ok, err := r.cache.Get(ctx, key); err != nil {
			r.logger.Warn("enrichment cache lookup failed", zap.Error(err))
		} else if ok {
			r.logger.Debug("enrichment cache hit", zap.String("key", key))
			return c
		}
	}

	start := time.Now()
	text, err := r.generator.Generate(ctx, prompt, jpeg)
	if errors.Is(err, ErrNoText) {
		return annotation.Rendered(NoTextMessage, nil)
	}
	if err != nil {
		r.logger.Error("enrichment request failed",
			zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return annotation.Failed(err.Error())
	}

	content := ParseResponse(text)
	r.logger.Info("enrichment complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("structured", content.Scores != nil))

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, content); err != nil {
			r.logger.Warn("enrichment cache store failed", zap.Error(err))
		}
	}

	return content
}

