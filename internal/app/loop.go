package app

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/handcard/internal/annotation"
	"github.com/ayusman/handcard/internal/store"
)

// resultEvent carries an enrichment answer back to the loop. id is empty when
// the trigger could not be anchored.
type resultEvent struct {
	id      string
	content annotation.Content
}

// Run processes triggers, enrichment results and clear requests until ctx is
// done. It waits for in-flight enrichment requests before returning.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.logger.Info("coordinator started", zap.Bool("enabled", c.enabled.Load()))

	// A clear published before Run started still applies.
	c.applyClear()

	for {
		select {
		case <-ctx.Done():
			c.inflight.Wait()
			c.logger.Info("coordinator stopped")
			return nil

		case <-c.clearPending:
			c.applyClear()

		case ev := <-c.events:
			// Clears requested before this event take effect first.
			c.applyClear()

			switch ev := ev.(type) {
			case triggerEvent:
				c.handleTrigger(ctx, ev)
			case resultEvent:
				c.handleResult(ev)
			}
		}
	}
}

func (c *Coordinator) handleTrigger(ctx context.Context, ev triggerEvent) {
	var id string

	p, err := c.resolver.Resolve(&ev.obs, ev.surfaces)
	if err != nil {
		c.stats.placementFailures.Add(1)
		c.logger.Warn("placement failed, enriching without a card", zap.Error(err))
	} else {
		id = c.manager.Place(p)
		c.stats.placements.Add(1)
		c.logger.Info("annotation placed",
			zap.String("annotation_id", id),
			zap.String("path", string(p.Path)),
			zap.Float64("query_x", p.QueryPoint.X),
			zap.Float64("query_y", p.QueryPoint.Y))

		if a, ok := c.manager.Current(); ok {
			c.record(func(h History) error { return h.Create(store.RecordFromAnnotation(a)) })
		}
	}

	c.dispatch(ctx, id, ev.jpeg)
}

// dispatch runs the enrichment request off the loop. The gate, taken at
// trigger time, is released once the request resolves.
func (c *Coordinator) dispatch(ctx context.Context, id string, jpeg []byte) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		content := c.enricher.Request(ctx, jpeg, c.profile)
		c.gate.Release()
		c.stats.enrichments.Add(1)

		select {
		case c.events <- resultEvent{id: id, content: content}:
		case <-ctx.Done():
		}
	}()
}

func (c *Coordinator) handleResult(ev resultEvent) {
	if ev.id == "" {
		c.logger.Info("enrichment result without an anchor",
			zap.String("kind", string(ev.content.Kind)),
			zap.String("text", ev.content.Text))
		c.record(func(h History) error {
			return h.Create(&store.Record{
				ID:       uuid.New().String(),
				Anchored: false,
				Content:  ev.content,
			})
		})
		return
	}

	if !c.manager.UpdateContent(ev.id, ev.content) {
		c.stats.staleResults.Add(1)
		c.logger.Debug("discarding stale enrichment result", zap.String("annotation_id", ev.id))
		return
	}

	c.logger.Info("annotation updated",
		zap.String("annotation_id", ev.id),
		zap.String("kind", string(ev.content.Kind)))
	c.record(func(h History) error { return h.UpdateContent(ev.id, ev.content, c.now()) })
}

// applyClear removes the card when the published clear signal is newer than
// the last one processed.
func (c *Coordinator) applyClear() {
	signal := int(c.clearSignal.Load())

	var removed string
	if a, ok := c.manager.Current(); ok {
		removed = a.ID
	}
	if !c.manager.CheckClear(signal) {
		return
	}

	c.stats.clears.Add(1)
	c.logger.Info("annotation cleared", zap.Int("signal", signal), zap.String("annotation_id", removed))
	c.record(func(h History) error { return h.MarkCleared(removed, signal, c.now()) })
}

func (c *Coordinator) record(fn func(History) error) {
	if c.history == nil {
		return
	}
	if err := fn(c.history); err != nil {
		c.stats.historyErrors.Add(1)
		level := zap.WarnLevel
		if errors.Is(err, store.ErrNotFound) {
			level = zap.DebugLevel
		}
		c.logger.Check(level, "history write failed").Write(zap.Error(err))
	}
}
