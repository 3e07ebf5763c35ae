package app

import "sync/atomic"

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	FramesProcessed   int64 `json:"frames_processed"`
	FramesDropped     int64 `json:"frames_dropped"`
	DetectionErrors   int64 `json:"detection_errors"`
	Triggers          int64 `json:"triggers"`
	SuppressedFrames  int64 `json:"suppressed_frames"`
	Placements        int64 `json:"placements"`
	PlacementFailures int64 `json:"placement_failures"`
	Enrichments       int64 `json:"enrichments"`
	StaleResults      int64 `json:"stale_results"`
	Clears            int64 `json:"clears"`
	HistoryErrors     int64 `json:"history_errors"`
}

type counters struct {
	framesProcessed   atomic.Int64
	framesDropped     atomic.Int64
	detectionErrors   atomic.Int64
	triggers          atomic.Int64
	suppressedFrames  atomic.Int64
	placements        atomic.Int64
	placementFailures atomic.Int64
	enrichments       atomic.Int64
	staleResults      atomic.Int64
	clears            atomic.Int64
	historyErrors     atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesProcessed:   c.framesProcessed.Load(),
		FramesDropped:     c.framesDropped.Load(),
		DetectionErrors:   c.detectionErrors.Load(),
		Triggers:          c.triggers.Load(),
		SuppressedFrames:  c.suppressedFrames.Load(),
		Placements:        c.placements.Load(),
		PlacementFailures: c.placementFailures.Load(),
		Enrichments:       c.enrichments.Load(),
		StaleResults:      c.staleResults.Load(),
		Clears:            c.clears.Load(),
		HistoryErrors:     c.historyErrors.Load(),
	}
}
