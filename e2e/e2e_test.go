package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/handcard/internal/annotation"
	"github.com/ayusman/handcard/internal/app"
	"github.com/ayusman/handcard/internal/capture"
	"github.com/ayusman/handcard/internal/detector"
	"github.com/ayusman/handcard/internal/dwell"
	"github.com/ayusman/handcard/internal/enrich"
	"github.com/ayusman/handcard/internal/placement"
	"github.com/ayusman/handcard/internal/server"
	"github.com/ayusman/handcard/internal/spatial"
	"github.com/ayusman/handcard/internal/store"
)

const modelAnswer = "A ripe banana.\n```json\n{\"safety\": 95, \"nutrition\": 80, \"allergen_risk\": 5, \"freshness\": 70}\n```"

// fakeGemini answers every generateContent call with modelAnswer.
func fakeGemini(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": modelAnswer}}}},
			},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

type stack struct {
	api       *httptest.Server
	history   *store.AnnotationRepository
	clears    *annotation.ClearCounter
	detector  *detector.MockDetector
	gemini    *atomic.Int32
	coord     *app.Coordinator
	cancelRun context.CancelFunc
}

func newStack(t *testing.T) *stack {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	st := &stack{
		history:  s.Annotations(),
		clears:   annotation.NewClearCounter(),
		detector: detector.NewMockDetector(),
		gemini:   &atomic.Int32{},
	}

	gemini := enrich.NewGeminiClient("test-key", "test-model")
	gemini.BaseURL = fakeGemini(t, st.gemini).URL

	st.coord = app.New(app.Config{
		Detector: st.detector,
		Manager:  annotation.NewManager(st.clears.Value()),
		Enricher: enrich.NewRequester(gemini, nil, 5*time.Second, nil),
		Dwell:    dwell.Config{ConfidenceThreshold: dwell.DefaultConfidenceThreshold, Dwell: 200 * time.Millisecond},
		Resolver: placement.NewResolver(placement.DefaultLandmarkFloor, placement.DefaultFallbackDistance),
		History:  st.history,
		Enabled:  true,
	})
	st.clears.OnChange(st.coord.SetClearSignal)

	frames := make([]*gocv.Mat, 4)
	for i := range frames {
		m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
		frames[i] = &m
		t.Cleanup(func() { m.Close() })
	}
	motion := capture.NewMotionDetector(capture.DefaultMotionThreshold)
	t.Cleanup(motion.Close)

	floor := spatial.Plane{Point: spatial.Vec3{Y: -0.4}, Normal: spatial.Vec3{Y: 1}}
	preview := capture.NewPreview()
	feed := capture.NewFeed(
		capture.NewMockCamera(frames, true),
		motion,
		st.coord,
		spatial.NewPinholeCamera(60, 4.0/3.0, floor),
		capture.FeedConfig{IdleFPS: 30, ActiveFPS: 30},
		nil,
	)
	feed.SetPreview(preview)

	srv := server.New(server.Config{
		Pipeline:     st.coord,
		Clear:        st.clears,
		History:      st.history,
		Preview:      preview,
		PushInterval: 10 * time.Millisecond,
	})
	st.api = httptest.NewServer(srv)
	t.Cleanup(st.api.Close)

	ctx, cancel := context.WithCancel(context.Background())
	st.cancelRun = cancel
	done := make(chan struct{}, 3)
	go func() { st.coord.Run(ctx); done <- struct{}{} }()
	go func() { feed.Run(ctx); done <- struct{}{} }()
	go func() { srv.Hub().Run(ctx); done <- struct{}{} }()
	t.Cleanup(func() {
		cancel()
		for range 3 {
			<-done
		}
	})

	return st
}

func (st *stack) getJSON(t *testing.T, path string, v any) int {
	t.Helper()
	resp, err := st.api.Client().Get(st.api.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()
	if v != nil {
		json.NewDecoder(resp.Body).Decode(v)
	}
	return resp.StatusCode
}

func (st *stack) send(t *testing.T, method, path, body string) int {
	t.Helper()
	req, _ := http.NewRequest(method, st.api.URL+path, bytes.NewBufferString(body))
	resp, err := st.api.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func (st *stack) snapshot(t *testing.T) app.Snapshot {
	t.Helper()
	var s app.Snapshot
	if code := st.getJSON(t, "/api/annotation", &s); code != http.StatusOK {
		t.Fatalf("GET /api/annotation status = %d", code)
	}
	return s
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := newStack(t)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(st.api.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer ws.Close()

	var cardID string

	t.Run("NoCardWithoutHand", func(t *testing.T) {
		time.Sleep(400 * time.Millisecond)
		if s := st.snapshot(t); s.Annotation != nil || s.InProgress {
			t.Fatalf("unexpected state without a hand: %+v", s)
		}
		if st.gemini.Load() != 0 {
			t.Fatal("enrichment called without a trigger")
		}
	})

	t.Run("DwellPlacesAndEnriches", func(t *testing.T) {
		palm := detector.BoxObservation(0.5, 0.4, 0.1, 0.1, 0.95)
		st.detector.SetObservation(&palm)

		rendered := func() bool {
			s := st.snapshot(t)
			return s.Annotation != nil && s.Annotation.Content.Kind == annotation.KindRendered
		}
		eventually(t, "rendered card", rendered)

		// Drop the hand and let any trigger already under way settle.
		st.detector.SetObservation(nil)
		time.Sleep(300 * time.Millisecond)
		eventually(t, "settled card", rendered)

		s := st.snapshot(t)
		cardID = s.Annotation.ID
		c := s.Annotation.Content
		if c.Text != "A ripe banana." {
			t.Errorf("text = %q, want A ripe banana.", c.Text)
		}
		if c.Scores == nil || c.Scores.Safety != 95 {
			t.Errorf("scores = %+v, want safety 95", c.Scores)
		}
		if s.Annotation.Path != placement.PathSurface && s.Annotation.Path != placement.PathRay {
			t.Errorf("path = %q", s.Annotation.Path)
		}
	})

	t.Run("WebsocketReceivesCard", func(t *testing.T) {
		ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var s app.Snapshot
			if err := ws.ReadJSON(&s); err != nil {
				t.Fatalf("read websocket: %v", err)
			}
			if s.Annotation != nil && s.Annotation.Content.Kind == annotation.KindRendered {
				break
			}
		}
	})

	t.Run("HistoryRecordsCard", func(t *testing.T) {
		eventually(t, "history update", func() bool {
			var rec store.Record
			return st.getJSON(t, "/api/annotations/"+cardID, &rec) == http.StatusOK &&
				rec.Content.Kind == annotation.KindRendered
		})

		var listed struct {
			Annotations []store.Record `json:"annotations"`
		}
		st.getJSON(t, "/api/annotations", &listed)
		if len(listed.Annotations) == 0 || !listed.Annotations[0].Anchored {
			t.Errorf("expected an anchored record first, got %+v", listed.Annotations)
		}
	})

	t.Run("DisableStopsTriggers", func(t *testing.T) {
		if code := st.send(t, http.MethodPut, "/api/enabled", `{"enabled":false}`); code != http.StatusOK {
			t.Fatalf("PUT /api/enabled status = %d", code)
		}
		calls := st.gemini.Load()

		palm := detector.BoxObservation(0.5, 0.4, 0.1, 0.1, 0.95)
		st.detector.SetObservation(&palm)
		time.Sleep(500 * time.Millisecond)
		st.detector.SetObservation(nil)

		if got := st.gemini.Load(); got != calls {
			t.Errorf("enrichment calls went from %d to %d while disabled", calls, got)
		}
	})

	t.Run("ClearRemovesCard", func(t *testing.T) {
		if code := st.send(t, http.MethodPost, "/api/annotation/clear", ""); code != http.StatusAccepted {
			t.Fatalf("POST clear status = %d", code)
		}
		eventually(t, "card removal", func() bool { return st.snapshot(t).Annotation == nil })

		if s := st.snapshot(t); s.ClearSignal != 1 {
			t.Errorf("clear_signal = %d, want 1", s.ClearSignal)
		}
		eventually(t, "cleared history", func() bool {
			var rec store.Record
			st.getJSON(t, "/api/annotations/"+cardID, &rec)
			return rec.ClearedAt != nil
		})
	})

	t.Run("HealthReportsStats", func(t *testing.T) {
		var health struct {
			Status string    `json:"status"`
			Stats  app.Stats `json:"stats"`
		}
		st.getJSON(t, "/api/health", &health)
		if health.Status != "ok" {
			t.Errorf("status = %q", health.Status)
		}
		if health.Stats.Triggers < 1 || health.Stats.Clears != 1 {
			t.Errorf("stats = %+v", health.Stats)
		}
	})
}
