package annotation

import (
	"sync"
	"testing"

	"github.com/ayusman/handcard/internal/placement"
	"github.com/ayusman/handcard/internal/spatial"
)

func surfacePlacement(x float64) placement.Placement {
	return placement.Placement{
		Transform: spatial.Translation(spatial.Vec3{X: x}),
		Path:      placement.PathSurface,
	}
}

func TestManager_Place(t *testing.T) {
	m := NewManager(0)

	if _, ok := m.Current(); ok {
		t.Fatal("new manager should have no annotation")
	}

	id := m.Place(surfacePlacement(1))
	if id == "" {
		t.Fatal("Place() returned empty id")
	}

	a, ok := m.Current()
	if !ok {
		t.Fatal("expected an active annotation after Place")
	}
	if a.ID != id {
		t.Errorf("current id = %s, want %s", a.ID, id)
	}
	if a.Content.Kind != KindPlaceholder || a.Content.Text != PlaceholderText {
		t.Errorf("new annotation content = %+v, want placeholder", a.Content)
	}
	if a.Transform.Position().X != 1 {
		t.Errorf("transform = %v, want placement transform", a.Transform)
	}
	if a.Path != placement.PathSurface {
		t.Errorf("path = %s, want surface", a.Path)
	}
}

func TestManager_PlaceReplaces(t *testing.T) {
	m := NewManager(0)

	first := m.Place(surfacePlacement(1))
	second := m.Place(surfacePlacement(2))

	if first == second {
		t.Fatal("expected distinct ids")
	}

	a, _ := m.Current()
	if a.ID != second {
		t.Errorf("current id = %s, want replacement %s", a.ID, second)
	}
	if m.UpdateContent(first, Rendered("late", nil)) {
		t.Error("update for replaced annotation should be ignored")
	}
}

func TestManager_UpdateContent(t *testing.T) {
	m := NewManager(0)
	id := m.Place(surfacePlacement(0))

	scores := &Scores{Safety: 90, Nutrition: 70, AllergenRisk: 10, Freshness: 80}
	if !m.UpdateContent(id, Rendered("an apple", scores)) {
		t.Fatal("expected update to apply")
	}

	a, _ := m.Current()
	if a.Content.Kind != KindRendered || a.Content.Text != "an apple" {
		t.Errorf("content = %+v, want rendered apple", a.Content)
	}
	if a.Content.Scores == nil || a.Content.Scores.Safety != 90 {
		t.Errorf("scores = %+v, want safety 90", a.Content.Scores)
	}
	if a.UpdatedAt.Before(a.PlacedAt) {
		t.Error("UpdatedAt should not precede PlacedAt")
	}
}

func TestManager_UpdateContentStaleID(t *testing.T) {
	m := NewManager(0)
	m.Place(surfacePlacement(0))
	before, _ := m.Current()
	version := m.Version()

	if m.UpdateContent("not-the-current-id", Rendered("stale", nil)) {
		t.Error("stale update should report false")
	}

	after, _ := m.Current()
	if after.Content != before.Content {
		t.Errorf("content changed by stale update: %+v", after.Content)
	}
	if m.Version() != version {
		t.Error("stale update should not bump the version")
	}
}

func TestManager_UpdateContentAfterClear(t *testing.T) {
	m := NewManager(0)
	id := m.Place(surfacePlacement(0))
	m.CheckClear(1)

	if m.UpdateContent(id, Failed("timeout")) {
		t.Error("update after clear should be ignored")
	}
	if _, ok := m.Current(); ok {
		t.Error("cleared annotation must not be recreated by an update")
	}
}

func TestManager_CheckClearSequence(t *testing.T) {
	m := NewManager(0)

	clears := 0
	for _, signal := range []int{0, 0, 1, 1, 2} {
		m.Place(surfacePlacement(0))
		if m.CheckClear(signal) {
			clears++
			if _, ok := m.Current(); ok {
				t.Errorf("signal %d: annotation should be removed", signal)
			}
		} else if _, ok := m.Current(); !ok {
			t.Errorf("signal %d: annotation should survive a repeated signal", signal)
		}
	}

	if clears != 2 {
		t.Errorf("expected exactly 2 clears, got %d", clears)
	}
	if m.LastClearSignal() != 2 {
		t.Errorf("LastClearSignal() = %d, want 2", m.LastClearSignal())
	}
}

func TestManager_CheckClearLowerSignalIgnored(t *testing.T) {
	m := NewManager(5)
	m.Place(surfacePlacement(0))

	if m.CheckClear(3) || m.CheckClear(5) {
		t.Error("signals at or below the initial value must be ignored")
	}
	if m.LastClearSignal() != 5 {
		t.Errorf("LastClearSignal() = %d, must never decrease", m.LastClearSignal())
	}
	if !m.CheckClear(6) {
		t.Error("expected signal 6 to clear")
	}
}

func TestManager_CheckClearWithoutAnnotation(t *testing.T) {
	m := NewManager(0)

	if !m.CheckClear(1) {
		t.Error("a newer signal is processed even with nothing to remove")
	}
	if m.LastClearSignal() != 1 {
		t.Errorf("LastClearSignal() = %d, want 1", m.LastClearSignal())
	}
}

func TestManager_ConcurrentReadersSeeOneAnnotation(t *testing.T) {
	m := NewManager(0)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if a, ok := m.Current(); ok && a.ID == "" {
					t.Error("observed an annotation without an id")
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		id := m.Place(surfacePlacement(float64(i)))
		m.UpdateContent(id, Rendered("x", nil))
	}
	close(done)
	wg.Wait()

	if m.Version() != 400 {
		t.Errorf("Version() = %d, want 400", m.Version())
	}
}

func TestScores_Valid(t *testing.T) {
	tests := []struct {
		name   string
		scores Scores
		want   bool
	}{
		{"all in range", Scores{0, 100, 50, 25}, true},
		{"negative", Scores{-1, 50, 50, 50}, false},
		{"over 100", Scores{50, 50, 101, 50}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scores.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFailed(t *testing.T) {
	c := Failed("connection refused")

	if c.Kind != KindFailed {
		t.Errorf("kind = %s, want failed", c.Kind)
	}
	if c.Text != "Error: connection refused" {
		t.Errorf("text = %q", c.Text)
	}
}

func TestClearCounter(t *testing.T) {
	c := NewClearCounter()

	var seen []int
	c.OnChange(func(v int) {
		seen = append(seen, v)
	})

	c.Increment()
	c.Increment()

	if c.Value() != 2 {
		t.Errorf("Value() = %d, want 2", c.Value())
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("listener saw %v, want [1 2]", seen)
	}
}
