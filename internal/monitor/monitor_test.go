package monitor

import (
	"context"
	"log/slog"
	"io"
	"testing"
	"time"

	"github.com/colebrumley/meowd/internal/meow"
	"github.com/colebrumley/meowd/internal/source"
)

// fakeSource is a minimal source.Source whose Start forwards whatever the
// test writes onto a channel it controls, letting tests drive Monitor.match
// without a real filesystem watcher.
type fakeSource struct {
	baseDir string
	in      chan source.RawEvent
	stopped chan struct{}
}

func newFakeSource(baseDir string) *fakeSource {
	return &fakeSource{baseDir: baseDir, in: make(chan source.RawEvent), stopped: make(chan struct{})}
}

func (f *fakeSource) Start(ctx context.Context, out chan<- source.RawEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-f.in:
			if !ok {
				return nil
			}
			out <- ev
		}
	}
}

func (f *fakeSource) Stop() error {
	close(f.stopped)
	return nil
}

func (f *fakeSource) BaseDir() string { return f.baseDir }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildRulePair(t *testing.T, mask []string) (map[string]*meow.Pattern, map[string]*meow.Recipe) {
	t.Helper()
	p, err := meow.NewPattern("watch-csv", "*.csv", "input_file", "process", mask, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewPattern() error = %v", err)
	}
	r, err := meow.NewRecipe("process", meow.RecipeScript, "print('hi')", nil, nil)
	if err != nil {
		t.Fatalf("NewRecipe() error = %v", err)
	}
	return map[string]*meow.Pattern{p.Name: p}, map[string]*meow.Recipe{r.Name: r}
}

func TestMonitor_New_DerivesRules(t *testing.T) {
	patterns, recipes := buildRulePair(t, []string{meow.EventFileCreated})
	m, err := New("/watch", newFakeSource("/watch"), 0, patterns, recipes, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(m.GetRules()) != 1 {
		t.Fatalf("New() derived %d rules, want 1", len(m.GetRules()))
	}
}

func TestMonitor_MatchesEventAgainstRule(t *testing.T) {
	patterns, recipes := buildRulePair(t, []string{meow.EventFileCreated})
	src := newFakeSource("/watch")
	m, err := New("/watch", src, 0, patterns, recipes, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out := make(chan meow.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Start(ctx, out) }()

	src.in <- source.RawEvent{Kind: source.Created, Path: "/watch/file.csv", Time: time.Now()}

	select {
	case ev := <-out:
		if ev.Rule == nil || ev.Rule.Pattern.Name != "watch-csv" {
			t.Fatalf("matched event rule = %+v, want watch-csv", ev.Rule)
		}
		if ev.Type != meow.EventFileCreated {
			t.Errorf("matched event type = %q, want %q", ev.Type, meow.EventFileCreated)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for matched event")
	}

	cancel()
	<-done
}

func TestMonitor_EventOutsideMaskIsDropped(t *testing.T) {
	patterns, recipes := buildRulePair(t, []string{meow.EventFileCreated})
	src := newFakeSource("/watch")
	m, err := New("/watch", src, 0, patterns, recipes, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out := make(chan meow.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Start(ctx, out)

	src.in <- source.RawEvent{Kind: source.Deleted, Path: "/watch/file.csv", Time: time.Now()}

	select {
	case ev := <-out:
		t.Fatalf("got unexpected matched event %+v, want none (deleted not in mask)", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMonitor_NonMatchingGlobIsDropped(t *testing.T) {
	patterns, recipes := buildRulePair(t, []string{meow.EventFileCreated})
	src := newFakeSource("/watch")
	m, err := New("/watch", src, 0, patterns, recipes, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out := make(chan meow.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx, out)

	src.in <- source.RawEvent{Kind: source.Created, Path: "/watch/file.txt", Time: time.Now()}

	select {
	case ev := <-out:
		t.Fatalf("got unexpected matched event %+v, want none (extension mismatch)", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMonitor_AddRemovePatternRederivesRules(t *testing.T) {
	patterns, recipes := buildRulePair(t, []string{meow.EventFileCreated})
	m, err := New("/watch", newFakeSource("/watch"), 0, patterns, recipes, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	extra, err := meow.NewPattern("watch-json", "*.json", "input_file", "process", []string{meow.EventFileCreated}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewPattern() error = %v", err)
	}
	if err := m.AddPattern(extra); err != nil {
		t.Fatalf("AddPattern() error = %v", err)
	}
	if len(m.GetRules()) != 2 {
		t.Fatalf("after AddPattern() = %d rules, want 2", len(m.GetRules()))
	}

	if err := m.RemovePattern("watch-json"); err != nil {
		t.Fatalf("RemovePattern() error = %v", err)
	}
	if len(m.GetRules()) != 1 {
		t.Fatalf("after RemovePattern() = %d rules, want 1", len(m.GetRules()))
	}
}

func TestMonitor_GetPatternsReturnsDefensiveCopy(t *testing.T) {
	patterns, recipes := buildRulePair(t, []string{meow.EventFileCreated})
	m, err := New("/watch", newFakeSource("/watch"), 0, patterns, recipes, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := m.GetPatterns()
	got["watch-csv"].Name = "mutated"

	if m.GetPatterns()["watch-csv"].Name != "watch-csv" {
		t.Error("GetPatterns() leaked a mutable reference to internal state")
	}
}
