package runner

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/colebrumley/meowd/internal/meow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMonitor emits a single pre-set event, then blocks until cancelled.
type fakeMonitor struct {
	event   *meow.Event
	stopped atomic.Bool
}

func (f *fakeMonitor) Start(ctx context.Context, out chan<- meow.Event) error {
	if f.event != nil {
		select {
		case out <- *f.event:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

func (f *fakeMonitor) Stop() error {
	f.stopped.Store(true)
	return nil
}

type fakeHandler struct {
	kind      meow.RecipeKind
	handled   atomic.Int32
	returnDir string
	pause     time.Duration
}

func (h *fakeHandler) PauseTime() time.Duration { return h.pause }

func (h *fakeHandler) Accepts(event meow.Event) bool {
	return event.Rule != nil && event.Rule.Recipe != nil && event.Rule.Recipe.Kind == h.kind
}

func (h *fakeHandler) Handle(ctx context.Context, event meow.Event) ([]string, error) {
	h.handled.Add(1)
	if h.returnDir == "" {
		return nil, nil
	}
	return []string{h.returnDir}, nil
}

type fakeConductor struct {
	kind     meow.RecipeKind
	executed atomic.Int32
}

func (c *fakeConductor) PauseTime() time.Duration { return 0 }

func (c *fakeConductor) Accepts(job *meow.Job) bool {
	return job != nil && job.JobType == c.kind
}

func (c *fakeConductor) Execute(ctx context.Context, dir string) error {
	c.executed.Add(1)
	return nil
}

func testRule(t *testing.T, kind meow.RecipeKind) *meow.Rule {
	t.Helper()
	p, err := meow.NewPattern("p", "*.csv", "input_file", "r", nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewPattern() error = %v", err)
	}
	r, err := meow.NewRecipe("r", kind, "body", nil, nil)
	if err != nil {
		t.Fatalf("NewRecipe() error = %v", err)
	}
	rule, err := meow.NewRule("rule_1", p, r)
	if err != nil {
		t.Fatalf("NewRule() error = %v", err)
	}
	return rule
}

func TestRunner_DispatchesEventThroughAcceptingHandler(t *testing.T) {
	rule := testRule(t, meow.RecipeScript)
	event := meow.Event{Rule: rule}
	mon := &fakeMonitor{event: &event}
	h := &fakeHandler{kind: meow.RecipeScript, returnDir: "/queue/job_1"}
	readJob := func(dir string) (*meow.Job, error) {
		return &meow.Job{ID: "job_1", JobType: meow.RecipeScript}, nil
	}
	c := &fakeConductor{kind: meow.RecipeScript}

	r := New([]Monitor{mon}, []Handler{h}, []Conductor{c}, readJob, testLogger(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	deadline := time.After(2 * time.Second)
	for h.handled.Load() == 0 || c.executed.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("handled=%d executed=%d, want both >= 1", h.handled.Load(), c.executed.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	r.Stop()
	if !mon.stopped.Load() {
		t.Error("Stop() did not stop the monitor")
	}
}

func TestRunner_NoAcceptingHandler_DoesNotPanic(t *testing.T) {
	rule := testRule(t, meow.RecipeScript)
	event := meow.Event{Rule: rule}
	mon := &fakeMonitor{event: &event}
	h := &fakeHandler{kind: meow.RecipeShell} // mismatched kind, never accepts
	readJob := func(dir string) (*meow.Job, error) { return nil, nil }

	r := New([]Monitor{mon}, []Handler{h}, nil, readJob, testLogger(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	r.Stop()

	if h.handled.Load() != 0 {
		t.Error("Handle() was called despite Accepts() always returning false")
	}
}

func TestRunner_DoubleStartIsNonFatal(t *testing.T) {
	r := New(nil, nil, nil, func(string) (*meow.Job, error) { return nil, nil }, testLogger(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Start(ctx)
	r.Start(ctx) // must not panic or deadlock
	r.Stop()
}

func TestRunner_StopBeforeStartIsNonFatal(t *testing.T) {
	r := New(nil, nil, nil, func(string) (*meow.Job, error) { return nil, nil }, testLogger(), 0)
	r.Stop() // must not panic
}

func TestRunner_DoubleStopIsIdempotent(t *testing.T) {
	r := New(nil, nil, nil, func(string) (*meow.Job, error) { return nil, nil }, testLogger(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	r.Stop()
	r.Stop() // must not panic or block
}

// TestRunner_PauseTimeThrottlesHandlerInvocations drives the same handler
// through dispatchEvent repeatedly and checks the Runner paces successive
// invocations at least PauseTime apart, rather than firing them back to
// back.
func TestRunner_PauseTimeThrottlesHandlerInvocations(t *testing.T) {
	h := &fakeHandler{kind: meow.RecipeScript, pause: 50 * time.Millisecond}
	rule := testRule(t, meow.RecipeScript)
	event := meow.Event{Rule: rule}

	r := New(nil, []Handler{h}, nil, func(string) (*meow.Job, error) { return nil, nil }, testLogger(), 0)

	jobs := make(chan string, 8)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		r.dispatchEvent(ctx, event, jobs, nil)
	}
	r.wg.Wait()
	elapsed := time.Since(start)

	if h.handled.Load() != 3 {
		t.Fatalf("handled = %d, want 3", h.handled.Load())
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("three dispatches with a 50ms pause took %s, want >= 100ms", elapsed)
	}
}
