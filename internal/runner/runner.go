// Package runner wires one-or-more Monitors, Handlers and Conductors
// together: it owns the channels between stages, picks an accepting
// handler/conductor uniformly at random when more than one matches, and
// supervises the whole pipeline's lifecycle.
package runner

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/colebrumley/meowd/internal/logging"
	"github.com/colebrumley/meowd/internal/meow"
)

// Monitor is the subset of monitor.Monitor the Runner depends on, so tests
// can substitute a fake without spinning up a real event source.
type Monitor interface {
	Start(ctx context.Context, out chan<- meow.Event) error
	Stop() error
}

// Handler is the subset of handler.Handler the Runner dispatches through.
// PauseTime throttles how often the Runner re-invokes this handler, the
// channel-based stand-in for §5's per-handler polling-loop pause.
type Handler interface {
	Accepts(event meow.Event) bool
	Handle(ctx context.Context, event meow.Event) ([]string, error)
	PauseTime() time.Duration
}

// Conductor is the subset of conductor.Conductor the Runner dispatches
// through. PauseTime throttles how often the Runner re-invokes this
// conductor, mirroring Handler's pause semantics.
type Conductor interface {
	Accepts(job *meow.Job) bool
	Execute(ctx context.Context, dir string) error
	PauseTime() time.Duration
}

// JobReader is implemented by whatever reads job.yml back for the purpose
// of an Accepts() check before Execute; kept as a func to avoid a direct
// dependency on the jobfile package from runner's public surface.
type JobReader func(dir string) (*meow.Job, error)

type Runner struct {
	monitors   []Monitor
	handlers   []Handler
	conductors []Conductor
	readJob    JobReader
	log        *slog.Logger
	maxInFlight int

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	limiterMu sync.Mutex
	limiters  map[any]*rateLimiter
}

// rateLimiter paces repeated invocations of a single handler/conductor to at
// most once per pause_time, standing in for the reference implementation's
// per-stage polling loop now that dispatch is channel-driven rather than
// polled.
type rateLimiter struct {
	mu   sync.Mutex
	last time.Time
}

func (rl *rateLimiter) wait(ctx context.Context, pause time.Duration) {
	if pause <= 0 {
		return
	}
	rl.mu.Lock()
	now := time.Now()
	wait := time.Duration(0)
	if next := rl.last.Add(pause); next.After(now) {
		wait = next.Sub(now)
	}
	rl.last = now.Add(wait)
	rl.mu.Unlock()

	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// limiterFor returns the rate limiter for key (a Handler or Conductor,
// compared by interface identity), creating one on first use.
func (r *Runner) limiterFor(key any) *rateLimiter {
	r.limiterMu.Lock()
	defer r.limiterMu.Unlock()
	if r.limiters == nil {
		r.limiters = make(map[any]*rateLimiter)
	}
	rl, ok := r.limiters[key]
	if !ok {
		rl = &rateLimiter{}
		r.limiters[key] = rl
	}
	return rl
}

// New constructs a Runner over the given stages. maxInFlight bounds the
// number of concurrently in-flight handler/conductor goroutines (0 means
// unbounded).
func New(monitors []Monitor, handlers []Handler, conductors []Conductor, readJob JobReader, log *slog.Logger, maxInFlight int) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		monitors:    monitors,
		handlers:    handlers,
		conductors:  conductors,
		readJob:     readJob,
		log:         log,
		maxInFlight: maxInFlight,
	}
}

// Start wires every monitor's output into a single fan-in channel and runs
// the main dispatch loop until ctx is cancelled or Stop is called.
// Double-start is reported as a non-fatal warning, not an error return.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		r.log.Warn("runner already started; ignoring duplicate Start")
		return
	}
	r.started = true
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	events := make(chan meow.Event, 256)
	jobs := make(chan string, 256)

	for _, m := range r.monitors {
		r.wg.Add(1)
		go func(m Monitor) {
			defer r.wg.Done()
			if err := m.Start(ctx, events); err != nil && ctx.Err() == nil {
				r.log.Error("monitor stopped with error", "error", err)
			}
		}(m)
	}

	var sem chan struct{}
	if r.maxInFlight > 0 {
		sem = make(chan struct{}, r.maxInFlight)
	}

	r.wg.Add(1)
	go r.dispatchLoop(ctx, events, jobs, sem)
}

func (r *Runner) dispatchLoop(ctx context.Context, events chan meow.Event, jobs chan string, sem chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			r.dispatchEvent(ctx, ev, jobs, sem)
		case dir := <-jobs:
			r.dispatchJob(ctx, dir, sem)
		}
	}
}

func (r *Runner) dispatchEvent(ctx context.Context, ev meow.Event, jobs chan<- string, sem chan struct{}) {
	candidates := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		if h.Accepts(ev) {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		logging.WithRule(r.log, ruleName(ev)).Warn("no handler accepted event")
		return
	}
	h := candidates[rand.Intn(len(candidates))]

	r.runBounded(sem, func() {
		r.limiterFor(h).wait(ctx, h.PauseTime())
		dirs, err := h.Handle(ctx, ev)
		if err != nil {
			logging.WithRule(r.log, ruleName(ev)).Error("handler failed", "error", err)
			return
		}
		for _, d := range dirs {
			select {
			case jobs <- d:
			case <-ctx.Done():
				return
			}
		}
	})
}

func (r *Runner) dispatchJob(ctx context.Context, dir string, sem chan struct{}) {
	job, err := r.readJob(dir)
	if err != nil {
		r.log.Error("reading queued job failed", "dir", dir, "error", err)
		return
	}

	candidates := make([]Conductor, 0, len(r.conductors))
	for _, c := range r.conductors {
		if c.Accepts(job) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		logging.WithJob(r.log, job.ID).Warn("no conductor accepted job", "type", job.JobType)
		return
	}
	c := candidates[rand.Intn(len(candidates))]

	r.runBounded(sem, func() {
		r.limiterFor(c).wait(ctx, c.PauseTime())
		if err := c.Execute(ctx, dir); err != nil {
			logging.WithJob(r.log, job.ID).Error("conductor failed", "error", err)
		}
	})
}

func (r *Runner) runBounded(sem chan struct{}, fn func()) {
	if sem != nil {
		sem <- struct{}{}
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if sem != nil {
			defer func() { <-sem }()
		}
		fn()
	}()
}

// Stop raises the one-shot stop signal, stops every monitor, and waits for
// in-flight handlers/conductors to finish. Stop-before-start is reported as
// a non-fatal warning.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		r.log.Warn("runner stopped before it was started")
		return
	}
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	for _, m := range r.monitors {
		if err := m.Stop(); err != nil {
			r.log.Error("stopping monitor failed", "error", err)
		}
	}
	cancel()
	r.wg.Wait()
}

func ruleName(ev meow.Event) string {
	if ev.Rule == nil {
		return ""
	}
	return ev.Rule.Name
}
