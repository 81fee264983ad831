package source

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// PeriodicRescanner wraps a ScanningSource with a cron-scheduled full-tree
// rescan, the pull-side counterpart to a push-based live Source. It exists
// because inotify/kqueue/FSEvents can all silently drop events under load;
// a periodic rescan bounds how long a missed event can go unnoticed.
type PeriodicRescanner struct {
	source ScanningSource
	cron   *cron.Cron
	spec   string
	out    chan<- RawEvent
}

// NewPeriodicRescanner schedules src.ScanExisting to run on the given cron
// spec (standard 5-field, as parsed by robfig/cron/v3's default parser).
func NewPeriodicRescanner(src ScanningSource, spec string, out chan<- RawEvent) (*PeriodicRescanner, error) {
	c := cron.New()
	r := &PeriodicRescanner{source: src, cron: c, spec: spec, out: out}
	if _, err := c.AddFunc(spec, r.runOnce); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PeriodicRescanner) Start() { r.cron.Start() }

func (r *PeriodicRescanner) Stop() context.Context { return r.cron.Stop() }

func (r *PeriodicRescanner) runOnce() {
	if err := r.source.ScanExisting(context.Background(), r.out); err != nil {
		slog.Warn("periodic rescan failed", "error", err)
	}
}
