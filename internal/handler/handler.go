// Package handler materialises jobs on disk from matched events: building
// the parameter dictionary, expanding parameter sweeps and keywords, and
// writing the job_queue_dir/<id> directory before handing its path back to
// the Runner for dispatch to a Conductor.
package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/colebrumley/meowd/internal/jobfile"
	"github.com/colebrumley/meowd/internal/meow"
	"github.com/colebrumley/meowd/internal/security"
)

// Handler accepts events whose rule binds to a specific recipe kind and
// materialises one job directory per sweep assignment (or exactly one, for
// an unswept pattern).
type Handler struct {
	kind        meow.RecipeKind
	jobQueueDir string
	pauseTime   time.Duration
}

// New constructs a Handler that only accepts events whose rule's recipe is
// of the given kind, writing job directories under jobQueueDir.
func New(kind meow.RecipeKind, jobQueueDir string, pauseTime time.Duration) *Handler {
	return &Handler{kind: kind, jobQueueDir: jobQueueDir, pauseTime: pauseTime}
}

// PauseTime is the minimum interval a Runner keeps between successive
// invocations of this handler.
func (h *Handler) PauseTime() time.Duration { return h.pauseTime }

// Accepts is the criteria predicate §4.4 requires: the Runner picks one
// handler at random among those whose Accepts returns true to handle a
// given event.
func (h *Handler) Accepts(event meow.Event) bool {
	if event.Rule == nil || event.Rule.Recipe == nil {
		return false
	}
	return event.Rule.Recipe.Kind == h.kind
}

// Handle implements the §4.4 algorithm, returning the queue directory of
// every job it materialised for this event (one per sweep assignment, or
// exactly one when the pattern declares no sweep).
func (h *Handler) Handle(ctx context.Context, event meow.Event) ([]string, error) {
	if !h.Accepts(event) {
		return nil, fmt.Errorf("%w: handler for %q does not accept event of rule %q", meow.ErrRouting, h.kind, event.Rule.Name)
	}

	pattern := event.Rule.Pattern
	recipe := event.Rule.Recipe

	base := make(map[string]any, len(pattern.Parameters)+len(pattern.Outputs)+1)
	for k, v := range pattern.Parameters {
		base[k] = v
	}
	for k, v := range pattern.Outputs {
		base[k] = v
	}
	base[pattern.TriggeringFile] = event.Path

	assignments := meow.ExpandSweeps(pattern)

	dirs := make([]string, 0, len(assignments))
	existingIDs := make(map[string]struct{}, len(assignments))
	for _, assignment := range assignments {
		params := make(map[string]any, len(base)+len(assignment))
		for k, v := range base {
			params[k] = v
		}
		for k, v := range assignment {
			params[k] = v
		}
		for k, v := range params {
			if s, ok := v.(string); ok {
				params[k] = security.SanitizeValue(s)
			}
		}

		jobID := meow.NewJobID(existingIDs)
		existingIDs[jobID] = struct{}{}
		params = meow.ExpandKeywords(params, jobID, event.Path, event.MonitorBase)

		dir := jobfile.Dir(h.jobQueueDir, jobID)
		job := &meow.Job{
			ID:      jobID,
			JobType: recipe.Kind,
			Pattern: pattern.Name,
			Recipe:  recipe.Name,
			Rule:    event.Rule.Name,
			Status:  meow.StatusCreating,
			Create:  time.Now(),
			Event: meow.JobEvent{
				Type: event.Type,
				Path: event.Path,
				Rule: event.Rule.Name,
				Time: event.Time,
				Hash: event.Hash,
			},
			Requirements: recipe.Requirements,
			Parameters:   params,
			Hash:         event.Hash,
		}

		if err := jobfile.Create(dir, job, params); err != nil {
			return dirs, fmt.Errorf("materialising job %s: %w", jobID, err)
		}
		if err := writeBaseFile(dir, recipe); err != nil {
			return dirs, fmt.Errorf("writing base file for job %s: %w", jobID, err)
		}
		if _, err := jobfile.ThreadsafeUpdate(dir, jobfile.Update{Status: meow.StatusQueued}); err != nil {
			return dirs, fmt.Errorf("queuing job %s: %w", jobID, err)
		}

		dirs = append(dirs, dir)
	}

	return dirs, nil
}
