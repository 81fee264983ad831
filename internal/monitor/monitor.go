// Package monitor holds the rule set for a watched base directory and
// matches incoming raw file events against it.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/colebrumley/meowd/internal/logging"
	"github.com/colebrumley/meowd/internal/meow"
	"github.com/colebrumley/meowd/internal/source"
)

// Monitor owns a rule map derived from a (patterns, recipes) pair, and
// matches events from a Source against it.
type Monitor struct {
	baseDir string
	src     source.Source
	settle  *settlePolicy
	log     *slog.Logger

	mu       sync.RWMutex
	patterns map[string]*meow.Pattern
	recipes  map[string]*meow.Recipe
	rules    map[string]*meow.Rule
	globs    map[string]*compiledGlob // keyed by pattern name

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Monitor over baseDir, deriving its initial rule set from
// patterns and recipes (both keyed by their own Name field — a mismatch is
// a meow.ErrConsistency).
func New(baseDir string, src source.Source, settleTime time.Duration, patterns map[string]*meow.Pattern, recipes map[string]*meow.Recipe, log *slog.Logger) (*Monitor, error) {
	if log == nil {
		log = slog.Default()
	}
	log = logging.WithComponent(log, "monitor")
	m := &Monitor{
		baseDir:  baseDir,
		src:      src,
		settle:   newSettlePolicy(settleTime),
		log:      log,
		patterns: make(map[string]*meow.Pattern),
		recipes:  make(map[string]*meow.Recipe),
		globs:    make(map[string]*compiledGlob),
	}
	for k, v := range patterns {
		m.patterns[k] = v
	}
	for k, v := range recipes {
		m.recipes[k] = v
	}
	if err := m.rederive(); err != nil {
		return nil, err
	}
	return m, nil
}

// Start registers with the event source and begins matching events onto
// out. If the source supports it, a one-shot bootstrap scan over
// pre-existing files runs concurrently with the live feed, emitting
// retroactive_* events into the same stream so a
// restart doesn't silently miss work dropped while meowd was down. Start
// returns once the source's live feed ends or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context, out chan<- meow.Event) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	defer close(m.done)

	raw := make(chan source.RawEvent, 256)
	errCh := make(chan error, 1)

	if scanner, ok := m.src.(source.ScanningSource); ok {
		go func() {
			if err := scanner.ScanExisting(ctx, raw); err != nil {
				m.log.Warn("bootstrap scan failed", "base", m.baseDir, "error", err)
			}
		}()
	}

	go func() {
		errCh <- m.src.Start(ctx, raw)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case ev, ok := <-raw:
			if !ok {
				return nil
			}
			m.match(ev, out)
		}
	}
}

// Stop unregisters from the event source and waits for Start to drain.
func (m *Monitor) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	err := m.src.Stop()
	if m.done != nil {
		<-m.done
	}
	return err
}

// match implements the §4.3 matching algorithm: dir/file prefixing, settle
// de-duplication, base-relative path computation, and rule iteration under
// the rules mutex.
func (m *Monitor) match(raw source.RawEvent, out chan<- meow.Event) {
	eventType := prefixedType(raw)

	if !m.settle.accept(raw.Path, raw.Time) {
		return
	}

	relPath, err := filepath.Rel(m.baseDir, raw.Path)
	if err != nil {
		m.log.Warn("event path outside base dir", "path", raw.Path, "base", m.baseDir)
		return
	}
	relPath = strings.TrimLeft(filepath.ToSlash(relPath), "/")

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rule := range m.rules {
		if !maskContains(rule.Pattern.EventMask, eventType) {
			continue
		}
		g := m.globs[rule.Pattern.Name]
		if g == nil || !g.match(relPath) {
			continue
		}
		ev := meow.Event{
			Type:        eventType,
			Path:        raw.Path,
			Rule:        rule,
			Time:        raw.Time,
			MonitorBase: m.baseDir,
			Hash:        raw.Hash,
		}
		select {
		case out <- ev:
		default:
			logging.WithRule(m.log, rule.Name).Warn("matched-event channel full, dropping event", "path", raw.Path)
		}
	}
}

func prefixedType(raw source.RawEvent) string {
	var base string
	switch raw.Kind {
	case source.Created:
		base = meow.EventFileCreated
	case source.Modified:
		base = meow.EventFileModified
	case source.Moved:
		base = meow.EventFileMoved
	case source.Closed:
		base = meow.EventFileClosed
	case source.Deleted:
		base = meow.EventFileDeleted
	default:
		base = meow.EventFileModified
	}
	if raw.IsDir {
		base = meow.DirPrefix + strings.TrimPrefix(base, "file_")
	}
	if raw.Retroactive {
		base = meow.RetroactivePrefix + base
	}
	return base
}

func maskContains(mask []string, eventType string) bool {
	for _, m := range mask {
		if m == eventType {
			return true
		}
	}
	return false
}

func (m *Monitor) rederive() error {
	rules, err := meow.CreateRules(m.patterns, m.recipes, meow.NewRuleID)
	if err != nil {
		return err
	}
	globs := make(map[string]*compiledGlob, len(m.patterns))
	for _, p := range m.patterns {
		g, err := compileGlob(p.TriggeringPath)
		if err != nil {
			return fmt.Errorf("%w: pattern %q: compiling triggering_path: %v", meow.ErrValidation, p.Name, err)
		}
		globs[p.Name] = g
	}
	m.rules = rules
	m.globs = globs
	return nil
}

// AddPattern adds or replaces a pattern and re-derives affected rules.
func (m *Monitor) AddPattern(p *meow.Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns[p.Name] = p
	return m.rederive()
}

// RemovePattern removes a pattern by name and re-derives rules.
func (m *Monitor) RemovePattern(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patterns, name)
	return m.rederive()
}

// AddRecipe adds or replaces a recipe and re-derives affected rules.
func (m *Monitor) AddRecipe(r *meow.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipes[r.Name] = r
	return m.rederive()
}

// RemoveRecipe removes a recipe by name and re-derives rules.
func (m *Monitor) RemoveRecipe(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recipes, name)
	return m.rederive()
}

// GetPatterns returns a defensive copy of the held patterns, keyed by name.
func (m *Monitor) GetPatterns() map[string]*meow.Pattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*meow.Pattern, len(m.patterns))
	for k, v := range m.patterns {
		cp := *v
		out[k] = &cp
	}
	return out
}

// GetRecipes returns a defensive copy of the held recipes, keyed by name.
func (m *Monitor) GetRecipes() map[string]*meow.Recipe {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*meow.Recipe, len(m.recipes))
	for k, v := range m.recipes {
		cp := *v
		out[k] = &cp
	}
	return out
}

// GetRules returns a defensive copy of the currently derived rules, keyed
// by rule ID.
func (m *Monitor) GetRules() map[string]*meow.Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*meow.Rule, len(m.rules))
	for k, v := range m.rules {
		cp := *v
		out[k] = &cp
	}
	return out
}
