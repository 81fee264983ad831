//go:build darwin

package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsevents"
)

// FseventsSource watches a tree using native macOS FSEvents, which unlike
// fsnotify watches recursively without a manual directory walk and reports
// queue-overflow conditions explicitly.
type FseventsSource struct {
	baseDir string

	mu      sync.Mutex
	stream  *fsevents.EventStream
	stopped bool
}

func NewFseventsSource(baseDir string) (*FseventsSource, error) {
	resolved, err := filepath.EvalSymlinks(baseDir)
	if err != nil {
		resolved = baseDir
	}
	return &FseventsSource{baseDir: resolved}, nil
}

func (f *FseventsSource) BaseDir() string { return f.baseDir }

func (f *FseventsSource) Start(ctx context.Context, out chan<- RawEvent) error {
	f.mu.Lock()
	if f.stream != nil {
		f.mu.Unlock()
		return fmt.Errorf("fsevents source for %q already started", f.baseDir)
	}
	stream := &fsevents.EventStream{
		Paths:   []string{f.baseDir},
		Latency: 0,
		Flags:   fsevents.FileEvents | fsevents.WatchRoot | fsevents.NoDefer,
	}
	f.stream = stream
	f.mu.Unlock()

	stream.Start()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-stream.Events:
			if !ok {
				return nil
			}
			for _, ev := range batch {
				f.handle(ev, out)
			}
		}
	}
}

func (f *FseventsSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.stream != nil {
		f.stream.Stop()
		f.stream = nil
	}
	return nil
}

func (f *FseventsSource) handle(ev fsevents.Event, out chan<- RawEvent) {
	if ev.Flags&fsevents.MustScanSubDirs != 0 ||
		ev.Flags&fsevents.KernelDropped != 0 ||
		ev.Flags&fsevents.UserDropped != 0 {
		slog.Warn("fsevents queue overflow, rescanning", "path", ev.Path, "flags", ev.Flags)
		f.rescan(ev.Path, out)
		return
	}
	if ev.Flags&fsevents.Mount != 0 || ev.Flags&fsevents.Unmount != 0 ||
		ev.Flags&fsevents.RootChanged != 0 {
		return
	}

	isDir := ev.Flags&fsevents.ItemIsDir != 0
	var kind Kind
	switch {
	case ev.Flags&fsevents.ItemRemoved != 0:
		kind = Deleted
	case ev.Flags&fsevents.ItemCreated != 0:
		kind = Created
	case ev.Flags&fsevents.ItemModified != 0:
		kind = Modified
	case ev.Flags&fsevents.ItemRenamed != 0:
		kind = Moved
	default:
		return
	}

	raw := RawEvent{Kind: kind, Path: ev.Path, IsDir: isDir, Time: time.Now()}
	if kind != Deleted && !isDir {
		raw.Hash = hashFile(ev.Path)
	}

	select {
	case out <- raw:
	default:
	}
}

// rescan emits a synthetic retroactive burst for the subtree under path
// when FSEvents reports it may have dropped notifications — the one thing
// the portable fsnotify-based source cannot do, since fsnotify has no
// overflow signal to react to.
func (f *FseventsSource) rescan(path string, out chan<- RawEvent) {
	scanner, err := NewFsnotifySource(path, false)
	if err != nil {
		return
	}
	_ = scanner.ScanExisting(context.Background(), out)
}

var _ ScanningSource = (*FsnotifySource)(nil)
