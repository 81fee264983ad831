//go:build !darwin

package source

import (
	"context"
	"fmt"
	"runtime"
)

// FseventsSource is only available on macOS; elsewhere NewFseventsSource
// reports an error so callers fall back to FsnotifySource.
type FseventsSource struct{}

func NewFseventsSource(baseDir string) (*FseventsSource, error) {
	return nil, fmt.Errorf("fsevents source requires macOS; running on %s", runtime.GOOS)
}

func (f *FseventsSource) BaseDir() string                                   { return "" }
func (f *FseventsSource) Start(ctx context.Context, out chan<- RawEvent) error { return fmt.Errorf("unsupported") }
func (f *FseventsSource) Stop() error                                       { return nil }
