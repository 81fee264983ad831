// Package source adapts concrete file-system notification libraries to the
// RawEvent schema the Monitor consumes. An event source is responsible only
// for emission, timestamped at the moment of emission; all filtering
// (settle policy, glob matching) happens downstream in the Monitor.
package source

import (
	"context"
	"time"
)

// Kind is the un-prefixed event kind a Source emits. The Monitor applies
// the dir_/file_ prefix once it knows whether Path names a directory.
type Kind string

const (
	Created  Kind = "created"
	Modified Kind = "modified"
	Moved    Kind = "moved"
	Closed   Kind = "closed"
	Deleted  Kind = "deleted"
)

// RawEvent is one file-system notification, before Monitor matching.
type RawEvent struct {
	Kind        Kind
	Path        string // absolute path of the affected file or directory
	IsDir       bool
	Time        time.Time
	Retroactive bool   // true for events synthesised by a bootstrap scan
	Hash        string // content hash, if the source computed one eagerly
}

// Source produces RawEvents from a watched tree into out until ctx is
// cancelled or Stop is called.
type Source interface {
	// Start begins emitting live events. It blocks until ctx is done or an
	// unrecoverable error occurs.
	Start(ctx context.Context, out chan<- RawEvent) error
	// Stop releases any held resources (watch handles, file descriptors).
	Stop() error
	// BaseDir returns the root of the watched tree.
	BaseDir() string
}

// ScanningSource is implemented by sources that can perform a one-shot
// bootstrap walk of the base directory, emitting one Retroactive RawEvent
// per pre-existing file. Not every Source needs to support this.
type ScanningSource interface {
	ScanExisting(ctx context.Context, out chan<- RawEvent) error
}
