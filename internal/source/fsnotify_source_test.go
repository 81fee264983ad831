package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFsnotifySource_BaseDir(t *testing.T) {
	dir := t.TempDir()
	src, err := NewFsnotifySource(dir, false)
	if err != nil {
		t.Fatalf("NewFsnotifySource() error = %v", err)
	}
	defer src.Stop()

	if src.BaseDir() != dir {
		t.Errorf("BaseDir() = %q, want %q", src.BaseDir(), dir)
	}
}

func TestFsnotifySource_EmitsCreateEvent(t *testing.T) {
	dir := t.TempDir()
	src, err := NewFsnotifySource(dir, false)
	if err != nil {
		t.Fatalf("NewFsnotifySource() error = %v", err)
	}
	defer src.Stop()

	out := make(chan RawEvent, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go src.Start(ctx, out)
	time.Sleep(50 * time.Millisecond) // let watchTree register the base dir

	target := filepath.Join(dir, "new.csv")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case ev := <-out:
		if ev.Path != target {
			t.Errorf("RawEvent.Path = %q, want %q", ev.Path, target)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestFsnotifySource_HashFiles(t *testing.T) {
	dir := t.TempDir()
	src, err := NewFsnotifySource(dir, true)
	if err != nil {
		t.Fatalf("NewFsnotifySource() error = %v", err)
	}
	defer src.Stop()

	out := make(chan RawEvent, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go src.Start(ctx, out)
	time.Sleep(50 * time.Millisecond)

	target := filepath.Join(dir, "new.csv")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case ev := <-out:
		if ev.Hash == "" {
			t.Error("RawEvent.Hash is empty, want a computed SHA-256 when hashFiles=true")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestFsnotifySource_ScanExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.csv"), []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	src, err := NewFsnotifySource(dir, false)
	if err != nil {
		t.Fatalf("NewFsnotifySource() error = %v", err)
	}
	defer src.Stop()

	out := make(chan RawEvent, 16)
	if err := src.ScanExisting(context.Background(), out); err != nil {
		t.Fatalf("ScanExisting() error = %v", err)
	}
	close(out)

	var found bool
	for ev := range out {
		if !ev.Retroactive {
			t.Errorf("ScanExisting() emitted non-retroactive event %+v", ev)
		}
		if ev.Path == filepath.Join(dir, "existing.csv") {
			found = true
		}
	}
	if !found {
		t.Error("ScanExisting() did not emit an event for the pre-existing file")
	}
}
