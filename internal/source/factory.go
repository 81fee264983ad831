package source

import "runtime"

// New picks the best available live-watching Source for the current
// platform: native FSEvents on macOS, fsnotify everywhere else. hashFiles
// controls whether the fsnotify fallback eagerly hashes file contents at
// emission time (used as the Event.Hash the Conductor later re-checks).
func New(baseDir string, hashFiles bool) (Source, error) {
	if runtime.GOOS == "darwin" {
		if s, err := NewFseventsSource(baseDir); err == nil {
			return s, nil
		}
	}
	return NewFsnotifySource(baseDir, hashFiles)
}
