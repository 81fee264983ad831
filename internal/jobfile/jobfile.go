// Package jobfile implements the on-disk job.yml schema and its locking
// discipline: a status update is always a lock, read, merge, write, unlock
// cycle, a terminal status is never overwritten, existing timestamps are
// preserved, and errors accumulate rather than replace.
package jobfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/colebrumley/meowd/internal/meow"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

const (
	MetaFile      = "job.yml"
	ParamsFile    = "params.yml"
	LockExt       = ".lock"
	BackupErrFile = "job_error.txt"
)

// Dir returns the on-disk directory for a job id under root.
func Dir(root, jobID string) string {
	return filepath.Join(root, jobID)
}

func lockFor(dir string) *flock.Flock {
	return flock.New(filepath.Join(dir, MetaFile+LockExt))
}

// Create writes a brand new job.yml (status=creating) and params.yml under
// a freshly-made job directory. Not itself locked: nothing else can know
// the job's ID until this call returns.
func Create(dir string, job *meow.Job, params map[string]any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job directory: %w", err)
	}
	if err := writeYAML(filepath.Join(dir, MetaFile), job); err != nil {
		return fmt.Errorf("writing job metadata: %w", err)
	}
	if err := writeYAML(filepath.Join(dir, ParamsFile), params); err != nil {
		return fmt.Errorf("writing job parameters: %w", err)
	}
	return nil
}

// Read returns the current job.yml contents under an exclusive lock.
func Read(dir string) (*meow.Job, error) {
	lock := lockFor(dir)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("locking job metadata: %w", err)
	}
	defer lock.Unlock()

	return readUnlocked(dir)
}

func readUnlocked(dir string) (*meow.Job, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, fmt.Errorf("reading job metadata: %w", err)
	}
	var job meow.Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parsing job metadata: %w", err)
	}
	return &job, nil
}

// Update is a partial set of fields to merge into job.yml. Zero values mean
// "no change" — Status == "" leaves status alone, Start == nil leaves the
// start time alone, and so on.
type Update struct {
	Status     string
	Start      *time.Time
	End        *time.Time
	Error      string
	Parameters map[string]any
	Hash       string
}

// Apply merges u into job in place, honouring the never-overwrite rules:
// a terminal status is sticky, existing timestamps are preserved, and
// errors are concatenated rather than replaced.
func Apply(job *meow.Job, u Update) {
	if u.Status != "" && !meow.IsTerminal(job.Status) {
		job.Status = u.Status
	}
	if u.Start != nil && job.Start == nil {
		job.Start = u.Start
	}
	if u.End != nil && job.End == nil {
		job.End = u.End
	}
	if u.Error != "" {
		if job.Error == "" {
			job.Error = u.Error
		} else {
			job.Error = job.Error + " " + u.Error
		}
	}
	if u.Parameters != nil {
		job.Parameters = u.Parameters
	}
	if u.Hash != "" {
		job.Hash = u.Hash
	}
}

// ThreadsafeUpdate performs the full lock/read/merge/write/unlock cycle.
func ThreadsafeUpdate(dir string, u Update) (*meow.Job, error) {
	lock := lockFor(dir)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("locking job metadata: %w", err)
	}
	defer lock.Unlock()

	job, err := readUnlocked(dir)
	if err != nil {
		return nil, err
	}
	Apply(job, u)
	if err := writeYAML(filepath.Join(dir, MetaFile), job); err != nil {
		return nil, fmt.Errorf("writing job metadata: %w", err)
	}
	return job, nil
}

// WriteBackupError records a setup failure that happened before the job
// metadata could be trusted — written outside the lock protocol, since the
// metadata file itself may be the thing that's broken.
func WriteBackupError(dir string, msg string) error {
	return os.WriteFile(filepath.Join(dir, BackupErrFile), []byte(msg), 0o644)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
