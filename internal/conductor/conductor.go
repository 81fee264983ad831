package conductor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/colebrumley/meowd/internal/jobfile"
	"github.com/colebrumley/meowd/internal/meow"
	"github.com/colebrumley/meowd/internal/state"
)

// HistoryRecorder persists a job's terminal transition into the job history
// index; satisfied by *state.DB. A nil HistoryRecorder disables recording.
type HistoryRecorder interface {
	RecordJob(rec state.JobRecord) error
}

// Conductor picks up a queued job directory, executes it through the
// Interpreter registered for its kind, and moves it to the output
// directory on terminal transition.
type Conductor struct {
	jobOutputDir string
	interp       Interpreter
	pauseTime    time.Duration
	history      HistoryRecorder
}

// New constructs a Conductor that accepts jobs of interp.Kind() and, on
// completion, moves job directories into jobOutputDir. history may be nil,
// in which case terminal transitions are not recorded anywhere but job.yml.
func New(interp Interpreter, jobOutputDir string, pauseTime time.Duration, history HistoryRecorder) *Conductor {
	return &Conductor{jobOutputDir: jobOutputDir, interp: interp, pauseTime: pauseTime, history: history}
}

func (c *Conductor) PauseTime() time.Duration { return c.pauseTime }

// Accepts is the execute-criteria predicate §4.5 requires.
func (c *Conductor) Accepts(job *meow.Job) bool {
	return job != nil && job.JobType == c.interp.Kind()
}

// Execute implements the §4.5 algorithm end to end.
func (c *Conductor) Execute(ctx context.Context, dir string) error {
	job, err := jobfile.Read(dir)
	if err != nil {
		_ = jobfile.WriteBackupError(dir, fmt.Sprintf("Received incorrectly set up job.\n\n%v", err))
		return c.moveToOutput(dir)
	}

	if !c.Accepts(job) {
		return fmt.Errorf("%w: conductor for %q does not accept job %q of type %q", meow.ErrRouting, c.interp.Kind(), job.ID, job.JobType)
	}

	now := time.Now()
	if _, err := jobfile.ThreadsafeUpdate(dir, jobfile.Update{Status: meow.StatusRunning, Start: &now}); err != nil {
		return fmt.Errorf("marking job %s running: %w", job.ID, err)
	}

	if job.Event.Hash != "" {
		if skip, reason := c.checkHashGuard(job); skip {
			end := time.Now()
			updated, _ := jobfile.ThreadsafeUpdate(dir, jobfile.Update{Status: meow.StatusSkipped, End: &end, Error: reason})
			c.recordHistory(updated)
			return c.moveToOutput(dir)
		}
	}

	if err := c.interp.Parameterize(dir, job); err != nil {
		end := time.Now()
		updated, _ := jobfile.ThreadsafeUpdate(dir, jobfile.Update{
			Status: meow.StatusFailed, End: &end,
			Error: fmt.Sprintf("Job execution failed. %v", err),
		})
		c.recordHistory(updated)
		return c.moveToOutput(dir)
	}

	execErr := c.interp.Execute(ctx, dir, job)
	end := time.Now()
	var updated *meow.Job
	if execErr != nil {
		updated, _ = jobfile.ThreadsafeUpdate(dir, jobfile.Update{
			Status: meow.StatusFailed, End: &end,
			Error: fmt.Sprintf("Job execution failed. %v", execErr),
		})
	} else {
		updated, _ = jobfile.ThreadsafeUpdate(dir, jobfile.Update{Status: meow.StatusDone, End: &end})
	}
	c.recordHistory(updated)

	return c.moveToOutput(dir)
}

// recordHistory upserts job's current state into the history index. A nil
// history recorder or a nil job (an update that failed) is a no-op — the
// index is non-authoritative, so a missed row is recoverable by rescanning
// job_output_dir, not a correctness failure.
func (c *Conductor) recordHistory(job *meow.Job) {
	if c.history == nil || job == nil {
		return
	}
	rec := state.JobRecord{
		JobID:     job.ID,
		Pattern:   job.Pattern,
		Recipe:    job.Recipe,
		Rule:      job.Rule,
		Status:    job.Status,
		CreatedAt: job.Create,
		Error:     job.Error,
	}
	if job.Start != nil {
		rec.StartedAt = *job.Start
	}
	if job.End != nil {
		rec.FinishedAt = *job.End
	}
	_ = c.history.RecordJob(rec)
}

// checkHashGuard re-hashes the triggering file and compares it to the hash
// recorded on the event. A mismatch means a newer event has already
// scheduled a replacement job, so this one is skipped rather than run.
func (c *Conductor) checkHashGuard(job *meow.Job) (skip bool, reason string) {
	current, err := hashFile(job.Event.Path)
	if err != nil {
		// File vanished or became unreadable between event and execution;
		// treat as a guard failure rather than crashing the conductor.
		return true, fmt.Sprintf("triggering file %s could not be re-hashed: %v", job.Event.Path, err)
	}
	if current != job.Event.Hash {
		return true, fmt.Sprintf("triggering file hash changed: event hash %s, current hash %s", job.Event.Hash, current)
	}
	return false, ""
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// moveToOutput performs the atomic rename from the job queue directory to
// the job output directory — the sole mechanism by which a job leaves the
// conductor's custody. Falls back to a same-filesystem stage-and-rename
// when the two directories live on different filesystems (os.Rename
// returns a LinkError wrapping syscall.EXDEV in that case).
func (c *Conductor) moveToOutput(dir string) error {
	dest := filepath.Join(c.jobOutputDir, filepath.Base(dir))
	err := os.Rename(dir, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("moving job directory to output: %w", err)
	}

	staging := dest + ".staging"
	if err := copyDir(dir, staging); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("staging job directory to output: %w", err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("renaming staged job directory into output: %w", err)
	}
	return os.RemoveAll(dir)
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
