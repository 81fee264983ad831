package conductor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/colebrumley/meowd/internal/jobfile"
	"github.com/colebrumley/meowd/internal/meow"
)

// fakeInterpreter lets conductor tests drive Execute's state machine without
// shelling out to a real interpreter binary.
type fakeInterpreter struct {
	kind          meow.RecipeKind
	parameterizeErr error
	executeErr      error
	parameterized   bool
	executed        bool
}

func (f *fakeInterpreter) Kind() meow.RecipeKind { return f.kind }

func (f *fakeInterpreter) Parameterize(dir string, job *meow.Job) error {
	f.parameterized = true
	return f.parameterizeErr
}

func (f *fakeInterpreter) Execute(ctx context.Context, dir string, job *meow.Job) error {
	f.executed = true
	return f.executeErr
}

func writeQueuedJob(t *testing.T, queueDir string, job *meow.Job) string {
	t.Helper()
	dir := jobfile.Dir(queueDir, job.ID)
	if err := jobfile.Create(dir, job, job.Parameters); err != nil {
		t.Fatalf("jobfile.Create() error = %v", err)
	}
	if _, err := jobfile.ThreadsafeUpdate(dir, jobfile.Update{Status: meow.StatusQueued}); err != nil {
		t.Fatalf("jobfile.ThreadsafeUpdate() error = %v", err)
	}
	return dir
}

func TestConductor_Execute_Success(t *testing.T) {
	queueDir, outputDir := t.TempDir(), t.TempDir()
	interp := &fakeInterpreter{kind: meow.RecipeScript}
	c := New(interp, outputDir, 0, nil)

	job := &meow.Job{ID: "job_1", JobType: meow.RecipeScript}
	dir := writeQueuedJob(t, queueDir, job)

	if err := c.Execute(context.Background(), dir); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !interp.parameterized || !interp.executed {
		t.Error("Execute() did not drive Parameterize/Execute on the interpreter")
	}

	finalDir := filepath.Join(outputDir, "job_1")
	finalJob, err := jobfile.Read(finalDir)
	if err != nil {
		t.Fatalf("Read() of moved job error = %v", err)
	}
	if finalJob.Status != meow.StatusDone {
		t.Errorf("Execute() left status %q, want %q", finalJob.Status, meow.StatusDone)
	}
	if finalJob.End == nil {
		t.Error("Execute() did not set End timestamp on success")
	}
}

func TestConductor_Execute_InterpreterFailure(t *testing.T) {
	queueDir, outputDir := t.TempDir(), t.TempDir()
	interp := &fakeInterpreter{kind: meow.RecipeScript, executeErr: os.ErrInvalid}
	c := New(interp, outputDir, 0, nil)

	job := &meow.Job{ID: "job_1", JobType: meow.RecipeScript}
	dir := writeQueuedJob(t, queueDir, job)

	if err := c.Execute(context.Background(), dir); err != nil {
		t.Fatalf("Execute() error = %v, want nil (failure recorded on job, not returned)", err)
	}

	finalJob, err := jobfile.Read(filepath.Join(outputDir, "job_1"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if finalJob.Status != meow.StatusFailed {
		t.Errorf("Execute() status = %q, want %q", finalJob.Status, meow.StatusFailed)
	}
	if finalJob.Error == "" {
		t.Error("Execute() did not record an error message on failure")
	}
}

func TestConductor_Execute_HashGuardSkipsStaleJob(t *testing.T) {
	queueDir, outputDir := t.TempDir(), t.TempDir()
	interp := &fakeInterpreter{kind: meow.RecipeScript}
	c := New(interp, outputDir, 0, nil)

	triggerPath := filepath.Join(t.TempDir(), "trigger.csv")
	if err := os.WriteFile(triggerPath, []byte("original"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	job := &meow.Job{
		ID:      "job_1",
		JobType: meow.RecipeScript,
		Event:   meow.JobEvent{Path: triggerPath, Hash: "stale-hash-that-will-never-match"},
	}
	dir := writeQueuedJob(t, queueDir, job)

	if err := c.Execute(context.Background(), dir); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if interp.executed {
		t.Error("Execute() ran the interpreter despite a hash mismatch")
	}

	finalJob, err := jobfile.Read(filepath.Join(outputDir, "job_1"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if finalJob.Status != meow.StatusSkipped {
		t.Errorf("Execute() status = %q, want %q for stale trigger hash", finalJob.Status, meow.StatusSkipped)
	}
}

func TestConductor_Execute_RejectsMismatchedKind(t *testing.T) {
	queueDir, outputDir := t.TempDir(), t.TempDir()
	interp := &fakeInterpreter{kind: meow.RecipeScript}
	c := New(interp, outputDir, 0, nil)

	job := &meow.Job{ID: "job_1", JobType: meow.RecipeShell}
	dir := writeQueuedJob(t, queueDir, job)

	if err := c.Execute(context.Background(), dir); err == nil {
		t.Fatal("Execute() error = nil, want ErrRouting for mismatched job type")
	}
}

func TestConductor_Accepts(t *testing.T) {
	c := New(&fakeInterpreter{kind: meow.RecipeScript}, t.TempDir(), 0, nil)
	if !c.Accepts(&meow.Job{JobType: meow.RecipeScript}) {
		t.Error("Accepts() = false, want true for matching job type")
	}
	if c.Accepts(&meow.Job{JobType: meow.RecipeShell}) {
		t.Error("Accepts() = true, want false for mismatched job type")
	}
	if c.Accepts(nil) {
		t.Error("Accepts(nil) = true, want false")
	}
}
