package conductor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/colebrumley/meowd/internal/meow"
	"github.com/colebrumley/meowd/internal/security"
)

// notebookInterpreter is the thinnest possible binding to an external
// notebook executor (papermill/jupyter nbconvert): it treats the notebook
// document as opaque and delegates both parameter injection and execution
// to the external binary, rather than reimplementing a papermill-style
// cell-rewriter in Go. Callers wanting real parameter injection supply
// their own Interpreter for meow.RecipeNotebook.
type notebookInterpreter struct {
	bin     string
	timeout time.Duration
}

// NewNotebookInterpreter shells out to `jupyter nbconvert --execute`,
// leaving parameter injection to whatever convention the notebook itself
// uses (e.g. a papermill "parameters" tagged cell) — the notebook executor
// is explicitly an external collaborator, not something this package
// reimplements.
func NewNotebookInterpreter(timeout time.Duration) Interpreter {
	return &notebookInterpreter{bin: "jupyter", timeout: timeout}
}

func (n *notebookInterpreter) Kind() meow.RecipeKind { return meow.RecipeNotebook }

func (n *notebookInterpreter) Parameterize(dir string, job *meow.Job) error {
	base, err := os.ReadFile(filepath.Join(dir, "base.ipynb"))
	if err != nil {
		return fmt.Errorf("reading base notebook: %w", err)
	}
	// No in-process rewrite: the parameters file sits alongside job.ipynb
	// for the external executor's own injection convention to consume.
	return os.WriteFile(filepath.Join(dir, "job.ipynb"), base, 0o644)
}

func (n *notebookInterpreter) Execute(ctx context.Context, dir string, job *meow.Job) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, n.bin, "nbconvert", "--to", "notebook", "--execute",
		"--output", "result.ipynb", "job.ipynb")
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	scrubbed := security.ScrubOutput(string(output))
	if writeErr := os.WriteFile(filepath.Join(dir, "result.txt"), []byte(scrubbed), 0o644); writeErr != nil {
		return fmt.Errorf("writing result log: %w", writeErr)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("notebook execution timed out after %s", n.timeout)
		}
		return fmt.Errorf("notebook execution failed: %w", err)
	}
	return nil
}
