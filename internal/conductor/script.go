package conductor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/colebrumley/meowd/internal/meow"
	"github.com/colebrumley/meowd/internal/security"
)

// lineAssignInterpreter parameterises a recipe body by scanning it line by
// line for "NAME = value" (or "NAME=value" with no spaces, for shell)
// assignments whose NAME is a declared job parameter, and rewriting that
// line with the parameter's value substituted in — the same single-pass
// scan the reference parameteriser performs, generalised across the two
// textual recipe kinds that share its shape.
type lineAssignInterpreter struct {
	kind    meow.RecipeKind
	bin     string
	args    func(scriptPath string) []string
	spaced  bool // "NAME = value" (python) vs "NAME=value" (shell)
	timeout time.Duration
}

// NewScriptInterpreter runs parameterised Python scripts via an external
// `python3` binary, the same os/exec-a-subprocess shape the teacher's
// executor package uses to invoke its own external binary.
func NewScriptInterpreter(timeout time.Duration) Interpreter {
	return &lineAssignInterpreter{
		kind:    meow.RecipeScript,
		bin:     "python3",
		args:    func(p string) []string { return []string{p} },
		spaced:  true,
		timeout: timeout,
	}
}

// NewShellInterpreter runs parameterised shell scripts via `sh`.
func NewShellInterpreter(timeout time.Duration) Interpreter {
	return &lineAssignInterpreter{
		kind:    meow.RecipeShell,
		bin:     "sh",
		args:    func(p string) []string { return []string{p} },
		spaced:  false,
		timeout: timeout,
	}
}

func (l *lineAssignInterpreter) Kind() meow.RecipeKind { return l.kind }

func (l *lineAssignInterpreter) Parameterize(dir string, job *meow.Job) error {
	baseBody, err := os.ReadFile(filepath.Join(dir, "base"+l.kind.Extension()))
	if err != nil {
		return fmt.Errorf("reading base body: %w", err)
	}

	out := bytes.NewBuffer(nil)
	scanner := bufio.NewScanner(bytes.NewReader(baseBody))
	for scanner.Scan() {
		out.WriteString(l.rewrite(scanner.Text(), job.Parameters))
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning base body: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, "job"+l.kind.Extension()), out.Bytes(), 0o644)
}

func (l *lineAssignInterpreter) rewrite(line string, params map[string]any) string {
	if !strings.Contains(line, "=") {
		return line
	}
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return line
	}
	name := strings.TrimSpace(parts[0])
	value, ok := params[name]
	if !ok {
		return line
	}
	if l.spaced {
		return fmt.Sprintf("%s = %s", name, literal(value))
	}
	return fmt.Sprintf("%s=%s", name, literal(value))
}

// literal renders a value the way a script body can read it back: quoted
// strings, bare numbers/bools.
func literal(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (l *lineAssignInterpreter) Execute(ctx context.Context, dir string, job *meow.Job) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	scriptPath := filepath.Join(dir, "job"+l.kind.Extension())
	cmd := exec.CommandContext(ctx, l.bin, l.args(scriptPath)...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	scrubbed := security.ScrubOutput(string(output))
	if writeErr := os.WriteFile(filepath.Join(dir, "result"+l.kind.Extension()), []byte(scrubbed), 0o644); writeErr != nil {
		return fmt.Errorf("writing result file: %w", writeErr)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("job timed out after %s", l.timeout)
		}
		return fmt.Errorf("interpreter exited with error: %w", err)
	}
	return nil
}
