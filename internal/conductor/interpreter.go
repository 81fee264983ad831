// Package conductor executes queued jobs: it re-hashes the triggering file
// to guard against stale events, parameterises and runs the job body
// through a pluggable Interpreter, records the outcome on job.yml, and
// atomically hands the job directory off to the output directory.
package conductor

import (
	"context"

	"github.com/colebrumley/meowd/internal/meow"
)

// Interpreter is the external collaborator boundary §1 calls out: the
// concrete notebook/shell/script execution engines are not this package's
// concern, only the contract a Conductor drives them through.
type Interpreter interface {
	// Kind reports which recipe kind this interpreter runs.
	Kind() meow.RecipeKind
	// Parameterize writes dir/job.<ext> from dir/base.<ext> and the job's
	// expanded parameters.
	Parameterize(dir string, job *meow.Job) error
	// Execute runs dir/job.<ext>, writing dir/result.<ext>, and returns a
	// non-nil error if the underlying code failed.
	Execute(ctx context.Context, dir string, job *meow.Job) error
}
