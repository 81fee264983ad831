package handler

import (
	"os"
	"path/filepath"

	"github.com/colebrumley/meowd/internal/meow"
)

// writeBaseFile writes the recipe's raw, unparameterised body to
// base.<ext> inside the job directory — the conductor later produces the
// parameterised job.<ext> from it.
func writeBaseFile(dir string, recipe *meow.Recipe) error {
	path := filepath.Join(dir, "base"+recipe.Kind.Extension())
	return os.WriteFile(path, []byte(recipe.Body), 0o644)
}
