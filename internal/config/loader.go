package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/colebrumley/meowd/internal/meow"
)

// LoadGlobal loads the daemon's global configuration from a YAML file.
func LoadGlobal(path string) (*Global, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Global
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyGlobalDefaults(&cfg)
	return &cfg, nil
}

func applyGlobalDefaults(cfg *Global) {
	if cfg.Monitor.SettleSeconds <= 0 {
		cfg.Monitor.SettleSeconds = 2
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Execution.MaxConcurrent <= 0 {
		cfg.Execution.MaxConcurrent = 10
	}
	if cfg.API.ListenAddress == "" {
		cfg.API.ListenAddress = "127.0.0.1:8420"
	}
	if cfg.StateIndex.Path == "" {
		cfg.StateIndex.Path = filepath.Join(cfg.JobQueue.OutputDir, ".meowd", "state.db")
	}
	if cfg.StateIndex.RetentionDays <= 0 {
		cfg.StateIndex.RetentionDays = 90
	}
}

// LoadPattern loads and validates a single Pattern definition file.
func LoadPattern(path string) (*meow.Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}

	var def PatternDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing pattern file: %w", err)
	}

	sweep := make(map[string]meow.SweepAxis, len(def.Sweep))
	for name, s := range def.Sweep {
		sweep[name] = meow.SweepAxis{Start: s.Start, Stop: s.Stop, Jump: s.Jump}
	}

	pattern, err := meow.NewPattern(def.Name, def.TriggeringPath, def.TriggeringFile, def.Recipe,
		def.EventMask, def.Parameters, def.Outputs, sweep)
	if err != nil {
		return nil, fmt.Errorf("validating pattern in %s: %w", filepath.Base(path), err)
	}
	return pattern, nil
}

// LoadPatternsDir loads every Pattern from a directory, skipping and
// warning on any file that fails to parse or validate.
func LoadPatternsDir(dir string) (map[string]*meow.Pattern, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading patterns directory: %w", err)
	}

	patterns := make(map[string]*meow.Pattern)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		pattern, err := LoadPattern(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("skipping invalid pattern", "file", entry.Name(), "error", err)
			continue
		}
		patterns[pattern.Name] = pattern
	}

	return patterns, nil
}

// LoadRecipe loads and validates a single Recipe definition file. A
// BodyFile is resolved relative to the recipe file's own directory.
func LoadRecipe(path string) (*meow.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe file: %w", err)
	}

	var def RecipeDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing recipe file: %w", err)
	}

	body := def.Body
	if def.BodyFile != "" {
		bodyPath := filepath.Join(filepath.Dir(path), def.BodyFile)
		raw, err := os.ReadFile(bodyPath)
		if err != nil {
			return nil, fmt.Errorf("reading recipe body_file: %w", err)
		}
		body = string(raw)
	}

	var kind meow.RecipeKind
	switch def.Kind {
	case "script", "":
		kind = meow.RecipeScript
	case "notebook":
		kind = meow.RecipeNotebook
	case "shell":
		kind = meow.RecipeShell
	default:
		return nil, fmt.Errorf("unknown recipe kind %q in %s", def.Kind, filepath.Base(path))
	}

	recipe, err := meow.NewRecipe(def.Name, kind, body, def.Parameters, def.Requirements)
	if err != nil {
		return nil, fmt.Errorf("validating recipe in %s: %w", filepath.Base(path), err)
	}
	return recipe, nil
}

// LoadRecipesDir loads every Recipe from a directory, skipping and
// warning on any file that fails to parse or validate.
func LoadRecipesDir(dir string) (map[string]*meow.Recipe, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading recipes directory: %w", err)
	}

	recipes := make(map[string]*meow.Recipe)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		recipe, err := LoadRecipe(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("skipping invalid recipe", "file", entry.Name(), "error", err)
			continue
		}
		recipes[recipe.Name] = recipe
	}

	return recipes, nil
}
