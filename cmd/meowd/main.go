// Command meowd runs the MEOW pipeline: one Monitor per watched directory
// feeding pattern-matched events to Handlers, which queue Jobs for
// Conductors to execute, all wired together by a Runner. It optionally
// serves a read-only HTTP API over the job history index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colebrumley/meowd/internal/api"
	"github.com/colebrumley/meowd/internal/conductor"
	"github.com/colebrumley/meowd/internal/config"
	"github.com/colebrumley/meowd/internal/handler"
	"github.com/colebrumley/meowd/internal/jobfile"
	"github.com/colebrumley/meowd/internal/logging"
	"github.com/colebrumley/meowd/internal/meow"
	"github.com/colebrumley/meowd/internal/monitor"
	"github.com/colebrumley/meowd/internal/runner"
	"github.com/colebrumley/meowd/internal/security"
	"github.com/colebrumley/meowd/internal/source"
	"github.com/colebrumley/meowd/internal/state"
)

const (
	defaultConfigPath  = "/etc/meowd/config.yaml"
	defaultPatternsDir = "/etc/meowd/patterns"
	defaultRecipesDir  = "/etc/meowd/recipes"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config.yaml")
	patternsDir := flag.String("patterns", defaultPatternsDir, "directory of pattern definitions")
	recipesDir := flag.String("recipes", defaultRecipesDir, "directory of recipe definitions")
	flag.Parse()

	if err := run(*configPath, *patternsDir, *recipesDir); err != nil {
		fmt.Fprintf(os.Stderr, "meowd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, patternsDir, recipesDir string) error {
	cfg, err := config.LoadGlobal(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.NewLogger(cfg.Logging.Format, cfg.Logging.Level, os.Stdout)
	slog.SetDefault(log)

	if err := security.ValidateFilePermissions(configPath); err != nil {
		log.Warn("config file has unsafe permissions", "path", configPath, "error", err)
	}

	for _, dir := range []string{cfg.JobQueue.QueueDir, cfg.JobQueue.OutputDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		if err := security.ValidateDirectoryPermissions(dir); err != nil {
			log.Warn("job directory has unsafe permissions", "dir", dir, "error", err)
		}
	}
	for _, dir := range cfg.Monitor.WatchDirs {
		if err := security.ValidateDirectoryPermissions(dir); err != nil {
			log.Warn("watched directory has unsafe permissions", "dir", dir, "error", err)
		}
	}

	patterns, err := config.LoadPatternsDir(patternsDir)
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}
	recipes, err := config.LoadRecipesDir(recipesDir)
	if err != nil {
		return fmt.Errorf("loading recipes: %w", err)
	}
	log.Info("loaded definitions", "patterns", len(patterns), "recipes", len(recipes))

	index, err := state.Open(cfg.StateIndex.Path)
	if err != nil {
		return fmt.Errorf("opening state index: %w", err)
	}
	defer index.Close()

	settleTime := time.Duration(cfg.Monitor.SettleSeconds) * time.Second
	pauseTime := time.Duration(cfg.Execution.PauseSeconds) * time.Second
	timeout := time.Duration(cfg.Execution.TimeoutSeconds) * time.Second

	var monitors []runner.Monitor
	var primary *monitor.Monitor
	for _, dir := range cfg.Monitor.WatchDirs {
		src, err := source.New(dir, true)
		if err != nil {
			return fmt.Errorf("creating event source for %s: %w", dir, err)
		}

		m, err := monitor.New(dir, src, settleTime, patterns, recipes, log)
		if err != nil {
			return fmt.Errorf("creating monitor for %s: %w", dir, err)
		}
		monitors = append(monitors, m)
		if primary == nil {
			primary = m
		}
	}
	if len(monitors) == 0 {
		return fmt.Errorf("no watch_dirs configured")
	}

	handlers := []runner.Handler{
		handler.New(meow.RecipeScript, cfg.JobQueue.QueueDir, pauseTime),
		handler.New(meow.RecipeShell, cfg.JobQueue.QueueDir, pauseTime),
		handler.New(meow.RecipeNotebook, cfg.JobQueue.QueueDir, pauseTime),
	}

	conductors := []runner.Conductor{
		conductor.New(conductor.NewScriptInterpreter(timeout), cfg.JobQueue.OutputDir, pauseTime, index),
		conductor.New(conductor.NewShellInterpreter(timeout), cfg.JobQueue.OutputDir, pauseTime, index),
		conductor.New(conductor.NewNotebookInterpreter(timeout), cfg.JobQueue.OutputDir, pauseTime, index),
	}

	pipeline := runner.New(monitors, handlers, conductors, jobfile.Read, log, cfg.Execution.MaxConcurrent)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline.Start(ctx)
	log.Info("meowd started", "watch_dirs", cfg.Monitor.WatchDirs)

	var httpSrv *http.Server
	if cfg.API.Enabled {
		httpSrv = newAPIServer(cfg, primary, index)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("api server stopped", "error", err)
			}
		}()
		log.Info("api server listening", "address", cfg.API.ListenAddress)
	}

	<-ctx.Done()
	log.Info("shutting down")
	pipeline.Stop()
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func newAPIServer(cfg *config.Global, rules api.RuleLister, index *state.DB) *http.Server {
	srv := api.NewServer(rules, index)
	var key []byte
	if cfg.API.JWTSigningKey != "" {
		key = []byte(cfg.API.JWTSigningKey)
	}
	return &http.Server{
		Addr:    cfg.API.ListenAddress,
		Handler: api.NewRouter(srv, key),
	}
}
