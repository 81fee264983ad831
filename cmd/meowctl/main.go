// Command meowctl is the operator CLI for meowd: it initializes config
// directories, validates pattern/recipe definitions, and queries a
// running daemon's HTTP API for job history.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colebrumley/meowd/internal/config"
)

const defaultConfigDir = "/etc/meowd"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = cmdInit()
	case "list":
		err = cmdList()
	case "validate":
		err = cmdValidate(args)
	case "history":
		err = cmdHistory(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meowctl - operator CLI for the meowd event-driven workflow scheduler

Usage: meowctl <command> [options]

Commands:
  init                Initialize config/patterns/recipes directories
  list                List patterns and recipes
  validate            Validate pattern and recipe definitions
  history [rule]      Query job history from a running daemon
  help                Show this message`)
}

func loadConfig() *config.Global {
	cfg, err := config.LoadGlobal(filepath.Join(defaultConfigDir, "config.yaml"))
	if err != nil {
		return &config.Global{API: config.APIConfig{ListenAddress: "127.0.0.1:8420"}}
	}
	return cfg
}

func queryAPI(path string) ([]byte, error) {
	cfg := loadConfig()
	url := fmt.Sprintf("http://%s%s", cfg.API.ListenAddress, path)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("contacting meowd at %s: %w", cfg.API.ListenAddress, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func printTable(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	fmt.Fprintln(tw, strings.Repeat("─", 60))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func cmdInit() error {
	dirs := []string{
		defaultConfigDir,
		filepath.Join(defaultConfigDir, "patterns"),
		filepath.Join(defaultConfigDir, "recipes"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
		fmt.Printf("Created %s\n", dir)
	}

	configPath := filepath.Join(defaultConfigDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		defaultConfig := config.Global{
			JobQueue: config.JobQueueConfig{
				QueueDir:  "/var/lib/meowd/queue",
				OutputDir: "/var/lib/meowd/output",
			},
			Logging:   config.LoggingConfig{Format: "json", Level: "info"},
			Execution: config.ExecutionConfig{MaxConcurrent: 10},
			API:       config.APIConfig{Enabled: true, ListenAddress: "127.0.0.1:8420"},
		}

		data, err := yaml.Marshal(defaultConfig)
		if err != nil {
			return err
		}
		if err := os.WriteFile(configPath, data, 0o640); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", configPath)
	}

	fmt.Println("\nInitialization complete. Add patterns to:", filepath.Join(defaultConfigDir, "patterns"))
	fmt.Println("Add recipes to:", filepath.Join(defaultConfigDir, "recipes"))
	return nil
}

func cmdList() error {
	patternsDir := filepath.Join(defaultConfigDir, "patterns")
	recipesDir := filepath.Join(defaultConfigDir, "recipes")

	patterns, err := config.LoadPatternsDir(patternsDir)
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}
	recipes, err := config.LoadRecipesDir(recipesDir)
	if err != nil {
		return fmt.Errorf("loading recipes: %w", err)
	}

	var rows [][]string
	for _, p := range patterns {
		rows = append(rows, []string{p.Name, "pattern", p.Recipe})
	}
	for _, r := range recipes {
		rows = append(rows, []string{r.Name, "recipe", string(r.Kind)})
	}
	printTable([]string{"NAME", "TYPE", "DETAIL"}, rows)
	return nil
}

func cmdValidate(args []string) error {
	patternsDir := filepath.Join(defaultConfigDir, "patterns")
	recipesDir := filepath.Join(defaultConfigDir, "recipes")

	patterns, err := config.LoadPatternsDir(patternsDir)
	if err != nil {
		return err
	}
	recipes, err := config.LoadRecipesDir(recipesDir)
	if err != nil {
		return err
	}

	unresolved := 0
	for name, p := range patterns {
		if _, ok := recipes[p.Recipe]; !ok {
			fmt.Printf("pattern %q references unknown recipe %q\n", name, p.Recipe)
			unresolved++
		}
	}
	fmt.Printf("%d patterns, %d recipes, %d unresolved references\n", len(patterns), len(recipes), unresolved)
	if unresolved > 0 {
		return fmt.Errorf("%d pattern(s) reference an unknown recipe", unresolved)
	}
	return nil
}

func cmdHistory(args []string) error {
	path := "/jobs?limit=50"
	if len(args) > 0 {
		path = fmt.Sprintf("/jobs?rule=%s&limit=50", url.QueryEscape(args[0]))
	}

	body, err := queryAPI(path)
	if err != nil {
		return err
	}

	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	var rows [][]string
	for _, r := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%v", r["job_id"]),
			fmt.Sprintf("%v", r["rule"]),
			fmt.Sprintf("%v", r["status"]),
			fmt.Sprintf("%v", r["created_at"]),
		})
	}
	printTable([]string{"JOB", "RULE", "STATUS", "CREATED"}, rows)
	return nil
}
