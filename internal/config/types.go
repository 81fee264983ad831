// Package config loads meowd's global daemon configuration and the
// on-disk Pattern/Recipe definitions that get compiled into Rules.
package config

// Global is the daemon configuration loaded from config.yaml.
type Global struct {
	Monitor    MonitorConfig    `yaml:"monitor"`
	JobQueue   JobQueueConfig   `yaml:"job_queue"`
	Logging    LoggingConfig    `yaml:"logging"`
	Execution  ExecutionConfig  `yaml:"execution"`
	API        APIConfig        `yaml:"api"`
	StateIndex StateIndexConfig `yaml:"state_index"`
}

type MonitorConfig struct {
	WatchDirs     []string `yaml:"watch_dirs"`
	SettleSeconds int      `yaml:"settle_seconds"`
	RescanCron    string   `yaml:"rescan_cron"`
}

type JobQueueConfig struct {
	QueueDir  string `yaml:"queue_dir"`
	OutputDir string `yaml:"output_dir"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type ExecutionConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent"`
	TimeoutSeconds    int `yaml:"timeout_seconds"`
	PauseSeconds      int `yaml:"pause_seconds"`
}

type APIConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	JWTSigningKey string `yaml:"jwt_signing_key"` // empty disables auth
}

type StateIndexConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// PatternDef is a Pattern loaded from an individual YAML file under the
// patterns directory.
type PatternDef struct {
	Name           string             `yaml:"name"`
	TriggeringPath string             `yaml:"triggering_path"`
	TriggeringFile string             `yaml:"triggering_file"`
	Recipe         string             `yaml:"recipe"`
	EventMask      []string           `yaml:"event_mask"`
	Parameters     map[string]any     `yaml:"parameters"`
	Outputs        map[string]string  `yaml:"outputs"`
	Sweep          map[string]SweepDef `yaml:"sweep"`
}

type SweepDef struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Jump  float64 `yaml:"jump"`
}

// RecipeDef is a Recipe loaded from an individual YAML file under the
// recipes directory. Body may be given inline or via BodyFile, a path
// relative to the recipe file itself.
type RecipeDef struct {
	Name         string         `yaml:"name"`
	Kind         string         `yaml:"kind"`
	Body         string         `yaml:"body"`
	BodyFile     string         `yaml:"body_file"`
	Parameters   map[string]any `yaml:"parameters"`
	Requirements []string       `yaml:"requirements"`
}
