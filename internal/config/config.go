// Package config loads runwatch settings from a YAML file, an optional .env
// file and RUNWATCH_* environment variables. Settings are read once at
// startup and passed explicitly to the components that need them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/patrickspencer/runwatch/internal/scheduler"
	"github.com/patrickspencer/runwatch/internal/stats"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RUNWATCH_"

// ServerConfig controls the reference backend started by "runwatch serve".
type ServerConfig struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`
}

// Config is the top-level configuration parsed from runwatch.yaml.
type Config struct {
	// BackendURL is the base address of the job API.
	BackendURL string `yaml:"backend_url"`
	// RefreshInterval is the background poll period.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// RefreshSchedule is an optional cron expression that replaces
	// RefreshInterval.
	RefreshSchedule string `yaml:"refresh_schedule"`
	// PageSize is the number of rows per page.
	PageSize int `yaml:"page_size"`
	// StatsMode selects how tab counts are computed: remote, inline or local.
	StatsMode string `yaml:"stats_mode"`
	// RequestTimeout bounds each backend request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	Server         ServerConfig  `yaml:"server"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	var c Config
	applyDefaults(&c)
	return &c
}

func applyDefaults(c *Config) {
	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:8080"
	}
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 60 * time.Second
	}
	if c.PageSize == 0 {
		c.PageSize = 10
	}
	if c.StatsMode == "" {
		c.StatsMode = string(stats.ModeRemote)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFile = expandPath(c.LogFile)
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = "./data"
	}
	c.Server.DataDir = expandPath(c.Server.DataDir)
}

func expandPath(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return value
	}

	v = os.ExpandEnv(v)

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return v
	}

	if v == "~" {
		return home
	}
	if strings.HasPrefix(v, "~/") || strings.HasPrefix(v, "~\\") {
		return filepath.Join(home, v[2:])
	}
	return v
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays RUNWATCH_* variables onto c.
func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("BACKEND_URL"); ok {
		c.BackendURL = v
	}
	if v, ok := get("REFRESH_INTERVAL"); ok {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("%sREFRESH_INTERVAL: %w", EnvPrefix, err)
		}
		c.RefreshInterval = d
	}
	if v, ok := get("REFRESH_SCHEDULE"); ok {
		c.RefreshSchedule = v
	}
	if v, ok := get("PAGE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err)
		}
		c.PageSize = n
	}
	if v, ok := get("STATS_MODE"); ok {
		c.StatsMode = v
	}
	if v, ok := get("REQUEST_TIMEOUT"); ok {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", EnvPrefix, err)
		}
		c.RequestTimeout = d
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_FILE"); ok {
		c.LogFile = v
	}
	if v, ok := get("LISTEN"); ok {
		c.Server.Listen = v
	}
	if v, ok := get("DATA_DIR"); ok {
		c.Server.DataDir = v
	}
	return nil
}

// parseInterval accepts a Go duration ("90s") or a bare number of
// milliseconds ("60000").
func parseInterval(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend_url %q must be an absolute http(s) url", c.BackendURL)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	if _, err := scheduler.Resolve(c.RefreshInterval, c.RefreshSchedule); err != nil {
		return err
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if _, err := stats.ParseMode(c.StatsMode); err != nil {
		return fmt.Errorf("stats_mode: %w", err)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}

// DefaultLogFile is where the dashboard logs when log_file is unset.
func (c *Config) DefaultLogFile() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.Server.DataDir, "runwatch.log")
}

// DBPath is the SQLite database used by the reference backend.
func (c *Config) DBPath() string {
	return filepath.Join(c.Server.DataDir, "runwatch.db")
}

// LoadDotEnv loads the nearest .env file found in the working directory or
// up to four of its parents. Variables already set are not overridden.
func LoadDotEnv() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, godotenv.Load(envPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
