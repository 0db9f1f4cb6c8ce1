// Command runwatch monitors batch job executions: an interactive dashboard,
// a one-shot listing, a command wrapper that reports runs, and a reference
// backend.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/patrickspencer/runwatch/internal/client"
	"github.com/patrickspencer/runwatch/internal/config"
	"github.com/patrickspencer/runwatch/internal/logging"
	"github.com/patrickspencer/runwatch/internal/stats"
)

const defaultConfigPath = "runwatch.yaml"

func main() {
	args := os.Args[1:]
	cmd := "watch"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "watch":
		os.Exit(runWatch(args))
	case "list":
		os.Exit(runList(args))
	case "serve":
		os.Exit(runServe(args))
	case "wrap":
		os.Exit(runWrap(args))
	case "health":
		os.Exit(runHealth(args))
	case "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: runwatch <command> [flags]

commands:
  watch    interactive dashboard (default)
  list     print one page of job executions
  serve    run the reference job API backend
  wrap     run a command and report it as a job execution
  health   probe the backend health endpoint
`)
}

// loadConfig loads .env, then the config file named by -config.
func loadConfig(path string) (*config.Config, error) {
	if _, err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", defaultConfigPath, "path to config file")
}

func newLogger(cfg *config.Config, path string) *zap.Logger {
	logger, err := logging.New(cfg.LogLevel, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; logging to stderr\n", err)
		logger, _ = zap.NewProduction()
	}
	return logger
}

func newClient(cfg *config.Config, logger *zap.Logger) (*client.Client, error) {
	return client.New(cfg.BackendURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(logger),
	)
}

func newAggregator(cfg *config.Config, c *client.Client) (stats.Aggregator, error) {
	mode, err := stats.ParseMode(cfg.StatsMode)
	if err != nil {
		return nil, err
	}
	return stats.New(mode, c)
}

func fail(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	return 1
}

// now is overridable in tests.
var now = time.Now
