package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/patrickspencer/runwatch/internal/runner"
)

func runWrap(args []string) int {
	fs := flag.NewFlagSet("wrap", flag.ExitOnError)
	configPath := configFlag(fs)
	name := fs.String("job", "", "job name to report (required)")
	runID := fs.String("run", "", "run id to report (default: a new ULID)")
	backend := fs.String("api", "", "backend URL (overrides backend_url)")
	timeout := fs.Duration("timeout", 0, "optional command timeout")

	// Find "--" separator for the wrapped command.
	var wrapArgs, cmdArgs []string
	for i, a := range args {
		if a == "--" {
			wrapArgs = args[:i]
			cmdArgs = args[i+1:]
			break
		}
	}
	if cmdArgs == nil {
		wrapArgs = args
	}
	fs.Parse(wrapArgs)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "error: -job is required")
		fs.Usage()
		return 1
	}
	if len(cmdArgs) == 0 {
		fmt.Fprintln(os.Stderr, "error: no command specified after --")
		fs.Usage()
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	if *backend != "" {
		cfg.BackendURL = *backend
	}

	logger := newLogger(cfg, cfg.LogFile)
	defer logger.Sync()

	c, err := newClient(cfg, logger)
	if err != nil {
		return fail("%v", err)
	}

	// Terminal signals reach the child through the process group. Catching
	// them here keeps runwatch alive long enough to report the outcome.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	w := runner.NewWrapper(runner.NewRunner(), c, logger)
	result := w.Run(context.Background(), runner.Job{Name: *name, RunID: *runID}, cmdArgs, runner.RunOptions{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Timeout: *timeout,
	})
	if result.Error != "" && result.ExitCode == -1 {
		fmt.Fprintf(os.Stderr, "runwatch wrap: %s\n", result.Error)
		return 1
	}
	return result.ExitCode
}
