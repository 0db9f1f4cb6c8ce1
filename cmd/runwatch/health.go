package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/patrickspencer/runwatch/internal/client"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := configFlag(fs)
	apiURL := fs.String("api", "", "backend URL (overrides backend_url)")
	restartCmd := fs.String("restart-cmd", "", "command to run if unhealthy")
	timeout := fs.Duration("timeout", 5*time.Second, "health check timeout")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	if *apiURL != "" {
		cfg.BackendURL = *apiURL
	}

	c, err := client.New(cfg.BackendURL, client.WithTimeout(*timeout))
	if err != nil {
		return fail("%v", err)
	}
	if err := c.Health(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		return handleUnhealthy(*restartCmd)
	}
	fmt.Printf("%s is healthy\n", c.BaseURL())
	return 0
}

func handleUnhealthy(restartCmd string) int {
	if restartCmd == "" {
		return 1
	}

	fmt.Fprintf(os.Stderr, "attempting restart: %s\n", restartCmd)
	cmd := exec.Command("sh", "-c", restartCmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "restart command failed: %v\n", err)
		return 1
	}
	return 0
}
