package main

import (
	"context"
	"flag"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/patrickspencer/runwatch/internal/monitor"
	"github.com/patrickspencer/runwatch/internal/scheduler"
	"github.com/patrickspencer/runwatch/internal/tui"
	"github.com/patrickspencer/runwatch/internal/view"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := configFlag(fs)
	backend := fs.String("api", "", "backend URL (overrides backend_url)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	if *backend != "" {
		cfg.BackendURL = *backend
	}

	// The terminal belongs to the dashboard, so logs always go to a file.
	logger := newLogger(cfg, cfg.DefaultLogFile())
	defer logger.Sync()

	c, err := newClient(cfg, logger)
	if err != nil {
		return fail("%v", err)
	}
	agg, err := newAggregator(cfg, c)
	if err != nil {
		return fail("%v", err)
	}
	schedule, err := scheduler.Resolve(cfg.RefreshInterval, cfg.RefreshSchedule)
	if err != nil {
		return fail("%v", err)
	}

	engine := monitor.New(c, agg, monitor.Options{
		Schedule: schedule,
		PageSize: cfg.PageSize,
		Logger:   logger,
	})
	defer engine.Close()

	model := tui.New(engine, tui.Options{
		RefreshCaption: view.RefreshCaption(cfg.RefreshInterval, cfg.RefreshSchedule),
	})
	defer model.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Activate(ctx)

	logger.Info("dashboard started",
		zap.String("backend", c.BaseURL()),
		zap.String("stats_mode", string(agg.Mode())),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
	)
	start := time.Now()
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fail("dashboard: %v", err)
	}
	logger.Info("dashboard stopped", zap.Duration("uptime", time.Since(start)))
	return 0
}
