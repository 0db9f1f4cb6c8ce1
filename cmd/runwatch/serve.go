package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patrickspencer/runwatch/internal/realtime"
	"github.com/patrickspencer/runwatch/internal/store"
	"github.com/patrickspencer/runwatch/internal/web"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := configFlag(fs)
	listen := fs.String("listen", "", "listen address (overrides server.listen)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	logger := newLogger(cfg, cfg.LogFile)
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", zap.String("dir", cfg.Server.DataDir), zap.Error(err))
		return 1
	}

	st, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return 1
	}
	defer st.Close()
	logger.Info("store opened", zap.String("path", cfg.DBPath()))

	events := realtime.NewBroker()
	defer events.Close()

	srv := web.NewServer(cfg.Server.Listen, st, events, cfg.PageSize, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			return 1
		}
	}

	// Close the broker first so open event streams end before Shutdown waits.
	events.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	logger.Info("stopped")
	return 0
}
