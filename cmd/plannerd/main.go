// Command plannerd runs the planner HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyp0633/planner/internal/config"
	"github.com/cyp0633/planner/server"
	authmem "github.com/cyp0633/planner/server/auth/memory"
	"github.com/cyp0633/planner/server/storage"
	"github.com/cyp0633/planner/server/storage/memory"
	"github.com/cyp0633/planner/server/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "planner.yaml", "path to the configuration file")
	debug := flag.Bool("debug", false, "force debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := parseLevel(cfg.LogLevel)
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var ruleStore storage.RuleStore
	var taskStore storage.TaskStore
	if cfg.DBPath != "" {
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		ruleStore, taskStore = store, store
		logger.Info("using sqlite store", "path", cfg.DBPath)
	} else {
		store := memory.New()
		ruleStore, taskStore = store, store
		logger.Warn("no db_path configured, using in-memory demo store")
	}

	users := authmem.New(authmem.WithLogger(logger))
	for _, u := range cfg.Users {
		if err := users.AddUser(u.Username, u.Password); err != nil {
			logger.Error("failed to add user", "username", u.Username, "error", err)
			os.Exit(1)
		}
	}

	handler := server.NewHandler(ruleStore, taskStore, users,
		server.WithLogger(logger),
		server.WithRealm(cfg.Realm))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
