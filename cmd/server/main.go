package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/brigade/internal/config"
	"github.com/me/brigade/internal/journal"
	"github.com/me/brigade/internal/logging"
	"github.com/me/brigade/internal/menu"
	"github.com/me/brigade/internal/scheduler"
	"github.com/me/brigade/internal/server"
	"github.com/me/brigade/internal/store"
)

func main() {
	var flags config.ServerConfig

	configFile := flag.String("config", "", "Path to YAML server config file")
	flag.StringVar(&flags.Addr, "addr", "", "Listen address (default :8080)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&flags.LogFormat, "log-format", "", "Log format (text, json)")
	flag.StringVar(&flags.DBPath, "db", "", "Database path (default ~/.brigade/brigade.db)")
	flag.StringVar(&flags.JournalDir, "journal", "", "Journal directory (default ~/.brigade/journal, :memory: for none on disk)")
	flag.StringVar(&flags.MenuFile, "menu", "", "Menu file (yaml, json or jsonc) used for seeding")
	flag.BoolVar(&flags.SeedMenu, "seed-menu", false, "Seed every new workspace with the menu")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = flags.Addr
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		case "db":
			cfg.DBPath = flags.DBPath
		case "journal":
			cfg.JournalDir = flags.JournalDir
		case "menu":
			cfg.MenuFile = flags.MenuFile
		case "seed-menu":
			cfg.SeedMenu = flags.SeedMenu
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.FromFlags(cfg.LogLevel, cfg.LogFormat, *debug)

	// Resolve database and journal paths.
	if cfg.DBPath == "" || cfg.JournalDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		cfg.ResolvePaths(home)
	}
	for _, p := range []string{cfg.DBPath, cfg.JournalDir} {
		if p == config.MemoryPath {
			continue
		}
		dir := filepath.Dir(p)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", cfg.DBPath)

	journalDir := cfg.JournalDir
	if journalDir == config.MemoryPath {
		journalDir = ""
	}
	jr, err := journal.Open(journalDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(1)
	}
	defer jr.Close()
	logger.Info("journal ready", "dir", cfg.JournalDir)

	// Entries left uncommitted by a previous run were interrupted mid-operation.
	if pending, err := jr.Pending(context.Background()); err != nil {
		logger.Warn("journal scan failed", "error", err)
	} else {
		for _, e := range pending {
			logger.Warn("uncommitted journal entry", "workspace_id", e.WorkspaceID, "task_id", e.TaskID, "op", e.Op, "at", e.At)
		}
	}

	var serverOpts []server.Option
	if cfg.MenuFile != "" {
		dishes, err := menu.Load(cfg.MenuFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load menu: %v\n", err)
			os.Exit(1)
		}
		serverOpts = append(serverOpts, server.WithMenu(dishes))
		logger.Info("menu loaded", "path", cfg.MenuFile, "dishes", len(dishes))
	}

	engine := scheduler.NewEngine(st, st, logger, scheduler.WithJournal(jr))
	loop := scheduler.NewLoop(engine, jr, scheduler.Config{
		Interval:  cfg.JournalGCInterval,
		Retention: cfg.JournalRetention,
	}, logger)

	srv := server.New(cfg, st, engine, logger, serverOpts...)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := loop.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("maintenance loop stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
