package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"sheetsearch/internal/config"
	"sheetsearch/internal/http"
	"sheetsearch/internal/importer"
	"sheetsearch/internal/search"
	"sheetsearch/internal/session"
	"sheetsearch/internal/storage"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level, format, and
	// optional rotating log file for long-running local use.
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))

	// Open the store handle once; the session controller probes it with
	// bounded retries and owns the ready/degraded state.
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database handle: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	store := storage.NewStore(db)
	slog.Info("Database handle opened", "path", cfg.DBPath)

	engine := search.NewEngine(store, cfg.MaxResults, cfg.OverfetchFactor)

	pipeline := importer.NewPipeline(store, cfg.MaxUploadBytes, func(p importer.Progress) {
		slog.Debug("import progress",
			"job_id", p.JobID, "state", string(p.State), "percent", p.Percent, "message", p.Message)
	})

	ctrl := session.NewController(store, engine, pipeline, session.Options{
		Debounce:      time.Duration(cfg.DebounceMs) * time.Millisecond,
		RetryAttempts: cfg.StoreRetries,
		RetryBackoff:  time.Duration(cfg.StoreBackoffMs) * time.Millisecond,
		InitStore: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return err
			}
			return storage.Migrate(ctx, db)
		},
	})

	// Probe the store in the background so the API comes up immediately;
	// until Ready, upload and search answer storage_unavailable.
	go func() {
		if err := ctrl.Init(context.Background()); err != nil {
			slog.Error("Store initialization failed, session degraded", "error", err)
		}
	}()

	router := http.NewRouter(&http.Deps{
		Session: ctrl,
		Store:   store,
	})

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr,
		"max_results", cfg.MaxResults, "max_upload_bytes", cfg.MaxUploadBytes)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
