package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/protorefine/internal/api"
	"github.com/dgallion1/protorefine/internal/config"
	"github.com/dgallion1/protorefine/internal/dates"
	"github.com/dgallion1/protorefine/internal/intro"
	"github.com/dgallion1/protorefine/internal/pathstore"
	"github.com/dgallion1/protorefine/internal/pipeline"
	"github.com/dgallion1/protorefine/internal/refine"
	"github.com/dgallion1/protorefine/internal/registry"
	"github.com/dgallion1/protorefine/internal/reviewstore"
)

func main() {
	cfg, err := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the read-only corpus resources.
	tables, err := registry.LoadDir(cfg.MetadataDir)
	if err != nil {
		log.Error("failed to load metadata", "dir", cfg.MetadataDir, "error", err)
		os.Exit(1)
	}
	log.Info("loaded metadata",
		"members", len(tables.Members),
		"ministers", len(tables.Ministers),
		"speakers", len(tables.Speakers),
		"parties", len(tables.Parties),
	)

	patterns := intro.DefaultPatterns()
	if cfg.PatternsFile != "" {
		if patterns, err = intro.LoadPatterns(cfg.PatternsFile); err != nil {
			log.Error("failed to load intro patterns", "error", err)
			os.Exit(1)
		}
	}

	refiner := &refine.Refiner{
		Patterns: patterns,
		Tables:   tables,
		Dates:    dates.NewSwedishParser(),
		Log:      log,
	}

	store, err := reviewstore.NewStore(cfg.ReviewDBPath)
	if err != nil {
		log.Error("failed to open review store", "path", cfg.ReviewDBPath, "error", err)
		os.Exit(1)
	}

	var ps *pathstore.Client
	if cfg.PathstoreURL != "" {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, refiner, store, ps, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if ps != nil {
			ps.Close()
		}
		if err := store.Close(); err != nil {
			log.Error("closing review store", "error", err)
		}
	}()

	log.Info("starting protorefine", "port", cfg.Port, "publishing", ps != nil)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
