package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"resale-ledger-go/internal/assist"
	"resale-ledger-go/internal/config"
	"resale-ledger-go/internal/database"
	"resale-ledger-go/internal/httpapi"
	"resale-ledger-go/internal/ledger"
	"resale-ledger-go/internal/logger"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize the snapshot database and load the collection
	snapshots, err := database.NewSnapshotStore(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open snapshot database", zap.Error(err))
	}
	records, found, err := snapshots.Load()
	if err != nil {
		log.Fatal("Failed to load collection snapshot", zap.Error(err))
	}
	if found {
		log.Info("Collection loaded from snapshot", zap.Int("records", len(records)))
	} else {
		log.Info("No snapshot found, starting with an empty collection")
	}

	store := ledger.NewStore(records, snapshots.Save, log.Named("store"))

	// Initialize the assist gateway client when one is configured
	var client assist.ClientInterface
	if cfg.Assist.BaseURL != "" {
		client = assist.NewClient(&cfg.Assist, log.Named("assist"))
		log.Info("Assist gateway configured", zap.String("base_url", cfg.Assist.BaseURL))
	} else {
		log.Warn("No assist gateway configured; extraction and report endpoints are disabled")
	}
	tagger := ledger.NewTagger(client, store, log.Named("tagger"))

	// Assemble the HTTP API
	api := httpapi.NewServer(store, tagger, client, time.Duration(cfg.Assist.ReportTTL)*time.Second, log.Named("http"))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.Router(),
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	go func() {
		log.Info("Listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown was not clean", zap.Error(err))
	}
	log.Info("Server has been shut down.")
}
