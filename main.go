package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/affiliatehq/reporting-service/internal/config"
	"github.com/affiliatehq/reporting-service/internal/impact"
	"github.com/affiliatehq/reporting-service/internal/models"
	"github.com/affiliatehq/reporting-service/internal/pipeline"
	"github.com/affiliatehq/reporting-service/internal/poller"
	"github.com/affiliatehq/reporting-service/internal/rules"
	"github.com/affiliatehq/reporting-service/internal/server"
	"github.com/affiliatehq/reporting-service/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize the durable rule-store backend
	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}
	defer store.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ruleStore := rules.NewStore(ctx, store, cfg.Batch.DefaultTeam)
	client := impact.NewClient(cfg.Impact)
	jobPoller := poller.NewPoller(cfg.Poller)
	pipe := pipeline.New(client, jobPoller, ruleStore, cfg.Batch)
	registry := pipeline.NewRegistry(50)

	// Initialize HTTP server for API endpoints
	httpServer := server.NewServer(cfg.Server, client, pipe, registry, ruleStore, cfg.Batch.ReportIDs)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.Server.Port)
		if err := httpServer.Start(); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Start the batch scheduler
	go func() {
		if len(cfg.Batch.ReportIDs) == 0 {
			log.Println("No report IDs configured; batch scheduler idle")
			return
		}
		log.Printf("Starting batch scheduler for %d reports (interval %s)",
			len(cfg.Batch.ReportIDs), cfg.Batch.Interval)
		if err := pipe.Start(ctx, func(batch *models.BatchResult) {
			registry.Record(batch)
			log.Printf("batch %s finished: %d succeeded, %d failed",
				batch.RunID, len(batch.Succeeded), len(batch.Failed))
		}); err != nil && err != context.Canceled {
			log.Printf("Batch scheduler error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutdown signal received, gracefully shutting down...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown services
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	cancel() // Cancel the batch scheduler context
	log.Println("Shutdown complete")
}
