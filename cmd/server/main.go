// Command server runs the BRSR document pipeline API: PDF upload, background
// extraction, status tracking, and spreadsheet export.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Praneeth-2602/brsr-backend/internal/auth"
	"github.com/Praneeth-2602/brsr-backend/internal/config"
	"github.com/Praneeth-2602/brsr-backend/internal/gcp"
	"github.com/Praneeth-2602/brsr-backend/internal/server"
	"github.com/Praneeth-2602/brsr-backend/internal/services"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on process environment.")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blob, err := gcp.NewBlobStore(ctx, gcp.BlobStoreConfig{
		Bucket:      cfg.StorageBucket,
		MaxAttempts: cfg.UploadMaxAttempts,
		BaseBackoff: cfg.UploadBaseBackoff,
	})
	if err != nil {
		slog.Error("Failed to create storage client", "error", err)
		os.Exit(1)
	}

	fsClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Failed to create Firestore client", "error", err)
		os.Exit(1)
	}
	defer fsClient.Close()
	store := gcp.NewDocumentStore(fsClient, cfg.FirestoreCollection)

	vertex, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.GeminiModel)
	if err != nil {
		slog.Error("Failed to create Vertex AI client", "error", err)
		os.Exit(1)
	}
	defer vertex.Close()

	extractor := services.NewExtractor(vertex, gcp.ExtractorUserPrompt, services.ExtractorConfig{
		MaxAttempts: cfg.ExtractMaxAttempts,
		BaseBackoff: cfg.ExtractBaseBackoff,
	})

	ingestion := services.NewIngestionService(blob, store, extractor, services.IngestionConfig{
		QueueWorkers:  cfg.QueueWorkers,
		QueueCapacity: cfg.QueueCapacity,
	})

	sweeper := services.NewSweeper(store, services.SweeperConfig{
		Interval:     cfg.SweepInterval,
		PendingAfter: cfg.SweepPendingAfter,
	})
	go sweeper.Run(ctx)

	exporter := services.NewExportService(store)
	verifier := auth.NewHMACVerifier(cfg.AuthSecret)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewServer(ingestion, store, exporter, verifier).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server listening.", "addr", cfg.HTTPAddr, "bucket", cfg.StorageBucket, "model", cfg.GeminiModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received, draining.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	ingestion.Shutdown(shutdownCtx)
	sweeper.Wait()
	slog.Info("Shutdown complete.")
}
