package services

import (
	"context"
	"log/slog"
	"time"
)

// staleMessage is written to records the sweep gives up on.
const staleMessage = "extraction did not complete; task lost before reaching a terminal status"

// SweeperConfig tunes the reconciliation loop.
type SweeperConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// PendingAfter is how old a pending record must be before the sweep
	// fails it. It must comfortably exceed the longest plausible
	// extraction, retries included.
	PendingAfter time.Duration
}

// Sweeper periodically fails pending records whose extraction task was lost,
// for example to a crash between upload and the terminal status write.
// Without it those records would stay pending forever.
type Sweeper struct {
	store  DocumentStore
	config SweeperConfig
	done   chan struct{}
}

// NewSweeper builds a sweeper over the record store.
func NewSweeper(store DocumentStore, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.PendingAfter <= 0 {
		cfg.PendingAfter = 30 * time.Minute
	}
	return &Sweeper{store: store, config: cfg, done: make(chan struct{})}
}

// Run loops until ctx is cancelled. Call it on its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Wait blocks until Run has returned.
func (s *Sweeper) Wait() {
	<-s.done
}

// sweep fails every pending record older than the configured threshold.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.config.PendingAfter)
	stale, err := s.store.ListStalePending(ctx, cutoff)
	if err != nil {
		slog.Error("Stale-pending sweep query failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	slog.Warn("Found stale pending documents.", "count", len(stale), "cutoff", cutoff.Format(time.RFC3339))
	for _, doc := range stale {
		if err := s.store.MarkFailed(ctx, doc.ID, staleMessage, time.Now().UTC()); err != nil {
			slog.Error("Failed to fail stale document", "documentId", doc.ID, "error", err)
			continue
		}
		slog.Info("Marked stale document as failed.", "documentId", doc.ID, "fileName", doc.FileName)
	}
}
