package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrEmptyInput reports that no file bytes were supplied to Extract.
var ErrEmptyInput = errors.New("empty PDF bytes provided")

// ErrExtractionFailed is the terminal failure after all attempts are
// exhausted. It wraps the last underlying error's description.
var ErrExtractionFailed = errors.New("extraction failed")

// ExtractorConfig tunes the retry behaviour of the extraction client.
type ExtractorConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// Extractor wraps the external model call with bounded retries for transient
// failures and response normalization. The Generator is injected so the
// Vertex client can be swapped for a fake in tests.
type Extractor struct {
	gen          Generator
	instructions string
	config       ExtractorConfig
}

// NewExtractor builds an extraction client around gen.
func NewExtractor(gen Generator, instructions string, cfg ExtractorConfig) *Extractor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff < 0 {
		cfg.BaseBackoff = 1500 * time.Millisecond
	}
	return &Extractor{gen: gen, instructions: instructions, config: cfg}
}

// Extract calls the model with the PDF bytes and returns the cleaned,
// normalized payload. Only failures matching a known-transient signature are
// retried; anything else aborts immediately.
func (e *Extractor) Extract(ctx context.Context, fileBytes []byte) (map[string]any, error) {
	if len(fileBytes) == 0 {
		return nil, ErrEmptyInput
	}

	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		text, err := e.gen.Generate(ctx, fileBytes, e.instructions)
		if err == nil {
			parsed := parseOrRaw(text)
			parsed = cleanFencedResponse(parsed)
			normalizeStockExchangeListing(parsed)
			return parsed, nil
		}

		lastErr = err
		if attempt >= e.config.MaxAttempts || !isRetryableError(err) {
			break
		}
		backoff := e.config.BaseBackoff * (1 << (attempt - 1))
		slog.Warn("Model call failed with retryable error, will retry.",
			"attempt", attempt,
			"maxAttempts", e.config.MaxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, lastErr)
}

// retryMarkers are the failure signatures considered transient. Anything
// else is treated as permanent for this attempt run.
var retryMarkers = []string{
	"connection reset",
	"forcibly closed by the remote host",
	"timed out",
	"timeout",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"429",
	"500",
	"503",
}

func isRetryableError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range retryMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
