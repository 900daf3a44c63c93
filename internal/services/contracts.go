package services

import (
	"context"
	"time"

	"github.com/Praneeth-2602/brsr-backend/internal/models"
)

// BlobStore is the durable file storage the pipeline uploads to and
// downloads from.
type BlobStore interface {
	// Upload stores data under objectName and returns a retrievable URL.
	// An already-existing object surfaces as gcp.ErrDuplicateObject.
	Upload(ctx context.Context, objectName string, data []byte) (string, error)
	// Download fetches the bytes a previously returned URL refers to.
	Download(ctx context.Context, fileURL string) ([]byte, error)
}

// DocumentStore is the keyed record store for document lifecycle state.
// Status transitions are atomic partial merges; reads are owner-scoped.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) (string, error)
	Get(ctx context.Context, ownerID, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
	GetByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.Document, error)
	ExistsByFileName(ctx context.Context, ownerID, fileName string) (bool, error)
	MarkCompleted(ctx context.Context, id string, payload map[string]any, parsedAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMessage string, parsedAt time.Time) error
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.Document, error)
}

// Generator is the external model call: file bytes plus instructions in,
// raw response text out.
type Generator interface {
	Generate(ctx context.Context, fileBytes []byte, instructions string) (string, error)
}

// Queue schedules background extraction jobs. Best effort only: no
// durability across restarts.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
