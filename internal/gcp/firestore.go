package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Praneeth-2602/brsr-backend/internal/models"
)

// ErrNotFound reports that no document matched the id and owner.
var ErrNotFound = errors.New("document not found")

// NewFirestoreClient creates and returns a new Firestore client for the given
// project ID. It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// DocumentStore persists document records in a Firestore collection. All
// queries carry the owner filter; status transitions are single-round-trip
// partial merges so concurrent background tasks never contend.
type DocumentStore struct {
	client     *firestore.Client
	collection string
}

// NewDocumentStore wraps an existing Firestore client.
func NewDocumentStore(client *firestore.Client, collection string) *DocumentStore {
	if collection == "" {
		collection = "documents"
	}
	return &DocumentStore{client: client, collection: collection}
}

func (s *DocumentStore) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// Create inserts a new record and returns its generated id.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) (string, error) {
	ref, _, err := s.col().Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create document record: %w", err)
	}
	return ref.ID, nil
}

// Get fetches one record by id, scoped to the owner. A missing record or an
// owner mismatch both report ErrNotFound; callers cannot distinguish them.
func (s *DocumentStore) Get(ctx context.Context, ownerID, id string) (*models.Document, error) {
	snap, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch document %s: %w", id, err)
	}
	doc, err := decodeSnapshot(snap)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return doc, nil
}

// ListByOwner returns all records owned by ownerID, newest first.
func (s *DocumentStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	it := s.col().
		Where("ownerId", "==", ownerID).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer it.Stop()

	var docs []*models.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list documents for owner: %w", err)
		}
		doc, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// GetByIDs fetches the given ids in one batch. Ids that do not resolve, or
// that belong to another owner, are silently dropped. The returned order is
// not guaranteed to match the input order.
func (s *DocumentStore) GetByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.Document, error) {
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, s.col().Doc(id))
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to batch-fetch documents: %w", err)
	}

	docs := make([]*models.Document, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		doc, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		if doc.OwnerID != ownerID {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ExistsByFileName reports whether the owner already has a record for the
// given file name. Used as the duplicate pre-check before uploading.
func (s *DocumentStore) ExistsByFileName(ctx context.Context, ownerID, fileName string) (bool, error) {
	snaps, err := s.col().
		Where("ownerId", "==", ownerID).
		Where("fileName", "==", fileName).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return false, fmt.Errorf("failed to query for duplicate file name: %w", err)
	}
	return len(snaps) > 0, nil
}

// MarkCompleted atomically sets the terminal completed state with the
// extracted payload. Single round trip; no read-modify-write.
func (s *DocumentStore) MarkCompleted(ctx context.Context, id string, payload map[string]any, parsedAt time.Time) error {
	_, err := s.col().Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: models.StatusCompleted},
		{Path: "extractedJson", Value: payload},
		{Path: "parsedAt", Value: parsedAt},
	})
	if err != nil {
		return fmt.Errorf("failed to mark document %s completed: %w", id, err)
	}
	return nil
}

// MarkFailed atomically sets the terminal failed state with the error
// description.
func (s *DocumentStore) MarkFailed(ctx context.Context, id string, errMessage string, parsedAt time.Time) error {
	_, err := s.col().Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: models.StatusFailed},
		{Path: "errorMessage", Value: errMessage},
		{Path: "parsedAt", Value: parsedAt},
	})
	if err != nil {
		return fmt.Errorf("failed to mark document %s failed: %w", id, err)
	}
	return nil
}

// ListStalePending returns pending records created before the cutoff,
// across all owners. Feeds the reconciliation sweep.
func (s *DocumentStore) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.Document, error) {
	it := s.col().
		Where("status", "==", models.StatusPending).
		Where("createdAt", "<", cutoff).
		Documents(ctx)
	defer it.Stop()

	var docs []*models.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list stale pending documents: %w", err)
		}
		doc, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*models.Document, error) {
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}
