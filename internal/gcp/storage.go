package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// ErrDuplicateObject reports that the object key already exists in the
// bucket. It is not a failure: callers treat the file as already uploaded
// and must not overwrite it.
var ErrDuplicateObject = errors.New("object already exists in bucket")

// ErrInvalidReference reports a file URL that does not point into the
// configured bucket.
var ErrInvalidReference = errors.New("invalid storage reference")

// BlobStoreConfig tunes the retry behaviour of the blob store client.
type BlobStoreConfig struct {
	Bucket      string
	MaxAttempts int
	BaseBackoff time.Duration
}

// BlobStore wraps a GCS bucket with bounded-retry upload/download and
// duplicate detection.
type BlobStore struct {
	client *storage.Client
	config BlobStoreConfig
}

// NewBlobStore creates a storage client for the configured bucket.
func NewBlobStore(ctx context.Context, cfg BlobStoreConfig) (*BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket must be provided to create a blob store")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	return &BlobStore{client: client, config: cfg}, nil
}

// Upload writes data to objectName only if it does not already exist and
// returns the public URL of the object. Transient failures are retried with
// exponential backoff; an existing object surfaces as ErrDuplicateObject
// immediately, without retrying.
func (b *BlobStore) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	backoff := b.config.BaseBackoff
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		err := b.writeOnce(ctx, objectName, data)
		if err == nil {
			return b.ObjectURL(objectName), nil
		}
		if isPreconditionFailed(err) {
			return "", fmt.Errorf("upload %s: %w", objectName, ErrDuplicateObject)
		}

		lastErr = err
		if attempt == b.config.MaxAttempts {
			break
		}
		slog.Warn("Upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", attempt,
			"maxAttempts", b.config.MaxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

func (b *BlobStore) writeOnce(ctx context.Context, objectName string, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	writer := b.client.Bucket(b.config.Bucket).Object(objectName).
		If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// Download fetches the object a public URL refers to. The object path is
// resolved by locating the bucket segment inside the URL.
func (b *BlobStore) Download(ctx context.Context, fileURL string) ([]byte, error) {
	objectName, err := b.objectPath(fileURL)
	if err != nil {
		return nil, err
	}

	backoff := b.config.BaseBackoff
	var lastErr error
	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		data, err := b.readOnce(ctx, objectName)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt == b.config.MaxAttempts {
			break
		}
		slog.Warn("Download failed, will retry.",
			"gcsObject", objectName,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("download for %s failed after all retries: %w", objectName, lastErr)
}

func (b *BlobStore) readOnce(ctx context.Context, objectName string) ([]byte, error) {
	reader, err := b.client.Bucket(b.config.Bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", objectName, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", objectName, err)
	}
	return data, nil
}

// ObjectURL returns the public URL for an object in the configured bucket.
func (b *BlobStore) ObjectURL(objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.config.Bucket, objectName)
}

func (b *BlobStore) objectPath(fileURL string) (string, error) {
	marker := "/" + b.config.Bucket + "/"
	idx := strings.Index(fileURL, marker)
	if idx < 0 {
		return "", fmt.Errorf("%w: %q does not reference bucket %q", ErrInvalidReference, fileURL, b.config.Bucket)
	}
	path := fileURL[idx+len(marker):]
	if path == "" {
		return "", fmt.Errorf("%w: %q has an empty object path", ErrInvalidReference, fileURL)
	}
	return path, nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}
