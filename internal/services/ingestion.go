package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Praneeth-2602/brsr-backend/internal/gcp"
	"github.com/Praneeth-2602/brsr-backend/internal/models"
	"github.com/Praneeth-2602/brsr-backend/internal/pdf"
)

// ErrNoFiles reports a submission without any file payloads.
var ErrNoFiles = errors.New("no files uploaded")

// UploadFile is one submitted file: its original name and raw bytes.
type UploadFile struct {
	Name string
	Data []byte
}

// IngestionConfig tunes batch submission behaviour.
type IngestionConfig struct {
	// UploadConcurrency bounds how many files of one batch are uploaded
	// in parallel.
	UploadConcurrency int
	QueueWorkers      int
	QueueCapacity     int
}

// IngestionService coordinates upload, record creation, and background
// extraction for submitted files. Submission returns before any extraction
// completes; callers poll record status afterwards.
type IngestionService struct {
	blob      BlobStore
	store     DocumentStore
	extractor *Extractor
	queue     Queue
	config    IngestionConfig
}

// NewIngestionService wires the orchestrator and starts its work queue.
func NewIngestionService(blob BlobStore, store DocumentStore, extractor *Extractor, cfg IngestionConfig) *IngestionService {
	if cfg.UploadConcurrency < 1 {
		cfg.UploadConcurrency = 4
	}
	s := &IngestionService{
		blob:      blob,
		store:     store,
		extractor: extractor,
		config:    cfg,
	}
	s.queue = NewDispatcher(cfg.QueueWorkers, cfg.QueueCapacity, s.processJob)
	return s
}

// Shutdown drains the work queue.
func (s *IngestionService) Shutdown(ctx context.Context) {
	s.queue.Shutdown(ctx)
}

// Submit classifies and ingests a batch of files for one owner. Every file
// lands in exactly one result bucket; a bad file never aborts the batch.
func (s *IngestionService) Submit(ctx context.Context, ownerID string, files []UploadFile) (*models.SubmitResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	result := &models.SubmitResult{Accepted: []models.AcceptedFile{}}
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.config.UploadConcurrency)

	for _, file := range files {
		eg.Go(func() error {
			bucket, accepted := s.ingestOne(gctx, ownerID, file)
			mu.Lock()
			defer mu.Unlock()
			switch bucket {
			case bucketAccepted:
				result.Accepted = append(result.Accepted, *accepted)
			case bucketDuplicate:
				result.SkippedDuplicate = append(result.SkippedDuplicate, file.Name)
			case bucketInvalid:
				result.SkippedInvalid = append(result.SkippedInvalid, file.Name)
			case bucketUploadError:
				result.SkippedUploadError = append(result.SkippedUploadError, file.Name)
			}
			return nil
		})
	}
	_ = eg.Wait() // per-file outcomes never cancel the batch

	return result, nil
}

type resultBucket int

const (
	bucketAccepted resultBucket = iota
	bucketDuplicate
	bucketInvalid
	bucketUploadError
)

// ingestOne walks a single file through validate -> upload -> record ->
// schedule and reports which bucket it belongs in.
func (s *IngestionService) ingestOne(ctx context.Context, ownerID string, file UploadFile) (resultBucket, *models.AcceptedFile) {
	logCtx := slog.With("ownerId", ownerID, "fileName", file.Name)

	if !strings.HasSuffix(strings.ToLower(file.Name), ".pdf") || len(file.Data) == 0 {
		logCtx.Info("Skipping invalid file.")
		return bucketInvalid, nil
	}

	exists, err := s.store.ExistsByFileName(ctx, ownerID, file.Name)
	if err != nil {
		logCtx.Error("Duplicate pre-check failed", "error", err)
		return bucketUploadError, nil
	}
	if exists {
		logCtx.Info("Duplicate file name for owner. Skipping.")
		return bucketDuplicate, nil
	}

	objectName := fmt.Sprintf("%s_%s", ownerID, file.Name)
	fileURL, err := s.blob.Upload(ctx, objectName, file.Data)
	if err != nil {
		if errors.Is(err, gcp.ErrDuplicateObject) {
			// Lost the race with a concurrent submit, or the object key
			// collides across owners sharing the bucket namespace.
			logCtx.Info("Object already exists in storage. Skipping.", "gcsObject", objectName)
			return bucketDuplicate, nil
		}
		logCtx.Error("Failed to upload file", "error", err)
		return bucketUploadError, nil
	}

	pageCount := 0
	if n, err := pdf.PageCount(file.Data); err != nil {
		logCtx.Warn("Could not determine page count.", "error", err)
	} else {
		pageCount = n
	}

	doc := &models.Document{
		OwnerID:   ownerID,
		FileName:  file.Name,
		FileURL:   fileURL,
		Status:    models.StatusPending,
		PageCount: pageCount,
		CreatedAt: time.Now().UTC(),
	}
	docID, err := s.store.Create(ctx, doc)
	if err != nil {
		logCtx.Error("Failed to create document record", "error", err)
		return bucketUploadError, nil
	}
	logCtx = logCtx.With("documentId", docID)
	logCtx.Info("Created document record.")

	job := Job{
		DocumentID:  docID,
		FileBytes:   file.Data,
		FileURL:     fileURL,
		TraceID:     uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// The record stays pending; the reconciliation sweep fails it later.
		logCtx.Error("Failed to schedule extraction task", "error", err)
	}

	return bucketAccepted, &models.AcceptedFile{
		DocumentID: docID,
		FileURL:    fileURL,
		FileName:   file.Name,
	}
}

// processJob runs one extraction task to its terminal status write.
func (s *IngestionService) processJob(ctx context.Context, job Job) {
	logCtx := slog.With("documentId", job.DocumentID, "traceId", job.TraceID)
	logCtx.Info("Starting extraction.")

	fileBytes := job.FileBytes
	if len(fileBytes) == 0 && job.FileURL != "" {
		data, err := s.blob.Download(ctx, job.FileURL)
		if err != nil {
			logCtx.Error("Could not fetch file bytes from storage", "fileUrl", job.FileURL, "error", err)
			if werr := s.store.MarkFailed(ctx, job.DocumentID, err.Error(), time.Now().UTC()); werr != nil {
				logCtx.Error("CRITICAL: Failed to update document status to failed.", "updateError", werr)
			}
			return
		}
		fileBytes = data
	}

	payload, err := s.extractor.Extract(ctx, fileBytes)
	parsedAt := time.Now().UTC()

	if err != nil {
		logCtx.Error("Extraction failed", "error", err)
		if werr := s.store.MarkFailed(ctx, job.DocumentID, err.Error(), parsedAt); werr != nil {
			logCtx.Error("CRITICAL: Failed to update document status to failed.", "updateError", werr)
		}
		return
	}

	if werr := s.store.MarkCompleted(ctx, job.DocumentID, payload, parsedAt); werr != nil {
		logCtx.Error("CRITICAL: Failed to update document status to completed.", "updateError", werr)
		return
	}
	logCtx.Info("Extraction complete.", "elapsed", time.Since(job.SubmittedAt).String())
}
