package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praneeth-2602/brsr-backend/internal/auth"
	"github.com/Praneeth-2602/brsr-backend/internal/gcp"
	"github.com/Praneeth-2602/brsr-backend/internal/models"
	"github.com/Praneeth-2602/brsr-backend/internal/services"
)

type fakeSubmitter struct {
	gotOwner string
	gotFiles []services.UploadFile
	result   *models.SubmitResult
	err      error
}

func (f *fakeSubmitter) Submit(_ context.Context, ownerID string, files []services.UploadFile) (*models.SubmitResult, error) {
	f.gotOwner = ownerID
	f.gotFiles = files
	if f.err != nil {
		return nil, f.err
	}
	if len(files) == 0 {
		return nil, services.ErrNoFiles
	}
	return f.result, nil
}

type fakeExporter struct {
	out []byte
	err error
}

func (f *fakeExporter) BuildWorkbook(context.Context, string, []string) ([]byte, error) {
	return f.out, f.err
}

type fakeDocStore struct {
	docs map[string]*models.Document
}

func (s *fakeDocStore) Create(_ context.Context, _ *models.Document) (string, error) {
	return "", nil
}

func (s *fakeDocStore) Get(_ context.Context, ownerID, id string) (*models.Document, error) {
	doc, ok := s.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, gcp.ErrNotFound
	}
	return doc, nil
}

func (s *fakeDocStore) ListByOwner(_ context.Context, ownerID string) ([]*models.Document, error) {
	var out []*models.Document
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *fakeDocStore) GetByIDs(_ context.Context, ownerID string, ids []string) ([]*models.Document, error) {
	var out []*models.Document
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok && doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *fakeDocStore) ExistsByFileName(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *fakeDocStore) MarkCompleted(context.Context, string, map[string]any, time.Time) error {
	return nil
}

func (s *fakeDocStore) MarkFailed(context.Context, string, string, time.Time) error {
	return nil
}

func (s *fakeDocStore) ListStalePending(context.Context, time.Time) ([]*models.Document, error) {
	return nil, nil
}

const testSecret = "test-secret"

func newTestServer(submitter Submitter, store services.DocumentStore, exporter Exporter) http.Handler {
	if submitter == nil {
		submitter = &fakeSubmitter{}
	}
	if store == nil {
		store = &fakeDocStore{docs: map[string]*models.Document{}}
	}
	if exporter == nil {
		exporter = &fakeExporter{}
	}
	return NewServer(submitter, store, exporter, auth.NewHMACVerifier(testSecret)).Router()
}

func bearerFor(userID string) string {
	return "Bearer " + auth.NewHMACVerifier(testSecret).IssueToken(userID, "analyst")
}

func TestHealthIsUnauthenticated(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDocumentsRequireAuth(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	for _, header := range []string{"", "Token abc", "Bearer not-a-valid-token"} {
		req := httptest.NewRequest(http.MethodGet, "/documents/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header=%q", header)
	}
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadHappyPath(t *testing.T) {
	submitter := &fakeSubmitter{
		result: &models.SubmitResult{
			Accepted: []models.AcceptedFile{
				{DocumentID: "doc-1", FileURL: "https://example/file.pdf", FileName: "report.pdf"},
			},
			SkippedInvalid: []string{"notes.txt"},
		},
	}
	handler := newTestServer(submitter, nil, nil)

	body, contentType := multipartBody(t, map[string][]byte{
		"report.pdf": []byte("%PDF-1.4"),
		"notes.txt":  []byte("text"),
	})
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerFor("owner-1"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", submitter.gotOwner)
	assert.Len(t, submitter.gotFiles, 2)

	var result models.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "doc-1", result.Accepted[0].DocumentID)
	assert.Equal(t, []string{"notes.txt"}, result.SkippedInvalid)
}

func TestUploadSingleFileField(t *testing.T) {
	submitter := &fakeSubmitter{
		result: &models.SubmitResult{
			Accepted: []models.AcceptedFile{
				{DocumentID: "doc-1", FileURL: "https://example/report.pdf", FileName: "report.pdf"},
			},
		},
	}
	handler := newTestServer(submitter, nil, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", bearerFor("owner-1"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, submitter.gotFiles, 1)
	assert.Equal(t, "report.pdf", submitter.gotFiles[0].Name)
}

func TestUploadWithoutFiles(t *testing.T) {
	handler := newTestServer(&fakeSubmitter{}, nil, nil)

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerFor("owner-1"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDocument(t *testing.T) {
	parsedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeDocStore{docs: map[string]*models.Document{
		"doc-1": {
			ID: "doc-1", OwnerID: "owner-1", FileName: "report.pdf",
			Status: models.StatusCompleted, ParsedAt: &parsedAt,
			ExtractedJSON: map[string]any{"entity_details": map[string]any{"name": "Acme"}},
		},
	}}
	handler := newTestServer(nil, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil)
	req.Header.Set("Authorization", bearerFor("owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.NotNil(t, doc.ExtractedJSON)
}

func TestGetDocumentNotFoundAndForeign(t *testing.T) {
	store := &fakeDocStore{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", OwnerID: "owner-2", Status: models.StatusPending},
	}}
	handler := newTestServer(nil, store, nil)

	for _, id := range []string{"doc-1", "missing"} {
		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		req.Header.Set("Authorization", bearerFor("owner-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, "id=%s", id)
	}
}

func TestStatusBatch(t *testing.T) {
	parsedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeDocStore{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", OwnerID: "owner-1", Status: models.StatusCompleted, ParsedAt: &parsedAt, FileURL: "https://example/a.pdf"},
		"doc-2": {ID: "doc-2", OwnerID: "owner-1", Status: models.StatusFailed, ErrorMessage: "model unavailable"},
		"doc-3": {ID: "doc-3", OwnerID: "owner-2", Status: models.StatusPending},
	}}
	handler := newTestServer(nil, store, nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/status",
		strings.NewReader(`{"document_ids": ["doc-1", "doc-2", "doc-3", "missing"]}`))
	req.Header.Set("Authorization", bearerFor("owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Statuses []models.StatusItem `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Statuses, 2)

	byID := map[string]models.StatusItem{}
	for _, item := range resp.Statuses {
		byID[item.ID] = item
	}
	assert.Equal(t, models.StatusCompleted, byID["doc-1"].Status)
	require.NotNil(t, byID["doc-1"].ParsedAt)
	assert.Equal(t, "2025-06-01T12:00:00Z", *byID["doc-1"].ParsedAt)
	assert.Equal(t, "model unavailable", byID["doc-2"].ErrorMessage)
	assert.Nil(t, byID["doc-2"].ParsedAt)
}

func TestStatusWithoutBodyReturnsAllOwnerRecords(t *testing.T) {
	store := &fakeDocStore{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", OwnerID: "owner-1", Status: models.StatusPending},
		"doc-2": {ID: "doc-2", OwnerID: "owner-2", Status: models.StatusPending},
	}}
	handler := newTestServer(nil, store, nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/status", nil)
	req.Header.Set("Authorization", bearerFor("owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Statuses []models.StatusItem `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Statuses, 1)
	assert.Equal(t, "doc-1", resp.Statuses[0].ID)
}

func TestStatusRejectsMalformedIDs(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	for _, body := range []string{
		`{"document_ids": [""]}`,
		`{"document_ids": ["ok", "bad/path"]}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/documents/status", strings.NewReader(body))
		req.Header.Set("Authorization", bearerFor("owner-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body=%s", body)
	}
}

func TestStatusInvalidBody(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/status", strings.NewReader("{not json"))
	req.Header.Set("Authorization", bearerFor("owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExcelExport(t *testing.T) {
	exporter := &fakeExporter{out: []byte("xlsx-bytes")}
	handler := newTestServer(nil, nil, exporter)

	req := httptest.NewRequest(http.MethodPost, "/documents/excel",
		strings.NewReader(`{"document_ids": ["doc-1"]}`))
	req.Header.Set("Authorization", bearerFor("owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "xlsx-bytes", rec.Body.String())
}

func TestExcelExportNoCompletedDocuments(t *testing.T) {
	exporter := &fakeExporter{err: services.ErrNoExportableRecords}
	handler := newTestServer(nil, nil, exporter)

	req := httptest.NewRequest(http.MethodPost, "/documents/excel",
		strings.NewReader(`{"document_ids": ["doc-1"]}`))
	req.Header.Set("Authorization", bearerFor("owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExcelExportRejectsMalformedIDs(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	for _, body := range []string{
		`{"document_ids": [""]}`,
		`{"document_ids": ["doc-1", "a/b"]}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/documents/excel", strings.NewReader(body))
		req.Header.Set("Authorization", bearerFor("owner-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body=%s", body)
	}
}

func TestExcelExportRequiresIDs(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/excel", strings.NewReader(`{"document_ids": []}`))
	req.Header.Set("Authorization", bearerFor("owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
