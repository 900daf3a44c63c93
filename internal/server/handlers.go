package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Praneeth-2602/brsr-backend/internal/auth"
	"github.com/Praneeth-2602/brsr-backend/internal/gcp"
	"github.com/Praneeth-2602/brsr-backend/internal/models"
	"github.com/Praneeth-2602/brsr-backend/internal/services"
)

// handleUpload accepts a multipart batch under the "files" field, with
// "file" also honored for single-file clients, and returns the per-file
// classification. The response arrives before any extraction starts; clients
// poll status afterwards.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	if err := r.ParseMultipartForm(s.uploadLimit); err != nil {
		respondError(w, http.StatusBadRequest, "could not parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []services.UploadFile
	for _, field := range []string{"files", "file"} {
		for _, header := range r.MultipartForm.File[field] {
			f, err := header.Open()
			if err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("could not open uploaded file %q", header.Filename))
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("could not read uploaded file %q", header.Filename))
				return
			}
			files = append(files, services.UploadFile{Name: header.Filename, Data: data})
		}
	}

	result, err := s.ingestion.Submit(r.Context(), principal.UserID, files)
	if err != nil {
		if errors.Is(err, services.ErrNoFiles) {
			respondError(w, http.StatusBadRequest, "no files uploaded")
			return
		}
		slog.Error("Upload submission failed", "ownerId", principal.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleList returns every document owned by the caller, newest first.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	docs, err := s.store.ListByOwner(r.Context(), principal.UserID)
	if err != nil {
		slog.Error("Failed to list documents", "ownerId", principal.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleGet returns a single document. Records owned by someone else are
// indistinguishable from missing ones.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	id := chi.URLParam(r, "documentID")

	doc, err := s.store.Get(r.Context(), principal.UserID, id)
	if err != nil {
		if errors.Is(err, gcp.ErrNotFound) {
			respondError(w, http.StatusNotFound, "document not found")
			return
		}
		slog.Error("Failed to fetch document", "documentId", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch document")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// handleStatus reports the lifecycle state of a batch of documents. Ids the
// caller does not own are silently absent from the response.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	// A missing body means the same as an empty id list: all owner records.
	var req models.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validDocumentIDs(req.DocumentIDs) {
		respondError(w, http.StatusBadRequest, "document_ids contains invalid ids")
		return
	}

	var docs []*models.Document
	var err error
	if len(req.DocumentIDs) == 0 {
		docs, err = s.store.ListByOwner(r.Context(), principal.UserID)
	} else {
		docs, err = s.store.GetByIDs(r.Context(), principal.UserID, req.DocumentIDs)
	}
	if err != nil {
		slog.Error("Failed to fetch document statuses", "ownerId", principal.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch statuses")
		return
	}

	items := make([]models.StatusItem, 0, len(docs))
	for _, doc := range docs {
		item := models.StatusItem{
			ID:           doc.ID,
			Status:       doc.Status,
			ErrorMessage: doc.ErrorMessage,
			FileURL:      doc.FileURL,
		}
		if doc.ParsedAt != nil {
			ts := doc.ParsedAt.UTC().Format(time.RFC3339)
			item.ParsedAt = &ts
		}
		items = append(items, item)
	}
	respondJSON(w, http.StatusOK, map[string]any{"statuses": items})
}

// validDocumentIDs rejects ids the record store cannot address: empty
// strings and ids containing a path separator. Catching them here turns a
// storage-layer error into a client error.
func validDocumentIDs(ids []string) bool {
	for _, id := range ids {
		if id == "" || strings.Contains(id, "/") {
			return false
		}
	}
	return true
}

// handleExcel streams an XLSX export of the requested documents.
func (s *Server) handleExcel(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req models.ExcelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.DocumentIDs) == 0 {
		respondError(w, http.StatusBadRequest, "document_ids is required")
		return
	}
	if !validDocumentIDs(req.DocumentIDs) {
		respondError(w, http.StatusBadRequest, "document_ids contains invalid ids")
		return
	}

	out, err := s.exporter.BuildWorkbook(r.Context(), principal.UserID, req.DocumentIDs)
	if err != nil {
		if errors.Is(err, services.ErrNoExportableRecords) {
			respondError(w, http.StatusNotFound, "no completed documents found for the given ids")
			return
		}
		slog.Error("Excel export failed", "ownerId", principal.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="brsr_export.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		slog.Error("Failed to stream workbook", "error", err)
	}
}
