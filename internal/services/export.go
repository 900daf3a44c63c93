package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/Praneeth-2602/brsr-backend/internal/models"
)

// ErrNoExportableRecords reports that none of the requested documents had a
// completed extraction to export.
var ErrNoExportableRecords = errors.New("no completed documents to export")

const exportSheetName = "BRSR"

// ExportService builds XLSX workbooks from the extracted payloads of
// completed documents.
type ExportService struct {
	store DocumentStore
}

// NewExportService wires the exporter to the record store.
func NewExportService(store DocumentStore) *ExportService {
	return &ExportService{store: store}
}

// BuildWorkbook assembles a workbook for the requested document ids. Rows
// follow the order ids were given in; documents that are missing, not owned
// by ownerID, or not completed are skipped silently.
func (s *ExportService) BuildWorkbook(ctx context.Context, ownerID string, ids []string) ([]byte, error) {
	docs, err := s.store.GetByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents for export: %w", err)
	}

	byID := make(map[string]*models.Document, len(docs))
	for _, doc := range docs {
		if doc.Status == models.StatusCompleted && doc.ExtractedJSON != nil {
			byID[doc.ID] = doc
		}
	}

	var rows []map[string]any
	exported := 0
	for _, id := range ids {
		doc, ok := byID[id]
		if !ok {
			continue
		}
		rows = append(rows, flattenDocument(doc.ExtractedJSON)...)
		exported++
	}
	if exported == 0 {
		return nil, ErrNoExportableRecords
	}

	out, err := writeWorkbook(rows)
	if err != nil {
		return nil, err
	}
	slog.Info("Built export workbook.", "ownerId", ownerID, "documents", exported, "rows", len(rows))
	return out, nil
}

// writeWorkbook renders the flattened rows to XLSX bytes with a fixed header.
func writeWorkbook(rows []map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create worksheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default worksheet: %w", err)
	}

	for col, name := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheetName, cell, name); err != nil {
			return nil, fmt.Errorf("failed to write header cell %s: %w", cell, err)
		}
	}

	for i, row := range rows {
		for col, name := range reportColumns {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheetName, cell, cellValue(row[name])); err != nil {
				return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue keeps primitive values as-is and stringifies anything the
// worksheet writer cannot hold natively.
func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
