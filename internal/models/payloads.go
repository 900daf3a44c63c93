package models

// These structs define the JSON payloads exchanged with API clients.

// AcceptedFile describes one file that entered the pipeline.
type AcceptedFile struct {
	DocumentID string `json:"document_id"`
	FileURL    string `json:"file_url"`
	FileName   string `json:"file_name"`
}

// SubmitResult is the per-file classification of an upload batch. A batch is
// never all-or-nothing: every file lands in exactly one bucket.
type SubmitResult struct {
	Accepted           []AcceptedFile `json:"documents"`
	SkippedDuplicate   []string       `json:"skipped_duplicate,omitempty"`
	SkippedInvalid     []string       `json:"skipped_invalid,omitempty"`
	SkippedUploadError []string       `json:"skipped_upload_error,omitempty"`
}

// StatusRequest selects which documents a batch status query covers.
// An empty or omitted id list means all documents owned by the caller.
type StatusRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// StatusItem is one entry of a batch status response.
type StatusItem struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	ParsedAt     *string `json:"parsed_at"`
	FileURL      string  `json:"file_url"`
}

// ExcelRequest is the ordered id list for a spreadsheet export.
type ExcelRequest struct {
	DocumentIDs []string `json:"document_ids"`
}
