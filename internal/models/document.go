package models

import "time"

// Document lifecycle statuses. A record is created as pending and moves
// exactly once to completed or failed; it is never mutated afterwards.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is the main record for one uploaded BRSR filing in Firestore.
// It tracks the file's location in storage and the extraction lifecycle.
type Document struct {
	ID            string         `firestore:"-" json:"id"`
	OwnerID       string         `firestore:"ownerId" json:"-"`
	FileName      string         `firestore:"fileName" json:"file_name"`
	FileURL       string         `firestore:"fileUrl" json:"file_url"`
	Status        string         `firestore:"status" json:"status"`
	PageCount     int            `firestore:"pageCount,omitempty" json:"page_count,omitempty"`
	ExtractedJSON map[string]any `firestore:"extractedJson,omitempty" json:"extracted_json,omitempty"`
	ErrorMessage  string         `firestore:"errorMessage,omitempty" json:"error_message,omitempty"`
	CreatedAt     time.Time      `firestore:"createdAt" json:"created_at"`
	ParsedAt      *time.Time     `firestore:"parsedAt,omitempty" json:"parsed_at,omitempty"`
}

// Terminal reports whether the document has reached a final status.
func (d *Document) Terminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed
}
