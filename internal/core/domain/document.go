package domain

import "time"

// DocumentType classifies where a document came from.
type DocumentType string

// Known document types.
const (
	DocTypeNote       DocumentType = "note"
	DocTypeFile       DocumentType = "file"
	DocTypeReport     DocumentType = "report"
	DocTypeReflection DocumentType = "reflection"
	DocTypeEmail      DocumentType = "email"
	DocTypeWeb        DocumentType = "web"
	DocTypeRecord     DocumentType = "record"
)

// Valid reports whether the document type is one of the known values.
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeNote, DocTypeFile, DocTypeReport, DocTypeReflection,
		DocTypeEmail, DocTypeWeb, DocTypeRecord:
		return true
	}
	return false
}

// Document is a unit of external or user-originated knowledge.
// Content is immutable once embedded unless re-ingestion is explicitly
// triggered; deleting a document cascades to its embeddings.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Type classifies the document (note, file, report, ...).
	Type DocumentType

	// Title is the human-readable title.
	Title string

	// Content is the full text content.
	Content string

	// Tags is a free-form tag set used for retrieval filtering.
	Tags []string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// Embedded reports whether ingestion produced embeddings for this
	// document. False means the document persisted but is not yet
	// searchable (the embedding provider failed during ingestion).
	Embedded bool

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// Validate checks the document satisfies its invariants.
func (d *Document) Validate() error {
	if d.ID == "" || d.Content == "" {
		return ErrInvalidInput
	}
	if !d.Type.Valid() {
		return ErrInvalidInput
	}
	return nil
}
