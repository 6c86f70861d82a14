package attachment

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Attachment is one uploaded file's metadata record, linked to exactly one case.
// Records are immutable after creation; the only lifecycle transitions are
// creation by Upload and removal by Delete.
type Attachment struct {
	ID                uuid.UUID `json:"id"`
	CaseID            string    `json:"case_id"`
	OriginalFilename  string    `json:"original_filename"`
	SanitizedFilename string    `json:"sanitized_filename"`
	StoragePath       string    `json:"storage_path"`
	MimeType          string    `json:"mime_type"`
	FileSize          int64     `json:"file_size"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

// BlobStore is the object storage holding raw file bytes addressed by path.
type BlobStore interface {
	// Put writes the content at the given path.
	// The size parameter is used for the content-length header.
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error

	// Remove deletes the objects at the given paths.
	// Removing an already-absent object is not an error, so deletes are
	// safe to retry.
	Remove(ctx context.Context, paths ...string) error

	// SignedURL mints a time-boxed retrieval URL for the object at path.
	// The downloadName is suggested to the browser for saving.
	// Fails if the object is absent or the store cannot sign.
	SignedURL(ctx context.Context, path string, ttl time.Duration, downloadName string) (string, error)
}

// MetadataStore persists attachment records, queryable by case id.
type MetadataStore interface {
	// CountByCase returns the number of attachment records for a case.
	CountByCase(ctx context.Context, caseID string) (int, error)

	// Insert stores a new record and returns it with store-assigned fields
	// (created_at) populated.
	Insert(ctx context.Context, a Attachment) (Attachment, error)

	// ListByCase returns a case's attachments ordered by created_at descending.
	ListByCase(ctx context.Context, caseID string) ([]Attachment, error)

	// GetByID returns the record with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (Attachment, error)

	// Delete removes the record with the given id, or returns ErrNotFound
	// if it is already gone.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Identity reports the acting user for the current request. Session
// establishment itself lives outside this package; only the resolved user id
// is needed to stamp created_by.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, error)
}
