package attachment

import (
	"errors"
	"strings"
)

// Sentinel errors for attachment operations. Each marks one failure point in
// the two-store sequence so callers can tell a clean abort from one that left
// state behind.
var (
	ErrInvalidConfig = errors.New("attachment: invalid configuration")

	// ErrNotFound is returned for lookups and deletes referencing a missing
	// attachment id.
	ErrNotFound = errors.New("attachment: not found")

	// ErrStorageWrite marks a failed blob write during upload. No metadata
	// was created; the whole operation is safe to retry.
	ErrStorageWrite = errors.New("attachment: blob write failed")

	// ErrMetadataWrite marks a failed metadata insert after a successful
	// blob write. The blob is removed by a compensating delete before this
	// error is returned.
	ErrMetadataWrite = errors.New("attachment: metadata insert failed")

	// ErrStorageDelete marks a failed blob removal during deletion. The
	// metadata row is left untouched; the caller must retry.
	ErrStorageDelete = errors.New("attachment: blob delete failed")

	// ErrMetadataDelete marks a failed metadata removal after the blob is
	// already gone. The dangling row is surfaced, not auto-repaired.
	ErrMetadataDelete = errors.New("attachment: metadata delete failed")
)

// ValidationError carries the itemized list of pre-upload check failures.
// It blocks the upload entirely and is never retried automatically.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}
