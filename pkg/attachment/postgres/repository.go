// Package postgres implements the attachment metadata store on PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/casefiles/pkg/attachment"
)

// Migrations holds the schema for the attachments table.
// Apply with db.Migrate before constructing a Repository.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Repository stores attachment records in the attachments table.
// It implements attachment.MetadataStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository over the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const attachmentColumns = `id, case_id, original_filename, sanitized_filename,
	storage_path, mime_type, file_size, created_by, created_at`

// CountByCase returns the number of attachment records for a case.
func (r *Repository) CountByCase(ctx context.Context, caseID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM attachments WHERE case_id = $1`, caseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count attachments: %w", err)
	}
	return count, nil
}

// Insert stores a new record and returns it with created_at assigned by the
// database, so ordering never depends on application clocks.
func (r *Repository) Insert(ctx context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attachments (id, case_id, original_filename, sanitized_filename,
			storage_path, mime_type, file_size, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		a.ID, a.CaseID, a.OriginalFilename, a.SanitizedFilename,
		a.StoragePath, a.MimeType, a.FileSize, a.CreatedBy,
	).Scan(&a.CreatedAt)
	if err != nil {
		return attachment.Attachment{}, fmt.Errorf("postgres: insert attachment: %w", err)
	}
	return a, nil
}

// ListByCase returns a case's attachments ordered by created_at descending.
// Ties on created_at fall back to id so the order is stable.
func (r *Repository) ListByCase(ctx context.Context, caseID string) ([]attachment.Attachment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attachmentColumns+`
		 FROM attachments
		 WHERE case_id = $1
		 ORDER BY created_at DESC, id DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list attachments: %w", err)
	}
	defer rows.Close()

	var out []attachment.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list attachments: %w", err)
	}
	return out, nil
}

// GetByID returns the record with the given id, or attachment.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (attachment.Attachment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id)

	a, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attachment.Attachment{}, attachment.ErrNotFound
		}
		return attachment.Attachment{}, err
	}
	return a, nil
}

// Delete removes the record with the given id.
// Returns attachment.ErrNotFound when the row is already gone, which lets
// the orchestrator treat retried deletions as settled.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attachment.ErrNotFound
	}
	return nil
}

func scanAttachment(row pgx.Row) (attachment.Attachment, error) {
	var a attachment.Attachment
	err := row.Scan(
		&a.ID, &a.CaseID, &a.OriginalFilename, &a.SanitizedFilename,
		&a.StoragePath, &a.MimeType, &a.FileSize, &a.CreatedBy, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attachment.Attachment{}, err
		}
		return attachment.Attachment{}, fmt.Errorf("postgres: scan attachment: %w", err)
	}
	return a, nil
}

var _ attachment.MetadataStore = (*Repository)(nil)
