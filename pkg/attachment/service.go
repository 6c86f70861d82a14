package attachment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/casefiles/pkg/cache"
)

// Service coordinates the blob store and the metadata store for case
// attachments. It holds no locks and spawns no goroutines; every operation is
// a short sequence of blocking store calls, and cross-store consistency comes
// from compensating actions, not transactions.
type Service struct {
	blobs      BlobStore
	meta       MetadataStore
	ident      Identity
	urlCache   cache.Cache[string]
	log        *slog.Logger
	cfg        Config
	extensions map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for compensation failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithURLCache caches minted download URLs at half their signing TTL.
// Entries are dropped when the attachment is deleted, so a stale URL can
// outlive its blob by at most half the TTL, which plain issued URLs already
// allow for.
func WithURLCache(c cache.Cache[string]) Option {
	return func(s *Service) {
		s.urlCache = c
	}
}

// New creates an attachment Service over the given stores.
func New(blobs BlobStore, meta MetadataStore, ident Identity, cfg Config, opts ...Option) (*Service, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if blobs == nil || meta == nil || ident == nil {
		return nil, ErrInvalidConfig
	}

	s := &Service{
		blobs:      blobs,
		meta:       meta,
		ident:      ident,
		cfg:        cfg,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		extensions: make(map[string]struct{}, len(cfg.AllowedExtensions)),
	}
	for _, ext := range cfg.AllowedExtensions {
		s.extensions[ext] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UploadInput describes one file to attach to a case.
type UploadInput struct {
	CaseID   string
	Filename string
	Content  io.Reader
	Size     int64
	MimeType string // declared content type, optional
}

// Upload validates and stores a single file, returning the new attachment
// record. It either succeeds fully or leaves no metadata behind: a blob-write
// failure aborts before any metadata exists, and a metadata-insert failure
// triggers a compensating delete of the just-written blob.
//
// Returns *ValidationError when pre-upload checks fail, ErrStorageWrite or
// ErrMetadataWrite for store failures.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Attachment, error) {
	res, err := s.Validate(ctx, in.CaseID, []FileCandidate{{
		Filename: in.Filename,
		Size:     in.Size,
		MimeType: in.MimeType,
	}})
	if err != nil {
		return Attachment{}, err
	}
	if !res.Valid {
		return Attachment{}, &ValidationError{Errors: res.Errors}
	}

	return s.store(ctx, in)
}

// UploadBatch validates the whole batch up front, then stores files one at a
// time with no cross-file atomicity. If a file fails, earlier attachments
// stay committed and later files are never attempted; the committed prefix is
// returned alongside the error so callers can disclose the partial result.
func (s *Service) UploadBatch(ctx context.Context, caseID string, files []UploadInput) ([]Attachment, error) {
	candidates := make([]FileCandidate, len(files))
	for i, f := range files {
		candidates[i] = FileCandidate{Filename: f.Filename, Size: f.Size, MimeType: f.MimeType}
	}

	res, err := s.Validate(ctx, caseID, candidates)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	uploaded := make([]Attachment, 0, len(files))
	for _, f := range files {
		f.CaseID = caseID
		att, err := s.store(ctx, f)
		if err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, att)
	}
	return uploaded, nil
}

// store runs the two-phase write: blob first, then metadata, with
// undoBlobWrite as the compensating step between them.
func (s *Service) store(ctx context.Context, in UploadInput) (Attachment, error) {
	userID, err := s.ident.CurrentUserID(ctx)
	if err != nil {
		return Attachment{}, err
	}

	id := uuid.New()
	sanitized := SanitizeFilename(in.Filename)
	path := StorageKey(s.cfg.KeyNamespace, in.CaseID, id.String(), sanitized)

	mimeType := normalizeMIME(in.MimeType)
	if mimeType == "" {
		mimeType = MIMEOctetStream
	}

	// Phase one: blob write. Failure here is a clean abort, no metadata
	// exists yet.
	if err := s.blobs.Put(ctx, path, in.Content, in.Size, mimeType); err != nil {
		return Attachment{}, errors.Join(ErrStorageWrite, err)
	}

	// Phase two: metadata insert, undone by a compensating blob delete on
	// failure so no blob exists without a corresponding record.
	stored, err := s.meta.Insert(ctx, Attachment{
		ID:                id,
		CaseID:            in.CaseID,
		OriginalFilename:  in.Filename,
		SanitizedFilename: sanitized,
		StoragePath:       path,
		MimeType:          mimeType,
		FileSize:          in.Size,
		CreatedBy:         userID,
	})
	if err != nil {
		s.undoBlobWrite(ctx, in.CaseID, id, path)
		return Attachment{}, errors.Join(ErrMetadataWrite, err)
	}

	return stored, nil
}

// undoBlobWrite is the compensating action for a failed metadata insert.
// If the compensation itself fails the blob is orphaned; that is logged and
// left for manual cleanup, never auto-retried.
func (s *Service) undoBlobWrite(ctx context.Context, caseID string, id uuid.UUID, path string) {
	if err := s.blobs.Remove(ctx, path); err != nil {
		s.log.ErrorContext(ctx, "orphaned blob: compensating delete failed",
			slog.String("case_id", caseID),
			slog.String("attachment_id", id.String()),
			slog.String("storage_path", path),
			slog.Any("error", err),
		)
	}
}

// Delete removes an attachment's blob and metadata row, in that order.
// A blob-removal failure aborts with the metadata untouched so the operation
// can be retried; the blob layer treats already-absent objects as success, so
// retries converge. A metadata row that vanished between lookup and delete
// counts as already deleted.
//
// Returns ErrNotFound for an unknown id; nothing is changed in that case.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	att, err := s.meta.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Remove(ctx, att.StoragePath); err != nil {
		return errors.Join(ErrStorageDelete, err)
	}

	if s.urlCache != nil {
		// Best effort: a leftover entry only extends a URL that was
		// already minted and still within its TTL.
		_ = s.urlCache.Delete(ctx, att.StoragePath)
	}

	if err := s.meta.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return errors.Join(ErrMetadataDelete, err)
	}
	return nil
}

// List returns a case's attachments ordered by created_at descending.
// The per-case quota bounds the result size, so there is no pagination.
func (s *Service) List(ctx context.Context, caseID string) ([]Attachment, error) {
	return s.meta.ListByCase(ctx, caseID)
}

// DownloadURL mints a time-boxed signed URL serving the attachment's bytes,
// suggesting downloadName for saving. An empty downloadName falls back to the
// original filename. Default-name URLs are served from the cache when one is
// configured; custom names always hit the blob store.
//
// Returns ErrNotFound for an unknown id, or the blob store's error when the
// object is absent or signing fails.
func (s *Service) DownloadURL(ctx context.Context, id uuid.UUID, downloadName string) (string, error) {
	att, err := s.meta.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	ttl := s.cfg.SignedURLTTL
	if downloadName != "" && downloadName != att.OriginalFilename {
		return s.blobs.SignedURL(ctx, att.StoragePath, ttl, downloadName)
	}

	if s.urlCache == nil {
		return s.blobs.SignedURL(ctx, att.StoragePath, ttl, att.OriginalFilename)
	}

	return cache.GetOrSet(ctx, s.urlCache, att.StoragePath, func(ctx context.Context) (string, time.Duration, error) {
		url, err := s.blobs.SignedURL(ctx, att.StoragePath, ttl, att.OriginalFilename)
		if err != nil {
			return "", 0, err
		}
		// Half the signing TTL keeps every cached URL valid for at least
		// the other half after a cache hit.
		return url, ttl / 2, nil
	})
}
