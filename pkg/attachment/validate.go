package attachment

import (
	"context"
	"fmt"
	"strings"
)

// FileCandidate describes one file offered for upload, before any bytes move.
type FileCandidate struct {
	// Filename as supplied by the uploader.
	Filename string

	// Size in bytes.
	Size int64

	// MimeType is the declared content type, or "" when none was declared.
	MimeType string
}

// ValidationResult is the structured outcome of pre-upload checks.
// Valid is false iff Errors is non-empty.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate runs the pre-upload checks for a batch of candidate files against
// a case: quota, per-file size, extension allow-list, and declared-MIME
// cross-check. A quota breach short-circuits with a single aggregate error;
// otherwise each file is checked independently and may accumulate several
// errors. An empty batch is valid.
//
// The returned error reports a metadata-store failure reading the current
// count, not a validation outcome.
//
// The quota is best effort: the count read here and the insert inside Upload
// are not atomic, so concurrent batches against the same case can both pass
// and jointly exceed the limit. The limit is treated as a soft quota; no
// server-side constraint backs it.
func (s *Service) Validate(ctx context.Context, caseID string, files []FileCandidate) (ValidationResult, error) {
	if len(files) == 0 {
		return ValidationResult{Valid: true}, nil
	}

	count, err := s.meta.CountByCase(ctx, caseID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("attachment: count for case %s: %w", caseID, err)
	}

	if count+len(files) > s.cfg.MaxPerCase {
		return ValidationResult{Errors: []string{fmt.Sprintf(
			"Cannot upload %d files. Maximum %d files per case (currently %d).",
			len(files), s.cfg.MaxPerCase, count,
		)}}, nil
	}

	var errs []string
	for _, f := range files {
		if f.Size > s.cfg.MaxFileBytes {
			errs = append(errs, fmt.Sprintf(
				"%s is too large (%.1f MB). Maximum file size is %d MB.",
				f.Filename, float64(f.Size)/(1<<20), s.cfg.MaxFileBytes>>20,
			))
		}

		ext := fileExt(f.Filename)
		if _, ok := s.extensions[ext]; !ok {
			errs = append(errs, fmt.Sprintf(
				"%s has an unsupported extension %q. Allowed: %s.",
				f.Filename, ext, strings.Join(s.cfg.AllowedExtensions, ", "),
			))
		}

		if f.MimeType != "" {
			if allowed, ok := s.cfg.AllowedMIME[ext]; ok && !mimeAllowed(f.MimeType, allowed) {
				errs = append(errs, fmt.Sprintf(
					"%s has an unexpected content type %q.",
					f.Filename, f.MimeType,
				))
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}
