// Package attachment manages files attached to cases.
//
// It coordinates two independently-failing stores: a blob store holding raw
// file bytes and a metadata store holding one record per attachment. The two
// are kept consistent with compensating actions rather than cross-store
// transactions: an upload writes the blob first and undoes that write if the
// metadata insert fails, so a metadata row never points at a missing blob.
//
// # Basic Usage
//
// Construct a service with both stores and an identity provider:
//
//	svc, err := attachment.New(blobs, meta, ident, attachment.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	att, err := svc.Upload(ctx, attachment.UploadInput{
//		CaseID:   caseID,
//		Filename: fh.Filename,
//		Content:  f,
//		Size:     fh.Size,
//		MimeType: fh.Header.Get("Content-Type"),
//	})
//
// # Validation
//
// Validate checks a batch of candidate files against the per-case quota, the
// size limit, the extension allow-list, and the per-extension MIME allow-map.
// Upload and UploadBatch run the same checks and return *ValidationError when
// any of them fail:
//
//	res, err := svc.Validate(ctx, caseID, candidates)
//	if err != nil {
//		// metadata store unavailable
//	}
//	if !res.Valid {
//		// res.Errors is the itemized, human-readable list
//	}
//
// # Limits
//
// All limits are plain configuration passed at construction, so tests can
// tighten or loosen them freely. Zero values take the production defaults
// (10 files per case, 25 MiB per file, 1 hour signing TTL).
package attachment
