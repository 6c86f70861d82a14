package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/casefiles/pkg/attachment"
)

// uploadMemoryLimit caps how much of a multipart body is buffered in memory;
// larger parts spill to temp files.
const uploadMemoryLimit = 8 << 20

type handlers struct {
	svc Service
	log *slog.Logger
}

// upload handles POST /cases/{caseID}/attachments.
//
// The multipart form field "files" may repeat. Files are committed one at a
// time with no cross-file atomicity: when one fails, earlier files stay
// committed and the response discloses the prefix alongside the error.
func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	fhs := r.MultipartForm.File["files"]
	if len(fhs) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	inputs := make([]attachment.UploadInput, 0, len(fhs))
	for _, fh := range fhs {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file "+fh.Filename)
			return
		}
		defer f.Close()

		inputs = append(inputs, attachment.UploadInput{
			CaseID:   caseID,
			Filename: fh.Filename,
			Content:  f,
			Size:     fh.Size,
			MimeType: fh.Header.Get("Content-Type"),
		})
	}

	uploaded, err := h.svc.UploadBatch(r.Context(), caseID, inputs)
	if err != nil {
		var verr *attachment.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"errors": verr.Errors,
			})
			return
		}

		h.log.ErrorContext(r.Context(), "upload failed",
			slog.String("case_id", caseID),
			slog.Int("uploaded", len(uploaded)),
			slog.Any("error", err),
		)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"attachments": uploaded,
			"error":       "upload failed after " + plural(len(uploaded), "file"),
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"attachments": uploaded})
}

// list handles GET /cases/{caseID}/attachments.
func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	attachments, err := h.svc.List(r.Context(), caseID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "list failed",
			slog.String("case_id", caseID), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "failed to list attachments")
		return
	}

	if attachments == nil {
		attachments = []attachment.Attachment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
}

// delete handles DELETE /attachments/{id}.
func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	switch err := h.svc.Delete(r.Context(), id); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, attachment.ErrNotFound):
		writeError(w, http.StatusNotFound, "attachment not found")
	default:
		h.log.ErrorContext(r.Context(), "delete failed",
			slog.String("attachment_id", id.String()), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "failed to delete attachment")
	}
}

// downloadURL handles GET /attachments/{id}/download-url.
// An optional ?filename= overrides the suggested save-as name.
func (h *handlers) downloadURL(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	url, err := h.svc.DownloadURL(r.Context(), id, r.URL.Query().Get("filename"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"url": url})
	case errors.Is(err, attachment.ErrNotFound):
		writeError(w, http.StatusNotFound, "attachment not found")
	default:
		h.log.ErrorContext(r.Context(), "download url failed",
			slog.String("attachment_id", id.String()), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "failed to mint download url")
	}
}
