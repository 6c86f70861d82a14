// Package api exposes the case attachment subsystem over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/casefiles/pkg/attachment"
	"github.com/dmitrymomot/casefiles/pkg/health"
)

// Service is the slice of the attachment service the handlers need.
type Service interface {
	UploadBatch(ctx context.Context, caseID string, files []attachment.UploadInput) ([]attachment.Attachment, error)
	List(ctx context.Context, caseID string) ([]attachment.Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DownloadURL(ctx context.Context, id uuid.UUID, downloadName string) (string, error)
}

// NewRouter builds the HTTP router for the attachment endpoints and health
// probes. Attachment routes require an authenticated user id, supplied by the
// upstream gateway in the X-User-ID header.
func NewRouter(svc Service, checks health.Checks, log *slog.Logger) http.Handler {
	h := &handlers{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(checks, health.WithLogger(log)))

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/cases/{caseID}/attachments", func(r chi.Router) {
			r.Post("/", h.upload)
			r.Get("/", h.list)
		})

		r.Route("/attachments/{id}", func(r chi.Router) {
			r.Delete("/", h.delete)
			r.Get("/download-url", h.downloadURL)
		})
	})

	return r
}
