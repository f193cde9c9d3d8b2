package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	apperrors "report-dashboard/internal/errors"
	"report-dashboard/internal/ingest"
	"report-dashboard/internal/models"
	"report-dashboard/internal/observability"
	"report-dashboard/internal/pipeline"
	"report-dashboard/internal/services"
)

const (
	uploadField      = "file"
	anonymousSession = "anonymous"
	multipartMemory  = 8 << 20
)

type APIHandlers struct {
	reports   *services.Reports
	logger    *slog.Logger
	maxUpload int64
}

func NewAPIHandlers(reports *services.Reports, logger *slog.Logger, maxUpload int64) *APIHandlers {
	return &APIHandlers{
		reports:   reports,
		logger:    logger,
		maxUpload: maxUpload,
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	apperrors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.reports.Stats())
}

// HandleCatalog lists every report type with its required columns.
func (h *APIHandlers) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	apperrors.WriteSuccess(w, h.reports.Schemas())
}

func (h *APIHandlers) HandleBundle(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.reports.Bundle(sessionID(r), reportParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, bundle)
}

func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	filename, file, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer file.Close()

	bundle, err := h.reports.Upload(r.Context(), sessionID(r), reportParam(r), filename, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, bundle)
}

func (h *APIHandlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	report := reportParam(r)
	if err := h.reports.Clear(sessionID(r), report); err != nil {
		h.writeError(w, r, err)
		return
	}
	bundle, err := h.reports.Bundle(sessionID(r), report)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, bundle)
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteError(w, h.logger, toAppError(err, h.maxUpload), observability.GetRequestID(r.Context()))
}

func reportParam(r *http.Request) models.ReportType {
	return models.ReportType(r.PathValue("report"))
}

func sessionID(r *http.Request) string {
	if id := observability.GetSessionID(r.Context()); id != "" {
		return id
	}
	return anonymousSession
}

// readUpload returns the multipart "file" part. The caller closes the file.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, multipart.File, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return "", nil, ingest.ErrNoFile
		}
		return "", nil, apperrors.Wrap(err, apperrors.CodeBadRequest, "Invalid upload form")
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil, ingest.ErrNoFile
		}
		return "", nil, apperrors.Wrap(err, apperrors.CodeBadRequest, "Invalid upload form")
	}
	return header.Filename, file, nil
}

// toAppError maps domain failures onto the API error envelope.
func toAppError(err error, limit int64) *apperrors.AppError {
	var (
		appErr    *apperrors.AppError
		parseErr  *ingest.ParseError
		schemaErr *pipeline.SchemaError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ingest.ErrNoFile), errors.Is(err, ingest.ErrUnsupported):
		return apperrors.UnsupportedFile(err)
	case errors.As(err, &schemaErr):
		return apperrors.Schema(err, schemaErr.Missing)
	case errors.Is(err, services.ErrSuperseded):
		return apperrors.Superseded(err)
	case errors.Is(err, services.ErrUnknownReport):
		return apperrors.Wrap(err, apperrors.CodeNotFound, "Unknown report type")
	case errors.As(err, &tooLarge):
		return apperrors.TooLarge(limit)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.CodeServiceUnavail, "Processing the file took too long")
	case errors.As(err, &parseErr):
		return apperrors.Parse(err)
	default:
		return apperrors.As(err)
	}
}
