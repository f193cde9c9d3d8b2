package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"report-dashboard/internal/models"
	"report-dashboard/internal/observability"
	"report-dashboard/internal/services"
	"report-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	reports   *services.Reports
	logger    *slog.Logger
	maxUpload int64
}

func NewSSEHandlers(reports *services.Reports, logger *slog.Logger, maxUpload int64) *SSEHandlers {
	return &SSEHandlers{
		reports:   reports,
		logger:    logger,
		maxUpload: maxUpload,
	}
}

// HandleIndex renders the dashboard page with the session's current slots.
func (h *SSEHandlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.reports.BuildAll(r.Context(), sessionID(r))
	if err != nil {
		h.logger.Error("build bundles", "error", err)
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(h.reports.Schemas(), bundles).Render(r.Context(), w); err != nil {
		h.logger.Error("render dashboard", "error", err)
	}
}

func (h *SSEHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.reports.Bundle(sessionID(r), reportParam(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	sse := datastar.NewSSE(w, r)
	h.patchBundles(r, sse, bundle)
}

// HandleUpload accepts a datastar form post and patches the slot's fragments
// with either the new report or the upload error.
func (h *SSEHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	report := reportParam(r)
	if _, err := h.reports.Schema(report); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	filename, file, err := readUpload(w, r, h.maxUpload)
	var bundle models.Bundle
	if err == nil {
		bundle, err = h.reports.Upload(r.Context(), sessionID(r), report, filename, file)
		file.Close()
	}

	if errors.Is(err, services.ErrSuperseded) {
		// the newer upload patches the slot
		datastar.NewSSE(w, r)
		return
	}

	if err != nil {
		appErr := toAppError(err, h.maxUpload)
		observability.FromContext(r.Context(), h.logger).Warn("upload rejected",
			"report", report,
			"error_code", appErr.Code,
			"error", err,
		)

		bundle, _ = h.reports.Bundle(sessionID(r), report)
		bundle.Error = appErr.Message
	}

	sse := datastar.NewSSE(w, r)
	h.patchBundles(r, sse, bundle)
}

func (h *SSEHandlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	report := reportParam(r)
	if err := h.reports.Clear(sessionID(r), report); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	bundle, _ := h.reports.Bundle(sessionID(r), report)

	sse := datastar.NewSSE(w, r)
	h.patchBundles(r, sse, bundle)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.reports.BuildAll(r.Context(), sessionID(r))
	if err != nil {
		h.logger.Error("build bundles", "error", err)
		http.Error(w, "failed to build reports", http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	h.patchBundles(r, sse, bundles...)
}

// patchBundles sends each bundle's status, KPI cards and table as element
// patches, then every chart list in a single signal patch.
func (h *SSEHandlers) patchBundles(r *http.Request, sse *datastar.ServerSentEventGenerator, bundles ...models.Bundle) {
	charts := make(map[models.ReportType][]models.Chart, len(bundles))
	for _, b := range bundles {
		for _, c := range []templ.Component{templates.Status(b), templates.KPICards(b), templates.RawTable(b)} {
			html, err := render(r, c)
			if err != nil {
				h.logger.Error("render fragment", "report", b.Report, "error", err)
				return
			}
			if err := sse.PatchElements(html); err != nil {
				h.logger.Debug("patch elements", "report", b.Report, "error", err)
				return
			}
		}
		charts[b.Report] = b.Charts
	}

	signals, err := json.Marshal(map[string]any{"charts": charts})
	if err != nil {
		h.logger.Error("marshal chart signals", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		h.logger.Debug("patch signals", "error", err)
	}
}

func render(r *http.Request, c templ.Component) (string, error) {
	var buf strings.Builder
	err := c.Render(r.Context(), &buf)
	return buf.String(), err
}
