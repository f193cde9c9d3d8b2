package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"report-dashboard/internal/catalog"
	"report-dashboard/internal/ingest"
	"report-dashboard/internal/models"
	"report-dashboard/internal/observability"
	"report-dashboard/internal/pipeline"
)

var ErrUnknownReport = errors.New("unknown report type")

// Reports runs uploads through the pipeline into the session store and builds
// dashboard bundles from the stored rows.
type Reports struct {
	store        *Store
	catalog      *catalog.Catalog
	logger       *slog.Logger
	parseTimeout time.Duration
}

func NewReports(store *Store, cat *catalog.Catalog, logger *slog.Logger, parseTimeout time.Duration) *Reports {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reports{
		store:        store,
		catalog:      cat,
		logger:       logger,
		parseTimeout: parseTimeout,
	}
}

func (r *Reports) Schemas() []models.Schema {
	return r.catalog.All()
}

func (r *Reports) Schema(report models.ReportType) (models.Schema, error) {
	schema, ok := r.catalog.Schema(report)
	if !ok {
		return models.Schema{}, fmt.Errorf("%w: %q", ErrUnknownReport, report)
	}
	return schema, nil
}

// Upload parses the file and replaces the report's slot with its rows.
//
// Input and parse errors leave the slot untouched. A file that breaks the
// report's column contract empties the slot and records the message on it.
// An upload overtaken by a newer one for the same slot returns ErrSuperseded.
func (r *Reports) Upload(ctx context.Context, sessionID string, report models.ReportType, filename string, src io.Reader) (models.Bundle, error) {
	schema, err := r.Schema(report)
	if err != nil {
		return models.Bundle{}, err
	}
	if _, err := ingest.DetectFormat(filename); err != nil {
		return models.Bundle{}, err
	}

	logger := observability.FromContext(ctx, r.logger).With(
		"report", report,
		"upload_id", uuid.NewString(),
		"file", filename,
	)
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, "upload")
	span.SetTag("report", string(report))
	defer span.End(ctx, logger)

	if r.parseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.parseTimeout)
		defer cancel()
	}
	ctx, ticket := r.store.Begin(ctx, sessionID, report)

	table, err := r.parse(ctx, filename, src)
	if err != nil {
		if abandonErr := r.store.Abandon(ticket); abandonErr != nil {
			err = abandonErr
		}
		span.SetError(err)
		logger.Warn("upload failed", "stage", "parse", "error", err)
		return models.Bundle{}, err
	}

	rows, err := r.process(ctx, schema, table.Rows)

	var schemaErr *pipeline.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		if rejectErr := r.store.Reject(ticket, filename, schemaErr.Error()); rejectErr != nil {
			err = rejectErr
		}
	case err != nil:
		if abandonErr := r.store.Abandon(ticket); abandonErr != nil {
			err = abandonErr
		}
	default:
		err = r.store.Commit(ticket, filename, columns(table.Header), rows)
	}
	if err != nil {
		span.SetError(err)
		logger.Warn("upload failed", "stage", "process", "error", err, "missing", missingOf(schemaErr))
		return models.Bundle{}, err
	}

	logger.Info("report loaded", "rows", len(rows), "duration", time.Since(start))
	return BuildBundle(schema, SlotSnapshot{
		Report:   report,
		FileName: filename,
		LoadedAt: time.Now(),
		Columns:  columns(table.Header),
		Rows:     rows,
	}), nil
}

func (r *Reports) parse(ctx context.Context, filename string, src io.Reader) (models.Table, error) {
	ctx, span := observability.StartSpan(ctx, "parse")
	defer span.End(ctx, r.logger)

	table, err := ingest.Read(ctx, filename, src)
	if err != nil {
		span.SetError(err)
		return models.Table{}, err
	}
	span.SetTag("rows", fmt.Sprint(len(table.Rows)))
	return table, nil
}

func (r *Reports) process(ctx context.Context, schema models.Schema, raw []models.RawRow) ([]models.CoercedRow, error) {
	ctx, span := observability.StartSpan(ctx, "process")
	defer span.End(ctx, r.logger)

	rows, err := pipeline.Process(ctx, schema, raw)
	if err != nil {
		span.SetError(err)
	}
	return rows, err
}

func columns(header []string) []string {
	out := make([]string, 0, len(header))
	for _, h := range header {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func missingOf(err *pipeline.SchemaError) []string {
	if err == nil {
		return nil
	}
	return err.Missing
}

func (r *Reports) Clear(sessionID string, report models.ReportType) error {
	if _, err := r.Schema(report); err != nil {
		return err
	}
	r.store.Clear(sessionID, report)
	return nil
}

// Bundle builds the dashboard for one slot from its current rows.
func (r *Reports) Bundle(sessionID string, report models.ReportType) (models.Bundle, error) {
	schema, err := r.Schema(report)
	if err != nil {
		return models.Bundle{}, err
	}
	return BuildBundle(schema, r.store.Snapshot(sessionID, report)), nil
}

// BuildAll builds every report's bundle concurrently, in tab order.
func (r *Reports) BuildAll(ctx context.Context, sessionID string) ([]models.Bundle, error) {
	schemas := r.catalog.All()
	bundles := make([]models.Bundle, len(schemas))

	g, ctx := errgroup.WithContext(ctx)
	for i, schema := range schemas {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			bundles[i] = BuildBundle(schema, r.store.Snapshot(sessionID, schema.Type))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}

func (r *Reports) Stats() StoreStats {
	return r.store.Stats()
}

// BuildBundle computes the KPIs and charts of a slot. An empty slot yields a
// bundle with no KPIs or charts that still carries the slot's last error.
func BuildBundle(schema models.Schema, snap SlotSnapshot) models.Bundle {
	b := models.Bundle{
		Report:   schema.Type,
		Name:     schema.Name,
		FileName: snap.FileName,
		LoadedAt: snap.LoadedAt,
		RowCount: len(snap.Rows),
		Error:    snap.Error,
		KPIs:     []models.KPI{},
		Charts:   []models.Chart{},
		Columns:  snap.Columns,
		Rows:     snap.Rows,
	}
	if b.Columns == nil {
		b.Columns = []string{}
	}
	if b.Rows == nil {
		b.Rows = []models.CoercedRow{}
	}
	if !snap.Loaded() || len(snap.Rows) == 0 {
		return b
	}

	if v, ok := views[schema.Type]; ok {
		b.KPIs, b.Charts = v(snap.Rows)
	}
	return b
}
