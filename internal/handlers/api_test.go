package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"report-dashboard/internal/catalog"
	"report-dashboard/internal/models"
	"report-dashboard/internal/observability"
	"report-dashboard/internal/services"
)

const returnsCSV = `return-date,order-id,product-name,quantity,status,reason
2024-02-01,O1,Widget,2,Approved,Defective
2024-02-01,O2,Gadget,1,Approved,
2024-02-03,O3,Widget,3,Pending,Defective
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestReports(t *testing.T) *services.Reports {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() failed: %v", err)
	}
	store := services.NewStore(time.Hour, testLogger())
	return services.NewReports(store, cat, testLogger(), time.Minute)
}

// uploadRequest builds a multipart upload for report in session sess.
func uploadRequest(t *testing.T, method, target, report, sess, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(part, body)
	}
	mw.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withSession(req, report, sess)
}

func withSession(req *http.Request, report, sess string) *http.Request {
	req = req.WithContext(observability.WithSessionID(req.Context(), sess))
	req.SetPathValue("report", report)
	return req
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Missing []string `json:"missing"`
	} `json:"error"`
}

// bundleView is the part of a bundle the tests inspect; coerced rows only
// marshal one way.
type bundleView struct {
	FileName string       `json:"file_name"`
	RowCount int          `json:"row_count"`
	KPIs     []models.KPI `json:"kpis"`
}

func (b bundleView) kpi(name string) (models.Number, bool) {
	return models.Bundle{KPIs: b.KPIs}.KPIValue(name)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return env
}

func TestNewAPIHandlers(t *testing.T) {
	reports := createTestReports(t)
	handlers := NewAPIHandlers(reports, testLogger(), 1<<20)

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.reports != reports {
		t.Error("NewAPIHandlers() should set reports field")
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestReports(t), testLogger(), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	handlers.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	env := decode(t, w)
	if !env.Success || !strings.Contains(string(env.Data), `"healthy"`) {
		t.Errorf("unexpected health response %s", env.Data)
	}
}

func TestAPIHandlers_HandleCatalog(t *testing.T) {
	handlers := NewAPIHandlers(createTestReports(t), testLogger(), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	w := httptest.NewRecorder()
	handlers.HandleCatalog(w, req)

	if cacheControl := w.Header().Get("Cache-Control"); cacheControl != "public, max-age=300" {
		t.Errorf("expected cache-control 'public, max-age=300', got %q", cacheControl)
	}

	var schemas []models.Schema
	if err := json.Unmarshal(decode(t, w).Data, &schemas); err != nil {
		t.Fatal(err)
	}
	if len(schemas) != len(models.ReportTypes) {
		t.Fatalf("expected %d schemas, got %d", len(models.ReportTypes), len(schemas))
	}
	for i, s := range schemas {
		if s.Type != models.ReportTypes[i] {
			t.Errorf("schema %d is %s, want %s", i, s.Type, models.ReportTypes[i])
		}
	}
}

func TestAPIHandlers_HandleUpload(t *testing.T) {
	handlers := NewAPIHandlers(createTestReports(t), testLogger(), 1<<20)

	req := uploadRequest(t, http.MethodPost, "/api/reports/returns/upload", "returns", "s1", "returns.csv", returnsCSV)
	w := httptest.NewRecorder()
	handlers.HandleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var bundle bundleView
	if err := json.Unmarshal(decode(t, w).Data, &bundle); err != nil {
		t.Fatal(err)
	}
	if bundle.RowCount != 3 || bundle.FileName != "returns.csv" {
		t.Errorf("unexpected bundle %s with %d rows", bundle.FileName, bundle.RowCount)
	}
	if v, ok := bundle.kpi("total_returned_items"); !ok || v != 6 {
		t.Errorf("expected 6 returned items, got %v", v)
	}

	// the slot is visible to the same session only
	for _, tt := range []struct {
		sess string
		rows int
	}{{"s1", 3}, {"s2", 0}} {
		req := withSession(httptest.NewRequest(http.MethodGet, "/api/reports/returns", nil), "returns", tt.sess)
		w := httptest.NewRecorder()
		handlers.HandleBundle(w, req)

		var got bundleView
		json.Unmarshal(decode(t, w).Data, &got)
		if got.RowCount != tt.rows {
			t.Errorf("session %s: expected %d rows, got %d", tt.sess, tt.rows, got.RowCount)
		}
	}
}

func TestAPIHandlers_HandleUploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		report     string
		filename   string
		body       string
		limit      int64
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"missing file", "returns", "", "", 1 << 20, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE", "Please select a file."},
		{"unsupported type", "returns", "returns.pdf", "x", 1 << 20, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE", "Unsupported file type. Please select a CSV or XLSX file."},
		{"bad csv", "returns", "returns.csv", "a,b\n\"open,1\n", 1 << 20, http.StatusBadRequest, "PARSE_ERROR", "Error parsing CSV: "},
		{"missing columns", "brand_performance", "brand.csv", "Date,ASIN\n2024-01-01,A\n", 1 << 20, http.StatusUnprocessableEntity, "SCHEMA_ERROR", "The following columns are missing: Title"},
		{"no data", "returns", "returns.csv", "return-date\n", 1 << 20, http.StatusUnprocessableEntity, "SCHEMA_ERROR", "No data found in the file."},
		{"unknown report", "inventory", "inv.csv", "a\n1\n", 1 << 20, http.StatusNotFound, "NOT_FOUND", "Unknown report type"},
		{"too large", "returns", "returns.csv", strings.Repeat("x", 4096), 512, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "The file is too large."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewAPIHandlers(createTestReports(t), testLogger(), tt.limit)

			req := uploadRequest(t, http.MethodPost, "/api/reports/"+tt.report+"/upload", tt.report, "s1", tt.filename, tt.body)
			w := httptest.NewRecorder()
			handlers.HandleUpload(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			env := decode(t, w)
			if env.Success || env.Error == nil {
				t.Fatal("expected an error envelope")
			}
			if env.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, env.Error.Code)
			}
			if !strings.HasPrefix(env.Error.Message, tt.wantMsg) {
				t.Errorf("expected message starting %q, got %q", tt.wantMsg, env.Error.Message)
			}
		})
	}
}

func TestAPIHandlers_HandleUploadNotMultipart(t *testing.T) {
	handlers := NewAPIHandlers(createTestReports(t), testLogger(), 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/reports/returns/upload", strings.NewReader("return-date\n2024-02-01\n"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	handlers.HandleUpload(w, withSession(req, "returns", "s1"))

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected status %d, got %d: %s", http.StatusUnsupportedMediaType, w.Code, w.Body.String())
	}
	env := decode(t, w)
	if env.Error == nil || env.Error.Code != "UNSUPPORTED_FILE" || env.Error.Message != "Please select a file." {
		t.Errorf("expected the no-file error, got %+v", env.Error)
	}
}

func TestAPIHandlers_SchemaErrorListsMissingColumns(t *testing.T) {
	handlers := NewAPIHandlers(createTestReports(t), testLogger(), 1<<20)

	req := uploadRequest(t, http.MethodPost, "/api/reports/orders/upload", "orders", "s1", "orders.csv", "order-status\nShipped\n")
	w := httptest.NewRecorder()
	handlers.HandleUpload(w, req)

	env := decode(t, w)
	if env.Error == nil || len(env.Error.Missing) == 0 {
		t.Fatalf("expected missing columns in the error, got %+v", env.Error)
	}
	for _, col := range env.Error.Missing {
		if col == "order-status" {
			t.Error("present column reported as missing")
		}
	}
}

func TestAPIHandlers_HandleClear(t *testing.T) {
	handlers := NewAPIHandlers(createTestReports(t), testLogger(), 1<<20)

	handlers.HandleUpload(httptest.NewRecorder(),
		uploadRequest(t, http.MethodPost, "/api/reports/returns/upload", "returns", "s1", "returns.csv", returnsCSV))

	req := withSession(httptest.NewRequest(http.MethodDelete, "/api/reports/returns", nil), "returns", "s1")
	w := httptest.NewRecorder()
	handlers.HandleClear(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var bundle bundleView
	json.Unmarshal(decode(t, w).Data, &bundle)
	if bundle.RowCount != 0 || len(bundle.KPIs) != 0 {
		t.Errorf("expected an empty slot after clear, got %d rows", bundle.RowCount)
	}

	req = withSession(httptest.NewRequest(http.MethodDelete, "/api/reports/nope", nil), "nope", "s1")
	w = httptest.NewRecorder()
	handlers.HandleClear(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d for unknown report, got %d", http.StatusNotFound, w.Code)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(createTestReports(t), testLogger(), 1<<20)

	handlers.HandleUpload(httptest.NewRecorder(),
		uploadRequest(t, http.MethodPost, "/api/reports/returns/upload", "returns", "s1", "returns.csv", returnsCSV))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	handlers.HandleStats(w, req)

	var stats services.StoreStats
	if err := json.Unmarshal(decode(t, w).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Sessions != 1 || stats.Rows != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSessionID_FallsBackToAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := sessionID(req); got != anonymousSession {
		t.Errorf("expected %q, got %q", anonymousSession, got)
	}
}
