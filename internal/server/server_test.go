package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"report-dashboard/internal/catalog"
	"report-dashboard/internal/config"
	"report-dashboard/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	store := services.NewStore(time.Hour, testLogger())
	return NewServer(services.NewReports(store, cat, testLogger(), time.Minute), testLogger(), 1<<20)
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method         string
		path           string
		expectedStatus int
		contentType    string
	}{
		{http.MethodGet, "/", http.StatusOK, "text/html"},
		{http.MethodGet, "/health", http.StatusOK, "application/json"},
		{http.MethodGet, "/admin/stats", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/reports", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/reports/sales", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/reports/inventory", http.StatusNotFound, "application/json"},
		{http.MethodDelete, "/api/reports/orders", http.StatusOK, "application/json"},
		{http.MethodGet, "/sse/reports/returns", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/sse/refresh-all", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/missing", http.StatusNotFound, "text/plain"},
		{http.MethodPut, "/api/reports/sales", http.StatusMethodNotAllowed, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}
		})
	}
}

func newTestGracefulServer() *GracefulServer {
	cfg := &config.Config{Server: config.ServerConfig{ShutdownTimeout: time.Second}}
	httpServer := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	return NewGracefulServer(httpServer, testLogger(), cfg)
}

func TestGracefulServer_ShutdownRunsHooks(t *testing.T) {
	gs := newTestGracefulServer()

	var calls atomic.Int32
	for _, name := range []string{"sweeper", "store"} {
		gs.RegisterShutdownHook(name, func(ctx context.Context) error {
			calls.Add(1)
			return nil
		})
	}

	if err := gs.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 hook calls, got %d", calls.Load())
	}
}

func TestGracefulServer_ShutdownJoinsHookErrors(t *testing.T) {
	gs := newTestGracefulServer()
	errBoom := errors.New("boom")

	gs.RegisterShutdownHook("ok", func(ctx context.Context) error { return nil })
	gs.RegisterShutdownHook("failing", func(ctx context.Context) error { return errBoom })

	err := gs.Shutdown(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if !strings.Contains(err.Error(), "failing") {
		t.Errorf("error should name the hook, got %q", err)
	}
}

func TestGracefulServer_ListenAndServeStopsOnCancel(t *testing.T) {
	gs := newTestGracefulServer()

	var stopped atomic.Bool
	gs.RegisterShutdownHook("flag", func(ctx context.Context) error {
		stopped.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gs.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe() returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
	if !stopped.Load() {
		t.Error("shutdown hooks should run on cancel")
	}
}
