package services

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	if _, err := NewSweeper("every now and then", nil, func() {}); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
}

func TestSweeper_RunsJobs(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var runs atomic.Int32
	s, err := NewSweeper("@every 1s", logger, func() { runs.Add(1) })
	if err != nil {
		t.Fatalf("NewSweeper() failed: %v", err)
	}

	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
	if runs.Load() == 0 {
		t.Error("expected the job to run at least once")
	}
}

func TestSweeper_EvictsIdleSessions(t *testing.T) {
	store := NewStore(time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Now()
	store.now = func() time.Time { return now }
	store.Snapshot("idle", "sales")

	now = now.Add(2 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Errorf("expected the idle session to be evicted, removed %d", removed)
	}
}
