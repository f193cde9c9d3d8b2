package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"report-dashboard/internal/models"
)

// ErrSuperseded is returned for an upload whose slot was claimed by a newer
// upload before it finished.
var ErrSuperseded = errors.New("upload superseded by a newer upload")

// SlotSnapshot is a read-only copy of one report slot.
type SlotSnapshot struct {
	Report   models.ReportType
	FileName string
	LoadedAt time.Time
	Columns  []string
	Rows     []models.CoercedRow
	Error    string
}

func (s SlotSnapshot) Loaded() bool {
	return s.Rows != nil
}

type slot struct {
	seq    uint64
	cancel context.CancelFunc

	fileName string
	loadedAt time.Time
	columns  []string
	rows     []models.CoercedRow
	err      string
}

type session struct {
	mu       sync.Mutex
	slots    map[models.ReportType]*slot
	lastSeen time.Time
}

func (s *session) slot(report models.ReportType) *slot {
	sl, ok := s.slots[report]
	if !ok {
		sl = &slot{}
		s.slots[report] = sl
	}
	return sl
}

// Ticket identifies one upload attempt on a slot.
type Ticket struct {
	SessionID string
	Report    models.ReportType
	Seq       uint64
	cancel    context.CancelFunc
}

// Store holds the uploaded reports of every browser session in memory. Each
// session owns one slot per report type; slots are replaced wholesale.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	idleTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewStore(idleTTL time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*session),
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *Store) session(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		sess, ok = s.sessions[id]
		if !ok {
			sess = &session{slots: make(map[models.ReportType]*slot)}
			s.sessions[id] = sess
		}
		s.mu.Unlock()
	}
	return sess
}

// Begin claims the slot for a new upload. Any upload still running for the
// same slot has its context canceled and can no longer commit.
func (s *Store) Begin(ctx context.Context, sessionID string, report models.ReportType) (context.Context, Ticket) {
	sess := s.session(sessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()

	sl := sess.slot(report)
	if sl.cancel != nil {
		sl.cancel()
	}
	sl.seq++

	uploadCtx, cancel := context.WithCancel(ctx)
	sl.cancel = cancel
	return uploadCtx, Ticket{SessionID: sessionID, Report: report, Seq: sl.seq, cancel: cancel}
}

// Current reports whether t still owns its slot.
func (s *Store) Current(t Ticket) bool {
	sess := s.session(t.SessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.slot(t.Report).seq == t.Seq
}

// Commit replaces the slot's rows with the upload's result.
func (s *Store) Commit(t Ticket, fileName string, columns []string, rows []models.CoercedRow) error {
	return s.finish(t, func(sl *slot) {
		if rows == nil {
			rows = []models.CoercedRow{}
		}
		sl.fileName = fileName
		sl.loadedAt = s.now()
		sl.columns = columns
		sl.rows = rows
		sl.err = ""
	})
}

// Reject empties the slot and records msg as its error.
func (s *Store) Reject(t Ticket, fileName, msg string) error {
	return s.finish(t, func(sl *slot) {
		sl.fileName = fileName
		sl.loadedAt = time.Time{}
		sl.columns = nil
		sl.rows = nil
		sl.err = msg
	})
}

// Abandon releases t without touching the slot's data.
func (s *Store) Abandon(t Ticket) error {
	return s.finish(t, func(*slot) {})
}

func (s *Store) finish(t Ticket, apply func(*slot)) error {
	if t.cancel != nil {
		defer t.cancel()
	}

	sess := s.session(t.SessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()

	sl := sess.slot(t.Report)
	if sl.seq != t.Seq {
		return ErrSuperseded
	}
	sl.cancel = nil
	apply(sl)
	return nil
}

// Clear empties a slot and cancels any upload in flight for it.
func (s *Store) Clear(sessionID string, report models.ReportType) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()

	sl := sess.slot(report)
	if sl.cancel != nil {
		sl.cancel()
	}
	*sl = slot{seq: sl.seq + 1}
}

func (s *Store) Snapshot(sessionID string, report models.ReportType) SlotSnapshot {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()

	sl := sess.slot(report)
	return SlotSnapshot{
		Report:   report,
		FileName: sl.fileName,
		LoadedAt: sl.loadedAt,
		Columns:  sl.columns,
		Rows:     sl.rows,
		Error:    sl.err,
	}
}

// Sweep drops sessions idle for longer than the store's TTL and returns how
// many were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		if idle {
			for _, sl := range sess.slots {
				if sl.cancel != nil {
					sl.cancel()
				}
			}
		}
		sess.mu.Unlock()

		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("idle sessions evicted", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}

type StoreStats struct {
	Sessions    int                       `json:"sessions"`
	LoadedSlots int                       `json:"loaded_slots"`
	Rows        int                       `json:"rows"`
	ByReport    map[models.ReportType]int `json:"by_report"`
}

func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{
		Sessions: len(s.sessions),
		ByReport: make(map[models.ReportType]int, len(models.ReportTypes)),
	}
	for _, sess := range s.sessions {
		sess.mu.Lock()
		for report, sl := range sess.slots {
			if sl.rows == nil {
				continue
			}
			stats.LoadedSlots++
			stats.Rows += len(sl.rows)
			stats.ByReport[report]++
		}
		sess.mu.Unlock()
	}
	return stats
}
