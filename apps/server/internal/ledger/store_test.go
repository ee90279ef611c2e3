package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/sqldb"
	"github.com/desireevl/quantum-catsweeper/codec"
)

func newTestStore(t *testing.T, opts Options) *sqlStore {
	t.Helper()
	db, err := sqldb.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	svc, mode, err := New(context.Background(), db, opts)
	if err != nil || mode != sqldb.ModeSQLite {
		t.Fatalf("init ledger: %v %s", err, mode)
	}
	return svc.(*sqlStore)
}

func TestTrimTail(t *testing.T) {
	if got := trimTail(sqldb.Postgres); got != "OFFSET ?" {
		t.Fatalf("postgres trim tail %q", got)
	}
	if got := trimTail(sqldb.SQLite); got != "LIMIT -1 OFFSET ?" {
		t.Fatalf("sqlite trim tail %q", got)
	}
}

func TestRecordAndListRecent(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	s.RecordGame(7, "g1", base, map[string]any{"phase": "won"}, []EventItem{{Seq: 1, EventType: "snapshot", EnvelopeB64: "AA=="}})
	s.RecordGame(7, "g2", base.Add(time.Minute), map[string]any{"phase": "lost"}, nil)
	s.RecordGame(8, "g3", base, nil, nil)

	items, err := s.ListRecent(ctx, 7, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].GameID != "g2" || items[1].GameID != "g1" {
		t.Fatalf("expected newest first, got %s, %s", items[0].GameID, items[1].GameID)
	}
	if items[1].Summary["phase"] != "won" {
		t.Fatalf("summary not stored: %+v", items[1].Summary)
	}
	if items[0].IsSaved {
		t.Fatalf("new games should not be saved")
	}
}

func TestGetGameEvents(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	s.RecordGame(7, "tape", time.Time{}, nil, []EventItem{{Seq: 1, EventType: "snapshot"}, {Seq: 2, EventType: "click"}})
	events, err := s.GetGameEvents(ctx, 7, "tape")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 2 || events[1].EventType != "click" {
		t.Fatalf("unexpected tape events %+v", events)
	}

	// no tape stored: fall back to the live stream
	for seq := uint64(1); seq <= 3; seq++ {
		s.AppendEvent("live", codec.WrapServerEnvelope("live", seq, codec.TypeClick, map[string]any{"row": 0}), nil)
	}
	s.RecordGame(7, "live", time.Time{}, nil, nil)
	events, err = s.GetGameEvents(ctx, 7, "live")
	if err != nil {
		t.Fatalf("get live events: %v", err)
	}
	if len(events) != 3 || events[0].Seq != 1 || events[2].Seq != 3 {
		t.Fatalf("unexpected live events %+v", events)
	}
	if events[0].EnvelopeB64 == "" || events[0].ServerTsMs == nil {
		t.Fatalf("expected stored envelope and timestamp")
	}

	if _, err := s.GetGameEvents(ctx, 8, "live"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other player should not see the game, got %v", err)
	}
}

func TestRecentLimitTrimsUnsavedOnly(t *testing.T) {
	s := newTestStore(t, Options{RecentLimit: 2, SavedLimit: 5})
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	s.RecordGame(7, "keep", base, nil, nil)
	if err := s.SetSaved(ctx, 7, "keep", true); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i, id := range []string{"a", "b", "c"} {
		s.RecordGame(7, id, base.Add(time.Duration(i+1)*time.Minute), nil, nil)
	}

	items, err := s.ListRecent(ctx, 7, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := map[string]bool{}
	for _, it := range items {
		got[it.GameID] = it.IsSaved
	}
	if len(items) != 3 {
		t.Fatalf("expected 2 unsaved + 1 saved, got %+v", items)
	}
	if _, ok := got["a"]; ok {
		t.Fatalf("oldest unsaved game should be trimmed")
	}
	if saved, ok := got["keep"]; !ok || !saved {
		t.Fatalf("saved game should survive trimming")
	}
}

func TestSetSavedLimit(t *testing.T) {
	s := newTestStore(t, Options{SavedLimit: 1})
	ctx := context.Background()
	s.RecordGame(7, "a", time.Time{}, nil, nil)
	s.RecordGame(7, "b", time.Time{}, nil, nil)

	if err := s.SetSaved(ctx, 7, "a", true); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := s.SetSaved(ctx, 7, "a", true); err != nil {
		t.Fatalf("saving twice should be a no-op: %v", err)
	}
	if err := s.SetSaved(ctx, 7, "b", true); !errors.Is(err, ErrSavedLimitReach) {
		t.Fatalf("expected ErrSavedLimitReach, got %v", err)
	}
	if err := s.SetSaved(ctx, 7, "a", false); err != nil {
		t.Fatalf("unsave a: %v", err)
	}
	if err := s.SetSaved(ctx, 7, "b", true); err != nil {
		t.Fatalf("save b after unsave: %v", err)
	}
	if err := s.SetSaved(ctx, 7, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewWithoutDatabaseRecordsNothing(t *testing.T) {
	svc, mode, err := New(context.Background(), nil, Options{})
	if err != nil || mode != "memory-noop" {
		t.Fatalf("memory mode: %v %s", err, mode)
	}
	svc.RecordGame(1, "x", time.Time{}, nil, nil)
	if _, err := svc.GetGameEvents(context.Background(), 1, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("noop ledger should report not found")
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	db, err := sqldb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	svc, _, err := New(ctx, db, Options{})
	if err != nil {
		t.Fatalf("init ledger: %v", err)
	}
	svc.RecordGame(7, "g1", time.Time{}, map[string]any{"phase": "won"}, nil)
	_ = db.Close()

	db, err = sqldb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer db.Close()
	svc, _, err = New(ctx, db, Options{})
	if err != nil {
		t.Fatalf("re-init ledger: %v", err)
	}
	items, err := svc.ListRecent(ctx, 7, 10)
	if err != nil || len(items) != 1 || items[0].GameID != "g1" {
		t.Fatalf("expected g1 after reopen, got %+v %v", items, err)
	}
}
