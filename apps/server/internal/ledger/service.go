package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/sqldb"
	"github.com/desireevl/quantum-catsweeper/codec"
)

const (
	defaultRecentLimit = 200
	defaultSavedLimit  = 50
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSavedLimitReach = errors.New("saved game limit reached")
)

// Service stores finished games per player plus the raw event stream of
// every live game. Write paths log and swallow errors so a broken store
// never stalls a session.
type Service interface {
	Close() error
	AppendEvent(gameID string, env codec.ServerEnvelope, encoded []byte)
	RecordGame(userID uint64, gameID string, playedAt time.Time, summary map[string]any, events []EventItem)
	ListRecent(ctx context.Context, userID uint64, limit int) ([]HistoryItem, error)
	GetGameEvents(ctx context.Context, userID uint64, gameID string) ([]EventItem, error)
	SetSaved(ctx context.Context, userID uint64, gameID string, saved bool) error
}

type HistoryItem struct {
	GameID    string         `json:"game_id"`
	PlayedAt  time.Time      `json:"played_at"`
	IsSaved   bool           `json:"is_saved"`
	SavedAt   *time.Time     `json:"saved_at,omitempty"`
	Summary   map[string]any `json:"summary"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type EventItem struct {
	Seq         uint64 `json:"seq"`
	EventType   string `json:"event_type"`
	EnvelopeB64 string `json:"envelope_b64"`
	ServerTsMs  *int64 `json:"server_ts_ms,omitempty"`
}

// Options tunes the retention window.
type Options struct {
	RecentLimit int
	SavedLimit  int
}

func (o Options) limits() (recent, saved int) {
	recent, saved = o.RecentLimit, o.SavedLimit
	if recent <= 0 {
		recent = defaultRecentLimit
	}
	if saved <= 0 {
		saved = defaultSavedLimit
	}
	return recent, saved
}

// New returns a ledger on db and the mode actually used. A nil db means no
// persistence and yields a ledger that records nothing. The caller owns db.
func New(ctx context.Context, db *sqldb.DB, opts Options) (Service, string, error) {
	if db == nil {
		return noopService{}, "memory-noop", nil
	}
	if err := db.Migrate(ctx, sqliteSchema, postgresSchema); err != nil {
		return nil, "", fmt.Errorf("init ledger: %w", err)
	}
	return newSQLStore(db, opts), db.Dialect.Name, nil
}

type noopService struct{}

func (noopService) Close() error { return nil }

func (noopService) AppendEvent(string, codec.ServerEnvelope, []byte) {}

func (noopService) RecordGame(uint64, string, time.Time, map[string]any, []EventItem) {}

func (noopService) ListRecent(context.Context, uint64, int) ([]HistoryItem, error) {
	return []HistoryItem{}, nil
}

func (noopService) GetGameEvents(context.Context, uint64, string) ([]EventItem, error) {
	return nil, ErrNotFound
}

func (noopService) SetSaved(context.Context, uint64, string, bool) error {
	return ErrNotFound
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
