package ledger

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/sqldb"
	"github.com/desireevl/quantum-catsweeper/codec"
)

// trimTail selects every row past the first N; N is the last argument.
func trimTail(d sqldb.Dialect) string {
	if d.Name == sqldb.ModePostgres {
		return "OFFSET ?"
	}
	return "LIMIT -1 OFFSET ?"
}

// sqlStore implements Service over database/sql for both backends.
type sqlStore struct {
	db          *sqldb.DB
	trimTail    string
	recentLimit int
	savedLimit  int
	now         func() time.Time
}

func newSQLStore(db *sqldb.DB, opts Options) *sqlStore {
	recent, saved := opts.limits()
	return &sqlStore{
		db:          db,
		trimTail:    trimTail(db.Dialect),
		recentLimit: recent,
		savedLimit:  saved,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *sqlStore) exec(ctx context.Context, q sqldb.Execer, query string, args ...any) error {
	return s.db.Exec(ctx, q, query, args...)
}

// Close is a no-op; the database belongs to whoever opened it.
func (s *sqlStore) Close() error {
	return nil
}

func (s *sqlStore) AppendEvent(gameID string, env codec.ServerEnvelope, encoded []byte) {
	if strings.TrimSpace(gameID) == "" {
		return
	}
	if encoded == nil {
		raw, err := codec.MarshalServer(env)
		if err != nil {
			log.WithField("game", gameID).Errorf("[Ledger] marshal event failed: %v", err)
			return
		}
		encoded = raw
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.exec(ctx, s.db, `
INSERT INTO game_event_stream (game_id, seq, event_type, envelope_b64, server_ts_ms, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, seq) DO NOTHING
`, gameID, int64(env.ServerSeq), env.Type, base64.StdEncoding.EncodeToString(encoded),
		nullableInt64(env.ServerTsMs), s.now().UnixMilli())
	if err != nil {
		log.WithFields(log.Fields{"game": gameID, "seq": env.ServerSeq}).Errorf("[Ledger] append event failed: %v", err)
	}
}

func (s *sqlStore) RecordGame(userID uint64, gameID string, playedAt time.Time, summary map[string]any, events []EventItem) {
	if userID == 0 || strings.TrimSpace(gameID) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.recordGame(ctx, userID, gameID, playedAt, summary, events); err != nil {
		log.WithFields(log.Fields{"user": userID, "game": gameID}).Errorf("[Ledger] record game failed: %v", err)
	}
}

func (s *sqlStore) recordGame(ctx context.Context, userID uint64, gameID string, playedAt time.Time, summary map[string]any, events []EventItem) error {
	if playedAt.IsZero() {
		playedAt = s.now()
	}
	if summary == nil {
		summary = map[string]any{}
	}
	summaryRaw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	var tape []byte
	if len(events) > 0 {
		if tape, err = json.Marshal(events); err != nil {
			return fmt.Errorf("marshal tape: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := s.now().UnixMilli()
	err = s.exec(ctx, tx, `
INSERT INTO game_history (
    user_id, game_id, played_at_ms, summary_json, tape_blob, is_saved, saved_at_ms, created_at_ms, updated_at_ms
)
VALUES (?, ?, ?, ?, ?, FALSE, NULL, ?, ?)
ON CONFLICT (user_id, game_id) DO UPDATE
SET
    played_at_ms = excluded.played_at_ms,
    summary_json = excluded.summary_json,
    tape_blob = COALESCE(excluded.tape_blob, game_history.tape_blob),
    updated_at_ms = excluded.updated_at_ms
`, int64(userID), gameID, playedAt.UTC().UnixMilli(), string(summaryRaw), nullableBytes(tape), nowMs, nowMs)
	if err != nil {
		return err
	}
	if err := s.trimLocked(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// trimLocked keeps at most recentLimit unsaved games per player.
func (s *sqlStore) trimLocked(ctx context.Context, tx *sql.Tx, userID uint64) error {
	if s.recentLimit <= 0 {
		return nil
	}
	return s.exec(ctx, tx, `
DELETE FROM game_history
WHERE user_id = ?
  AND is_saved = FALSE
  AND id IN (
      SELECT id
      FROM game_history
      WHERE user_id = ?
        AND is_saved = FALSE
      ORDER BY played_at_ms DESC, id DESC
      `+s.trimTail+`
  )
`, int64(userID), int64(userID), s.recentLimit)
}

func (s *sqlStore) ListRecent(ctx context.Context, userID uint64, limit int) ([]HistoryItem, error) {
	if userID == 0 {
		return []HistoryItem{}, nil
	}
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, s.db.Dialect.Rebind(`
SELECT game_id, played_at_ms, summary_json, is_saved, saved_at_ms, updated_at_ms
FROM game_history
WHERE user_id = ?
ORDER BY played_at_ms DESC, id DESC
LIMIT ?
`), int64(userID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]HistoryItem, 0, limit)
	for rows.Next() {
		var (
			item        HistoryItem
			playedAtMs  int64
			summaryRaw  string
			savedAtMs   sql.NullInt64
			updatedAtMs int64
		)
		if err := rows.Scan(&item.GameID, &playedAtMs, &summaryRaw, &item.IsSaved, &savedAtMs, &updatedAtMs); err != nil {
			return nil, err
		}
		item.PlayedAt = time.UnixMilli(playedAtMs).UTC()
		item.UpdatedAt = time.UnixMilli(updatedAtMs).UTC()
		if savedAtMs.Valid {
			t := time.UnixMilli(savedAtMs.Int64).UTC()
			item.SavedAt = &t
		}
		if summaryRaw != "" {
			_ = json.Unmarshal([]byte(summaryRaw), &item.Summary)
		}
		if item.Summary == nil {
			item.Summary = map[string]any{}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetGameEvents prefers the tape stored with the history row and falls back
// to the live event stream.
func (s *sqlStore) GetGameEvents(ctx context.Context, userID uint64, gameID string) ([]EventItem, error) {
	if userID == 0 || strings.TrimSpace(gameID) == "" {
		return nil, ErrNotFound
	}

	var tape []byte
	err := s.db.QueryRowContext(ctx, s.db.Dialect.Rebind(`
SELECT tape_blob
FROM game_history
WHERE user_id = ?
  AND game_id = ?
`), int64(userID), gameID).Scan(&tape)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(tape) > 0 {
		var events []EventItem
		if err := json.Unmarshal(tape, &events); err == nil && len(events) > 0 {
			return events, nil
		}
	}

	rows, err := s.db.QueryContext(ctx, s.db.Dialect.Rebind(`
SELECT seq, event_type, envelope_b64, server_ts_ms
FROM game_event_stream
WHERE game_id = ?
ORDER BY seq ASC
`), gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventItem
	for rows.Next() {
		var (
			e        EventItem
			seq      int64
			serverTs sql.NullInt64
		)
		if err := rows.Scan(&seq, &e.EventType, &e.EnvelopeB64, &serverTs); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		if serverTs.Valid {
			v := serverTs.Int64
			e.ServerTsMs = &v
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

func (s *sqlStore) SetSaved(ctx context.Context, userID uint64, gameID string, saved bool) error {
	if userID == 0 || strings.TrimSpace(gameID) == "" {
		return ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current bool
	err = tx.QueryRowContext(ctx, s.db.Dialect.Rebind(`
SELECT is_saved
FROM game_history
WHERE user_id = ?
  AND game_id = ?
`), int64(userID), gameID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if current == saved {
		return tx.Commit()
	}

	nowMs := s.now().UnixMilli()
	if saved {
		var count int
		if err := tx.QueryRowContext(ctx, s.db.Dialect.Rebind(`
SELECT COUNT(1)
FROM game_history
WHERE user_id = ?
  AND is_saved = TRUE
`), int64(userID)).Scan(&count); err != nil {
			return err
		}
		if count >= s.savedLimit {
			return ErrSavedLimitReach
		}
		if err := s.exec(ctx, tx, `
UPDATE game_history
SET is_saved = TRUE, saved_at_ms = ?, updated_at_ms = ?
WHERE user_id = ?
  AND game_id = ?
`, nowMs, nowMs, int64(userID), gameID); err != nil {
			return err
		}
		return tx.Commit()
	}

	if err := s.exec(ctx, tx, `
UPDATE game_history
SET is_saved = FALSE, saved_at_ms = NULL, updated_at_ms = ?
WHERE user_id = ?
  AND game_id = ?
`, nowMs, int64(userID), gameID); err != nil {
		return err
	}
	// an unsaved game rejoins the recent window and may fall off it
	if err := s.trimLocked(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableBytes(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return v
}
