package ledger

var sqliteSchema = []string{
	`
CREATE TABLE IF NOT EXISTS game_event_stream (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL DEFAULT '',
    server_ts_ms INTEGER,
    created_at_ms INTEGER NOT NULL,
    UNIQUE (game_id, seq)
)`,
	`CREATE INDEX IF NOT EXISTS idx_game_event_stream_created_at ON game_event_stream(created_at_ms)`,
	`
CREATE TABLE IF NOT EXISTS game_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    game_id TEXT NOT NULL,
    played_at_ms INTEGER NOT NULL,
    summary_json TEXT NOT NULL DEFAULT '{}',
    tape_blob BLOB,
    is_saved BOOLEAN NOT NULL DEFAULT FALSE,
    saved_at_ms INTEGER,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    UNIQUE (user_id, game_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_game_history_recent ON game_history(user_id, played_at_ms DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_game_history_saved ON game_history(user_id, is_saved)`,
}

var postgresSchema = []string{
	`
CREATE TABLE IF NOT EXISTS game_event_stream (
    id BIGSERIAL PRIMARY KEY,
    game_id TEXT NOT NULL,
    seq BIGINT NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL DEFAULT '',
    server_ts_ms BIGINT,
    created_at_ms BIGINT NOT NULL,
    UNIQUE (game_id, seq)
)`,
	`CREATE INDEX IF NOT EXISTS idx_game_event_stream_created_at ON game_event_stream(created_at_ms)`,
	`
CREATE TABLE IF NOT EXISTS game_history (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    game_id TEXT NOT NULL,
    played_at_ms BIGINT NOT NULL,
    summary_json TEXT NOT NULL DEFAULT '{}',
    tape_blob BYTEA,
    is_saved BOOLEAN NOT NULL DEFAULT FALSE,
    saved_at_ms BIGINT,
    created_at_ms BIGINT NOT NULL,
    updated_at_ms BIGINT NOT NULL,
    UNIQUE (user_id, game_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_game_history_recent ON game_history(user_id, played_at_ms DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_game_history_saved ON game_history(user_id, is_saved)`,
}
