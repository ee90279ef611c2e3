package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/sqldb"
)

const storeTimeout = 5 * time.Second

var sqliteAuthSchema = []string{
	`
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT,
    password_hash TEXT,
    is_guest BOOLEAN NOT NULL DEFAULT TRUE,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    last_seen_at_ms INTEGER NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_accounts_username ON accounts(username)`,
	`
CREATE TABLE IF NOT EXISTS auth_sessions (
    token TEXT PRIMARY KEY,
    account_id INTEGER NOT NULL,
    issued_at_ms INTEGER NOT NULL,
    expires_at_ms INTEGER NOT NULL,
    last_seen_at_ms INTEGER NOT NULL,
    FOREIGN KEY(account_id) REFERENCES accounts(id) ON DELETE CASCADE
)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires ON auth_sessions(expires_at_ms)`,
}

var postgresAuthSchema = []string{
	`
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    username TEXT,
    password_hash TEXT,
    is_guest BOOLEAN NOT NULL DEFAULT TRUE,
    created_at_ms BIGINT NOT NULL,
    updated_at_ms BIGINT NOT NULL,
    last_seen_at_ms BIGINT NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_accounts_username ON accounts(username)`,
	`
CREATE TABLE IF NOT EXISTS auth_sessions (
    token TEXT PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    issued_at_ms BIGINT NOT NULL,
    expires_at_ms BIGINT NOT NULL,
    last_seen_at_ms BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires ON auth_sessions(expires_at_ms)`,
}

// SQLManager keeps accounts and tokens in the server database, so player ids
// keep counting up across restarts and never point at someone else's games.
// Guests are rows without a username.
type SQLManager struct {
	settings
	db *sqldb.DB
}

// NewSQLManager creates the account tables on db if needed. The caller owns db.
func NewSQLManager(ctx context.Context, db *sqldb.DB, opts ...Option) (*SQLManager, error) {
	if db == nil {
		return nil, fmt.Errorf("nil account database")
	}
	if err := db.Migrate(ctx, sqliteAuthSchema, postgresAuthSchema); err != nil {
		return nil, fmt.Errorf("init accounts: %w", err)
	}
	return &SQLManager{settings: newSettings(opts), db: db}, nil
}

func (m *SQLManager) Close() error { return nil }

func (m *SQLManager) nowMs() int64 {
	return m.now().UTC().UnixMilli()
}

func (m *SQLManager) Register(username, password, guestToken string) (Player, string, error) {
	if err := validateCredentials(username, password); err != nil {
		return Player{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Player{}, "", fmt.Errorf("hash password: %w", err)
	}
	name := normalizeUsername(username)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Player{}, "", err
	}
	defer tx.Rollback()

	var taken int
	if err := tx.QueryRowContext(ctx, m.db.Dialect.Rebind(`
SELECT COUNT(1) FROM accounts WHERE username = ?
`), name).Scan(&taken); err != nil {
		return Player{}, "", err
	}
	if taken > 0 {
		return Player{}, "", ErrUsernameTaken
	}

	nowMs := m.nowMs()
	var id uint64
	guest, isGuest, err := m.lookupTx(ctx, tx, guestToken, nowMs)
	switch {
	case err != nil:
		return Player{}, "", err
	case guest != 0 && !isGuest:
		return Player{}, "", ErrGuestUpgrade
	case guest != 0:
		id = guest
		err = m.db.Exec(ctx, tx, `
UPDATE accounts
SET username = ?, password_hash = ?, is_guest = FALSE, updated_at_ms = ?, last_seen_at_ms = ?
WHERE id = ?
`, name, string(hash), nowMs, nowMs, int64(id))
		if err == nil {
			err = m.db.Exec(ctx, tx, `DELETE FROM auth_sessions WHERE token = ?`, guestToken)
		}
	default:
		err = tx.QueryRowContext(ctx, m.db.Dialect.Rebind(`
INSERT INTO accounts (username, password_hash, is_guest, created_at_ms, updated_at_ms, last_seen_at_ms)
VALUES (?, ?, FALSE, ?, ?, ?)
RETURNING id
`), name, string(hash), nowMs, nowMs, nowMs).Scan(&id)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return Player{}, "", ErrUsernameTaken
		}
		return Player{}, "", err
	}

	token, err := m.issueSessionTx(ctx, tx, id, nowMs)
	if err != nil {
		return Player{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return Player{}, "", err
	}
	log.WithField("player", id).Infof("[Auth] registered %s", name)
	return Player{ID: id, Username: name}, token, nil
}

func (m *SQLManager) Login(username, password string) (Player, string, error) {
	name := normalizeUsername(username)
	if name == "" || password == "" {
		return Player{}, "", ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var (
		id   int64
		hash sql.NullString
	)
	err := m.db.QueryRowContext(ctx, m.db.Dialect.Rebind(`
SELECT id, password_hash
FROM accounts
WHERE username = ?
  AND is_guest = FALSE
`), name).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Player{}, "", ErrInvalidCredentials
		}
		return Player{}, "", err
	}
	if !hash.Valid || bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(password)) != nil {
		return Player{}, "", ErrInvalidCredentials
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Player{}, "", err
	}
	defer tx.Rollback()

	nowMs := m.nowMs()
	if err := m.db.Exec(ctx, tx, `
UPDATE accounts
SET last_seen_at_ms = ?, updated_at_ms = ?
WHERE id = ?
`, nowMs, nowMs, id); err != nil {
		return Player{}, "", err
	}
	token, err := m.issueSessionTx(ctx, tx, uint64(id), nowMs)
	if err != nil {
		return Player{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return Player{}, "", err
	}
	return Player{ID: uint64(id), Username: name}, token, nil
}

// ResolveSession validates a token and slides its expiry forward.
func (m *SQLManager) ResolveSession(token string) (Player, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Player{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Player{}, false
	}
	defer tx.Rollback()

	nowMs := m.nowMs()
	res, err := tx.ExecContext(ctx, m.db.Dialect.Rebind(`
UPDATE auth_sessions
SET last_seen_at_ms = ?, expires_at_ms = ?
WHERE token = ?
  AND expires_at_ms > ?
`), nowMs, nowMs+m.sessionTTL.Milliseconds(), token, nowMs)
	if err != nil {
		return Player{}, false
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return Player{}, false
	}

	var (
		id       int64
		username sql.NullString
		guest    bool
	)
	err = tx.QueryRowContext(ctx, m.db.Dialect.Rebind(`
SELECT a.id, a.username, a.is_guest
FROM auth_sessions AS s
JOIN accounts AS a ON a.id = s.account_id
WHERE s.token = ?
`), token).Scan(&id, &username, &guest)
	if err != nil {
		return Player{}, false
	}
	if err := m.db.Exec(ctx, tx, `UPDATE accounts SET last_seen_at_ms = ? WHERE id = ?`, nowMs, id); err != nil {
		return Player{}, false
	}
	if err := tx.Commit(); err != nil {
		return Player{}, false
	}
	return Player{ID: uint64(id), Username: username.String, Guest: guest}, true
}

// ResolveOrCreateGuest returns the player bound to token, or a new guest
// with a new token. A zero player means the database refused the insert.
func (m *SQLManager) ResolveOrCreateGuest(token string) (Player, string, bool) {
	if p, ok := m.ResolveSession(token); ok {
		return p, token, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		log.Errorf("[Auth] create guest failed: %v", err)
		return Player{}, "", false
	}
	defer tx.Rollback()

	nowMs := m.nowMs()
	var id uint64
	if err := tx.QueryRowContext(ctx, m.db.Dialect.Rebind(`
INSERT INTO accounts (username, password_hash, is_guest, created_at_ms, updated_at_ms, last_seen_at_ms)
VALUES (NULL, NULL, TRUE, ?, ?, ?)
RETURNING id
`), nowMs, nowMs, nowMs).Scan(&id); err != nil {
		log.Errorf("[Auth] create guest failed: %v", err)
		return Player{}, "", false
	}
	sessionToken, err := m.issueSessionTx(ctx, tx, id, nowMs)
	if err != nil {
		log.Errorf("[Auth] create guest failed: %v", err)
		return Player{}, "", false
	}
	if err := tx.Commit(); err != nil {
		log.Errorf("[Auth] create guest failed: %v", err)
		return Player{}, "", false
	}
	return Player{ID: id, Guest: true}, sessionToken, false
}

func (m *SQLManager) Logout(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.db.Exec(ctx, m.db, `DELETE FROM auth_sessions WHERE token = ?`, token); err != nil {
		log.Warnf("[Auth] logout failed: %v", err)
	}
}

func (m *SQLManager) PruneExpired() int {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	res, err := m.db.ExecContext(ctx, m.db.Dialect.Rebind(`
DELETE FROM auth_sessions WHERE expires_at_ms <= ?
`), m.nowMs())
	if err != nil {
		log.Warnf("[Auth] prune sessions failed: %v", err)
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// lookupTx returns the account behind a live token, or zero.
func (m *SQLManager) lookupTx(ctx context.Context, tx *sql.Tx, token string, nowMs int64) (uint64, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false, nil
	}
	var (
		id    int64
		guest bool
	)
	err := tx.QueryRowContext(ctx, m.db.Dialect.Rebind(`
SELECT a.id, a.is_guest
FROM auth_sessions AS s
JOIN accounts AS a ON a.id = s.account_id
WHERE s.token = ?
  AND s.expires_at_ms > ?
`), token, nowMs).Scan(&id, &guest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(id), guest, nil
}

func (m *SQLManager) issueSessionTx(ctx context.Context, tx *sql.Tx, accountID uint64, nowMs int64) (string, error) {
	expiresAtMs := nowMs + m.sessionTTL.Milliseconds()
	for i := 0; i < 5; i++ {
		token := newToken()
		err := m.db.Exec(ctx, tx, `
INSERT INTO auth_sessions (token, account_id, issued_at_ms, expires_at_ms, last_seen_at_ms)
VALUES (?, ?, ?, ?, ?)
`, token, int64(accountID), nowMs, expiresAtMs, nowMs)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return "", err
		}
		return token, nil
	}
	return "", fmt.Errorf("failed to generate unique session token")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
