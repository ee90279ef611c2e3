package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/sqldb"
)

const (
	AuthModeMemory = "memory"
	AuthModeDB     = "db"
)

// NormalizeMode folds aliases; an empty mode follows whether a database is
// configured.
func NormalizeMode(raw string, haveDB bool) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		if haveDB {
			return AuthModeDB
		}
		return AuthModeMemory
	case AuthModeDB, "sqlite", "postgres", "postgresql":
		return AuthModeDB
	case AuthModeMemory, "mem":
		return AuthModeMemory
	default:
		return strings.ToLower(strings.TrimSpace(raw))
	}
}

// NewService returns the account store for mode. Accounts must live wherever
// game history lives: memory accounts over a database would hand restarted
// ids to new players, so that pairing is refused.
func NewService(ctx context.Context, mode string, db *sqldb.DB, opts ...Option) (Service, string, error) {
	mode = NormalizeMode(mode, db != nil)
	switch mode {
	case AuthModeDB:
		if db == nil {
			return nil, mode, fmt.Errorf("AUTH_MODE %s needs a persistent ledger", mode)
		}
		m, err := NewSQLManager(ctx, db, opts...)
		if err != nil {
			return nil, mode, err
		}
		return m, mode, nil
	case AuthModeMemory:
		if db != nil {
			return nil, mode, fmt.Errorf("AUTH_MODE %s cannot share a persistent ledger", mode)
		}
		return NewManager(opts...), mode, nil
	default:
		return nil, mode, fmt.Errorf("invalid AUTH_MODE %q (supported: %s, %s)", mode, AuthModeMemory, AuthModeDB)
	}
}
