package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/ledger"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/metrics"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/session"
	"github.com/desireevl/quantum-catsweeper/sweeper"
)

const reapInterval = time.Minute

// Lobby owns one session per player.
type Lobby struct {
	mu       sync.RWMutex
	sessions map[uint64]*session.Session

	gameConfig sweeper.Config
	ledger     ledger.Service
	idleTTL    time.Duration
}

func New(cfg sweeper.Config, ledgerService ledger.Service, idleTTL time.Duration) *Lobby {
	return &Lobby{
		sessions:   make(map[uint64]*session.Session),
		gameConfig: cfg,
		ledger:     ledgerService,
		idleTTL:    idleTTL,
	}
}

// Open returns the player's live session, creating one if needed. The
// second result is true when the session was created by this call.
func (l *Lobby) Open(userID uint64, sendFn func(userID uint64, data []byte)) (*session.Session, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.sessions[userID]; ok && !s.IsClosed() {
		return s, false, nil
	}

	// game ids derive from this, so it must not repeat across restarts
	id := "sess_" + uuid.NewString()
	s, err := session.New(id, userID, l.gameConfig, nil, sendFn, l.ledger)
	if err != nil {
		return nil, false, err
	}
	l.sessions[userID] = s
	metrics.ActiveSessions.Set(float64(len(l.sessions)))

	log.WithField("user", userID).Infof("[Lobby] Opened session %s", id)
	return s, true, nil
}

func (l *Lobby) Get(userID uint64) *session.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessions[userID]
}

// Close ends the player's session, recording any game in progress.
func (l *Lobby) Close(userID uint64) {
	l.mu.Lock()
	s := l.sessions[userID]
	delete(l.sessions, userID)
	metrics.ActiveSessions.Set(float64(len(l.sessions)))
	l.mu.Unlock()

	if s != nil {
		_ = s.SubmitEvent(session.Event{Type: session.EventClose})
		log.WithField("user", userID).Infof("[Lobby] Closed session %s", s.ID)
	}
}

// Reap closes sessions idle for longer than the lobby TTL.
func (l *Lobby) Reap() int {
	l.mu.Lock()
	var stale []*session.Session
	for userID, s := range l.sessions {
		if s.IsIdleFor(l.idleTTL) {
			stale = append(stale, s)
			delete(l.sessions, userID)
		}
	}
	metrics.ActiveSessions.Set(float64(len(l.sessions)))
	l.mu.Unlock()

	for _, s := range stale {
		_ = s.SubmitEvent(session.Event{Type: session.EventClose})
	}
	if len(stale) > 0 {
		log.Infof("[Lobby] Reaped %d idle sessions", len(stale))
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is done, then closes everything. It
// returns once every open game has been handed to the ledger.
func (l *Lobby) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Reap()
		case <-ctx.Done():
			l.CloseAll()
			return
		}
	}
}

func (l *Lobby) CloseAll() {
	l.mu.RLock()
	ids := make([]uint64, 0, len(l.sessions))
	for userID := range l.sessions {
		ids = append(ids, userID)
	}
	l.mu.RUnlock()
	for _, userID := range ids {
		l.Close(userID)
	}
}

func (l *Lobby) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions)
}
