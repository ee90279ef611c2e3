package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/ledger"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/metrics"
	"github.com/desireevl/quantum-catsweeper/codec"
	"github.com/desireevl/quantum-catsweeper/sweeper"
)

// Session is one player's game, run as an actor: every mutation goes
// through the events channel and is applied by run.
type Session struct {
	ID     string
	UserID uint64

	mu       sync.RWMutex
	game     *sweeper.Game
	closed   bool
	stopOnce sync.Once
	lastSeen time.Time

	events chan Event
	done   chan struct{}

	serverSeq uint64

	send     func(userID uint64, data []byte)
	ledger   ledger.Service
	gameID   string
	playedAt time.Time
	tape     []ledger.EventItem
	recorded bool
}

type EventType int

const (
	EventClick EventType = iota
	EventNewGame
	EventSnapshot
	EventClose
)

// Event is a message to the session actor.
type Event struct {
	Type      EventType
	Row       int
	Col       int
	Timestamp time.Time
	Response  chan error
}

var ErrSessionClosed = errors.New("session closed")

// New starts a session with a fresh game. coin may be nil, in which case the
// game picks its own from cfg.
func New(
	id string,
	userID uint64,
	cfg sweeper.Config,
	coin sweeper.BiasedCoin,
	sendFn func(userID uint64, data []byte),
	ledgerService ledger.Service,
) (*Session, error) {
	game, err := sweeper.NewGame(cfg, coin)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	s := &Session{
		ID:       id,
		UserID:   userID,
		game:     game,
		lastSeen: time.Now(),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		send:     sendFn,
		ledger:   ledgerService,
	}
	s.beginGameLocked()

	go s.run()

	log.WithFields(log.Fields{"session": id, "user": userID}).
		Infof("[Session] Created (size=%d, bombs=%d)", cfg.Size, cfg.BombCount)
	return s, nil
}

func (s *Session) run() {
	for {
		select {
		case e := <-s.events:
			err := s.handleEvent(e)
			if e.Response != nil {
				e.Response <- err
			}
		case <-s.done:
			log.WithField("session", s.ID).Debug("[Session] Actor stopped")
			return
		}
	}
}

func (s *Session) handleEvent(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.lastSeen = e.Timestamp

	switch e.Type {
	case EventClick:
		return s.handleClick(e.Row, e.Col)
	case EventNewGame:
		return s.handleNewGame()
	case EventSnapshot:
		s.sendLocked(codec.TypeSnapshot, codec.SnapshotPayload(s.game.Snapshot()))
		return nil
	case EventClose:
		s.abandonLocked()
		s.stopLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (s *Session) handleClick(row, col int) error {
	res, err := s.game.Click(row, col)
	if err != nil {
		return err
	}
	metrics.ObserveClick(res)
	s.sendLocked(codec.TypeClick, codec.ClickPayload(res))

	if res.Phase != sweeper.PhasePlaying {
		s.finishLocked()
	}
	return nil
}

func (s *Session) handleNewGame() error {
	s.abandonLocked()
	if err := s.game.NewRound(); err != nil {
		return err
	}
	s.beginGameLocked()
	s.sendLocked(codec.TypeSnapshot, codec.SnapshotPayload(s.game.Snapshot()))
	return nil
}

func (s *Session) beginGameLocked() {
	s.gameID = fmt.Sprintf("%s_r%d", s.ID, s.game.Round())
	s.playedAt = time.Now().UTC()
	s.tape = s.tape[:0]
	s.recorded = false
}

func (s *Session) finishLocked() {
	snap := s.game.Snapshot()
	metrics.ObserveGameEnd(snap.Phase)
	s.sendLocked(codec.TypeGameEnd, codec.GameEndPayload(snap, s.game.Board()))
	s.recordLocked(snap.Phase.String(), snap)

	log.WithFields(log.Fields{
		"session": s.ID,
		"game":    s.gameID,
		"moves":   snap.Moves,
	}).Infof("[Session] Game %s", snap.Phase)
}

// abandonLocked records a game left mid-play. Untouched games are dropped.
func (s *Session) abandonLocked() {
	snap := s.game.Snapshot()
	if s.recorded || snap.Phase != sweeper.PhasePlaying || snap.Moves == 0 {
		return
	}
	s.recordLocked("abandoned", snap)
}

func (s *Session) recordLocked(result string, snap sweeper.Snapshot) {
	s.recorded = true
	if s.ledger == nil {
		return
	}
	summary := map[string]any{
		"result":     result,
		"moves":      snap.Moves,
		"defused":    snap.Defused,
		"size":       snap.Size,
		"bomb_count": snap.BombCount,
		"revealed":   snap.RevealedCount(),
	}
	events := make([]ledger.EventItem, len(s.tape))
	copy(events, s.tape)
	s.ledger.RecordGame(s.UserID, s.gameID, s.playedAt, summary, events)
}

func (s *Session) nextSeq() uint64 {
	s.serverSeq++
	return s.serverSeq
}

func (s *Session) sendLocked(kind string, payload map[string]any) {
	env := codec.WrapServerEnvelope(s.ID, s.nextSeq(), kind, payload)
	data, err := codec.MarshalServer(env)
	if err != nil {
		log.WithField("session", s.ID).Errorf("[Session] Failed to marshal %s: %v", kind, err)
		return
	}

	ts := env.ServerTsMs
	s.tape = append(s.tape, ledger.EventItem{
		Seq:         env.ServerSeq,
		EventType:   kind,
		EnvelopeB64: base64.StdEncoding.EncodeToString(data),
		ServerTsMs:  &ts,
	})
	if s.ledger != nil {
		encoded := make([]byte, len(data))
		copy(encoded, data)
		go s.ledger.AppendEvent(s.gameID, env, encoded)
	}
	if s.send != nil {
		s.send(s.UserID, data)
	}
}

// SubmitEvent hands e to the actor and waits for it to be applied.
func (s *Session) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	if s.IsClosed() {
		return ErrSessionClosed
	}

	select {
	case s.events <- e:
	case <-s.done:
		return ErrSessionClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// Stop ends the actor without recording anything.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.closed = true
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// IsIdleFor reports whether no event arrived within ttl.
func (s *Session) IsIdleFor(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	return time.Since(s.lastSeen) >= ttl
}

// Snapshot is safe to call from any goroutine.
func (s *Session) Snapshot() sweeper.Snapshot {
	return s.game.Snapshot()
}

func (s *Session) GameID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameID
}
