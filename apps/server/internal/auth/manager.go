package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	tokenBytes        = 32
	firstPlayerID     = 1000
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

// Manager keeps players and session tokens in memory.
// Guests get an account on first contact; Register can later attach
// credentials to that same account so its history follows the player.
type Manager struct {
	mu sync.Mutex
	settings

	nextID   uint64
	sessions map[string]session
	players  map[uint64]account
	byName   map[string]uint64
}

type session struct {
	playerID  uint64
	expiresAt time.Time
}

type account struct {
	player       Player
	passwordHash []byte
	lastSeen     time.Time
}

// settings are shared by every account store.
type settings struct {
	now        func() time.Time
	sessionTTL time.Duration
}

type Option func(*settings)

// WithSessionTTL overrides how long an idle token stays valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{now: time.Now, sessionTTL: DefaultSessionTTL}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewManager returns an in-memory store. Player ids restart with the
// process, so it only pairs with a ledger that forgets too.
func NewManager(opts ...Option) *Manager {
	return &Manager{
		settings: newSettings(opts),
		nextID:   firstPlayerID,
		sessions: make(map[string]session),
		players:  make(map[uint64]account),
		byName:   make(map[string]uint64),
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateCredentials(username, password string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

func (m *Manager) issueLocked(playerID uint64, now time.Time) string {
	token := newToken()
	m.sessions[token] = session{playerID: playerID, expiresAt: now.Add(m.sessionTTL)}
	return token
}

func (m *Manager) resolveLocked(token string, now time.Time) (Player, bool) {
	if token == "" {
		return Player{}, false
	}
	s, ok := m.sessions[token]
	if !ok {
		return Player{}, false
	}
	if !now.Before(s.expiresAt) {
		delete(m.sessions, token)
		return Player{}, false
	}
	s.expiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = s

	acc := m.players[s.playerID]
	acc.lastSeen = now
	m.players[s.playerID] = acc
	return acc.player, true
}

// Register creates a named account. When guestToken resolves to a guest,
// the guest account is upgraded in place and keeps its player ID.
func (m *Manager) Register(username, password, guestToken string) (Player, string, error) {
	if err := validateCredentials(username, password); err != nil {
		return Player{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Player{}, "", fmt.Errorf("hash password: %w", err)
	}
	name := normalizeUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byName[name]; taken {
		return Player{}, "", ErrUsernameTaken
	}

	now := m.now()
	var acc account
	if guest, ok := m.resolveLocked(guestToken, now); ok {
		if !guest.Guest {
			return Player{}, "", ErrGuestUpgrade
		}
		acc = m.players[guest.ID]
		delete(m.sessions, guestToken)
	} else {
		m.nextID++
		acc.player.ID = m.nextID
	}
	acc.player.Username = name
	acc.player.Guest = false
	acc.passwordHash = hash
	acc.lastSeen = now
	m.players[acc.player.ID] = acc
	m.byName[name] = acc.player.ID

	log.WithField("player", acc.player.ID).Infof("[Auth] registered %s", name)
	return acc.player, m.issueLocked(acc.player.ID, now), nil
}

// Login checks credentials and issues a fresh token.
func (m *Manager) Login(username, password string) (Player, string, error) {
	name := normalizeUsername(username)
	if name == "" || password == "" {
		return Player{}, "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byName[name]
	if !ok {
		return Player{}, "", ErrInvalidCredentials
	}
	acc := m.players[id]
	if len(acc.passwordHash) == 0 || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		return Player{}, "", ErrInvalidCredentials
	}

	now := m.now()
	acc.lastSeen = now
	m.players[id] = acc
	return acc.player, m.issueLocked(id, now), nil
}

// ResolveSession validates a token and slides its expiry forward.
func (m *Manager) ResolveSession(token string) (Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(token, m.now())
}

// ResolveOrCreateGuest returns the player bound to token, or a new guest
// with a new token when the token is empty, unknown or expired.
func (m *Manager) ResolveOrCreateGuest(token string) (Player, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if p, ok := m.resolveLocked(token, now); ok {
		return p, token, true
	}

	m.nextID++
	p := Player{ID: m.nextID, Guest: true}
	m.players[p.ID] = account{player: p, lastSeen: now}
	return p, m.issueLocked(p.ID, now), false
}

func (m *Manager) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) Close() error { return nil }

func (m *Manager) PruneExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for token, s := range m.sessions {
		if !now.Before(s.expiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed
}

func newToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
