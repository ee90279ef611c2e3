package auth

import "errors"

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrGuestUpgrade       = errors.New("session already belongs to a registered player")
)

// Player is the public view of an account.
type Player struct {
	ID       uint64
	Username string
	Guest    bool
}

// Service is the account contract used by the gateway and the HTTP routes.
type Service interface {
	Register(username, password, guestToken string) (player Player, sessionToken string, err error)
	Login(username, password string) (player Player, sessionToken string, err error)
	ResolveSession(token string) (player Player, ok bool)
	ResolveOrCreateGuest(token string) (player Player, sessionToken string, reused bool)
	Logout(token string)
	// PruneExpired drops expired tokens and returns how many were removed.
	PruneExpired() int
	Close() error
}
