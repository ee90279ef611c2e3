package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/matryer/way"
)

type HTTPHandler struct {
	service Service
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type playerResponse struct {
	PlayerID     uint64 `json:"player_id"`
	Username     string `json:"username,omitempty"`
	Guest        bool   `json:"guest"`
	SessionToken string `json:"session_token,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(service Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) RegisterRoutes(router *way.Router) {
	router.HandleFunc(http.MethodPost, "/api/auth/register", h.handleRegister)
	router.HandleFunc(http.MethodPost, "/api/auth/login", h.handleLogin)
	router.HandleFunc(http.MethodPost, "/api/auth/guest", h.handleGuest)
	router.HandleFunc(http.MethodPost, "/api/auth/logout", h.handleLogout)
	router.HandleFunc(http.MethodGet, "/api/auth/me", h.handleMe)
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// a guest token in the header upgrades that guest instead of creating a new player
	player, token, err := h.service.Register(req.Username, req.Password, BearerToken(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidPassword):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrGuestUpgrade):
			WriteError(w, http.StatusConflict, err.Error())
		default:
			WriteError(w, http.StatusInternalServerError, "register failed")
		}
		return
	}
	WriteJSON(w, http.StatusOK, toResponse(player, token))
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	player, token, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			WriteError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}
	WriteJSON(w, http.StatusOK, toResponse(player, token))
}

func (h *HTTPHandler) handleGuest(w http.ResponseWriter, r *http.Request) {
	player, token, _ := h.service.ResolveOrCreateGuest(BearerToken(r))
	if player.ID == 0 {
		WriteError(w, http.StatusInternalServerError, "guest session failed")
		return
	}
	WriteJSON(w, http.StatusOK, toResponse(player, token))
}

func (h *HTTPHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}
	h.service.Logout(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}
	player, ok := h.service.ResolveSession(token)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	WriteJSON(w, http.StatusOK, toResponse(player, ""))
}

func toResponse(p Player, token string) playerResponse {
	return playerResponse{
		PlayerID:     p.ID,
		Username:     p.Username,
		Guest:        p.Guest,
		SessionToken: token,
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(raw, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorResponse{Error: msg})
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
