package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matryer/way"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/auth"
)

type HTTPHandler struct {
	auth   auth.Service
	ledger Service
}

func NewHTTPHandler(authService auth.Service, ledgerService Service) *HTTPHandler {
	return &HTTPHandler{auth: authService, ledger: ledgerService}
}

func (h *HTTPHandler) RegisterRoutes(router *way.Router) {
	router.HandleFunc(http.MethodGet, "/api/history/recent", h.handleRecent)
	router.HandleFunc(http.MethodGet, "/api/history/games/:id", h.handleGame)
	router.HandleFunc(http.MethodPost, "/api/history/games/:id/save", h.handleSave(true))
	router.HandleFunc(http.MethodDelete, "/api/history/games/:id/save", h.handleSave(false))
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(r)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.ListRecent(ctx, userID, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "query recent games failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *HTTPHandler) handleGame(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(r)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	gameID := strings.TrimSpace(way.Param(r.Context(), "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	events, err := h.ledger.GetGameEvents(ctx, userID, gameID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.WriteError(w, http.StatusNotFound, "game not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "query game events failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]any{
		"game_id": gameID,
		"events":  events,
	})
}

func (h *HTTPHandler) handleSave(saved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.resolveUserID(r)
		if !ok {
			auth.WriteError(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		gameID := strings.TrimSpace(way.Param(r.Context(), "id"))

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.ledger.SetSaved(ctx, userID, gameID, saved); err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				auth.WriteError(w, http.StatusNotFound, "game not found")
			case errors.Is(err, ErrSavedLimitReach):
				auth.WriteError(w, http.StatusConflict, "saved game limit reached")
			default:
				auth.WriteError(w, http.StatusInternalServerError, "update save state failed")
			}
			return
		}
		auth.WriteJSON(w, http.StatusOK, map[string]any{
			"game_id":  gameID,
			"is_saved": saved,
		})
	}
}

func (h *HTTPHandler) resolveUserID(r *http.Request) (uint64, bool) {
	token := auth.BearerToken(r)
	if token == "" {
		return 0, false
	}
	player, ok := h.auth.ResolveSession(token)
	if !ok {
		return 0, false
	}
	return player.ID, true
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 20
	}
	return clampLimit(n)
}
