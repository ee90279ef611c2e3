package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/way"
)

func newTestRouter() (*way.Router, *Manager) {
	m := NewManager()
	router := way.NewRouter()
	NewHTTPHandler(m).RegisterRoutes(router)
	return router, m
}

func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHTTPRegisterThenMe(t *testing.T) {
	router, _ := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/api/auth/register", "", `{"username":"carol_1","password":"secret12"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status %d body=%s", rec.Code, rec.Body.String())
	}
	var reg playerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if reg.SessionToken == "" || reg.Guest {
		t.Fatalf("unexpected register response %+v", reg)
	}

	rec = doRequest(router, http.MethodGet, "/api/auth/me", reg.SessionToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me status %d", rec.Code)
	}
	var me playerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.PlayerID != reg.PlayerID || me.Username != "carol_1" {
		t.Fatalf("unexpected me response %+v", me)
	}

	rec = doRequest(router, http.MethodPost, "/api/auth/logout", reg.SessionToken, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status %d", rec.Code)
	}
	rec = doRequest(router, http.MethodGet, "/api/auth/me", reg.SessionToken, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestHTTPErrors(t *testing.T) {
	router, m := newTestRouter()
	if _, _, err := m.Register("dave_1", "secret12", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/auth/register", `{`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/auth/login", `{"user":"x"}`, http.StatusBadRequest},
		{"duplicate", http.MethodPost, "/api/auth/register", `{"username":"dave_1","password":"secret12"}`, http.StatusConflict},
		{"wrong password", http.MethodPost, "/api/auth/login", `{"username":"dave_1","password":"nope123"}`, http.StatusUnauthorized},
		{"me without token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{"logout without token", http.MethodPost, "/api/auth/logout", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(router, tc.method, tc.path, "", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHTTPGuest(t *testing.T) {
	router, _ := newTestRouter()
	rec := doRequest(router, http.MethodPost, "/api/auth/guest", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("guest status %d", rec.Code)
	}
	var resp playerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Guest || resp.SessionToken == "" {
		t.Fatalf("unexpected guest response %+v", resp)
	}
}
