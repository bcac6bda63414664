package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Authenticator implements the simulated login flow: a single configured
// credential pair and opaque in-memory session tokens. It is a demo stand-in,
// not real authentication, and is disabled by default.
type Authenticator struct {
	cfg domain.AuthConfig

	mu       sync.RWMutex
	sessions map[string]time.Time // token -> issued at
}

// NewAuthenticator creates an authenticator from config.
func NewAuthenticator(cfg domain.AuthConfig) *Authenticator {
	return &Authenticator{
		cfg:      cfg,
		sessions: make(map[string]time.Time),
	}
}

// Enabled reports whether bearer-token enforcement is on.
func (a *Authenticator) Enabled() bool {
	return a.cfg.Enabled
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates the demo credentials and issues a session token.
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(req.Email), []byte(a.cfg.Email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.cfg.Password)) == 1
	if !emailOK || !passOK {
		slog.Warn("login rejected", "email", req.Email)
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
		return
	}

	token := uuid.New().String()
	a.mu.Lock()
	a.sessions[token] = time.Now().UTC()
	a.mu.Unlock()

	slog.Info("login accepted", "email", req.Email)
	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"email": req.Email,
	})
}

// Valid reports whether a session token was issued by this authenticator.
func (a *Authenticator) Valid(token string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.sessions[token]
	return ok
}

// Middleware enforces a valid bearer token on the wrapped routes. When auth
// is disabled it passes every request through.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || !a.Valid(token) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "missing or invalid session token",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
