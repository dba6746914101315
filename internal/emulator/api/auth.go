package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shunichi-ikebuchi/settlement-books/internal/emulator/store"
)

const tokenTTL = time.Hour

// TokenResponse represents the OAuth2 token response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenHandler issues access tokens for any grant.
type TokenHandler struct {
	store *store.Store
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(s *store.Store) *TokenHandler {
	return &TokenHandler{store: s}
}

// Issue handles POST /oauth/token.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse form")
		return
	}
	if r.FormValue("grant_type") == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Missing grant_type")
		return
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to generate access token")
		return
	}
	token := base64.URLEncoding.EncodeToString(b)
	if err := h.store.PutToken(token, time.Now().Add(tokenTTL)); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to store access token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(tokenTTL.Seconds()),
	})
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(s *store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or malformed Authorization header")
				return
			}

			expiresAt, err := s.TokenExpiry(token)
			if errors.Is(err, store.ErrNotFound) {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to validate token")
				return
			}
			if time.Now().After(expiresAt) {
				_ = s.DeleteToken(token)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
