package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"notes-ledger/internal/auth"
)

type contextKey string

const (
	ParticipantIDKey contextKey = "participant_id"
	RequestIDKey     contextKey = "request_id"
)

// TokenValidator validates participant tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.ParticipantClaims, error)
}

// AuthMiddleware binds requests to authenticated participants
type AuthMiddleware struct {
	tokens  TokenValidator
	enabled bool
}

// NewAuthMiddleware creates a new auth middleware. When disabled, Require
// lets every request through anonymously.
func NewAuthMiddleware(tokens TokenValidator, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		enabled: enabled,
	}
}

// Require validates the bearer token and adds the participant to the context
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Missing or malformed authorization header")
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "Token has expired"
			}
			slog.Debug("Rejected participant token", "error", err, "request_id", GetRequestID(r))
			respondWithError(w, http.StatusUnauthorized, message)
			return
		}

		ctx := context.WithValue(r.Context(), ParticipantIDKey, claims.ParticipantID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetParticipantID retrieves the authenticated participant from the request context
func GetParticipantID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(ParticipantIDKey).(string)
	return id, ok && id != ""
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
