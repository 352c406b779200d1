package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type Verifier interface {
	Verify(token string) (Identity, error)
}

type Middleware struct {
	verifier Verifier
	logger   *slog.Logger
}

func NewMiddleware(verifier Verifier, logger *slog.Logger) *Middleware {
	return &Middleware{
		verifier: verifier,
		logger:   logger,
	}
}

// Require rejects requests without a valid bearer token and stores the
// caller's Identity in the request context for h.
func (m *Middleware) Require(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
		if scheme != "Bearer" || token == "" {
			m.unauthorized(w, "Unauthorized")
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Debug("rejected bearer token", "error", err)
			m.unauthorized(w, "Invalid or expired token")
			return
		}

		h(w, r.WithContext(WithIdentity(r.Context(), identity)))
	}
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		m.logger.Error("failed to encode response", "error", err)
	}
}
