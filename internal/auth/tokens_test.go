package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/storefront-api/internal/domain"
)

func TestTokens_IssueAndVerify(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	token, err := tokens.Issue(&domain.User{ID: "user-1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	identity, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}
	if identity.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", identity.UserID)
	}
	if identity.Email != "ada@example.com" {
		t.Errorf("expected ada@example.com, got %s", identity.Email)
	}
}

func TestTokens_Verify(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{ID: "user-1", Email: "ada@example.com"}

	t.Run("rejects expired token", func(t *testing.T) {
		tokens := NewTokens("secret", time.Hour)
		tokens.now = func() time.Time { return issuedAt }
		token, err := tokens.Issue(user)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		tokens.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
		if _, err := tokens.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		token, err := NewTokens("other", time.Hour).Issue(user)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		if _, err := NewTokens("secret", time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("rejects unsigned token", func(t *testing.T) {
		claims := Claims{
			UserID: "user-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("failed to build token: %v", err)
		}

		if _, err := NewTokens("secret", time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := NewTokens("secret", time.Hour).Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}
