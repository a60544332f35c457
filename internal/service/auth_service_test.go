package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-quiz/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}
}

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := NewAuthService(testConfig())

	token, err := svc.GenerateToken("u-1", TokenTypeCandidate)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "u-1" || claims.TokenType != TokenTypeCandidate || claims.Subject != "u-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(testConfig())

	other := NewAuthService(&config.Config{JWTSecret: "other-secret", JWTExpiry: time.Hour})
	forged, _ := other.GenerateToken("u-1", TokenTypeAdmin)

	expiredSvc := NewAuthService(testConfig())
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredSvc.GenerateToken("u-1", TokenTypeCandidate)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"expired":      expired,
		"alg none":     none,
	} {
		if _, err := svc.ValidateToken(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	if _, err := svc.GenerateToken("", TokenTypeCandidate); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected empty user id to be refused, got %v", err)
	}
}
