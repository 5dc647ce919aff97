package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

func TestIssuer_RoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	issuer, err := NewIssuer("test-secret", time.Hour, clock)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	userID := uuid.New()
	token, err := issuer.Issue(userID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got != userID {
		t.Errorf("Parse() = %s, want %s", got, userID)
	}
}

func TestIssuer_Rejects(t *testing.T) {
	clock := clockwork.NewFakeClock()
	issuer, _ := NewIssuer("test-secret", time.Hour, clock)
	other, _ := NewIssuer("other-secret", time.Hour, clock)

	expired, _ := issuer.Issue(uuid.New())
	foreign, _ := other.Issue(uuid.New())
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: uuid.NewString(),
		Issuer:  issuerName,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	clock.Advance(2 * time.Hour)
	fresh, _ := issuer.Issue(uuid.New())

	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{name: "fresh", token: fresh, ok: true},
		{name: "expired", token: expired},
		{name: "wrong secret", token: foreign},
		{name: "unsigned", token: noneAlg},
		{name: "garbage", token: "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Parse(tt.token)
			if tt.ok {
				if err != nil {
					t.Fatalf("Parse() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Parse() error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour, nil); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("NewIssuer() error = %v, want %v", err, ErrEmptySecret)
	}
}

func TestCurrentUserID(t *testing.T) {
	if _, ok := CurrentUserID(context.Background()); ok {
		t.Error("background context should be anonymous")
	}

	userID := uuid.New()
	got, ok := CurrentUserID(WithUserID(context.Background(), userID))
	if !ok || got != userID {
		t.Errorf("CurrentUserID() = %s, %v, want %s, true", got, ok, userID)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("CheckPassword() rejected the right password")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("CheckPassword() accepted the wrong password")
	}
	if CheckPassword("", "") {
		t.Error("CheckPassword() accepted an empty hash")
	}
}
