package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

func signToken(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifierUserID(t *testing.T) {
	v := NewVerifier("shared-secret")

	tok := signToken(t, "shared-secret", "user-42", time.Now().Add(time.Hour))
	sub, err := v.UserID(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("expected user-42, got %q", sub)
	}
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("right-secret")
	tok := signToken(t, "wrong-secret", "user-42", time.Now().Add(time.Hour))
	if _, err := v.UserID(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifierRejectsExpired(t *testing.T) {
	v := NewVerifier("shared-secret")
	tok := signToken(t, "shared-secret", "user-42", time.Now().Add(-time.Minute))
	if _, err := v.UserID(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifierRejectsGarbage(t *testing.T) {
	v := NewVerifier("shared-secret")
	if _, err := v.UserID("not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestDenylistRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	d := NewDenylist(rdb, time.Hour)
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "token-a")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if revoked {
		t.Fatalf("fresh token must not be revoked")
	}

	if err := d.Revoke(ctx, "token-a"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = d.IsRevoked(ctx, "token-a")
	if err != nil {
		t.Fatalf("check after revoke: %v", err)
	}
	if !revoked {
		t.Fatalf("expected token to be revoked")
	}

	revoked, err = d.IsRevoked(ctx, "token-b")
	if err != nil {
		t.Fatalf("check other token: %v", err)
	}
	if revoked {
		t.Fatalf("other tokens must stay valid")
	}
}
