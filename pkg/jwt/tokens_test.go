package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	signer := NewSigner("secret")
	token, err := signer.Issue(Subject{UserID: "user-1", SessionID: "sess-1", Role: "manager"}, TypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := signer.Verify(token, TypeAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != "sess-1" || claims.Role != "manager" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected token id")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewSigner("secret").Issue(Subject{UserID: "user-1", SessionID: "sess-1"}, TypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewSigner("other").Verify(token, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyReportsExpiry(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	signer := NewSigner("secret").WithClock(func() time.Time { return issued })
	token, err := signer.Issue(Subject{UserID: "user-1", SessionID: "sess-1"}, TypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := signer.Verify(token, TypeAccess); err != nil {
		t.Fatalf("Verify before expiry: %v", err)
	}
	later := signer.WithClock(func() time.Time { return issued.Add(2 * time.Minute) })
	if _, err := later.Verify(token, TypeAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsRefreshAsAccess(t *testing.T) {
	signer := NewSigner("secret")
	token, err := signer.Issue(Subject{UserID: "user-1", SessionID: "sess-1"}, TypeRefresh, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := signer.Verify(token, TypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if _, err := NewSigner("secret").Verify("not.a.jwt", TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := (Signer{now: time.Now}).Issue(Subject{UserID: "u"}, TypeAccess, time.Minute); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
