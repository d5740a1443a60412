package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMintAndVerifyLoginToken(t *testing.T) {
	m := NewMinter([]byte("test-secret"), time.Minute)

	raw, err := m.MintLoginToken("u_123", "user@example.com")
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}

	id, err := m.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if id.UID != "u_123" || id.Email != "user@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestMintLoginTokenRequiresUID(t *testing.T) {
	m := NewMinter([]byte("test-secret"), time.Minute)
	if _, err := m.MintLoginToken("  ", ""); err == nil {
		t.Fatalf("expected error for empty uid")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := NewMinter([]byte("test-secret"), time.Minute)
	raw, err := m.MintLoginToken("u_123", "")
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}

	other := NewMinter([]byte("different-secret"), time.Minute)
	if _, err := other.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewMinter([]byte("test-secret"), -time.Minute)
	raw, err := m.MintLoginToken("u_123", "")
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}
	if _, err := m.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for expired token, got %v", err)
	}
}
