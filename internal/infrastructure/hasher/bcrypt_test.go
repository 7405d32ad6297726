package hasher

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_EncodeVerify(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	hash, err := h.Encode("s3cret")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if hash == "s3cret" {
		t.Fatalf("expected hash, got plain text")
	}
	if !h.Verify("s3cret", hash) {
		t.Fatalf("expected verify to succeed")
	}
	if h.Verify("wrong", hash) {
		t.Fatalf("expected verify to fail for wrong secret")
	}
}

func TestBcrypt_EncodeIsSalted(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	a, _ := h.Encode("same")
	b, _ := h.Encode("same")
	if a == b {
		t.Fatalf("expected different hashes for the same secret")
	}
}

func TestBcrypt_VerifyGarbageHash(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)
	if h.Verify("x", "not-a-bcrypt-hash") {
		t.Fatalf("expected verify to fail")
	}
}

func TestNewBcrypt_DefaultCost(t *testing.T) {
	if h := NewBcrypt(0); h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
}
