package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	passwords := []string{"pw123", "", "пароль", strings.Repeat("long-password-", 20)}

	for _, p := range passwords {
		digest, err := h.Hash(p)
		if err != nil {
			t.Fatalf("Hash(%q) error: %v", p, err)
		}
		if digest == p {
			t.Fatalf("digest must not equal plaintext")
		}
		if !h.Verify(p, digest) {
			t.Fatalf("Verify(%q, Hash(%q)) = false", p, p)
		}
		if h.Verify(p+"x", digest) {
			t.Fatalf("Verify accepted a different password for %q", p)
		}
	}
}

func TestHasher_Salted(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	a, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("two digests of the same password are identical: %q", a)
	}
}

func TestHasher_LongInputsDifferBeyondBcryptLimit(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	prefix := strings.Repeat("a", 100)

	digest, err := h.Hash(prefix + "1")
	if err != nil {
		t.Fatal(err)
	}
	if h.Verify(prefix+"2", digest) {
		t.Fatalf("passwords sharing a 100 byte prefix must not collide")
	}
}

func TestHasher_VerifyMalformedDigest(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	for _, digest := range []string{"", "not-a-digest", "$2a$10$short"} {
		if h.Verify("pw", digest) {
			t.Fatalf("Verify accepted malformed digest %q", digest)
		}
	}
}

func TestNewHasher_CostBounds(t *testing.T) {
	t.Parallel()

	if got := NewHasher(0).Cost(); got != DefaultCost {
		t.Fatalf("cost 0: got %d want %d", got, DefaultCost)
	}
	if got := NewHasher(bcrypt.MaxCost + 1).Cost(); got != DefaultCost {
		t.Fatalf("cost too high: got %d want %d", got, DefaultCost)
	}
	if got := NewHasher(12).Cost(); got != 12 {
		t.Fatalf("cost 12: got %d", got)
	}
}
