package pinhash

import (
	"errors"
	"strings"
	"testing"
)

// Lower costs so the test suite stays fast; the digest format is identical.
func testHasher() *Hasher {
	return NewHasher(Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}

func TestHashRoundTrip(t *testing.T) {
	h := testHasher()

	for _, pin := range []string{"1234", "000000", "a long passphrase with spaces", ""} {
		digest, err := h.Hash(pin)
		if err != nil {
			t.Fatalf("Hash(%q): %v", pin, err)
		}

		ok, err := h.Verify(pin, digest)
		if err != nil {
			t.Fatalf("Verify(%q): %v", pin, err)
		}
		if !ok {
			t.Errorf("Verify(%q) = false, want true", pin)
		}
	}
}

func TestVerifyRejectsWrongPIN(t *testing.T) {
	h := testHasher()

	digest, err := h.Hash("1234")
	if err != nil {
		t.Fatal(err)
	}

	ok, err := h.Verify("4321", digest)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify accepted the wrong PIN")
	}
}

func TestHashSaltUniqueness(t *testing.T) {
	h := testHasher()

	first, err := h.Hash("1234")
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.Hash("1234")
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Errorf("two hashes of the same PIN are identical: %s", first)
	}
}

func TestDigestIsSelfDescribing(t *testing.T) {
	h := testHasher()

	digest, err := h.Hash("1234")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Errorf("unexpected digest prefix: %s", digest)
	}

	// A hasher configured with different costs must still verify a digest
	// produced under the old parameters.
	other := NewHasher(DefaultParams())
	ok, err := other.Verify("1234", digest)
	if err != nil {
		t.Fatalf("Verify with different params: %v", err)
	}
	if !ok {
		t.Error("digest parameters were not honored on verify")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := testHasher()

	cases := []string{
		"",
		"not a digest",
		"$argon2id$v=19$m=8192,t=1,p=1$onlyonepart",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$!!!",
	}

	for _, digest := range cases {
		_, err := h.Verify("1234", digest)
		if !errors.Is(err, ErrMalformedDigest) {
			t.Errorf("Verify(%q) error = %v, want ErrMalformedDigest", digest, err)
		}
	}
}

func TestVerifyIncompatibleVersion(t *testing.T) {
	h := testHasher()

	_, err := h.Verify("1234", "$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5")
	if !errors.Is(err, ErrIncompatibleVersion) {
		t.Errorf("error = %v, want ErrIncompatibleVersion", err)
	}
}
