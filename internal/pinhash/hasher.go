// Package pinhash provides one-way hashing and verification for employee
// and administrator PINs using Argon2id.
//
// Digests are self-describing PHC strings of the form
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// so parameters can be tightened later without rehashing every stored
// credential at once.
package pinhash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrMalformedDigest reports a stored digest that cannot be parsed.
	// Callers must treat it as data corruption, not as a wrong PIN.
	ErrMalformedDigest = errors.New("pinhash: malformed digest")

	// ErrIncompatibleVersion reports a digest produced by an Argon2
	// version this binary does not implement.
	ErrIncompatibleVersion = errors.New("pinhash: incompatible argon2 version")
)

// Params are the Argon2id cost parameters encoded into every digest.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the cost parameters used for new digests.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies PINs. It is stateless and safe for
// concurrent use.
type Hasher struct {
	params Params
}

func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash derives a digest for the given PIN with a fresh random salt. Two
// calls on the same input produce different digests. Empty input is legal.
func (h *Hasher) Hash(pin string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(pin),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	digest := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return digest, nil
}

// Verify reports whether pin matches the stored digest. A digest that
// cannot be parsed returns ErrMalformedDigest rather than false, so a
// corrupt credential row is distinguishable from a wrong PIN. Comparison
// is constant time over the derived keys.
func (h *Hasher) Verify(pin, digest string) (bool, error) {
	params, salt, key, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(pin),
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		uint32(len(key)),
	)

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func decodeDigest(digest string) (Params, []byte, []byte, error) {
	var params Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, ErrMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, ErrMalformedDigest
	}
	if version != argon2.Version {
		return params, nil, nil, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, ErrMalformedDigest
	}
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return params, nil, nil, ErrMalformedDigest
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrMalformedDigest
	}

	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, ErrMalformedDigest
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))

	return params, salt, key, nil
}
