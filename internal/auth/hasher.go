package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for stored passwords.
const DefaultCost = 12

// Hasher turns a plaintext password into a salted one-way digest.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// BcryptHasher hashes passwords with bcrypt at a fixed cost.
//
// bcrypt only reads the first 72 bytes of its input, so plaintexts are first
// reduced to a fixed 44-byte base64 SHA-256 digest. Any accepted password
// length, in any encoding, hashes without truncation.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher creates a hasher, falling back to DefaultCost for out of range costs.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return BcryptHasher{Cost: cost}
}

// Hash returns the bcrypt digest of plaintext.
func (h BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(prehash(plaintext), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Compare reports whether plaintext matches a digest produced by Hash.
func (h BcryptHasher) Compare(digest, plaintext string) error {
	return bcrypt.CompareHashAndPassword([]byte(digest), prehash(plaintext))
}

func prehash(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
