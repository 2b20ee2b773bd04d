package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// Bcrypt hashes passwords with bcrypt over an HMAC-SHA-256 of the password
// keyed by the salt.
type Bcrypt struct {
	cost int
	rand io.Reader
}

// NewBcrypt returns a bcrypt Hasher. A zero cost selects DefaultBcryptCost; r
// may be nil to use crypto/rand.
func NewBcrypt(cost int, r io.Reader) (*Bcrypt, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cost, rand: r}, nil
}

// Hash generates a fresh salt and returns the bcrypt hash with that salt.
func (b *Bcrypt) Hash(password string) (string, string, error) {
	salt, err := newSalt(b.rand)
	if err != nil {
		return "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword(prehash(password, salt), b.cost)
	if err != nil {
		return "", "", err
	}
	return string(hash), salt, nil
}

// Verify reports whether password and salt match hash. bcrypt compares the
// derived key in constant time.
func (b *Bcrypt) Verify(password, hash, salt string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), prehash(password, salt))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrMalformedHash
	}
}

// NeedsUpgrade reports whether hash was produced with a lower cost.
func (b *Bcrypt) NeedsUpgrade(hash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, ErrMalformedHash
	}
	return cost < b.cost, nil
}

// prehash keeps the whole password inside bcrypt's 72-byte input window.
func prehash(password, salt string) []byte {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(password))
	sum := mac.Sum(nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}
