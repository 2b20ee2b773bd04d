package password

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

// SaltBytes is the length of the random salt before hex encoding.
const SaltBytes = 32

// ErrMalformedHash is returned when a stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Hasher produces and checks salted password hashes. The returned hash and
// salt always travel together.
type Hasher interface {
	Hash(password string) (hash string, salt string, err error)
	Verify(password, hash, salt string) (bool, error)
	NeedsUpgrade(hash string) (bool, error)
}

func newSalt(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, SaltBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func readerOrDefault(r io.Reader) io.Reader {
	if r == nil {
		return rand.Reader
	}
	return r
}
