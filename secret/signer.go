package secret

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const minKeyBytes = 32

// Signer produces and checks timestamped HMAC-SHA256 signatures of the form
// "<hex mac>:<unix seconds>". The MAC covers "<data>:<unix seconds>".
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner returns a Signer keyed with key. now may be nil.
func NewSigner(key []byte, now func() time.Time) (*Signer, error) {
	if len(key) < minKeyBytes {
		return nil, ErrKeyTooShort
	}
	if now == nil {
		now = time.Now
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{key: k, now: now}, nil
}

// Sign returns the signature of data at the current time.
func (s *Signer) Sign(data string) string {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	return hex.EncodeToString(s.mac(data, ts)) + ":" + ts
}

// Verify reports whether signature is a valid signature of data no older than
// maxAge. A non-positive maxAge rejects every signature.
func (s *Signer) Verify(data, signature string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	sigHex, ts, ok := strings.Cut(signature, ":")
	if !ok || sigHex == "" || ts == "" {
		return false
	}
	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}

	if !hmac.Equal(got, s.mac(data, ts)) {
		return false
	}
	age := s.now().Sub(time.Unix(issued, 0))
	return age <= maxAge && age >= -maxAge
}

func (s *Signer) mac(data, ts string) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(data))
	h.Write([]byte{':'})
	h.Write([]byte(ts))
	return h.Sum(nil)
}
