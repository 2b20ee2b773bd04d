package secret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	minOTPDigits = 6
	maxOTPDigits = 10
)

// Source draws cryptographically secure randomness from an injected reader.
// The zero value is not usable; construct with [NewSource].
type Source struct {
	rand io.Reader
}

// NewSource returns a Source reading from r. A nil reader selects crypto/rand.
func NewSource(r io.Reader) *Source {
	if r == nil {
		r = rand.Reader
	}
	return &Source{rand: r}
}

var defaultSource = NewSource(nil)

// Default returns the process-wide crypto/rand backed Source.
func Default() *Source {
	return defaultSource
}

// Bytes returns n random bytes.
func (s *Source) Bytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: invalid length %d", ErrCrypto, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return buf, nil
}

// Token returns n random bytes encoded as unpadded base64url.
func (s *Source) Token(n int) (string, error) {
	buf, err := s.Bytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hex returns n random bytes hex encoded (2n characters).
func (s *Source) Hex(n int) (string, error) {
	buf, err := s.Bytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// OTP returns a numeric code of the given length with uniform digits.
func (s *Source) OTP(digits int) (string, error) {
	if digits < minOTPDigits || digits > maxOTPDigits {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(s.rand, ten)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCrypto, err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// BackupCodes returns count recovery codes shaped XXXX-XXXX (uppercase hex).
func (s *Source) BackupCodes(count int) ([]string, error) {
	if count <= 0 {
		return nil, errors.New("invalid backup code count")
	}
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		raw, err := s.Bytes(4)
		if err != nil {
			return nil, err
		}
		code := strings.ToUpper(hex.EncodeToString(raw))
		codes = append(codes, code[:4]+"-"+code[4:])
	}
	return codes, nil
}

// GenerateSecureToken returns a URL-safe token built from length random bytes.
func GenerateSecureToken(length int) (string, error) {
	return defaultSource.Token(length)
}
