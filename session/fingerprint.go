package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives a stable 16 hex character device fingerprint from the
// client's request headers.
func Fingerprint(userAgent, acceptLanguage, acceptEncoding, accept string) string {
	raw := strings.Join([]string{userAgent, acceptLanguage, acceptEncoding, accept}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}
