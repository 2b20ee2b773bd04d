package authguard

import (
	"time"
)

// Encrypt seals plaintext for storage with the key derived from
// Crypto.MasterKey. It fails with KindCryptoFailure when no master key is
// configured.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.sealer == nil {
		return "", e.failure("encrypt", newError(KindCryptoFailure, "master key not configured", nil))
	}
	out, err := e.sealer.Encrypt(plaintext)
	if err != nil {
		return "", e.failure("encrypt", classify(err))
	}
	return out, nil
}

// Decrypt opens a value produced by Encrypt. Tampered or truncated input
// fails with KindCryptoFailure.
func (e *Engine) Decrypt(ciphertext string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.sealer == nil {
		return "", e.failure("decrypt", newError(KindCryptoFailure, "master key not configured", nil))
	}
	out, err := e.sealer.Decrypt(ciphertext)
	if err != nil {
		return "", e.failure("decrypt", classify(err))
	}
	return out, nil
}

// Sign returns a timestamped signature over data.
func (e *Engine) Sign(data string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.signer == nil {
		return "", e.failure("sign", newError(KindCryptoFailure, "master key not configured", nil))
	}
	return e.signer.Sign(data), nil
}

// VerifySignature reports whether signature was produced by Sign for data no
// longer than maxAge ago. A non-positive maxAge always fails.
func (e *Engine) VerifySignature(data, signature string, maxAge time.Duration) bool {
	if e == nil || e.signer == nil {
		return false
	}
	return e.signer.Verify(data, signature, maxAge)
}

// GenerateBackupCodes returns count single-use recovery codes.
func (e *Engine) GenerateBackupCodes(count int) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	codes, err := e.random.BackupCodes(count)
	if err != nil {
		return nil, e.failure("backup_codes", newError(KindCryptoFailure, "random", err))
	}
	return codes, nil
}

// GenerateOTP returns a numeric one-time code of the given length.
func (e *Engine) GenerateOTP(digits int) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	code, err := e.random.OTP(digits)
	if err != nil {
		return "", e.failure("otp", newError(KindCryptoFailure, "random", err))
	}
	return code, nil
}
