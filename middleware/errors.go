package middleware

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authguard"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps an Engine error kind to an HTTP status.
func StatusFor(kind authguard.Kind) int {
	switch kind {
	case authguard.KindInvalidCredentials, authguard.KindInvalidToken, authguard.KindTokenReuseDetected:
		return http.StatusUnauthorized
	case authguard.KindAccountLocked:
		return http.StatusLocked
	case authguard.KindAccountInactive, authguard.KindThreatBlocked, authguard.KindPermissionDenied:
		return http.StatusForbidden
	case authguard.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case authguard.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case authguard.KindAccountExists:
		return http.StatusConflict
	case authguard.KindWeakPassword:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error response. Only the kind and its
// public message are exposed; Retry-After is set when the error carries a
// wait time.
func WriteError(w http.ResponseWriter, err error) {
	kind := authguard.KindOf(err)

	var ae *authguard.Error
	if errors.As(err, &ae) {
		wait := ae.RetryAfter
		if wait <= 0 && !ae.UnlockAt.IsZero() {
			wait = time.Until(ae.UnlockAt)
		}
		if wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	}
	if kind == authguard.KindInvalidToken || kind == authguard.KindTokenReuseDetected {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}

	msg := "internal error"
	if ae != nil {
		msg = ae.Error()
	}
	writeStatus(w, StatusFor(kind), kind.String(), msg)
}

func writeStatus(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: msg})
}
