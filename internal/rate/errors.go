package rate

import "errors"

var (
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidRule is returned for unparsable limit strings.
	ErrInvalidRule = errors.New("invalid rate rule")
)
