package threat

import "errors"

// ErrRedisUnavailable wraps blocklist and monitoring backend failures.
var ErrRedisUnavailable = errors.New("redis unavailable")
