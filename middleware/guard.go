package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/threat"
)

// DefaultMaxBodyBytes is the request size limit applied when none is set.
const DefaultMaxBodyBytes int64 = 10 << 20

// Engine is the subset of *authguard.Engine the handlers call.
type Engine interface {
	ScoreRequest(ctx context.Context, req threat.Request) (threat.Decision, error)
	ValidateAccess(ctx context.Context, token, method, path string) (*authguard.AccessResult, error)
}

type accessContextKey struct{}

// AccessFromContext returns the validated access of the request. It is absent
// on public paths.
func AccessFromContext(ctx context.Context) (*authguard.AccessResult, bool) {
	res, ok := ctx.Value(accessContextKey{}).(*authguard.AccessResult)
	return res, ok && res != nil
}

type options struct {
	maxBody int64
}

// Option configures Guard and Shield.
type Option func(*options)

// WithMaxBodyBytes sets the Content-Length limit. A negative n disables the
// check.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBody = n }
}

func buildOptions(opts []Option) options {
	o := options{maxBody: DefaultMaxBodyBytes}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Guard scores every request and then requires a valid bearer token with the
// endpoint's permission. Public paths pass without a token.
func Guard(engine Engine, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authguard.ErrEngineNotReady)
				return
			}
			r, ok := screen(w, r, engine, o)
			if !ok {
				return
			}

			token, _ := bearerToken(r.Header.Get("Authorization"))
			res, err := engine.ValidateAccess(r.Context(), token, r.Method, r.URL.Path)
			if err != nil {
				WriteError(w, err)
				return
			}
			if res != nil {
				r = r.WithContext(context.WithValue(r.Context(), accessContextKey{}, res))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Shield scores every request without requiring a token.
func Shield(engine Engine, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authguard.ErrEngineNotReady)
				return
			}
			r, ok := screen(w, r, engine, o)
			if !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// screen applies the size limit and the threat pipeline. The resolved client
// address is attached to the returned request's context.
func screen(w http.ResponseWriter, r *http.Request, engine Engine, o options) (*http.Request, bool) {
	if o.maxBody >= 0 {
		if raw := r.Header.Get("Content-Length"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 0 {
				writeStatus(w, http.StatusBadRequest, "invalid_request", "invalid content-length header")
				return r, false
			}
			if n > o.maxBody {
				writeStatus(w, http.StatusRequestEntityTooLarge, "request_too_large", "request too large")
				return r, false
			}
		}
	}

	req := threat.FromHTTP(r)
	d, err := engine.ScoreRequest(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return r, false
	}

	ip := d.IP
	if ip == "" {
		ip = req.IP
	}
	ctx := authguard.WithClientIP(r.Context(), ip)
	ctx = authguard.WithUserAgent(ctx, req.UserAgent)
	return r.WithContext(ctx), true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
