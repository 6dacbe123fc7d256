// Package middleware contains the HTTP middlewares shared by all routes.
package middleware

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/diamondburned/smolblog/server/assets"
	"github.com/diamondburned/smolblog/server/httperr"
	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/errors"
	"github.com/didip/tollbooth/v6/limiter"
)

// F represents a middleware function.
type F = func(http.Handler) http.Handler

// H represents a short middleware function signature that returns a boolean. If
// this boolean is false, then the middleware chain is broken.
type H = func(w http.ResponseWriter, r *http.Request) bool

// P wraps the given middleware handler to be called as a prefix to the next
// handler in chain.
func P(h H) F {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// LimitBody makes reads past the given size fail with a 413 error.
func LimitBody(size datasize.ByteSize) F {
	return P(func(w http.ResponseWriter, r *http.Request) bool {
		r.Body = readCloser{
			Reader: assets.NewLimitedReader(r.Body, int64(size.Bytes())),
			Closer: r.Body,
		}
		return true
	})
}

type readCloser struct {
	io.Reader
	io.Closer
}

// RateLimit limits requests to n per second per client address. A limit of 0
// or less disables limiting.
func RateLimit(n float64) F {
	if n <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := tollbooth.NewLimiter(n, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	l.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})

	return P(func(w http.ResponseWriter, r *http.Request) bool {
		if err := tollbooth.LimitByRequest(l, w, r); err != nil {
			httperr.WriteErr(w, rateErr{err})
			return false
		}
		return true
	})
}

type rateErr struct {
	*errors.HTTPError
}

func (r rateErr) StatusCode() int {
	return r.HTTPError.StatusCode
}

// HideDotfiles responds 404 to any path with a segment starting with a dot.
func HideDotfiles(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, part := range strings.Split(r.URL.Path, "/") {
			if strings.HasPrefix(part, ".") {
				http.NotFound(w, r)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
