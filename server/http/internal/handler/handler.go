// Package handler adapts pipeline-style handlers, which return either a
// renderer or an error, to net/http.
package handler

import (
	"context"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/diamondburned/smolblog/server/httperr"
	"github.com/diamondburned/smolblog/server/metrics"
	"github.com/diamondburned/smolblog/smolblog"
)

// Posts is the post storage that handlers use.
type Posts interface {
	SavePost(ctx context.Context, draft smolblog.Draft) (*smolblog.Post, error)
	Posts(ctx context.Context) ([]smolblog.Post, error)
}

// Demuxer turns a multipart stream into a draft.
type Demuxer interface {
	Demux(ctx context.Context, mr *multipart.Reader) (smolblog.Draft, error)
}

// Env contains the process-wide dependencies of all handlers. It is built once
// and shared read-only between requests.
type Env struct {
	Posts    Posts
	Demuxer  Demuxer
	Observer metrics.Observer
}

type Request struct {
	*http.Request
	Writer http.ResponseWriter
	*Env
}

// Redirect returns a renderer that redirects to the given URL.
func (r Request) Redirect(url string, code int) Renderer {
	return func(w http.ResponseWriter) error {
		http.Redirect(w, r.Request, url, code)
		return nil
	}
}

// Handler is the function signature for handlers.
type Handler = func(Request) (Renderer, error)

// Renderer writes a successful response.
type Renderer = func(w http.ResponseWriter) error

// Middlewarer is the interface for the handler middleware.
type Middlewarer = func(Handler) http.HandlerFunc

type Middleware struct {
	env *Env
}

var _ Middlewarer = (Middleware{}).M

func NewMiddleware(env Env) Middleware {
	if env.Observer == nil {
		env.Observer = metrics.Nop
	}
	return Middleware{&env}
}

// M adapts the handler. Errors are written as plain text with the status code
// from httperr.ErrCode.
func (m Middleware) M(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render, err := h(Request{r, w, m.env})
		if err != nil {
			httperr.WriteErr(w, err)
			return
		}

		if render == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// The header is already written by now, so all we can do is log.
		if err := render(w); err != nil {
			log.Println("Failed to write response:", err)
		}
	}
}
