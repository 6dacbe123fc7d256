// Package httperr maps errors to HTTP status codes and writes them out as plain
// text.
package httperr

import (
	"log"
	"net/http"

	"github.com/pkg/errors"
)

// StatusCoder is implemented by errors that know their HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// ErrCode returns the status code of the first StatusCoder in the error chain,
// or 500 if there is none.
func ErrCode(err error) int {
	var sc StatusCoder

	if errors.As(err, &sc) {
		return sc.StatusCode()
	}

	return http.StatusInternalServerError
}

// WriteErr writes the error's status code along with its message as a plain
// text body. Server errors are also logged.
func WriteErr(w http.ResponseWriter, err error) {
	code := ErrCode(err)
	if code >= 500 {
		log.Println("Internal error:", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")

	w.WriteHeader(code)
	w.Write([]byte(err.Error()))
}

type wrapError struct {
	code int
	wrap error
}

var (
	_ error       = (*wrapError)(nil)
	_ StatusCoder = (*wrapError)(nil)
)

// Wrap wraps the error with a message and a status code. It returns nil if err
// is nil.
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return wrapError{code, errors.Wrap(err, msg)}
}

func (e wrapError) Error() string {
	return e.wrap.Error()
}

func (e wrapError) Unwrap() error {
	return e.wrap
}

func (e wrapError) StatusCode() int {
	return e.code
}
