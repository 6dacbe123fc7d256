package smolblog

import (
	"fmt"
	"net/http"

	"github.com/diamondburned/smolblog/server/httperr"
	"github.com/pkg/errors"
)

// Kind classifies a failure of the post pipeline. Every kind is terminal for
// the request that caused it.
type Kind uint8

const (
	KindUnknown Kind = iota
	// FormDecode is a malformed or unreadable multipart submission.
	FormDecode
	// AssetWrite is a failure to write into the upload directory.
	AssetWrite
	// AvatarNetwork is a failure to fetch the remote avatar.
	AvatarNetwork
	// Validation is a submission missing a required field or carrying an
	// unacceptable value.
	Validation
	// Persistence is a database failure.
	Persistence
	// Render is a template failure while rendering the feed.
	Render
)

func (k Kind) String() string {
	switch k {
	case FormDecode:
		return "form decode"
	case AssetWrite:
		return "asset write"
	case AvatarNetwork:
		return "avatar network"
	case Validation:
		return "validation"
	case Persistence:
		return "persistence"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// StatusCode maps the kind to an HTTP status. Input errors are client errors;
// everything else is the server's fault.
func (k Kind) StatusCode() int {
	switch k {
	case FormDecode, Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a pipeline error tagged with its kind.
type Error struct {
	Kind Kind
	Err  error
}

var (
	_ error               = (*Error)(nil)
	_ httperr.StatusCoder = (*Error)(nil)
)

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the status of the wrapped error if it has one, such as
// 413 for oversized bodies, or the kind's status otherwise.
func (e *Error) StatusCode() int {
	var sc httperr.StatusCoder
	if errors.As(e.Err, &sc) {
		return sc.StatusCode()
	}
	return e.Kind.StatusCode()
}

// Wrap wraps err with the message and tags it with the kind. It returns nil if
// err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind, errors.Wrap(err, msg)}
}

// Wrapf is Wrap with formatting.
func Wrapf(kind Kind, err error, f string, v ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{kind, errors.Wrapf(err, f, v...)}
}

// Errorf creates a new error of the given kind.
func Errorf(kind Kind, f string, v ...interface{}) error {
	return &Error{kind, errors.Errorf(f, v...)}
}

// KindOf returns the kind of the first tagged error in the chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind returns true if the error chain contains an error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
