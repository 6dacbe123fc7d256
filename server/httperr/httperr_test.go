package httperr

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
)

func TestErrCode(t *testing.T) {
	var tests = []struct {
		err  error
		code int
	}{
		{io.EOF, 500},
		{Wrap(io.EOF, 400, "bad"), 400},
		{Wrap(io.EOF, 413, "too large"), 413},
		{errors.Wrap(Wrap(io.EOF, 404, "gone"), "outer"), 404},
	}

	for _, test := range tests {
		if code := ErrCode(test.err); code != test.code {
			t.Errorf("Error %q: expected %d, got %d", test.err, test.code, code)
		}
	}

	if Wrap(nil, 400, "nothing") != nil {
		t.Fatal("Wrapping nil is not nil")
	}

	if !errors.Is(Wrap(io.EOF, 400, "read"), io.EOF) {
		t.Fatal("Wrap loses the cause")
	}
}

func TestWriteErr(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErr(w, Wrap(io.EOF, http.StatusBadRequest, "Failed to read"))

	if w.Code != http.StatusBadRequest {
		t.Fatal("Unexpected code:", w.Code)
	}

	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatal("Unexpected content type:", ct)
	}

	if body := w.Body.String(); body != "Failed to read: EOF" {
		t.Fatalf("Unexpected body: %q", body)
	}
}
