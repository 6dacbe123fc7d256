package assets

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"strings"
	"testing"

	"github.com/diamondburned/smolblog/server/httperr"
	"github.com/pkg/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSniff(t *testing.T) {
	t.Run("PNG", func(t *testing.T) {
		var body = append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 2048)...)

		r, err := Sniff(bytes.NewReader(body), 0)
		if err != nil {
			t.Fatal("Failed to sniff:", err)
		}

		if ct := r.ContentType(); ct != "image/png" {
			t.Fatal("Unexpected content type:", ct)
		}

		// Sniffing must not eat the head of the stream.
		b, err := ioutil.ReadAll(r)
		if err != nil {
			t.Fatal("Failed to read:", err)
		}

		if !bytes.Equal(b, body) {
			t.Fatal("Read bytes differ from the original")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		r, err := Sniff(strings.NewReader(""), 10)
		if err != nil {
			t.Fatal("Failed to sniff:", err)
		}

		if !r.Empty() || r.ContentType() != "" {
			t.Fatal("Empty stream is not empty:", r.ContentType())
		}
	})

	t.Run("Text", func(t *testing.T) {
		r, err := Sniff(strings.NewReader("just some text"), 0)
		if err != nil {
			t.Fatal("Failed to sniff:", err)
		}

		if _, ok := Extension(r.ContentType()); ok {
			t.Fatal("Text has an image extension:", r.ContentType())
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		_, err := Sniff(bytes.NewReader(make([]byte, 100)), 10)
		if code := httperr.ErrCode(err); code != http.StatusRequestEntityTooLarge {
			t.Fatal("Unexpected error:", err)
		}
	})
}

func TestLimitedReader(t *testing.T) {
	// Exactly at the limit is fine.
	b, err := ioutil.ReadAll(NewLimitedReader(strings.NewReader("12345"), 5))
	if err != nil {
		t.Fatal("Failed to read up to the limit:", err)
	}

	if string(b) != "12345" {
		t.Fatalf("Unexpected content: %q", b)
	}

	_, err = ioutil.ReadAll(NewLimitedReader(strings.NewReader("123456"), 5))

	var tooLarge ErrTooLarge
	if !errors.As(err, &tooLarge) || tooLarge.Max != 5 {
		t.Fatal("Unexpected error:", err)
	}
}
