package avatar

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/diamondburned/smolblog/server/assets"
	"github.com/diamondburned/smolblog/server/httperr"
	"github.com/diamondburned/smolblog/smolblog"
)

var (
	pngBody = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR fake png data")
	gifBody = []byte("GIF89a fake gif data")
)

func newTestFetcher(t *testing.T) (*Fetcher, *assets.Store) {
	t.Helper()

	acfg := assets.NewConfig()
	acfg.FileDirectory = filepath.Join(t.TempDir(), "uploads")
	if err := acfg.Validate(); err != nil {
		t.Fatal("Failed to validate asset config:", err)
	}

	cfg := NewConfig()
	cfg.MaxAvatarSize = 1 * datasize.KB
	cfg.FetchTimeout = "2s"
	if err := cfg.Validate(); err != nil {
		t.Fatal("Failed to validate config:", err)
	}

	store := assets.NewStore(acfg, nil)
	return NewFetcher(cfg, store, nil), store
}

func newOrigin(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/avatar.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBody)
	})
	mux.HandleFunc("/avatar", func(w http.ResponseWriter, r *http.Request) {
		// No extension and a lying content type.
		w.Header().Set("Content-Type", "image/png")
		w.Write(gifBody)
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an image</html>"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/huge.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBody)
		w.Write(bytes.Repeat([]byte{0}, 4096))
	})

	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

func TestFetchAndStore(t *testing.T) {
	f, store := newTestFetcher(t)
	origin := newOrigin(t)

	var tests = []struct {
		path string
		body []byte
		ext  string
	}{
		{"/avatar.png", pngBody, ".png"},
		{"/avatar", gifBody, ".gif"},
	}

	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			a, err := f.FetchAndStore(context.Background(), origin.URL+test.path)
			if err != nil {
				t.Fatal("Failed to fetch:", err)
			}

			if !strings.HasSuffix(a.Name, test.ext) {
				t.Fatal("Unexpected extension:", a.Name)
			}

			b, err := ioutil.ReadFile(store.Path(a.Name))
			if err != nil {
				t.Fatal("Failed to read stored avatar:", err)
			}

			if !bytes.Equal(b, test.body) {
				t.Fatal("Stored avatar differs from the origin's")
			}
		})
	}
}

func TestFetchAndStoreFail(t *testing.T) {
	f, _ := newTestFetcher(t)
	origin := newOrigin(t)

	// A server that is already gone.
	gone := httptest.NewServer(http.NotFoundHandler())
	gone.Close()

	var tests = []struct {
		name string
		url  string
		kind smolblog.Kind
		code int
	}{
		{"NotFound", origin.URL + "/missing.png", smolblog.AvatarNetwork, 500},
		{"Unreachable", gone.URL + "/avatar.png", smolblog.AvatarNetwork, 500},
		{"NotImage", origin.URL + "/text", smolblog.Validation, 415},
		{"Empty", origin.URL + "/empty", smolblog.Validation, 400},
		{"TooLarge", origin.URL + "/huge.png", smolblog.AvatarNetwork, http.StatusBadGateway},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.FetchAndStore(context.Background(), test.url)
			if !smolblog.IsKind(err, test.kind) {
				t.Fatalf("Expected %s error, got %v", test.kind, err)
			}

			if code := httperr.ErrCode(err); code != test.code {
				t.Fatalf("Expected status %d, got %d", test.code, code)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := NewConfig()
	cfg.FetchTimeout = "forever"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Invalid timeout passed validation")
	}

	cfg = NewConfig()
	cfg.AllowedTypes = []string{"text/html"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Non-image type passed validation")
	}
}
