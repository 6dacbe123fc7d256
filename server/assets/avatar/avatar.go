// Package avatar downloads avatars from user-supplied URLs into the asset
// store.
package avatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/diamondburned/duration"
	"github.com/diamondburned/smolblog/server/assets"
	"github.com/diamondburned/smolblog/server/httperr"
	"github.com/diamondburned/smolblog/server/metrics"
	"github.com/diamondburned/smolblog/smolblog"
	"github.com/pkg/errors"
)

type AvatarConfig struct {
	MaxAvatarSize datasize.ByteSize `toml:"maxAvatarSize"`
	FetchTimeout  string            `toml:"fetchTimeout"`
	AllowedTypes  []string          `toml:"allowedTypes"`

	fetchTimeout time.Duration
}

func NewConfig() AvatarConfig {
	return AvatarConfig{
		MaxAvatarSize: 5 * datasize.MB,
		FetchTimeout:  "10s",
		AllowedTypes:  []string{"image/png", "image/jpeg", "image/gif", "image/webp"},
	}
}

func (c *AvatarConfig) Validate() error {
	d, err := duration.ParseDuration(c.FetchTimeout)
	if err != nil {
		return errors.Wrap(err, "invalid fetch timeout")
	}
	c.fetchTimeout = time.Duration(d)

	for _, ctype := range c.AllowedTypes {
		if _, ok := assets.Extension(ctype); !ok {
			return fmt.Errorf("allowedTypes: %q is not a known image type", ctype)
		}
	}

	return nil
}

// Timeout returns the parsed fetch timeout. It is only valid after Validate.
func (c AvatarConfig) Timeout() time.Duration {
	return c.fetchTimeout
}

// ContentTypeAllowed returns true if avatars of the given type are accepted.
func (c AvatarConfig) ContentTypeAllowed(ctype string) bool {
	for _, ct := range c.AllowedTypes {
		if ct == ctype {
			return true
		}
	}
	return false
}

// Storer stores a stream under a new name.
type Storer interface {
	Store(r io.Reader, ext string) (smolblog.StoredAsset, error)
}

// Fetcher fetches avatars and stores them. It is the only part of the service
// that talks to other servers.
type Fetcher struct {
	Client   *http.Client
	Store    Storer
	Config   AvatarConfig
	Observer metrics.Observer
}

// NewFetcher creates a new fetcher with a client that times out after the
// configured fetch timeout. The config must be validated.
func NewFetcher(cfg AvatarConfig, store Storer, obs metrics.Observer) *Fetcher {
	if obs == nil {
		obs = metrics.Nop
	}

	return &Fetcher{
		Client:   &http.Client{Timeout: cfg.Timeout()},
		Store:    store,
		Config:   cfg,
		Observer: obs,
	}
}

// FetchAndStore downloads the avatar at url with a single GET and stores it.
// The stored file's extension follows the sniffed content type. Connection
// failures and non-2xx responses are of kind AvatarNetwork, bodies that are
// not an allowed image are of kind Validation, and storage failures are of
// kind AssetWrite. Nothing is retried.
func (f *Fetcher) FetchAndStore(ctx context.Context, url string) (smolblog.StoredAsset, error) {
	start := time.Now()

	a, err := f.fetchAndStore(ctx, url)
	f.Observer.RecordAvatarFetch(time.Since(start), err)

	return a, err
}

func (f *Fetcher) fetchAndStore(ctx context.Context, url string) (smolblog.StoredAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return smolblog.StoredAsset{}, smolblog.Wrap(
			smolblog.Validation, err, "Invalid avatar URL",
		)
	}

	r, err := f.Client.Do(req)
	if err != nil {
		return smolblog.StoredAsset{}, smolblog.Wrap(
			smolblog.AvatarNetwork, err, "Failed to fetch avatar",
		)
	}
	defer r.Body.Close()

	if r.StatusCode < 200 || r.StatusCode > 299 {
		return smolblog.StoredAsset{}, smolblog.Errorf(
			smolblog.AvatarNetwork, "avatar server returned %s", r.Status,
		)
	}

	// Limits hit by the remote avatar are upstream failures.
	body, err := assets.Sniff(r.Body, int64(f.Config.MaxAvatarSize))
	if err != nil {
		return smolblog.StoredAsset{}, smolblog.Wrap(
			smolblog.AvatarNetwork,
			httperr.Wrap(err, http.StatusBadGateway, "avatar server sent a bad body"),
			"Failed to read avatar",
		)
	}

	if body.Empty() {
		return smolblog.StoredAsset{}, smolblog.Errorf(smolblog.Validation, "avatar is empty")
	}

	ctype := body.ContentType()
	ext, ok := assets.Extension(ctype)
	if !ok || !f.Config.ContentTypeAllowed(ctype) {
		return smolblog.StoredAsset{}, smolblog.Wrap(
			smolblog.Validation, assets.ErrUnsupportedType{ContentType: ctype}, "Invalid avatar",
		)
	}

	a, err := f.Store.Store(body, ext)
	if err != nil {
		if smolblog.KindOf(err) == smolblog.KindUnknown {
			return a, smolblog.Wrap(smolblog.AvatarNetwork, err, "Failed to download avatar")
		}
		return a, err
	}

	return a, nil
}
