package http

import (
	"net/http"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/diamondburned/smolblog/server/assets"
	"github.com/diamondburned/smolblog/server/assets/avatar"
	"github.com/diamondburned/smolblog/server/http/feed"
	"github.com/diamondburned/smolblog/server/http/internal/handler"
	"github.com/diamondburned/smolblog/server/http/internal/middleware"
	"github.com/diamondburned/smolblog/server/http/post"
	"github.com/diamondburned/smolblog/server/http/upload"
	"github.com/diamondburned/smolblog/server/metrics"
	"github.com/diamondburned/smolblog/smolblog"
	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPConfig struct {
	MaxBodySize datasize.ByteSize `toml:"maxBodySize"`
	// PostRateLimit is the number of submissions allowed per second per
	// client. 0 disables the limit.
	PostRateLimit float64 `toml:"postRateLimit"`

	upload.UploadConfig
	assets.AssetConfig
	avatar.AvatarConfig
}

func NewConfig() HTTPConfig {
	return HTTPConfig{
		MaxBodySize:   32 * datasize.MB,
		PostRateLimit: 2,
		UploadConfig:  upload.NewConfig(),
		AssetConfig:   assets.NewConfig(),
		AvatarConfig:  avatar.NewConfig(),
	}
}

func (c *HTTPConfig) Validate() error {
	if c.MaxBodySize == 0 {
		return errors.New("missing `maxBodySize' value")
	}

	if err := c.AssetConfig.Validate(); err != nil {
		return err
	}

	return c.AvatarConfig.Validate()
}

// Dependencies are the components that the routes serve.
type Dependencies struct {
	Posts    handler.Posts
	Store    *assets.Store
	Avatar   upload.AvatarFetcher
	Observer metrics.Observer
	// Gatherer is served on /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Routes struct {
	http.Handler
	mw  handler.Middleware
	cfg HTTPConfig
}

func New(deps Dependencies, cfg HTTPConfig) (*Routes, error) {
	if deps.Posts == nil || deps.Store == nil || deps.Avatar == nil {
		return nil, errors.New("missing dependency")
	}

	mux := chi.NewMux()
	rts := &Routes{
		Handler: mux,
		cfg:     cfg,
		mw: handler.NewMiddleware(handler.Env{
			Posts:    deps.Posts,
			Observer: deps.Observer,
			Demuxer: upload.Demuxer{
				Store:       deps.Store,
				Avatar:      deps.Avatar,
				MaxTextSize: int64(cfg.MaxTextSize.Bytes()),
				MaxFileSize: int64(cfg.MaxFileSize.Bytes()),
			},
		}),
	}

	// Alias the middleware function.
	m := rts.mw.M

	mux.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.LimitBody(cfg.MaxBodySize),
	)

	mux.Get("/", m(feed.Home))
	mux.Get(smolblog.FeedPath, m(feed.Home))
	mux.Mount("/post", post.Mount(m, cfg.PostRateLimit))

	files := http.StripPrefix(cfg.ServePath, fileServer(cfg.FileDirectory))
	mux.With(middleware.HideDotfiles).
		Get(strings.TrimSuffix(cfg.ServePath, "/")+"/*", files.ServeHTTP)

	if deps.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return rts, nil
}

// fileServer serves the files in dir without directory listings. Files are
// written once and never change, so they can be cached forever.
func fileServer(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	})
}
