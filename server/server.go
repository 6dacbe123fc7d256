package server

import (
	"context"
	"time"

	"github.com/diamondburned/smolblog/server/assets"
	"github.com/diamondburned/smolblog/server/assets/avatar"
	"github.com/diamondburned/smolblog/server/db"
	"github.com/diamondburned/smolblog/server/http"
	"github.com/diamondburned/smolblog/server/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Config is the global application config.
type Config struct {
	db.DBConfig
	http.HTTPConfig
}

func NewConfig() Config {
	return Config{
		DBConfig:   db.NewConfig(),
		HTTPConfig: http.NewConfig(),
	}
}

// Validator is used for configs.
type Validator interface {
	Validate() error
}

func (c *Config) Validate() error {
	var fields = []Validator{
		&c.DBConfig,
		&c.HTTPConfig,
	}

	for _, v := range fields {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type App struct {
	*http.Routes
	Database *db.Database
	Store    *assets.Store
	Registry *prometheus.Registry
}

func New(config Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs, err := metrics.NewPrometheusObserver("smolblog", reg)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create metrics")
	}

	d, err := db.NewDatabase(config.DBConfig)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create database")
	}

	store := assets.NewStore(config.AssetConfig, obs)

	h, err := http.New(http.Dependencies{
		Posts:    d,
		Store:    store,
		Avatar:   avatar.NewFetcher(config.AvatarConfig, store, obs),
		Observer: obs,
		Gatherer: reg,
	}, config.HTTPConfig)

	if err != nil {
		d.Close()
		return nil, errors.Wrap(err, "Failed to create HTTP")
	}

	app := &App{
		Routes:   h,
		Database: d,
		Store:    store,
		Registry: reg,
	}

	return app, nil
}

func (a *App) Close() error {
	return a.Database.Close()
}

// Sweep removes the upload files that no post refers to and that are older
// than grace. It returns the names of the removed files, or of the files that
// would be removed if dryRun is true.
func Sweep(ctx context.Context, config Config, grace time.Duration, dryRun bool) ([]string, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	d, err := db.NewDatabase(config.DBConfig)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create database")
	}
	defer d.Close()

	return SweepStore(ctx, d, assets.NewStore(config.AssetConfig, nil), grace, dryRun)
}

// RefLister lists the asset references of all posts.
type RefLister interface {
	AssetRefs(ctx context.Context) ([]string, error)
}

// SweepStore is Sweep with an existing database and store.
func SweepStore(
	ctx context.Context, refs RefLister, store *assets.Store,
	grace time.Duration, dryRun bool) ([]string, error) {

	// Take the cutoff before listing references, so that a post committed
	// while we list cannot have its files counted as orphans.
	before := time.Now().Add(-grace)

	r, err := refs.AssetRefs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list referenced files")
	}

	var referenced = make(map[string]struct{}, len(r))
	for _, ref := range r {
		referenced[assets.NameFromRef(ref)] = struct{}{}
	}

	return store.Sweep(assets.SweepOptions{
		Referenced: referenced,
		Before:     before,
		DryRun:     dryRun,
	})
}
