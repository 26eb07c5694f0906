// Package app assembles confsnap's components from a Config
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/nainya/confsnap/internal/config"
	"github.com/nainya/confsnap/internal/logger"
	"github.com/nainya/confsnap/internal/metrics"
	"github.com/nainya/confsnap/pkg/backup"
	"github.com/nainya/confsnap/pkg/changes"
	"github.com/nainya/confsnap/pkg/fetcher"
	"github.com/nainya/confsnap/pkg/inventory"
	"github.com/nainya/confsnap/pkg/snapshot"
	"github.com/nainya/confsnap/pkg/snapshot/cache"
	"github.com/nainya/confsnap/pkg/snapshot/s3store"
)

// App holds the wired components for one process
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Store     snapshot.Store
	Inventory *inventory.Inventory
	Fetcher   backup.Fetcher
	Session   *backup.Session
	Detector  *changes.Detector
}

// Option overrides a component, mostly for tests
type Option func(*options)

type options struct {
	clock   snapshot.Clock
	fetcher backup.Fetcher
	log     *logger.Logger
}

// WithClock sets the capture clock
func WithClock(c snapshot.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithFetcher replaces the configured fetcher
func WithFetcher(f backup.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithLogger replaces the logger built from the config
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New builds every component described by cfg
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{clock: snapshot.SystemClock}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log
	if log == nil {
		log = logger.NewLogger(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := OpenStore(cfg, o.clock, log, m)
	if err != nil {
		return nil, err
	}

	inv := inventory.Default()
	if cfg.Inventory != "" {
		if inv, err = inventory.Load(cfg.Inventory); err != nil {
			return nil, err
		}
	}

	f := o.fetcher
	if f == nil {
		if f, err = OpenFetcher(cfg.Fetcher); err != nil {
			return nil, err
		}
	}

	var limiter *rate.Limiter
	if cfg.Backup.FetchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Backup.FetchRate), 1)
	}

	session := backup.NewSession(store, f, backup.Options{
		Concurrency:  cfg.Backup.Concurrency,
		FetchTimeout: cfg.Backup.FetchTimeout,
		Limiter:      limiter,
		Logger:       log,
		Metrics:      m,
	})

	return &App{
		Config:    cfg,
		Log:       log,
		Registry:  reg,
		Metrics:   m,
		Store:     store,
		Inventory: inv,
		Fetcher:   f,
		Session:   session,
		Detector:  changes.NewDetector(store),
	}, nil
}

// OpenStore builds the configured backend, with the content cache and
// instrumentation layered on top
func OpenStore(cfg *config.Config, clock snapshot.Clock, log *logger.Logger, m *metrics.Metrics) (snapshot.Store, error) {
	var (
		store snapshot.Store
		err   error
	)

	switch cfg.Store.Backend {
	case config.BackendFS:
		store, err = snapshot.NewFSStore(cfg.Store.Path, clock)
	case config.BackendMemory:
		store = snapshot.NewMemStore(clock)
	case config.BackendS3:
		store, err = s3store.Open(s3store.Config{
			Bucket:   cfg.Store.S3.Bucket,
			Prefix:   cfg.Store.S3.Prefix,
			Region:   cfg.Store.S3.Region,
			Endpoint: cfg.Store.S3.Endpoint,
		}, clock)
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	if len(cfg.Cache.Servers) > 0 {
		mc, err := cache.NewMemcached(cache.MemcacheConfig{
			Servers: cfg.Cache.Servers,
			Prefix:  cfg.Cache.Prefix,
			Timeout: cfg.Cache.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		ns, err := cacheNamespace(store)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		cacheLog := log.StoreLogger("memcached")
		store = cache.New(store, mc,
			cache.WithNamespace(ns),
			cache.WithHitRecorder(m.RecordCache),
			cache.WithErrorHandler(func(op string, err error) {
				cacheLog.Warn("Cache unavailable, using backing store").Str("operation", op).Err(err).Send()
			}),
		)
	}

	return &instrumentedStore{
		Store:   store,
		log:     log.StoreLogger(cfg.Store.Backend),
		metrics: m,
	}, nil
}

// cacheNamespace identifies a backing store inside a shared cache. Memory
// stores are private to the process and get a fresh namespace.
func cacheNamespace(store snapshot.Store) (string, error) {
	switch s := store.(type) {
	case *snapshot.FSStore:
		root, err := filepath.Abs(s.Root())
		if err != nil {
			return "", err
		}
		return "fs:" + root + ":", nil
	case *s3store.Store:
		return "s3:" + s.Bucket() + "/" + s.Prefix() + ":", nil
	default:
		return "memory:" + uuid.NewString() + ":", nil
	}
}

// OpenFetcher builds the configured configuration source
func OpenFetcher(cfg config.FetcherConfig) (backup.Fetcher, error) {
	switch cfg.Mode {
	case config.FetcherSimulated:
		return fetcher.DefaultSimulated(), nil
	case config.FetcherDirectory:
		d, err := fetcher.NewDirectory(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown fetcher mode %q", cfg.Mode)
	}
}

// Ready checks that the store answers a List for the first device
func (a *App) Ready(ctx context.Context) error {
	if len(a.Inventory.Devices) == 0 {
		return nil
	}
	_, err := a.Store.List(ctx, a.Inventory.Devices[0].Hostname)
	return err
}

// instrumentedStore logs and times every store call
type instrumentedStore struct {
	snapshot.Store
	log     *logger.Logger
	metrics *metrics.Metrics
}

func (s *instrumentedStore) observe(op, deviceID string, start time.Time, err error) {
	d := time.Since(start)
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordStoreOperation(op, result, d)
	s.log.LogStoreOperation(op, deviceID, d, err)
}

func (s *instrumentedStore) Save(ctx context.Context, deviceID, text string) (*snapshot.Snapshot, error) {
	start := time.Now()
	snap, err := s.Store.Save(ctx, deviceID, text)
	s.observe("save", deviceID, start, err)
	return snap, err
}

func (s *instrumentedStore) List(ctx context.Context, deviceID string) ([]snapshot.Ref, error) {
	start := time.Now()
	refs, err := s.Store.List(ctx, deviceID)
	s.observe("list", deviceID, start, err)
	return refs, err
}

func (s *instrumentedStore) Load(ctx context.Context, ref snapshot.Ref) (string, error) {
	start := time.Now()
	text, err := s.Store.Load(ctx, ref)
	s.observe("load", ref.DeviceID, start, err)
	return text, err
}
