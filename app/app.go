// Package app wires a loaded configuration into a ready-to-use logger,
// observability provider and HTTP client, and builds caches, retry policies
// and fetch hooks that share them.
package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-fetchkit/cache"
	"github.com/gaborage/go-fetchkit/config"
	"github.com/gaborage/go-fetchkit/hook"
	"github.com/gaborage/go-fetchkit/httpclient"
	"github.com/gaborage/go-fetchkit/logger"
	"github.com/gaborage/go-fetchkit/observability"
	"github.com/gaborage/go-fetchkit/retry"
)

// Options overrides components that New would otherwise build from config.
type Options struct {
	// Logger replaces the logger built from the log section.
	Logger logger.Logger
	// Transport replaces the default instrumented HTTP transport.
	Transport httpclient.Transport
	// Observability is passed through to observability.NewProvider.
	Observability []observability.Option
}

// App holds the shared components of a fetchkit process.
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	provider observability.Provider
	client   *httpclient.Client
}

// New loads configuration with config.Load and builds an App from it.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg, nil)
}

// NewWithConfig builds an App from cfg. opts may be nil.
func NewWithConfig(cfg *config.Config, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Str("version", cfg.App.Version).
		Msg("Starting fetchkit")

	obsOpts := append([]observability.Option{observability.WithLogger(log)}, opts.Observability...)
	provider, err := observability.NewProvider(cfg.ObservabilityConfig(), obsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	clientCfg := cfg.HTTPClientConfig()
	clientCfg.MeterProvider = provider.MeterProvider()
	clientCfg.Transport = opts.Transport

	return &App{
		cfg:      cfg,
		logger:   log,
		provider: provider,
		client:   httpclient.New(log, clientCfg),
	}, nil
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Logger() logger.Logger { return a.logger }

func (a *App) Client() *httpclient.Client { return a.client }

// MeterProvider returns the provider every component records into.
func (a *App) MeterProvider() metric.MeterProvider { return a.provider.MeterProvider() }

// RetryPolicy builds a policy from the retry section. extra options are
// applied last.
func (a *App) RetryPolicy(extra ...retry.Option) *retry.Policy {
	opts := append(a.cfg.RetryOptions(),
		retry.WithLogger(a.logger),
		retry.WithMeterProvider(a.MeterProvider()))
	return retry.New(append(opts, extra...)...)
}

// NewCache creates a cache named by the cache section, or by name when given.
func NewCache[T any](a *App, name ...string) *cache.Cache[T] {
	cacheName := a.cfg.Cache.Name
	if len(name) > 0 && name[0] != "" {
		cacheName = name[0]
	}
	return cache.New[T](
		cache.WithName(cacheName),
		cache.WithLogger(a.logger),
		cache.WithMeterProvider(a.MeterProvider()),
	)
}

// NewHook creates a fetch hook backed by the app's client.
func NewHook[T any](a *App, opts ...hook.Option) *hook.FetchHook[T] {
	return hook.New(hook.FromClient[T](a.client), append([]hook.Option{hook.WithLogger(a.logger)}, opts...)...)
}

// Shutdown flushes and stops the observability provider.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown observability provider")
		return fmt.Errorf("shutdown failed: %w", err)
	}
	a.logger.Info().Msg("Shutdown complete")
	return nil
}
