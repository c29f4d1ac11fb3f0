package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/twrkit/internal/account"
	"github.com/twrkit/internal/config"
	"github.com/twrkit/internal/loop"
	"github.com/twrkit/internal/metrics"
	"github.com/twrkit/internal/settings"
	"github.com/twrkit/internal/store"
	"github.com/twrkit/pkg/handshake"
	"github.com/twrkit/pkg/oauth"
	"github.com/twrkit/pkg/transfer"
	"github.com/twrkit/pkg/twitter"
)

// app is the runtime every command works against: one event loop, one
// credential store and one engine signing with it.
type app struct {
	cfg      *config.Config
	loop     *loop.Loop
	account  *account.Account
	creds    *oauth.Credentials
	engine   *transfer.Engine
	client   *twitter.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	journal *store.DB
	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}

	st, err := a.openSettings()
	if err != nil {
		return nil, err
	}
	a.account = account.New(st)
	a.creds = a.account.Load()

	httpClient, err := newHTTPClient(cfg.Transport)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewMetrics(a.registry)

	a.loop = loop.New()
	a.loop.Start(ctx)

	a.engine = transfer.NewEngine(oauth.NewSigner(a.creds), a.loop,
		transfer.WithHTTPClient(httpClient),
		transfer.WithRateLimit(cfg.Transport.RateLimit, cfg.Transport.RateBurst),
		transfer.WithObserver(a.metrics),
	)
	a.client = twitter.NewClient(a.engine, twitter.WithBaseURL(cfg.API.BaseURL))

	return a, nil
}

func (a *app) openSettings() (settings.Store, error) {
	switch a.cfg.Settings.Backend {
	case config.BackendMemory:
		return settings.NewMemory(), nil
	case config.BackendSQLite:
		db, err := store.Open(a.cfg.Settings.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	default:
		fs, err := settings.OpenFile(a.cfg.Settings.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}

func newHTTPClient(cfg config.Transport) (*http.Client, error) {
	cc := transfer.ClientConfig{
		Timeout:         cfg.Timeout,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
		TLSInsecure:     cfg.TLSInsecure,
	}
	if cfg.Protocol == config.ProtocolHTTP2 {
		c, err := transfer.NewHTTP2Client(cc)
		if err != nil {
			return nil, fmt.Errorf("failed to create http2 client: %w", err)
		}
		return c, nil
	}
	return transfer.NewHTTPClient(cc), nil
}

// handshake returns a handshake bound to the app's credential store.
func (a *app) handshake() *handshake.Handshake {
	return handshake.New(a.engine, a.creds,
		handshake.WithEndpoint(oauth1.Endpoint{
			RequestTokenURL: a.cfg.API.RequestTokenURL,
			AuthorizeURL:    a.cfg.API.AuthorizeURL,
			AccessTokenURL:  a.cfg.API.AccessTokenURL,
		}),
		handshake.WithObserver(a.metrics),
	)
}

// openJournal opens the journal database once.
func (a *app) openJournal() (*store.DB, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	db, err := store.Open(a.cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	a.journal = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

var errNotConfigured = errors.New("account is not authorized, run: twrkit auth")

func (a *app) requireAccount() error {
	if !a.creds.Complete() {
		return errNotConfigured
	}
	return nil
}

// Close drains pending callbacks and releases resources.
func (a *app) Close() {
	if a.loop != nil {
		a.loop.Drain(5 * time.Second)
		a.loop.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// await blocks until start's callback fires or ctx ends.
func await[T any](ctx context.Context, start func(done func(T, error)) error) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	if err := start(func(v T, err error) { ch <- result{v, err} }); err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
