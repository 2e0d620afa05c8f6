package goSession

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/tokenstore"
)

// Builder assembles a [Client]. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	store  tokenstore.Store
	redis  redis.UniversalClient

	logger        *zap.Logger
	notifier      Notifier
	auditSink     AuditSink
	baseTransport http.RoundTripper

	require func(jwt.Claims) bool
	routes  []Route

	built bool
}

// New returns a Builder over the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. Later With* calls still apply on
// top of it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore supplies a ready token store. It takes precedence over
// Config.Store.Backend and is not closed by [Client.Close].
func (b *Builder) WithStore(s tokenstore.Store) *Builder {
	b.store = s
	return b
}

// WithRedis supplies the client used by the redis backend instead of one
// dialed from Config.Store.RedisAddr.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the logger shared by every component. When unset one is
// built from Config.Log.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithNotifier sets where user-facing notifications go.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the audit destination. When auditing is enabled and no
// sink is set, events go to the logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithBaseTransport sets the RoundTripper the interceptor wraps.
func (b *Builder) WithBaseTransport(rt http.RoundTripper) *Builder {
	b.baseTransport = rt
	return b
}

// WithRequire installs a claims predicate on the guard.
func (b *Builder) WithRequire(fn func(jwt.Claims) bool) *Builder {
	b.require = fn
	return b
}

// WithRoutes replaces [DefaultRoutes].
func (b *Builder) WithRoutes(routes []Route) *Builder {
	b.routes = routes
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, opens the token store and wires the
// session service, interceptor, identity client and guard together.
func (b *Builder) Build(ctx context.Context) (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := b.notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}

	c := &Client{config: cfg}

	store := b.store
	if store == nil {
		s, closers, err := openStore(ctx, cfg.Store, b.redis)
		if err != nil {
			return nil, err
		}
		store = s
		c.closers = closers
	}
	c.store = store

	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = audit.NewZapSink(logger)
	}
	relay := audit.NewRelay(audit.Config{
		Enabled:      cfg.Audit.Enabled,
		BufferSize:   cfg.Audit.BufferSize,
		DropIfFull:   cfg.Audit.DropIfFull,
		CriticalWait: auditCriticalWait,
		RequestID:    requestIDFromContext,
	}, sink)
	c.instruments = newInstruments(logger, NewMetrics(cfg.Metrics), relay)

	svc, err := session.NewService(ctx, store, session.WithLogger(logger.Named("session")))
	if err != nil {
		c.Close()
		return nil, err
	}
	c.session = svc

	transport := NewTransport(b.baseTransport, store,
		WithTransportNotifier(notifier),
		WithExpiredNotification(Notification{
			Title:   cfg.Guard.Title,
			Message: cfg.Guard.Message,
			Route:   cfg.Guard.LoginRoute,
		}),
	)
	transport.instruments = c.instruments
	c.transport = transport
	c.http = &http.Client{Transport: transport, Timeout: cfg.API.Timeout}

	idc, err := identity.New(cfg.API.BaseURL, c.http, identity.WithPaths(identity.Paths{
		Login:    cfg.API.LoginPath,
		Register: cfg.API.RegisterPath,
		Refresh:  cfg.API.RefreshPath,
		Users:    cfg.API.UsersPath,
		Image:    cfg.API.ImagePath,
	}))
	if err != nil {
		c.Close()
		return nil, err
	}
	c.identity = idc
	transport.refresher = idc

	var guardOpts []GuardOption
	if b.require != nil {
		guardOpts = append(guardOpts, WithRequire(b.require))
	}
	c.guard = NewGuard(svc, cfg.Guard, notifier, guardOpts...)
	c.guard.instruments = c.instruments

	routes := b.routes
	if routes == nil {
		routes = DefaultRoutes()
	}
	router, err := NewRouter(c.guard, routes)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.router = router

	b.built = true

	logger.Debug("session client ready",
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("store", string(cfg.Store.Backend)),
		zap.String("namespace", cfg.Store.Namespace),
	)
	return c, nil
}

// openStore builds the configured backend. The returned closers release
// whatever the store opened itself.
func openStore(ctx context.Context, cfg StoreConfig, rc redis.UniversalClient) (tokenstore.Store, []func() error, error) {
	switch cfg.Backend {
	case StoreMemory, "":
		return tokenstore.NewMemory(), nil, nil

	case StoreRedis:
		var closers []func() error
		if rc == nil {
			owned := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
			closers = append(closers, owned.Close)
			rc = owned
		}
		s, err := tokenstore.NewRedis(rc, cfg.RedisPrefix, cfg.Namespace)
		if err != nil {
			runClosers(closers)
			return nil, nil, err
		}
		return s, closers, nil

	case StoreSQLite:
		s, err := tokenstore.OpenSQLite(ctx, cfg.SQLitePath, cfg.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return s, []func() error{s.Close}, nil

	case StoreFile:
		s, err := tokenstore.NewFile(cfg.FileDir, cfg.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func runClosers(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
