package goSession

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/goSession/jwt"
)

// SessionState is the part of the session service the guard consults.
// [*session.Service] implements it.
type SessionState interface {
	IsActive(ctx context.Context) (bool, error)
	Decode(ctx context.Context) (jwt.Claims, error)
}

// Decision is the outcome of a guard check. When Allowed is false, Redirect
// names the route to navigate to instead.
type Decision struct {
	Allowed  bool
	Redirect string
	// Err is set when the check itself failed, for example on a storage
	// error. The decision is still a denial.
	Err error
}

// GuardOption customizes a [Guard].
type GuardOption func(*Guard)

// WithRequire installs a claims predicate evaluated for active sessions.
// A session that fails it is sent to the forbidden route.
func WithRequire(fn func(jwt.Claims) bool) GuardOption {
	return func(g *Guard) {
		g.require = fn
	}
}

// WithGuardLogger sets the guard's logger.
func WithGuardLogger(l *zap.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.instruments.logger = l
		}
	}
}

// Guard gates entry to protected routes on session presence. It never
// refreshes tokens and never touches the network.
type Guard struct {
	*instruments

	session  SessionState
	notifier Notifier
	cfg      GuardConfig
	require  func(jwt.Claims) bool
}

// NewGuard returns a guard over state. A nil notifier discards notifications.
func NewGuard(state SessionState, cfg GuardConfig, notifier Notifier, opts ...GuardOption) *Guard {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	def := defaultConfig().Guard
	if cfg.LoginRoute == "" {
		cfg.LoginRoute = def.LoginRoute
	}
	if cfg.ForbiddenRoute == "" {
		cfg.ForbiddenRoute = cfg.LoginRoute
	}
	if cfg.Title == "" {
		cfg.Title = def.Title
	}
	if cfg.Message == "" {
		cfg.Message = def.Message
	}
	g := &Guard{
		instruments: newInstruments(nil, nil, nil),
		session:     state,
		notifier:    notifier,
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoginRoute is where denied navigations are sent.
func (g *Guard) LoginRoute() string { return g.cfg.LoginRoute }

// CanActivate decides whether route may be entered. A denial notifies the
// user once and redirects to the login route. Storage failures deny.
func (g *Guard) CanActivate(ctx context.Context, route string) Decision {
	if g == nil || g.session == nil {
		return Decision{Redirect: defaultConfig().Guard.LoginRoute, Err: ErrClientNotReady}
	}

	active, err := g.session.IsActive(ctx)
	if err != nil {
		g.storageFailed(ctx, "guard", err)
		return g.deny(ctx, route, err)
	}
	if !active {
		return g.deny(ctx, route, nil)
	}

	if g.require != nil {
		claims, err := g.session.Decode(ctx)
		if err != nil {
			g.metricInc(MetricDecodeFailure)
		}
		if err != nil || !g.require(claims) {
			return g.forbid(ctx, route, err)
		}
	}

	g.metricInc(MetricGuardAllowed)
	return Decision{Allowed: true}
}

// Forbid records a denial for an active session that lacks a permission
// checked outside the guard, such as a role enforced by middleware. It
// notifies the user and redirects to the forbidden route like a failed
// [WithRequire] predicate.
func (g *Guard) Forbid(ctx context.Context, route string) Decision {
	if g == nil {
		return Decision{Redirect: defaultConfig().Guard.ForbiddenRoute, Err: ErrClientNotReady}
	}
	return g.forbid(ctx, route, nil)
}

func (g *Guard) deny(ctx context.Context, route string, err error) Decision {
	g.metricInc(MetricGuardDenied)
	g.emitAudit(ctx, auditEventGuardDenied, false, "", err, func() map[string]string {
		return map[string]string{"route": route}
	})
	g.log().Debug("navigation denied", zap.String("route", route), zap.Error(err))
	g.notifier.Notify(ctx, Notification{
		Kind:    NotifyLoginRequired,
		Title:   g.cfg.Title,
		Message: g.cfg.Message,
		Route:   g.cfg.LoginRoute,
	})
	return Decision{Redirect: g.cfg.LoginRoute, Err: err}
}

func (g *Guard) forbid(ctx context.Context, route string, err error) Decision {
	g.metricInc(MetricGuardForbidden)
	g.emitAudit(ctx, auditEventGuardForbidden, false, "", err, func() map[string]string {
		return map[string]string{"route": route}
	})
	g.log().Debug("navigation forbidden", zap.String("route", route), zap.Error(err))
	g.notifier.Notify(ctx, Notification{
		Kind:    NotifyForbidden,
		Title:   g.cfg.Title,
		Message: "You are not allowed to open " + route,
		Route:   g.cfg.ForbiddenRoute,
	})
	return Decision{Redirect: g.cfg.ForbiddenRoute, Err: err}
}
