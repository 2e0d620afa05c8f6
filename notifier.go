package goSession

import (
	"context"

	"go.uber.org/zap"
)

// NotificationKind classifies a [Notification].
type NotificationKind string

const (
	// NotifyLoginRequired is sent by the guard when a protected route is
	// entered without a session.
	NotifyLoginRequired NotificationKind = "login_required"
	// NotifyForbidden is sent by the guard when a role requirement fails.
	NotifyForbidden NotificationKind = "forbidden"
	// NotifySessionExpired is sent once when the identity service rejects the
	// stored refresh token.
	NotifySessionExpired NotificationKind = "session_expired"
)

// Notification is a user-facing message, the equivalent of a toast.
type Notification struct {
	Kind    NotificationKind
	Title   string
	Message string
	Route   string
}

// Notifier receives user-facing notifications. Notify must not block for
// long; it is called on the request or navigation path.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}

// ChannelNotifier buffers notifications for a UI loop to drain. When the
// buffer is full new notifications are dropped.
type ChannelNotifier struct {
	ch chan Notification
}

// NewChannelNotifier returns a notifier holding up to buffer pending
// notifications. A non-positive buffer holds one.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelNotifier{ch: make(chan Notification, buffer)}
}

// Notify queues n without blocking.
func (c *ChannelNotifier) Notify(_ context.Context, n Notification) {
	select {
	case c.ch <- n:
	default:
	}
}

// Notifications is the channel the UI loop reads from. It is never closed.
func (c *ChannelNotifier) Notifications() <-chan Notification {
	return c.ch
}

// LogNotifier writes notifications to a zap logger at warn level.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier logs through l under the "notify" name. A nil l discards.
func NewLogNotifier(l *zap.Logger) *LogNotifier {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogNotifier{logger: l.Named("notify")}
}

// Notify logs n with its kind, title and route as fields.
func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	l.logger.Warn(n.Message,
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
		zap.String("route", n.Route),
	)
}
