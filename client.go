package goSession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/tokenstore"
)

// Client is a built session manager. All methods are safe for concurrent use.
type Client struct {
	*instruments

	config    Config
	store     tokenstore.Store
	session   *session.Service
	transport *Transport
	http      *http.Client
	identity  *identity.Client
	guard     *Guard
	router    *Router

	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

// Login exchanges credentials for a token pair and stores it. Tokens are
// never returned to the caller.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c == nil || c.identity == nil {
		return ErrClientNotReady
	}

	pair, err := c.identity.Login(ctx, identity.Credentials{Username: username, Password: password})
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			err = fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		c.metricInc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLoginFailure, false, username, err, nil)
		c.log().Info("login failed", zap.String("user", username), zap.Error(err))
		return err
	}

	if err := tokenstore.WritePair(ctx, c.store, pair.Token, pair.RefreshToken); err != nil {
		c.storageFailed(ctx, "write_pair", err)
		return err
	}

	subject, _ := c.session.Subject(ctx)
	c.metricInc(MetricLoginSuccess)
	c.emitAudit(ctx, auditEventLoginSuccess, true, subject, nil, nil)
	c.log().Info("logged in", zap.String("subject", subject))
	return nil
}

// Logout clears the token store, including anything else stored in its
// namespace.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.store == nil {
		return ErrClientNotReady
	}

	subject, _ := c.session.Subject(ctx)
	if err := c.store.Clear(ctx); err != nil {
		c.storageFailed(ctx, "clear", err)
		return err
	}
	c.metricInc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, true, subject, nil, nil)
	c.log().Info("logged out", zap.String("subject", subject))
	return nil
}

// Register creates an account. image may be nil. It has no effect on the
// stored session.
func (c *Client) Register(ctx context.Context, user identity.User, image io.Reader, filename string) error {
	if c == nil || c.identity == nil {
		return ErrClientNotReady
	}

	err := c.identity.Register(ctx, user, image, filename)
	if err != nil {
		c.metricInc(MetricRegisterFailure)
		c.emitAudit(ctx, auditEventRegisterFailure, false, user.Name, err, nil)
		return err
	}
	c.metricInc(MetricRegisterSuccess)
	c.emitAudit(ctx, auditEventRegisterSuccess, true, user.Name, nil, nil)
	return nil
}

// Users lists accounts with their profile images. It requires a session.
func (c *Client) Users(ctx context.Context) ([]identity.User, error) {
	if c == nil || c.identity == nil {
		return nil, ErrClientNotReady
	}
	users, err := c.identity.ListUsers(ctx)
	if err != nil {
		return nil, protectedErr(err)
	}
	return users, nil
}

// UserImage fetches one profile image. It requires a session.
func (c *Client) UserImage(ctx context.Context, id int64) (identity.Image, error) {
	if c == nil || c.identity == nil {
		return identity.Image{}, ErrClientNotReady
	}
	img, err := c.identity.UserImage(ctx, id)
	if err != nil {
		return identity.Image{}, protectedErr(err)
	}
	return img, nil
}

// DisplayName returns stored when it is set, else the token subject, else
// the empty string.
func (c *Client) DisplayName(ctx context.Context, stored string) string {
	if stored != "" {
		return stored
	}
	if c == nil || c.session == nil {
		return ""
	}
	subject, _ := c.session.Subject(ctx)
	return subject
}

// Navigate resolves path through the route table and guard.
func (c *Client) Navigate(ctx context.Context, path string) (string, Decision, error) {
	if c == nil || c.router == nil {
		return "", Decision{}, ErrClientNotReady
	}
	return c.router.Navigate(ctx, path)
}

// HTTPClient returns an *http.Client whose transport attaches and refreshes
// credentials. Use it for any other call to protected endpoints.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Session returns the session service over the client's token store.
func (c *Client) Session() *session.Service { return c.session }

// Guard returns the navigation guard. Middleware uses it to gate HTTP
// handlers on the same session.
func (c *Client) Guard() *Guard { return c.guard }

// Router returns the route table the client navigates with.
func (c *Client) Router() *Router { return c.router }

// Store returns the token store the client was built with.
func (c *Client) Store() tokenstore.Store { return c.store }

// Identity returns the identity service client. Its requests go through the
// credential-attaching transport.
func (c *Client) Identity() *identity.Client { return c.identity }

// Config returns a copy of the resolved configuration.
func (c *Client) Config() Config { return cloneConfig(c.config) }

// MetricsSnapshot copies the client's counters and histograms. A nil client
// returns an empty snapshot.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.instruments == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// AuditDropped is the number of audit events discarded because the relay
// buffer was full.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.instruments == nil {
		return 0
	}
	return c.audit.Dropped()
}

// AuditDroppedByKind splits [Client.AuditDropped] by event kind.
func (c *Client) AuditDroppedByKind() map[AuditKind]uint64 {
	if c == nil || c.instruments == nil {
		return map[AuditKind]uint64{}
	}
	return c.audit.DroppedByKind()
}

// Close flushes the audit relay and releases any store connection the
// client opened itself. It is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.instruments != nil {
			c.audit.Close()
		}
		c.closeErr = runClosers(c.closers)
	})
	return c.closeErr
}

func protectedErr(err error) error {
	if errors.Is(err, identity.ErrUnauthorized) {
		return fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	return err
}
