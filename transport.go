package goSession

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/tokenstore"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Refresher mints a new token pair from a refresh token.
// [*identity.Client] implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (identity.TokenPair, error)
}

// TransportOption customizes a [Transport].
type TransportOption func(*Transport)

// WithRefresher sets the refresh endpoint client.
func WithRefresher(r Refresher) TransportOption {
	return func(t *Transport) {
		t.refresher = r
	}
}

// WithTransportNotifier sets the sink for the session-expired notification.
func WithTransportNotifier(n Notifier) TransportOption {
	return func(t *Transport) {
		if n != nil {
			t.notifier = n
		}
	}
}

// WithTransportLogger sets the transport's logger.
func WithTransportLogger(l *zap.Logger) TransportOption {
	return func(t *Transport) {
		if l != nil {
			t.instruments.logger = l
		}
	}
}

// WithExpiredNotification overrides the notification sent when the session
// ends because the refresh token was rejected.
func WithExpiredNotification(n Notification) TransportOption {
	return func(t *Transport) {
		n.Kind = NotifySessionExpired
		t.expiredNotice = n
	}
}

// Transport is an [http.RoundTripper] that attaches the stored access token
// as a bearer credential and recovers from expiry with a single shared
// refresh followed by one retry.
//
// Requests carrying the No-Auth header, or made with a context from
// [WithNoAuth], are sent without any Authorization header.
type Transport struct {
	*instruments

	base      http.RoundTripper
	store     tokenstore.Store
	refresher Refresher
	notifier  Notifier

	group singleflight.Group

	expiredNotice Notification
	expiredMu     sync.Mutex
	lastExpired   string
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper, store tokenstore.Store, opts ...TransportOption) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	cfg := defaultConfig().Guard
	t := &Transport{
		instruments: newInstruments(nil, nil, nil),
		base:        base,
		store:       store,
		notifier:    noopNotifier{},
		expiredNotice: Notification{
			Kind:    NotifySessionExpired,
			Title:   cfg.Title,
			Message: cfg.Message,
			Route:   cfg.LoginRoute,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	reqID := out.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = requestIDFromContext(ctx)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		out.Header.Set(RequestIDHeader, reqID)
	}
	ctx = WithRequestID(ctx, reqID)

	if isExempt(out) {
		out.Header.Del(identity.NoAuthHeader)
		out.Header.Del("Authorization")
		t.metricInc(MetricRequestExempt)
		return t.base.RoundTrip(out)
	}

	token, ok, err := t.readToken(ctx, tokenstore.AccessToken)
	if err != nil {
		closeBody(req)
		return nil, localFailure{err}
	}
	if !ok {
		t.metricInc(MetricRequestAnonymous)
		return t.base.RoundTrip(out)
	}

	if err := bufferBody(out); err != nil {
		return nil, localFailure{err}
	}
	setBearer(out, token)
	t.metricInc(MetricRequestAuthenticated)

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	t.metricInc(MetricUnauthorizedResponse)

	next, err := t.recoverToken(ctx, token)
	if err != nil {
		t.log().Debug("returning original 401",
			zap.String("request_id", reqID),
			zap.String("method", out.Method),
			zap.String("path", out.URL.Path),
			zap.Error(err),
		)
		return resp, nil
	}

	retry, err := rewind(out)
	if err != nil {
		return resp, nil
	}
	drainBody(resp)
	setBearer(retry, next)
	return t.base.RoundTrip(retry)
}

// recoverToken returns the token to retry with after a 401 for stale. It
// refreshes only when no other request has replaced stale already.
func (t *Transport) recoverToken(ctx context.Context, stale string) (string, error) {
	current, ok, err := t.readToken(ctx, tokenstore.AccessToken)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAuthRejected
	}
	if current != stale {
		t.metricInc(MetricRetryWithoutRefresh)
		return current, nil
	}

	executed := false
	ch := t.group.DoChan(stale, func() (any, error) {
		executed = true
		return t.refresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case res := <-ch:
		if !executed {
			t.metricInc(MetricRefreshShared)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refresh runs one refresh cycle. Exactly one goroutine runs it per stale
// access token.
func (t *Transport) refresh(ctx context.Context, stale string) (string, error) {
	if t.refresher == nil {
		return "", ErrClientNotReady
	}

	// The previous holder of this key may have already rotated or ended the
	// session.
	if current, done, err := t.superseded(ctx, stale); done {
		return current, err
	}

	rt, ok, err := t.readToken(ctx, tokenstore.RefreshToken)
	if err != nil {
		return "", err
	}
	if !ok {
		if current, done, err := t.superseded(ctx, stale); done {
			return current, err
		}
		t.metricInc(MetricRefreshFailure)
		t.emitAudit(ctx, auditEventRefreshFailure, false, "", ErrNoRefreshToken, nil)
		t.expire(ctx, "access:"+stale)
		return "", ErrNoRefreshToken
	}

	start := time.Now()
	pair, err := t.refresher.Refresh(ctx, rt)
	t.metricObserve(MetricRefreshLatency, time.Since(start))
	if err != nil {
		if isRejection(err) {
			// A rejection of the old refresh token says nothing about a
			// session that replaced it.
			if current, done, serr := t.superseded(ctx, stale); done {
				return current, serr
			}
			t.metricInc(MetricRefreshRejected)
			t.emitAudit(ctx, auditEventRefreshRejected, false, "", err, nil)
			t.log().Warn("refresh token rejected",
				zap.String("request_id", requestIDFromContext(ctx)),
				zap.Error(err),
			)
			t.expire(ctx, rt)
			return "", fmt.Errorf("%w: %v", ErrAuthRejected, err)
		}
		t.metricInc(MetricRefreshFailure)
		t.emitAudit(ctx, auditEventRefreshFailure, false, "", err, nil)
		t.log().Warn("refresh failed",
			zap.String("request_id", requestIDFromContext(ctx)),
			zap.Error(err),
		)
		return "", err
	}

	if current, done, err := t.superseded(ctx, stale); done {
		return current, err
	}

	nextRefresh := pair.RefreshToken
	if nextRefresh == "" {
		nextRefresh = rt
	}
	if err := tokenstore.WritePair(ctx, t.store, pair.Token, nextRefresh); err != nil {
		t.storageFailed(ctx, "write_pair", err)
		return "", err
	}

	t.metricInc(MetricRefreshSuccess)
	t.emitAudit(ctx, auditEventRefreshSuccess, true, "", nil, nil)
	t.log().Info("access token refreshed",
		zap.String("request_id", requestIDFromContext(ctx)),
	)
	return pair.Token, nil
}

// superseded reports whether the access token is no longer stale. A login or
// logout that happened while a refresh was in flight wins: done is true and
// the caller returns current, or ErrAuthRejected when the store is empty.
func (t *Transport) superseded(ctx context.Context, stale string) (current string, done bool, err error) {
	current, ok, err := t.readToken(ctx, tokenstore.AccessToken)
	if err != nil {
		return "", true, err
	}
	if !ok {
		return "", true, ErrAuthRejected
	}
	if current != stale {
		return current, true, nil
	}
	return "", false, nil
}

// expire ends the session after a terminal refresh failure. The store is
// cleared and one notification is sent per stale refresh token.
func (t *Transport) expire(ctx context.Context, key string) {
	t.expiredMu.Lock()
	if key != "" && t.lastExpired == key {
		t.expiredMu.Unlock()
		return
	}
	t.lastExpired = key
	t.expiredMu.Unlock()

	if err := t.store.Clear(ctx); err != nil {
		t.storageFailed(ctx, "clear", err)
	}
	t.metricInc(MetricSessionExpired)
	t.emitAudit(ctx, auditEventSessionExpired, false, "", ErrAuthRejected, nil)
	t.notifier.Notify(ctx, t.expiredNotice)
}

func (t *Transport) readToken(ctx context.Context, kind tokenstore.Kind) (string, bool, error) {
	if t.store == nil {
		return "", false, ErrClientNotReady
	}
	v, ok, err := t.store.Read(ctx, kind)
	if err != nil {
		t.storageFailed(ctx, "read", err)
		return "", false, err
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// localFailure marks errors raised by the transport itself, so callers
// don't mistake them for network failures.
type localFailure struct{ err error }

func (e localFailure) Error() string      { return e.err.Error() }
func (e localFailure) Unwrap() error      { return e.err }
func (e localFailure) LocalFailure() bool { return true }

// isRejection reports whether err is a 4xx verdict from the identity service.
// 5xx responses count as outages and leave the session intact.
func isRejection(err error) bool {
	var se *identity.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500
}

func isExempt(req *http.Request) bool {
	if noAuthFromContext(req.Context()) {
		return true
	}
	return len(req.Header.Values(identity.NoAuthHeader)) > 0
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// bufferBody makes req replayable. Bodies that already have GetBody are left
// alone.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
