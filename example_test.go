package goSession_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/tokenstore"
)

// ExampleNew builds a client whose session lives in Redis.
func ExampleNew() {
	cfg, err := goSession.LoadConfig("sessionctl.toml")
	if err != nil {
		return
	}
	cfg.Store.Backend = goSession.StoreRedis

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
	client, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(goSession.NewLogger(cfg.Log)).
		WithRequire(func(c jwt.Claims) bool { return c.HasRole("user") }).
		Build(context.Background())
	if err != nil {
		return
	}
	defer client.Close()
}

// ExampleClient_HTTPClient sends a protected call through the interceptor.
// A 401 triggers one shared refresh and one retry.
func ExampleClient_HTTPClient() {
	var client *goSession.Client
	resp, err := client.HTTPClient().Get("http://localhost:8080/api/orders")
	if err != nil {
		return
	}
	defer resp.Body.Close()
	fmt.Println(resp.Status)
}

// ExampleWithNoAuth marks a request as public so no token is attached.
func ExampleWithNoAuth() {
	var client *goSession.Client
	ctx := goSession.WithNoAuth(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:8080/api/status", nil)
	_, _ = client.HTTPClient().Do(req)
}

// ExampleClient_Navigate consults the route table before showing a view.
func ExampleClient_Navigate() {
	var client *goSession.Client
	route, decision, err := client.Navigate(context.Background(), "home")
	if err != nil {
		return
	}
	if !decision.Allowed {
		fmt.Println("redirect to", route)
	}
}

// This test guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goSession.New
	_ = goSession.NewTransport
	_ = goSession.NewGuard
	_ = goSession.NewRouter

	var _ *goSession.Client
	var _ goSession.Config
	var _ goSession.Decision
	var _ goSession.Notifier = goSession.NewChannelNotifier(1)
	var _ goSession.AuditSink = goSession.NoOpSink{}
	var _ http.RoundTripper = (*goSession.Transport)(nil)
	var _ tokenstore.Store = tokenstore.NewMemory()

	var _ error = goSession.ErrStorageUnavailable
	var _ error = goSession.ErrDecode
	var _ error = goSession.ErrAuthRejected
	var _ error = goSession.ErrNetworkFailure
	var _ error = goSession.ErrInvalidCredentials

	var _ func(*goSession.Client) func(http.Handler) http.Handler = middleware.Guard
	var _ func(*goSession.Client, string) func(http.Handler) http.Handler = middleware.RequireRole

	var _ func(*goSession.Client, context.Context, string, string) error = (*goSession.Client).Login
	var _ func(*goSession.Client, context.Context) error = (*goSession.Client).Logout
	var _ func(*goSession.Guard, context.Context, string) goSession.Decision = (*goSession.Guard).CanActivate
}
