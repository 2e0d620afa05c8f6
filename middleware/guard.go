package middleware

import (
	"context"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims attached by [Guard]. ok is false when
// the token could not be decoded; the session is still active in that case.
func ClaimsFromContext(ctx context.Context) (jwt.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(jwt.Claims)
	return c, ok
}

// Guard lets a request through only while client holds a session. Denied
// requests get 303 See Other to the login route; the guard has already sent
// the user notification. Requests for the login route itself pass unchecked,
// so Guard may wrap a whole mux.
func Guard(client *goSession.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil || client.Guard() == nil {
				http.Error(w, "session client not ready", http.StatusServiceUnavailable)
				return
			}

			route := routeOf(r)
			if route == client.Guard().LoginRoute() {
				next.ServeHTTP(w, r)
				return
			}

			d := client.Guard().CanActivate(r.Context(), route)
			if !d.Allowed {
				redirect(w, r, d.Redirect)
				return
			}

			ctx := r.Context()
			if claims, err := client.Session().Decode(ctx); err == nil {
				ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func routeOf(r *http.Request) string {
	return strings.Trim(r.URL.Path, "/")
}

func redirect(w http.ResponseWriter, r *http.Request, route string) {
	http.Redirect(w, r, "/"+strings.TrimLeft(route, "/"), http.StatusSeeOther)
}
