package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireRole must be mounted inside [Guard]. Requests whose claims lack role
// are redirected to the configured forbidden route, and the user is notified
// through the client's guard exactly as for a guard-level denial.
func RequireRole(client *goSession.Client, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if ok && claims.HasRole(role) {
				next.ServeHTTP(w, r)
				return
			}
			var g *goSession.Guard
			if client != nil {
				g = client.Guard()
			}
			d := g.Forbid(r.Context(), routeOf(r))
			redirect(w, r, d.Redirect)
		})
	}
}
