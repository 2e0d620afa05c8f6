package goSession

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrRedirectLoop  = errors.New("route redirect loop")
)

const maxRedirects = 8

// Route is one entry of the navigation table. A route with RedirectTo set
// has no view of its own.
type Route struct {
	Path       string
	RedirectTo string
	Protected  bool
}

// DefaultRoutes is the application's navigation table: the empty path goes
// to login, login and register are public, header and home need a session.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "", RedirectTo: "login"},
		{Path: "login"},
		{Path: "register"},
		{Path: "header", Protected: true},
		{Path: "home", Protected: true},
	}
}

// Router resolves paths against a route table and applies the guard to
// protected routes.
type Router struct {
	guard  *Guard
	routes map[string]Route
}

// NewRouter validates routes and returns a router. Redirect targets must
// exist and must not form a cycle.
func NewRouter(guard *Guard, routes []Route) (*Router, error) {
	if guard == nil {
		return nil, ErrClientNotReady
	}
	r := &Router{guard: guard, routes: make(map[string]Route, len(routes))}
	for _, rt := range routes {
		p := cleanPath(rt.Path)
		if _, dup := r.routes[p]; dup {
			return nil, fmt.Errorf("duplicate route %q", p)
		}
		rt.Path = p
		rt.RedirectTo = cleanPath(rt.RedirectTo)
		r.routes[p] = rt
	}
	for p := range r.routes {
		if _, err := r.resolve(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Navigate resolves path and returns the route actually entered with the
// guard's decision. A denied navigation lands on the decision's redirect
// route, which is not guarded again.
func (r *Router) Navigate(ctx context.Context, path string) (string, Decision, error) {
	route, err := r.resolve(cleanPath(path))
	if err != nil {
		return "", Decision{}, err
	}
	if !route.Protected {
		return route.Path, Decision{Allowed: true}, nil
	}

	d := r.guard.CanActivate(ctx, route.Path)
	if !d.Allowed {
		return d.Redirect, d, nil
	}
	return route.Path, d, nil
}

func (r *Router) resolve(path string) (Route, error) {
	for i := 0; i <= maxRedirects; i++ {
		route, ok := r.routes[path]
		if !ok {
			return Route{}, fmt.Errorf("%w: %q", ErrRouteNotFound, path)
		}
		if route.RedirectTo == "" {
			return route, nil
		}
		path = route.RedirectTo
	}
	return Route{}, fmt.Errorf("%w at %q", ErrRedirectLoop, path)
}

func cleanPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}
