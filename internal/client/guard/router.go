package guard

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/waonpad/benkyo-1/internal/client/services"
)

var (
	ErrNoRoute      = errors.New("no matching route")
	ErrRedirectLoop = errors.New("too many redirects")
)

const maxRedirects = 8

type Kind int

const (
	// Open routes render for everyone.
	Open Kind = iota
	PrivateRoute
	PublicRoute
)

type Route struct {
	Name  string
	Path  string
	Exact bool
	Kind  Kind
}

// Session is the part of the session store the router needs.
type Session interface {
	Snapshot() services.Snapshot
	Ready() <-chan struct{}
}

// Resolution is where navigation ended and the route found there.
type Resolution struct {
	Route    Route
	Location Location
	// Redirected is true when the final location differs from the
	// requested one.
	Redirected bool
}

type Router struct {
	session Session
	routes  []Route
}

// NewRouter registers routes in match order; the first match wins.
func NewRouter(s Session, routes ...Route) *Router {
	rs := make([]Route, len(routes))
	for i, r := range routes {
		r.Path = clean(r.Path)
		rs[i] = r
	}
	return &Router{session: s, routes: rs}
}

// Decide waits for the session to be ready and applies the guard of the
// route matching loc.
func (r *Router) Decide(ctx context.Context, loc Location) (Route, Decision, error) {
	select {
	case <-r.session.Ready():
	case <-ctx.Done():
		return Route{}, Decision{}, ctx.Err()
	}

	loc.Path = clean(loc.Path)
	route, ok := r.match(loc.Path)
	if !ok {
		return Route{}, Decision{}, fmt.Errorf("%w: %s", ErrNoRoute, loc.Path)
	}

	snap := r.session.Snapshot()
	switch route.Kind {
	case PrivateRoute:
		return route, Private(snap, loc), nil
	case PublicRoute:
		return route, Public(snap, loc), nil
	default:
		return route, Decision{Render: true}, nil
	}
}

// Navigate follows redirects from loc until a location renders.
func (r *Router) Navigate(ctx context.Context, loc Location) (Resolution, error) {
	requested := clean(loc.Path)
	for i := 0; i <= maxRedirects; i++ {
		route, d, err := r.Decide(ctx, loc)
		if err != nil {
			return Resolution{}, err
		}
		if d.Render {
			loc.Path = clean(loc.Path)
			return Resolution{Route: route, Location: loc, Redirected: loc.Path != requested}, nil
		}
		loc = *d.Redirect
	}
	return Resolution{}, fmt.Errorf("%w: from %s", ErrRedirectLoop, requested)
}

func (r *Router) match(p string) (Route, bool) {
	for _, route := range r.routes {
		if route.Path == p {
			return route, true
		}
		if route.Exact {
			continue
		}
		if route.Path == "/" || strings.HasPrefix(p, route.Path+"/") {
			return route, true
		}
	}
	return Route{}, false
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
