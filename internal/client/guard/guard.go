// Package guard decides whether a client location may be shown for the
// current session or where the user should be sent instead.
//
// Private and Public are pure functions over a session snapshot. Router
// matches locations against registered routes and applies the guard of the
// matching route, but only after the session has finished bootstrapping.
package guard

import "github.com/waonpad/benkyo-1/internal/client/services"

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Location is a place in the client together with its navigation state.
type Location struct {
	Path  string
	State *NavState
}

// NavState travels with a redirect. From is the location the user was
// sent away from.
type NavState struct {
	From *Location
}

// Decision is the outcome of a guard: either render the location or
// redirect to another one.
type Decision struct {
	Render   bool
	Redirect *Location
}

// Private renders only for an authenticated user. Everyone else goes to
// the login path, remembering the attempted location.
func Private(snap services.Snapshot, loc Location) Decision {
	if snap.HasUser() {
		return Decision{Render: true}
	}
	from := bare(loc)
	return Decision{Redirect: &Location{Path: LoginPath, State: &NavState{From: &from}}}
}

// Public renders only when nobody is logged in. An authenticated user is
// sent back where they came from, or home.
func Public(snap services.Snapshot, loc Location) Decision {
	if !snap.HasUser() {
		return Decision{Render: true}
	}

	target := HomePath
	if loc.State != nil && loc.State.From != nil && loc.State.From.Path != "" {
		target = loc.State.From.Path
	}
	from := bare(loc)
	return Decision{Redirect: &Location{Path: target, State: &NavState{From: &from}}}
}

// bare drops the navigation state so redirect chains do not nest.
func bare(loc Location) Location {
	return Location{Path: loc.Path}
}
