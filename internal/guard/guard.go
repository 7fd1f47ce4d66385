// Package guard decides whether a location may be visited given the current
// session. The decisions are pure functions of a session snapshot so the web
// front end and the CLI gate access the same way.
package guard

import (
	"net/url"
	"strings"

	"github.com/allone-dev/allone/internal/session"
)

const (
	// LoginPath is where unauthenticated visitors are sent
	LoginPath = "/login"
	// HomePath is where authenticated visitors are sent away from public-only views
	HomePath = "/"
)

// Decision is the outcome of a guard check
type Decision struct {
	Allow bool
	// Redirect is the location to go to instead when Allow is false
	Redirect string
	// From is the originally requested location, kept so login can return to it
	From string
}

// AuthenticatedOnly admits authenticated sessions and sends everyone else
// to the login view, remembering the requested location.
func AuthenticatedOnly(state session.State, requested string) Decision {
	if state.IsAuthenticated {
		return Decision{Allow: true}
	}
	return Decision{Redirect: LoginPath, From: requested}
}

// PublicOnly admits unauthenticated sessions and sends authenticated ones home
func PublicOnly(state session.State) Decision {
	if !state.IsAuthenticated {
		return Decision{Allow: true}
	}
	return Decision{Redirect: HomePath}
}

// LoginURL is the login location carrying from as the return path
func LoginURL(from string) string {
	if from == "" || from == LoginPath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"from": {from}}.Encode()
}

// ReturnPath returns from when it is a local absolute path and HomePath otherwise
func ReturnPath(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") {
		return HomePath
	}
	// "//host" and "/\host" are treated as network paths by browsers
	if strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return HomePath
	}
	u, err := url.Parse(from)
	if err != nil || u.IsAbs() || u.Host != "" {
		return HomePath
	}
	if u.Path == LoginPath {
		return HomePath
	}
	return from
}
