// Package guard decides, from a session snapshot, whether a page may render or where to send
// the visitor instead.
package guard

import "github.com/sandeepkv93/learning-portal-client/internal/session"

const (
	DefaultHomePath         = "/home"
	DefaultLoginPath        = "/login"
	DefaultUnauthorizedPath = "/unauthorized"
)

// Paths are the redirect targets used by the guards.
type Paths struct {
	Home         string
	Login        string
	Unauthorized string
}

func DefaultPaths() Paths {
	return Paths{Home: DefaultHomePath, Login: DefaultLoginPath, Unauthorized: DefaultUnauthorizedPath}
}

// WithDefaults fills empty fields from DefaultPaths.
func (p Paths) WithDefaults() Paths {
	d := DefaultPaths()
	if p.Home == "" {
		p.Home = d.Home
	}
	if p.Login == "" {
		p.Login = d.Login
	}
	if p.Unauthorized == "" {
		p.Unauthorized = d.Unauthorized
	}
	return p
}

// Decision is either Render or a redirect to RedirectTo.
type Decision struct {
	Render     bool
	RedirectTo string
}

func render() Decision              { return Decision{Render: true} }
func redirect(path string) Decision { return Decision{RedirectTo: path} }

func (d Decision) Outcome() string {
	if d.Render {
		return "render"
	}
	return "redirect"
}

// Guard is a pure function of the session snapshot. While the session is still bootstrapping
// there is no user, so guards treat it as unauthenticated.
type Guard interface {
	Name() string
	Decide(state session.State) Decision
}

type publicOnly struct{ paths Paths }

// PublicOnly admits visitors without a user and sends signed-in users home.
func PublicOnly(paths Paths) Guard { return publicOnly{paths: paths.WithDefaults()} }

func (publicOnly) Name() string { return "public_only" }

func (g publicOnly) Decide(state session.State) Decision {
	if state.User == nil {
		return render()
	}
	return redirect(g.paths.Home)
}

type authenticated struct{ paths Paths }

// Authenticated admits any signed-in user and sends everyone else to login.
func Authenticated(paths Paths) Guard { return authenticated{paths: paths.WithDefaults()} }

func (authenticated) Name() string { return "authenticated" }

func (g authenticated) Decide(state session.State) Decision {
	if state.User != nil {
		return render()
	}
	return redirect(g.paths.Login)
}

type roleGated struct {
	role  string
	paths Paths
}

// RoleGated admits only users holding role. Everyone else, including visitors without a
// user, is sent to the unauthorized page.
func RoleGated(role string, paths Paths) Guard {
	return roleGated{role: role, paths: paths.WithDefaults()}
}

func (g roleGated) Name() string { return "role_gated:" + g.role }

func (g roleGated) Decide(state session.State) Decision {
	if state.User != nil && state.CheckRole(g.role) {
		return render()
	}
	return redirect(g.paths.Unauthorized)
}
