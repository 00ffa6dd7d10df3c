package session

import "github.com/sandeepkv93/learning-portal-client/internal/domain"

type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

// State is an immutable snapshot of the session as guards and UI observers see it.
type State struct {
	User            *domain.User
	IsBootstrapping bool
	HasTokens       bool
}

func (s State) Status() Status {
	switch {
	case s.IsBootstrapping:
		return StatusUnknown
	case s.User != nil:
		return StatusAuthenticated
	default:
		return StatusUnauthenticated
	}
}

func (s State) Authenticated() bool {
	return s.User != nil
}

// CheckRole is true iff the snapshot's user has exactly the required role.
func (s State) CheckRole(required string) bool {
	return domain.CheckRole(s.User, required)
}
