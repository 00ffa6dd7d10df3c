package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindAuthenticationExpired Kind = "authentication_expired"
	KindValidation            Kind = "validation"
	KindServer                Kind = "server"
	KindNetwork               Kind = "network"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAuthenticationExpired = errors.New("authentication expired")
	ErrValidation            = errors.New("request rejected")
	ErrServer                = errors.New("server error")
	ErrNetwork               = errors.New("network error")
)

// Error is returned for every failed gateway call. errors.Is matches the sentinel for its Kind.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	out := []error{sentinel(e.Kind)}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func sentinel(kind Kind) error {
	switch kind {
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindAuthenticationExpired:
		return ErrAuthenticationExpired
	case KindValidation:
		return ErrValidation
	case KindNetwork:
		return ErrNetwork
	default:
		return ErrServer
	}
}

// KindOf reports the failure kind of err, or "" when err did not come from the gateway.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthenticationExpired
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindInvalidCredentials:
		return "Invalid email or password."
	case KindAuthenticationExpired:
		return "Your session has expired. Please sign in again."
	case KindValidation:
		return "The request could not be processed."
	case KindNetwork:
		return "Unable to reach the server. Check your connection and try again."
	default:
		return "Something went wrong. Please try again later."
	}
}
