package service

import (
	"context"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
)

// APIClient is the part of the gateway the auth service depends on.
type APIClient interface {
	Do(ctx context.Context, method, path string, opts gateway.RequestOptions, out any) error
}

type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (session.State, error)
	Register(ctx context.Context, in RegisterInput) (session.State, error)
	SignOut(ctx context.Context) error
	Bootstrap(ctx context.Context) (session.State, error)
	RefreshProfile(ctx context.Context) (domain.User, error)
	UpdateProfile(ctx context.Context, in ProfileUpdate) (domain.User, error)
}

var _ AuthServiceInterface = (*AuthService)(nil)
