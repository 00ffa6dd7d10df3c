//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/sandeepkv93/learning-portal-client/internal/app"
	"github.com/sandeepkv93/learning-portal-client/internal/config"
	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
)

func InitializeApp(ctx context.Context, cfg *config.Config, notifier gateway.Notifier) (*app.App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
