//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"jan-server/services/grant-scout/internal/domain"
	"jan-server/services/grant-scout/internal/infrastructure"
	"jan-server/services/grant-scout/internal/interfaces"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/routes"
)

func CreateApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		domain.DomainProvider,
		infrastructure.InfrastructureProvider,
		routes.RoutesProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
