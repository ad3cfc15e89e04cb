package interfaces

import (
	"github.com/google/wire"

	"jan-server/services/grant-scout/internal/infrastructure/grantstore"
	"jan-server/services/grant-scout/internal/interfaces/httpserver"
)

// InterfacesProvider provides all interface layer dependencies
var InterfacesProvider = wire.NewSet(
	httpserver.NewHTTPServer,
	wire.Bind(new(httpserver.ReadinessChecker), new(*grantstore.Store)),
)
