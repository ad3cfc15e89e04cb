package routes

import (
	"github.com/google/wire"

	"jan-server/services/grant-scout/internal/interfaces/httpserver/handlers/granthandler"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/routes/mcp"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/routes/v1/grants"
)

// RoutesProvider provides all route dependencies
var RoutesProvider = wire.NewSet(
	granthandler.NewGrantHandler,
	grants.NewGrantsRoute,
	mcp.NewGrantMCP,
	mcp.NewMCPRoute,
)
