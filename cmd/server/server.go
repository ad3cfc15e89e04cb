package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/infrastructure/config"
	"jan-server/services/grant-scout/internal/infrastructure/logger"
	"jan-server/services/grant-scout/internal/interfaces/httpserver"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/routes/mcp"
)

type Application struct {
	config     *config.Config
	httpServer *httpserver.HTTPServer
	mcpRoute   *mcp.MCPRoute
}

func init() {
	// Initialize logger with default settings
	logger.Init("info", "json")
}

// @title Jan Server Grant Scout Service
// @version 1.0
// @description Grant search service: searches a language model, the web and configured funding sites for grants, keeps a file-per-record store and renders markdown summaries. Operations are exposed as HTTP endpoints and as MCP tools.
// @contact.name Jan Server Team
// @contact.url https://github.com/janhq/jan-server
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @BasePath /
func (app *Application) Start(ctx context.Context) error {
	if app.config.Transport == config.TransportStdio {
		return app.mcpRoute.ServeStdio(ctx)
	}
	return app.httpServer.Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// stdout carries protocol frames in stdio mode
	if cfg.Transport == config.TransportStdio {
		logger.UseStderr()
	}

	// Re-initialize logger with config settings
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("transport", cfg.Transport).
		Str("http_port", cfg.HTTPPort).
		Str("store_dir", cfg.StoreDir).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Grant Scout service")

	// Create application with dependency injection
	application, err := CreateApplication(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
	log.Info().Msg("Grant Scout service stopped")
}
