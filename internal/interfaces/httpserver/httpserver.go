package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/infrastructure/auth"
	"jan-server/services/grant-scout/internal/infrastructure/config"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/middlewares"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/routes/mcp"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/routes/v1/grants"
)

const shutdownTimeout = 10 * time.Second

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ping() error
}

type HTTPServer struct {
	router        *gin.Engine
	config        *config.Config
	grantsRoute   *grants.GrantsRoute
	mcpRoute      *mcp.MCPRoute
	authValidator *auth.Validator
	store         ReadinessChecker
}

func NewHTTPServer(
	cfg *config.Config,
	grantsRoute *grants.GrantsRoute,
	mcpRoute *mcp.MCPRoute,
	authValidator *auth.Validator,
	store ReadinessChecker,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestID())
	router.Use(middlewares.RequestLogger())
	router.Use(middlewares.CORS())
	router.Use(middlewares.MetricsRecorder())

	s := &HTTPServer{
		router:        router,
		config:        cfg,
		grantsRoute:   grantsRoute,
		mcpRoute:      mcpRoute,
		authValidator: authValidator,
		store:         store,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "grant-scout"})
	})

	s.router.GET("/readyz", func(c *gin.Context) {
		if s.store != nil {
			if err := s.store.Ping(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "grant-scout", "error": err.Error()})
				return
			}
		}
		if s.authValidator != nil && !s.authValidator.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "initializing", "service": "grant-scout"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": "grant-scout"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	if s.authValidator != nil {
		v1.Use(s.authValidator.Middleware())
	}
	s.grantsRoute.RegisterRouter(v1)
	s.mcpRoute.RegisterRouter(v1)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.config.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", srv.Addr).Msg("Server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Msg("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}
