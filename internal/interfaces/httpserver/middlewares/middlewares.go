package middlewares

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/infrastructure/metrics"
	"jan-server/services/grant-scout/utils/platformerrors"
)

const RequestIDHeader = "X-Request-Id"

// RequestID propagates or assigns a request id, exposing it on the response
// and on the request context for error reporting.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Set(string(platformerrors.RequestIDKey), requestID)
		ctx := context.WithValue(c.Request.Context(), platformerrors.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger logs HTTP requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.Writer.Header().Get(RequestIDHeader)

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Str("request_id", requestID).
			Msg("incoming request")

		c.Next()

		for _, e := range c.Errors {
			log.Error().
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Int("status", c.Writer.Status()).
				Str("request_id", requestID).
				Err(e.Err).
				Msg("request error")
		}

		logEvent := log.Info()
		if c.Writer.Status() >= 400 {
			logEvent = log.Warn()
		}
		logEvent.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("request_id", requestID).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}

// CORS adds CORS headers
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id, Mcp-Session-Id, mcp-protocol-version")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")
		c.Writer.Header().Set("Access-Control-Max-Age", "3600")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// MetricsRecorder records HTTP request metrics for Prometheus
func MetricsRecorder() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return
		}

		metrics.RecordRequest(c.Request.Method, strconv.Itoa(c.Writer.Status()))
	}
}
