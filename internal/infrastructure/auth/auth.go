package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"jan-server/services/grant-scout/internal/infrastructure/config"
)

// TokenKey is the gin context key holding the validated *jwt.Token.
const TokenKey = "auth_token"

// Validator validates JWTs using JWKS.
type Validator struct {
	cfg  *config.Config
	log  zerolog.Logger
	jwks *keyfunc.JWKS
}

// NewValidator initializes JWKS fetching when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	if !cfg.AuthEnabled {
		return &Validator{cfg: cfg, log: log}, nil
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("jwks refresh error")
		},
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, options)
	if err != nil {
		return nil, err
	}

	return &Validator{
		cfg:  cfg,
		log:  log,
		jwks: jwks,
	}, nil
}

// Enabled reports whether requests are authenticated.
func (v *Validator) Enabled() bool {
	return v != nil && v.cfg.AuthEnabled
}

// Ready reports whether signing keys are available.
func (v *Validator) Ready() bool {
	return !v.Enabled() || v.jwks != nil
}

// Middleware enforces JWT auth when enabled.
func (v *Validator) Middleware() gin.HandlerFunc {
	if !v.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		token, err := jwt.Parse(tokenString, v.jwks.Keyfunc,
			jwt.WithAudience(v.cfg.Account),
			jwt.WithIssuer(v.cfg.AuthIssuer),
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		)
		if err != nil || !token.Valid {
			v.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected token")
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(TokenKey, token)
		c.Next()
	}
}

// UserID returns the subject of the validated token, if any.
func UserID(c *gin.Context) string {
	tokenVal, exists := c.Get(TokenKey)
	if !exists {
		return ""
	}
	token, ok := tokenVal.(*jwt.Token)
	if !ok || !token.Valid {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	for _, key := range []string{"sub", "user_id", "uid"} {
		if id, ok := claims[key].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
