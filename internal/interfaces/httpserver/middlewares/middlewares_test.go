package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"jan-server/services/grant-scout/utils/platformerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(seen *string) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), CORS())
	router.GET("/x", func(c *gin.Context) {
		*seen, _ = c.Request.Context().Value(platformerrors.RequestIDKey).(string)
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequestIDAssigned(t *testing.T) {
	var seen string
	w := httptest.NewRecorder()
	newRouter(&seen).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, seen)
}

func TestRequestIDPropagated(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	newRouter(&seen).ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", seen)
}

func TestCORSPreflight(t *testing.T) {
	var seen string
	w := httptest.NewRecorder()
	newRouter(&seen).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
