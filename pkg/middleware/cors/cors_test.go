package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.POST("/submissions", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestPreflightAllowedOrigin(t *testing.T) {
	r := newRouter([]string{"https://forms.example.org/"})
	req := httptest.NewRequest(http.MethodOptions, "/submissions", nil)
	req.Header.Set("Origin", "https://FORMS.example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://FORMS.example.org", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightRejectedOrigin(t *testing.T) {
	r := newRouter([]string{"https://forms.example.org"})
	req := httptest.NewRequest(http.MethodOptions, "/submissions", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
