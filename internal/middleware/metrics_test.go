package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type recordingObserver struct {
	seen []string
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.seen = append(r.seen, method+" "+path+" "+http.StatusText(status))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(obs))
	router.GET("/files/:token", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/files/abc", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"GET /files/:token No Content", "GET unmatched Not Found"}, obs.seen)
}
