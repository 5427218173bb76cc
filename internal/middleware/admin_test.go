package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/school-intake-api/internal/models"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

type stubValidator struct {
	claims *models.AdminClaims
}

func (s stubValidator) Validate(token string) (*models.AdminClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func adminRouter(v adminTokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/runs", AdminJWT(v, models.AdminScopeRuns), func(c *gin.Context) {
		c.String(http.StatusOK, AdminFromContext(c).Operator)
	})
	return router
}

func TestAdminJWT(t *testing.T) {
	router := adminRouter(stubValidator{claims: &models.AdminClaims{Operator: "ops", Scopes: []string{models.AdminScopeRuns}}})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "malformed", header: "Token good", status: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer good", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/runs", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAdminJWTRequiresScope(t *testing.T) {
	router := adminRouter(stubValidator{claims: &models.AdminClaims{Operator: "ops", Scopes: []string{"other"}}})
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
