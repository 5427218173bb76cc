package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-intake-api/internal/models"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/response"
)

// ContextAdminKey is the gin context key storing operator claims.
const ContextAdminKey = "currentAdmin"

type adminTokenValidator interface {
	Validate(token string) (*models.AdminClaims, error)
}

// AdminJWT protects operator routes by requiring a bearer token carrying scope.
func AdminJWT(tokens adminTokenValidator, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if scope != "" && !claims.HasScope(scope) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token lacks required scope"))
			c.Abort()
			return
		}

		c.Set(ContextAdminKey, claims)
		c.Next()
	}
}

// AdminFromContext returns the operator claims set by AdminJWT.
func AdminFromContext(c *gin.Context) *models.AdminClaims {
	value, exists := c.Get(ContextAdminKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.AdminClaims)
	return claims
}
