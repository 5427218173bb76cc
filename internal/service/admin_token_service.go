package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/school-intake-api/internal/models"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

// AdminTokenConfig configures operator token signing.
type AdminTokenConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// AdminTokenService issues and validates HS256 operator tokens for the ledger endpoints.
type AdminTokenService struct {
	cfg AdminTokenConfig
	now func() time.Time
}

// NewAdminTokenService constructs the service.
func NewAdminTokenService(cfg AdminTokenConfig) *AdminTokenService {
	if cfg.Expiration <= 0 {
		cfg.Expiration = 12 * time.Hour
	}
	return &AdminTokenService{cfg: cfg, now: time.Now}
}

// Issue signs a token for operator with the given scopes.
func (s *AdminTokenService) Issue(operator string, scopes []string, ttl time.Duration) (string, time.Time, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "operator required")
	}
	if s.cfg.Secret == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "admin token secret not configured")
	}
	if ttl <= 0 {
		ttl = s.cfg.Expiration
	}
	if len(scopes) == 0 {
		scopes = []string{models.AdminScopeRuns}
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	claims := &models.AdminClaims{
		Operator: operator,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a token and checks signature, expiry and issuer.
func (s *AdminTokenService) Validate(tokenString string) (*models.AdminClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now)}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.AdminClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
