package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-intake-api/internal/models"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

func TestAdminTokenIssueAndValidate(t *testing.T) {
	svc := NewAdminTokenService(AdminTokenConfig{Secret: "s3cret", Issuer: "intake"})

	token, exp, err := svc.Issue("ops@example.org", nil, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.org", claims.Operator)
	assert.True(t, claims.HasScope(models.AdminScopeRuns))
	assert.Equal(t, "intake", claims.Issuer)
}

func TestAdminTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	issuer := NewAdminTokenService(AdminTokenConfig{Secret: "one", Issuer: "intake"})
	token, _, err := issuer.Issue("ops", nil, 0)
	require.NoError(t, err)

	_, err = NewAdminTokenService(AdminTokenConfig{Secret: "two", Issuer: "intake"}).Validate(token)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = NewAdminTokenService(AdminTokenConfig{Secret: "one", Issuer: "other"}).Validate(token)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAdminTokenRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	svc := NewAdminTokenService(AdminTokenConfig{Secret: "s3cret"})
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Issue("ops", nil, time.Hour)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.Validate(token)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &models.AdminClaims{Operator: "ops"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Validate(unsigned)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAdminTokenIssueRequiresOperatorAndSecret(t *testing.T) {
	_, _, err := NewAdminTokenService(AdminTokenConfig{Secret: "x"}).Issue("  ", nil, 0)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, _, err = NewAdminTokenService(AdminTokenConfig{}).Issue("ops", nil, 0)
	require.ErrorIs(t, err, appErrors.ErrInternal)
}
