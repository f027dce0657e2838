package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "commerce-metrics"}, nil)

	issued, err := svc.IssueToken("ops", models.RoleOperator)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), issued.ExpiresIn)

	claims, err := svc.ValidateToken(issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, models.RoleOperator, claims.Role)
}

func TestAuthServiceRejectsExpiredTokens(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Expiry: time.Minute}, nil)
	issued, err := svc.IssueToken("ops", models.RoleViewer)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(issued.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "commerce-metrics"}, nil)

	other := NewAuthService(AuthConfig{Secret: "other", Issuer: "commerce-metrics"}, nil)
	issued, err := other.IssueToken("ops", models.RoleOperator)
	require.NoError(t, err)
	_, err = svc.ValidateToken(issued.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	wrongIssuer := NewAuthService(AuthConfig{Secret: "secret", Issuer: "someone-else"}, nil)
	issued, err = wrongIssuer.IssueToken("ops", models.RoleOperator)
	require.NoError(t, err)
	_, err = svc.ValidateToken(issued.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{Role: models.RoleOperator})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceIssueValidation(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"}, nil)

	_, err := svc.IssueToken("", models.RoleViewer)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.IssueToken("ops", "admin")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = NewAuthService(AuthConfig{}, nil).IssueToken("ops", models.RoleViewer)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
