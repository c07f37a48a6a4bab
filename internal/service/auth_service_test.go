package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims models.ActorClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func plannerClaims(expiry time.Time) models.ActorClaims {
	return models.ActorClaims{
		ActorID: "planner-1",
		Role:    models.RolePlanner,
		Name:    "Night Planner",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
}

func TestAuthServiceVerifyToken(t *testing.T) {
	svc := NewAuthService(TokenConfig{Secret: "secret", Issuer: "identity"})

	claims, err := svc.VerifyToken(signToken(t, jwt.SigningMethodHS256, "secret", plannerClaims(time.Now().Add(time.Hour))))
	require.NoError(t, err)
	assert.Equal(t, "planner-1", claims.Actor())
	assert.Equal(t, models.RolePlanner, claims.Role)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(TokenConfig{Secret: "secret", Issuer: "identity"})

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": signToken(t, jwt.SigningMethodHS256, "other", plannerClaims(time.Now().Add(time.Hour))),
		"expired":      signToken(t, jwt.SigningMethodHS256, "secret", plannerClaims(time.Now().Add(-time.Hour))),
		"wrong alg":    signToken(t, jwt.SigningMethodHS512, "secret", plannerClaims(time.Now().Add(time.Hour))),
	}
	for name, token := range cases {
		_, err := svc.VerifyToken(token)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code), name)
	}

	wrongIssuer := plannerClaims(time.Now().Add(time.Hour))
	wrongIssuer.Issuer = "elsewhere"
	_, err := svc.VerifyToken(signToken(t, jwt.SigningMethodHS256, "secret", wrongIssuer))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))

	unknownRole := plannerClaims(time.Now().Add(time.Hour))
	unknownRole.Role = "JANITOR"
	_, err = svc.VerifyToken(signToken(t, jwt.SigningMethodHS256, "secret", unknownRole))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	anonymous := plannerClaims(time.Now().Add(time.Hour))
	anonymous.ActorID = ""
	_, err = svc.VerifyToken(signToken(t, jwt.SigningMethodHS256, "secret", anonymous))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}
