package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

// TokenConfig holds the shared secret and expected issuer of access tokens.
type TokenConfig struct {
	Secret string
	Issuer string
}

// AuthService verifies access tokens issued by the identity layer. Token issuance lives elsewhere.
type AuthService struct {
	config TokenConfig
}

// NewAuthService constructs the verifier.
func NewAuthService(cfg TokenConfig) *AuthService {
	return &AuthService{config: cfg}
}

// VerifyToken parses an HS256 access token and checks its issuer, expiry and role.
func (s *AuthService) VerifyToken(tokenString string) (*models.ActorClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing token")
	}
	var opts []jwt.ParserOption
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.ActorClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if claims.Actor() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token names no actor")
	}
	return claims, nil
}
