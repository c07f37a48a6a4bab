package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
	"github.com/noah-isme/maintenance-slot-api/pkg/response"
)

// ContextActorKey holds the verified *models.ActorClaims on the gin context.
const ContextActorKey = "actor"

// TokenVerifier checks a bearer token and returns the operator behind it.
type TokenVerifier interface {
	VerifyToken(token string) (*models.ActorClaims, error)
}

// Authenticate rejects requests without a verifiable bearer token and stores the actor for the
// handlers downstream.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		actor, err := verifier.VerifyToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// ActorFromContext returns the actor stored by Authenticate.
func ActorFromContext(c *gin.Context) (*models.ActorClaims, bool) {
	value, ok := c.Get(ContextActorKey)
	if !ok {
		return nil, false
	}
	actor, ok := value.(*models.ActorClaims)
	return actor, ok && actor != nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "expected a bearer token")
	}
	return token, nil
}
