package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
	"github.com/noah-isme/maintenance-slot-api/pkg/response"
)

// Require admits actors whose role clears level. It must run after Authenticate.
func Require(level models.AccessLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !actor.Role.Grants(level) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden,
				fmt.Sprintf("%s access required, role %s has %s", level, actor.Role, actor.Role.Level())))
			c.Abort()
			return
		}
		c.Next()
	}
}
