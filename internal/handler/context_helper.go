package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/middleware"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

func actorFromContext(c *gin.Context) string {
	actor, _ := middleware.ActorFromContext(c)
	return actor.Actor()
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter.
func parseDateQuery(c *gin.Context, key string) (*clock.Date, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	date, err := clock.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be YYYY-MM-DD")
	}
	return &date, nil
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func parseQueryBool(c *gin.Context, key string) bool {
	val, err := strconv.ParseBool(c.Query(key))
	return err == nil && val
}
