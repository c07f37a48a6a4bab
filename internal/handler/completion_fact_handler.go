package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	"github.com/noah-isme/maintenance-slot-api/pkg/response"
)

type completionFactReader interface {
	ForEquipment(ctx context.Context, equipmentNumber string, refresh bool) (*models.CompletionFactSnapshot, error)
}

// CompletionFactHandler serves the cached upstream completion facts.
type CompletionFactHandler struct {
	facts completionFactReader
}

// NewCompletionFactHandler constructs the handler.
func NewCompletionFactHandler(svc *service.CompletionFactService) *CompletionFactHandler {
	return &CompletionFactHandler{facts: svc}
}

// List godoc
// @Summary Read completion facts reported by the field-visit system
// @Tags Reporting
// @Produce json
// @Param equipmentNumber query string false "Equipment number"
// @Param refresh query bool false "Bypass the cache"
// @Success 200 {object} response.Body
// @Failure 502 {object} response.Body
// @Router /completion-facts [get]
func (h *CompletionFactHandler) List(c *gin.Context) {
	snapshot, err := h.facts.ForEquipment(c.Request.Context(), c.Query("equipmentNumber"), parseQueryBool(c, "refresh"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot.Facts, response.Meta{
		"fetchedAt": snapshot.FetchedAt,
		"count":     len(snapshot.Facts),
	})
}
