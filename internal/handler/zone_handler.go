package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
	"github.com/noah-isme/maintenance-slot-api/pkg/response"
)

type freeSlotFinder interface {
	FreeSlots(ctx context.Context, zoneID string, from, to clock.Date) ([]models.FreeSlot, error)
}

// ZoneHandler exposes per-zone capacity views.
type ZoneHandler struct {
	slots freeSlotFinder
}

// NewZoneHandler constructs the handler.
func NewZoneHandler(allocator *service.SlotAllocator) *ZoneHandler {
	return &ZoneHandler{slots: allocator}
}

// FreeSlots godoc
// @Summary List every slot unit of a zone between two dates with its occupancy
// @Tags Zones
// @Produce json
// @Param zoneId path string true "Zone ID"
// @Param from query string true "First date (YYYY-MM-DD)"
// @Param to query string true "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Body
// @Router /zones/{zoneId}/free-slots [get]
func (h *ZoneHandler) FreeSlots(c *gin.Context) {
	from, err := parseDateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	if from == nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to are required"))
		return
	}

	slots, err := h.slots.FreeSlots(c.Request.Context(), c.Param("zoneId"), *from, *to)
	if err != nil {
		response.Error(c, err)
		return
	}
	free := 0
	for _, slot := range slots {
		if !slot.Occupied {
			free++
		}
	}
	response.OK(c, slots, response.Meta{"free": free, "total": len(slots)})
}
