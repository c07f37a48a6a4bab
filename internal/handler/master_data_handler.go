package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	"github.com/noah-isme/maintenance-slot-api/pkg/response"
)

type masterDataReader interface {
	Zones(ctx context.Context, code string) ([]models.Zone, error)
	Equipment(ctx context.Context, filter models.EquipmentFilter) ([]models.Equipment, error)
}

// MasterDataHandler exposes read-only zone and equipment registers.
type MasterDataHandler struct {
	service masterDataReader
}

// NewMasterDataHandler constructs the handler.
func NewMasterDataHandler(svc *service.MasterDataService) *MasterDataHandler {
	return &MasterDataHandler{service: svc}
}

// Zones godoc
// @Summary List zones
// @Tags Zones
// @Produce json
// @Param code query string false "Zone code, e.g. MTR-01"
// @Success 200 {object} response.Body
// @Router /zones [get]
func (h *MasterDataHandler) Zones(c *gin.Context) {
	zones, err := h.service.Zones(c.Request.Context(), c.Query("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, zones)
}

// Equipment godoc
// @Summary List equipment
// @Tags Zones
// @Produce json
// @Param zoneId query string false "Zone"
// @Param batch query string false "Batch"
// @Success 200 {object} response.Body
// @Router /equipment [get]
func (h *MasterDataHandler) Equipment(c *gin.Context) {
	items, err := h.service.Equipment(c.Request.Context(), models.EquipmentFilter{
		ZoneID: c.Query("zoneId"),
		Batch:  c.Query("batch"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}
