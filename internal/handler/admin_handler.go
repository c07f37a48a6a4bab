package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/dto"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
	"github.com/noah-isme/maintenance-slot-api/pkg/response"
)

type dailyTickTrigger interface {
	DailyTick(ctx context.Context, today clock.Date) (*dto.DailyTickResponse, error)
}

// AdminHandler exposes operator-only maintenance endpoints.
type AdminHandler struct {
	ticker dailyTickTrigger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(transitions *service.TransitionService) *AdminHandler {
	return &AdminHandler{ticker: transitions}
}

// DailyTick godoc
// @Summary Run the daily Planned to Pending promotion now
// @Description Idempotent; an empty body runs for the current scheduling date.
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.DailyTickRequest false "Optional date"
// @Success 200 {object} response.Body
// @Router /admin/daily-tick [post]
func (h *AdminHandler) DailyTick(c *gin.Context) {
	var req dto.DailyTickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid daily tick payload"))
			return
		}
	}
	var today clock.Date
	if req.Today != "" {
		parsed, err := clock.ParseDate(req.Today)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "today must be YYYY-MM-DD"))
			return
		}
		today = parsed
	}

	result, err := h.ticker.DailyTick(c.Request.Context(), today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result, response.Meta{"triggeredBy": actorFromContext(c)})
}
