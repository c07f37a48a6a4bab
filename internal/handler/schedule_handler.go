package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/dto"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
	"github.com/noah-isme/maintenance-slot-api/pkg/response"
)

type scheduleLifecycle interface {
	Transition(ctx context.Context, scheduleID string, req dto.TransitionRequest) (*models.MaintenanceSchedule, error)
	Move(ctx context.Context, scheduleID string, req dto.MoveScheduleRequest) (*service.MoveResult, error)
	Get(ctx context.Context, scheduleID string) (*models.MaintenanceSchedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.MaintenanceSchedule, *models.Pagination, error)
	History(ctx context.Context, scheduleID string) ([]models.RescheduleRecord, error)
}

type scheduleImporter interface {
	BulkAssign(ctx context.Context, req dto.BulkAssignRequest) (*dto.BulkAssignResponse, error)
	CreateManual(ctx context.Context, req dto.CreateScheduleRequest) (*models.MaintenanceSchedule, error)
}

// ScheduleHandler exposes the maintenance schedule lifecycle.
type ScheduleHandler struct {
	lifecycle scheduleLifecycle
	importer  scheduleImporter
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(transitions *service.TransitionService, assigner *service.BatchAssigner) *ScheduleHandler {
	return &ScheduleHandler{lifecycle: transitions, importer: assigner}
}

// Transition godoc
// @Summary Apply a lifecycle action to a schedule
// @Description Actions: VALIDATE_COMPLETED, VALIDATE_RESCHEDULE, CANCEL.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Body
// @Failure 409 {object} response.Body
// @Router /schedules/{id}/transitions [post]
func (h *ScheduleHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}
	req.Action = strings.ToUpper(strings.TrimSpace(req.Action))
	item, err := h.lifecycle.Transition(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Move godoc
// @Summary Move a schedule to a target date and slot
// @Description Occupied targets are resolved by swap (Planned occupant) or push-forward (Pending occupant).
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.MoveScheduleRequest true "Move payload"
// @Success 200 {object} response.Body
// @Failure 409 {object} response.Body
// @Failure 422 {object} response.Body
// @Router /schedules/{id}/move [post]
func (h *ScheduleHandler) Move(c *gin.Context) {
	var req dto.MoveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	result, err := h.lifecycle.Move(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.MoveScheduleResponse{
		Kind:      result.Kind,
		Schedule:  result.Schedule,
		Displaced: result.Displaced,
	})
}

// BulkAssign godoc
// @Summary Import work orders and allocate their first slots
// @Description Rows fail independently; the response reports each row.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.BulkAssignRequest true "Import rows"
// @Success 200 {object} response.Body
// @Router /schedules/bulk-assign [post]
func (h *ScheduleHandler) BulkAssign(c *gin.Context) {
	var req dto.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk assign payload"))
		return
	}
	result, err := h.importer.BulkAssign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result, response.Meta{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
}

// Create godoc
// @Summary Create one schedule manually
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Body
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	item, err := h.importer.CreateManual(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param zoneId query string false "Zone"
// @Param equipmentId query string false "Equipment"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "Planned date lower bound"
// @Param to query string false "Planned date upper bound"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Body
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := models.ScheduleFilter{
		ZoneID:      c.Query("zoneId"),
		EquipmentID: c.Query("equipmentId"),
		Page:        parseQueryInt(c, "page", 1),
		PageSize:    parseQueryInt(c, "limit", 50),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
				filter.Status = append(filter.Status, models.ScheduleStatus(s))
			}
		}
	}
	var err error
	if filter.From, err = parseDateQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = parseDateQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}

	items, pagination, err := h.lifecycle.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, pagination)
}

// Get godoc
// @Summary Get a schedule with its reschedule history
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Body
// @Failure 404 {object} response.Body
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	item, err := h.lifecycle.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.lifecycle.History(ctx, item.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ScheduleDetailResponse{Schedule: item, History: history})
}

// Reschedules godoc
// @Summary List the reschedule ledger of one schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Body
// @Router /schedules/{id}/reschedules [get]
func (h *ScheduleHandler) Reschedules(c *gin.Context) {
	records, err := h.lifecycle.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}
