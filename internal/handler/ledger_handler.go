package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	"github.com/noah-isme/maintenance-slot-api/pkg/export"
	"github.com/noah-isme/maintenance-slot-api/pkg/response"
)

type ledgerReader interface {
	List(ctx context.Context, filter models.RescheduleFilter) ([]models.RescheduleLedgerEntry, *models.Pagination, error)
	Export(ctx context.Context, filter models.RescheduleFilter, format export.Format) (*service.LedgerExport, error)
}

// LedgerHandler exposes the reschedule ledger to reporting.
type LedgerHandler struct {
	ledger ledgerReader
}

// NewLedgerHandler constructs the handler.
func NewLedgerHandler(svc *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: svc}
}

// List godoc
// @Summary List reschedule ledger entries
// @Tags Reporting
// @Produce json
// @Param zoneId query string false "Zone"
// @Param scheduleId query string false "Schedule"
// @Param from query string false "Original date lower bound"
// @Param to query string false "Original date upper bound"
// @Param open query bool false "Only open records"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Body
// @Router /reschedules [get]
func (h *LedgerHandler) List(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.Page = parseQueryInt(c, "page", 1)
	filter.PageSize = parseQueryInt(c, "limit", 50)

	entries, pagination, err := h.ledger.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, entries, pagination)
}

// Export godoc
// @Summary Download the reschedule ledger
// @Tags Reporting
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param zoneId query string false "Zone"
// @Param from query string false "Original date lower bound"
// @Param to query string false "Original date upper bound"
// @Success 200 {file} file
// @Router /reschedules/export [get]
func (h *LedgerHandler) Export(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	doc, err := h.ledger.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Content)
}

func parseLedgerFilter(c *gin.Context) (models.RescheduleFilter, error) {
	filter := models.RescheduleFilter{
		ZoneID:     c.Query("zoneId"),
		ScheduleID: c.Query("scheduleId"),
		OpenOnly:   parseQueryBool(c, "open"),
	}
	var err error
	if filter.From, err = parseDateQuery(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseDateQuery(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}
