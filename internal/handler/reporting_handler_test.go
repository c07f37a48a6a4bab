package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-slot-api/internal/dto"
	internalmiddleware "github.com/noah-isme/maintenance-slot-api/internal/middleware"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
	"github.com/noah-isme/maintenance-slot-api/pkg/export"
)

type freeSlotMock struct {
	from, to clock.Date
}

func (m *freeSlotMock) FreeSlots(ctx context.Context, zoneID string, from, to clock.Date) ([]models.FreeSlot, error) {
	m.from, m.to = from, to
	holder := "s1"
	return []models.FreeSlot{
		{Date: from, TimeSlot: models.SlotEarliest},
		{Date: from, TimeSlot: models.Slot0100, Occupied: true, ScheduleID: &holder},
		{Date: from, TimeSlot: models.Slot0330},
	}, nil
}

func TestZoneFreeSlots(t *testing.T) {
	finder := &freeSlotMock{}
	h := &ZoneHandler{slots: finder}

	w := serve(t, http.MethodGet, "/zones/:zoneId/free-slots", "/zones/zone-1/free-slots?from=2025-01-06&to=2025-01-06", nil, h.FreeSlots)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-01-06", finder.from.String())
	assert.Contains(t, w.Body.String(), `"free":2`)

	w = serve(t, http.MethodGet, "/zones/:zoneId/free-slots", "/zones/zone-1/free-slots?from=2025-01-06", nil, h.FreeSlots)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type tickMock struct {
	today clock.Date
	err   error
}

func (m *tickMock) DailyTick(ctx context.Context, today clock.Date) (*dto.DailyTickResponse, error) {
	m.today = today
	if m.err != nil {
		return nil, m.err
	}
	return &dto.DailyTickResponse{Today: today.String(), Promoted: 2, ScheduleIDs: []string{"a", "b"}}, nil
}

func TestAdminDailyTick(t *testing.T) {
	ticker := &tickMock{}
	h := &AdminHandler{ticker: ticker}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextActorKey, &models.ActorClaims{ActorID: "ops-1", Role: models.RoleAdmin})
		c.Next()
	})
	router.POST("/admin/daily-tick", h.DailyTick)

	w := serveRouter(router, http.MethodPost, "/admin/daily-tick", []byte(`{"today":"2025-01-10"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-01-10", ticker.today.String())
	assert.Contains(t, w.Body.String(), `"triggeredBy":"ops-1"`)

	w = serveRouter(router, http.MethodPost, "/admin/daily-tick", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ticker.today.IsZero())

	ticker.err = appErrors.ErrStoreUnavailable
	w = serveRouter(router, http.MethodPost, "/admin/daily-tick", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type ledgerMock struct {
	filter models.RescheduleFilter
	format export.Format
}

func (m *ledgerMock) List(ctx context.Context, filter models.RescheduleFilter) ([]models.RescheduleLedgerEntry, *models.Pagination, error) {
	m.filter = filter
	return []models.RescheduleLedgerEntry{}, &models.Pagination{Page: 1, PageSize: 50}, nil
}

func (m *ledgerMock) Export(ctx context.Context, filter models.RescheduleFilter, format export.Format) (*service.LedgerExport, error) {
	m.filter = filter
	m.format = format
	return &service.LedgerExport{Filename: "reschedule-ledger.csv", ContentType: "text/csv", Content: []byte("Record\n")}, nil
}

func TestLedgerListAndExport(t *testing.T) {
	ledger := &ledgerMock{}
	h := &LedgerHandler{ledger: ledger}

	w := serve(t, http.MethodGet, "/reschedules", "/reschedules?zoneId=zone-1&open=true&from=2025-01-01", nil, h.List)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zone-1", ledger.filter.ZoneID)
	assert.True(t, ledger.filter.OpenOnly)
	require.NotNil(t, ledger.filter.From)

	w = serve(t, http.MethodGet, "/reschedules/export", "/reschedules/export?format=CSV", nil, h.Export)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatCSV, ledger.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reschedule-ledger.csv")
}

type factsMock struct {
	number  string
	refresh bool
	err     error
}

func (m *factsMock) ForEquipment(ctx context.Context, number string, refresh bool) (*models.CompletionFactSnapshot, error) {
	m.number, m.refresh = number, refresh
	if m.err != nil {
		return nil, m.err
	}
	return &models.CompletionFactSnapshot{
		Facts:     []models.CompletionFact{{WorkOrderRef: "OR-1", EquipmentNumber: number}},
		FetchedAt: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}, nil
}

func TestCompletionFacts(t *testing.T) {
	facts := &factsMock{}
	h := &CompletionFactHandler{facts: facts}

	w := serve(t, http.MethodGet, "/completion-facts", "/completion-facts?equipmentNumber=HOK-E25&refresh=true", nil, h.List)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HOK-E25", facts.number)
	assert.True(t, facts.refresh)
	assert.Contains(t, w.Body.String(), `"count":1`)

	facts.err = appErrors.ErrUpstreamUnavailable
	w = serve(t, http.MethodGet, "/completion-facts", "/completion-facts", nil, h.List)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

type pingerMock struct{ err error }

func (p pingerMock) PingContext(ctx context.Context) error { return p.err }

func TestReadyReflectsStore(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), pingerMock{})
	w := serve(t, http.MethodGet, "/ready", "/ready", nil, h.Ready)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(service.NewMetricsService(), pingerMock{err: errors.New("connection refused")})
	w = serve(t, http.MethodGet, "/ready", "/ready", nil, h.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(t, http.MethodGet, "/metrics", "/metrics", nil, h.Prometheus)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "daily_tick_leader")
}
