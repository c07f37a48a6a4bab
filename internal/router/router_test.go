package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-slot-api/internal/handler"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

type tokenTable map[string]*models.ActorClaims

func (t tokenTable) VerifyToken(token string) (*models.ActorClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type zoneList []models.Zone

func (z zoneList) FindByCode(ctx context.Context, code string) (*models.Zone, error) {
	for i := range z {
		if z[i].Code == code {
			return &z[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (z zoneList) List(ctx context.Context) ([]models.Zone, error) { return z, nil }

type equipmentList []models.Equipment

func (e equipmentList) List(ctx context.Context, filter models.EquipmentFilter) ([]models.Equipment, error) {
	return e, nil
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	masterData := service.NewMasterDataService(zoneList{{ID: "zone-1", Code: "MTR-01", Name: "Depot North"}}, equipmentList{})
	return New(Options{
		Metrics: metrics,
		Auth: tokenTable{
			"viewer-token": {ActorID: "u-1", Role: models.RoleViewer},
		},
	}, Handlers{
		Schedules:       handler.NewScheduleHandler(nil, nil),
		Zones:           handler.NewZoneHandler(nil),
		MasterData:      handler.NewMasterDataHandler(masterData),
		Admin:           handler.NewAdminHandler(nil),
		Ledger:          handler.NewLedgerHandler(nil),
		CompletionFacts: handler.NewCompletionFactHandler(nil),
		Metrics:         handler.NewMetricsHandler(metrics, nil),
	})
}

func do(engine *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestProbesArePublic(t *testing.T) {
	engine := newTestEngine()
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/metrics", "").Code)
}

func TestAPIRequiresToken(t *testing.T) {
	engine := newTestEngine()
	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/v1/zones", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/v1/zones", "forged").Code)
}

func TestReaderCanListZones(t *testing.T) {
	engine := newTestEngine()
	w := do(engine, http.MethodGet, "/api/v1/zones?code=mtr-01", "viewer-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Depot North")
}

func TestViewerCannotMutate(t *testing.T) {
	engine := newTestEngine()
	assert.Equal(t, http.StatusForbidden, do(engine, http.MethodPost, "/api/v1/schedules/s-1/move", "viewer-token").Code)
	assert.Equal(t, http.StatusForbidden, do(engine, http.MethodPost, "/api/v1/schedules/s-1/transitions", "viewer-token").Code)
	assert.Equal(t, http.StatusForbidden, do(engine, http.MethodPost, "/api/v1/admin/daily-tick", "viewer-token").Code)
}
