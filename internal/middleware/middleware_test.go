package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

type stubVerifier struct {
	actor *models.ActorClaims
	err   error
	token string
}

func (s *stubVerifier) VerifyToken(token string) (*models.ActorClaims, error) {
	s.token = token
	return s.actor, s.err
}

func protectedRouter(v TokenVerifier, level models.AccessLevel) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/schedules", Authenticate(v), Require(level), func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.String(http.StatusOK, actor.Actor())
	})
	return router
}

func TestAuthenticateRequiresBearerToken(t *testing.T) {
	router := protectedRouter(&stubVerifier{}, models.AccessRead)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, "UNAUTHORIZED", w.Header().Get("X-Error-Code"), header)
	}
}

func TestAuthenticatePropagatesVerifierError(t *testing.T) {
	router := protectedRouter(&stubVerifier{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}, models.AccessRead)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
	req.Header.Set("Authorization", "Bearer expired")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestRequireAdmitsByAccessLevel(t *testing.T) {
	cases := []struct {
		role   models.UserRole
		level  models.AccessLevel
		status int
	}{
		{models.RoleViewer, models.AccessRead, http.StatusOK},
		{models.RoleViewer, models.AccessValidate, http.StatusForbidden},
		{models.RoleSupervisor, models.AccessValidate, http.StatusOK},
		{models.RoleSupervisor, models.AccessPlan, http.StatusForbidden},
		{models.RolePlanner, models.AccessPlan, http.StatusOK},
		{models.RolePlanner, models.AccessAdmin, http.StatusForbidden},
		{models.RoleAdmin, models.AccessAdmin, http.StatusOK},
		{models.UserRole("JANITOR"), models.AccessRead, http.StatusForbidden},
	}
	for _, tc := range cases {
		verifier := &stubVerifier{actor: &models.ActorClaims{ActorID: "op-7", Role: tc.role}}
		router := protectedRouter(verifier, tc.level)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
		req.Header.Set("Authorization", "Bearer  shift-token")
		router.ServeHTTP(w, req)

		assert.Equal(t, tc.status, w.Code, "%s at %s", tc.role, tc.level)
		assert.Equal(t, "shift-token", verifier.token)
		if tc.status == http.StatusOK {
			assert.Equal(t, "op-7", w.Body.String())
		} else {
			assert.Contains(t, w.Body.String(), tc.level.String()+" access required")
		}
	}
}

func TestRequireWithoutActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", Require(models.AccessAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorFallsBackToSubject(t *testing.T) {
	verifier := &stubVerifier{actor: &models.ActorClaims{
		Role:             models.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "svc-dashboard"},
	}}
	router := protectedRouter(verifier, models.AccessRead)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
	req.Header.Set("Authorization", "bearer dashboard-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "svc-dashboard", w.Body.String())
}

func recordedPaths(t *testing.T, metrics *service.MetricsService) []string {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var paths []string
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					paths = append(paths, label.GetValue())
				}
			}
		}
	}
	return paths
}

func TestMetricsMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics, "/metrics"))
	router.GET("/schedules/:id", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, target := range []string{"/schedules/abc", "/metrics", "/wp-login.php"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.ElementsMatch(t, []string{"/schedules/:id", "unmatched"}, recordedPaths(t, metrics))
}

func TestAuditLogsSuccessfulMutationsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextActorKey, &models.ActorClaims{ActorID: "planner-1", Role: models.RolePlanner})
		c.Next()
	})
	r.POST("/schedules/:id/move", Audit(zap.New(core), "schedule.move"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusConflict)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/schedules/s-1/move", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/schedules/s-1/move?fail=1", nil))
	require.Equal(t, http.StatusConflict, w.Code)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "schedule.move", fields["action"])
	assert.Equal(t, "s-1", fields["schedule_id"])
	assert.Equal(t, "planner-1", fields["actor"])
	assert.Equal(t, "PLANNER", fields["role"])
}
