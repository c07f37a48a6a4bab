package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-slot-api/internal/handler"
	"github.com/noah-isme/maintenance-slot-api/internal/middleware"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	"github.com/noah-isme/maintenance-slot-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/maintenance-slot-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/maintenance-slot-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Schedules       *handler.ScheduleHandler
	Zones           *handler.ZoneHandler
	MasterData      *handler.MasterDataHandler
	Admin           *handler.AdminHandler
	Ledger          *handler.LedgerHandler
	CompletionFacts *handler.CompletionFactHandler
	Metrics         *handler.MetricsHandler
}

// Options configures the engine.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Auth           middleware.TokenVerifier
}

// New builds the gin engine with the public probes and the authenticated API group.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics, "/metrics", "/health"))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	planners := middleware.Require(models.AccessPlan)
	readers := middleware.Require(models.AccessRead)
	supervisors := middleware.Require(models.AccessValidate)
	admins := middleware.Require(models.AccessAdmin)

	api := r.Group(opts.APIPrefix)
	api.Use(middleware.Authenticate(opts.Auth))

	schedules := api.Group("/schedules")
	schedules.GET("", readers, h.Schedules.List)
	schedules.POST("", planners, middleware.Audit(opts.Logger, "schedule.create"), h.Schedules.Create)
	schedules.POST("/bulk-assign", planners, middleware.Audit(opts.Logger, "schedule.bulk_assign"), h.Schedules.BulkAssign)
	schedules.GET("/:id", readers, h.Schedules.Get)
	schedules.GET("/:id/reschedules", readers, h.Schedules.Reschedules)
	schedules.POST("/:id/transitions", supervisors, middleware.Audit(opts.Logger, "schedule.transition"), h.Schedules.Transition)
	schedules.POST("/:id/move", planners, middleware.Audit(opts.Logger, "schedule.move"), h.Schedules.Move)

	api.GET("/zones", readers, h.MasterData.Zones)
	api.GET("/zones/:zoneId/free-slots", readers, h.Zones.FreeSlots)
	api.GET("/equipment", readers, h.MasterData.Equipment)

	api.GET("/reschedules", readers, h.Ledger.List)
	api.GET("/reschedules/export", readers, h.Ledger.Export)
	api.GET("/completion-facts", readers, h.CompletionFacts.List)

	api.POST("/admin/daily-tick", admins, middleware.Audit(opts.Logger, "admin.daily_tick"), h.Admin.DailyTick)

	return r
}
