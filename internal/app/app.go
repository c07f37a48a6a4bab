package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-slot-api/internal/events"
	"github.com/noah-isme/maintenance-slot-api/internal/handler"
	"github.com/noah-isme/maintenance-slot-api/internal/leadership"
	"github.com/noah-isme/maintenance-slot-api/internal/repository"
	"github.com/noah-isme/maintenance-slot-api/internal/router"
	"github.com/noah-isme/maintenance-slot-api/internal/service"
	"github.com/noah-isme/maintenance-slot-api/pkg/cache"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	"github.com/noah-isme/maintenance-slot-api/pkg/config"
	"github.com/noah-isme/maintenance-slot-api/pkg/database"
	"github.com/noah-isme/maintenance-slot-api/pkg/jobs"
)

// App holds the wired services of one process.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Calendar    *clock.Calendar
	Metrics     *service.MetricsService
	Transitions *service.TransitionService

	db        *sqlx.DB
	redis     *redis.Client
	publisher events.Publisher
	handlers  router.Handlers
	auth      *service.AuthService
}

// New connects the store, cache and event bus and builds every service.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	calendar, err := clock.NewCalendar(cfg.Scheduling.Timezone)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		if cfg.Leader.Enabled {
			_ = db.Close()
			return nil, fmt.Errorf("connect redis for leader election: %w", err)
		}
		logger.Warn("redis unavailable, completion fact cache is process local", zap.String("addr", cache.Addr(cfg.Redis)), zap.Error(err))
		redisClient = nil
	}

	publisher, err := events.New(events.Config{
		URL:           cfg.Events.NATSURL,
		SubjectPrefix: cfg.Events.SubjectPrefix,
		Name:          "maintenance-api",
	}, logger)
	if err != nil {
		logger.Warn("event bus unavailable, domain events disabled", zap.Error(err))
		publisher = events.NopPublisher{}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	schedules := repository.NewMaintenanceScheduleRepository(db)
	units := repository.NewSlotUnitRepository(db)
	ledger := repository.NewRescheduleRepository(db)
	equipment := repository.NewEquipmentRepository(db)
	zones := repository.NewZoneRepository(db)

	allocator := service.NewSlotAllocator(schedules, units, ledger, equipment, zones, db, calendar, metrics, publisher, validate, logger)
	transitions := service.NewTransitionService(schedules, units, ledger, allocator, db, calendar, metrics, publisher, validate, logger)
	assigner := service.NewBatchAssigner(schedules, equipment, allocator, db, calendar, metrics, publisher, validate, logger)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logger), metrics, cfg.CompletionFacts.CacheTTL, logger, redisClient != nil)
	var source service.CompletionFactSource
	if cfg.CompletionFacts.URL != "" {
		source = service.NewHTTPCompletionFactSource(cfg.CompletionFacts.URL, cfg.CompletionFacts.Timeout)
	}
	facts := service.NewCompletionFactService(source, cacheSvc, cfg.CompletionFacts.CacheTTL, logger)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Calendar:    calendar,
		Metrics:     metrics,
		Transitions: transitions,
		db:          db,
		redis:       redisClient,
		publisher:   publisher,
		auth:        service.NewAuthService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
		handlers: router.Handlers{
			Schedules:       handler.NewScheduleHandler(transitions, assigner),
			Zones:           handler.NewZoneHandler(allocator),
			MasterData:      handler.NewMasterDataHandler(service.NewMasterDataService(zones, equipment)),
			Admin:           handler.NewAdminHandler(transitions),
			Ledger:          handler.NewLedgerHandler(service.NewLedgerService(ledger, logger)),
			CompletionFacts: handler.NewCompletionFactHandler(facts),
			Metrics:         handler.NewMetricsHandler(metrics, db),
		},
	}, nil
}

// Router builds the HTTP engine.
func (a *App) Router() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	return router.New(router.Options{
		APIPrefix:      a.Config.APIPrefix,
		AllowedOrigins: a.Config.CORS.AllowedOrigins,
		EnableDocs:     a.Config.Env != config.EnvProduction,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		Auth:           a.auth,
	}, a.handlers)
}

// StartDailyTick launches the scheduled tick and, when configured, the leader election gating it.
// The returned function stops the job queue; the goroutines themselves exit with ctx.
func (a *App) StartDailyTick(ctx context.Context) func() {
	if !a.Config.DailyTick.Enabled {
		a.Logger.Info("daily tick runner disabled")
		return func() {}
	}

	queue := jobs.NewQueue("daily-tick", jobs.QueueConfig{
		Workers:    1,
		MaxRetries: a.Config.DailyTick.Retries,
		RetryDelay: 5 * time.Second,
		Logger:     a.Logger,
		OnExhausted: func(job jobs.Job, err error) {
			a.Logger.Error("daily tick abandoned", zap.String("job_id", job.ID), zap.Error(err))
		},
	})

	var runner *service.DailyTickRunner
	var election *leadership.Election
	var gate interface{ IsLeader() bool } = leadership.Always{}
	if a.Config.Leader.Enabled && a.redis != nil {
		election = leadership.NewElection(leadership.NewRedisLease(a.redis), leadership.Config{
			Key:           a.Config.Leader.Key,
			LeaseDuration: a.Config.Leader.LeaseDuration,
			RenewInterval: a.Config.Leader.RenewInterval,
			OnChange: func(isLeader bool) {
				a.Metrics.SetLeader(isLeader)
				if isLeader && runner != nil {
					runner.CatchUp()
				}
			},
		}, a.Logger)
		gate = election
	} else {
		a.Metrics.SetLeader(true)
	}

	runner = service.NewDailyTickRunner(a.Transitions, queue, a.Calendar, gate, a.Config.DailyTick.Hour, a.Logger)
	queue.Start(ctx)
	if election != nil {
		go election.Run(ctx)
	}
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("daily tick runner stopped", zap.Error(err))
		}
	}()
	return queue.Stop
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
