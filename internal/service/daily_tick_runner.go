package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-slot-api/internal/dto"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
	"github.com/noah-isme/maintenance-slot-api/pkg/jobs"
)

// JobTypeDailyTick is the queue job type that promotes overdue Planned tasks.
const JobTypeDailyTick = "daily_tick"

type dailyTicker interface {
	DailyTick(ctx context.Context, today clock.Date) (*dto.DailyTickResponse, error)
}

type leaderGate interface {
	IsLeader() bool
}

// DailyTickRunner fires the daily tick once per civil day at the configured hour through the job queue.
type DailyTickRunner struct {
	ticker   dailyTicker
	queue    *jobs.Queue
	calendar *clock.Calendar
	gate     leaderGate
	hour     int
	logger   *zap.Logger
}

// NewDailyTickRunner registers the tick handler on queue. The queue must be started by the caller.
func NewDailyTickRunner(ticker dailyTicker, queue *jobs.Queue, calendar *clock.Calendar, gate leaderGate, hour int, logger *zap.Logger) *DailyTickRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hour < 0 || hour > 23 {
		hour = 0
	}
	r := &DailyTickRunner{
		ticker:   ticker,
		queue:    queue,
		calendar: calendar,
		gate:     gate,
		hour:     hour,
		logger:   logger.With(zap.String("component", "daily_tick")),
	}
	queue.Register(JobTypeDailyTick, r.handle)
	return r
}

// Run enqueues a catch-up tick immediately, then one tick at every scheduled hour until ctx ends.
func (r *DailyTickRunner) Run(ctx context.Context) error {
	r.CatchUp()
	for {
		next := r.calendar.NextRunAt(r.hour)
		wait := next.Sub(r.calendar.Now())
		if wait < 0 {
			wait = 0
		}
		r.logger.Debug("next daily tick scheduled", zap.Time("at", next))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.enqueue(r.calendar.DateOf(next))
		}
	}
}

// CatchUp enqueues a tick for the current date. The tick is idempotent, so a replica that just
// became leader calls this to cover a run its predecessor may have missed.
func (r *DailyTickRunner) CatchUp() {
	r.enqueue(r.calendar.Today())
}

func (r *DailyTickRunner) enqueue(today clock.Date) {
	job := jobs.Job{ID: fmt.Sprintf("%s-%s", JobTypeDailyTick, today), Type: JobTypeDailyTick, Payload: today}
	if err := r.queue.Enqueue(job); err != nil {
		r.logger.Error("failed to enqueue daily tick", zap.String("today", today.String()), zap.Error(err))
	}
}

func (r *DailyTickRunner) handle(ctx context.Context, job jobs.Job) error {
	if r.gate != nil && !r.gate.IsLeader() {
		r.logger.Debug("skipping daily tick on follower", zap.String("job_id", job.ID))
		return nil
	}
	today, ok := job.Payload.(clock.Date)
	if !ok {
		return jobs.Permanent(fmt.Errorf("daily tick payload %T is not a date", job.Payload))
	}
	resp, err := r.ticker.DailyTick(ctx, today)
	if err != nil {
		if retryableTickError(err) {
			return err
		}
		return jobs.Permanent(err)
	}
	r.logger.Info("daily tick completed", zap.String("today", resp.Today), zap.Int("promoted", resp.Promoted), zap.Int("attempt", job.Attempt))
	return nil
}

func retryableTickError(err error) bool {
	return appErrors.HasCode(err, appErrors.ErrStoreUnavailable.Code) || appErrors.HasCode(err, appErrors.ErrConcurrentUpdate.Code)
}
