package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-slot-api/internal/dto"
	"github.com/noah-isme/maintenance-slot-api/internal/events"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

// TransitionService applies the schedule state machine. Moves are delegated to the allocator so both
// paths share the same per-day locks.
type TransitionService struct {
	schedules scheduleStore
	units     slotStore
	ledger    ledgerStore
	allocator *SlotAllocator
	tx        txProvider
	calendar  *clock.Calendar
	metrics   *MetricsService
	events    eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTransitionService constructs the service.
func NewTransitionService(
	schedules scheduleStore,
	units slotStore,
	ledger ledgerStore,
	allocator *SlotAllocator,
	tx txProvider,
	calendar *clock.Calendar,
	metrics *MetricsService,
	publisher eventPublisher,
	validate *validator.Validate,
	logger *zap.Logger,
) *TransitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if calendar == nil {
		calendar, _ = clock.NewCalendar("")
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &TransitionService{
		schedules: schedules,
		units:     units,
		ledger:    ledger,
		allocator: allocator,
		tx:        tx,
		calendar:  calendar,
		metrics:   metrics,
		events:    publisher,
		validator: validate,
		logger:    logger,
	}
}

// Transition applies an explicit action to a task and returns the updated task.
func (s *TransitionService) Transition(ctx context.Context, scheduleID string, req dto.TransitionRequest) (*models.MaintenanceSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	action := models.TransitionAction(req.Action)
	today := s.calendar.Today()

	var completion *clock.Date
	if req.CompletionDate != "" {
		parsed, err := clock.ParseDate(req.CompletionDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion date")
		}
		if parsed.After(today) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "completion date cannot be in the future")
		}
		completion = &parsed
	}

	before, err := s.schedules.FindByID(ctx, nil, scheduleID)
	if err != nil {
		return nil, storeError(err, "schedule not found")
	}
	if err := checkAction(before.Status, action); err != nil {
		s.metrics.RecordTransition(string(action), appErrors.FromError(err).Code)
		return nil, err
	}

	var days []dayRef
	if current, ok := before.Slot(); ok {
		days = append(days, dayRef{zoneID: current.ZoneID, date: current.Date})
	}
	unlock := s.allocator.lockDays(days)
	defer unlock()

	var updated *models.MaintenanceSchedule
	err = withTx(ctx, s.tx, func(exec sqlx.ExtContext) error {
		if err := s.allocator.lockStoreDays(ctx, exec, days); err != nil {
			return storeError(err, "")
		}
		item, err := s.schedules.FindByIDForUpdate(ctx, exec, scheduleID)
		if err != nil {
			return storeError(err, "schedule not found")
		}
		if item.Version != before.Version {
			return appErrors.Clone(appErrors.ErrConcurrentUpdate, "schedule changed while the transition was prepared")
		}
		if err := checkAction(item.Status, action); err != nil {
			return err
		}

		switch action {
		case models.ActionValidateCompleted:
			err = s.complete(ctx, exec, item, completion, today)
		case models.ActionValidateReschedule:
			err = s.reschedule(ctx, exec, item, today)
		case models.ActionCancel:
			err = s.cancel(ctx, exec, item)
		}
		if err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		s.metrics.RecordTransition(string(action), appErrors.FromError(err).Code)
		s.logger.Info("transition rejected",
			zap.String("schedule_id", scheduleID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordTransition(string(action), "ok")
	s.logger.Info("schedule transitioned",
		zap.String("schedule_id", updated.ID),
		zap.String("action", string(action)),
		zap.String("from", string(before.Status)),
		zap.String("to", string(updated.Status)),
		zap.Int("skip_count", updated.SkipCount),
	)
	s.publish(ctx, events.ScheduleTransitioned, events.Payload{
		"scheduleId": updated.ID,
		"action":     action,
		"from":       before.Status,
		"to":         updated.Status,
		"skipCount":  updated.SkipCount,
		"isLate":     updated.IsLate,
	})
	return updated, nil
}

func (s *TransitionService) complete(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule, completion *clock.Date, today clock.Date) error {
	done := today
	if completion != nil {
		done = *completion
	}
	if _, err := s.units.Release(ctx, exec, item.ID); err != nil {
		return storeError(err, "")
	}
	item.Status = models.ScheduleStatusCompleted
	item.CompletionDate = done.Ptr()
	item.IsLate = item.LateAgainst(done)
	item.ClearSlot()
	return s.save(ctx, exec, item)
}

func (s *TransitionService) reschedule(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule, today clock.Date) error {
	if item.CurrentPlannedDate == nil {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "pending schedule has no planned date")
	}
	original := *item.CurrentPlannedDate

	record := &models.RescheduleRecord{ScheduleID: item.ID, OriginalDate: original, CreatedAt: s.calendar.Now().UTC()}
	if err := s.ledger.Open(ctx, exec, record); err != nil {
		return storeError(err, "")
	}
	if _, err := s.units.Release(ctx, exec, item.ID); err != nil {
		return storeError(err, "")
	}

	item.Status = skippedOrMissed(today, item.DueDate)
	item.LastSkippedDate = original.Ptr()
	item.SkipCount++
	item.ClearSlot()
	return s.save(ctx, exec, item)
}

func (s *TransitionService) cancel(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule) error {
	if _, err := s.units.Release(ctx, exec, item.ID); err != nil {
		return storeError(err, "")
	}
	item.Status = models.ScheduleStatusCancelled
	item.ClearSlot()
	return s.save(ctx, exec, item)
}

func (s *TransitionService) save(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule) error {
	item.UpdatedAt = s.calendar.Now().UTC()
	if err := s.schedules.Update(ctx, exec, item); err != nil {
		return storeError(err, "")
	}
	return nil
}

// Move replans a task through the allocation engine.
func (s *TransitionService) Move(ctx context.Context, scheduleID string, req dto.MoveScheduleRequest) (*MoveResult, error) {
	return s.allocator.Move(ctx, scheduleID, req)
}

// DailyTick moves every Planned task dated before today to Pending. Running it twice for the same day
// promotes nothing the second time.
func (s *TransitionService) DailyTick(ctx context.Context, today clock.Date) (*dto.DailyTickResponse, error) {
	if today.IsZero() {
		today = s.calendar.Today()
	}

	var ids []string
	err := withTx(ctx, s.tx, func(exec sqlx.ExtContext) error {
		promoted, err := s.schedules.MarkPendingBefore(ctx, exec, today)
		if err != nil {
			return storeError(err, "")
		}
		ids = promoted
		return nil
	})
	if err != nil {
		s.logger.Error("daily tick failed", zap.String("today", today.String()), zap.Error(err))
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}

	s.metrics.RecordDailyTick(len(ids), s.calendar.Now())
	s.logger.Info("daily tick applied", zap.String("today", today.String()), zap.Int("promoted", len(ids)))
	if len(ids) > 0 {
		s.publish(ctx, events.DailyTickApplied, events.Payload{"today": today.String(), "scheduleIds": ids})
	}
	return &dto.DailyTickResponse{Today: today.String(), Promoted: len(ids), ScheduleIDs: ids}, nil
}

// Get returns one task.
func (s *TransitionService) Get(ctx context.Context, scheduleID string) (*models.MaintenanceSchedule, error) {
	item, err := s.schedules.FindByID(ctx, nil, scheduleID)
	if err != nil {
		return nil, storeError(err, "schedule not found")
	}
	return item, nil
}

// List returns tasks for collaborators with pagination metadata.
func (s *TransitionService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.MaintenanceSchedule, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 500 {
		filter.PageSize = 50
	}
	for _, status := range filter.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
		}
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	items, total, err := s.schedules.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// History returns a task's reschedule ledger, oldest first.
func (s *TransitionService) History(ctx context.Context, scheduleID string) ([]models.RescheduleRecord, error) {
	if _, err := s.Get(ctx, scheduleID); err != nil {
		return nil, err
	}
	records, err := s.ledger.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, storeError(err, "")
	}
	if records == nil {
		records = []models.RescheduleRecord{}
	}
	return records, nil
}

func (s *TransitionService) publish(ctx context.Context, eventType events.Type, payload events.Payload) {
	if err := s.events.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("publish event failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

// checkAction enforces the allowed source states of each explicit action.
func checkAction(status models.ScheduleStatus, action models.TransitionAction) error {
	switch action {
	case models.ActionValidateCompleted, models.ActionValidateReschedule:
		if status == models.ScheduleStatusPending {
			return nil
		}
	case models.ActionCancel:
		if !status.IsTerminal() {
			return nil
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", action))
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s is not allowed from %s", action, status))
}

// skippedOrMissed picks the post-reschedule status: Skipped while the due date has not passed.
func skippedOrMissed(today, due clock.Date) models.ScheduleStatus {
	if today.After(due) {
		return models.ScheduleStatusMissed
	}
	return models.ScheduleStatusSkipped
}
