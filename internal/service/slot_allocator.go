package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-slot-api/internal/dto"
	"github.com/noah-isme/maintenance-slot-api/internal/events"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

// maxFreeSlotRangeDays bounds a single freeSlots listing.
const maxFreeSlotRangeDays = 366

// MoveResult reports how a move was resolved.
type MoveResult struct {
	Kind      string
	Schedule  *models.MaintenanceSchedule
	Displaced *models.MaintenanceSchedule
}

// SlotAllocator owns the (zone, date, slot) capacity model: occupancy lookups, first-fit search and
// the move/swap/push-forward resolution.
type SlotAllocator struct {
	schedules scheduleStore
	units     slotStore
	ledger    ledgerStore
	equipment equipmentReader
	zones     zoneReader
	tx        txProvider
	calendar  *clock.Calendar
	locks     *dayLocker
	metrics   *MetricsService
	events    eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSlotAllocator wires the allocation engine.
func NewSlotAllocator(
	schedules scheduleStore,
	units slotStore,
	ledger ledgerStore,
	equipment equipmentReader,
	zones zoneReader,
	tx txProvider,
	calendar *clock.Calendar,
	metrics *MetricsService,
	publisher eventPublisher,
	validate *validator.Validate,
	logger *zap.Logger,
) *SlotAllocator {
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
	return &SlotAllocator{
		schedules: schedules,
		units:     units,
		ledger:    ledger,
		equipment: equipment,
		zones:     zones,
		tx:        tx,
		calendar:  calendar,
		locks:     newDayLocker(),
		metrics:   metrics,
		events:    publisher,
		validator: validate,
		logger:    logger,
	}
}

// IsOccupied reports whether the unit is held and by which task.
func (a *SlotAllocator) IsOccupied(ctx context.Context, zoneID string, date clock.Date, slot models.TimeSlot) (bool, *models.SlotUnit, error) {
	if zoneID == "" || date.IsZero() || !slot.Valid() {
		return false, nil, appErrors.Clone(appErrors.ErrValidation, "zone, date and a known slot are required")
	}
	unit, err := a.units.Occupant(ctx, nil, models.SlotKey{ZoneID: zoneID, Date: date, Slot: slot})
	if err != nil {
		return false, nil, storeError(err, "")
	}
	return unit != nil, unit, nil
}

// FindFirstFree returns the first candidate slot of the date with no occupant.
func (a *SlotAllocator) FindFirstFree(ctx context.Context, zoneID string, date clock.Date, candidates []models.TimeSlot) (models.TimeSlot, bool, error) {
	for _, slot := range candidates {
		occupied, _, err := a.IsOccupied(ctx, zoneID, date, slot)
		if err != nil {
			return "", false, err
		}
		if !occupied {
			return slot, true, nil
		}
	}
	return "", false, nil
}

// claimFirst claims the first candidate slot that is still free when the insert runs.
func (a *SlotAllocator) claimFirst(ctx context.Context, exec sqlx.ExtContext, zoneID string, date clock.Date, candidates []models.TimeSlot, scheduleID string) (models.TimeSlot, bool, error) {
	for _, slot := range candidates {
		won, err := a.units.Claim(ctx, exec, models.SlotKey{ZoneID: zoneID, Date: date, Slot: slot}, scheduleID)
		if err != nil {
			return "", false, err
		}
		if won {
			return slot, true, nil
		}
	}
	return "", false, nil
}

// FreeSlots lists every unit of the zone between from and to inclusive, by date then canonical slot.
func (a *SlotAllocator) FreeSlots(ctx context.Context, zoneID string, from, to clock.Date) ([]models.FreeSlot, error) {
	if zoneID == "" || from.IsZero() || to.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "zone, from and to are required")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if from.DaysUntil(to)+1 > maxFreeSlotRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range must not exceed %d days", maxFreeSlotRangeDays))
	}
	if a.zones != nil {
		if _, err := a.zones.FindByID(ctx, zoneID); err != nil {
			return nil, storeError(err, "zone not found")
		}
	}

	units, err := a.units.ListRange(ctx, nil, zoneID, from, to)
	if err != nil {
		return nil, storeError(err, "")
	}
	held := make(map[string]string, len(units))
	for _, unit := range units {
		held[unit.Key().String()] = unit.ScheduleID
	}

	out := make([]models.FreeSlot, 0, (from.DaysUntil(to)+1)*len(models.CanonicalSlots))
	for day := from; !day.After(to); day = day.AddDays(1) {
		for _, slot := range models.CanonicalSlots {
			entry := models.FreeSlot{Date: day, TimeSlot: slot}
			if id, ok := held[models.SlotKey{ZoneID: zoneID, Date: day, Slot: slot}.String()]; ok {
				holder := id
				entry.Occupied = true
				entry.ScheduleID = &holder
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// Move places a task on the target unit, resolving an occupied target by swap (Planned mover) or
// push-forward (any other mover). Every failure leaves both tasks untouched.
func (a *SlotAllocator) Move(ctx context.Context, scheduleID string, req dto.MoveScheduleRequest) (*MoveResult, error) {
	if err := a.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	target, err := clock.ParseDate(req.TargetDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid target date")
	}
	slot, err := models.ParseTimeSlot(req.TargetSlot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid target slot")
	}

	before, err := a.schedules.FindByID(ctx, nil, scheduleID)
	if err != nil {
		return nil, storeError(err, "schedule not found")
	}
	if err := ensureMovable(before); err != nil {
		return nil, err
	}
	today := a.calendar.Today()
	if target.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrPastDate, fmt.Sprintf("cannot move to %s, today is %s", target, today))
	}

	days := []dayRef{{zoneID: before.ZoneID, date: target}}
	if current, ok := before.Slot(); ok {
		days = append(days, dayRef{zoneID: current.ZoneID, date: current.Date})
	}
	unlock := a.lockDays(days)
	defer unlock()

	var result *MoveResult
	err = withTx(ctx, a.tx, func(exec sqlx.ExtContext) error {
		if err := a.lockStoreDays(ctx, exec, days); err != nil {
			return storeError(err, "")
		}
		mover, err := a.schedules.FindByIDForUpdate(ctx, exec, scheduleID)
		if err != nil {
			return storeError(err, "schedule not found")
		}
		if mover.Version != before.Version {
			return appErrors.Clone(appErrors.ErrConcurrentUpdate, "schedule changed while the move was prepared")
		}
		res, err := a.move(ctx, exec, mover, models.SlotKey{ZoneID: mover.ZoneID, Date: target, Slot: slot}, req.EligibilityOverride, today)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		a.logger.Info("move rejected",
			zap.String("schedule_id", scheduleID),
			zap.String("target_date", target.String()),
			zap.String("target_slot", string(slot)),
			zap.Error(err),
		)
		return nil, err
	}

	a.afterMove(ctx, before, result)
	return result, nil
}

func (a *SlotAllocator) move(ctx context.Context, exec sqlx.ExtContext, mover *models.MaintenanceSchedule, target models.SlotKey, override bool, today clock.Date) (*MoveResult, error) {
	if err := ensureMovable(mover); err != nil {
		return nil, err
	}
	equipment, err := a.equipment.FindByID(ctx, exec, mover.EquipmentID)
	if err != nil {
		return nil, storeError(err, "equipment not found")
	}
	if target.Slot == models.SlotEarliest && !equipment.EligibleForEarliestSlot && !override {
		return nil, eligibilityError(equipment.EquipmentNumber)
	}

	current, hasSlot := mover.Slot()
	if hasSlot && sameUnit(current, target) && mover.Status == models.ScheduleStatusPlanned {
		return &MoveResult{Kind: MoveKindNoop, Schedule: mover}, nil
	}

	occupant, err := a.units.Occupant(ctx, exec, target)
	if err != nil {
		return nil, storeError(err, "")
	}

	result := &MoveResult{Kind: MoveKindDirect, Schedule: mover}
	switch {
	case occupant == nil || occupant.ScheduleID == mover.ID:
		if _, err := a.units.Release(ctx, exec, mover.ID); err != nil {
			return nil, storeError(err, "")
		}
		won, err := a.units.Claim(ctx, exec, target, mover.ID)
		if err != nil {
			return nil, storeError(err, "")
		}
		if !won {
			return nil, appErrors.Clone(appErrors.ErrConcurrentUpdate, "target slot was taken concurrently")
		}
	case mover.Status == models.ScheduleStatusPlanned:
		if !hasSlot {
			return nil, appErrors.Clone(appErrors.ErrInternal, "planned schedule holds no slot")
		}
		displaced, err := a.swap(ctx, exec, mover, current, target, occupant.ScheduleID, override, today)
		if err != nil {
			return nil, err
		}
		result.Kind = MoveKindSwap
		result.Displaced = displaced
	default:
		displaced, err := a.pushForward(ctx, exec, mover, target, occupant.ScheduleID)
		if err != nil {
			return nil, err
		}
		result.Kind = MoveKindPushForward
		result.Displaced = displaced
	}

	if err := a.replan(ctx, exec, mover, target); err != nil {
		return nil, err
	}
	return result, nil
}

// swap exchanges the mover's unit with the occupant's in one statement.
func (a *SlotAllocator) swap(ctx context.Context, exec sqlx.ExtContext, mover *models.MaintenanceSchedule, current, target models.SlotKey, occupantID string, override bool, today clock.Date) (*models.MaintenanceSchedule, error) {
	if current.Date.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrPastDate, fmt.Sprintf("swap would move the occupant to %s, before today", current.Date))
	}
	occupant, err := a.schedules.FindByIDForUpdate(ctx, exec, occupantID)
	if err != nil {
		return nil, storeError(err, "occupying schedule not found")
	}
	if current.Slot == models.SlotEarliest {
		equipment, err := a.equipment.FindByID(ctx, exec, occupant.EquipmentID)
		if err != nil {
			return nil, storeError(err, "equipment not found")
		}
		if !equipment.EligibleForEarliestSlot && !override {
			return nil, eligibilityError(equipment.EquipmentNumber)
		}
	}

	swapped, err := a.units.Swap(ctx, exec, current, mover.ID, target, occupant.ID)
	if err != nil {
		return nil, storeError(err, "")
	}
	if !swapped {
		return nil, appErrors.Clone(appErrors.ErrConcurrentUpdate, "slots changed during swap")
	}

	occupant.Place(current.Date, current.Slot)
	occupant.UpdatedAt = a.calendar.Now().UTC()
	if err := a.schedules.Update(ctx, exec, occupant); err != nil {
		return nil, storeError(err, "")
	}
	return occupant, nil
}

// pushForward relocates the occupant to the nearest free unit at or after the target date and no later
// than its own due date, then hands the target to the mover.
func (a *SlotAllocator) pushForward(ctx context.Context, exec sqlx.ExtContext, mover *models.MaintenanceSchedule, target models.SlotKey, occupantID string) (*models.MaintenanceSchedule, error) {
	occupant, err := a.schedules.FindByIDForUpdate(ctx, exec, occupantID)
	if err != nil {
		return nil, storeError(err, "occupying schedule not found")
	}
	noCapacity := appErrors.Clone(appErrors.ErrNoCapacity,
		fmt.Sprintf("no free slot for %s on or before its due date %s", occupant.WorkOrderRef, occupant.DueDate))
	if occupant.DueDate.Before(target.Date) {
		return nil, noCapacity
	}

	held, err := a.units.ListRange(ctx, exec, target.ZoneID, target.Date, occupant.DueDate)
	if err != nil {
		return nil, storeError(err, "")
	}
	candidates := pushCandidates(target, occupant.DueDate, held, mover.ID)
	if len(candidates) == 0 {
		return nil, noCapacity
	}

	if _, err := a.units.Release(ctx, exec, mover.ID); err != nil {
		return nil, storeError(err, "")
	}
	var landed *models.SlotKey
	for i := range candidates {
		won, err := a.units.Claim(ctx, exec, candidates[i], occupant.ID)
		if err != nil {
			return nil, storeError(err, "")
		}
		if won {
			landed = &candidates[i]
			break
		}
	}
	if landed == nil {
		return nil, noCapacity
	}

	reassigned, err := a.units.Reassign(ctx, exec, target, occupant.ID, mover.ID)
	if err != nil {
		return nil, storeError(err, "")
	}
	if !reassigned {
		return nil, appErrors.Clone(appErrors.ErrConcurrentUpdate, "target slot changed during push-forward")
	}

	occupant.Place(landed.Date, landed.Slot)
	occupant.UpdatedAt = a.calendar.Now().UTC()
	if err := a.schedules.Update(ctx, exec, occupant); err != nil {
		return nil, storeError(err, "")
	}
	return occupant, nil
}

// pushCandidates lists free units from the target date through due in ascending date and canonical slot
// order, earliest slot included. The target itself is excluded. Units held by the mover count as free
// because it vacates them.
func pushCandidates(target models.SlotKey, due clock.Date, held []models.SlotUnit, moverID string) []models.SlotKey {
	taken := make(map[string]struct{}, len(held))
	for _, unit := range held {
		if unit.ScheduleID == moverID {
			continue
		}
		taken[unit.Key().String()] = struct{}{}
	}

	var out []models.SlotKey
	for day := target.Date; !day.After(due); day = day.AddDays(1) {
		for _, slot := range models.CanonicalSlots {
			key := models.SlotKey{ZoneID: target.ZoneID, Date: day, Slot: slot}
			if sameUnit(key, target) {
				continue
			}
			if _, ok := taken[key.String()]; ok {
				continue
			}
			out = append(out, key)
		}
	}
	return out
}

// replan applies the mover's own state change. A Pending mover first takes the skip edge, so its
// ledger record is opened and closed in the same unit of work.
func (a *SlotAllocator) replan(ctx context.Context, exec sqlx.ExtContext, mover *models.MaintenanceSchedule, target models.SlotKey) error {
	switch mover.Status {
	case models.ScheduleStatusPending:
		original := mover.OriginDate
		if mover.CurrentPlannedDate != nil {
			original = *mover.CurrentPlannedDate
		}
		record := &models.RescheduleRecord{ScheduleID: mover.ID, OriginalDate: original, CreatedAt: a.calendar.Now().UTC()}
		if err := a.ledger.Open(ctx, exec, record); err != nil {
			return storeError(err, "")
		}
		mover.LastSkippedDate = original.Ptr()
		mover.SkipCount++
		if _, err := a.ledger.CloseLatestOpen(ctx, exec, mover.ID, target.Date); err != nil {
			return storeError(err, "")
		}
	case models.ScheduleStatusSkipped, models.ScheduleStatusMissed:
		closed, err := a.ledger.CloseLatestOpen(ctx, exec, mover.ID, target.Date)
		if err != nil {
			return storeError(err, "")
		}
		if !closed {
			a.logger.Warn("no open reschedule record to close", zap.String("schedule_id", mover.ID))
		}
	}

	mover.Status = models.ScheduleStatusPlanned
	mover.Place(target.Date, target.Slot)
	mover.UpdatedAt = a.calendar.Now().UTC()
	if err := a.schedules.Update(ctx, exec, mover); err != nil {
		return storeError(err, "")
	}
	return nil
}

func (a *SlotAllocator) afterMove(ctx context.Context, before *models.MaintenanceSchedule, result *MoveResult) {
	a.metrics.RecordMove(result.Kind)
	if result.Kind == MoveKindNoop {
		return
	}

	fields := []zap.Field{
		zap.String("schedule_id", result.Schedule.ID),
		zap.String("kind", result.Kind),
		zap.String("from_status", string(before.Status)),
		zap.String("to_date", result.Schedule.CurrentPlannedDate.String()),
		zap.String("to_slot", string(*result.Schedule.TimeSlot)),
	}
	payload := events.Payload{
		"scheduleId": result.Schedule.ID,
		"kind":       result.Kind,
		"fromStatus": before.Status,
		"date":       result.Schedule.CurrentPlannedDate.String(),
		"timeSlot":   *result.Schedule.TimeSlot,
		"skipCount":  result.Schedule.SkipCount,
	}
	if result.Displaced != nil {
		fields = append(fields,
			zap.String("displaced_id", result.Displaced.ID),
			zap.String("displaced_date", result.Displaced.CurrentPlannedDate.String()),
			zap.String("displaced_slot", string(*result.Displaced.TimeSlot)),
		)
		payload["displacedId"] = result.Displaced.ID
		payload["displacedDate"] = result.Displaced.CurrentPlannedDate.String()
		payload["displacedTimeSlot"] = *result.Displaced.TimeSlot
	}
	a.logger.Info("schedule moved", fields...)
	if err := a.events.Publish(ctx, events.ScheduleMoved, payload); err != nil {
		a.logger.Warn("publish move event failed", zap.String("schedule_id", result.Schedule.ID), zap.Error(err))
	}
}

type dayRef struct {
	zoneID string
	date   clock.Date
}

func (d dayRef) key() string { return models.DayKey(d.zoneID, d.date) }

// lockDays takes the in-process locks for the given days.
func (a *SlotAllocator) lockDays(days []dayRef) func() {
	keys := make([]string, 0, len(days))
	for _, day := range days {
		keys = append(keys, day.key())
	}
	return a.locks.Lock(keys...)
}

// lockStoreDays takes the store advisory locks in the same sorted order as lockDays.
func (a *SlotAllocator) lockStoreDays(ctx context.Context, exec sqlx.ExtContext, days []dayRef) error {
	ordered := make([]dayRef, 0, len(days))
	seen := make(map[string]struct{}, len(days))
	for _, day := range days {
		if _, ok := seen[day.key()]; ok {
			continue
		}
		seen[day.key()] = struct{}{}
		ordered = append(ordered, day)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key() < ordered[j].key() })
	for _, day := range ordered {
		if err := a.units.LockDay(ctx, exec, day.zoneID, day.date); err != nil {
			return err
		}
	}
	return nil
}

func ensureMovable(item *models.MaintenanceSchedule) error {
	switch item.Status {
	case models.ScheduleStatusPlanned, models.ScheduleStatusPending, models.ScheduleStatusSkipped, models.ScheduleStatusMissed:
		return nil
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move a %s schedule", item.Status))
}

func eligibilityError(equipmentNumber string) error {
	return appErrors.Clone(appErrors.ErrEligibilityViolation,
		fmt.Sprintf("equipment %s is not eligible for %s; confirm to override", equipmentNumber, models.SlotEarliest))
}

func sameUnit(a, b models.SlotKey) bool {
	return a.ZoneID == b.ZoneID && a.Date.Equal(b.Date) && a.Slot == b.Slot
}
