package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-slot-api/internal/dto"
	"github.com/noah-isme/maintenance-slot-api/internal/events"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

// BatchAssigner creates schedules from imported rows and manual entries. Initial assignment stays on
// the origin date and never displaces another task.
type BatchAssigner struct {
	schedules scheduleStore
	equipment equipmentReader
	allocator *SlotAllocator
	tx        txProvider
	calendar  *clock.Calendar
	metrics   *MetricsService
	events    eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	newID     func() string
}

// NewBatchAssigner constructs the assigner.
func NewBatchAssigner(
	schedules scheduleStore,
	equipment equipmentReader,
	allocator *SlotAllocator,
	tx txProvider,
	calendar *clock.Calendar,
	metrics *MetricsService,
	publisher eventPublisher,
	validate *validator.Validate,
	logger *zap.Logger,
) *BatchAssigner {
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
	return &BatchAssigner{
		schedules: schedules,
		equipment: equipment,
		allocator: allocator,
		tx:        tx,
		calendar:  calendar,
		metrics:   metrics,
		events:    publisher,
		validator: validate,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

type importRow struct {
	index     int
	row       dto.BulkAssignRow
	origin    clock.Date
	reference *clock.Date
}

// BulkAssign places every row on its origin date. Rows are processed by origin date ascending and in
// input order within a date; each row commits on its own and failures are reported per row.
func (b *BatchAssigner) BulkAssign(ctx context.Context, req dto.BulkAssignRequest) (*dto.BulkAssignResponse, error) {
	if err := b.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk assign payload")
	}

	results := make([]dto.BulkAssignRowResult, len(req.Rows))
	groups := make(map[clock.Date][]importRow)
	for i, row := range req.Rows {
		results[i] = dto.BulkAssignRowResult{
			Row:             i + 1,
			EquipmentNumber: strings.TrimSpace(row.EquipmentNumber),
			WorkOrderRef:    strings.TrimSpace(row.WorkOrderRef),
		}
		parsed, err := b.parseRow(i, row)
		if err != nil {
			failRow(&results[i], err)
			continue
		}
		groups[parsed.origin] = append(groups[parsed.origin], parsed)
	}

	dates := make([]clock.Date, 0, len(groups))
	for date := range groups {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, date := range dates {
		next := 0
		for _, row := range groups[date] {
			if err := ctx.Err(); err != nil {
				failRow(&results[row.index], err)
				continue
			}
			item, err := b.assignRow(ctx, row, &next)
			if err != nil {
				failRow(&results[row.index], err)
				continue
			}
			succeedRow(&results[row.index], item)
		}
	}

	resp := &dto.BulkAssignResponse{Total: len(results), Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	b.metrics.RecordBulkRows(resp.Succeeded, resp.Failed)
	b.logger.Info("bulk assign finished",
		zap.Int("rows", resp.Total),
		zap.Int("succeeded", resp.Succeeded),
		zap.Int("failed", resp.Failed),
	)
	if resp.Succeeded > 0 {
		if err := b.events.Publish(ctx, events.BulkAssignCompleted, events.Payload{
			"rows": resp.Total, "succeeded": resp.Succeeded, "failed": resp.Failed,
		}); err != nil {
			b.logger.Warn("publish bulk assign event failed", zap.Error(err))
		}
	}
	return resp, nil
}

func (b *BatchAssigner) parseRow(index int, row dto.BulkAssignRow) (importRow, error) {
	if err := b.validator.Struct(row); err != nil {
		return importRow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationReason(err))
	}
	origin, err := clock.ParseDate(row.OriginDate)
	if err != nil {
		return importRow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid originDate")
	}
	parsed := importRow{index: index, row: row, origin: origin}
	if row.ReferencePlanDate != "" {
		ref, err := clock.ParseDate(row.ReferencePlanDate)
		if err != nil {
			return importRow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid referencePlanDate")
		}
		parsed.reference = &ref
	}
	return parsed, nil
}

// assignRow resolves the equipment and claims a slot. next is the round-robin cursor of the date group
// and advances once per non-eligible row that reaches slot selection.
func (b *BatchAssigner) assignRow(ctx context.Context, row importRow, next *int) (*models.MaintenanceSchedule, error) {
	equipment, err := b.equipment.FindByNumber(ctx, nil, row.row.EquipmentNumber)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("equipment %s not found", strings.TrimSpace(row.row.EquipmentNumber)))
	}
	if err := b.ensureUnique(ctx, row.row.WorkOrderRef); err != nil {
		return nil, err
	}

	candidates := models.CanonicalSlots
	if !equipment.EligibleForEarliestSlot {
		first := models.RoundRobinSlots[*next%len(models.RoundRobinSlots)]
		second := models.RoundRobinSlots[(*next+1)%len(models.RoundRobinSlots)]
		candidates = []models.TimeSlot{first, second}
		*next++
	}

	return b.create(ctx, equipment, row.origin, row.reference, row.row.WorkOrderRef, row.row.Batch, candidates)
}

// CreateManual creates one task at an explicit slot on its origin date. An occupied slot fails with
// NoCapacity; manual entry never pushes.
func (b *BatchAssigner) CreateManual(ctx context.Context, req dto.CreateScheduleRequest) (*models.MaintenanceSchedule, error) {
	if err := b.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	origin, err := clock.ParseDate(req.OriginDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid originDate")
	}
	slot, err := models.ParseTimeSlot(req.TimeSlot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timeSlot")
	}
	var reference *clock.Date
	if req.ReferencePlanDate != "" {
		ref, err := clock.ParseDate(req.ReferencePlanDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid referencePlanDate")
		}
		reference = &ref
	}

	today := b.calendar.Today()
	if origin.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrPastDate, fmt.Sprintf("cannot plan on %s, today is %s", origin, today))
	}
	equipment, err := b.equipment.FindByNumber(ctx, nil, req.EquipmentNumber)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("equipment %s not found", strings.TrimSpace(req.EquipmentNumber)))
	}
	if slot == models.SlotEarliest && !equipment.EligibleForEarliestSlot && !req.EligibilityOverride {
		return nil, eligibilityError(equipment.EquipmentNumber)
	}
	if err := b.ensureUnique(ctx, req.WorkOrderRef); err != nil {
		return nil, err
	}

	item, err := b.create(ctx, equipment, origin, reference, req.WorkOrderRef, req.Batch, []models.TimeSlot{slot})
	if err != nil {
		return nil, err
	}
	if err := b.events.Publish(ctx, events.ScheduleCreated, events.Payload{
		"scheduleId": item.ID, "workOrderRef": item.WorkOrderRef, "date": item.OriginDate.String(), "timeSlot": slot,
	}); err != nil {
		b.logger.Warn("publish create event failed", zap.String("schedule_id", item.ID), zap.Error(err))
	}
	return item, nil
}

func (b *BatchAssigner) ensureUnique(ctx context.Context, workOrderRef string) error {
	ref := strings.TrimSpace(workOrderRef)
	existing, err := b.schedules.FindByWorkOrderRef(ctx, nil, ref)
	switch {
	case err == nil && existing != nil:
		return appErrors.Clone(appErrors.ErrDuplicateExternalRef, fmt.Sprintf("work order %s already scheduled", ref))
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return storeError(err, "")
	}
	return nil
}

// create claims the first free candidate on the origin date and inserts the task in one transaction.
func (b *BatchAssigner) create(ctx context.Context, equipment *models.Equipment, origin clock.Date, reference *clock.Date, workOrderRef, batch string, candidates []models.TimeSlot) (*models.MaintenanceSchedule, error) {
	days := []dayRef{{zoneID: equipment.ZoneID, date: origin}}
	unlock := b.allocator.lockDays(days)
	defer unlock()

	if strings.TrimSpace(batch) == "" {
		batch = equipment.Batch
	}
	now := b.calendar.Now().UTC()
	item := &models.MaintenanceSchedule{
		ID:                b.newID(),
		EquipmentID:       equipment.ID,
		ZoneID:            equipment.ZoneID,
		Batch:             strings.TrimSpace(batch),
		OriginDate:        origin,
		DueDate:           origin.AddDays(clock.DueOffsetDays),
		ReferencePlanDate: reference,
		WorkOrderRef:      strings.TrimSpace(workOrderRef),
		Status:            models.ScheduleStatusPlanned,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := withTx(ctx, b.tx, func(exec sqlx.ExtContext) error {
		if err := b.allocator.lockStoreDays(ctx, exec, days); err != nil {
			return storeError(err, "")
		}
		slot, ok, err := b.allocator.claimFirst(ctx, exec, equipment.ZoneID, origin, candidates, item.ID)
		if err != nil {
			return storeError(err, "")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrNoCapacity,
				fmt.Sprintf("no free slot on %s among %s", origin, joinSlots(candidates)))
		}
		item.Place(origin, slot)
		if err := b.schedules.Create(ctx, exec, item); err != nil {
			return storeError(err, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("schedule created",
		zap.String("schedule_id", item.ID),
		zap.String("work_order_ref", item.WorkOrderRef),
		zap.String("date", origin.String()),
		zap.String("slot", string(*item.TimeSlot)),
	)
	return item, nil
}

func succeedRow(res *dto.BulkAssignRowResult, item *models.MaintenanceSchedule) {
	res.Success = true
	res.ScheduleID = item.ID
	res.PlanDate = item.CurrentPlannedDate.String()
	res.TimeSlot = string(*item.TimeSlot)
	res.DueDate = item.DueDate.String()
}

func failRow(res *dto.BulkAssignRowResult, err error) {
	appErr := appErrors.FromError(err)
	res.Success = false
	res.ErrorCode = appErr.Code
	reason := appErr.Message
	res.Reason = &reason
}

func validationReason(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid row"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func joinSlots(slots []models.TimeSlot) string {
	names := make([]string, len(slots))
	for i, slot := range slots {
		names[i] = string(slot)
	}
	return strings.Join(names, ", ")
}
