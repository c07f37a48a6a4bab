package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	"github.com/noah-isme/maintenance-slot-api/pkg/database"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

// MaintenanceScheduleRepository persists maintenance tasks. Writes use optimistic versioning.
type MaintenanceScheduleRepository struct {
	db *sqlx.DB
}

// NewMaintenanceScheduleRepository constructs the repository.
func NewMaintenanceScheduleRepository(db *sqlx.DB) *MaintenanceScheduleRepository {
	return &MaintenanceScheduleRepository{db: db}
}

const scheduleColumns = `id, equipment_id, zone_id, batch, origin_date, current_planned_date, time_slot, due_date,
reference_plan_date, work_order_ref, status, skip_count, last_skipped_date, completion_date, is_late, version,
created_at, updated_at`

func (r *MaintenanceScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID fetches a task by ID.
func (r *MaintenanceScheduleRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.MaintenanceSchedule, error) {
	query := fmt.Sprintf("SELECT %s FROM maintenance_schedules WHERE id = $1", scheduleColumns)
	var item models.MaintenanceSchedule
	if err := sqlx.GetContext(ctx, r.exec(exec), &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDForUpdate fetches a task and holds its row lock until the transaction ends.
func (r *MaintenanceScheduleRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.MaintenanceSchedule, error) {
	query := fmt.Sprintf("SELECT %s FROM maintenance_schedules WHERE id = $1 FOR UPDATE", scheduleColumns)
	var item models.MaintenanceSchedule
	if err := sqlx.GetContext(ctx, r.exec(exec), &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByWorkOrderRef fetches a task by its external work order reference.
func (r *MaintenanceScheduleRepository) FindByWorkOrderRef(ctx context.Context, exec sqlx.ExtContext, ref string) (*models.MaintenanceSchedule, error) {
	query := fmt.Sprintf("SELECT %s FROM maintenance_schedules WHERE work_order_ref = $1", scheduleColumns)
	var item models.MaintenanceSchedule
	if err := sqlx.GetContext(ctx, r.exec(exec), &item, query, ref); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts a new task at version 1.
func (r *MaintenanceScheduleRepository) Create(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Version = 1

	const query = `INSERT INTO maintenance_schedules (id, equipment_id, zone_id, batch, origin_date, current_planned_date, time_slot,
due_date, reference_plan_date, work_order_ref, status, skip_count, last_skipped_date, completion_date, is_late, version,
created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.exec(exec).ExecContext(ctx, query,
		item.ID, item.EquipmentID, item.ZoneID, item.Batch, item.OriginDate, item.CurrentPlannedDate, item.TimeSlot,
		item.DueDate, item.ReferencePlanDate, item.WorkOrderRef, item.Status, item.SkipCount, item.LastSkippedDate,
		item.CompletionDate, item.IsLate, item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateExternalRef.Code, appErrors.ErrDuplicateExternalRef.Status,
				fmt.Sprintf("work order %s already exists", item.WorkOrderRef))
		}
		return fmt.Errorf("insert maintenance schedule: %w", err)
	}
	return nil
}

// Update writes the mutable lifecycle fields if the stored version still matches item.Version.
// Origin and due dates are never rewritten. On success item.Version is advanced.
func (r *MaintenanceScheduleRepository) Update(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule) error {
	now := time.Now().UTC()
	const query = `UPDATE maintenance_schedules
SET current_planned_date = $2, time_slot = $3, reference_plan_date = $4, status = $5, skip_count = $6,
    last_skipped_date = $7, completion_date = $8, is_late = $9, version = version + 1, updated_at = $10
WHERE id = $1 AND version = $11`

	res, err := r.exec(exec).ExecContext(ctx, query,
		item.ID, item.CurrentPlannedDate, item.TimeSlot, item.ReferencePlanDate, item.Status, item.SkipCount,
		item.LastSkippedDate, item.CompletionDate, item.IsLate, now, item.Version,
	)
	if err != nil {
		return fmt.Errorf("update maintenance schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update maintenance schedule rows affected: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrConcurrentUpdate, fmt.Sprintf("schedule %s changed since version %d", item.ID, item.Version))
	}
	item.Version++
	item.UpdatedAt = now
	return nil
}

// MarkPendingBefore moves every Planned task dated before today to Pending and returns the affected IDs.
// Re-running it for the same day affects nothing.
func (r *MaintenanceScheduleRepository) MarkPendingBefore(ctx context.Context, exec sqlx.ExtContext, today clock.Date) ([]string, error) {
	const query = `UPDATE maintenance_schedules
SET status = $2, version = version + 1, updated_at = $3
WHERE status = $4 AND current_planned_date < $1
RETURNING id`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query,
		today, models.ScheduleStatusPending, time.Now().UTC(), models.ScheduleStatusPlanned); err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}
	return ids, nil
}

// List returns tasks matching the filter ordered by planned date, then slot.
func (r *MaintenanceScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.MaintenanceSchedule, int, error) {
	base := "FROM maintenance_schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ZoneID != "" {
		args = append(args, filter.ZoneID)
		conditions = append(conditions, fmt.Sprintf("zone_id = $%d", len(args)))
	}
	if filter.EquipmentID != "" {
		args = append(args, filter.EquipmentID)
		conditions = append(conditions, fmt.Sprintf("equipment_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("COALESCE(current_planned_date, origin_date) >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("COALESCE(current_planned_date, origin_date) <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY COALESCE(current_planned_date, origin_date) ASC, %s ASC NULLS LAST, work_order_ref ASC LIMIT %d OFFSET %d",
		scheduleColumns, base, slotRankExpr, size, offset)
	var items []models.MaintenanceSchedule
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list maintenance schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count maintenance schedules: %w", err)
	}
	return items, total, nil
}
