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
)

// RescheduleRepository stores the append-only reschedule ledger.
type RescheduleRepository struct {
	db *sqlx.DB
}

// NewRescheduleRepository constructs the repository.
func NewRescheduleRepository(db *sqlx.DB) *RescheduleRepository {
	return &RescheduleRepository{db: db}
}

func (r *RescheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Open appends a record with no replacement date.
func (r *RescheduleRepository) Open(ctx context.Context, exec sqlx.ExtContext, record *models.RescheduleRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.NewDate = nil

	const query = `INSERT INTO reschedule_records (id, schedule_id, original_date, new_date, created_at)
VALUES ($1, $2, $3, NULL, $4)`
	if _, err := r.exec(exec).ExecContext(ctx, query, record.ID, record.ScheduleID, record.OriginalDate, record.CreatedAt); err != nil {
		return fmt.Errorf("open reschedule record: %w", err)
	}
	return nil
}

// CloseLatestOpen fills newDate on the task's most recent open record. It reports whether a record was closed.
func (r *RescheduleRepository) CloseLatestOpen(ctx context.Context, exec sqlx.ExtContext, scheduleID string, newDate clock.Date) (bool, error) {
	const query = `UPDATE reschedule_records SET new_date = $2
WHERE id = (
    SELECT id FROM reschedule_records
    WHERE schedule_id = $1 AND new_date IS NULL
    ORDER BY created_at DESC
    LIMIT 1
)`
	res, err := r.exec(exec).ExecContext(ctx, query, scheduleID, newDate)
	if err != nil {
		return false, fmt.Errorf("close reschedule record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close reschedule record rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListBySchedule returns a task's ledger oldest first.
func (r *RescheduleRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.RescheduleRecord, error) {
	const query = `SELECT id, schedule_id, original_date, new_date, created_at FROM reschedule_records
WHERE schedule_id = $1 ORDER BY created_at ASC`
	var records []models.RescheduleRecord
	if err := r.db.SelectContext(ctx, &records, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list reschedule records: %w", err)
	}
	return records, nil
}

// List returns ledger entries joined with their task identifiers. PageSize <= 0 returns everything, for exports.
func (r *RescheduleRepository) List(ctx context.Context, filter models.RescheduleFilter) ([]models.RescheduleLedgerEntry, int, error) {
	base := `FROM reschedule_records rr
JOIN maintenance_schedules ms ON ms.id = rr.schedule_id
JOIN equipment e ON e.id = ms.equipment_id
JOIN zones z ON z.id = ms.zone_id
WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ZoneID != "" {
		args = append(args, filter.ZoneID)
		conditions = append(conditions, fmt.Sprintf("ms.zone_id = $%d", len(args)))
	}
	if filter.ScheduleID != "" {
		args = append(args, filter.ScheduleID)
		conditions = append(conditions, fmt.Sprintf("rr.schedule_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("rr.original_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("rr.original_date <= $%d", len(args)))
	}
	if filter.OpenOnly {
		conditions = append(conditions, "rr.new_date IS NULL")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT rr.id, rr.schedule_id, rr.original_date, rr.new_date, rr.created_at,
ms.work_order_ref, e.equipment_number, z.code AS zone_code %s ORDER BY rr.original_date ASC, rr.created_at ASC`, base)
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	var entries []models.RescheduleLedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reschedule ledger: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count reschedule ledger: %w", err)
	}
	return entries, total, nil
}
