package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
)

// slotRankExpr orders time_slot canonically instead of lexically.
const slotRankExpr = "CASE time_slot WHEN 'SLOT_2300' THEN 0 WHEN 'SLOT_0100' THEN 1 WHEN 'SLOT_0330' THEN 2 END"

// SlotUnitRepository maintains the occupancy index. The primary key on (zone_id, plan_date, time_slot)
// is what enforces at most one active task per unit.
type SlotUnitRepository struct {
	db *sqlx.DB
}

// NewSlotUnitRepository constructs the repository.
func NewSlotUnitRepository(db *sqlx.DB) *SlotUnitRepository {
	return &SlotUnitRepository{db: db}
}

func (r *SlotUnitRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockDay takes the transaction-scoped advisory lock serialising writers on one zone's day.
func (r *SlotUnitRepository) LockDay(ctx context.Context, exec sqlx.ExtContext, zoneID string, date clock.Date) error {
	if _, err := r.exec(exec).ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", models.DayKey(zoneID, date)); err != nil {
		return fmt.Errorf("lock day %s: %w", models.DayKey(zoneID, date), err)
	}
	return nil
}

// Occupant returns the unit row, or nil when the unit is free.
func (r *SlotUnitRepository) Occupant(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey) (*models.SlotUnit, error) {
	const query = `SELECT zone_id, plan_date, time_slot, schedule_id, created_at FROM slot_units
WHERE zone_id = $1 AND plan_date = $2 AND time_slot = $3`
	var unit models.SlotUnit
	if err := sqlx.GetContext(ctx, r.exec(exec), &unit, query, key.ZoneID, key.Date, key.Slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read slot unit %s: %w", key, err)
	}
	return &unit, nil
}

// ListRange returns occupied units for a zone between from and to inclusive, by date then canonical slot order.
func (r *SlotUnitRepository) ListRange(ctx context.Context, exec sqlx.ExtContext, zoneID string, from, to clock.Date) ([]models.SlotUnit, error) {
	query := fmt.Sprintf(`SELECT zone_id, plan_date, time_slot, schedule_id, created_at FROM slot_units
WHERE zone_id = $1 AND plan_date BETWEEN $2 AND $3
ORDER BY plan_date ASC, %s ASC`, slotRankExpr)
	var units []models.SlotUnit
	if err := sqlx.SelectContext(ctx, r.exec(exec), &units, query, zoneID, from, to); err != nil {
		return nil, fmt.Errorf("list slot units: %w", err)
	}
	return units, nil
}

// Claim inserts the unit for scheduleID if nobody holds it. It reports whether the claim won.
func (r *SlotUnitRepository) Claim(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey, scheduleID string) (bool, error) {
	const query = `INSERT INTO slot_units (zone_id, plan_date, time_slot, schedule_id, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (zone_id, plan_date, time_slot) DO NOTHING`
	res, err := r.exec(exec).ExecContext(ctx, query, key.ZoneID, key.Date, key.Slot, scheduleID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim slot unit %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim slot unit rows affected: %w", err)
	}
	return affected == 1, nil
}

// Reassign hands the unit from one task to another, only if fromID still holds it.
func (r *SlotUnitRepository) Reassign(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey, fromID, toID string) (bool, error) {
	const query = `UPDATE slot_units SET schedule_id = $5
WHERE zone_id = $1 AND plan_date = $2 AND time_slot = $3 AND schedule_id = $4`
	res, err := r.exec(exec).ExecContext(ctx, query, key.ZoneID, key.Date, key.Slot, fromID, toID)
	if err != nil {
		return false, fmt.Errorf("reassign slot unit %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reassign slot unit rows affected: %w", err)
	}
	return affected == 1, nil
}

// Swap exchanges the holders of two units of the same zone in one statement. Both units must currently be
// held by the given tasks, a at unitA and b at unitB, otherwise nothing changes and false is returned.
func (r *SlotUnitRepository) Swap(ctx context.Context, exec sqlx.ExtContext, unitA models.SlotKey, a string, unitB models.SlotKey, b string) (bool, error) {
	const query = `UPDATE slot_units
SET schedule_id = CASE WHEN schedule_id = $1 THEN $2 ELSE $1 END
WHERE zone_id = $3
  AND ((plan_date = $4 AND time_slot = $5 AND schedule_id = $1) OR (plan_date = $6 AND time_slot = $7 AND schedule_id = $2))`
	res, err := r.exec(exec).ExecContext(ctx, query, a, b, unitA.ZoneID, unitA.Date, unitA.Slot, unitB.Date, unitB.Slot)
	if err != nil {
		return false, fmt.Errorf("swap slot units %s <-> %s: %w", unitA, unitB, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap slot units rows affected: %w", err)
	}
	return affected == 2, nil
}

// Release frees every unit held by scheduleID and returns how many were freed.
func (r *SlotUnitRepository) Release(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, "DELETE FROM slot_units WHERE schedule_id = $1", scheduleID)
	if err != nil {
		return 0, fmt.Errorf("release slot units for %s: %w", scheduleID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release slot units rows affected: %w", err)
	}
	return affected, nil
}
