package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
)

// EquipmentRepository reads equipment master data.
type EquipmentRepository struct {
	db *sqlx.DB
}

// NewEquipmentRepository constructs an equipment repository.
func NewEquipmentRepository(db *sqlx.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

const equipmentColumns = "id, equipment_number, equipment_type, eligible_for_earliest_slot, zone_id, batch, created_at, updated_at"

func (r *EquipmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID fetches equipment by ID.
func (r *EquipmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Equipment, error) {
	query := fmt.Sprintf("SELECT %s FROM equipment WHERE id = $1", equipmentColumns)
	var eq models.Equipment
	if err := sqlx.GetContext(ctx, r.exec(exec), &eq, query, id); err != nil {
		return nil, err
	}
	return &eq, nil
}

// FindByNumber fetches equipment by its asset number, e.g. HOK-E25.
func (r *EquipmentRepository) FindByNumber(ctx context.Context, exec sqlx.ExtContext, number string) (*models.Equipment, error) {
	query := fmt.Sprintf("SELECT %s FROM equipment WHERE equipment_number = $1", equipmentColumns)
	var eq models.Equipment
	if err := sqlx.GetContext(ctx, r.exec(exec), &eq, query, strings.TrimSpace(number)); err != nil {
		return nil, err
	}
	return &eq, nil
}

// List returns equipment filtered by zone and batch.
func (r *EquipmentRepository) List(ctx context.Context, filter models.EquipmentFilter) ([]models.Equipment, error) {
	var conditions []string
	var args []interface{}
	if filter.ZoneID != "" {
		args = append(args, filter.ZoneID)
		conditions = append(conditions, fmt.Sprintf("zone_id = $%d", len(args)))
	}
	if filter.Batch != "" {
		args = append(args, filter.Batch)
		conditions = append(conditions, fmt.Sprintf("batch = $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM equipment", equipmentColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY equipment_number ASC"

	var items []models.Equipment
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return items, nil
}
