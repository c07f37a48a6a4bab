package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
)

// ZoneRepository reads zone master data.
type ZoneRepository struct {
	db *sqlx.DB
}

// NewZoneRepository constructs a zone repository.
func NewZoneRepository(db *sqlx.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

const zoneColumns = "id, code, name, created_at, updated_at"

// FindByID fetches a zone by ID.
func (r *ZoneRepository) FindByID(ctx context.Context, id string) (*models.Zone, error) {
	query := fmt.Sprintf("SELECT %s FROM zones WHERE id = $1", zoneColumns)
	var zone models.Zone
	if err := r.db.GetContext(ctx, &zone, query, id); err != nil {
		return nil, err
	}
	return &zone, nil
}

// FindByCode fetches a zone by its operational code, e.g. MTR-01.
func (r *ZoneRepository) FindByCode(ctx context.Context, code string) (*models.Zone, error) {
	query := fmt.Sprintf("SELECT %s FROM zones WHERE code = $1", zoneColumns)
	var zone models.Zone
	if err := r.db.GetContext(ctx, &zone, query, code); err != nil {
		return nil, err
	}
	return &zone, nil
}

// List returns all zones ordered by code.
func (r *ZoneRepository) List(ctx context.Context) ([]models.Zone, error) {
	query := fmt.Sprintf("SELECT %s FROM zones ORDER BY code ASC", zoneColumns)
	var zones []models.Zone
	if err := r.db.SelectContext(ctx, &zones, query); err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	return zones, nil
}
