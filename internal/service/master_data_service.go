package service

import (
	"context"
	"strings"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
)

type zoneCatalog interface {
	FindByCode(ctx context.Context, code string) (*models.Zone, error)
	List(ctx context.Context) ([]models.Zone, error)
}

type equipmentCatalog interface {
	List(ctx context.Context, filter models.EquipmentFilter) ([]models.Equipment, error)
}

// MasterDataService reads the zone and equipment registers owned by the asset collaborator.
type MasterDataService struct {
	zones     zoneCatalog
	equipment equipmentCatalog
}

// NewMasterDataService constructs the service.
func NewMasterDataService(zones zoneCatalog, equipment equipmentCatalog) *MasterDataService {
	return &MasterDataService{zones: zones, equipment: equipment}
}

// Zones lists all zones, or the single zone with the given code.
func (s *MasterDataService) Zones(ctx context.Context, code string) ([]models.Zone, error) {
	if code = strings.TrimSpace(code); code != "" {
		zone, err := s.zones.FindByCode(ctx, strings.ToUpper(code))
		if err != nil {
			return nil, storeError(err, "zone not found")
		}
		return []models.Zone{*zone}, nil
	}
	zones, err := s.zones.List(ctx)
	if err != nil {
		return nil, storeError(err, "")
	}
	if zones == nil {
		zones = []models.Zone{}
	}
	return zones, nil
}

// Equipment lists equipment filtered by zone and batch.
func (s *MasterDataService) Equipment(ctx context.Context, filter models.EquipmentFilter) ([]models.Equipment, error) {
	items, err := s.equipment.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "")
	}
	if items == nil {
		items = []models.Equipment{}
	}
	return items, nil
}
