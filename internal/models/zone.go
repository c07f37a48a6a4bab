package models

import "time"

// Zone is a geographic maintenance area with its own slot capacity.
type Zone struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Equipment is a maintainable asset. The eligibility flag gates use of the earliest slot.
type Equipment struct {
	ID                      string    `db:"id" json:"id"`
	EquipmentNumber         string    `db:"equipment_number" json:"equipmentNumber"`
	EquipmentType           string    `db:"equipment_type" json:"equipmentType"`
	EligibleForEarliestSlot bool      `db:"eligible_for_earliest_slot" json:"eligibleForEarliestSlot"`
	ZoneID                  string    `db:"zone_id" json:"zoneId"`
	Batch                   string    `db:"batch" json:"batch"`
	CreatedAt               time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt               time.Time `db:"updated_at" json:"updatedAt"`
}

// EquipmentFilter constrains equipment listings.
type EquipmentFilter struct {
	ZoneID string
	Batch  string
}
