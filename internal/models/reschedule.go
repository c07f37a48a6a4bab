package models

import (
	"time"

	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
)

// RescheduleRecord is an append-only ledger row. NewDate stays nil until a replacement slot is allocated.
type RescheduleRecord struct {
	ID           string      `db:"id" json:"id"`
	ScheduleID   string      `db:"schedule_id" json:"scheduleId"`
	OriginalDate clock.Date  `db:"original_date" json:"originalDate"`
	NewDate      *clock.Date `db:"new_date" json:"newDate"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
}

// IsOpen reports whether the record still awaits a replacement date.
func (r RescheduleRecord) IsOpen() bool {
	return r.NewDate == nil
}

// RescheduleLedgerEntry joins a ledger row with the identifying task fields used in listings and exports.
type RescheduleLedgerEntry struct {
	RescheduleRecord
	WorkOrderRef    string `db:"work_order_ref" json:"workOrderRef"`
	EquipmentNumber string `db:"equipment_number" json:"equipmentNumber"`
	ZoneCode        string `db:"zone_code" json:"zoneCode"`
}

// RescheduleFilter constrains ledger listings. Dates bound originalDate inclusively.
type RescheduleFilter struct {
	ZoneID     string
	ScheduleID string
	From       *clock.Date
	To         *clock.Date
	OpenOnly   bool
	Page       int
	PageSize   int
}
