package models

import (
	"time"

	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
)

// ScheduleStatus is the lifecycle state of a maintenance task.
type ScheduleStatus string

const (
	ScheduleStatusPlanned   ScheduleStatus = "PLANNED"
	ScheduleStatusPending   ScheduleStatus = "PENDING"
	ScheduleStatusCompleted ScheduleStatus = "COMPLETED"
	ScheduleStatusSkipped   ScheduleStatus = "SKIPPED"
	ScheduleStatusMissed    ScheduleStatus = "MISSED"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusPlanned, ScheduleStatusPending, ScheduleStatusCompleted,
		ScheduleStatusSkipped, ScheduleStatusMissed, ScheduleStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusCompleted || s == ScheduleStatusCancelled
}

// HoldsSlot reports whether a task in this status occupies a capacity unit.
func (s ScheduleStatus) HoldsSlot() bool {
	return s == ScheduleStatusPlanned || s == ScheduleStatusPending
}

// TransitionAction enumerates the explicit state machine actions.
type TransitionAction string

const (
	ActionValidateCompleted  TransitionAction = "VALIDATE_COMPLETED"
	ActionValidateReschedule TransitionAction = "VALIDATE_RESCHEDULE"
	ActionCancel             TransitionAction = "CANCEL"
)

// Valid reports whether a is a known action.
func (a TransitionAction) Valid() bool {
	switch a {
	case ActionValidateCompleted, ActionValidateReschedule, ActionCancel:
		return true
	}
	return false
}

// LateToleranceDays is how many days after the reference plan date a completion still counts as on time.
const LateToleranceDays = 6

// MaintenanceSchedule is one maintenance task for one piece of equipment.
type MaintenanceSchedule struct {
	ID                 string         `db:"id" json:"id"`
	EquipmentID        string         `db:"equipment_id" json:"equipmentId"`
	ZoneID             string         `db:"zone_id" json:"zoneId"`
	Batch              string         `db:"batch" json:"batch"`
	OriginDate         clock.Date     `db:"origin_date" json:"originDate"`
	CurrentPlannedDate *clock.Date    `db:"current_planned_date" json:"currentPlannedDate"`
	TimeSlot           *TimeSlot      `db:"time_slot" json:"timeSlot"`
	DueDate            clock.Date     `db:"due_date" json:"dueDate"`
	ReferencePlanDate  *clock.Date    `db:"reference_plan_date" json:"referencePlanDate"`
	WorkOrderRef       string         `db:"work_order_ref" json:"workOrderRef"`
	Status             ScheduleStatus `db:"status" json:"status"`
	SkipCount          int            `db:"skip_count" json:"skipCount"`
	LastSkippedDate    *clock.Date    `db:"last_skipped_date" json:"lastSkippedDate"`
	CompletionDate     *clock.Date    `db:"completion_date" json:"completionDate"`
	IsLate             bool           `db:"is_late" json:"isLate"`
	Version            int            `db:"version" json:"version"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updatedAt"`
}

// Slot returns the unit the task currently holds, if any.
func (m *MaintenanceSchedule) Slot() (SlotKey, bool) {
	if m.CurrentPlannedDate == nil || m.TimeSlot == nil {
		return SlotKey{}, false
	}
	return SlotKey{ZoneID: m.ZoneID, Date: *m.CurrentPlannedDate, Slot: *m.TimeSlot}, true
}

// Place puts the task on the given unit.
func (m *MaintenanceSchedule) Place(date clock.Date, slot TimeSlot) {
	m.CurrentPlannedDate = date.Ptr()
	s := slot
	m.TimeSlot = &s
}

// ClearSlot removes the planned date and slot.
func (m *MaintenanceSchedule) ClearSlot() {
	m.CurrentPlannedDate = nil
	m.TimeSlot = nil
}

// LateAgainst computes the late flag for a completion on the given day.
func (m *MaintenanceSchedule) LateAgainst(completion clock.Date) bool {
	reference := m.OriginDate
	if m.ReferencePlanDate != nil {
		reference = *m.ReferencePlanDate
	}
	return completion.After(reference.AddDays(LateToleranceDays))
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (m *MaintenanceSchedule) Clone() *MaintenanceSchedule {
	if m == nil {
		return nil
	}
	out := *m
	out.CurrentPlannedDate = cloneDate(m.CurrentPlannedDate)
	out.ReferencePlanDate = cloneDate(m.ReferencePlanDate)
	out.LastSkippedDate = cloneDate(m.LastSkippedDate)
	out.CompletionDate = cloneDate(m.CompletionDate)
	if m.TimeSlot != nil {
		s := *m.TimeSlot
		out.TimeSlot = &s
	}
	return &out
}

func cloneDate(d *clock.Date) *clock.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// ScheduleFilter constrains schedule listings.
type ScheduleFilter struct {
	ZoneID      string
	EquipmentID string
	Status      []ScheduleStatus
	From        *clock.Date
	To          *clock.Date
	Page        int
	PageSize    int
}
