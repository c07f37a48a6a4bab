package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
)

// TimeSlot names one of the three nightly maintenance windows.
type TimeSlot string

const (
	// SlotEarliest is the 23:00 window; only eligible equipment may be placed here without an override.
	SlotEarliest TimeSlot = "SLOT_2300"
	Slot0100     TimeSlot = "SLOT_0100"
	Slot0330     TimeSlot = "SLOT_0330"
)

// CanonicalSlots is the fixed evaluation order used for every first-fit search.
var CanonicalSlots = []TimeSlot{SlotEarliest, Slot0100, Slot0330}

// RoundRobinSlots are the non-earliest slots in declared order.
var RoundRobinSlots = []TimeSlot{Slot0100, Slot0330}

// Valid reports whether s is a known slot.
func (s TimeSlot) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of s in the canonical order, or -1.
func (s TimeSlot) Rank() int {
	for i, slot := range CanonicalSlots {
		if slot == s {
			return i
		}
	}
	return -1
}

// ParseTimeSlot accepts the enum value case-insensitively.
func ParseTimeSlot(raw string) (TimeSlot, error) {
	slot := TimeSlot(strings.ToUpper(strings.TrimSpace(raw)))
	if !slot.Valid() {
		return "", fmt.Errorf("unknown time slot %q", raw)
	}
	return slot, nil
}

// SlotUnit is one occupied (zone, date, slot) triple.
type SlotUnit struct {
	ZoneID     string     `db:"zone_id" json:"zoneId"`
	PlanDate   clock.Date `db:"plan_date" json:"planDate"`
	TimeSlot   TimeSlot   `db:"time_slot" json:"timeSlot"`
	ScheduleID string     `db:"schedule_id" json:"scheduleId"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Key returns the unit's address.
func (u SlotUnit) Key() SlotKey {
	return SlotKey{ZoneID: u.ZoneID, Date: u.PlanDate, Slot: u.TimeSlot}
}

// SlotKey addresses a capacity unit.
type SlotKey struct {
	ZoneID string
	Date   clock.Date
	Slot   TimeSlot
}

// DayKey returns the per-(zone, date) serialisation key shared by all slots of that day.
func (k SlotKey) DayKey() string {
	return DayKey(k.ZoneID, k.Date)
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.ZoneID, k.Date, k.Slot)
}

// DayKey builds the serialisation key for a zone's day.
func DayKey(zoneID string, date clock.Date) string {
	return zoneID + "|" + date.String()
}

// FreeSlot describes one unit in a range listing. ScheduleID is nil when the unit is free.
type FreeSlot struct {
	Date       clock.Date `json:"date"`
	TimeSlot   TimeSlot   `json:"timeSlot"`
	Occupied   bool       `json:"occupied"`
	ScheduleID *string    `json:"scheduleId,omitempty"`
}
