package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-slot-api/internal/events"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

// memDB is an in-memory stand-in for the schedule store tables.
type memDB struct {
	mu        sync.Mutex
	schedules map[string]*models.MaintenanceSchedule
	units     map[string]models.SlotUnit
	records   []models.RescheduleRecord
	equipment map[string]*models.Equipment
	zones     map[string]*models.Zone
	dayLocks  []string
	failList  error
}

func newMemDB() *memDB {
	return &memDB{
		schedules: make(map[string]*models.MaintenanceSchedule),
		units:     make(map[string]models.SlotUnit),
		equipment: make(map[string]*models.Equipment),
		zones:     make(map[string]*models.Zone),
	}
}

func (db *memDB) addZone(id, code string) {
	db.zones[id] = &models.Zone{ID: id, Code: code, Name: code}
}

func (db *memDB) addEquipment(id, number, zoneID string, eligible bool) {
	db.equipment[id] = &models.Equipment{
		ID: id, EquipmentNumber: number, EquipmentType: "ESCALATOR", ZoneID: zoneID, Batch: "A",
		EligibleForEarliestSlot: eligible,
	}
}

// addSchedule seeds a task. date and slot may be empty for tasks without a unit.
func (db *memDB) addSchedule(id, equipmentID string, status models.ScheduleStatus, origin, date string, slot models.TimeSlot) *models.MaintenanceSchedule {
	eq := db.equipment[equipmentID]
	originDate := clock.MustParseDate(origin)
	item := &models.MaintenanceSchedule{
		ID:           id,
		EquipmentID:  equipmentID,
		ZoneID:       eq.ZoneID,
		Batch:        eq.Batch,
		OriginDate:   originDate,
		DueDate:      originDate.AddDays(clock.DueOffsetDays),
		WorkOrderRef: "OR-" + id,
		Status:       status,
		Version:      1,
	}
	if date != "" {
		item.Place(clock.MustParseDate(date), slot)
		if status.HoldsSlot() {
			key, _ := item.Slot()
			db.units[key.String()] = models.SlotUnit{ZoneID: key.ZoneID, PlanDate: key.Date, TimeSlot: key.Slot, ScheduleID: id}
		}
	}
	db.schedules[id] = item.Clone()
	return item
}

func (db *memDB) schedule(t *testing.T, id string) *models.MaintenanceSchedule {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()
	item, ok := db.schedules[id]
	require.True(t, ok, "schedule %s missing", id)
	return item.Clone()
}

func (db *memDB) holder(zoneID, date string, slot models.TimeSlot) string {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := models.SlotKey{ZoneID: zoneID, Date: clock.MustParseDate(date), Slot: slot}
	return db.units[key.String()].ScheduleID
}

func (db *memDB) unitCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.units)
}

func (db *memDB) recordsFor(scheduleID string) []models.RescheduleRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.RescheduleRecord
	for _, rec := range db.records {
		if rec.ScheduleID == scheduleID {
			out = append(out, rec)
		}
	}
	return out
}

type memSchedules struct{ db *memDB }

func (s memSchedules) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.MaintenanceSchedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	item, ok := s.db.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return item.Clone(), nil
}

func (s memSchedules) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.MaintenanceSchedule, error) {
	return s.FindByID(ctx, exec, id)
}

func (s memSchedules) FindByWorkOrderRef(ctx context.Context, exec sqlx.ExtContext, ref string) (*models.MaintenanceSchedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, item := range s.db.schedules {
		if item.WorkOrderRef == ref {
			return item.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s memSchedules) Create(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.schedules {
		if existing.WorkOrderRef == item.WorkOrderRef {
			return appErrors.Clone(appErrors.ErrDuplicateExternalRef, "work order already exists")
		}
	}
	item.Version = 1
	s.db.schedules[item.ID] = item.Clone()
	return nil
}

func (s memSchedules) Update(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	stored, ok := s.db.schedules[item.ID]
	if !ok || stored.Version != item.Version {
		return appErrors.Clone(appErrors.ErrConcurrentUpdate, "version mismatch")
	}
	item.Version++
	s.db.schedules[item.ID] = item.Clone()
	return nil
}

func (s memSchedules) MarkPendingBefore(ctx context.Context, exec sqlx.ExtContext, today clock.Date) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []string
	for id, item := range s.db.schedules {
		if item.Status == models.ScheduleStatusPlanned && item.CurrentPlannedDate != nil && item.CurrentPlannedDate.Before(today) {
			item.Status = models.ScheduleStatusPending
			item.Version++
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s memSchedules) List(ctx context.Context, filter models.ScheduleFilter) ([]models.MaintenanceSchedule, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failList != nil {
		return nil, 0, s.db.failList
	}
	var out []models.MaintenanceSchedule
	for _, item := range s.db.schedules {
		if filter.ZoneID != "" && item.ZoneID != filter.ZoneID {
			continue
		}
		out = append(out, *item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

type memUnits struct{ db *memDB }

func (u memUnits) LockDay(ctx context.Context, exec sqlx.ExtContext, zoneID string, date clock.Date) error {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	u.db.dayLocks = append(u.db.dayLocks, models.DayKey(zoneID, date))
	return nil
}

func (u memUnits) Occupant(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey) (*models.SlotUnit, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	unit, ok := u.db.units[key.String()]
	if !ok {
		return nil, nil
	}
	return &unit, nil
}

func (u memUnits) ListRange(ctx context.Context, exec sqlx.ExtContext, zoneID string, from, to clock.Date) ([]models.SlotUnit, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	var out []models.SlotUnit
	for _, unit := range u.db.units {
		if unit.ZoneID == zoneID && !unit.PlanDate.Before(from) && !unit.PlanDate.After(to) {
			out = append(out, unit)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlanDate.Equal(out[j].PlanDate) {
			return out[i].PlanDate.Before(out[j].PlanDate)
		}
		return out[i].TimeSlot.Rank() < out[j].TimeSlot.Rank()
	})
	return out, nil
}

func (u memUnits) Claim(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey, scheduleID string) (bool, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	if _, ok := u.db.units[key.String()]; ok {
		return false, nil
	}
	u.db.units[key.String()] = models.SlotUnit{ZoneID: key.ZoneID, PlanDate: key.Date, TimeSlot: key.Slot, ScheduleID: scheduleID, CreatedAt: time.Now()}
	return true, nil
}

func (u memUnits) Reassign(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey, fromID, toID string) (bool, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	unit, ok := u.db.units[key.String()]
	if !ok || unit.ScheduleID != fromID {
		return false, nil
	}
	unit.ScheduleID = toID
	u.db.units[key.String()] = unit
	return true, nil
}

func (u memUnits) Swap(ctx context.Context, exec sqlx.ExtContext, unitA models.SlotKey, a string, unitB models.SlotKey, b string) (bool, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	ua, okA := u.db.units[unitA.String()]
	ub, okB := u.db.units[unitB.String()]
	if !okA || !okB || ua.ScheduleID != a || ub.ScheduleID != b {
		return false, nil
	}
	ua.ScheduleID, ub.ScheduleID = b, a
	u.db.units[unitA.String()] = ua
	u.db.units[unitB.String()] = ub
	return true, nil
}

func (u memUnits) Release(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int64, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	var n int64
	for key, unit := range u.db.units {
		if unit.ScheduleID == scheduleID {
			delete(u.db.units, key)
			n++
		}
	}
	return n, nil
}

type memLedger struct{ db *memDB }

func (l memLedger) Open(ctx context.Context, exec sqlx.ExtContext, record *models.RescheduleRecord) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	record.ID = fmt.Sprintf("rec-%d", len(l.db.records)+1)
	record.NewDate = nil
	l.db.records = append(l.db.records, *record)
	return nil
}

func (l memLedger) CloseLatestOpen(ctx context.Context, exec sqlx.ExtContext, scheduleID string, newDate clock.Date) (bool, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	for i := len(l.db.records) - 1; i >= 0; i-- {
		if l.db.records[i].ScheduleID == scheduleID && l.db.records[i].IsOpen() {
			l.db.records[i].NewDate = newDate.Ptr()
			return true, nil
		}
	}
	return false, nil
}

func (l memLedger) ListBySchedule(ctx context.Context, scheduleID string) ([]models.RescheduleRecord, error) {
	return l.db.recordsFor(scheduleID), nil
}

func (l memLedger) List(ctx context.Context, filter models.RescheduleFilter) ([]models.RescheduleLedgerEntry, int, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	var out []models.RescheduleLedgerEntry
	for _, rec := range l.db.records {
		if filter.OpenOnly && !rec.IsOpen() {
			continue
		}
		entry := models.RescheduleLedgerEntry{RescheduleRecord: rec}
		if item, ok := l.db.schedules[rec.ScheduleID]; ok {
			entry.WorkOrderRef = item.WorkOrderRef
			if eq, ok := l.db.equipment[item.EquipmentID]; ok {
				entry.EquipmentNumber = eq.EquipmentNumber
			}
			if zone, ok := l.db.zones[item.ZoneID]; ok {
				entry.ZoneCode = zone.Code
			}
		}
		out = append(out, entry)
	}
	return out, len(out), nil
}

type memEquipment struct{ db *memDB }

func (e memEquipment) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Equipment, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	eq, ok := e.db.equipment[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *eq
	return &copied, nil
}

func (e memEquipment) FindByNumber(ctx context.Context, exec sqlx.ExtContext, number string) (*models.Equipment, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	for _, eq := range e.db.equipment {
		if eq.EquipmentNumber == number {
			copied := *eq
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memZones struct{ db *memDB }

func (z memZones) FindByID(ctx context.Context, id string) (*models.Zone, error) {
	z.db.mu.Lock()
	defer z.db.mu.Unlock()
	zone, ok := z.db.zones[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *zone
	return &copied, nil
}

type publishedEvent struct {
	eventType events.Type
	payload   events.Payload
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType events.Type, payload events.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType: eventType, payload: payload})
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.eventType
	}
	return out
}

type engineFixture struct {
	db          *memDB
	calendar    *clock.Calendar
	metrics     *MetricsService
	publisher   *recordingPublisher
	allocator   *SlotAllocator
	transitions *TransitionService
	assigner    *BatchAssigner
}

// newEngineFixture wires the engine over memDB with "today" pinned in UTC.
func newEngineFixture(t *testing.T, today string) *engineFixture {
	t.Helper()
	day := clock.MustParseDate(today)
	cal := clock.NewFixedCalendar(time.UTC, day.In(time.UTC).Add(10*time.Hour))
	db := newMemDB()
	db.addZone("zone-1", "MTR-01")
	metrics := NewMetricsService()
	publisher := &recordingPublisher{}

	allocator := NewSlotAllocator(memSchedules{db}, memUnits{db}, memLedger{db}, memEquipment{db}, memZones{db},
		nil, cal, metrics, publisher, nil, nil)
	transitions := NewTransitionService(memSchedules{db}, memUnits{db}, memLedger{db}, allocator,
		nil, cal, metrics, publisher, nil, nil)
	assigner := NewBatchAssigner(memSchedules{db}, memEquipment{db}, allocator, nil, cal, metrics, publisher, nil, nil)
	seq := 0
	assigner.newID = func() string {
		seq++
		return fmt.Sprintf("new-%d", seq)
	}

	return &engineFixture{
		db:          db,
		calendar:    cal,
		metrics:     metrics,
		publisher:   publisher,
		allocator:   allocator,
		transitions: transitions,
		assigner:    assigner,
	}
}
