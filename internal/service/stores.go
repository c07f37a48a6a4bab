package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/maintenance-slot-api/internal/events"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
)

type scheduleStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.MaintenanceSchedule, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.MaintenanceSchedule, error)
	FindByWorkOrderRef(ctx context.Context, exec sqlx.ExtContext, ref string) (*models.MaintenanceSchedule, error)
	Create(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule) error
	Update(ctx context.Context, exec sqlx.ExtContext, item *models.MaintenanceSchedule) error
	MarkPendingBefore(ctx context.Context, exec sqlx.ExtContext, today clock.Date) ([]string, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.MaintenanceSchedule, int, error)
}

type slotStore interface {
	LockDay(ctx context.Context, exec sqlx.ExtContext, zoneID string, date clock.Date) error
	Occupant(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey) (*models.SlotUnit, error)
	ListRange(ctx context.Context, exec sqlx.ExtContext, zoneID string, from, to clock.Date) ([]models.SlotUnit, error)
	Claim(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey, scheduleID string) (bool, error)
	Reassign(ctx context.Context, exec sqlx.ExtContext, key models.SlotKey, fromID, toID string) (bool, error)
	Swap(ctx context.Context, exec sqlx.ExtContext, unitA models.SlotKey, a string, unitB models.SlotKey, b string) (bool, error)
	Release(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int64, error)
}

type ledgerStore interface {
	Open(ctx context.Context, exec sqlx.ExtContext, record *models.RescheduleRecord) error
	CloseLatestOpen(ctx context.Context, exec sqlx.ExtContext, scheduleID string, newDate clock.Date) (bool, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.RescheduleRecord, error)
	List(ctx context.Context, filter models.RescheduleFilter) ([]models.RescheduleLedgerEntry, int, error)
}

type equipmentReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Equipment, error)
	FindByNumber(ctx context.Context, exec sqlx.ExtContext, number string) (*models.Equipment, error)
}

type zoneReader interface {
	FindByID(ctx context.Context, id string) (*models.Zone, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType events.Type, payload events.Payload) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Type, events.Payload) error { return nil }
