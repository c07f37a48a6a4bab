package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

func TestMaintenanceScheduleRepositoryFindByIDForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceScheduleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(scheduleRowColumns).AddRow(
		"ms-1", "eq-1", "zone-1", "A", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		"SLOT_0100", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), nil, "OR-1001", "PLANNED", 0, nil, nil, false, 3, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM maintenance_schedules WHERE id = $1 FOR UPDATE")).
		WithArgs("ms-1").
		WillReturnRows(rows)

	item, err := repo.FindByIDForUpdate(context.Background(), nil, "ms-1")
	require.NoError(t, err)
	require.NotNil(t, item.CurrentPlannedDate)
	require.NotNil(t, item.TimeSlot)
	assert.Equal(t, "2025-01-03", item.CurrentPlannedDate.String())
	assert.Equal(t, models.Slot0100, *item.TimeSlot)
	assert.Equal(t, "2025-01-15", item.DueDate.String())
	assert.Nil(t, item.ReferencePlanDate)
	assert.Equal(t, 3, item.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceScheduleRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM maintenance_schedules WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(scheduleRowColumns))

	_, err := repo.FindByID(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceScheduleRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO maintenance_schedules")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "maintenance_schedules_work_order_ref_key"})

	item := &models.MaintenanceSchedule{
		EquipmentID:  "eq-1",
		ZoneID:       "zone-1",
		OriginDate:   clock.MustParseDate("2025-01-01"),
		DueDate:      clock.MustParseDate("2025-01-15"),
		WorkOrderRef: "OR-1001",
		Status:       models.ScheduleStatusPlanned,
	}
	err := repo.Create(context.Background(), nil, item)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateExternalRef.Code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceScheduleRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceScheduleRepository(db)

	slot := models.Slot0100
	planned := clock.MustParseDate("2025-01-01")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO maintenance_schedules")).
		WithArgs(sqlmock.AnyArg(), "eq-1", "zone-1", "A", "2025-01-01", "2025-01-01", "SLOT_0100", "2025-01-15", nil,
			"OR-1001", "PLANNED", 0, nil, nil, false, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	item := &models.MaintenanceSchedule{
		EquipmentID:        "eq-1",
		ZoneID:             "zone-1",
		Batch:              "A",
		OriginDate:         planned,
		CurrentPlannedDate: &planned,
		TimeSlot:           &slot,
		DueDate:            planned.AddDays(clock.DueOffsetDays),
		WorkOrderRef:       "OR-1001",
		Status:             models.ScheduleStatusPlanned,
	}
	require.NoError(t, repo.Create(context.Background(), nil, item))
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, 1, item.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceScheduleRepositoryUpdateVersionConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE maintenance_schedules")).
		WithArgs("ms-1", nil, nil, nil, "SKIPPED", 1, "2025-01-03", nil, false, sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 0))

	skipped := clock.MustParseDate("2025-01-03")
	item := &models.MaintenanceSchedule{ID: "ms-1", Status: models.ScheduleStatusSkipped, SkipCount: 1, LastSkippedDate: &skipped, Version: 4}
	err := repo.Update(context.Background(), nil, item)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConcurrentUpdate.Code))
	assert.Equal(t, 4, item.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceScheduleRepositoryUpdateAdvancesVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND version = $11")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	item := &models.MaintenanceSchedule{ID: "ms-1", Status: models.ScheduleStatusCancelled, Version: 2}
	require.NoError(t, repo.Update(context.Background(), nil, item))
	assert.Equal(t, 3, item.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceScheduleRepositoryMarkPendingBefore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $4 AND current_planned_date < $1")).
		WithArgs("2025-01-10", "PENDING", sqlmock.AnyArg(), "PLANNED").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ms-1").AddRow("ms-2"))

	ids, err := repo.MarkPendingBefore(context.Background(), nil, clock.MustParseDate("2025-01-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ms-1", "ms-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceScheduleRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceScheduleRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM maintenance_schedules WHERE 1=1 AND zone_id = $1 AND status IN ($2, $3) ORDER BY")).
		WithArgs("zone-1", "PLANNED", "PENDING").
		WillReturnRows(sqlmock.NewRows(scheduleRowColumns).AddRow(
			"ms-1", "eq-1", "zone-1", "A", now, now, "SLOT_2300", now, nil, "OR-1", "PENDING", 0, nil, nil, false, 1, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM maintenance_schedules WHERE 1=1 AND zone_id = $1 AND status IN ($2, $3)")).
		WithArgs("zone-1", "PLANNED", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ScheduleFilter{
		ZoneID: "zone-1",
		Status: []models.ScheduleStatus{models.ScheduleStatusPlanned, models.ScheduleStatusPending},
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
