package repository

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var scheduleRowColumns = []string{
	"id", "equipment_id", "zone_id", "batch", "origin_date", "current_planned_date", "time_slot", "due_date",
	"reference_plan_date", "work_order_ref", "status", "skip_count", "last_skipped_date", "completion_date", "is_late",
	"version", "created_at", "updated_at",
}
