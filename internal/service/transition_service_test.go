package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-slot-api/internal/dto"
	"github.com/noah-isme/maintenance-slot-api/internal/events"
	"github.com/noah-isme/maintenance-slot-api/internal/models"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

func transitionReq(action models.TransitionAction) dto.TransitionRequest {
	return dto.TransitionRequest{Action: string(action)}
}

func TestTransitionCompleteDefaultsToToday(t *testing.T) {
	f := newEngineFixture(t, "2025-03-10")
	f.db.addEquipment("eq-1", "HOK-E01", testZone, false)
	f.db.addSchedule("p", "eq-1", models.ScheduleStatusPending, "2025-03-01", "2025-03-08", models.Slot0100)

	item, err := f.transitions.Transition(context.Background(), "p", transitionReq(models.ActionValidateCompleted))
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusCompleted, item.Status)
	require.NotNil(t, item.CompletionDate)
	assert.Equal(t, "2025-03-10", item.CompletionDate.String())
	assert.True(t, item.IsLate, "completed after origin + 6 days")
	assert.Nil(t, item.CurrentPlannedDate)
	assert.Nil(t, item.TimeSlot)
	assert.Zero(t, f.db.unitCount())
	assert.Contains(t, f.publisher.types(), events.ScheduleTransitioned)
}

func TestTransitionCompleteUsesReferencePlanDate(t *testing.T) {
	f := newEngineFixture(t, "2025-03-10")
	f.db.addEquipment("eq-1", "HOK-E01", testZone, false)
	p := f.db.addSchedule("p", "eq-1", models.ScheduleStatusPending, "2025-03-01", "2025-03-08", models.Slot0100)
	p.ReferencePlanDate = clock.MustParseDate("2025-03-04").Ptr()
	f.db.schedules["p"] = p.Clone()

	req := dto.TransitionRequest{Action: string(models.ActionValidateCompleted), CompletionDate: "2025-03-10"}
	item, err := f.transitions.Transition(context.Background(), "p", req)
	require.NoError(t, err)
	assert.False(t, item.IsLate, "2025-03-10 is exactly reference + 6 days")

	f.db.addSchedule("q", "eq-1", models.ScheduleStatusPending, "2025-03-01", "2025-03-09", models.Slot0100)
	_, err = f.transitions.Transition(context.Background(), "q",
		dto.TransitionRequest{Action: string(models.ActionValidateCompleted), CompletionDate: "2025-03-11"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestTransitionRescheduleAfterDueDateIsMissed(t *testing.T) {
	f := newEngineFixture(t, "2025-03-10")
	f.db.addEquipment("eq-m", "HOK-E40", testZone, false)
	f.db.addSchedule("m", "eq-m", models.ScheduleStatusPending, "2025-02-18", "2025-03-02", models.Slot0330)

	item, err := f.transitions.Transition(context.Background(), "m", transitionReq(models.ActionValidateReschedule))
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusMissed, item.Status)
	assert.Nil(t, item.CurrentPlannedDate)
	assert.Nil(t, item.TimeSlot)
	assert.Equal(t, 1, item.SkipCount)
	require.NotNil(t, item.LastSkippedDate)
	assert.Equal(t, "2025-03-02", item.LastSkippedDate.String())
	assert.Equal(t, "2025-03-04", item.DueDate.String())

	records := f.db.recordsFor("m")
	require.Len(t, records, 1)
	assert.True(t, records[0].IsOpen())
	assert.Equal(t, "2025-03-02", records[0].OriginalDate.String())
	assert.Zero(t, f.db.unitCount())
}

func TestTransitionRescheduleBeforeDueDateIsSkipped(t *testing.T) {
	f := newEngineFixture(t, "2025-03-10")
	f.db.addEquipment("eq-1", "HOK-E01", testZone, false)
	f.db.addSchedule("p", "eq-1", models.ScheduleStatusPending, "2025-02-24", "2025-03-08", models.Slot0100)

	item, err := f.transitions.Transition(context.Background(), "p", transitionReq(models.ActionValidateReschedule))
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusSkipped, item.Status, "today equals the due date")
}

func TestTransitionRejectsIllegalActions(t *testing.T) {
	f := newEngineFixture(t, "2025-03-10")
	f.db.addEquipment("eq-1", "HOK-E01", testZone, false)
	f.db.addSchedule("planned", "eq-1", models.ScheduleStatusPlanned, "2025-03-08", "2025-03-12", models.Slot0100)
	f.db.addSchedule("done", "eq-1", models.ScheduleStatusCompleted, "2025-03-01", "", "")
	f.db.addSchedule("skipped", "eq-1", models.ScheduleStatusSkipped, "2025-03-01", "", "")

	cases := []struct {
		id     string
		action models.TransitionAction
	}{
		{"planned", models.ActionValidateCompleted},
		{"planned", models.ActionValidateReschedule},
		{"skipped", models.ActionValidateCompleted},
		{"done", models.ActionCancel},
	}
	for _, tc := range cases {
		_, err := f.transitions.Transition(context.Background(), tc.id, transitionReq(tc.action))
		assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code), "%s %s", tc.id, tc.action)
	}
	assert.Equal(t, "planned", f.db.holder(testZone, "2025-03-12", models.Slot0100))

	_, err := f.transitions.Transition(context.Background(), "planned", dto.TransitionRequest{Action: "FINISH"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.transitions.Transition(context.Background(), "missing", transitionReq(models.ActionCancel))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestTransitionCancelFreesSlot(t *testing.T) {
	f := newEngineFixture(t, "2025-03-10")
	f.db.addEquipment("eq-1", "HOK-E01", testZone, false)
	f.db.addSchedule("planned", "eq-1", models.ScheduleStatusPlanned, "2025-03-08", "2025-03-12", models.Slot0100)
	f.db.addSchedule("skipped", "eq-1", models.ScheduleStatusSkipped, "2025-03-01", "", "")
	f.db.records = append(f.db.records, models.RescheduleRecord{ID: "rec-0", ScheduleID: "skipped", OriginalDate: clock.MustParseDate("2025-03-05")})

	item, err := f.transitions.Transition(context.Background(), "planned", transitionReq(models.ActionCancel))
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusCancelled, item.Status)
	assert.Nil(t, item.CurrentPlannedDate)
	assert.Zero(t, f.db.unitCount())

	_, err = f.transitions.Transition(context.Background(), "skipped", transitionReq(models.ActionCancel))
	require.NoError(t, err)
	assert.True(t, f.db.recordsFor("skipped")[0].IsOpen())

	_, err = f.transitions.Move(context.Background(), "planned", moveReq("2025-03-12", models.Slot0100, false))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))
}

func TestDailyTickIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, "2025-03-10")
	f.db.addEquipment("eq-1", "HOK-E01", testZone, true)
	f.db.addSchedule("yesterday", "eq-1", models.ScheduleStatusPlanned, "2025-03-01", "2025-03-09", models.SlotEarliest)
	f.db.addSchedule("today", "eq-1", models.ScheduleStatusPlanned, "2025-03-01", "2025-03-10", models.SlotEarliest)
	f.db.addSchedule("tomorrow", "eq-1", models.ScheduleStatusPlanned, "2025-03-01", "2025-03-11", models.SlotEarliest)

	first, err := f.transitions.DailyTick(context.Background(), clock.Date{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", first.Today)
	assert.Equal(t, 1, first.Promoted)
	assert.Equal(t, []string{"yesterday"}, first.ScheduleIDs)

	second, err := f.transitions.DailyTick(context.Background(), clock.MustParseDate("2025-03-10"))
	require.NoError(t, err)
	assert.Zero(t, second.Promoted)
	assert.Equal(t, []string{}, second.ScheduleIDs)

	pending := f.db.schedule(t, "yesterday")
	assert.Equal(t, models.ScheduleStatusPending, pending.Status)
	assert.Equal(t, "2025-03-09", pending.CurrentPlannedDate.String())
	assert.Equal(t, models.ScheduleStatusPlanned, f.db.schedule(t, "today").Status)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().TickPromotions)
}

func TestTransitionServiceReads(t *testing.T) {
	f := newEngineFixture(t, "2025-03-10")
	f.db.addEquipment("eq-1", "HOK-E01", testZone, false)
	f.db.addSchedule("p", "eq-1", models.ScheduleStatusPending, "2025-03-01", "2025-03-08", models.Slot0100)
	_, err := f.transitions.Transition(context.Background(), "p", transitionReq(models.ActionValidateReschedule))
	require.NoError(t, err)

	item, err := f.transitions.Get(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusSkipped, item.Status)

	history, err := f.transitions.History(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = f.transitions.History(context.Background(), "nope")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	items, pagination, err := f.transitions.List(context.Background(), models.ScheduleFilter{ZoneID: testZone})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 50, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = f.transitions.List(context.Background(), models.ScheduleFilter{Status: []models.ScheduleStatus{"DONE"}})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}
