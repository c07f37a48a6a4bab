package dto

import "github.com/noah-isme/maintenance-slot-api/internal/models"

// MoveScheduleRequest drags a task onto a (date, slot) unit of its zone.
type MoveScheduleRequest struct {
	TargetDate          string `json:"targetDate" validate:"required,datetime=2006-01-02"`
	TargetSlot          string `json:"targetSlot" validate:"required,oneof=SLOT_2300 SLOT_0100 SLOT_0330"`
	EligibilityOverride bool   `json:"eligibilityOverride"`
}

// MoveScheduleResponse returns the mover and, for swaps and push-forwards, the displaced task.
type MoveScheduleResponse struct {
	Kind      string                      `json:"kind"`
	Schedule  *models.MaintenanceSchedule `json:"schedule"`
	Displaced *models.MaintenanceSchedule `json:"displaced,omitempty"`
}

// TransitionRequest applies one explicit state machine action.
type TransitionRequest struct {
	Action         string `json:"action" validate:"required,oneof=VALIDATE_COMPLETED VALIDATE_RESCHEDULE CANCEL"`
	CompletionDate string `json:"completionDate" validate:"omitempty,datetime=2006-01-02"`
}

// BulkAssignRow is one parsed import line.
type BulkAssignRow struct {
	EquipmentNumber   string `json:"equipmentNumber" validate:"required,max=64"`
	OriginDate        string `json:"originDate" validate:"required,datetime=2006-01-02"`
	WorkOrderRef      string `json:"workOrderRef" validate:"required,max=64"`
	ReferencePlanDate string `json:"referencePlanDate" validate:"omitempty,datetime=2006-01-02"`
	Batch             string `json:"batch" validate:"omitempty,max=16"`
}

// BulkAssignRequest carries the rows of one import. Rows are validated one by one so a bad row
// never aborts the batch.
type BulkAssignRequest struct {
	Rows []BulkAssignRow `json:"rows" validate:"required,min=1,max=5000"`
}

// BulkAssignRowResult reports the outcome of one row.
type BulkAssignRowResult struct {
	Row             int     `json:"row"`
	EquipmentNumber string  `json:"equipmentNumber"`
	WorkOrderRef    string  `json:"workOrderRef"`
	Success         bool    `json:"success"`
	ScheduleID      string  `json:"scheduleId,omitempty"`
	PlanDate        string  `json:"planDate,omitempty"`
	TimeSlot        string  `json:"timeSlot,omitempty"`
	DueDate         string  `json:"dueDate,omitempty"`
	ErrorCode       string  `json:"errorCode,omitempty"`
	Reason          *string `json:"reason,omitempty"`
}

// BulkAssignResponse summarises an import.
type BulkAssignResponse struct {
	Total     int                   `json:"total"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Results   []BulkAssignRowResult `json:"results"`
}

// CreateScheduleRequest is a single manual entry at an explicit slot on its origin date.
type CreateScheduleRequest struct {
	EquipmentNumber     string `json:"equipmentNumber" validate:"required,max=64"`
	OriginDate          string `json:"originDate" validate:"required,datetime=2006-01-02"`
	TimeSlot            string `json:"timeSlot" validate:"required,oneof=SLOT_2300 SLOT_0100 SLOT_0330"`
	WorkOrderRef        string `json:"workOrderRef" validate:"required,max=64"`
	ReferencePlanDate   string `json:"referencePlanDate" validate:"omitempty,datetime=2006-01-02"`
	Batch               string `json:"batch" validate:"omitempty,max=16"`
	EligibilityOverride bool   `json:"eligibilityOverride"`
}

// DailyTickRequest optionally pins the civil date the tick runs for.
type DailyTickRequest struct {
	Today string `json:"today" validate:"omitempty,datetime=2006-01-02"`
}

// DailyTickResponse reports how many tasks became Pending.
type DailyTickResponse struct {
	Today       string   `json:"today"`
	Promoted    int      `json:"promoted"`
	ScheduleIDs []string `json:"scheduleIds"`
}

// ScheduleDetailResponse bundles a task with its reschedule history.
type ScheduleDetailResponse struct {
	Schedule *models.MaintenanceSchedule `json:"schedule"`
	History  []models.RescheduleRecord   `json:"history"`
}
