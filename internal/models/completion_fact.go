package models

import "time"

// CompletionFact is a completed visit reported by the field-visit collaborator.
type CompletionFact struct {
	WorkOrderRef    string    `json:"workOrderRef"`
	EquipmentNumber string    `json:"equipmentNumber"`
	CompletedAt     time.Time `json:"completedAt"`
	Engineer        string    `json:"engineer,omitempty"`
}

// CompletionFactSnapshot is the cached set of facts together with the time it was fetched.
type CompletionFactSnapshot struct {
	Facts     []CompletionFact `json:"facts"`
	FetchedAt time.Time        `json:"fetchedAt"`
}
