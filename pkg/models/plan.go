package models

import "time"

// PlanStatus is the lifecycle status of a plan.
type PlanStatus = string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
)

// Plan is a titled, stateful work item. Plans always start in "draft".
// Several plans may be "active" at once; the most recently updated one wins
// when a single authoritative plan is requested.
type Plan struct {
	ID        int64      `json:"id" db:"id"`
	SessionID *string    `json:"session_id,omitempty" db:"session_id"`
	Title     string     `json:"title" db:"title"`
	Content   string     `json:"content" db:"content"`
	Status    PlanStatus `json:"status" db:"status"`
	FilePath  *string    `json:"file_path,omitempty" db:"file_path"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
