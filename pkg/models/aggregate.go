package models

import "time"

// TeamContext is a computed per-user view over other users' closed sessions:
// the start time of the most recent closed session, that session's summary,
// and the title of the most recently updated active plan. It is never stored.
type TeamContext struct {
	UserName     string    `json:"user_name" db:"user_name"`
	LastActivity time.Time `json:"last_activity" db:"last_activity"`
	Summary      string    `json:"summary" db:"summary"`
	ActivePlan   string    `json:"active_plan,omitempty" db:"active_plan"`
}

// Project is a computed per-project aggregate over sessions. It is never
// stored; the path mirrors the project identifier for legacy rows.
type Project struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	SessionCount int       `json:"session_count"`
	LastActivity time.Time `json:"last_activity"`
}
