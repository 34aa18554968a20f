// Package models contains domain records for memkeep.
package models

import "time"

// Session represents one bounded unit of interactive work, owned by a user
// and optionally tied to a project.
//
// EndedAt is nil while the session is active. Once set by EndSession it is
// never cleared; sessions are closed exactly once and never hard-deleted.
type Session struct {
	ID        string     `json:"id" db:"id"`
	UserName  string     `json:"user_name" db:"user_name"`
	ProjectID string     `json:"project_id,omitempty" db:"project_id"`
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	Summary   *string    `json:"summary,omitempty" db:"summary"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Active reports whether the session has not been ended yet.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}
