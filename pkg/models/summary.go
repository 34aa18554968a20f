package models

import "time"

// Summary is a free-text rollup, optionally tied to a session. Its session
// reference is cleared (not cascaded) when the session is deleted, so a
// summary outlives the session it was written for.
type Summary struct {
	ID        int64     `json:"id" db:"id"`
	SessionID *string   `json:"session_id,omitempty" db:"session_id"`
	Type      string    `json:"type" db:"type"` // session, daily, weekly
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
