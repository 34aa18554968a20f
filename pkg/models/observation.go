package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ObservationType is a free-form category tag for observations.
// Common values: decision, bugfix, feature, learning, blocker.
type ObservationType = string

// DefaultImportance is the importance assigned when the caller leaves it zero.
const DefaultImportance = 3

// TagList is an ordered list of string tags stored as a JSON array.
//
// An empty (or nil) list serializes to the literal "[]", never to NULL, so
// the encoding round-trips losslessly on every engine.
type TagList []string

// Value implements driver.Valuer.
func (t TagList) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]string(t))
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner. NULL and empty values decode to an empty list.
func (t *TagList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = TagList{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("decode tags: unsupported type %T", src)
	}
	if len(data) == 0 {
		*t = TagList{}
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	*t = tags
	return nil
}

// Observation is a single timestamped fact recorded during a session: a
// decision, bug fix, learning, blocker and so on. Observations are written
// once and never updated; they are removed only by the engine's cascade when
// their session is deleted.
type Observation struct {
	ID         int64           `json:"id" db:"id"`
	SessionID  string          `json:"session_id" db:"session_id"`
	AgentName  *string         `json:"agent_name,omitempty" db:"agent_name"`
	Type       ObservationType `json:"type" db:"type"`
	Content    string          `json:"content" db:"content"`
	Importance int             `json:"importance" db:"importance"`
	Tags       TagList         `json:"tags" db:"tags"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
