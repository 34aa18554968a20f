package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindPositional(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "no placeholders",
			query: "SELECT 1",
			want:  "SELECT 1",
		},
		{
			name:  "single placeholder",
			query: "SELECT id FROM sessions WHERE id = ?",
			want:  "SELECT id FROM sessions WHERE id = $1",
		},
		{
			name:  "multiple placeholders numbered in order",
			query: "UPDATE plans SET status = ?, updated_at = ? WHERE id = ?",
			want:  "UPDATE plans SET status = $1, updated_at = $2 WHERE id = $3",
		},
		{
			name:  "double digit placeholders",
			query: "VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			want:  "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rebindPositional(tt.query))
		})
	}
}

func TestDialects(t *testing.T) {
	tests := []struct {
		d             dialect
		name          string
		useReturning  bool
		rebindChanges bool
		sinceDays     string
	}{
		{
			d:         sqliteDialect{},
			name:      "sqlite",
			sinceDays: `created_at >= datetime('now', '-' || ? || ' days')`,
		},
		{
			d:         mysqlDialect{},
			name:      "mysql",
			sinceDays: `created_at >= DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? DAY)`,
		},
		{
			d:             postgresDialect{},
			name:          "postgres",
			useReturning:  true,
			rebindChanges: true,
			sinceDays:     `created_at >= NOW() - make_interval(days => ?)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.d.name())
			assert.Equal(t, tt.useReturning, tt.d.useReturning())

			const query = "SELECT 1 WHERE a = ?"
			rebound := tt.d.rebind(query)
			if tt.rebindChanges {
				assert.Equal(t, "SELECT 1 WHERE a = $1", rebound)
			} else {
				assert.Equal(t, query, rebound)
			}

			// Rows are written with UTC timestamps, so every engine's window
			// anchor must itself be UTC. mysql's NOW() is session-local and
			// must not reappear here.
			assert.Equal(t, tt.sinceDays, tt.d.sinceDays("created_at"))
		})
	}
}
