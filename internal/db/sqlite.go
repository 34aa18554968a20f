package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/memkeep/memkeep/internal/config"
)

// SQLite implements Adapter for the embedded single-file engine.
//
// SQLite allows one writer at a time. The adapter does not paper over this:
// concurrent writers block on the busy timeout (5s) and may still fail under
// sustained contention. Callers choosing the solo-laptop profile accept that
// limitation; the client/server engines do not have it.
type SQLite struct {
	store
}

var sqliteTables = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		project_id TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		summary TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		agent_name TEXT,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		importance INTEGER NOT NULL DEFAULT 3,
		tags TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		file_path TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE SET NULL
	)`,
}

// Indexes run after migrations so columns added to legacy databases exist
// before anything references them.
var sqliteIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_name ON sessions(user_name)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_project_id ON sessions(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_session_id ON observations(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_type ON observations(type)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_importance ON observations(importance)`,
	`CREATE INDEX IF NOT EXISTS idx_summaries_type ON summaries(type)`,
	`CREATE INDEX IF NOT EXISTS idx_summaries_session_id ON summaries(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status)`,
	`CREATE INDEX IF NOT EXISTS idx_plans_session_id ON plans(session_id)`,
}

// NewSQLite opens (creating if needed) the database file and readies the
// schema. WAL mode and the busy timeout make concurrent reads cheap; foreign
// keys must be enabled per connection for the referential actions to fire.
func NewSQLite(cfg config.Config) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := "file:" + cfg.Path +
		"?_time_format=sqlite" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Fixed small pool regardless of the cfg pool fields, which size the
	// client/server engines; sqlite connections are cheap and writes
	// serialize on the file lock anyway.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	m := &SQLite{store: store{db: db, d: sqliteDialect{}}}

	ctx := context.Background()
	if err := m.Health(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := m.initSchema(ctx, sqliteTables); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.runMigrations(ctx, sqliteMigrations()); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.initSchema(ctx, sqliteIndexes); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("engine", "sqlite").Str("path", cfg.Path).Msg("store ready")
	return m, nil
}

// sqliteMigrations gates each step on pragma_table_info introspection.
func sqliteMigrations() []migration {
	return []migration{
		{
			name: "sessions_project_id",
			applied: func(ctx context.Context, s *store) (bool, error) {
				return sqliteColumnExists(ctx, s, "sessions", "project_id")
			},
			apply: func(ctx context.Context, s *store) error {
				if _, err := s.db.ExecContext(ctx, `ALTER TABLE sessions ADD COLUMN project_id TEXT`); err != nil {
					return fmt.Errorf("add project_id to sessions: %w", err)
				}
				if _, err := s.db.ExecContext(ctx, backfillProjectID); err != nil {
					return fmt.Errorf("backfill project_id: %w", err)
				}
				return nil
			},
		},
	}
}

func sqliteColumnExists(ctx context.Context, s *store, table, column string) (bool, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = ?`, table)
	var count int
	if err := s.db.QueryRowContext(ctx, query, column).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) useReturning() bool { return false }

func (sqliteDialect) sinceDays(column string) string {
	return column + ` >= datetime('now', '-' || ? || ' days')`
}
