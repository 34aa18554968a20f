package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/memkeep/memkeep/internal/config"
)

// Postgres implements Adapter for a shared PostgreSQL server.
type Postgres struct {
	store
}

var postgresTables = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(255) PRIMARY KEY,
		user_name VARCHAR(255) NOT NULL,
		project_id VARCHAR(500),
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		summary TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id BIGSERIAL PRIMARY KEY,
		session_id VARCHAR(255) NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		agent_name VARCHAR(255),
		type VARCHAR(50) NOT NULL,
		content TEXT NOT NULL,
		importance INT NOT NULL DEFAULT 3,
		tags JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id BIGSERIAL PRIMARY KEY,
		session_id VARCHAR(255) REFERENCES sessions(id) ON DELETE SET NULL,
		type VARCHAR(50) NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id BIGSERIAL PRIMARY KEY,
		session_id VARCHAR(255) REFERENCES sessions(id) ON DELETE SET NULL,
		title VARCHAR(500) NOT NULL,
		content TEXT NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'draft',
		file_path VARCHAR(1000),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Indexes run after migrations so columns added to legacy databases exist
// before anything references them.
var postgresIndexes = []string{
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

// NewPostgres connects to the server and readies the schema. The pool is
// sized for the shared-team profile.
func NewPostgres(cfg config.Config) (*Postgres, error) {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=prefer",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	m := &Postgres{store: store{db: db, d: postgresDialect{}}}

	ctx := context.Background()
	if err := m.Health(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := m.initSchema(ctx, postgresTables); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.runMigrations(ctx, postgresMigrations()); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.initSchema(ctx, postgresIndexes); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("engine", "postgres").Str("host", cfg.Host).Str("database", cfg.Database).Msg("store ready")
	return m, nil
}

// postgresMigrations gates each step on information_schema introspection.
func postgresMigrations() []migration {
	return []migration{
		{
			name: "sessions_project_id",
			applied: func(ctx context.Context, s *store) (bool, error) {
				return postgresColumnExists(ctx, s, "sessions", "project_id")
			},
			apply: func(ctx context.Context, s *store) error {
				if _, err := s.db.ExecContext(ctx, `ALTER TABLE sessions ADD COLUMN project_id VARCHAR(500)`); err != nil {
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

func postgresColumnExists(ctx context.Context, s *store, table, column string) (bool, error) {
	const query = `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, table, column).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) rebind(query string) string { return rebindPositional(query) }

func (postgresDialect) useReturning() bool { return true }

func (postgresDialect) sinceDays(column string) string {
	return column + ` >= NOW() - make_interval(days => ?)`
}
