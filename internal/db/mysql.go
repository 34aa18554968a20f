package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/memkeep/memkeep/internal/config"
)

// MySQL implements Adapter for a shared MySQL server.
type MySQL struct {
	store
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(255) PRIMARY KEY,
		user_name VARCHAR(255) NOT NULL,
		project_id VARCHAR(500),
		started_at DATETIME(6) NOT NULL,
		ended_at DATETIME(6),
		summary TEXT,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_sessions_user_name (user_name),
		INDEX idx_sessions_started_at (started_at),
		INDEX idx_sessions_project_id (project_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS observations (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		session_id VARCHAR(255) NOT NULL,
		agent_name VARCHAR(255),
		type VARCHAR(50) NOT NULL,
		content TEXT NOT NULL,
		importance INT NOT NULL DEFAULT 3,
		tags JSON,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_observations_session_id (session_id),
		INDEX idx_observations_type (type),
		INDEX idx_observations_importance (importance),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		session_id VARCHAR(255),
		type VARCHAR(50) NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_summaries_type (type),
		INDEX idx_summaries_session_id (session_id),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS plans (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		session_id VARCHAR(255),
		title VARCHAR(500) NOT NULL,
		content TEXT NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'draft',
		file_path VARCHAR(1000),
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_plans_status (status),
		INDEX idx_plans_session_id (session_id),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

// NewMySQL connects to the server and readies the schema. The pool is sized
// for the shared-team profile.
func NewMySQL(cfg config.Config) (*MySQL, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	m := &MySQL{store: store{db: db, d: mysqlDialect{}}}

	ctx := context.Background()
	if err := m.Health(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := m.initSchema(ctx, mysqlSchema); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.runMigrations(ctx, mysqlMigrations()); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("engine", "mysql").Str("host", cfg.Host).Str("database", cfg.Database).Msg("store ready")
	return m, nil
}

// mysqlMigrations gates each step on INFORMATION_SCHEMA introspection.
func mysqlMigrations() []migration {
	return []migration{
		{
			name: "sessions_project_id",
			applied: func(ctx context.Context, s *store) (bool, error) {
				return mysqlColumnExists(ctx, s, "sessions", "project_id")
			},
			apply: func(ctx context.Context, s *store) error {
				if _, err := s.db.ExecContext(ctx, `ALTER TABLE sessions ADD COLUMN project_id VARCHAR(500) AFTER user_name`); err != nil {
					return fmt.Errorf("add project_id to sessions: %w", err)
				}
				// MySQL has no CREATE INDEX IF NOT EXISTS; tolerate a
				// duplicate-index error from an earlier partial run.
				if _, err := s.db.ExecContext(ctx, `CREATE INDEX idx_sessions_project_id ON sessions(project_id)`); err != nil {
					log.Warn().Err(err).Msg("project_id index creation skipped")
				}
				if _, err := s.db.ExecContext(ctx, backfillProjectID); err != nil {
					return fmt.Errorf("backfill project_id: %w", err)
				}
				return nil
			},
		},
	}
}

func mysqlColumnExists(ctx context.Context, s *store, table, column string) (bool, error) {
	const query = `
		SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, table, column).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type mysqlDialect struct{}

func (mysqlDialect) name() string { return "mysql" }

func (mysqlDialect) rebind(query string) string { return query }

func (mysqlDialect) useReturning() bool { return false }

// Timestamps are bound from Go in UTC, so the window anchor must be
// UTC_TIMESTAMP(); NOW() is session-local and would shift the window by the
// server's offset.
func (mysqlDialect) sinceDays(column string) string {
	return column + ` >= DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? DAY)`
}
