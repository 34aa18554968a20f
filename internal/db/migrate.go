package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migration is one additive, idempotent schema change. applied introspects
// engine metadata to decide whether the step already ran; there is no version
// table, so re-running migrations is always safe and ordering is self-evident
// from the checks.
type migration struct {
	name    string
	applied func(ctx context.Context, s *store) (bool, error)
	apply   func(ctx context.Context, s *store) error
}

// runMigrations applies pending migrations in order. Any failure aborts
// adapter construction rather than leaving a half-migrated store in service.
func (s *store) runMigrations(ctx context.Context, migrations []migration) error {
	for _, m := range migrations {
		done, err := m.applied(ctx, s)
		if err != nil {
			return fmt.Errorf("migration %s: introspect: %w", m.name, err)
		}
		if done {
			continue
		}
		log.Info().Str("engine", s.d.name()).Str("migration", m.name).Msg("applying schema migration")
		if err := m.apply(ctx, s); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

// backfillProjectID copies user_name into project_id for rows created before
// the column existed. Shared by every engine's project_id migration.
const backfillProjectID = `UPDATE sessions SET project_id = user_name WHERE project_id IS NULL OR project_id = ''`

// initSchema executes the engine's idempotent table and index DDL. Statements
// run one at a time; every one is safe to re-run on process start.
func (s *store) initSchema(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
