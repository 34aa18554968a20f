// Package db persists memkeep's working memory: sessions, observations,
// summaries and plans. One behavioral contract (Adapter) is honored
// identically by three relational engines: embedded SQLite for the
// solo-laptop profile, MySQL and PostgreSQL for shared team servers. Callers
// can switch deployment profiles without changing application logic.
//
// Every operation is a single SQL statement plus one record-mapping step.
// Absence of data is never an error: lookups that match nothing return an
// empty result, and only real I/O or constraint failures surface as errors.
// There is no retry logic anywhere in this package; retry and backoff policy
// belong to the caller.
package db

import (
	"context"
	"fmt"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/pkg/models"
)

// Default limits applied when the caller passes a non-positive value.
// They keep unbounded scans from becoming unbounded result sets.
const (
	DefaultSessionLimit           = 20
	DefaultObservationLimit       = 100
	DefaultRecentObservationLimit = 50
	DefaultSearchLimit            = 50
	DefaultSummaryLimit           = 50
	DefaultSummaryWindowDays      = 7
	DefaultAllSummariesLimit      = 100
	DefaultPlanLimit              = 50

	teamContextLimit = 10
)

// ObservationFilter narrows ListObservations. A nil field means no filter on
// that column; an empty string is a real value, not a wildcard.
type ObservationFilter struct {
	SessionID *string
	Type      *string
	Limit     int // non-positive means DefaultObservationLimit
}

// Adapter is the persistence contract consumed by the worker's network
// layer. Implementations are safe for concurrent use; the only mutable state
// behind them is the pooled connection handle. All methods abort cleanly
// when the context is cancelled; a statement either completed and is
// durable, or it did not run.
type Adapter interface {
	// CreateSession records a new session. The caller supplies the ID.
	CreateSession(ctx context.Context, session *models.Session) error
	// GetSession returns the session with the given ID, or nil if none.
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// GetLatestSession returns the user's most recently started session,
	// or nil if the user has none.
	GetLatestSession(ctx context.Context, userName string) (*models.Session, error)
	// EndSession closes a session, setting its end time and closing summary.
	EndSession(ctx context.Context, id, summary string) error
	// GetRecentSessions lists sessions by start time descending.
	// Default limit: 20.
	GetRecentSessions(ctx context.Context, limit int) ([]models.Session, error)

	// CreateObservation records an observation and writes the assigned ID
	// back into obs. A zero importance becomes models.DefaultImportance.
	CreateObservation(ctx context.Context, obs *models.Observation) error
	// GetObservations lists a session's observations by creation time
	// descending. Default limit: 100.
	GetObservations(ctx context.Context, sessionID string, limit int) ([]models.Observation, error)
	// GetRecentObservations lists a user's observations by importance
	// descending, then creation time descending. Default limit: 50.
	GetRecentObservations(ctx context.Context, userName string, limit int) ([]models.Observation, error)
	// ListObservations lists observations matching the filter by creation
	// time descending. Default limit: 100.
	ListObservations(ctx context.Context, filter ObservationFilter) ([]models.Observation, error)
	// SearchObservations returns observations whose content contains the
	// query substring, by importance descending then creation time
	// descending. Matching is case-insensitive for ASCII on every engine;
	// non-ASCII case folding is engine-dependent. Default limit: 50.
	SearchObservations(ctx context.Context, query string, limit int) ([]models.Observation, error)

	// CreateSummary records a summary and writes the assigned ID back.
	CreateSummary(ctx context.Context, summary *models.Summary) error
	// GetSummaries lists summaries of one type by creation time descending.
	// Default limit: 50.
	GetSummaries(ctx context.Context, summaryType string, limit int) ([]models.Summary, error)
	// GetAllSummaries lists summaries created within the last N days by
	// creation time descending. Defaults: 7 days, limit 100.
	GetAllSummaries(ctx context.Context, days, limit int) ([]models.Summary, error)

	// CreatePlan records a plan in status "draft" regardless of the status
	// on the passed record, and writes the assigned ID back.
	CreatePlan(ctx context.Context, plan *models.Plan) error
	// GetActivePlan returns the user's most recently updated active plan,
	// or nil if none exists.
	GetActivePlan(ctx context.Context, userName string) (*models.Plan, error)
	// GetAllPlans lists plans, optionally for one session, by update time
	// descending. Default limit: 50.
	GetAllPlans(ctx context.Context, sessionID *string, limit int) ([]models.Plan, error)
	// UpdatePlanStatus sets a plan's status and bumps its update time.
	UpdatePlanStatus(ctx context.Context, id int64, status string) error

	// GetTeamContext summarizes other users' latest closed sessions and
	// active plans, by last activity descending, capped at 10.
	GetTeamContext(ctx context.Context, excludeUser string) ([]models.TeamContext, error)
	// GetProjects aggregates session counts per project identifier, by last
	// activity descending.
	GetProjects(ctx context.Context) ([]models.Project, error)

	// Health checks engine connectivity.
	Health(ctx context.Context) error
	// Close releases the connection pool.
	Close() error
}

// Open constructs the adapter for the engine selected in cfg. Construction
// runs schema initialization and migrations; a store that cannot confirm its
// schema never comes into service.
func Open(cfg config.Config) (Adapter, error) {
	switch cfg.Engine {
	case config.EngineSQLite:
		return NewSQLite(cfg)
	case config.EngineMySQL:
		return NewMySQL(cfg)
	case config.EnginePostgres:
		return NewPostgres(cfg)
	default:
		return nil, fmt.Errorf("db: unknown engine %q", cfg.Engine)
	}
}
