package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/memkeep/memkeep/pkg/models"
)

// store is the shared query layer. All three engines execute the same
// statements through their dialect; only placeholder syntax, auto-increment
// mechanics and date arithmetic differ.
type store struct {
	db *sql.DB
	d  dialect
}

func (s *store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// insertID runs an insert and returns the auto-assigned ID, using RETURNING
// where the engine requires it.
func (s *store) insertID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if s.d.useReturning() {
		var id int64
		err := s.db.QueryRowContext(ctx, s.d.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	result, err := s.db.ExecContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Health checks database connectivity.
func (s *store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *store) Close() error {
	return s.db.Close()
}

// Sessions

// CreateSession creates a new session. The caller supplies the ID; a zero
// start time defaults to now.
func (s *store) CreateSession(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	session.CreatedAt = now
	session.UpdatedAt = now

	const query = `
		INSERT INTO sessions (id, user_name, project_id, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.exec(ctx, query,
		session.ID, session.UserName, session.ProjectID,
		session.StartedAt.UTC(), now, now,
	)
	return err
}

const sessionColumns = `id, user_name, COALESCE(project_id, ''), started_at, ended_at, summary, created_at, updated_at`

// GetSession retrieves a session by ID. Returns nil when no session matches.
func (s *store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	sess, err := scanSession(s.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// GetLatestSession retrieves the most recently started session for a user.
func (s *store) GetLatestSession(ctx context.Context, userName string) (*models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_name = ?
		ORDER BY started_at DESC
		LIMIT 1
	`

	sess, err := scanSession(s.queryRow(ctx, query, userName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// EndSession closes a session with the supplied summary. The end time, once
// set, is never cleared by any operation in this package.
func (s *store) EndSession(ctx context.Context, id, summary string) error {
	const query = `UPDATE sessions SET ended_at = ?, summary = ?, updated_at = ? WHERE id = ?`
	now := time.Now().UTC()
	_, err := s.exec(ctx, query, now, summary, now, id)
	return err
}

// GetRecentSessions lists sessions by start time descending.
func (s *store) GetRecentSessions(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessionRows(rows)
}

// Observations

const observationColumns = `id, session_id, agent_name, type, content, importance, tags, created_at`

// CreateObservation records an observation. The assigned ID and creation
// time are written back into obs.
func (s *store) CreateObservation(ctx context.Context, obs *models.Observation) error {
	if obs.Importance == 0 {
		obs.Importance = models.DefaultImportance
	}
	if obs.Tags == nil {
		obs.Tags = models.TagList{}
	}
	now := time.Now().UTC()

	const query = `
		INSERT INTO observations (session_id, agent_name, type, content, importance, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := s.insertID(ctx, query,
		obs.SessionID, obs.AgentName, obs.Type, obs.Content,
		obs.Importance, obs.Tags, now,
	)
	if err != nil {
		return err
	}
	obs.ID = id
	obs.CreatedAt = now
	return nil
}

// GetObservations lists a session's observations, newest first.
func (s *store) GetObservations(ctx context.Context, sessionID string, limit int) ([]models.Observation, error) {
	if limit <= 0 {
		limit = DefaultObservationLimit
	}
	const query = `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanObservationRows(rows)
}

// GetRecentObservations lists a user's observations across sessions,
// highest importance first, then newest first.
func (s *store) GetRecentObservations(ctx context.Context, userName string, limit int) ([]models.Observation, error) {
	if limit <= 0 {
		limit = DefaultRecentObservationLimit
	}
	const query = `
		SELECT o.id, o.session_id, o.agent_name, o.type, o.content, o.importance, o.tags, o.created_at
		FROM observations o
		JOIN sessions s ON o.session_id = s.id
		WHERE s.user_name = ?
		ORDER BY o.importance DESC, o.created_at DESC
		LIMIT ?
	`

	rows, err := s.query(ctx, query, userName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanObservationRows(rows)
}

// ListObservations lists observations matching the filter, newest first.
// Unset filter fields leave their column unconstrained.
func (s *store) ListObservations(ctx context.Context, filter ObservationFilter) ([]models.Observation, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultObservationLimit
	}

	query := `SELECT ` + observationColumns + ` FROM observations`
	var conds []string
	var args []interface{}
	if filter.SessionID != nil {
		conds = append(conds, "session_id = ?")
		args = append(args, *filter.SessionID)
	}
	if filter.Type != nil {
		conds = append(conds, "type = ?")
		args = append(args, *filter.Type)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanObservationRows(rows)
}

// SearchObservations returns observations whose content contains the query
// substring. Matching is case-insensitive for ASCII on every engine: MySQL's
// utf8mb4_unicode_ci collation already folded case and the other engines are
// pinned to agree via LOWER(). LOWER() folds only ASCII on sqlite, so
// non-ASCII case folding (and accent folding on mysql) stays
// engine-dependent; exact non-ASCII substrings match everywhere.
func (s *store) SearchObservations(ctx context.Context, query string, limit int) ([]models.Observation, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	const sqlQuery = `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE LOWER(content) LIKE LOWER(?)
		ORDER BY importance DESC, created_at DESC
		LIMIT ?
	`

	rows, err := s.query(ctx, sqlQuery, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanObservationRows(rows)
}

// Summaries

const summaryColumns = `id, session_id, type, content, created_at`

// CreateSummary records a summary. The assigned ID and creation time are
// written back.
func (s *store) CreateSummary(ctx context.Context, summary *models.Summary) error {
	now := time.Now().UTC()

	const query = `INSERT INTO summaries (session_id, type, content, created_at) VALUES (?, ?, ?, ?)`
	id, err := s.insertID(ctx, query, summary.SessionID, summary.Type, summary.Content, now)
	if err != nil {
		return err
	}
	summary.ID = id
	summary.CreatedAt = now
	return nil
}

// GetSummaries lists summaries of one type, newest first.
func (s *store) GetSummaries(ctx context.Context, summaryType string, limit int) ([]models.Summary, error) {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	const query = `
		SELECT ` + summaryColumns + `
		FROM summaries
		WHERE type = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.query(ctx, query, summaryType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSummaryRows(rows)
}

// GetAllSummaries lists summaries created within the last N days, newest
// first. This is the one predicate that uses engine date arithmetic.
func (s *store) GetAllSummaries(ctx context.Context, days, limit int) ([]models.Summary, error) {
	if days <= 0 {
		days = DefaultSummaryWindowDays
	}
	if limit <= 0 {
		limit = DefaultAllSummariesLimit
	}
	query := `
		SELECT ` + summaryColumns + `
		FROM summaries
		WHERE ` + s.d.sinceDays("created_at") + `
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.query(ctx, query, days, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSummaryRows(rows)
}

// Plans

const planColumns = `id, session_id, title, content, status, file_path, created_at, updated_at`

// CreatePlan records a plan. Plans always start in "draft" no matter what
// status the caller set; the assigned ID and timestamps are written back.
func (s *store) CreatePlan(ctx context.Context, plan *models.Plan) error {
	now := time.Now().UTC()

	const query = `
		INSERT INTO plans (session_id, title, content, status, file_path, created_at, updated_at)
		VALUES (?, ?, ?, 'draft', ?, ?, ?)
	`
	id, err := s.insertID(ctx, query, plan.SessionID, plan.Title, plan.Content, plan.FilePath, now, now)
	if err != nil {
		return err
	}
	plan.ID = id
	plan.Status = models.PlanStatusDraft
	plan.CreatedAt = now
	plan.UpdatedAt = now
	return nil
}

// GetActivePlan returns the user's most recently updated active plan. When
// several plans are active, the last-touched one wins.
func (s *store) GetActivePlan(ctx context.Context, userName string) (*models.Plan, error) {
	const query = `
		SELECT p.id, p.session_id, p.title, p.content, p.status, p.file_path, p.created_at, p.updated_at
		FROM plans p
		JOIN sessions s ON p.session_id = s.id
		WHERE s.user_name = ? AND p.status = 'active'
		ORDER BY p.updated_at DESC
		LIMIT 1
	`

	plan, err := scanPlan(s.queryRow(ctx, query, userName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return plan, err
}

// GetAllPlans lists plans by update time descending, optionally restricted
// to one session.
func (s *store) GetAllPlans(ctx context.Context, sessionID *string, limit int) ([]models.Plan, error) {
	if limit <= 0 {
		limit = DefaultPlanLimit
	}

	query := `SELECT ` + planColumns + ` FROM plans`
	var args []interface{}
	if sessionID != nil {
		query += ` WHERE session_id = ?`
		args = append(args, *sessionID)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlanRows(rows)
}

// UpdatePlanStatus sets a plan's status and bumps its update time, which is
// what makes the plan authoritative for GetActivePlan.
func (s *store) UpdatePlanStatus(ctx context.Context, id int64, status string) error {
	const query = `UPDATE plans SET status = ?, updated_at = ? WHERE id = ?`
	_, err := s.exec(ctx, query, status, time.Now().UTC(), id)
	return err
}

// Aggregates

// GetTeamContext summarizes the other users: the start of each user's most
// recent closed session, that session's summary, and the title of their most
// recently updated active plan.
func (s *store) GetTeamContext(ctx context.Context, excludeUser string) ([]models.TeamContext, error) {
	const query = `
		SELECT u.user_name,
		       u.last_activity,
		       COALESCE((SELECT s2.summary FROM sessions s2
		                 WHERE s2.user_name = u.user_name AND s2.ended_at IS NOT NULL
		                 ORDER BY s2.started_at DESC LIMIT 1), ''),
		       COALESCE((SELECT p.title FROM plans p
		                 JOIN sessions s3 ON p.session_id = s3.id
		                 WHERE s3.user_name = u.user_name AND p.status = 'active'
		                 ORDER BY p.updated_at DESC LIMIT 1), '')
		FROM (SELECT user_name, MAX(started_at) AS last_activity
		      FROM sessions
		      WHERE user_name <> ? AND ended_at IS NOT NULL
		      GROUP BY user_name) u
		ORDER BY u.last_activity DESC
		LIMIT ?
	`

	rows, err := s.query(ctx, query, excludeUser, teamContextLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contexts []models.TeamContext
	for rows.Next() {
		var tc models.TeamContext
		var last scanTime
		if err := rows.Scan(&tc.UserName, &last, &tc.Summary, &tc.ActivePlan); err != nil {
			return nil, err
		}
		tc.LastActivity = last.t
		contexts = append(contexts, tc)
	}
	return contexts, rows.Err()
}

// GetProjects aggregates sessions per project identifier, most recently
// active first.
func (s *store) GetProjects(ctx context.Context) ([]models.Project, error) {
	const query = `
		SELECT project_id,
		       project_id AS path,
		       COUNT(*) AS session_count,
		       MAX(started_at) AS last_activity
		FROM sessions
		WHERE project_id IS NOT NULL AND project_id <> ''
		GROUP BY project_id
		ORDER BY last_activity DESC
	`

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var last scanTime
		if err := rows.Scan(&p.ID, &p.Path, &p.SessionCount, &last); err != nil {
			return nil, err
		}
		p.LastActivity = last.t
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Scan helpers

func scanSession(scanner interface{ Scan(...interface{}) error }) (*models.Session, error) {
	var sess models.Session
	var endedAt sql.NullTime
	var summary sql.NullString
	if err := scanner.Scan(
		&sess.ID, &sess.UserName, &sess.ProjectID, &sess.StartedAt,
		&endedAt, &summary, &sess.CreatedAt, &sess.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sess.EndedAt = timePtr(endedAt)
	sess.Summary = strPtr(summary)
	return &sess, nil
}

func scanSessionRows(rows *sql.Rows) ([]models.Session, error) {
	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func scanObservation(scanner interface{ Scan(...interface{}) error }) (*models.Observation, error) {
	var obs models.Observation
	var agentName sql.NullString
	if err := scanner.Scan(
		&obs.ID, &obs.SessionID, &agentName, &obs.Type,
		&obs.Content, &obs.Importance, &obs.Tags, &obs.CreatedAt,
	); err != nil {
		return nil, err
	}
	obs.AgentName = strPtr(agentName)
	return &obs, nil
}

func scanObservationRows(rows *sql.Rows) ([]models.Observation, error) {
	var observations []models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}
	return observations, rows.Err()
}

func scanSummary(scanner interface{ Scan(...interface{}) error }) (*models.Summary, error) {
	var sum models.Summary
	var sessionID sql.NullString
	if err := scanner.Scan(&sum.ID, &sessionID, &sum.Type, &sum.Content, &sum.CreatedAt); err != nil {
		return nil, err
	}
	sum.SessionID = strPtr(sessionID)
	return &sum, nil
}

func scanSummaryRows(rows *sql.Rows) ([]models.Summary, error) {
	var summaries []models.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *sum)
	}
	return summaries, rows.Err()
}

func scanPlan(scanner interface{ Scan(...interface{}) error }) (*models.Plan, error) {
	var plan models.Plan
	var sessionID, filePath sql.NullString
	if err := scanner.Scan(
		&plan.ID, &sessionID, &plan.Title, &plan.Content,
		&plan.Status, &filePath, &plan.CreatedAt, &plan.UpdatedAt,
	); err != nil {
		return nil, err
	}
	plan.SessionID = strPtr(sessionID)
	plan.FilePath = strPtr(filePath)
	return &plan, nil
}

func scanPlanRows(rows *sql.Rows) ([]models.Plan, error) {
	var plans []models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

// scanTime scans engine-native timestamps. Computed columns like
// MAX(started_at) carry no declared type on sqlite, so the driver hands back
// the raw TEXT instead of a time.Time; the other engines return time.Time.
type scanTime struct {
	t time.Time
}

var textTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (st *scanTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		st.t = v
		return nil
	case string:
		return st.parse(v)
	case []byte:
		return st.parse(string(v))
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
}

func (st *scanTime) parse(v string) error {
	var err error
	for _, layout := range textTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, v); err == nil {
			st.t = t
			return nil
		}
	}
	return fmt.Errorf("scan time: %w", err)
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
