/*
Package sqlite provides the SQLite-backed rewards.Store.

PURPOSE:
  Embedded production store. The same patterns carry to PostgreSQL -
  only minor dialect differences.

KEY TABLES:
  point_requests:    submitted requests with their status and dates
  points:            awarded ledger entries
  categories_legacy: legacy category registry (name + code)
  categories:        current category registry (name + category_code)
  users:             employee records
  reward_config:     single-row JSON configuration document

CONSTRAINTS:
  - points.request_id carries a UNIQUE index: one ledger entry per
    originating request, enforced by the database.
  - Status transitions run as a conditional UPDATE ... WHERE status =
    'Pending'; zero rows affected means another validator won the race.

DATE PREFILTER:
  A filter window compiles to an OR across the request's date columns.
  This is deliberately wider than the effective-date rule; callers
  re-resolve in process. The grouped ledger sum windows on the
  effective date (event_date, else award_date) instead: its totals
  cannot be re-checked in process, so the window must be exact.

TIMESTAMPS:
  Stored as fixed-width UTC text (see timeLayout) so lexicographic
  comparison in WHERE clauses matches chronological order.

WAL MODE:
  Opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./data/points.db")
  if err != nil { ... }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vantage/points-engine/rewards"
)

// Store implements rewards.Store over SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an ephemeral database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS point_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		points INTEGER NOT NULL,
		is_bonus BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'Pending',
		event_date TEXT,
		request_date TEXT,
		award_date TEXT,
		response_date TEXT,
		utilization_value REAL,
		submission_json TEXT,
		processed_by TEXT,
		processed_date TEXT,
		processed_dept TEXT,
		response_notes TEXT,
		manager_notes TEXT,
		attachment_id TEXT,
		attachment_name TEXT,
		has_attachment BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_user_status
		ON point_requests(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON point_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_request_date
		ON point_requests(request_date);

	CREATE TABLE IF NOT EXISTS points (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		points INTEGER NOT NULL,
		is_bonus BOOLEAN NOT NULL DEFAULT FALSE,
		award_date TEXT,
		event_date TEXT,
		awarded_by TEXT,
		notes TEXT,
		request_id TEXT
	);

	-- CRITICAL: one ledger entry per originating request. A retried
	-- approval hits this index instead of double-crediting.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_points_request_ref
		ON points(request_id) WHERE request_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_points_user
		ON points(user_id);
	CREATE INDEX IF NOT EXISTS idx_points_award_date
		ON points(award_date);

	CREATE TABLE IF NOT EXISTS categories_legacy (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT,
		department TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		is_bonus BOOLEAN NOT NULL DEFAULT FALSE,
		grade_points_json TEXT,
		grade_limits_json TEXT,
		points_per_unit INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category_code TEXT,
		department TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		is_bonus BOOLEAN NOT NULL DEFAULT FALSE,
		grade_points_json TEXT,
		grade_limits_json TEXT,
		points_per_unit INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		grade TEXT,
		department TEXT,
		role TEXT NOT NULL,
		manager_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_users_role
		ON users(role);

	-- Single-row configuration document.
	CREATE TABLE IF NOT EXISTS reward_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// POINT REQUESTS
// =============================================================================

const requestColumns = `id, user_id, category_id, points, is_bonus, status,
	event_date, request_date, award_date, response_date,
	utilization_value, submission_json,
	processed_by, processed_date, processed_dept, response_notes, manager_notes,
	attachment_id, attachment_name, has_attachment, created_at`

func (s *Store) GetRequest(ctx context.Context, id rewards.RequestID) (*rewards.PointRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM point_requests WHERE id = ?`, id)

	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, rewards.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) FindRequests(ctx context.Context, f rewards.RequestFilter) ([]rewards.PointRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM point_requests`
	where, args := requestWhere(f)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []rewards.PointRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) InsertRequest(ctx context.Context, r *rewards.PointRequest) error {
	submissionJSON, _ := json.Marshal(r.Submission)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO point_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.CategoryID, r.Points, r.IsBonus, r.Status,
		timePtr(r.EventDate), timePtr(r.RequestDate), timePtr(r.AwardDate), timePtr(r.ResponseDate),
		r.UtilizationValue, string(submissionJSON),
		nullString(string(r.ProcessedBy)), timePtr(r.ProcessedDate), r.ProcessedDept,
		r.ResponseNotes, r.ManagerNotes,
		nullString(r.AttachmentID), r.AttachmentName, r.HasAttachment,
		fmtTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (s *Store) TransitionRequest(ctx context.Context, id rewards.RequestID, next rewards.RequestStatus, meta rewards.ProcessedMeta) (*rewards.PointRequest, error) {
	at := fmtTime(meta.At)

	res, err := s.db.ExecContext(ctx, `
		UPDATE point_requests
		SET status = ?, processed_by = ?, processed_date = ?, processed_dept = ?,
		    response_notes = ?, response_date = ?
		WHERE id = ? AND status = ?`,
		next, meta.By, at, meta.Department, meta.Notes, at,
		id, rewards.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to transition request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Either missing or no longer pending; fetch to tell apart.
		r, err := s.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &rewards.InvalidStateError{RequestID: id, Status: r.Status}
	}

	return s.GetRequest(ctx, id)
}

// requestWhere compiles a RequestFilter to a WHERE clause.
func requestWhere(f rewards.RequestFilter) (string, []any) {
	var conds []string
	var args []any

	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if len(f.UserIDs) > 0 {
		ph, a := placeholders(stringsOfUsers(f.UserIDs))
		conds = append(conds, "user_id IN ("+ph+")")
		args = append(args, a...)
	}
	if len(f.CategoryIDs) > 0 {
		ph, a := placeholders(stringsOfCategories(f.CategoryIDs))
		conds = append(conds, "category_id IN ("+ph+")")
		args = append(args, a...)
	}
	if len(f.ExcludeCategoryIDs) > 0 {
		ph, a := placeholders(stringsOfCategories(f.ExcludeCategoryIDs))
		conds = append(conds, "category_id NOT IN ("+ph+")")
		args = append(args, a...)
	}
	if f.BonusOnly != nil {
		conds = append(conds, "is_bonus = ?")
		args = append(args, *f.BonusOnly)
	}
	if f.Window != nil {
		cond, a := windowCondition(*f.Window,
			"event_date", "request_date", "award_date", "response_date")
		conds = append(conds, cond)
		args = append(args, a...)
	}

	return strings.Join(conds, " AND "), args
}

// =============================================================================
// POINTS LEDGER
// =============================================================================

const pointColumns = `id, user_id, category_id, points, is_bonus,
	award_date, event_date, awarded_by, notes, request_id`

func (s *Store) FindPoints(ctx context.Context, f rewards.PointFilter) ([]rewards.Point, error) {
	query := `SELECT ` + pointColumns + ` FROM points`
	var conds []string
	var args []any

	if len(f.UserIDs) > 0 {
		ph, a := placeholders(stringsOfUsers(f.UserIDs))
		conds = append(conds, "user_id IN ("+ph+")")
		args = append(args, a...)
	}
	if len(f.CategoryIDs) > 0 {
		ph, a := placeholders(stringsOfCategories(f.CategoryIDs))
		conds = append(conds, "category_id IN ("+ph+")")
		args = append(args, a...)
	}
	if len(f.ExcludeCategoryIDs) > 0 {
		ph, a := placeholders(stringsOfCategories(f.ExcludeCategoryIDs))
		conds = append(conds, "category_id NOT IN ("+ph+")")
		args = append(args, a...)
	}
	if f.BonusOnly != nil {
		conds = append(conds, "is_bonus = ?")
		args = append(args, *f.BonusOnly)
	}
	if f.Window != nil {
		cond, a := windowCondition(*f.Window, "award_date", "event_date")
		conds = append(conds, cond)
		args = append(args, a...)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var out []rewards.Point
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) InsertPoint(ctx context.Context, p *rewards.Point) error {
	var reqID *string
	if p.RequestID != nil {
		v := string(*p.RequestID)
		reqID = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points (`+pointColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.CategoryID, p.Points, p.IsBonus,
		timePtr(p.AwardDate), timePtr(p.EventDate),
		p.AwardedBy, p.Notes, reqID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return rewards.ErrDuplicateAward
		}
		return fmt.Errorf("failed to insert point: %w", err)
	}
	return nil
}

func (s *Store) SumLedgerPoints(ctx context.Context, f rewards.PointFilter) (map[rewards.UserID]int, error) {
	query := `SELECT user_id, COALESCE(SUM(points), 0) FROM points`
	var conds []string
	var args []any

	if len(f.UserIDs) > 0 {
		ph, a := placeholders(stringsOfUsers(f.UserIDs))
		conds = append(conds, "user_id IN ("+ph+")")
		args = append(args, a...)
	}
	if len(f.CategoryIDs) > 0 {
		ph, a := placeholders(stringsOfCategories(f.CategoryIDs))
		conds = append(conds, "category_id IN ("+ph+")")
		args = append(args, a...)
	}
	if len(f.ExcludeCategoryIDs) > 0 {
		ph, a := placeholders(stringsOfCategories(f.ExcludeCategoryIDs))
		conds = append(conds, "category_id NOT IN ("+ph+")")
		args = append(args, a...)
	}
	if f.BonusOnly != nil {
		conds = append(conds, "is_bonus = ?")
		args = append(args, *f.BonusOnly)
	}
	if f.Window != nil {
		// Grouped totals cannot be re-checked in process, so the
		// window binds the effective date (event date, else award
		// date), not the any-date prefilter.
		conds = append(conds,
			"COALESCE(event_date, award_date) >= ? AND COALESCE(event_date, award_date) <= ?")
		args = append(args, fmtTime(f.Window.Start), fmtTime(f.Window.End))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " GROUP BY user_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum points: %w", err)
	}
	defer rows.Close()

	sums := make(map[rewards.UserID]int)
	for rows.Next() {
		var userID string
		var total int
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, err
		}
		sums[rewards.UserID(userID)] = total
	}
	return sums, rows.Err()
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (s *Store) LegacyCategories(ctx context.Context) ([]rewards.Category, error) {
	return s.queryCategories(ctx, `
		SELECT id, name, code, department, active, is_bonus,
		       grade_points_json, grade_limits_json, points_per_unit
		FROM categories_legacy`)
}

func (s *Store) CurrentCategories(ctx context.Context) ([]rewards.Category, error) {
	return s.queryCategories(ctx, `
		SELECT id, name, category_code, department, active, is_bonus,
		       grade_points_json, grade_limits_json, points_per_unit
		FROM categories`)
}

func (s *Store) InsertLegacyCategory(ctx context.Context, c *rewards.Category) error {
	gradePoints, _ := json.Marshal(c.GradePoints)
	gradeLimits, _ := json.Marshal(c.GradeLimits)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories_legacy
		(id, name, code, department, active, is_bonus, grade_points_json, grade_limits_json, points_per_unit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Code, c.Department, c.Active, c.IsBonus,
		string(gradePoints), string(gradeLimits), c.PointsPerUnit,
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// InsertCurrentCategory seeds the current registry.
func (s *Store) InsertCurrentCategory(ctx context.Context, c *rewards.Category) error {
	gradePoints, _ := json.Marshal(c.GradePoints)
	gradeLimits, _ := json.Marshal(c.GradeLimits)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories
		(id, name, category_code, department, active, is_bonus, grade_points_json, grade_limits_json, points_per_unit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Code, c.Department, c.Active, c.IsBonus,
		string(gradePoints), string(gradeLimits), c.PointsPerUnit,
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

func (s *Store) queryCategories(ctx context.Context, query string) ([]rewards.Category, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []rewards.Category
	for rows.Next() {
		var c rewards.Category
		var code, department, gradePoints, gradeLimits sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &code, &department, &c.Active,
			&c.IsBonus, &gradePoints, &gradeLimits, &c.PointsPerUnit); err != nil {
			return nil, err
		}
		c.Code = code.String
		c.Department = department.String
		if gradePoints.Valid && gradePoints.String != "" {
			json.Unmarshal([]byte(gradePoints.String), &c.GradePoints)
		}
		if gradeLimits.Valid && gradeLimits.String != "" {
			json.Unmarshal([]byte(gradeLimits.String), &c.GradeLimits)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id rewards.UserID) (*rewards.User, error) {
	var u rewards.User
	var email, grade, department, managerID sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, grade, department, role, manager_id FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &email, &grade, &department, &u.Role, &managerID)

	if err == sql.ErrNoRows {
		return nil, rewards.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	u.Grade = rewards.Grade(grade.String)
	u.Department = department.String
	if managerID.Valid && managerID.String != "" {
		mid := rewards.UserID(managerID.String)
		u.ManagerID = &mid
	}
	return &u, nil
}

func (s *Store) FindUsers(ctx context.Context, f rewards.UserFilter) ([]rewards.User, error) {
	query := `SELECT id, name, email, grade, department, role, manager_id FROM users`
	var conds []string
	var args []any

	if len(f.Roles) > 0 {
		roles := make([]string, len(f.Roles))
		for i, r := range f.Roles {
			roles[i] = string(r)
		}
		ph, a := placeholders(roles)
		conds = append(conds, "role IN ("+ph+")")
		args = append(args, a...)
	}
	if len(f.Grades) > 0 {
		grades := make([]string, len(f.Grades))
		for i, g := range f.Grades {
			grades[i] = string(g)
		}
		ph, a := placeholders(grades)
		conds = append(conds, "grade IN ("+ph+")")
		args = append(args, a...)
	}
	if f.Department != "" {
		conds = append(conds, "department = ?")
		args = append(args, f.Department)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []rewards.User
	for rows.Next() {
		var u rewards.User
		var email, grade, department, managerID sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &email, &grade, &department, &u.Role, &managerID); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.Grade = rewards.Grade(grade.String)
		u.Department = department.String
		if managerID.Valid && managerID.String != "" {
			mid := rewards.UserID(managerID.String)
			u.ManagerID = &mid
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) InsertUser(ctx context.Context, u *rewards.User) error {
	var managerID *string
	if u.ManagerID != nil {
		v := string(*u.ManagerID)
		managerID = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, grade, department, role, manager_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			grade = excluded.grade,
			department = excluded.department,
			role = excluded.role,
			manager_id = excluded.manager_id`,
		u.ID, u.Name, u.Email, u.Grade, u.Department, u.Role, managerID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// =============================================================================
// REWARD CONFIG
// =============================================================================

func (s *Store) LoadRewardConfig(ctx context.Context) (*rewards.RewardConfig, error) {
	var configJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM reward_config WHERE id = 1`).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return nil, rewards.ErrConfigMissing
	}
	if err != nil {
		return nil, err
	}

	var cfg rewards.RewardConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func (s *Store) SaveRewardConfig(ctx context.Context, c *rewards.RewardConfig) error {
	configJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reward_config (id, config_json, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config_json = excluded.config_json,
			updated_at = excluded.updated_at`,
		string(configJSON), fmtTime(time.Now()),
	)
	return err
}

// =============================================================================
// SCANNING AND HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*rewards.PointRequest, error) {
	var (
		r              rewards.PointRequest
		eventDate      sql.NullString
		requestDate    sql.NullString
		awardDate      sql.NullString
		responseDate   sql.NullString
		utilization    sql.NullFloat64
		submissionJSON sql.NullString
		processedBy    sql.NullString
		processedDate  sql.NullString
		processedDept  sql.NullString
		responseNotes  sql.NullString
		managerNotes   sql.NullString
		attachmentID   sql.NullString
		attachmentName sql.NullString
		createdAt      string
	)

	err := row.Scan(
		&r.ID, &r.UserID, &r.CategoryID, &r.Points, &r.IsBonus, &r.Status,
		&eventDate, &requestDate, &awardDate, &responseDate,
		&utilization, &submissionJSON,
		&processedBy, &processedDate, &processedDept, &responseNotes, &managerNotes,
		&attachmentID, &attachmentName, &r.HasAttachment, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.EventDate = parseTimePtr(eventDate)
	r.RequestDate = parseTimePtr(requestDate)
	r.AwardDate = parseTimePtr(awardDate)
	r.ResponseDate = parseTimePtr(responseDate)
	if utilization.Valid {
		v := utilization.Float64
		r.UtilizationValue = &v
	}
	if submissionJSON.Valid && submissionJSON.String != "" {
		json.Unmarshal([]byte(submissionJSON.String), &r.Submission)
	}
	r.ProcessedBy = rewards.UserID(processedBy.String)
	r.ProcessedDate = parseTimePtr(processedDate)
	r.ProcessedDept = processedDept.String
	r.ResponseNotes = responseNotes.String
	r.ManagerNotes = managerNotes.String
	r.AttachmentID = attachmentID.String
	r.AttachmentName = attachmentName.String
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return &r, nil
}

func scanPoint(row rowScanner) (*rewards.Point, error) {
	var (
		p         rewards.Point
		awardDate sql.NullString
		eventDate sql.NullString
		awardedBy sql.NullString
		notes     sql.NullString
		requestID sql.NullString
	)

	err := row.Scan(
		&p.ID, &p.UserID, &p.CategoryID, &p.Points, &p.IsBonus,
		&awardDate, &eventDate, &awardedBy, &notes, &requestID,
	)
	if err != nil {
		return nil, err
	}

	p.AwardDate = parseTimePtr(awardDate)
	p.EventDate = parseTimePtr(eventDate)
	p.AwardedBy = rewards.UserID(awardedBy.String)
	p.Notes = notes.String
	if requestID.Valid && requestID.String != "" {
		id := rewards.RequestID(requestID.String)
		p.RequestID = &id
	}
	return &p, nil
}

// windowCondition compiles the any-date prefilter for the given
// columns: (col1 in range) OR (col2 in range) OR ...
func windowCondition(w rewards.Window, columns ...string) (string, []any) {
	var parts []string
	var args []any
	for _, col := range columns {
		parts = append(parts, "("+col+" >= ? AND "+col+" <= ?)")
		args = append(args, fmtTime(w.Start), fmtTime(w.End))
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func placeholders(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}

func stringsOfUsers(ids []rewards.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsOfCategories(ids []rewards.CategoryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// timeLayout is fixed-width so text comparison matches chronological
// order. RFC3339Nano trims trailing fractional zeros, and a value
// without a fraction ("...59Z") sorts AFTER one with a fraction
// ("...59.999999Z"), which silently drops records in the boundary
// second of a window.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := fmtTime(*t)
	return &v
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
