package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/soaringjerry/adi/internal/api"
	"github.com/soaringjerry/adi/internal/models"
)

// timeLayout is fixed width so that TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// isConstraint reports whether err is a SQLite constraint violation.
func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// Open opens (creating if needed) the SQLite database at path. Transactions
// take the write lock up front so concurrent submissions serialize cleanly.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, logger: logger.Named("sqlite")}, nil
}

var _ api.Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Surveys

const surveyColumns = `id, title, description, category, questions, is_active, user_id, created_at`

func (s *SQLiteStore) InsertSurvey(ctx context.Context, sv *models.Survey) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO surveys (`+surveyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description,
			category = excluded.category, questions = excluded.questions, is_active = excluded.is_active,
			user_id = excluded.user_id`,
		sv.ID, sv.Title, sv.Description, sv.Category, sv.Questions, boolToInt64(bool(sv.IsActive)), sv.UserID, formatTime(sv.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert survey %s: %w", sv.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row rowScanner) (*models.Survey, error) {
	var (
		sv      models.Survey
		active  int64
		created string
	)
	if err := row.Scan(&sv.ID, &sv.Title, &sv.Description, &sv.Category, &sv.Questions, &active, &sv.UserID, &created); err != nil {
		return nil, err
	}
	sv.IsActive = models.Flag(active != 0)
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("survey %s created_at: %w", sv.ID, err)
	}
	sv.CreatedAt = t
	return &sv, nil
}

func (s *SQLiteStore) GetSurvey(ctx context.Context, id string) (*models.Survey, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE id = ?`, id)
	sv, err := scanSurvey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get survey %s: %w", id, err)
	}
	return sv, nil
}

func (s *SQLiteStore) ListSurveys(ctx context.Context, activeOnly bool) ([]*models.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at DESC, id ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	defer rows.Close()
	out := []*models.Survey{}
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable survey row", zap.Error(err))
			continue
		}
		out = append(out, sv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SetSurveyActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE surveys SET is_active = ? WHERE id = ?`, boolToInt64(active), id)
	if err != nil {
		return fmt.Errorf("update survey %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Responses

const responseColumns = `id, survey_id, user_id, submission_id, question_index, answer, response_year,
	first_name, last_name, phone_number, country, is_verified, created_at`

// AddResponses writes the completion marker and every response in one
// transaction.
func (s *SQLiteStore) AddResponses(ctx context.Context, rs []*models.SurveyResponse) (err error) {
	if len(rs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add responses: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	type key struct {
		user, survey string
		year         int
	}
	seen := map[key]bool{}
	for _, r := range rs {
		k := key{r.UserID, r.SurveyID, r.ResponseYear}
		if seen[k] {
			continue
		}
		seen[k] = true
		_, err = tx.ExecContext(ctx, `INSERT INTO survey_completions (user_id, survey_id, response_year, submission_id, created_at)
			VALUES (?, ?, ?, ?, ?)`, r.UserID, r.SurveyID, r.ResponseYear, r.SubmissionID, formatTime(r.CreatedAt))
		if isConstraint(err) {
			return models.ErrDuplicateSubmission
		}
		if err != nil {
			return fmt.Errorf("insert completion: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO survey_responses (`+responseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert response: %w", err)
	}
	defer stmt.Close()
	for _, r := range rs {
		if _, err = stmt.ExecContext(ctx, r.ID, r.SurveyID, r.UserID, r.SubmissionID, r.QuestionIndex, r.Answer, r.ResponseYear,
			r.FirstName, r.LastName, r.PhoneNumber, r.Country, boolToInt64(bool(r.IsVerified)), formatTime(r.CreatedAt)); err != nil {
			return fmt.Errorf("insert response %s: %w", r.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit responses: %w", err)
	}
	return nil
}

// responseWhere renders the filters of q. Year is skipped when withYear is false.
func responseWhere(q models.ResponseQuery, withYear bool) (string, []any) {
	var (
		where []string
		args  []any
	)
	if q.UserID != "" {
		where, args = append(where, "user_id = ?"), append(args, q.UserID)
	}
	if q.SurveyID != "" {
		where, args = append(where, "survey_id = ?"), append(args, q.SurveyID)
	}
	if withYear && q.Year != nil {
		where, args = append(where, "response_year = ?"), append(args, *q.Year)
	}
	if q.Country != nil {
		where, args = append(where, "country = ?"), append(args, *q.Country)
	}
	if q.Month != nil {
		// created_at is fixed-width UTC text; year 0001 marks an undated row
		where = append(where, "substr(created_at, 1, 4) <> '0001' AND CAST(substr(created_at, 6, 2) AS INTEGER) = ?")
		args = append(args, *q.Month)
	}
	if len(where) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(where, " AND "), args
}

func (s *SQLiteStore) ListResponses(ctx context.Context, q models.ResponseQuery) ([]*models.SurveyResponse, error) {
	where, args := responseWhere(q, true)
	query := `SELECT ` + responseColumns + ` FROM survey_responses` + where
	switch q.OrderBy {
	case models.OrderYearDesc:
		query += ` ORDER BY response_year DESC, rowid ASC`
	default:
		query += ` ORDER BY created_at DESC, rowid ASC`
	}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	out := []*models.SurveyResponse{}
	for rows.Next() {
		var (
			r        models.SurveyResponse
			verified int64
			created  string
		)
		if err := rows.Scan(&r.ID, &r.SurveyID, &r.UserID, &r.SubmissionID, &r.QuestionIndex, &r.Answer, &r.ResponseYear,
			&r.FirstName, &r.LastName, &r.PhoneNumber, &r.Country, &verified, &created); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.IsVerified = models.Flag(verified != 0)
		if r.CreatedAt, err = parseTime(created); err != nil {
			s.logger.Warn("response has unreadable created_at", zap.String("id", r.ID), zap.Error(err))
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) CountResponsesByYear(ctx context.Context, q models.ResponseQuery) (map[int]int, error) {
	where, args := responseWhere(q, false)
	rows, err := s.db.QueryContext(ctx, `SELECT response_year, COUNT(*) FROM survey_responses`+where+` GROUP BY response_year`, args...)
	if err != nil {
		return nil, fmt.Errorf("count responses by year: %w", err)
	}
	defer rows.Close()
	counts := map[int]int{}
	for rows.Next() {
		var year, n int
		if err := rows.Scan(&year, &n); err != nil {
			return nil, fmt.Errorf("scan year count: %w", err)
		}
		counts[year] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count responses by year: %w", err)
	}
	return counts, nil
}

// Verifications

func (s *SQLiteStore) AddVerification(ctx context.Context, v *models.UserVerification) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_verifications
		(id, user_id, first_name, last_name, phone_number, country, code_hash, is_verified, attempts, created_at, expires_at, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.FirstName, v.LastName, v.PhoneNumber, v.Country, v.CodeHash, boolToInt64(bool(v.IsVerified)),
		v.Attempts, formatTime(v.CreatedAt), formatNullTime(v.ExpiresAt), formatNullTime(v.VerifiedAt))
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateVerification(ctx context.Context, id string, p models.VerificationPatch) error {
	var (
		sets []string
		args []any
	)
	if p.IsVerified != nil {
		sets, args = append(sets, "is_verified = ?"), append(args, boolToInt64(*p.IsVerified))
	}
	if p.VerifiedAt != nil {
		sets, args = append(sets, "verified_at = ?"), append(args, formatTime(*p.VerifiedAt))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE user_verifications SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update verification %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ReserveVerificationAttempt(ctx context.Context, id string, limit int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE user_verifications SET attempts = attempts + 1 WHERE id = ? AND attempts < ?`, id, limit)
	if err != nil {
		return false, fmt.Errorf("reserve attempt %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve attempt %s: %w", id, err)
	}
	if n > 0 {
		return true, nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM user_verifications WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, models.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("reserve attempt %s: %w", id, err)
	}
	return false, nil
}

func (s *SQLiteStore) LatestVerification(ctx context.Context, userID string, verifiedOnly bool) (*models.UserVerification, error) {
	query := `SELECT id, user_id, first_name, last_name, phone_number, country, code_hash, is_verified, attempts,
		created_at, expires_at, verified_at FROM user_verifications WHERE user_id = ?`
	if verifiedOnly {
		query += ` AND is_verified = 1`
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT 1`

	var (
		v                   models.UserVerification
		verified            int64
		created             string
		expires, verifiedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&v.ID, &v.UserID, &v.FirstName, &v.LastName, &v.PhoneNumber, &v.Country,
		&v.CodeHash, &verified, &v.Attempts, &created, &expires, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest verification: %w", err)
	}
	v.IsVerified = models.Flag(verified != 0)
	if v.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("verification %s created_at: %w", v.ID, err)
	}
	if v.ExpiresAt, err = parseNullTime(expires); err != nil {
		return nil, fmt.Errorf("verification %s expires_at: %w", v.ID, err)
	}
	if v.VerifiedAt, err = parseNullTime(verifiedAt); err != nil {
		return nil, fmt.Errorf("verification %s verified_at: %w", v.ID, err)
	}
	return &v, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// AI insights

func (s *SQLiteStore) AddInsight(ctx context.Context, in *models.AIInsight) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ai_insights (id, user_id, insight_type, content, data_sources, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.UserID, in.InsightType, in.Content, in.DataSources, in.Model, formatTime(in.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListInsights(ctx context.Context, userID string, limit int) ([]*models.AIInsight, error) {
	query := `SELECT id, user_id, insight_type, content, data_sources, model, created_at FROM ai_insights
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()
	out := []*models.AIInsight{}
	for rows.Next() {
		var (
			in      models.AIInsight
			created string
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.InsightType, &in.Content, &in.DataSources, &in.Model, &created); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		if in.CreatedAt, err = parseTime(created); err != nil {
			s.logger.Warn("insight has unreadable created_at", zap.String("id", in.ID), zap.Error(err))
		}
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	return out, nil
}

// Dashboards

const dashboardColumns = `id, user_id, name, description, config, is_public, created_at, updated_at`

func (s *SQLiteStore) SaveDashboard(ctx context.Context, d *models.SavedDashboard) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO saved_dashboards (`+dashboardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description,
			config = excluded.config, is_public = excluded.is_public, updated_at = excluded.updated_at`,
		d.ID, d.UserID, d.Name, d.Description, d.Config, boolToInt64(bool(d.IsPublic)), formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save dashboard %s: %w", d.ID, err)
	}
	return nil
}

func scanDashboard(row rowScanner) (*models.SavedDashboard, error) {
	var (
		d                models.SavedDashboard
		public           int64
		created, updated string
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Description, &d.Config, &public, &created, &updated); err != nil {
		return nil, err
	}
	d.IsPublic = models.Flag(public != 0)
	var err error
	if d.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("dashboard %s created_at: %w", d.ID, err)
	}
	if d.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("dashboard %s updated_at: %w", d.ID, err)
	}
	return &d, nil
}

func (s *SQLiteStore) GetDashboard(ctx context.Context, id string) (*models.SavedDashboard, error) {
	d, err := scanDashboard(s.db.QueryRowContext(ctx, `SELECT `+dashboardColumns+` FROM saved_dashboards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dashboard %s: %w", id, err)
	}
	return d, nil
}

func (s *SQLiteStore) ListDashboards(ctx context.Context, userID string) ([]*models.SavedDashboard, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+dashboardColumns+` FROM saved_dashboards
		WHERE user_id = ? ORDER BY updated_at DESC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}
	defer rows.Close()
	out := []*models.SavedDashboard{}
	for rows.Next() {
		d, err := scanDashboard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dashboard: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}
	return out, nil
}

// Users

func (s *SQLiteStore) AddUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, pass_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.PassHash, formatTime(u.CreatedAt))
	if isConstraint(err) {
		return models.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var (
		u       models.User
		created string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, email, pass_hash, created_at FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.PassHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("user %s created_at: %w", u.ID, err)
	}
	return &u, nil
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", strings.ToLower(email))
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

// Audit

func (s *SQLiteStore) AddAudit(ctx context.Context, e models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_log (time, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		formatTime(e.Time), e.Actor, e.Action, e.Target, e.Note)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	query := `SELECT time, actor, action, target, note FROM audit_log ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()
	out := []models.AuditEntry{}
	for rows.Next() {
		var (
			e  models.AuditEntry
			ts string
		)
		if err := rows.Scan(&ts, &e.Actor, &e.Action, &e.Target, &e.Note); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		if e.Time, err = parseTime(ts); err != nil {
			s.logger.Warn("audit entry has unreadable time", zap.Error(err))
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
