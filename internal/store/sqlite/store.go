// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package sqlite implements the store interfaces on a single SQLite database
// in WAL mode. JSON columns carry the list-shaped fields (categories, risk
// factors, trace); group and time columns are indexed for the processor's
// read paths.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// Compile-time interface checks.
var (
	_ store.Store        = (*Store)(nil)
	_ store.RequestStore = (*requestStore)(nil)
	_ store.ResultStore  = (*resultStore)(nil)
	_ store.AuditStore   = (*auditStore)(nil)
)

const defaultListLimit = 100

// Store implements store.Store backed by a single SQLite database.
type Store struct {
	db       *sql.DB
	requests *requestStore
	results  *resultStore
	audit    *auditStore
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// requests, analysis_results and audit_log tables.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating db: %w", err)
	}

	return &Store{
		db:       db,
		requests: &requestStore{db: db},
		results:  &resultStore{db: db},
		audit:    &auditStore{db: db},
	}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS requests (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	input_text TEXT NOT NULL,
	context    TEXT NOT NULL DEFAULT '',
	txn        TEXT NOT NULL DEFAULT '',
	group_name TEXT NOT NULL DEFAULT 'default',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_group   ON requests(group_name);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);

CREATE TABLE IF NOT EXISTS analysis_results (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id         INTEGER NOT NULL,
	mode               TEXT NOT NULL,
	score              INTEGER,
	categories         TEXT NOT NULL DEFAULT '[]',
	risk_level         TEXT NOT NULL DEFAULT '',
	risk_factors       TEXT NOT NULL DEFAULT '[]',
	summary            TEXT NOT NULL DEFAULT '',
	model_version      TEXT NOT NULL DEFAULT '',
	group_name         TEXT NOT NULL DEFAULT 'default',
	analyzed_by        TEXT NOT NULL DEFAULT '',
	trace              TEXT NOT NULL DEFAULT '{}',
	validation_status  TEXT NOT NULL DEFAULT '',
	validation_details TEXT NOT NULL DEFAULT '',
	feedback           INTEGER,
	feedback_comment   TEXT NOT NULL DEFAULT '',
	feedback_by        TEXT NOT NULL DEFAULT '',
	feedback_at        TEXT,
	created_at         TEXT NOT NULL,
	FOREIGN KEY (request_id) REFERENCES requests(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_results_group   ON analysis_results(group_name);
CREATE INDEX IF NOT EXISTS idx_results_created ON analysis_results(created_at);
CREATE INDEX IF NOT EXISTS idx_results_score   ON analysis_results(score);
CREATE INDEX IF NOT EXISTS idx_results_request ON analysis_results(request_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	timestamp  TEXT NOT NULL,
	action     TEXT NOT NULL DEFAULT '',
	actor      TEXT NOT NULL DEFAULT '',
	group_name TEXT NOT NULL DEFAULT '',
	request_id INTEGER NOT NULL DEFAULT 0,
	result_id  INTEGER NOT NULL DEFAULT 0,
	details    TEXT NOT NULL DEFAULT '{}',
	result     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_action    ON audit_log(action);
`
	_, err := db.Exec(ddl)
	return err
}

// Requests returns the RequestStore sub-store.
func (s *Store) Requests() store.RequestStore { return s.requests }

// Results returns the ResultStore sub-store.
func (s *Store) Results() store.ResultStore { return s.results }

// Audit returns the AuditStore sub-store.
func (s *Store) Audit() store.AuditStore { return s.audit }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// ---------- requestStore ----------

type requestStore struct {
	db *sql.DB
}

func (s *requestStore) Create(ctx context.Context, r *store.Request) error {
	if r.InputText == "" {
		return lgerr.New(lgerr.CodeStoreInvalidInput, "request input text must not be empty")
	}

	txn := ""
	if r.Transaction != nil {
		b, err := json.Marshal(r.Transaction)
		if err != nil {
			return fmt.Errorf("marshalling transaction attrs: %w", err)
		}
		txn = string(b)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO requests (input_text, context, txn, group_name, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		r.InputText, r.Context, txn, r.Group, r.CreatedBy, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading request id: %w", err)
	}
	return nil
}

func (s *requestStore) Get(ctx context.Context, id int64) (*store.Request, error) {
	const q = `SELECT id, input_text, context, txn, group_name, created_by, created_at
FROM requests WHERE id = ?`

	var r store.Request
	var txn, createdAt string
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.ID, &r.InputText, &r.Context, &txn, &r.Group, &r.CreatedBy, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, lgerr.Wrapf(store.ErrNotFound, lgerr.CodeStoreRequestNotFound, "request %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting request %d: %w", id, err)
	}
	if txn != "" {
		var attrs store.TransactionAttrs
		if err := json.Unmarshal([]byte(txn), &attrs); err != nil {
			return nil, fmt.Errorf("unmarshalling request %d transaction attrs: %w", id, err)
		}
		r.Transaction = &attrs
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// ---------- resultStore ----------

type resultStore struct {
	db *sql.DB
}

const resultColumns = `id, request_id, mode, score, categories, risk_level, risk_factors, summary,
model_version, group_name, analyzed_by, trace, validation_status, validation_details,
feedback, feedback_comment, feedback_by, feedback_at, created_at`

func (s *resultStore) Create(ctx context.Context, r *store.AnalysisResult) error {
	if r.RequestID == 0 {
		return lgerr.New(lgerr.CodeStoreInvalidInput, "result must reference a request")
	}

	categories, err := marshalList(r.Categories)
	if err != nil {
		return fmt.Errorf("marshalling categories: %w", err)
	}
	factors, err := marshalList(r.RiskFactors)
	if err != nil {
		return fmt.Errorf("marshalling risk factors: %w", err)
	}
	trace, err := json.Marshal(r.Trace)
	if err != nil {
		return fmt.Errorf("marshalling trace: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO analysis_results
(request_id, mode, score, categories, risk_level, risk_factors, summary,
 model_version, group_name, analyzed_by, trace, validation_status, validation_details,
 feedback, feedback_comment, feedback_by, feedback_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q,
		r.RequestID, string(r.Mode), nullableInt(r.Score), categories, string(r.RiskLevel),
		factors, r.Summary, r.ModelVersion, r.Group, r.AnalyzedBy, string(trace),
		r.ValidationStatus, r.ValidationDetails,
		nullableBool(r.Feedback), r.FeedbackComment, r.FeedbackBy,
		nullableTime(r.FeedbackAt), formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading result id: %w", err)
	}
	return nil
}

func (s *resultStore) Get(ctx context.Context, id int64) (*store.AnalysisResult, error) {
	q := `SELECT ` + resultColumns + ` FROM analysis_results WHERE id = ?`

	r, err := scanResult(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, lgerr.Wrapf(store.ErrNotFound, lgerr.CodeStoreResultNotFound, "result %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting result %d: %w", id, err)
	}
	return r, nil
}

func (s *resultStore) Recent(ctx context.Context, f store.ResultFilter) ([]*store.AnalysisResult, error) {
	where, args := filterClauses(f)
	q := `SELECT ` + resultColumns + ` FROM analysis_results` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, capLimit(f.Limit))
	return s.query(ctx, q, args...)
}

func (s *resultStore) HighScore(ctx context.Context, minScore int, f store.ResultFilter) ([]*store.AnalysisResult, error) {
	conditions, args := filterConditions(f)
	conditions = append(conditions, "score IS NOT NULL", "score >= ?")
	args = append(args, minScore)

	q := `SELECT ` + resultColumns + ` FROM analysis_results WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY score DESC, id DESC LIMIT ?`
	args = append(args, capLimit(f.Limit))
	return s.query(ctx, q, args...)
}

func (s *resultStore) ByGroup(ctx context.Context, group string, limit int) ([]*store.AnalysisResult, error) {
	q := `SELECT ` + resultColumns + ` FROM analysis_results WHERE group_name = ?
ORDER BY created_at DESC, id DESC LIMIT ?`
	return s.query(ctx, q, group, capLimit(limit))
}

func (s *resultStore) NeedingReview(ctx context.Context, f store.ResultFilter) ([]*store.AnalysisResult, error) {
	where, args := filterClauses(f)

	// Validation failures first, then pending feedback, then reviewed.
	q := `SELECT ` + resultColumns + ` FROM analysis_results` + where + `
ORDER BY CASE
	WHEN validation_status != ? THEN 0
	WHEN feedback IS NULL THEN 1
	ELSE 2
END, created_at DESC, id DESC LIMIT ?`
	args = append(args, store.ValidationStatusPass, capLimit(f.Limit))
	return s.query(ctx, q, args...)
}

func (s *resultStore) All(ctx context.Context, f store.ResultFilter) ([]*store.AnalysisResult, error) {
	where, args := filterClauses(f)

	// LIMIT -1 means unbounded in SQLite; All defaults to unbounded.
	limit := int64(-1)
	if f.Limit > 0 {
		limit = int64(f.Limit)
	}
	q := `SELECT ` + resultColumns + ` FROM analysis_results` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	return s.query(ctx, q, args...)
}

func (s *resultStore) UpdateFeedback(ctx context.Context, id int64, fb store.Feedback) (*store.AnalysisResult, error) {
	const q = `UPDATE analysis_results
SET feedback = ?, feedback_comment = ?, feedback_by = ?, feedback_at = ?
WHERE id = ?`

	res, err := s.db.ExecContext(ctx, q,
		boolToInt(fb.Agree), fb.Comment, fb.Reviewer, formatTime(fb.Timestamp), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating feedback for result %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows for result %d: %w", id, err)
	}
	if rows == 0 {
		return nil, lgerr.Wrapf(store.ErrNotFound, lgerr.CodeStoreResultNotFound, "result %d", id)
	}
	return s.Get(ctx, id)
}

func (s *resultStore) query(ctx context.Context, q string, args ...any) ([]*store.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var out []*store.AnalysisResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return out, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*store.AnalysisResult, error) {
	var r store.AnalysisResult
	var score sql.NullInt64
	var feedback sql.NullInt64
	var feedbackAt sql.NullString
	var categories, factors, trace, createdAt string

	err := row.Scan(
		&r.ID, &r.RequestID, &r.Mode, &score, &categories, &r.RiskLevel, &factors,
		&r.Summary, &r.ModelVersion, &r.Group, &r.AnalyzedBy, &trace,
		&r.ValidationStatus, &r.ValidationDetails,
		&feedback, &r.FeedbackComment, &r.FeedbackBy, &feedbackAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		v := int(score.Int64)
		r.Score = &v
	}
	if feedback.Valid {
		v := feedback.Int64 != 0
		r.Feedback = &v
	}
	if feedbackAt.Valid && feedbackAt.String != "" {
		t := parseTime(feedbackAt.String)
		r.FeedbackAt = &t
	}
	if err := json.Unmarshal([]byte(categories), &r.Categories); err != nil {
		return nil, fmt.Errorf("unmarshalling categories for result %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(factors), &r.RiskFactors); err != nil {
		return nil, fmt.Errorf("unmarshalling risk factors for result %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(trace), &r.Trace); err != nil {
		return nil, fmt.Errorf("unmarshalling trace for result %d: %w", r.ID, err)
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// filterConditions translates a ResultFilter into WHERE conditions.
// Score-less conversational rows always pass the score cap.
func filterConditions(f store.ResultFilter) ([]string, []any) {
	var conditions []string
	var args []any

	if f.Groups != nil {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Groups)), ",")
		conditions = append(conditions, "group_name IN ("+placeholders+")")
		for _, g := range f.Groups {
			args = append(args, g)
		}
	}
	if f.MaxScore != nil {
		conditions = append(conditions, "(score IS NULL OR score <= ?)")
		args = append(args, *f.MaxScore)
	}
	return conditions, args
}

func filterClauses(f store.ResultFilter) (string, []any) {
	conditions, args := filterConditions(f)
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func capLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return string(b), err
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	return boolToInt(*v)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ---------- auditStore ----------

type auditStore struct {
	db *sql.DB
}

func (s *auditStore) Append(ctx context.Context, entry *store.AuditEntry) error {
	details := "{}"
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = string(b)
	}

	const q = `INSERT INTO audit_log (id, timestamp, action, actor, group_name, request_id, result_id, details, result)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		entry.ID, formatTime(entry.Timestamp), entry.Action, entry.Actor,
		entry.Group, entry.RequestID, entry.ResultID, details, entry.Result,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry %s: %w", entry.ID, err)
	}
	return nil
}

func (s *auditStore) Recent(ctx context.Context, limit int) ([]*store.AuditEntry, error) {
	const q = `SELECT id, timestamp, action, actor, group_name, request_id, result_id, details, result
FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, capLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var entries []*store.AuditEntry
	for rows.Next() {
		var e store.AuditEntry
		var ts, detailsJSON string
		if err := rows.Scan(
			&e.ID, &ts, &e.Action, &e.Actor, &e.Group,
			&e.RequestID, &e.ResultID, &detailsJSON, &e.Result,
		); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		e.Timestamp = parseTime(ts)
		if detailsJSON != "" && detailsJSON != "{}" {
			if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshalling audit details: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
