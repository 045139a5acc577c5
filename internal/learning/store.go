// Package learning records the cost, duration, and outcome of every
// execution attempt and aggregates them into per-(model, task type)
// performance scores the router can consult.
//
// performance_records is append-only and is the source of truth; the
// model_stats aggregation and recommendation cache are derived and fully
// re-derivable from it.
package learning

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// PerformanceRecord is one completed execution attempt.
type PerformanceRecord struct {
	ID            int64
	AttemptID     string
	RunID         string
	StoryID       string
	TaskType      string
	Model         string
	Provider      string
	Attempt       int
	Success       bool
	ExitCode      int
	InputTokens   int
	OutputTokens  int
	CostUSD       float64
	Duration      time.Duration
	CriteriaTotal int
	CriteriaPass  int
	CreatedAt     time.Time
}

// PassRatio returns the acceptance-criteria pass ratio for this attempt.
func (r *PerformanceRecord) PassRatio() float64 {
	if r.CriteriaTotal == 0 {
		return 0
	}
	return float64(r.CriteriaPass) / float64(r.CriteriaTotal)
}

// ModelStats is the rolling aggregation for one (model, taskType) pair.
type ModelStats struct {
	Model          string
	TaskType       string
	Attempts       int
	Successes      int
	TotalCostUSD   float64
	TotalDuration  time.Duration
	TotalCriteria  int
	PassedCriteria int
}

// Reliability is the success rate across attempts.
func (m *ModelStats) Reliability() float64 {
	if m.Attempts == 0 {
		return 0
	}
	return float64(m.Successes) / float64(m.Attempts)
}

// Efficiency is cost per successful story; +Inf-free: zero successes
// reports the total cost (all spend, nothing delivered).
func (m *ModelStats) Efficiency() float64 {
	if m.Successes == 0 {
		return m.TotalCostUSD
	}
	return m.TotalCostUSD / float64(m.Successes)
}

// AvgDuration is the mean attempt duration.
func (m *ModelStats) AvgDuration() time.Duration {
	if m.Attempts == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.Attempts)
}

// Store manages the SQLite learning database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a Store and initializes the database schema.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so later statements wait on locks instead of
	// failing; retry covers concurrent initialization of the same file.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes SQL with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordAttempt appends a performance record and incrementally updates the
// derived aggregation and recommendation cache in one transaction.
func (s *Store) RecordAttempt(ctx context.Context, rec *PerformanceRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.Model == "" || rec.TaskType == "" {
		return fmt.Errorf("record requires model and task type")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO performance_records (
			attempt_id, run_id, story_id, task_type, model, provider,
			attempt, success, exit_code, input_tokens, output_tokens,
			cost_usd, duration_ms, criteria_total, criteria_passed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AttemptID, rec.RunID, rec.StoryID, rec.TaskType, rec.Model,
		rec.Provider, rec.Attempt, rec.Success, rec.ExitCode,
		rec.InputTokens, rec.OutputTokens, rec.CostUSD,
		rec.Duration.Milliseconds(), rec.CriteriaTotal, rec.CriteriaPass,
	)
	if err != nil {
		return fmt.Errorf("insert performance record: %w", err)
	}
	rec.ID, _ = result.LastInsertId()

	success := 0
	if rec.Success {
		success = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO model_stats (
			model, task_type, attempts, successes, total_cost_usd,
			total_duration_ms, total_criteria, passed_criteria, updated_at
		) VALUES (?, ?, 1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(model, task_type) DO UPDATE SET
			attempts = attempts + 1,
			successes = successes + excluded.successes,
			total_cost_usd = total_cost_usd + excluded.total_cost_usd,
			total_duration_ms = total_duration_ms + excluded.total_duration_ms,
			total_criteria = total_criteria + excluded.total_criteria,
			passed_criteria = passed_criteria + excluded.passed_criteria,
			updated_at = CURRENT_TIMESTAMP`,
		rec.Model, rec.TaskType, success, rec.CostUSD,
		rec.Duration.Milliseconds(), rec.CriteriaTotal, rec.CriteriaPass,
	); err != nil {
		return fmt.Errorf("update model stats: %w", err)
	}

	if err := refreshRecommendation(ctx, tx, rec.TaskType); err != nil {
		return fmt.Errorf("refresh recommendation cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// refreshRecommendation recomputes the cached best model for a task type
// from the aggregation. Confidence is the best model's reliability scaled
// by sample depth.
func refreshRecommendation(ctx context.Context, tx *sql.Tx, taskType string) error {
	row := tx.QueryRowContext(ctx, `
		SELECT model, attempts, successes
		FROM model_stats
		WHERE task_type = ? AND attempts >= ?
		ORDER BY CAST(successes AS REAL) / attempts DESC, attempts DESC
		LIMIT 1`, taskType, minSamplesForRecommendation)

	var model string
	var attempts, successes int
	if err := row.Scan(&model, &attempts, &successes); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}

	reliability := float64(successes) / float64(attempts)
	depth := float64(attempts) / float64(attempts+confidenceHalfSample)
	confidence := reliability * depth

	_, err := tx.ExecContext(ctx, `
		INSERT INTO recommendation_cache (task_type, model, confidence, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(task_type) DO UPDATE SET
			model = excluded.model,
			confidence = excluded.confidence,
			updated_at = CURRENT_TIMESTAMP`,
		taskType, model, confidence)
	return err
}

// Recommendation cache tuning.
const (
	minSamplesForRecommendation = 3
	confidenceHalfSample        = 10
)

// Reliability implements the router's Advisor: the success rate for
// (model, taskType) with its sample count. ok is false when no history
// exists.
func (s *Store) Reliability(model, taskType string) (float64, int, bool) {
	row := s.db.QueryRow(`
		SELECT attempts, successes FROM model_stats
		WHERE model = ? AND task_type = ?`, model, taskType)

	var attempts, successes int
	if err := row.Scan(&attempts, &successes); err != nil || attempts == 0 {
		return 0, 0, false
	}
	return float64(successes) / float64(attempts), attempts, true
}

// Recommendation returns the cached best model for a task type.
func (s *Store) Recommendation(ctx context.Context, taskType string) (model string, confidence float64, ok bool) {
	row := s.db.QueryRowContext(ctx, `
		SELECT model, confidence FROM recommendation_cache
		WHERE task_type = ?`, taskType)
	if err := row.Scan(&model, &confidence); err != nil {
		return "", 0, false
	}
	return model, confidence, true
}

// Stats returns the full aggregation, worst reliability last.
func (s *Store) Stats(ctx context.Context) ([]ModelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, task_type, attempts, successes, total_cost_usd,
			total_duration_ms, total_criteria, passed_criteria
		FROM model_stats
		ORDER BY CAST(successes AS REAL) / attempts DESC, attempts DESC`)
	if err != nil {
		return nil, fmt.Errorf("query model stats: %w", err)
	}
	defer rows.Close()

	var stats []ModelStats
	for rows.Next() {
		var m ModelStats
		var durationMs int64
		if err := rows.Scan(&m.Model, &m.TaskType, &m.Attempts, &m.Successes,
			&m.TotalCostUSD, &durationMs, &m.TotalCriteria, &m.PassedCriteria); err != nil {
			return nil, fmt.Errorf("scan model stats: %w", err)
		}
		m.TotalDuration = time.Duration(durationMs) * time.Millisecond
		stats = append(stats, m)
	}
	return stats, rows.Err()
}

// Records returns performance records, newest first, up to limit
// (0 = no limit).
func (s *Store) Records(ctx context.Context, limit int) ([]*PerformanceRecord, error) {
	query := `
		SELECT id, attempt_id, run_id, story_id, task_type, model, provider,
			attempt, success, exit_code, input_tokens, output_tokens,
			cost_usd, duration_ms, criteria_total, criteria_passed, created_at
		FROM performance_records
		ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query performance records: %w", err)
	}
	defer rows.Close()

	var records []*PerformanceRecord
	for rows.Next() {
		var rec PerformanceRecord
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.AttemptID, &rec.RunID, &rec.StoryID,
			&rec.TaskType, &rec.Model, &rec.Provider, &rec.Attempt,
			&rec.Success, &rec.ExitCode, &rec.InputTokens, &rec.OutputTokens,
			&rec.CostUSD, &durationMs, &rec.CriteriaTotal, &rec.CriteriaPass,
			&rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan performance record: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Rebuild re-derives model_stats and the recommendation cache from the
// record sequence. Recovery path for a corrupted aggregation; the records
// themselves are never touched.
func (s *Store) Rebuild(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM model_stats`); err != nil {
		return fmt.Errorf("clear model stats: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recommendation_cache`); err != nil {
		return fmt.Errorf("clear recommendation cache: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO model_stats (
			model, task_type, attempts, successes, total_cost_usd,
			total_duration_ms, total_criteria, passed_criteria
		)
		SELECT model, task_type, COUNT(*), SUM(success), SUM(cost_usd),
			SUM(duration_ms), SUM(criteria_total), SUM(criteria_passed)
		FROM performance_records
		GROUP BY model, task_type`); err != nil {
		return fmt.Errorf("rebuild model stats: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT task_type FROM model_stats`)
	if err != nil {
		return fmt.Errorf("list task types: %w", err)
	}
	var taskTypes []string
	for rows.Next() {
		var tt string
		if err := rows.Scan(&tt); err != nil {
			rows.Close()
			return fmt.Errorf("scan task type: %w", err)
		}
		taskTypes = append(taskTypes, tt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, tt := range taskTypes {
		if err := refreshRecommendation(ctx, tx, tt); err != nil {
			return fmt.Errorf("refresh recommendation for %s: %w", tt, err)
		}
	}

	return tx.Commit()
}

// Clear removes all records and derived data.
func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{"performance_records", "model_stats", "recommendation_cache"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
