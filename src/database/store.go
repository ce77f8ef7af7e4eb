// Package database persists per-request usage records in a local libSQL
// database. Prompts and generated text are never stored, only counters.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// Request statuses recorded in the usage store.
const (
	StatusOK            = "ok"
	StatusRejected      = "rejected"
	StatusConfigError   = "config_error"
	StatusUpstreamError = "upstream_error"
	StatusCanceled      = "canceled"
)

// RequestRecord is one relayed request's accounting row.
type RequestRecord struct {
	ID          int64
	RequestID   string
	Persona     string
	PromptChars int
	Fragments   int
	BytesOut    int64
	Status      string
	DurationMS  int64
	CreatedAt   time.Time
}

// UsageSummary aggregates the usage table for the stats command.
type UsageSummary struct {
	Total         int64
	Succeeded     int64
	Rejected      int64
	Failed        int64
	TotalBytes    int64
	AvgDurationMS float64
}

type UsageStore struct {
	db *sql.DB
}

// NewUsageStore opens (and if needed creates) the usage database.
func NewUsageStore(dbPath string) (*UsageStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &UsageStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *UsageStore) initSchema() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS relay_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		persona TEXT,
		prompt_chars INTEGER,
		fragments INTEGER,
		bytes_out INTEGER,
		status TEXT NOT NULL,
		duration_ms INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create relay_requests table: %w", err)
	}

	indexSQL := `CREATE INDEX IF NOT EXISTS idx_relay_status ON relay_requests(status)`
	if _, err := s.db.Exec(indexSQL); err != nil {
		return fmt.Errorf("failed to create status index: %w", err)
	}

	return nil
}

// Record inserts one request's accounting row.
func (s *UsageStore) Record(rec *RequestRecord) error {
	query := `
		INSERT INTO relay_requests (request_id, persona, prompt_chars, fragments, bytes_out, status, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		rec.RequestID, rec.Persona, rec.PromptChars, rec.Fragments,
		rec.BytesOut, rec.Status, rec.DurationMS)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// Summary aggregates all recorded requests.
func (s *UsageStore) Summary() (*UsageSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(bytes_out), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM relay_requests
	`

	var summary UsageSummary
	err := s.db.QueryRow(query,
		StatusOK, StatusRejected, StatusUpstreamError, StatusConfigError,
	).Scan(
		&summary.Total, &summary.Succeeded, &summary.Rejected,
		&summary.Failed, &summary.TotalBytes, &summary.AvgDurationMS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	return &summary, nil
}

// Recent returns the newest records, most recent first.
func (s *UsageStore) Recent(limit int) ([]*RequestRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, request_id, persona, prompt_chars, fragments, bytes_out, status, duration_ms, created_at
		FROM relay_requests
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*RequestRecord
	for rows.Next() {
		rec := &RequestRecord{}
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Persona, &rec.PromptChars,
			&rec.Fragments, &rec.BytesOut, &rec.Status, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *UsageStore) Close() error {
	return s.db.Close()
}
