// Package usage persists per-call token accounting to a local SQLite
// database so the CLI can report spend over time.
package usage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/azfoundry/foundry-go/sdk/apierr"
)

const schema = `CREATE TABLE IF NOT EXISTS usage_records (
	id TEXT PRIMARY KEY,
	recorded_at DATETIME NOT NULL,
	operation TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 1,
	duration_ms INTEGER NOT NULL DEFAULT 0
)`

// Record is one completed API call.
type Record struct {
	ID               string
	RecordedAt       time.Time
	Operation        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Attempts         int
	Duration         time.Duration
}

// Summary aggregates records for one model.
type Summary struct {
	Model            string
	Calls            int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Store is a SQLite-backed usage log. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apierr.Dependency("opening usage database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apierr.Dependency("creating usage schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts one record. A missing ID or timestamp is filled in.
func (s *Store) Add(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records
		(id, recorded_at, operation, model, prompt_tokens, completion_tokens, total_tokens, attempts, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RecordedAt, rec.Operation, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.Attempts, rec.Duration.Milliseconds())
	if err != nil {
		return apierr.Dependency("recording usage", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, operation, model, prompt_tokens, completion_tokens, total_tokens, attempts, duration_ms
		FROM usage_records
		ORDER BY recorded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, apierr.Dependency("querying usage", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.RecordedAt, &rec.Operation, &rec.Model,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
			&rec.Attempts, &durationMS); err != nil {
			return nil, apierr.Dependency("scanning usage row", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Dependency("reading usage rows", err)
	}
	return out, nil
}

// SummaryByModel aggregates all records per model, ordered by total
// token count descending.
func (s *Store) SummaryByModel(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens)
		FROM usage_records
		GROUP BY model
		ORDER BY SUM(total_tokens) DESC`)
	if err != nil {
		return nil, apierr.Dependency("summarizing usage", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.Model, &sum.Calls,
			&sum.PromptTokens, &sum.CompletionTokens, &sum.TotalTokens); err != nil {
			return nil, apierr.Dependency("scanning usage summary", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Dependency("reading usage summary", err)
	}
	return out, nil
}
