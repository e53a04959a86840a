package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/copilot/agent"
)

// SqliteStore implements RunStore over a SQLite database file.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStore struct {
	db *sql.DB
}

var _ RunStore = (*SqliteStore)(nil)

// OpenSqlite opens or creates a run database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory run store (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			question_id TEXT NOT NULL,
			question TEXT NOT NULL,
			format_hint TEXT NOT NULL,
			final_answer TEXT NOT NULL,
			sql_query TEXT NOT NULL,
			confidence REAL NOT NULL,
			explanation TEXT NOT NULL,
			citations TEXT NOT NULL,
			trace TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_runs_question
		ON runs(question_id, created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun persists a run's output record and trace under a fresh run ID.
func (s *SqliteStore) SaveRun(ctx context.Context, q agent.Question, out agent.Output) (string, error) {
	answerJSON, err := json.Marshal(out.FinalAnswer)
	if err != nil {
		return "", fmt.Errorf("failed to encode answer: %w", err)
	}
	citationsJSON, err := json.Marshal(out.Citations)
	if err != nil {
		return "", fmt.Errorf("failed to encode citations: %w", err)
	}
	traceJSON, err := json.Marshal(out.Trace)
	if err != nil {
		return "", fmt.Errorf("failed to encode trace: %w", err)
	}

	runID := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, question_id, question, format_hint, final_answer, sql_query, confidence, explanation, citations, trace)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		q.ID,
		q.Text,
		q.FormatHint,
		string(answerJSON),
		out.SQL,
		out.Confidence,
		out.Explanation,
		string(citationsJSON),
		string(traceJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	return runID, nil
}

// GetRun loads a run by ID. Returns nil, nil if not found.
func (s *SqliteStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, question_id, question, format_hint, final_answer, sql_query, confidence, explanation, citations, trace, created_at
		FROM runs WHERE run_id = ?`,
		runID)

	record, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &record, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SqliteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, question_id, question, format_hint, final_answer, sql_query, confidence, explanation, citations, trace, created_at
		FROM runs
		ORDER BY created_at DESC, run_id
		LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	records := []RunRecord{} // Start with empty slice, not nil
	for rows.Next() {
		record, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return records, nil
}

// scanRun reads one run row, decoding the JSON-encoded columns.
func scanRun(scan func(...interface{}) error) (RunRecord, error) {
	var record RunRecord
	var answerJSON, citationsJSON, traceJSON string

	err := scan(
		&record.RunID,
		&record.QuestionID,
		&record.Question,
		&record.FormatHint,
		&answerJSON,
		&record.Output.SQL,
		&record.Output.Confidence,
		&record.Output.Explanation,
		&citationsJSON,
		&traceJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return RunRecord{}, err
	}

	record.Output.ID = record.QuestionID
	record.Output.FinalAnswer = decodeAnswer(answerJSON, record.FormatHint)
	if err := json.Unmarshal([]byte(citationsJSON), &record.Output.Citations); err != nil {
		return RunRecord{}, fmt.Errorf("invalid citations in database: %w", err)
	}
	if err := json.Unmarshal([]byte(traceJSON), &record.Output.Trace); err != nil {
		return RunRecord{}, fmt.Errorf("invalid trace in database: %w", err)
	}
	return record, nil
}

// decodeAnswer rebuilds the typed answer from its stored JSON. The format
// hint disambiguates integer and float answers, which JSON conflates.
// A stored null stays an unset answer.
func decodeAnswer(answerJSON, formatHint string) agent.Answer {
	var v interface{}
	if json.Unmarshal([]byte(answerJSON), &v) != nil || v == nil {
		return agent.Answer{}
	}
	switch val := v.(type) {
	case float64:
		if agent.ParseFormat(formatHint) == agent.FormatInt {
			return agent.IntAnswer(int64(val))
		}
		return agent.FloatAnswer(val)
	case map[string]interface{}:
		return agent.DictAnswer(val)
	case []interface{}:
		return agent.ListAnswer(val)
	case string:
		return agent.StringAnswer(val)
	default:
		return agent.Answer{}
	}
}
