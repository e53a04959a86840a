// Package storage persists answered runs: the question, its output record
// and the full audit trace, one row per run.
package storage

import (
	"context"

	"github.com/richinex/copilot/agent"
)

// RunRecord is one persisted run.
type RunRecord struct {
	RunID      string
	QuestionID string
	Question   string
	FormatHint string
	Output     agent.Output
	CreatedAt  string
}

// RunStore is the persistence surface the CLI depends on.
type RunStore interface {
	// SaveRun persists a run and returns its generated run ID.
	SaveRun(ctx context.Context, q agent.Question, out agent.Output) (string, error)

	// GetRun loads a run by ID. Returns nil, nil when not found.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	Close() error
}
