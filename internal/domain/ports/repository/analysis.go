package repository

import (
	"context"
	"time"

	"llm-search-insight/internal/domain/model"
)

// AnalysisRepository is the durable Job Store. The orchestrator is the single
// writer per row; every write is a single statement so concurrent status
// readers never observe a half-written combination of status/progress/payload.
type AnalysisRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Analysis) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Analysis, error)

	// UpdateProgress advances status/progress/current_step in one statement.
	// Implementations must refuse regressions to an earlier pipeline rank.
	UpdateProgress(ctx context.Context, tx Tx, id string, status model.AnalysisStatus, progress int, currentStep string) error

	// MarkError records the terminal ERROR state with a message and sets
	// completed_at. current_step is cleared.
	MarkError(ctx context.Context, tx Tx, id string, msg string) error

	// SetResult records the terminal COMPLETE state together with the payload
	// in one statement. Only legal as the transition into COMPLETE.
	SetResult(ctx context.Context, tx Tx, id string, result *model.FullResult) error

	// FindFreshByFingerprint returns the most recently completed analysis for
	// the fingerprint whose age (from completed_at) is within ttl, or
	// domain.ErrNotFound.
	FindFreshByFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (*model.Analysis, error)

	// FailStale marks non-terminal jobs untouched for longer than olderThan as
	// ERROR and reports how many rows were affected.
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)

	CountByStatus(ctx context.Context) (map[model.AnalysisStatus]int, error)
}
