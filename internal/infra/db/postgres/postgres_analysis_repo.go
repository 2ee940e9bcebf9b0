package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"llm-search-insight/internal/domain"
	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.AnalysisRepository = (*PostgresAnalysisRepo)(nil)

type PostgresAnalysisRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAnalysisRepo(pool *pgxpool.Pool) *PostgresAnalysisRepo {
	return &PostgresAnalysisRepo{pool: pool}
}

const analysisColumns = `id, fingerprint, research_question, status, progress, current_step, error_message, result, created_at, updated_at, completed_at`

func scanAnalysis(row pgx.Row) (*model.Analysis, error) {
	var a model.Analysis
	var resultJSON []byte
	if err := row.Scan(
		&a.ID, &a.Fingerprint, &a.ResearchQuestion, &a.Status, &a.Progress,
		&a.CurrentStep, &a.ErrorMessage, &resultJSON,
		&a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
	); err != nil {
		return nil, err
	}
	if len(resultJSON) > 0 {
		var res model.FullResult
		if err := json.Unmarshal(resultJSON, &res); err != nil {
			return nil, fmt.Errorf("decode analysis result: %w", err)
		}
		a.Result = &res
	}
	return &a, nil
}

func (r *PostgresAnalysisRepo) Save(ctx context.Context, tx repository.Tx, a *model.Analysis) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	var resultJSON []byte
	if a.Result != nil {
		if resultJSON, err = json.Marshal(a.Result); err != nil {
			return fmt.Errorf("encode analysis result: %w", err)
		}
	}
	const sql = `
INSERT INTO analyses (id, fingerprint, research_question, status, progress, current_step, error_message, result, created_at, updated_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE
  SET status        = EXCLUDED.status,
      progress      = EXCLUDED.progress,
      current_step  = EXCLUDED.current_step,
      error_message = EXCLUDED.error_message,
      result        = EXCLUDED.result,
      updated_at    = EXCLUDED.updated_at,
      completed_at  = EXCLUDED.completed_at;
`
	if _, err := exec.Exec(ctx, sql,
		a.ID, a.Fingerprint, a.ResearchQuestion, a.Status, a.Progress,
		a.CurrentStep, a.ErrorMessage, resultJSON,
		a.CreatedAt, a.UpdatedAt, a.CompletedAt,
	); err != nil {
		return fmt.Errorf("Save analysis: %w", err)
	}
	return nil
}

func (r *PostgresAnalysisRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Analysis, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	sql := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1;`
	a, err := scanAnalysis(exec.QueryRow(ctx, sql, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID analysis: %w", err)
	}
	return a, nil
}

// UpdateProgress advances a live row in a single statement. The WHERE clause
// enforces monotonicity: terminal rows (completed_at set) and rows that have
// already moved past the requested progress are left untouched.
func (r *PostgresAnalysisRepo) UpdateProgress(ctx context.Context, tx repository.Tx, id string, status model.AnalysisStatus, progress int, currentStep string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const sql = `
UPDATE analyses
   SET status = $2, progress = $3, current_step = $4, updated_at = now()
 WHERE id = $1
   AND completed_at IS NULL
   AND progress <= $3;
`
	ct, err := exec.Exec(ctx, sql, id, status, progress, currentStep)
	if err != nil {
		return fmt.Errorf("UpdateProgress analysis: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, ferr := r.FindByID(ctx, tx, id); ferr != nil {
			return ferr
		}
		return fmt.Errorf("%w: analysis %s refused transition to %s", domain.ErrInvalidArgument, id, status)
	}
	return nil
}

func (r *PostgresAnalysisRepo) MarkError(ctx context.Context, tx repository.Tx, id string, msg string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const sql = `
UPDATE analyses
   SET status = $2, error_message = $3, current_step = '', updated_at = now(), completed_at = now()
 WHERE id = $1
   AND completed_at IS NULL;
`
	ct, err := exec.Exec(ctx, sql, id, model.AnalysisStatusError, msg)
	if err != nil {
		return fmt.Errorf("MarkError analysis: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, ferr := r.FindByID(ctx, tx, id); ferr != nil {
			return ferr
		}
		// Already terminal; the first terminal write wins.
	}
	return nil
}

func (r *PostgresAnalysisRepo) SetResult(ctx context.Context, tx repository.Tx, id string, result *model.FullResult) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	const sql = `
UPDATE analyses
   SET status = $2, progress = 100, current_step = '', result = $3, updated_at = now(), completed_at = now()
 WHERE id = $1
   AND completed_at IS NULL;
`
	ct, err := exec.Exec(ctx, sql, id, model.AnalysisStatusComplete, resultJSON)
	if err != nil {
		return fmt.Errorf("SetResult analysis: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, ferr := r.FindByID(ctx, tx, id); ferr != nil {
			return ferr
		}
		return fmt.Errorf("%w: analysis %s is already terminal", domain.ErrInvalidArgument, id)
	}
	return nil
}

func (r *PostgresAnalysisRepo) FindFreshByFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (*model.Analysis, error) {
	cutoff := time.Now().Add(-ttl)
	const sql = `
SELECT ` + analysisColumns + `
  FROM analyses
 WHERE fingerprint = $1
   AND status = $2
   AND completed_at >= $3
 ORDER BY completed_at DESC
 LIMIT 1;
`
	a, err := scanAnalysis(r.pool.QueryRow(ctx, sql, fingerprint, model.AnalysisStatusComplete, cutoff))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindFreshByFingerprint: %w", err)
	}
	return a, nil
}

// FailStale sweeps jobs that stopped making progress, typically after a crash
// mid-run, into the ERROR state so pollers are not left waiting forever.
func (r *PostgresAnalysisRepo) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	const sql = `
UPDATE analyses
   SET status = $1, error_message = 'analysis timed out', current_step = '', updated_at = now(), completed_at = now()
 WHERE completed_at IS NULL
   AND updated_at < $2;
`
	ct, err := r.pool.Exec(ctx, sql, model.AnalysisStatusError, cutoff)
	if err != nil {
		return 0, fmt.Errorf("FailStale: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *PostgresAnalysisRepo) CountByStatus(ctx context.Context) (map[model.AnalysisStatus]int, error) {
	const sql = `SELECT status, COUNT(1) FROM analyses GROUP BY status;`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}
	defer rows.Close()
	out := make(map[model.AnalysisStatus]int)
	for rows.Next() {
		var status model.AnalysisStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
