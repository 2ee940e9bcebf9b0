package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/repository"
	"llm-search-insight/internal/infra/metrics"
	red "llm-search-insight/internal/infra/redis"
)

var _ repository.AnalysisRepository = (*analysisRepoCacheDecorator)(nil)

// analysisRepoCacheDecorator keeps the hot fingerprint lookup out of Postgres.
// Only completed rows are cached, so a hit can be served without revisiting
// the database on every duplicate submission.
type analysisRepoCacheDecorator struct {
	inner repository.AnalysisRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewAnalysisRepoCacheDecorator(inner repository.AnalysisRepository, cache red.RedisClient, ttl time.Duration) repository.AnalysisRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &analysisRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func fingerprintKey(fp string) string { return fmt.Sprintf("analysis:fp:%s", fp) }

func (d *analysisRepoCacheDecorator) FindFreshByFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (*model.Analysis, error) {
	key := fingerprintKey(fingerprint)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var a model.Analysis
		if json.Unmarshal([]byte(val), &a) == nil &&
			a.CompletedAt != nil && time.Since(*a.CompletedAt) <= ttl {
			metrics.IncCacheRequest("fingerprint", "hit")
			return &a, nil
		}
		// Stale or undecodable entry; fall back to the database.
	}

	metrics.IncCacheRequest("fingerprint", "miss")
	a, err := d.inner.FindFreshByFingerprint(ctx, fingerprint, ttl)
	if err != nil {
		return nil, err
	}
	if bytes, merr := json.Marshal(a); merr == nil {
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return a, nil
}

// Save invalidates the fingerprint entry so a fresher completion is not
// shadowed by an older cached payload.
func (d *analysisRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, a *model.Analysis) error {
	d.cache.Del(ctx, fingerprintKey(a.Fingerprint))
	return d.inner.Save(ctx, tx, a)
}

func (d *analysisRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Analysis, error) {
	return d.inner.FindByID(ctx, tx, id)
}

func (d *analysisRepoCacheDecorator) UpdateProgress(ctx context.Context, tx repository.Tx, id string, status model.AnalysisStatus, progress int, currentStep string) error {
	return d.inner.UpdateProgress(ctx, tx, id, status, progress, currentStep)
}

func (d *analysisRepoCacheDecorator) MarkError(ctx context.Context, tx repository.Tx, id string, msg string) error {
	return d.inner.MarkError(ctx, tx, id, msg)
}

func (d *analysisRepoCacheDecorator) SetResult(ctx context.Context, tx repository.Tx, id string, result *model.FullResult) error {
	return d.inner.SetResult(ctx, tx, id, result)
}

func (d *analysisRepoCacheDecorator) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return d.inner.FailStale(ctx, olderThan)
}

func (d *analysisRepoCacheDecorator) CountByStatus(ctx context.Context) (map[model.AnalysisStatus]int, error) {
	return d.inner.CountByStatus(ctx)
}
