//go:build !integration

package postgres

import (
	"context"
	"time"

	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/repository"
	red "llm-search-insight/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerAnalysisRepo mocks the database repository that the decorator wraps.
type mockInnerAnalysisRepo struct {
	SaveFunc                   func(ctx context.Context, tx repository.Tx, a *model.Analysis) error
	FindByIDFunc               func(ctx context.Context, tx repository.Tx, id string) (*model.Analysis, error)
	UpdateProgressFunc         func(ctx context.Context, tx repository.Tx, id string, status model.AnalysisStatus, progress int, currentStep string) error
	MarkErrorFunc              func(ctx context.Context, tx repository.Tx, id string, msg string) error
	SetResultFunc              func(ctx context.Context, tx repository.Tx, id string, result *model.FullResult) error
	FindFreshByFingerprintFunc func(ctx context.Context, fingerprint string, ttl time.Duration) (*model.Analysis, error)
	FailStaleFunc              func(ctx context.Context, olderThan time.Duration) (int, error)
	CountByStatusFunc          func(ctx context.Context) (map[model.AnalysisStatus]int, error)
}

func (m *mockInnerAnalysisRepo) Save(ctx context.Context, tx repository.Tx, a *model.Analysis) error {
	return m.SaveFunc(ctx, tx, a)
}
func (m *mockInnerAnalysisRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Analysis, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerAnalysisRepo) UpdateProgress(ctx context.Context, tx repository.Tx, id string, status model.AnalysisStatus, progress int, currentStep string) error {
	return m.UpdateProgressFunc(ctx, tx, id, status, progress, currentStep)
}
func (m *mockInnerAnalysisRepo) MarkError(ctx context.Context, tx repository.Tx, id string, msg string) error {
	return m.MarkErrorFunc(ctx, tx, id, msg)
}
func (m *mockInnerAnalysisRepo) SetResult(ctx context.Context, tx repository.Tx, id string, result *model.FullResult) error {
	return m.SetResultFunc(ctx, tx, id, result)
}
func (m *mockInnerAnalysisRepo) FindFreshByFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (*model.Analysis, error) {
	return m.FindFreshByFingerprintFunc(ctx, fingerprint, ttl)
}
func (m *mockInnerAnalysisRepo) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return m.FailStaleFunc(ctx, olderThan)
}
func (m *mockInnerAnalysisRepo) CountByStatus(ctx context.Context) (map[model.AnalysisStatus]int, error) {
	return m.CountByStatusFunc(ctx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
