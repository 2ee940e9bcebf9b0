// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"llm-search-insight/internal/domain"
	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/adapter"
	"llm-search-insight/internal/domain/ports/repository"
)

// observation is one snapshot of a row's lifecycle, recorded on every write so
// tests can assert ordering and monotonicity.
type observation struct {
	Status   model.AnalysisStatus
	Progress int
}

// memAnalysisRepo is a small in-memory Job Store used by unit tests.
type memAnalysisRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Analysis
	history map[string][]observation
	saveErr error // simulate persistence failures
	findErr error
}

func newMemAnalysisRepo() *memAnalysisRepo {
	return &memAnalysisRepo{
		store:   make(map[string]*model.Analysis),
		history: make(map[string][]observation),
	}
}

func (m *memAnalysisRepo) observe(a *model.Analysis) {
	m.history[a.ID] = append(m.history[a.ID], observation{Status: a.Status, Progress: a.Progress})
}

func (m *memAnalysisRepo) Save(ctx context.Context, _ repository.Tx, a *model.Analysis) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
	m.observe(&cp)
	return nil
}

func (m *memAnalysisRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Analysis, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAnalysisRepo) UpdateProgress(ctx context.Context, _ repository.Tx, id string, status model.AnalysisStatus, progress int, currentStep string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if status.Rank() < a.Status.Rank() || progress < a.Progress {
		return fmt.Errorf("%w: status regression %s -> %s", domain.ErrInvalidArgument, a.Status, status)
	}
	a.Status = status
	a.Progress = progress
	a.CurrentStep = currentStep
	a.UpdatedAt = time.Now()
	m.observe(a)
	return nil
}

func (m *memAnalysisRepo) MarkError(ctx context.Context, _ repository.Tx, id string, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	a.Status = model.AnalysisStatusError
	a.ErrorMessage = msg
	a.CurrentStep = ""
	a.CompletedAt = &now
	a.UpdatedAt = now
	m.observe(a)
	return nil
}

func (m *memAnalysisRepo) SetResult(ctx context.Context, _ repository.Tx, id string, result *model.FullResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	a.Status = model.AnalysisStatusComplete
	a.Progress = 100
	a.CurrentStep = ""
	a.Result = result
	a.CompletedAt = &now
	a.UpdatedAt = now
	m.observe(a)
	return nil
}

func (m *memAnalysisRepo) FindFreshByFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (*model.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Analysis
	cutoff := time.Now().Add(-ttl)
	for _, a := range m.store {
		if a.Fingerprint != fingerprint || a.Status != model.AnalysisStatusComplete || a.CompletedAt == nil {
			continue
		}
		if a.CompletedAt.Before(cutoff) {
			continue
		}
		if best == nil || a.CompletedAt.After(*best.CompletedAt) {
			best = a
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memAnalysisRepo) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	n := 0
	for _, a := range m.store {
		if !a.Status.Terminal() && a.UpdatedAt.Before(cutoff) {
			now := time.Now()
			a.Status = model.AnalysisStatusError
			a.ErrorMessage = "analysis stalled and was reaped"
			a.CurrentStep = ""
			a.CompletedAt = &now
			a.UpdatedAt = now
			m.observe(a)
			n++
		}
	}
	return n, nil
}

func (m *memAnalysisRepo) CountByStatus(ctx context.Context) (map[model.AnalysisStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.AnalysisStatus]int)
	for _, a := range m.store {
		out[a.Status]++
	}
	return out, nil
}

func (m *memAnalysisRepo) historyOf(id string) []observation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]observation, len(m.history[id]))
	copy(out, m.history[id])
	return out
}

// backdateCompletion ages a completed row so cache-expiry paths can be tested.
func (m *memAnalysisRepo) backdateCompletion(id string, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.store[id]; ok && a.CompletedAt != nil {
		t := a.CompletedAt.Add(-age)
		a.CompletedAt = &t
	}
}

// manualSched captures scheduled runs so tests decide when (and whether) they
// execute.
type manualSched struct {
	mu   sync.Mutex
	runs []func(ctx context.Context)
	err  error
}

func (s *manualSched) Schedule(run func(ctx context.Context)) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *manualSched) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func (s *manualSched) drain(ctx context.Context) {
	s.mu.Lock()
	runs := s.runs
	s.runs = nil
	s.mu.Unlock()
	for _, r := range runs {
		r(ctx)
	}
}

// fakeProvider is a minimal AI adapter for the stats surface.
type fakeProvider struct{ models []string }

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) { return f.models, nil }
func (f *fakeProvider) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	return "", nil
}
func (f *fakeProvider) ChatJSON(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	return "", nil
}
func (f *fakeProvider) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}

// grantLocker always grants the run lock.
type grantLocker struct{}

func (grantLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "token", nil
}
func (grantLocker) Unlock(ctx context.Context, key, token string) error { return nil }
