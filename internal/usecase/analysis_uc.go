// File: internal/usecase/analysis_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llm-search-insight/internal/domain"
	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/repository"
	"llm-search-insight/internal/infra/metrics"
	"llm-search-insight/internal/stage"
)

// Compile-time check
var _ AnalysisUseCase = (*analysisUC)(nil)

// Status is the client-facing polling view of a job.
type Status struct {
	Status       model.AnalysisStatus `json:"status"`
	Progress     int                  `json:"progress"`
	CurrentStep  string               `json:"current_step,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

// Scheduler hands a run off to a background worker without blocking the caller.
type Scheduler interface {
	Schedule(run func(ctx context.Context)) error
}

// RunLocker guards a job's run across processes. Satisfied by the redis locker.
type RunLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type AnalysisUseCase interface {
	// Submit validates the question, serves a fresh cached result when one
	// exists, and otherwise creates a QUEUED job and schedules its run. It
	// never waits for a stage to execute.
	Submit(ctx context.Context, question string) (*model.Analysis, error)

	// Run executes the stage pipeline for one job. At most one run is active
	// per job id; re-invocation on a running or terminal job is a no-op.
	Run(ctx context.Context, id string)

	StatusOf(ctx context.Context, id string) (*Status, error)
	ResultOf(ctx context.Context, id string) (*model.FullResult, error)
}

type analysisUC struct {
	repo    repository.AnalysisRepository
	harness *stage.Harness
	collect stage.Stage
	process stage.Stage
	visual  stage.Stage
	sched   Scheduler
	locker  RunLocker
	ttl     time.Duration
	lockTTL time.Duration
	log     *zerolog.Logger

	inflight sync.Map // analysis id -> struct{}
}

func NewAnalysisUseCase(
	repo repository.AnalysisRepository,
	harness *stage.Harness,
	collect, process, visual stage.Stage,
	sched Scheduler,
	locker RunLocker,
	cacheTTL time.Duration,
	log *zerolog.Logger,
) *analysisUC {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &analysisUC{
		repo:    repo,
		harness: harness,
		collect: collect,
		process: process,
		visual:  visual,
		sched:   sched,
		locker:  locker,
		ttl:     cacheTTL,
		lockTTL: 30 * time.Minute,
		log:     log,
	}
}

func (u *analysisUC) Submit(ctx context.Context, question string) (*model.Analysis, error) {
	question = strings.TrimSpace(question)
	if !model.ValidQuestionLength(question) {
		return nil, fmt.Errorf("%w: research_question must be %d-%d characters",
			domain.ErrInvalidArgument, model.MinQuestionLen, model.MaxQuestionLen)
	}

	fp := model.Fingerprint(question)

	cached, err := u.repo.FindFreshByFingerprint(ctx, fp, u.ttl)
	switch {
	case err == nil:
		clone := cached.CloneForCacheHit(uuid.NewString())
		if err := u.repo.Save(ctx, nil, clone); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
		}
		metrics.IncCacheServe("hit")
		u.log.Info().Str("analysis_id", clone.ID).Str("cached_id", cached.ID).Msg("served analysis from cache")
		return clone, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}

	a := model.NewAnalysis(uuid.NewString(), fp, question)
	if err := u.repo.Save(ctx, nil, a); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}
	metrics.IncCacheServe("miss")

	if err := u.sched.Schedule(func(ctx context.Context) { u.Run(ctx, a.ID) }); err != nil {
		// The row stays QUEUED; the stale reaper will eventually fail it.
		u.log.Error().Err(err).Str("analysis_id", a.ID).Msg("failed to schedule analysis run")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}

	u.log.Info().Str("analysis_id", a.ID).Msg("analysis queued")
	return a, nil
}

func (u *analysisUC) Run(ctx context.Context, id string) {
	if _, loaded := u.inflight.LoadOrStore(id, struct{}{}); loaded {
		return
	}
	defer u.inflight.Delete(id)

	lockKey := "analysis:run:" + id
	token, err := u.locker.TryLock(ctx, lockKey, u.lockTTL)
	if err != nil {
		u.log.Warn().Err(err).Str("analysis_id", id).Msg("run lock not acquired; skipping")
		return
	}
	defer func() { _ = u.locker.Unlock(context.Background(), lockKey, token) }()

	a, err := u.repo.FindByID(ctx, nil, id)
	if err != nil {
		u.log.Error().Err(err).Str("analysis_id", id).Msg("analysis not found at run start")
		return
	}
	if a.Status != model.AnalysisStatusQueued {
		// terminal, or another process already advanced it
		return
	}

	u.log.Info().Str("analysis_id", id).Msg("starting analysis run")
	start := time.Now()

	sc := &stage.Context{Question: a.ResearchQuestion}

	steps := []struct {
		enter    model.AnalysisStatus
		progress int
		label    string
		st       stage.Stage
	}{
		{model.AnalysisStatusProcessing, 10, "Collecting search and assistant data", u.collect},
		{model.AnalysisStatusScraping, 30, "Processing analysis results", u.process},
		{model.AnalysisStatusSynthesizing, 60, "Synthesizing final report and visualization", u.visual},
	}

	for _, step := range steps {
		if err := u.repo.UpdateProgress(ctx, nil, id, step.enter, step.progress, step.label); err != nil {
			u.log.Error().Err(err).Str("analysis_id", id).Msg("failed to persist transition")
			u.fail(id, fmt.Sprintf("internal error persisting %s transition", step.enter))
			return
		}

		stageStart := time.Now()
		err := u.harness.Run(ctx, step.st, sc)
		metrics.ObserveStage(step.st.Name, time.Since(stageStart), err == nil)
		if err != nil {
			u.fail(id, err.Error())
			return
		}
	}

	result := &model.FullResult{
		AnalysisID:        id,
		ResearchQuestion:  a.ResearchQuestion,
		Status:            model.AnalysisStatusComplete,
		CompletedAt:       time.Now().UTC(),
		WebResults:        sc.Web,
		ChatGPTSimulation: sc.Assistant,
		Visualization:     sc.Visualization,
	}
	if err := u.repo.SetResult(ctx, nil, id, result); err != nil {
		u.log.Error().Err(err).Str("analysis_id", id).Msg("failed to persist result")
		u.fail(id, "internal error persisting result")
		return
	}

	metrics.IncAnalysis(string(model.AnalysisStatusComplete))
	u.log.Info().Str("analysis_id", id).Dur("duration", time.Since(start)).Msg("analysis complete")
}

// fail records the terminal ERROR state. Uses a background context so a
// cancelled run can still leave a diagnosable row behind.
func (u *analysisUC) fail(id, msg string) {
	if err := u.repo.MarkError(context.Background(), nil, id, msg); err != nil {
		u.log.Error().Err(err).Str("analysis_id", id).Msg("failed to persist error state")
		return
	}
	metrics.IncAnalysis(string(model.AnalysisStatusError))
	u.log.Warn().Str("analysis_id", id).Str("error_message", msg).Msg("analysis failed")
}

func (u *analysisUC) StatusOf(ctx context.Context, id string) (*Status, error) {
	a, err := u.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &Status{
		Status:       a.Status,
		Progress:     a.Progress,
		CurrentStep:  a.CurrentStep,
		ErrorMessage: a.ErrorMessage,
	}, nil
}

// ResultOf returns the stored payload verbatim. Any non-COMPLETE status,
// ERROR included, yields ErrNotReady; polling StatusOf is how clients learn
// about failures. This call never triggers computation.
func (u *analysisUC) ResultOf(ctx context.Context, id string) (*model.FullResult, error) {
	a, err := u.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AnalysisStatusComplete || a.Result == nil {
		return nil, domain.ErrNotReady
	}
	return a.Result, nil
}
