package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"llm-search-insight/internal/domain/ports/repository"
	"llm-search-insight/internal/infra/metrics"
)

// ReaperWorker periodically sweeps analyses that stopped making progress,
// usually after a crash mid-run, into the error state so pollers are not
// left watching a job that will never finish.
type ReaperWorker struct {
	interval  time.Duration
	olderThan time.Duration
	repo      repository.AnalysisRepository
	log       *zerolog.Logger
}

func NewReaperWorker(interval, olderThan time.Duration, repo repository.AnalysisRepository, logger *zerolog.Logger) *ReaperWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if olderThan <= 0 {
		olderThan = 15 * time.Minute
	}
	reapLog := logger.With().Str("component", "ReaperWorker").Logger()
	return &ReaperWorker{
		interval:  interval,
		olderThan: olderThan,
		repo:      repo,
		log:       &reapLog,
	}
}

func (w *ReaperWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting reaper worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reaper worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.repo.FailStale(ctx, w.olderThan)
			if err != nil {
				w.log.Error().Err(err).Msg("reaper worker error")
			}
			if n > 0 {
				metrics.IncReaped(n)
				w.log.Info().Int("count", n).Msg("stale analyses failed")
			}
		}
	}
}
