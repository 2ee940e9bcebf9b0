// File: internal/usecase/stats_uc.go
package usecase

import (
	"context"

	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/adapter"
	"llm-search-insight/internal/domain/ports/repository"
)

var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	// Totals reports analysis counts by status for the admin surface.
	Totals(ctx context.Context) (map[model.AnalysisStatus]int, error)

	// Models lists the model ids available from the configured AI provider.
	Models(ctx context.Context) ([]string, error)
}

type statsUC struct {
	repo repository.AnalysisRepository
	ai   adapter.AIServiceAdapter
}

func NewStatsUseCase(repo repository.AnalysisRepository, ai adapter.AIServiceAdapter) *statsUC {
	return &statsUC{repo: repo, ai: ai}
}

func (s *statsUC) Totals(ctx context.Context) (map[model.AnalysisStatus]int, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *statsUC) Models(ctx context.Context) ([]string, error) {
	return s.ai.ListModels(ctx)
}
