package ai

import (
	"context"
	"time"

	"llm-search-insight/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev runs where
// no provider key is configured. It returns canned responses after a short
// simulated delay.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(100 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	return []string{"noop-model"}, nil
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	return "This is a canned response for local development.", nil
}

func (a *NoopAIAdapter) ChatJSON(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	return `{"top_5_brands":[],"brand_scores":{},"methodology_explanation":"noop"}`, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total, nil
}
