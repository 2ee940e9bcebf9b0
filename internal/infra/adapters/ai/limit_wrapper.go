package ai

import (
	"context"

	"llm-search-insight/internal/domain/ports/adapter"
)

// limitedAI caps the number of in-flight chat calls so a burst of scheduled
// analyses cannot blow through provider rate limits. Metadata calls
// (ListModels, CountTokens) bypass the cap.
type limitedAI struct {
	inner adapter.AIServiceAdapter
	slots chan struct{}
}

var _ adapter.AIServiceAdapter = (*limitedAI)(nil)

func NewLimitedAI(inner adapter.AIServiceAdapter, maxConcurrent int) adapter.AIServiceAdapter {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &limitedAI{inner: inner, slots: make(chan struct{}, maxConcurrent)}
}

// acquire blocks until a slot frees or the caller's context expires.
func (l *limitedAI) acquire(ctx context.Context) (release func(), err error) {
	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *limitedAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return l.inner.Chat(ctx, model, messages)
}

func (l *limitedAI) ChatJSON(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return l.inner.ChatJSON(ctx, model, messages)
}

func (l *limitedAI) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return l.inner.CountTokens(ctx, model, messages)
}
