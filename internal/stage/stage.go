// Package stage holds the three analysis stages and the harness that runs
// them. Stages are pure transforms over an accumulated Context: they know
// nothing about job identity, persistence or the state machine.
package stage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"llm-search-insight/internal/domain"
	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/adapter"
	"llm-search-insight/internal/infra/metrics"
)

const (
	NameCollect   = "collect"
	NameProcess   = "process"
	NameVisualize = "visualize"
)

// Context is the accumulated state handed from stage to stage. It starts with
// just the question; each stage enriches it.
type Context struct {
	Question      string
	Web           *model.WebFindings
	Assistant     *model.AssistantTake
	Visualization *model.Visualization
}

// Func runs one stage against the accumulated context, mutating it in place.
type Func func(ctx context.Context, sc *Context) error

type Stage struct {
	Name string
	Run  Func
}

// Harness enforces the per-stage execution contract: a timeout per stage and
// no retries. A timed-out stage surfaces as a stage failure, never a hang,
// even if the stage ignores its context.
type Harness struct {
	timeout time.Duration
	log     *zerolog.Logger
}

// recordPromptTokens counts and records the prompt size of an LLM call.
// Best effort: a counting failure never affects the run.
func recordPromptTokens(ctx context.Context, ai adapter.AIServiceAdapter, model, stageName string, messages []adapter.Message) {
	if n, err := ai.CountTokens(ctx, model, messages); err == nil {
		metrics.ObservePromptTokens(stageName, n)
	}
}

func NewHarness(timeout time.Duration, log *zerolog.Logger) *Harness {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Harness{timeout: timeout, log: log}
}

func (h *Harness) Run(ctx context.Context, st Stage, sc *Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx, sc) }()

	select {
	case err := <-done:
		if err != nil {
			h.log.Error().Err(err).Str("stage", st.Name).Dur("duration", time.Since(start)).Msg("stage failed")
			return domain.NewStageError(st.Name, err)
		}
		h.log.Debug().Str("stage", st.Name).Dur("duration", time.Since(start)).Msg("stage finished")
		return nil
	case <-ctx.Done():
		h.log.Error().Str("stage", st.Name).Dur("duration", time.Since(start)).Msg("stage timed out")
		return domain.NewStageError(st.Name, ctx.Err())
	}
}
