package stage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/adapter"
)

const fallbackSource = "Fallback Analysis"

// Collector gathers the raw material for an analysis: a summarized view of
// web search results and a direct assistant take on the question. The two
// halves run concurrently; SERP trouble degrades the web half instead of
// failing the stage, an LLM failure on the assistant half is fatal.
type Collector struct {
	ai     adapter.AIServiceAdapter
	search adapter.SearchAdapter
	model  string
}

func NewCollector(ai adapter.AIServiceAdapter, search adapter.SearchAdapter, model string) *Collector {
	return &Collector{ai: ai, search: search, model: model}
}

func (c *Collector) Stage() Stage {
	return Stage{Name: NameCollect, Run: c.Run}
}

func (c *Collector) Run(ctx context.Context, sc *Context) error {
	var (
		wg           sync.WaitGroup
		web          *model.WebFindings
		take         *model.AssistantTake
		assistantErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		web = c.webAnalysis(ctx, sc.Question)
	}()
	go func() {
		defer wg.Done()
		take, assistantErr = c.assistantTake(ctx, sc.Question)
	}()
	wg.Wait()

	if assistantErr != nil {
		return fmt.Errorf("assistant take: %w", assistantErr)
	}

	sc.Web = web
	sc.Assistant = take
	return nil
}

// webAnalysis never returns an error: when the SERP provider or the
// summarization call misbehaves it produces a low-confidence fallback so the
// pipeline can still finish on the assistant's knowledge alone.
func (c *Collector) webAnalysis(ctx context.Context, question string) *model.WebFindings {
	results, err := c.search.Search(ctx, question)
	if err != nil || len(results) == 0 {
		if err == nil {
			err = fmt.Errorf("no search results")
		}
		return degradedFindings(err)
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "Title: %s\nSnippet: %s\nSource: %s\n---\n", r.Title, r.Snippet, r.Source)
	}

	prompt := fmt.Sprintf(
		"Based on the following search results for the query %q:\n\n%s\n"+
			"Provide a comprehensive analysis of these results. Summarize the key findings, "+
			"identify the main brands or topics discussed, and conclude with the most relevant insights.",
		question, sb.String())

	msgs := []adapter.Message{
		{Role: "system", Content: "You are an expert research analyst. Provide clear, structured analysis based on the given search results."},
		{Role: "user", Content: prompt},
	}
	recordPromptTokens(ctx, c.ai, c.model, NameCollect, msgs)
	analysis, err := c.ai.Chat(ctx, c.model, msgs)
	if err != nil {
		return degradedFindings(err)
	}

	return &model.WebFindings{
		Source:          "SERP Web Analysis",
		Content:         analysis,
		Timestamp:       time.Now().UTC(),
		ConfidenceScore: confidence(analysis),
	}
}

func (c *Collector) assistantTake(ctx context.Context, question string) (*model.AssistantTake, error) {
	msgs := []adapter.Message{
		{Role: "system", Content: "You are a helpful assistant. Answer questions directly and clearly."},
		{Role: "user", Content: question},
	}
	recordPromptTokens(ctx, c.ai, c.model, NameCollect, msgs)
	answer, err := c.ai.Chat(ctx, c.model, msgs)
	if err != nil {
		return nil, err
	}

	brandsRaw, err := c.ai.Chat(ctx, c.model, []adapter.Message{
		{Role: "system", Content: "You extract brand and product names from text. Reply with a comma-separated list only, or NONE."},
		{Role: "user", Content: answer},
	})
	if err != nil {
		return nil, err
	}

	return &model.AssistantTake{
		SimulatedResponse: answer,
		IdentifiedBrands:  splitBrands(brandsRaw),
	}, nil
}

func degradedFindings(cause error) *model.WebFindings {
	return &model.WebFindings{
		Source: fallbackSource,
		Content: fmt.Sprintf("Unable to perform web analysis due to error: %v\n\n"+
			"This analysis is based on the assistant's knowledge only, without real-time web search data.", cause),
		Timestamp:       time.Now().UTC(),
		ConfidenceScore: 0.1,
		Degraded:        true,
	}
}

// confidence is a coarse score for a summarized analysis, not a statistical
// property of the result.
func confidence(analysis string) float64 {
	score := 0.7
	if len(analysis) > 800 {
		score += 0.2
	}
	lower := strings.ToLower(analysis)
	if strings.Contains(lower, "brand") || strings.Contains(lower, "company") {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func splitBrands(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
