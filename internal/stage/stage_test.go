package stage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"llm-search-insight/internal/domain"
	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/adapter"
)

// ---- Fakes ----

type fakeAI struct {
	chatErr     error
	jsonErr     error
	jsonPayload string

	mu         sync.Mutex
	calls      []string // chat prompts seen, in order
	jsonCalls  []string // json-mode prompts seen, in order
	tokenCalls int
}

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"gpt-4o-mini"}, nil
}

func (f *fakeAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages[len(messages)-1].Content)
	f.mu.Unlock()
	if f.chatErr != nil {
		return "", f.chatErr
	}
	last := messages[len(messages)-1].Content
	if strings.Contains(messages[0].Content, "extract brand") {
		return "Brand A, Brand B", nil
	}
	if strings.Contains(last, "search results") {
		return "Analysis: Brand A leads, Brand B follows. Both brands are widely discussed.", nil
	}
	return "Brand A is generally considered the strongest option.", nil
}

func (f *fakeAI) ChatJSON(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	f.mu.Lock()
	f.jsonCalls = append(f.jsonCalls, messages[len(messages)-1].Content)
	f.mu.Unlock()
	if f.jsonErr != nil {
		return "", f.jsonErr
	}
	if f.jsonPayload != "" {
		return f.jsonPayload, nil
	}
	return `{"top_5_brands":["Brand A","Brand B"],"brand_scores":[{"brand_name":"Brand A","visibility_score":95,"rank":1,"mentions":8},{"brand_name":"Brand B","visibility_score":80,"rank":2,"mentions":5}],"methodology_explanation":"Mention frequency and prominence."}`, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	f.mu.Lock()
	f.tokenCalls++
	f.mu.Unlock()
	return 42, nil
}

func (f *fakeAI) countedTokens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

func (f *fakeAI) lastJSONPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jsonCalls) == 0 {
		return ""
	}
	return f.jsonCalls[len(f.jsonCalls)-1]
}

type fakeSearch struct {
	err     error
	results []adapter.SearchResult
}

func (f *fakeSearch) Search(ctx context.Context, query string) ([]adapter.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func someResults() []adapter.SearchResult {
	return []adapter.SearchResult{
		{Title: "Best tools 2024", Snippet: "Brand A tops the list", Source: "example.com"},
		{Title: "Comparison", Snippet: "Brand B is a close second", Source: "review.example"},
	}
}

func nopLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// ---- Harness ----

func TestHarnessTimeoutSurfacesAsStageFailure(t *testing.T) {
	h := NewHarness(20*time.Millisecond, nopLogger())
	blocked := Stage{Name: "sleepy", Run: func(ctx context.Context, sc *Context) error {
		// ignore ctx on purpose; the harness must still return
		time.Sleep(500 * time.Millisecond)
		return nil
	}}

	start := time.Now()
	err := h.Run(context.Background(), blocked, &Context{})
	if err == nil {
		t.Fatal("want timeout error")
	}
	var se *domain.StageError
	if !errors.As(err, &se) || se.Stage != "sleepy" {
		t.Fatalf("want StageError for stage sleepy, got %v", err)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatal("harness hung past its timeout")
	}
}

func TestHarnessWrapsStageErrors(t *testing.T) {
	h := NewHarness(time.Second, nopLogger())
	boom := errors.New("boom")
	st := Stage{Name: NameCollect, Run: func(ctx context.Context, sc *Context) error { return boom }}

	err := h.Run(context.Background(), st, &Context{})
	var se *domain.StageError
	if !errors.As(err, &se) {
		t.Fatalf("want StageError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatal("StageError must wrap the cause")
	}
}

// ---- Collect ----

func TestCollectPopulatesWebAndAssistant(t *testing.T) {
	ai := &fakeAI{}
	c := NewCollector(ai, &fakeSearch{results: someResults()}, "gpt-4o-mini")
	sc := &Context{Question: "What are the best frontend frameworks for 2024?"}

	if err := c.Run(context.Background(), sc); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if ai.countedTokens() < 2 {
		t.Fatalf("want prompt tokens counted for both collect calls, got %d", ai.countedTokens())
	}
	if sc.Web == nil || sc.Web.Degraded {
		t.Fatalf("want non-degraded web findings, got %+v", sc.Web)
	}
	if sc.Web.ConfidenceScore < 0.7 {
		t.Fatalf("confidence = %f", sc.Web.ConfidenceScore)
	}
	if sc.Assistant == nil || len(sc.Assistant.IdentifiedBrands) != 2 {
		t.Fatalf("want 2 identified brands, got %+v", sc.Assistant)
	}
}

func TestCollectDegradesOnSearchFailure(t *testing.T) {
	c := NewCollector(&fakeAI{}, &fakeSearch{err: errors.New("serp down")}, "gpt-4o-mini")
	sc := &Context{Question: "What are the best frontend frameworks for 2024?"}

	if err := c.Run(context.Background(), sc); err != nil {
		t.Fatalf("serp failure must not fail the stage: %v", err)
	}
	if !sc.Web.Degraded {
		t.Fatal("want degraded web findings")
	}
	if sc.Web.ConfidenceScore != 0.1 {
		t.Fatalf("degraded confidence = %f", sc.Web.ConfidenceScore)
	}
	if sc.Assistant == nil {
		t.Fatal("assistant take should still be collected")
	}
}

func TestCollectFailsWhenAssistantCallFails(t *testing.T) {
	c := NewCollector(&fakeAI{chatErr: errors.New("llm down")}, &fakeSearch{results: someResults()}, "gpt-4o-mini")
	sc := &Context{Question: "What are the best frontend frameworks for 2024?"}

	if err := c.Run(context.Background(), sc); err == nil {
		t.Fatal("want stage failure when the assistant call fails")
	}
}

// ---- Process ----

func TestProcessIsAPassThrough(t *testing.T) {
	p := NewProcessor()
	web := &model.WebFindings{Content: "analysis"}
	take := &model.AssistantTake{SimulatedResponse: "answer"}
	sc := &Context{Question: "q", Web: web, Assistant: take}

	if err := p.Run(context.Background(), sc); err != nil {
		t.Fatalf("process: %v", err)
	}
	if sc.Web != web || sc.Assistant != take {
		t.Fatal("process must not replace the collected context")
	}
}

func TestProcessRejectsIncompleteContext(t *testing.T) {
	p := NewProcessor()
	if err := p.Run(context.Background(), &Context{Question: "q"}); err == nil {
		t.Fatal("want error for missing collect output")
	}
}

// ---- Visualize ----

func TestVisualizeExtractsScores(t *testing.T) {
	ai := &fakeAI{}
	v := NewVisualizer(ai, "gpt-4o-mini")
	sc := &Context{
		Question:  "q",
		Web:       &model.WebFindings{Content: "Brand A leads."},
		Assistant: &model.AssistantTake{},
	}

	if err := v.Run(context.Background(), sc); err != nil {
		t.Fatalf("visualize: %v", err)
	}
	if ai.countedTokens() != 1 {
		t.Fatalf("want prompt tokens counted for the extraction call, got %d", ai.countedTokens())
	}
	viz := sc.Visualization
	if viz == nil || viz.ChartType != chartTypeBrandVisibility {
		t.Fatalf("visualization = %+v", viz)
	}
	if len(viz.BrandScores) != 2 || viz.BrandScores[0].BrandName != "Brand A" {
		t.Fatalf("brand scores = %+v", viz.BrandScores)
	}
}

func TestVisualizeTruncatesLongInputOnRuneBoundary(t *testing.T) {
	ai := &fakeAI{}
	v := NewVisualizer(ai, "gpt-4o-mini")
	// 3 bytes per rune; maxVisualizationInput is not a multiple of 3, so a
	// byte-index cut would land mid-rune.
	sc := &Context{
		Question:  "q",
		Web:       &model.WebFindings{Content: strings.Repeat("日", maxVisualizationInput)},
		Assistant: &model.AssistantTake{},
	}

	if err := v.Run(context.Background(), sc); err != nil {
		t.Fatalf("visualize: %v", err)
	}
	prompt := ai.lastJSONPrompt()
	if prompt == "" {
		t.Fatal("extraction call was not made")
	}
	if !utf8.ValidString(prompt) {
		t.Fatal("truncation produced an invalid UTF-8 prompt")
	}
	if len(prompt) > maxVisualizationInput+1024 {
		t.Fatalf("web analysis was not truncated: prompt is %d bytes", len(prompt))
	}
}

func TestVisualizeFallbackWhenWebDegraded(t *testing.T) {
	v := NewVisualizer(&fakeAI{jsonErr: errors.New("must not be called")}, "gpt-4o-mini")
	sc := &Context{
		Question:  "q",
		Web:       &model.WebFindings{Degraded: true},
		Assistant: &model.AssistantTake{IdentifiedBrands: []string{"A", "B", "C", "D", "E", "F"}},
	}

	if err := v.Run(context.Background(), sc); err != nil {
		t.Fatalf("visualize fallback: %v", err)
	}
	viz := sc.Visualization
	if len(viz.Top5Brands) != 5 {
		t.Fatalf("fallback must cap at 5 brands, got %d", len(viz.Top5Brands))
	}
	if viz.BrandScores[0].VisibilityScore != 100 || viz.BrandScores[4].VisibilityScore != 20 {
		t.Fatalf("fallback scores = %+v", viz.BrandScores)
	}
}

func TestVisualizeFallbackWithoutBrands(t *testing.T) {
	v := NewVisualizer(&fakeAI{}, "gpt-4o-mini")
	sc := &Context{
		Question:  "q",
		Web:       &model.WebFindings{Degraded: true},
		Assistant: &model.AssistantTake{},
	}

	if err := v.Run(context.Background(), sc); err != nil {
		t.Fatalf("visualize: %v", err)
	}
	if got := sc.Visualization.Top5Brands[0]; got != "No brands identified" {
		t.Fatalf("placeholder brand = %q", got)
	}
}

func TestVisualizeFailsOnBrokenJSON(t *testing.T) {
	v := NewVisualizer(&fakeAI{jsonPayload: "{not json"}, "gpt-4o-mini")
	sc := &Context{
		Question:  "q",
		Web:       &model.WebFindings{Content: "text"},
		Assistant: &model.AssistantTake{},
	}

	if err := v.Run(context.Background(), sc); err == nil {
		t.Fatal("want error on malformed extraction payload")
	}
}
