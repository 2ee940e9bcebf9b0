package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"llm-search-insight/internal/domain/model"
	"llm-search-insight/internal/domain/ports/adapter"
)

const (
	chartTypeBrandVisibility = "bar_chart_brand_visibility"
	visualizationTitle       = "Top 5 Brands by LLM Search Visibility"
	maxVisualizationInput    = 10000
)

// Visualizer extracts the structured brand-visibility package from the web
// findings with a JSON-mode LLM call. When the web half of collection was
// degraded, it builds a deterministic fallback from the assistant's brands
// instead of asking the model to score text that isn't there.
type Visualizer struct {
	ai    adapter.AIServiceAdapter
	model string
}

func NewVisualizer(ai adapter.AIServiceAdapter, model string) *Visualizer {
	return &Visualizer{ai: ai, model: model}
}

func (v *Visualizer) Stage() Stage {
	return Stage{Name: NameVisualize, Run: v.Run}
}

func (v *Visualizer) Run(ctx context.Context, sc *Context) error {
	if sc.Web == nil || sc.Assistant == nil {
		return errors.New("visualize ran before collect")
	}

	if sc.Web.Degraded {
		sc.Visualization = fallbackVisualization(sc.Assistant.IdentifiedBrands)
		return nil
	}

	viz, err := v.extract(ctx, sc.Web.Content)
	if err != nil {
		return err
	}
	sc.Visualization = viz
	return nil
}

func (v *Visualizer) extract(ctx context.Context, webAnalysis string) (*model.Visualization, error) {
	if len(webAnalysis) > maxVisualizationInput {
		// Back up to a rune boundary so the prompt never ends mid-character.
		cut := maxVisualizationInput
		for cut > 0 && !utf8.RuneStart(webAnalysis[cut]) {
			cut--
		}
		webAnalysis = webAnalysis[:cut]
	}

	prompt := fmt.Sprintf(`Analyze the following text, which is a summary of web search results for a specific query.
Identify the top 5 most prominent brands mentioned. Count mentions, assess prominence, and
calculate a visibility_score (1-100) per brand. Briefly explain the methodology you used.

Your response MUST be a single, valid JSON object of this shape:
{
  "top_5_brands": ["Brand A", "Brand B"],
  "brand_scores": [
    {"brand_name": "Brand A", "visibility_score": 95, "rank": 1, "mentions": 8}
  ],
  "methodology_explanation": "Your explanation here."
}

--- WEB ANALYSIS TEXT TO ANALYZE ---
%s`, webAnalysis)

	msgs := []adapter.Message{
		{Role: "system", Content: "You are a highly precise data analysis and extraction engine. Your only output must be a single, valid JSON object that strictly adheres to the requested format."},
		{Role: "user", Content: prompt},
	}
	recordPromptTokens(ctx, v.ai, v.model, NameVisualize, msgs)
	raw, err := v.ai.ChatJSON(ctx, v.model, msgs)
	if err != nil {
		return nil, fmt.Errorf("visualization extraction call: %w", err)
	}

	var extracted struct {
		Top5Brands             []string           `json:"top_5_brands"`
		BrandScores            []model.BrandScore `json:"brand_scores"`
		MethodologyExplanation string             `json:"methodology_explanation"`
	}
	if err := json.Unmarshal([]byte(raw), &extracted); err != nil {
		return nil, fmt.Errorf("visualization payload is not valid JSON: %w", err)
	}

	return &model.Visualization{
		ChartType:              chartTypeBrandVisibility,
		Title:                  visualizationTitle,
		XAxisLabel:             "Brand Name",
		YAxisLabel:             "Visibility Score (1-100)",
		Top5Brands:             extracted.Top5Brands,
		BrandScores:            extracted.BrandScores,
		MethodologyExplanation: extracted.MethodologyExplanation,
	}, nil
}

func fallbackVisualization(brands []string) *model.Visualization {
	if len(brands) > 5 {
		brands = brands[:5]
	}

	viz := &model.Visualization{
		ChartType:  chartTypeBrandVisibility,
		Title:      visualizationTitle,
		XAxisLabel: "Brand Name",
		YAxisLabel: "Visibility Score (1-100)",
	}

	if len(brands) == 0 {
		viz.Top5Brands = []string{"No brands identified"}
		viz.BrandScores = []model.BrandScore{{BrandName: "No brands identified", VisibilityScore: 1, Rank: 1, Mentions: 0}}
		viz.MethodologyExplanation = "Neither web analysis nor the assistant could identify specific brands for this query."
		return viz
	}

	viz.Top5Brands = brands
	for i, b := range brands {
		score := 100 - i*20
		if score < 1 {
			score = 1
		}
		viz.BrandScores = append(viz.BrandScores, model.BrandScore{
			BrandName:       b,
			VisibilityScore: score,
			Rank:            i + 1,
			Mentions:        1,
		})
	}
	viz.MethodologyExplanation = "Web analysis was unavailable, so brand visibility scores are estimated from the assistant's knowledge ranking. Higher scores indicate brands the model considers more prominent."
	return viz
}
