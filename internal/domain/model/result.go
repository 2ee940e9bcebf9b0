package model

import "time"

// WebFindings is the collected and summarized web-search side of an analysis.
type WebFindings struct {
	Source          string    `json:"source"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	ConfidenceScore float64   `json:"confidence_score"`
	Degraded        bool      `json:"degraded,omitempty"`
}

// AssistantTake is the direct LLM answer to the question, with the brands the
// model volunteered.
type AssistantTake struct {
	SimulatedResponse string   `json:"simulated_response"`
	IdentifiedBrands  []string `json:"identified_brands"`
}

type BrandScore struct {
	BrandName       string `json:"brand_name"`
	VisibilityScore int    `json:"visibility_score"`
	Rank            int    `json:"rank"`
	Mentions        int    `json:"mentions"`
}

type Visualization struct {
	ChartType              string       `json:"chart_type"`
	Title                  string       `json:"title"`
	XAxisLabel             string       `json:"x_axis_label"`
	YAxisLabel             string       `json:"y_axis_label"`
	Top5Brands             []string     `json:"top_5_brands"`
	BrandScores            []BrandScore `json:"brand_scores"`
	MethodologyExplanation string       `json:"methodology_explanation"`
}

// FullResult is the payload stored on a COMPLETE analysis and returned verbatim
// by the result endpoint.
type FullResult struct {
	AnalysisID        string         `json:"analysis_id"`
	ResearchQuestion  string         `json:"research_question"`
	Status            AnalysisStatus `json:"status"`
	CompletedAt       time.Time      `json:"completed_at"`
	WebResults        *WebFindings   `json:"web_results"`
	ChatGPTSimulation *AssistantTake `json:"chatgpt_simulation"`
	Visualization     *Visualization `json:"visualization"`
}
