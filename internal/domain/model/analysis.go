package model

import "time"

type AnalysisStatus string

const (
	AnalysisStatusQueued       AnalysisStatus = "QUEUED"
	AnalysisStatusProcessing   AnalysisStatus = "PROCESSING"
	AnalysisStatusScraping     AnalysisStatus = "SCRAPING"
	AnalysisStatusSynthesizing AnalysisStatus = "SYNTHESIZING"
	AnalysisStatusComplete     AnalysisStatus = "COMPLETE"
	AnalysisStatusError        AnalysisStatus = "ERROR"
)

var statusRank = map[AnalysisStatus]int{
	AnalysisStatusQueued:       0,
	AnalysisStatusProcessing:   1,
	AnalysisStatusScraping:     2,
	AnalysisStatusSynthesizing: 3,
	AnalysisStatusComplete:     4,
	AnalysisStatusError:        4,
}

// Rank orders statuses along the pipeline. COMPLETE and ERROR share the
// terminal rank; a job never moves to a lower rank.
func (s AnalysisStatus) Rank() int { return statusRank[s] }

func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisStatusComplete || s == AnalysisStatusError
}

// Analysis is one research-question job with its own lifecycle and identifier.
type Analysis struct {
	ID               string
	Fingerprint      string
	ResearchQuestion string
	Status           AnalysisStatus
	Progress         int
	CurrentStep      string
	ErrorMessage     string
	Result           *FullResult
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

func NewAnalysis(id, fingerprint, question string) *Analysis {
	now := time.Now()
	return &Analysis{
		ID:               id,
		Fingerprint:      fingerprint,
		ResearchQuestion: question,
		Status:           AnalysisStatusQueued,
		Progress:         0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// CloneForCacheHit builds a fresh COMPLETE record that shares a prior job's
// payload. The new record gets its own id and completion time.
func (a *Analysis) CloneForCacheHit(newID string) *Analysis {
	now := time.Now()
	return &Analysis{
		ID:               newID,
		Fingerprint:      a.Fingerprint,
		ResearchQuestion: a.ResearchQuestion,
		Status:           AnalysisStatusComplete,
		Progress:         100,
		Result:           a.Result,
		CreatedAt:        now,
		UpdatedAt:        now,
		CompletedAt:      &now,
	}
}
