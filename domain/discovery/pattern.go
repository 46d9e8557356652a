package discovery

import (
	"math"

	"gopattern/domain/core"
)

// ConfidenceLabel grades how consistently a pattern replicated across folds.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "HIGH"
	ConfidenceMedium ConfidenceLabel = "MEDIUM"
	ConfidenceLow    ConfidenceLabel = "LOW"
)

// ConfidenceFor maps a validation rate to its label.
func ConfidenceFor(rate float64) ConfidenceLabel {
	switch {
	case rate >= 0.8:
		return ConfidenceHigh
	case rate >= 0.6:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// ValidatedPattern is a candidate that survived correction, with the correction, power
// and cross-validation results attached.
type ValidatedPattern struct {
	Candidate

	CorrectedAlpha float64 `json:"corrected_alpha"`
	Significant    bool    `json:"significant"`
	Power          float64 `json:"power"`

	FoldsRequested   int             `json:"folds_requested"`
	FoldsEvaluated   int             `json:"folds_evaluated"`
	FoldsMatched     int             `json:"folds_matched"`
	ValidationRate   float64         `json:"validation_rate"`
	ValidatesOverall bool            `json:"validates_overall"`
	Confidence       ConfidenceLabel `json:"confidence"`

	CombinedScore float64 `json:"combined_score"`
}

// CombinedScore ranks findings by effect size weighted by sample size.
func CombinedScore(effectSize float64, sampleSize int) float64 {
	return math.Abs(effectSize) * math.Sqrt(float64(sampleSize)) / 10
}

// RunStatus reports whether a run had enough data to analyze.
type RunStatus string

const (
	StatusCompleted        RunStatus = "completed"
	StatusInsufficientData RunStatus = "insufficient_data"
)

// RunSummary counts what happened in a run.
type RunSummary struct {
	DatasetSize      int                   `json:"dataset_size"`
	TestsExecuted    int                   `json:"tests_executed"`
	TotalCandidates  int                   `json:"total_candidates"`
	Retained         int                   `json:"retained"`
	Validated        int                   `json:"validated"`
	Returned         int                   `json:"returned"`
	CandidatesByKind map[CandidateKind]int `json:"candidates_by_kind,omitempty"`
	SkippedByReason  map[SkipReason]int    `json:"skipped_by_reason,omitempty"`
}

// AnalysisRun is the result of one engine invocation. It has no identity beyond the run.
type AnalysisRun struct {
	ID             core.RunID         `json:"id"`
	Status         RunStatus          `json:"status"`
	StatusDetail   string             `json:"status_detail,omitempty"`
	Outcome        string             `json:"outcome"`
	Patterns       []ValidatedPattern `json:"patterns"`
	Summary        RunSummary         `json:"summary"`
	CorrectedAlpha float64            `json:"corrected_alpha"`
	Settings       Settings           `json:"settings"`
	Fingerprint    core.Fingerprint   `json:"fingerprint"`
	CreatedAt      core.Timestamp     `json:"created_at"`
}

// Insufficient reports whether the run stopped for lack of data.
func (r *AnalysisRun) Insufficient() bool {
	return r.Status == StatusInsufficientData
}
