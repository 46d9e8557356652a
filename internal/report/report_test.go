package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gopattern/domain/core"
	"gopattern/domain/discovery"
)

func sampleRun() *discovery.AnalysisRun {
	rule := discovery.PatternRule{Kind: discovery.KindThresholdEffect, Features: []string{"discount"}, Percentile: 50}
	cand := discovery.NewCandidate(rule)
	cand.Shape = discovery.ShapeStepUp
	cand.EffectSize = 1.2
	cand.PValue = 0.00001
	cand.SampleSize = 400
	cand.Description = "revenue steps up above discount = 20"
	return &discovery.AnalysisRun{
		ID:             core.NewRunID(),
		Status:         discovery.StatusCompleted,
		Outcome:        "revenue",
		CorrectedAlpha: 0.0025,
		Fingerprint:    core.Fingerprint(core.NewHash([]byte("x"))),
		CreatedAt:      core.NewTimestamp(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Settings:       discovery.Settings{RandomSeed: 42, CrossValidationFolds: 5},
		Summary: discovery.RunSummary{
			DatasetSize:      400,
			TestsExecuted:    20,
			TotalCandidates:  20,
			Retained:         1,
			Validated:        1,
			Returned:         1,
			CandidatesByKind: map[discovery.CandidateKind]int{discovery.KindThresholdEffect: 3, discovery.KindPolynomialTerm: 17},
			SkippedByReason:  map[discovery.SkipReason]int{discovery.SkipZeroVariance: 2},
		},
		Patterns: []discovery.ValidatedPattern{{
			Candidate:        cand,
			FoldsEvaluated:   5,
			FoldsMatched:     5,
			ValidationRate:   1,
			ValidatesOverall: true,
			Confidence:       discovery.ConfidenceHigh,
			CombinedScore:    2.4,
		}},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleRun())

	assert.True(t, strings.HasPrefix(md, "# Pattern discovery: revenue\n"))
	assert.Contains(t, md, "- Corrected alpha: 0.0025")
	assert.Contains(t, md, "| polynomial_term | 17 |")
	assert.Contains(t, md, "| zero_variance | 2 |")
	assert.Contains(t, md, "| 1 | threshold_effect | discount | step_up | 1.200 | 1.0e-05 | 400 | 5/5 | HIGH |")
	assert.Contains(t, md, "### 1. revenue steps up above discount = 20")
	assert.NotContains(t, md, "did not replicate")

	// kinds follow reporting order, not map order
	assert.Less(t, strings.Index(md, "polynomial"), strings.Index(md, "| threshold_effect | 3 |"))
}

func TestMarkdown_InsufficientData(t *testing.T) {
	run := sampleRun()
	run.Status = discovery.StatusInsufficientData
	run.Patterns = []discovery.ValidatedPattern{}

	md := Markdown(run)
	assert.Contains(t, md, "Not enough observations")
	assert.NotContains(t, md, "## Findings")
}

func TestMarkdown_NoFindings(t *testing.T) {
	run := sampleRun()
	run.Patterns = nil
	assert.Contains(t, Markdown(run), "No pattern survived correction.")
}

func TestHTML(t *testing.T) {
	out := string(HTML(sampleRun()))
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>HIGH</td>")
}
