package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopattern/domain/core"
)

// CandidateKind identifies which procedure produced a candidate.
type CandidateKind string

const (
	KindSubgroupPattern     CandidateKind = "subgroup_pattern"
	KindPolynomialTerm      CandidateKind = "polynomial_term"
	KindPairwiseInteraction CandidateKind = "pairwise_interaction"
	KindThreeWayInteraction CandidateKind = "three_way_interaction"
	KindThresholdEffect     CandidateKind = "threshold_effect"
	KindSignFlip            CandidateKind = "sign_flip"
)

// AllCandidateKinds lists kinds in reporting order.
var AllCandidateKinds = []CandidateKind{
	KindSubgroupPattern,
	KindPolynomialTerm,
	KindPairwiseInteraction,
	KindThreeWayInteraction,
	KindThresholdEffect,
	KindSignFlip,
}

// Shape labels attached to candidates.
const (
	ShapeAboveBaseline  = "above_baseline"
	ShapeBelowBaseline  = "below_baseline"
	ShapeUShaped        = "u_shaped"
	ShapeInverseU       = "inverse_u"
	ShapeSCurveRising   = "s_curve_rising"
	ShapeSCurveFalling  = "s_curve_falling"
	ShapeSynergistic    = "synergistic"
	ShapeAntagonistic   = "antagonistic"
	ShapeStepUp         = "step_up"
	ShapeStepDown       = "step_down"
	ShapeContextReverse = "context_reversal"
)

// PatternRule is the re-derivable definition of a candidate. Value-dependent parts
// (bucket edges, cut-points, coefficients) are recomputed from whatever data the rule
// is applied to.
type PatternRule struct {
	Kind     CandidateKind `json:"kind"`
	Features []string      `json:"features"`
	Context  string        `json:"context,omitempty"`

	// Subgroup patterns: either a categorical/boolean level or a quantile bucket.
	// Buckets is the requested bucket count and Groups the count left after tied
	// edges collapsed; Groups is zero when nothing collapsed.
	Level   string `json:"level,omitempty"`
	Bucket  int    `json:"bucket,omitempty"`
	Buckets int    `json:"buckets,omitempty"`
	Groups  int    `json:"groups,omitempty"`

	// Threshold effects.
	Percentile float64 `json:"percentile,omitempty"`

	// Polynomial terms.
	Degree int `json:"degree,omitempty"`

	// Sign flips.
	NegativeLevel string `json:"negative_level,omitempty"`
	PositiveLevel string `json:"positive_level,omitempty"`

	// Direction is the sign of the effect at discovery time (+1 or -1).
	Direction int `json:"direction"`
}

// IsBucketed reports whether a subgroup rule refers to a quantile bucket.
func (r PatternRule) IsBucketed() bool {
	return r.Kind == KindSubgroupPattern && r.Buckets > 0
}

// BucketCount returns the number of quantile groups the rule's feature actually splits into.
func (r PatternRule) BucketCount() int {
	if r.Groups > 0 {
		return r.Groups
	}
	return r.Buckets
}

// Key is a canonical text form of the rule; identical rules produce identical keys.
func (r PatternRule) Key() string {
	parts := []string{string(r.Kind), strings.Join(r.Features, "*")}
	switch r.Kind {
	case KindSubgroupPattern:
		if r.IsBucketed() {
			parts = append(parts, fmt.Sprintf("q%d/%d", r.Bucket+1, r.BucketCount()))
			if r.BucketCount() != r.Buckets {
				parts = append(parts, fmt.Sprintf("of%d", r.Buckets))
			}
		} else {
			parts = append(parts, "level="+r.Level)
		}
	case KindThresholdEffect:
		parts = append(parts, "p"+strconv.FormatFloat(r.Percentile, 'f', -1, 64))
	case KindPolynomialTerm:
		parts = append(parts, "deg"+strconv.Itoa(r.Degree))
	case KindSignFlip:
		parts = append(parts, "ctx="+r.Context, r.NegativeLevel+"<0<"+r.PositiveLevel)
	}
	return strings.Join(parts, "|")
}

// ID derives the deterministic pattern identifier from the rule.
func (r PatternRule) ID() core.PatternID {
	return core.PatternID(core.NewHash([]byte(r.Key())).Short())
}

// Candidate is an unconfirmed finding awaiting multiple-comparison correction.
type Candidate struct {
	ID          core.PatternID     `json:"id"`
	Kind        CandidateKind      `json:"kind"`
	Features    []string           `json:"features"`
	Context     string             `json:"context,omitempty"`
	Statistic   float64            `json:"statistic"`
	PValue      float64            `json:"p_value"`
	EffectSize  float64            `json:"effect_size"`
	SampleSize  int                `json:"sample_size"`
	Shape       string             `json:"shape,omitempty"`
	Description string             `json:"description"`
	Rule        PatternRule        `json:"rule"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// NewCandidate fills identity fields from the rule.
func NewCandidate(rule PatternRule) Candidate {
	rule.Features = append([]string(nil), rule.Features...)
	return Candidate{
		ID:       rule.ID(),
		Kind:     rule.Kind,
		Features: append([]string(nil), rule.Features...),
		Context:  rule.Context,
		Rule:     rule,
		Metrics:  make(map[string]float64),
	}
}

// SkipReason classifies why a candidate test produced no candidate.
type SkipReason string

const (
	SkipInsufficientData SkipReason = "insufficient_data"
	SkipZeroVariance     SkipReason = "zero_variance"
	SkipSingularMatrix   SkipReason = "singular_matrix"
	SkipDegenerateFold   SkipReason = "degenerate_fold"
	SkipNumericFailure   SkipReason = "numeric_failure"
	SkipBudgetExhausted  SkipReason = "budget_exhausted"
)

// SkipReasonFor maps a numerical error to its skip reason.
func SkipReasonFor(err error) SkipReason {
	switch {
	case core.IsInsufficientData(err):
		return SkipInsufficientData
	case errors.Is(err, core.ErrZeroVariance):
		return SkipZeroVariance
	case errors.Is(err, core.ErrSingularMatrix):
		return SkipSingularMatrix
	case errors.Is(err, core.ErrDegenerateFold):
		return SkipDegenerateFold
	}
	return SkipNumericFailure
}

// OutcomeStatus is the result class of one candidate test.
type OutcomeStatus string

const (
	OutcomeEmitted  OutcomeStatus = "emitted"
	OutcomeScreened OutcomeStatus = "screened_out"
	OutcomeSkipped  OutcomeStatus = "skipped"
)

// TestOutcome is the explicit result of one candidate test: an emitted candidate, a test
// that ran but missed its emission rule, or a skipped test with a reason.
type TestOutcome struct {
	Status    OutcomeStatus
	Candidate *Candidate
	Reason    SkipReason
	Test      string
	Detail    string
}

// Emit wraps an emitted candidate.
func Emit(c Candidate) TestOutcome {
	return TestOutcome{Status: OutcomeEmitted, Candidate: &c, Test: c.Rule.Key()}
}

// Screened records a test that ran but did not meet its emission rule.
func Screened(test string) TestOutcome {
	return TestOutcome{Status: OutcomeScreened, Test: test}
}

// Skipped records a test that could not be computed.
func Skipped(test string, reason SkipReason, detail string) TestOutcome {
	return TestOutcome{Status: OutcomeSkipped, Test: test, Reason: reason, Detail: detail}
}

// SkippedErr records a test that failed with a numerical error.
func SkippedErr(test string, err error) TestOutcome {
	return Skipped(test, SkipReasonFor(err), err.Error())
}

// Candidates extracts emitted candidates in order.
func Candidates(outcomes []TestOutcome) []Candidate {
	var out []Candidate
	for _, o := range outcomes {
		if o.Status == OutcomeEmitted && o.Candidate != nil {
			out = append(out, *o.Candidate)
		}
	}
	return out
}
