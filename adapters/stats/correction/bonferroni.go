package correction

import (
	"gopattern/adapters/stats/inference"
	"gopattern/domain/discovery"
	"gopattern/internal"
)

// Result is the outcome of correcting one run's full candidate list.
type Result struct {
	CorrectedAlpha  float64
	TotalCandidates int
	Retained        []discovery.ValidatedPattern
}

// Corrector applies Bonferroni correction and attaches achieved power to survivors.
type Corrector struct {
	settings discovery.Settings
	logger   *internal.Logger
}

func NewCorrector(settings discovery.Settings, logger *internal.Logger) *Corrector {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &Corrector{settings: settings, logger: logger.Named("correction")}
}

// CorrectedAlpha divides the base level by the number of candidates. With no candidates,
// or with correction switched off, the base level is returned unchanged.
func CorrectedAlpha(base float64, candidates int, apply bool) float64 {
	if !apply || candidates == 0 {
		return base
	}
	return base / float64(candidates)
}

// Correct must be called once with every candidate of the run; partial lists give a
// wrong correction factor. Input order is preserved among survivors.
func (c *Corrector) Correct(candidates []discovery.Candidate) Result {
	alpha := CorrectedAlpha(c.settings.BaseSignificanceLevel, len(candidates), c.settings.ApplyCorrection)
	res := Result{CorrectedAlpha: alpha, TotalCandidates: len(candidates)}

	for _, cand := range candidates {
		if !(cand.PValue < alpha) {
			continue
		}
		res.Retained = append(res.Retained, discovery.ValidatedPattern{
			Candidate:      cand,
			CorrectedAlpha: alpha,
			Significant:    true,
			Power:          inference.Power(cand.EffectSize, cand.SampleSize, alpha),
		})
	}
	c.logger.Info("correction: alpha %.3g over %d candidates, %d retained", alpha, len(candidates), len(res.Retained))
	return res
}
