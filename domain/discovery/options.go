package discovery

import (
	"fmt"
	"math"

	"gopattern/internal/errors"
)

// Options are the caller-facing engine options. Zero values select defaults, some of which
// scale with dataset size; Resolve turns Options into concrete Settings once per run.
type Options struct {
	MinSampleSize         int       `json:"min_sample_size,omitempty" yaml:"min_sample_size"`
	BaseSignificanceLevel float64   `json:"base_significance_level,omitempty" yaml:"base_significance_level"`
	ApplyCorrection       *bool     `json:"apply_multiple_comparison_correction,omitempty" yaml:"apply_multiple_comparison_correction"`
	MaxResults            int       `json:"max_results,omitempty" yaml:"max_results"`
	CrossValidationFolds  int       `json:"cross_validation_folds,omitempty" yaml:"cross_validation_folds"`
	RandomSeed            *int64    `json:"random_seed,omitempty" yaml:"random_seed"`
	ScreeningPValue       float64   `json:"screening_p_value,omitempty" yaml:"screening_p_value"`
	QuantileBuckets       int       `json:"quantile_buckets,omitempty" yaml:"quantile_buckets"`
	RidgeLambda           float64   `json:"ridge_lambda,omitempty" yaml:"ridge_lambda"`
	ModelCVFolds          int       `json:"model_cv_folds,omitempty" yaml:"model_cv_folds"`
	ThreeWayCVFolds       int       `json:"three_way_cv_folds,omitempty" yaml:"three_way_cv_folds"`
	MaxThreeWayFeatures   int       `json:"max_three_way_features,omitempty" yaml:"max_three_way_features"`
	MaxThreeWayTriplets   int       `json:"max_three_way_triplets,omitempty" yaml:"max_three_way_triplets"`
	MaxPairwisePairs      int       `json:"max_pairwise_pairs,omitempty" yaml:"max_pairwise_pairs"`
	MaxPolynomialDegree   int       `json:"max_polynomial_degree,omitempty" yaml:"max_polynomial_degree"`
	SignFlipMinLevelSize  int       `json:"sign_flip_min_level_size,omitempty" yaml:"sign_flip_min_level_size"`
	ThresholdPercentiles  []float64 `json:"threshold_percentiles,omitempty" yaml:"threshold_percentiles"`
	ThresholdMinGroup     int       `json:"threshold_min_group,omitempty" yaml:"threshold_min_group"`
	ValidationThreshold   float64   `json:"validation_threshold,omitempty" yaml:"validation_threshold"`
}

// Settings is the immutable, fully resolved configuration of one run.
type Settings struct {
	MinSampleSize         int       `json:"min_sample_size"`
	BaseSignificanceLevel float64   `json:"base_significance_level"`
	ApplyCorrection       bool      `json:"apply_multiple_comparison_correction"`
	MaxResults            int       `json:"max_results"`
	CrossValidationFolds  int       `json:"cross_validation_folds"`
	RandomSeed            int64     `json:"random_seed"`
	ScreeningPValue       float64   `json:"screening_p_value"`
	QuantileBuckets       int       `json:"quantile_buckets"`
	RidgeLambda           float64   `json:"ridge_lambda"`
	ModelCVFolds          int       `json:"model_cv_folds"`
	ThreeWayCVFolds       int       `json:"three_way_cv_folds"`
	MaxThreeWayFeatures   int       `json:"max_three_way_features"`
	MaxThreeWayTriplets   int       `json:"max_three_way_triplets"`
	MaxPairwisePairs      int       `json:"max_pairwise_pairs"`
	MaxPolynomialDegree   int       `json:"max_polynomial_degree"`
	SignFlipMinLevelSize  int       `json:"sign_flip_min_level_size"`
	ThresholdPercentiles  []float64 `json:"threshold_percentiles"`
	ThresholdMinGroup     int       `json:"threshold_min_group"`
	ValidationThreshold   float64   `json:"validation_threshold"`
}

const (
	// MinimumSampleFloor is the smallest min_sample_size ever used and the hard floor on
	// dataset size for a run.
	MinimumSampleFloor = 30
	// LargeDatasetRows is the size above which sample and alpha defaults tighten.
	LargeDatasetRows = 1000

	defaultAlpha          = 0.05
	largeDatasetAlpha     = 0.001
	defaultMaxResults     = 20
	defaultFolds          = 5
	defaultScreening      = 0.10
	defaultBuckets        = 5
	defaultRidgeLambda    = 1.0
	defaultModelFolds     = 5
	defaultThreeWayFolds  = 3
	defaultThreeWayTop    = 10
	defaultThreeWayCap    = 20
	defaultPairCap        = 190
	defaultPolyDegree     = 2
	defaultSignFlipLevel  = 20
	defaultThresholdGroup = 10
	defaultValidation     = 0.6
)

// DefaultOptions returns options with correction enabled and a fixed seed.
func DefaultOptions() Options {
	apply := true
	seed := int64(42)
	return Options{ApplyCorrection: &apply, RandomSeed: &seed}
}

// WithSeed returns a copy of the options using the given seed.
func (o Options) WithSeed(seed int64) Options {
	o.RandomSeed = &seed
	return o
}

// WithCorrection returns a copy of the options with correction switched on or off.
func (o Options) WithCorrection(apply bool) Options {
	o.ApplyCorrection = &apply
	return o
}

// Validate rejects option values that can never be resolved. It runs before any
// computation and returns CONFIG_INVALID errors.
func (o Options) Validate() error {
	var problems []string
	check := func(bad bool, format string, args ...interface{}) {
		if bad {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(o.RandomSeed == nil, "random_seed is required for reproducible cross-validation")
	check(o.MinSampleSize < 0, "min_sample_size must be positive, got %d", o.MinSampleSize)
	check(o.MinSampleSize > 0 && o.MinSampleSize < 2, "min_sample_size must be at least 2, got %d", o.MinSampleSize)
	check(o.BaseSignificanceLevel < 0 || o.BaseSignificanceLevel >= 1, "base_significance_level must be in (0,1), got %v", o.BaseSignificanceLevel)
	check(o.MaxResults < 0, "max_results must be positive, got %d", o.MaxResults)
	check(o.CrossValidationFolds < 0 || o.CrossValidationFolds == 1, "cross_validation_folds must be at least 2, got %d", o.CrossValidationFolds)
	check(o.ScreeningPValue < 0 || o.ScreeningPValue > 1, "screening_p_value must be in (0,1], got %v", o.ScreeningPValue)
	check(o.QuantileBuckets < 0 || o.QuantileBuckets == 1, "quantile_buckets must be at least 2, got %d", o.QuantileBuckets)
	check(o.RidgeLambda < 0 || math.IsNaN(o.RidgeLambda), "ridge_lambda must be positive, got %v", o.RidgeLambda)
	check(o.ModelCVFolds < 0 || o.ModelCVFolds == 1, "model_cv_folds must be at least 2, got %d", o.ModelCVFolds)
	check(o.ThreeWayCVFolds < 0 || o.ThreeWayCVFolds == 1, "three_way_cv_folds must be at least 2, got %d", o.ThreeWayCVFolds)
	check(o.MaxThreeWayFeatures < 0, "max_three_way_features must be positive, got %d", o.MaxThreeWayFeatures)
	check(o.MaxThreeWayTriplets < 0, "max_three_way_triplets must be positive, got %d", o.MaxThreeWayTriplets)
	check(o.MaxPairwisePairs < 0, "max_pairwise_pairs must be positive, got %d", o.MaxPairwisePairs)
	check(o.MaxPolynomialDegree < 0 || o.MaxPolynomialDegree == 1 || o.MaxPolynomialDegree > 3,
		"max_polynomial_degree must be 2 or 3, got %d", o.MaxPolynomialDegree)
	check(o.SignFlipMinLevelSize < 0, "sign_flip_min_level_size must be positive, got %d", o.SignFlipMinLevelSize)
	check(o.ThresholdMinGroup < 0, "threshold_min_group must be positive, got %d", o.ThresholdMinGroup)
	check(o.ValidationThreshold < 0 || o.ValidationThreshold > 1, "validation_threshold must be in [0,1], got %v", o.ValidationThreshold)
	for _, p := range o.ThresholdPercentiles {
		check(p <= 0 || p >= 100, "threshold percentile must be in (0,100), got %v", p)
	}

	if len(problems) == 0 {
		return nil
	}
	msg := problems[0]
	if len(problems) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(problems)-1)
	}
	return errors.ConfigInvalid(msg)
}

// Resolve validates the options and applies defaults for a dataset of n rows.
func (o Options) Resolve(n int) (Settings, error) {
	if err := o.Validate(); err != nil {
		return Settings{}, err
	}

	s := Settings{
		MinSampleSize:         o.MinSampleSize,
		BaseSignificanceLevel: o.BaseSignificanceLevel,
		ApplyCorrection:       o.ApplyCorrection == nil || *o.ApplyCorrection,
		MaxResults:            orInt(o.MaxResults, defaultMaxResults),
		CrossValidationFolds:  orInt(o.CrossValidationFolds, defaultFolds),
		RandomSeed:            *o.RandomSeed,
		ScreeningPValue:       orFloat(o.ScreeningPValue, defaultScreening),
		QuantileBuckets:       orInt(o.QuantileBuckets, defaultBuckets),
		RidgeLambda:           orFloat(o.RidgeLambda, defaultRidgeLambda),
		ModelCVFolds:          orInt(o.ModelCVFolds, defaultModelFolds),
		ThreeWayCVFolds:       orInt(o.ThreeWayCVFolds, defaultThreeWayFolds),
		MaxThreeWayFeatures:   orInt(o.MaxThreeWayFeatures, defaultThreeWayTop),
		MaxThreeWayTriplets:   orInt(o.MaxThreeWayTriplets, defaultThreeWayCap),
		MaxPairwisePairs:      orInt(o.MaxPairwisePairs, defaultPairCap),
		MaxPolynomialDegree:   orInt(o.MaxPolynomialDegree, defaultPolyDegree),
		SignFlipMinLevelSize:  orInt(o.SignFlipMinLevelSize, defaultSignFlipLevel),
		ThresholdMinGroup:     orInt(o.ThresholdMinGroup, defaultThresholdGroup),
		ValidationThreshold:   orFloat(o.ValidationThreshold, defaultValidation),
	}
	if s.MinSampleSize == 0 {
		s.MinSampleSize = DefaultMinSampleSize(n)
	}
	if s.BaseSignificanceLevel == 0 {
		s.BaseSignificanceLevel = DefaultSignificanceLevel(n)
	}
	if len(o.ThresholdPercentiles) > 0 {
		s.ThresholdPercentiles = append([]float64(nil), o.ThresholdPercentiles...)
	} else {
		s.ThresholdPercentiles = []float64{25, 50, 75}
	}
	return s, nil
}

// DefaultMinSampleSize scales the minimum subgroup size with dataset size.
func DefaultMinSampleSize(n int) int {
	if n > LargeDatasetRows {
		scaled := int(math.Round(0.015 * float64(n)))
		if scaled > MinimumSampleFloor {
			return scaled
		}
	}
	return MinimumSampleFloor
}

// DefaultSignificanceLevel tightens alpha for large datasets.
func DefaultSignificanceLevel(n int) float64 {
	if n > LargeDatasetRows {
		return largeDatasetAlpha
	}
	return defaultAlpha
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
