package service

import (
	"fmt"
	"math"

	"github.com/credence-ai/credence/internal/domain"
)

// Fusion constants
const (
	CalibrationEpsilon = 1e-8 // Guards division by zero variance
	weightTolerance    = 1e-9 // Slack before weights are renormalized
)

// CombineBeliefStates merges multiple beliefs into one using the law of total
// variance: combined variance = weighted average of each source's own variance
// (within) plus the weighted squared deviation of each source's mean from the
// combined mean (between). Sources that disagree widen the result even when
// each individually claims low variance. Weights default to uniform and are
// renormalized when they do not sum to 1.
func CombineBeliefStates(beliefs []*domain.BeliefState, weights []float64) (*domain.BeliefState, error) {
	if len(beliefs) == 0 {
		return nil, domain.ErrEmptyInput
	}

	dim := beliefs[0].Dim()
	for i, b := range beliefs {
		if b.Dim() != dim {
			return nil, &domain.InvalidBeliefError{
				Reason: fmt.Sprintf("source %d has %d dimensions, expected %d", i, b.Dim(), dim),
			}
		}
	}

	weights, err := normalizeWeights(weights, len(beliefs))
	if err != nil {
		return nil, err
	}

	mean := make([]float64, dim)
	for i, b := range beliefs {
		for d := range mean {
			mean[d] += weights[i] * b.Mean[d]
		}
	}

	variance := make([]float64, dim)
	for i, b := range beliefs {
		for d := range variance {
			dev := b.Mean[d] - mean[d]
			variance[d] += weights[i] * (b.Variance[d] + dev*dev)
		}
	}

	epistemic := false
	confidences := make([]float64, len(beliefs))
	for i, b := range beliefs {
		epistemic = epistemic || b.Epistemic
		confidences[i] = b.MinConfidence()
	}

	meta := map[string]any{
		"combined":           true,
		"sources":            len(beliefs),
		"weights":            weights,
		"source_confidences": confidences,
	}

	return domain.NewBeliefState(mean, variance, epistemic, meta)
}

// CalibrateBeliefState rescales a belief's variance against observed errors.
// The empirical variance of (prediction - actual) is compared to the belief's
// stated variance; a factor above 1 means the model was overconfident and the
// variance grows, below 1 means underconfident and it shrinks. The mean is
// unchanged.
func CalibrateBeliefState(belief *domain.BeliefState, predictions, actuals []float64) (*domain.BeliefState, error) {
	if len(predictions) == 0 {
		return nil, domain.ErrEmptyInput
	}
	if len(predictions) != len(actuals) {
		return nil, &domain.InvalidBeliefError{
			Reason: fmt.Sprintf("calibration data length mismatch: %d predictions, %d actuals",
				len(predictions), len(actuals)),
		}
	}

	errs := make([]float64, len(predictions))
	for i := range predictions {
		errs[i] = predictions[i] - actuals[i]
	}
	empirical := populationVariance(errs)

	variance := make([]float64, belief.Dim())
	factors := make([]float64, belief.Dim())
	for d, v := range belief.Variance {
		factors[d] = empirical / (v + CalibrationEpsilon)
		variance[d] = v * factors[d]
	}

	calibrated, err := domain.NewBeliefState(belief.Mean, variance, belief.Epistemic, belief.Metadata)
	if err != nil {
		return nil, err
	}
	return calibrated.WithMetadata(map[string]any{
		"calibrated":         true,
		"calibration_factor": factors,
	}), nil
}

// CreateEnsembleBelief builds a belief from multiple models' raw predictions
// for the same quantity. The variance is the disagreement across models, not
// any single model's stated uncertainty, and the result is always epistemic:
// disagreement is reducible by adding better models.
func CreateEnsembleBelief(predictions [][]float64, weights []float64) (*domain.BeliefState, error) {
	if len(predictions) == 0 {
		return nil, domain.ErrEmptyInput
	}

	dim := len(predictions[0])
	if dim == 0 {
		return nil, &domain.InvalidBeliefError{Reason: "empty prediction vector"}
	}
	for i, p := range predictions {
		if len(p) != dim {
			return nil, &domain.InvalidBeliefError{
				Reason: fmt.Sprintf("prediction %d has %d values, expected %d", i, len(p), dim),
			}
		}
	}

	weights, err := normalizeWeights(weights, len(predictions))
	if err != nil {
		return nil, err
	}

	mean := make([]float64, dim)
	for i, p := range predictions {
		for d := range mean {
			mean[d] += weights[i] * p[d]
		}
	}

	variance := make([]float64, dim)
	for i, p := range predictions {
		for d := range variance {
			dev := p[d] - mean[d]
			variance[d] += weights[i] * dev * dev
		}
	}

	meta := map[string]any{
		"ensemble": true,
		"models":   len(predictions),
	}

	return domain.NewBeliefState(mean, variance, true, meta)
}

// VarianceFromErrors estimates a variance per error from the trailing window
// of up to windowSize most-recent errors: expanding from the first index,
// then sliding. Each estimate is floored at minVariance so a short or
// degenerate window never claims zero uncertainty.
func VarianceFromErrors(errs []float64, windowSize int, minVariance float64) ([]float64, error) {
	if windowSize < 1 {
		return nil, &domain.ConfigurationError{Field: "window_size", Reason: "must be at least 1"}
	}

	variances := make([]float64, len(errs))
	for i := range errs {
		start := i - windowSize + 1
		if start < 0 {
			start = 0
		}
		v := populationVariance(errs[start : i+1])
		if v < minVariance {
			v = minVariance
		}
		variances[i] = v
	}
	return variances, nil
}

// normalizeWeights defaults to uniform weights and renormalizes supplied ones
// that do not sum to 1. Non-positive totals cannot be normalized.
func normalizeWeights(weights []float64, n int) ([]float64, error) {
	if weights == nil {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
		return weights, nil
	}

	if len(weights) != n {
		return nil, &domain.InvalidBeliefError{
			Reason: fmt.Sprintf("%d weights for %d sources", len(weights), n),
		}
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return nil, &domain.ConfigurationError{Field: "weights", Reason: "must sum to a positive value"}
	}

	if math.Abs(sum-1) <= weightTolerance {
		return append([]float64(nil), weights...), nil
	}

	normalized := make([]float64, n)
	for i, w := range weights {
		normalized[i] = w / sum
	}
	return normalized, nil
}

// populationVariance is the mean squared deviation about the mean (divide by
// N, not N-1), matching the mixture decomposition used throughout.
func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var ss float64
	for _, v := range values {
		dev := v - mean
		ss += dev * dev
	}
	return ss / float64(len(values))
}
