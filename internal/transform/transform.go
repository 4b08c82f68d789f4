// Package transform builds the vector transforms exposed over the HTTP API.
// Library callers pass arbitrary closures to the propagator directly; API
// callers select one of the named transforms here by name and parameters.
package transform

import (
	"errors"
	"math"

	"github.com/credence-ai/credence/internal/domain"
)

// New returns the named transform configured with params. Unknown names and
// missing parameters are configuration errors.
func New(name string, params map[string]float64) (domain.Transform, error) {
	switch name {
	case "identity":
		return func(x []float64) ([]float64, error) {
			out := make([]float64, len(x))
			copy(out, x)
			return out, nil
		}, nil

	case "scale":
		factor, ok := params["factor"]
		if !ok {
			return nil, &domain.ConfigurationError{Field: "factor", Reason: "required for scale transform"}
		}
		return elementwise(func(v float64) float64 { return v * factor }), nil

	case "shift":
		offset, ok := params["offset"]
		if !ok {
			return nil, &domain.ConfigurationError{Field: "offset", Reason: "required for shift transform"}
		}
		return elementwise(func(v float64) float64 { return v + offset }), nil

	case "clamp":
		lo, hasLo := params["min"]
		hi, hasHi := params["max"]
		if !hasLo || !hasHi {
			return nil, &domain.ConfigurationError{Field: "min/max", Reason: "required for clamp transform"}
		}
		if lo > hi {
			return nil, &domain.ConfigurationError{Field: "min", Reason: "must not exceed max"}
		}
		return elementwise(func(v float64) float64 {
			return math.Min(hi, math.Max(lo, v))
		}), nil

	case "logistic":
		// Optional steepness and midpoint, defaulting to the standard sigmoid.
		k := 1.0
		if v, ok := params["steepness"]; ok {
			k = v
		}
		mid := params["midpoint"]
		return elementwise(func(v float64) float64 {
			return 1.0 / (1.0 + math.Exp(-k*(v-mid)))
		}), nil

	case "power":
		exp, ok := params["exponent"]
		if !ok {
			return nil, &domain.ConfigurationError{Field: "exponent", Reason: "required for power transform"}
		}
		return func(x []float64) ([]float64, error) {
			out := make([]float64, len(x))
			for i, v := range x {
				r := math.Pow(v, exp)
				if math.IsNaN(r) || math.IsInf(r, 0) {
					return nil, &domain.TransformError{Stage: "transform", Err: errors.New("power produced a non-finite value")}
				}
				out[i] = r
			}
			return out, nil
		}, nil

	default:
		return nil, &domain.ConfigurationError{Field: "transform", Reason: "unknown transform " + name}
	}
}

func elementwise(f func(float64) float64) domain.Transform {
	return func(x []float64) ([]float64, error) {
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = f(v)
		}
		return out, nil
	}
}
