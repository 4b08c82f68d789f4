package domain

import (
	"encoding/json"
	"strconv"
)

// BeliefState represents a distribution over a scalar or vector quantity as a
// per-dimension mean and variance (diagonal covariance). Values are immutable
// by convention: every operation returns a new BeliefState, so beliefs are
// safe to share across concurrent readers without locking.
type BeliefState struct {
	Mean      []float64      `json:"mean"`
	Variance  []float64      `json:"variance"`
	Epistemic bool           `json:"epistemic"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBeliefState validates and constructs a belief. A 1-element mean or
// variance is broadcast to the other's length. Negative variance components
// or incompatible shapes yield *InvalidBeliefError.
func NewBeliefState(mean, variance []float64, epistemic bool, metadata map[string]any) (*BeliefState, error) {
	if len(mean) == 0 {
		return nil, &InvalidBeliefError{Reason: "mean is empty"}
	}
	if len(variance) == 0 {
		return nil, &InvalidBeliefError{Reason: "variance is empty"}
	}

	mean, variance, ok := broadcast(mean, variance)
	if !ok {
		return nil, &InvalidBeliefError{
			Reason: "mean and variance shapes are incompatible",
		}
	}

	for i, v := range variance {
		if v < 0 {
			return nil, &InvalidBeliefError{
				Reason: "negative variance component at index " + strconv.Itoa(i),
			}
		}
	}

	return &BeliefState{
		Mean:      mean,
		Variance:  variance,
		Epistemic: epistemic,
		Metadata:  cloneMetadata(metadata),
	}, nil
}

// Confidence returns the component-wise confidence 1/(1+variance).
// It is strictly decreasing in variance, lies in (0, 1], and reaches 1 only
// at zero variance. Derived on every call, never stored, so it cannot drift.
func (b *BeliefState) Confidence() []float64 {
	conf := make([]float64, len(b.Variance))
	for i, v := range b.Variance {
		conf[i] = 1 / (1 + v)
	}
	return conf
}

// MinConfidence collapses a vector-valued confidence into the single scalar
// used for gating: the minimum across components. The weakest dimension
// dominates, so one badly-known dimension cannot hide behind well-known ones.
func (b *BeliefState) MinConfidence() float64 {
	min := 1.0
	for _, v := range b.Variance {
		c := 1 / (1 + v)
		if c < min {
			min = c
		}
	}
	return min
}

// Dim returns the number of dimensions of the belief.
func (b *BeliefState) Dim() int {
	return len(b.Mean)
}

// UpdateWithEvidence fuses the belief with new evidence by moment-matching
// the two-component mixture into a single Gaussian-like belief:
//
//	mean'     = (1-w)*mean + w*newMean
//	variance' = (1-w)*variance + w*newVariance + w*(1-w)*(mean-newMean)^2
//
// The cross term injects extra variance proportional to the disagreement
// between prior and evidence. This is mixture fusion, not a conjugate
// Bayesian posterior (which would precision-weight the variances); the
// heuristic form is kept intentionally. Weight is clamped to [0,1].
func (b *BeliefState) UpdateWithEvidence(newMean, newVariance []float64, weight float64) (*BeliefState, error) {
	evidence, err := NewBeliefState(newMean, newVariance, false, nil)
	if err != nil {
		return nil, err
	}
	if evidence.Dim() != b.Dim() {
		return nil, &InvalidBeliefError{
			Reason: "evidence dimensionality does not match belief",
		}
	}

	w := clamp(weight, 0, 1)

	mean := make([]float64, b.Dim())
	variance := make([]float64, b.Dim())
	for i := range mean {
		d := b.Mean[i] - evidence.Mean[i]
		mean[i] = (1-w)*b.Mean[i] + w*evidence.Mean[i]
		variance[i] = (1-w)*b.Variance[i] + w*evidence.Variance[i] + w*(1-w)*d*d
	}

	meta := cloneMetadata(b.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["updated"] = true

	return &BeliefState{
		Mean:      mean,
		Variance:  variance,
		Epistemic: b.Epistemic,
		Metadata:  meta,
	}, nil
}

// WithMetadata returns a copy of the belief with the given keys merged into
// its metadata. The receiver is not modified.
func (b *BeliefState) WithMetadata(extra map[string]any) *BeliefState {
	meta := cloneMetadata(b.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	for k, v := range extra {
		meta[k] = v
	}
	return &BeliefState{
		Mean:      append([]float64(nil), b.Mean...),
		Variance:  append([]float64(nil), b.Variance...),
		Epistemic: b.Epistemic,
		Metadata:  meta,
	}
}

// BeliefRecord is the structured serialization of a belief. Confidence is
// derived from variance and emitted redundantly for consumer convenience;
// it is ignored on input.
type BeliefRecord struct {
	Mean       []float64      `json:"mean"`
	Variance   []float64      `json:"variance"`
	Epistemic  bool           `json:"epistemic"`
	Confidence []float64      `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Record serializes the belief into its boundary representation.
func (b *BeliefState) Record() BeliefRecord {
	return BeliefRecord{
		Mean:       append([]float64(nil), b.Mean...),
		Variance:   append([]float64(nil), b.Variance...),
		Epistemic:  b.Epistemic,
		Confidence: b.Confidence(),
		Metadata:   cloneMetadata(b.Metadata),
	}
}

// MarshalJSON emits the belief in record form, so every serialized belief
// carries the derived confidence alongside mean and variance.
func (b BeliefState) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Record())
}

// FromRecord reconstructs a belief from its serialized form. Records missing
// mean or variance are rejected; the confidence field is discarded.
func FromRecord(rec BeliefRecord) (*BeliefState, error) {
	if rec.Mean == nil {
		return nil, &InvalidBeliefError{Reason: "record is missing mean"}
	}
	if rec.Variance == nil {
		return nil, &InvalidBeliefError{Reason: "record is missing variance"}
	}
	return NewBeliefState(rec.Mean, rec.Variance, rec.Epistemic, rec.Metadata)
}

// broadcast expands a 1-element slice to the other's length. Returns false
// when lengths differ and neither side is scalar.
func broadcast(mean, variance []float64) ([]float64, []float64, bool) {
	switch {
	case len(mean) == len(variance):
	case len(variance) == 1:
		v := variance[0]
		variance = make([]float64, len(mean))
		for i := range variance {
			variance[i] = v
		}
	case len(mean) == 1:
		m := mean[0]
		mean = make([]float64, len(variance))
		for i := range mean {
			mean[i] = m
		}
	default:
		return nil, nil, false
	}
	return append([]float64(nil), mean...), append([]float64(nil), variance...), true
}

func cloneMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
