package service

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/credence-ai/credence/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Propagation constants
const (
	DefaultSampleCount = 100 // Monte Carlo samples per propagation
)

// PropagatorConfig configures Monte Carlo propagation. Zero values take
// defaults: DefaultSampleCount samples, one worker per CPU, a time-derived
// seed. A fixed Seed makes every propagation reproducible, including the
// parallel batch path.
type PropagatorConfig struct {
	Samples int
	Workers int
	Seed    uint64
}

// Propagator pushes a belief through an arbitrary transform by sampling.
// No derivative or smoothness assumption is made about the transform; the
// cost is sampling noise that shrinks as O(1/sqrt(N)).
type Propagator struct {
	samples int
	workers int
	seed    uint64
	logger  *zap.Logger
}

// NewPropagator validates the configuration and creates a propagator.
func NewPropagator(cfg PropagatorConfig, logger *zap.Logger) (*Propagator, error) {
	if cfg.Samples == 0 {
		cfg.Samples = DefaultSampleCount
	}
	if cfg.Samples < 1 {
		return nil, &domain.ConfigurationError{Field: "samples", Reason: "must be at least 1"}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	return &Propagator{
		samples: cfg.Samples,
		workers: cfg.Workers,
		seed:    cfg.Seed,
		logger:  logger,
	}, nil
}

// Samples returns the configured sample count.
func (p *Propagator) Samples() int { return p.samples }

// Propagate draws N samples from the belief's Gaussian, applies the transform
// to each full sample vector, and moment-matches the transformed population
// back into a diagonal-covariance belief. Output dimensionality is set by the
// transform's return length; cross-dimension correlations it induces are
// discarded. A transform error on any sample aborts the whole propagation.
func (p *Propagator) Propagate(belief *domain.BeliefState, transform domain.Transform) (*domain.BeliefState, error) {
	return p.propagateSeeded(belief, transform, p.seed)
}

// PropagateBatch propagates each belief independently, preserving input
// order. No belief influences another's result.
func (p *Propagator) PropagateBatch(ctx context.Context, beliefs []*domain.BeliefState, transform domain.Transform) ([]*domain.BeliefState, error) {
	results := make([]*domain.BeliefState, len(beliefs))
	for i, b := range beliefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := p.propagateSeeded(b, transform, p.seed+uint64(i))
		if err != nil {
			return nil, fmt.Errorf("propagate belief %d: %w", i, err)
		}
		results[i] = out
	}
	return results, nil
}

// PropagateBatchParallel has the same contract as PropagateBatch but fans the
// work across up to Workers goroutines. Beliefs are immutable and transforms
// are assumed side-effect free, so no locking is needed; each work unit gets
// its own seeded generator, keeping results identical to the sequential path
// under a fixed seed. With a single worker or a single belief it silently
// runs sequentially.
func (p *Propagator) PropagateBatchParallel(ctx context.Context, beliefs []*domain.BeliefState, transform domain.Transform) ([]*domain.BeliefState, error) {
	if p.workers <= 1 || len(beliefs) <= 1 {
		return p.PropagateBatch(ctx, beliefs, transform)
	}

	results := make([]*domain.BeliefState, len(beliefs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, b := range beliefs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := p.propagateSeeded(b, transform, p.seed+uint64(i))
			if err != nil {
				return fmt.Errorf("propagate belief %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.logger != nil {
		p.logger.Debug("parallel propagation complete",
			zap.Int("beliefs", len(beliefs)),
			zap.Int("workers", p.workers),
			zap.Int("samples", p.samples),
		)
	}
	return results, nil
}

func (p *Propagator) propagateSeeded(belief *domain.BeliefState, transform domain.Transform, seed uint64) (*domain.BeliefState, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	dim := belief.Dim()
	std := make([]float64, dim)
	for d, v := range belief.Variance {
		std[d] = math.Sqrt(v)
	}

	outputs := make([][]float64, 0, p.samples)
	sample := make([]float64, dim)
	for n := 0; n < p.samples; n++ {
		for d := range sample {
			sample[d] = belief.Mean[d] + std[d]*rng.NormFloat64()
		}

		out, err := transform(sample)
		if err != nil {
			return nil, &domain.TransformError{Stage: "transform", Err: err}
		}
		if len(out) == 0 {
			return nil, &domain.TransformError{
				Stage: "transform",
				Err:   fmt.Errorf("empty output for sample %d", n),
			}
		}
		if n > 0 && len(out) != len(outputs[0]) {
			return nil, &domain.TransformError{
				Stage: "transform",
				Err: fmt.Errorf("inconsistent output length: sample %d returned %d values, expected %d",
					n, len(out), len(outputs[0])),
			}
		}
		outputs = append(outputs, append([]float64(nil), out...))
	}

	outDim := len(outputs[0])
	mean := make([]float64, outDim)
	for _, out := range outputs {
		for d := range mean {
			mean[d] += out[d]
		}
	}
	for d := range mean {
		mean[d] /= float64(len(outputs))
	}

	variance := make([]float64, outDim)
	for _, out := range outputs {
		for d := range variance {
			dev := out[d] - mean[d]
			variance[d] += dev * dev
		}
	}
	for d := range variance {
		variance[d] /= float64(len(outputs))
	}

	propagated, err := domain.NewBeliefState(mean, variance, belief.Epistemic, belief.Metadata)
	if err != nil {
		return nil, err
	}
	return propagated.WithMetadata(map[string]any{
		"transformed": true,
		"samples":     p.samples,
	}), nil
}
