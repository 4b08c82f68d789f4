package service

import (
	"sync"
	"sync/atomic"

	"github.com/credence-ai/credence/internal/domain"
	"go.uber.org/zap"
)

// Threshold adaptation constants
const (
	RiskThresholdBoost        = 0.2  // Added per unit of risk_level
	CriticalityThresholdBoost = 0.1  // Added per unit of criticality
	DefaultMinThreshold       = 0.1  // Floor for adaptive/adjusted thresholds
	DefaultMaxThreshold       = 0.99 // Ceiling for adaptive/adjusted thresholds
)

// DecisionContext carries call-site signals for adaptive thresholding.
// Recognized keys: "risk_level" and "criticality".
type DecisionContext map[string]float64

// ExecutorConfig configures confidence gating. MinThreshold and MaxThreshold
// bound both adaptive adjustment and AdjustThreshold; zero values take the
// defaults above.
type ExecutorConfig struct {
	Threshold    float64
	Adaptive     bool
	MinThreshold float64
	MaxThreshold float64
}

// Outcome is the result of one gate evaluation. A Deferred outcome means no
// action was safe to take and no fallback was configured; it is an expected
// runtime condition, not an error.
type Outcome struct {
	Executed   bool    `json:"executed"`
	Deferred   bool    `json:"deferred"`
	Result     any     `json:"result,omitempty"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
}

// ExecutionStats summarizes how often the executor acted versus fell back,
// for post-hoc audit of behavior under uncertainty.
type ExecutionStats struct {
	ExecutionCount int64   `json:"execution_count"`
	FallbackCount  int64   `json:"fallback_count"`
	Total          int64   `json:"total"`
	ExecutionRate  float64 `json:"execution_rate"`
	FallbackRate   float64 `json:"fallback_rate"`
}

// Executor gates the execution of consequential actions on belief confidence.
// Each instance owns its own counters and threshold; instances are
// independently constructible and safe for concurrent use.
type Executor struct {
	mu           sync.Mutex // guards threshold
	threshold    float64
	adaptive     bool
	minThreshold float64
	maxThreshold float64
	fallback     domain.Fallback

	executionCount atomic.Int64
	fallbackCount  atomic.Int64

	logger *zap.Logger
}

// NewExecutor creates an executor. The fallback may be nil, in which case
// low-confidence calls produce a deferred outcome.
func NewExecutor(cfg ExecutorConfig, fallback domain.Fallback, logger *zap.Logger) (*Executor, error) {
	if cfg.MinThreshold == 0 {
		cfg.MinThreshold = DefaultMinThreshold
	}
	if cfg.MaxThreshold == 0 {
		cfg.MaxThreshold = DefaultMaxThreshold
	}
	if cfg.MinThreshold > cfg.MaxThreshold {
		return nil, &domain.ConfigurationError{
			Field:  "min_threshold",
			Reason: "must not exceed max_threshold",
		}
	}
	return &Executor{
		threshold:    cfg.Threshold,
		adaptive:     cfg.Adaptive,
		minThreshold: cfg.MinThreshold,
		maxThreshold: cfg.MaxThreshold,
		fallback:     fallback,
		logger:       logger,
	}, nil
}

// Execute gates action on the belief's scalar confidence (minimum component,
// so the weakest dimension decides). The threshold is inclusive: confidence
// equal to the effective threshold fires the action. Below threshold the
// fallback runs if configured, otherwise a deferred outcome is returned.
// Errors from action or fallback surface wrapped in *domain.TransformError;
// no retry is attempted.
func (e *Executor) Execute(belief *domain.BeliefState, action domain.Action, dctx DecisionContext) (*Outcome, error) {
	threshold := e.effectiveThreshold(dctx)
	confidence := belief.MinConfidence()

	if confidence >= threshold {
		result, err := action(belief.Mean)
		if err != nil {
			return nil, &domain.TransformError{Stage: "action", Err: err}
		}
		e.executionCount.Add(1)
		return &Outcome{
			Executed:   true,
			Result:     result,
			Confidence: confidence,
			Threshold:  threshold,
		}, nil
	}

	e.fallbackCount.Add(1)
	if e.logger != nil {
		e.logger.Debug("confidence below threshold",
			zap.Float64("confidence", confidence),
			zap.Float64("threshold", threshold),
		)
	}

	if e.fallback != nil {
		result, err := e.fallback(belief)
		if err != nil {
			return nil, &domain.TransformError{Stage: "fallback", Err: err}
		}
		return &Outcome{
			Result:     result,
			Confidence: confidence,
			Threshold:  threshold,
		}, nil
	}

	return &Outcome{
		Deferred:   true,
		Confidence: confidence,
		Threshold:  threshold,
	}, nil
}

// effectiveThreshold applies context signals when adaptive mode is on:
// base + 0.2*risk_level + 0.1*criticality, clamped to [min, max].
func (e *Executor) effectiveThreshold(dctx DecisionContext) float64 {
	e.mu.Lock()
	threshold := e.threshold
	e.mu.Unlock()

	if !e.adaptive || dctx == nil {
		return threshold
	}

	if risk, ok := dctx["risk_level"]; ok {
		threshold += RiskThresholdBoost * risk
	}
	if criticality, ok := dctx["criticality"]; ok {
		threshold += CriticalityThresholdBoost * criticality
	}
	return clampThreshold(threshold, e.minThreshold, e.maxThreshold)
}

// AdjustThreshold shifts the base threshold by delta, clamped to the
// configured bounds. This is the only mutation the executor performs on
// itself.
func (e *Executor) AdjustThreshold(delta float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threshold = clampThreshold(e.threshold+delta, e.minThreshold, e.maxThreshold)
	return e.threshold
}

// Threshold returns the current base threshold.
func (e *Executor) Threshold() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.threshold
}

// Stats returns the running counters and derived rates.
func (e *Executor) Stats() ExecutionStats {
	executed := e.executionCount.Load()
	fellBack := e.fallbackCount.Load()
	total := executed + fellBack

	stats := ExecutionStats{
		ExecutionCount: executed,
		FallbackCount:  fellBack,
		Total:          total,
	}
	if total > 0 {
		stats.ExecutionRate = float64(executed) / float64(total)
		stats.FallbackRate = float64(fellBack) / float64(total)
	}
	return stats
}

func clampThreshold(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
