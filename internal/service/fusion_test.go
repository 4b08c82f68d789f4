package service

import (
	"errors"
	"math"
	"testing"

	"github.com/credence-ai/credence/internal/domain"
	"go.uber.org/zap"
)

const tolerance = 1e-9

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func mustBelief(t *testing.T, mean, variance []float64) *domain.BeliefState {
	t.Helper()
	b, err := domain.NewBeliefState(mean, variance, false, nil)
	if err != nil {
		t.Fatalf("NewBeliefState failed: %v", err)
	}
	return b
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCombineSingleSourceIsIdentity(t *testing.T) {
	b := mustBelief(t, []float64{2.0, -1.0}, []float64{0.5, 0.25})

	combined, err := CombineBeliefStates([]*domain.BeliefState{b}, []float64{1.0})
	if err != nil {
		t.Fatalf("CombineBeliefStates failed: %v", err)
	}

	for d := range combined.Mean {
		if !almostEqual(combined.Mean[d], b.Mean[d], tolerance) {
			t.Errorf("mean[%d] = %v, want %v", d, combined.Mean[d], b.Mean[d])
		}
		if !almostEqual(combined.Variance[d], b.Variance[d], tolerance) {
			t.Errorf("variance[%d] = %v, want %v", d, combined.Variance[d], b.Variance[d])
		}
	}
}

func TestCombineIdenticalMeans(t *testing.T) {
	a := mustBelief(t, []float64{1.0}, []float64{0.4})
	b := mustBelief(t, []float64{1.0}, []float64{0.2})

	combined, err := CombineBeliefStates([]*domain.BeliefState{a, b}, nil)
	if err != nil {
		t.Fatalf("CombineBeliefStates failed: %v", err)
	}

	// No disagreement: variance is just the weighted average of the inputs.
	if !almostEqual(combined.Mean[0], 1.0, tolerance) {
		t.Errorf("mean = %v, want 1.0", combined.Mean[0])
	}
	if !almostEqual(combined.Variance[0], 0.3, tolerance) {
		t.Errorf("variance = %v, want 0.3", combined.Variance[0])
	}
}

func TestCombineDisagreementWidensVariance(t *testing.T) {
	a := mustBelief(t, []float64{0.0}, []float64{0.1})
	b := mustBelief(t, []float64{2.0}, []float64{0.1})

	combined, err := CombineBeliefStates([]*domain.BeliefState{a, b}, nil)
	if err != nil {
		t.Fatalf("CombineBeliefStates failed: %v", err)
	}

	if !almostEqual(combined.Mean[0], 1.0, tolerance) {
		t.Errorf("mean = %v, want 1.0", combined.Mean[0])
	}
	// Within 0.1 plus between 1.0
	if !almostEqual(combined.Variance[0], 1.1, tolerance) {
		t.Errorf("variance = %v, want 1.1", combined.Variance[0])
	}
}

func TestCombineRenormalizesWeights(t *testing.T) {
	a := mustBelief(t, []float64{0.0}, []float64{0.1})
	b := mustBelief(t, []float64{4.0}, []float64{0.1})

	// Weights 3 and 1 behave like 0.75 and 0.25.
	combined, err := CombineBeliefStates([]*domain.BeliefState{a, b}, []float64{3, 1})
	if err != nil {
		t.Fatalf("CombineBeliefStates failed: %v", err)
	}

	if !almostEqual(combined.Mean[0], 1.0, tolerance) {
		t.Errorf("mean = %v, want 1.0", combined.Mean[0])
	}
}

func TestCombineEmptyInput(t *testing.T) {
	_, err := CombineBeliefStates(nil, nil)
	if !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestCombineDimensionMismatch(t *testing.T) {
	a := mustBelief(t, []float64{1.0}, []float64{0.1})
	b := mustBelief(t, []float64{1.0, 2.0}, []float64{0.1, 0.1})

	_, err := CombineBeliefStates([]*domain.BeliefState{a, b}, nil)
	var invalid *domain.InvalidBeliefError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidBeliefError, got %v", err)
	}
}

func TestCombineEpistemicPropagates(t *testing.T) {
	a := mustBelief(t, []float64{1.0}, []float64{0.1})
	b, err := domain.NewBeliefState([]float64{1.0}, []float64{0.1}, true, nil)
	if err != nil {
		t.Fatalf("NewBeliefState failed: %v", err)
	}

	combined, err := CombineBeliefStates([]*domain.BeliefState{a, b}, nil)
	if err != nil {
		t.Fatalf("CombineBeliefStates failed: %v", err)
	}
	if !combined.Epistemic {
		t.Error("combined belief should be epistemic when any source is")
	}
}

func TestCalibrateOverconfidentBelief(t *testing.T) {
	// Stated variance 0.1, but predictions miss by an empirical variance
	// of about 0.667: the factor should inflate variance accordingly.
	b := mustBelief(t, []float64{1.0}, []float64{0.1})

	calibrated, err := CalibrateBeliefState(b,
		[]float64{1.0, 2.0, 3.0},
		[]float64{1.0, 1.0, 1.0},
	)
	if err != nil {
		t.Fatalf("CalibrateBeliefState failed: %v", err)
	}

	empirical := 2.0 / 3.0 // population variance of errors {0, 1, 2}
	wantFactor := empirical / (0.1 + CalibrationEpsilon)
	factors, ok := calibrated.Metadata["calibration_factor"].([]float64)
	if !ok {
		t.Fatal("calibration_factor metadata missing")
	}
	if !almostEqual(factors[0], wantFactor, 1e-6) {
		t.Errorf("factor = %v, want %v", factors[0], wantFactor)
	}
	if !almostEqual(calibrated.Variance[0], 0.1*wantFactor, 1e-6) {
		t.Errorf("variance = %v, want %v", calibrated.Variance[0], 0.1*wantFactor)
	}
	if !almostEqual(calibrated.Mean[0], 1.0, tolerance) {
		t.Errorf("calibration must not change the mean, got %v", calibrated.Mean[0])
	}
}

func TestCalibrateLengthMismatch(t *testing.T) {
	b := mustBelief(t, []float64{1.0}, []float64{0.1})

	_, err := CalibrateBeliefState(b, []float64{1, 2}, []float64{1})
	var invalid *domain.InvalidBeliefError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidBeliefError, got %v", err)
	}
}

func TestCalibrateEmptyData(t *testing.T) {
	b := mustBelief(t, []float64{1.0}, []float64{0.1})

	_, err := CalibrateBeliefState(b, nil, nil)
	if !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestEnsembleDisagreement(t *testing.T) {
	ensemble, err := CreateEnsembleBelief([][]float64{{0.2}, {0.8}}, nil)
	if err != nil {
		t.Fatalf("CreateEnsembleBelief failed: %v", err)
	}

	if !almostEqual(ensemble.Mean[0], 0.5, tolerance) {
		t.Errorf("mean = %v, want 0.5", ensemble.Mean[0])
	}
	if !almostEqual(ensemble.Variance[0], 0.09, tolerance) {
		t.Errorf("variance = %v, want 0.09", ensemble.Variance[0])
	}
	if !ensemble.Epistemic {
		t.Error("ensemble disagreement is always epistemic")
	}
}

func TestEnsembleAgreement(t *testing.T) {
	ensemble, err := CreateEnsembleBelief([][]float64{{0.5}, {0.5}, {0.5}}, nil)
	if err != nil {
		t.Fatalf("CreateEnsembleBelief failed: %v", err)
	}
	if ensemble.Variance[0] != 0 {
		t.Errorf("variance = %v, want 0 for unanimous models", ensemble.Variance[0])
	}
	if ensemble.MinConfidence() != 1.0 {
		t.Errorf("confidence = %v, want 1.0", ensemble.MinConfidence())
	}
}

func TestEnsembleRaggedPredictions(t *testing.T) {
	_, err := CreateEnsembleBelief([][]float64{{0.2, 0.3}, {0.8}}, nil)
	var invalid *domain.InvalidBeliefError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidBeliefError, got %v", err)
	}
}

func TestEnsembleEmptyInput(t *testing.T) {
	_, err := CreateEnsembleBelief(nil, nil)
	if !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestVarianceFromErrorsWindows(t *testing.T) {
	errsIn := []float64{0, 2, 0, 2}

	variances, err := VarianceFromErrors(errsIn, 2, 0.0)
	if err != nil {
		t.Fatalf("VarianceFromErrors failed: %v", err)
	}

	// First window is just {0}; later windows slide over pairs {0,2}.
	want := []float64{0, 1, 1, 1}
	for i := range want {
		if !almostEqual(variances[i], want[i], tolerance) {
			t.Errorf("variance[%d] = %v, want %v", i, variances[i], want[i])
		}
	}
}

func TestVarianceFromErrorsFloor(t *testing.T) {
	variances, err := VarianceFromErrors([]float64{1, 1, 1}, 3, 0.05)
	if err != nil {
		t.Fatalf("VarianceFromErrors failed: %v", err)
	}
	for i, v := range variances {
		if v != 0.05 {
			t.Errorf("variance[%d] = %v, want floor 0.05", i, v)
		}
	}
}

func TestVarianceFromErrorsBadWindow(t *testing.T) {
	_, err := VarianceFromErrors([]float64{1}, 0, 0.01)
	var cfg *domain.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestCombineNegativeWeights(t *testing.T) {
	a := mustBelief(t, []float64{1.0}, []float64{0.1})
	b := mustBelief(t, []float64{2.0}, []float64{0.1})

	_, err := CombineBeliefStates([]*domain.BeliefState{a, b}, []float64{-1, -1})
	var cfg *domain.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
