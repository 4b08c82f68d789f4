package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/credence-ai/credence/internal/domain"
)

func apply(t *testing.T, name string, params map[string]float64, in []float64) []float64 {
	t.Helper()
	fn, err := New(name, params)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", name, err)
	}
	out, err := fn(in)
	if err != nil {
		t.Fatalf("%s transform failed: %v", name, err)
	}
	return out
}

func TestIdentity(t *testing.T) {
	out := apply(t, "identity", nil, []float64{1, -2, 3})
	want := []float64{1, -2, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestScale(t *testing.T) {
	out := apply(t, "scale", map[string]float64{"factor": 2.5}, []float64{2, -4})
	if out[0] != 5 || out[1] != -10 {
		t.Errorf("out = %v, want [5 -10]", out)
	}
}

func TestShift(t *testing.T) {
	out := apply(t, "shift", map[string]float64{"offset": -1}, []float64{3})
	if out[0] != 2 {
		t.Errorf("out = %v, want [2]", out)
	}
}

func TestClamp(t *testing.T) {
	out := apply(t, "clamp", map[string]float64{"min": 0, "max": 1}, []float64{-5, 0.5, 5})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestLogisticDefaults(t *testing.T) {
	out := apply(t, "logistic", nil, []float64{0})
	if math.Abs(out[0]-0.5) > 1e-12 {
		t.Errorf("logistic(0) = %v, want 0.5", out[0])
	}
}

func TestLogisticSteepness(t *testing.T) {
	out := apply(t, "logistic", map[string]float64{"steepness": 100, "midpoint": 1}, []float64{2})
	if out[0] < 0.999 {
		t.Errorf("steep logistic above midpoint = %v, want ~1", out[0])
	}
}

func TestPower(t *testing.T) {
	out := apply(t, "power", map[string]float64{"exponent": 2}, []float64{3, -3})
	if out[0] != 9 || out[1] != 9 {
		t.Errorf("out = %v, want [9 9]", out)
	}
}

func TestPowerNonFinite(t *testing.T) {
	fn, err := New("power", map[string]float64{"exponent": 0.5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Square root of a negative is NaN.
	_, err = fn([]float64{-1})
	var terr *domain.TransformError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransformError, got %v", err)
	}
}

func TestMissingParams(t *testing.T) {
	for _, name := range []string{"scale", "shift", "clamp", "power"} {
		_, err := New(name, nil)
		var cfg *domain.ConfigurationError
		if !errors.As(err, &cfg) {
			t.Errorf("New(%q) with no params: expected ConfigurationError, got %v", name, err)
		}
	}
}

func TestClampInvertedBounds(t *testing.T) {
	_, err := New("clamp", map[string]float64{"min": 2, "max": 1})
	var cfg *domain.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestUnknownTransform(t *testing.T) {
	_, err := New("fourier", nil)
	var cfg *domain.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
