package solver

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// dualValue is a minimal ValueGrad for exercising ClipNorm without a
// computational graph
type dualValue struct {
	value G.Value
	grad  G.Value
}

func (d dualValue) Value() G.Value         { return d.value }
func (d dualValue) Grad() (G.Value, error) { return d.grad, nil }

func newDualValue(grad []float64) dualValue {
	return dualValue{
		value: tensor.New(
			tensor.WithBacking(make([]float64, len(grad))),
			tensor.WithShape(len(grad)),
		),
		grad: tensor.New(
			tensor.WithBacking(grad),
			tensor.WithShape(len(grad)),
		),
	}
}

func TestClipNormRescales(t *testing.T) {
	// Global norm is sqrt(3^2 + 4^2) = 5
	model := []G.ValueGrad{newDualValue([]float64{3.0}),
		newDualValue([]float64{4.0})}

	if err := ClipNorm(model, 1.0); err != nil {
		t.Fatalf("could not clip gradients: %v", err)
	}

	want := []float64{0.6, 0.8}
	for i, vg := range model {
		grad, err := vg.Grad()
		if err != nil {
			t.Fatalf("could not get gradient: %v", err)
		}
		got := grad.Data().([]float64)[0]
		if math.Abs(got-want[i]) > 1e-15 {
			t.Errorf("gradient %v: expected %v, got %v", i, want[i], got)
		}
	}
}

func TestClipNormBelowMax(t *testing.T) {
	model := []G.ValueGrad{newDualValue([]float64{0.3, 0.4})}

	if err := ClipNorm(model, 1.0); err != nil {
		t.Fatalf("could not clip gradients: %v", err)
	}

	grad, _ := model[0].Grad()
	got := grad.Data().([]float64)
	if got[0] != 0.3 || got[1] != 0.4 {
		t.Errorf("gradients below the max norm should be unchanged, "+
			"got %v", got)
	}
}

func TestClipNormDisabled(t *testing.T) {
	model := []G.ValueGrad{newDualValue([]float64{30.0, 40.0})}

	if err := ClipNorm(model, -1.0); err != nil {
		t.Fatalf("could not clip gradients: %v", err)
	}

	grad, _ := model[0].Grad()
	got := grad.Data().([]float64)
	if got[0] != 30.0 || got[1] != 40.0 {
		t.Errorf("clipping should be disabled for non-positive max norms, "+
			"got %v", got)
	}
}
