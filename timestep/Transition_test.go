package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMask(t *testing.T) {
	state := mat.NewVecDense(2, []float64{0.1, 0.2})
	action := mat.NewVecDense(1, []float64{0.5})
	next := mat.NewVecDense(2, []float64{0.3, 0.4})

	terminal := New(state, action, 1.0, next, true)
	if mask := terminal.Mask(); mask != 0.0 {
		t.Errorf("terminal transition should have mask 0.0, got %v", mask)
	}

	truncated := New(state, action, 1.0, next, false)
	if mask := truncated.Mask(); mask != 1.0 {
		t.Errorf("non-terminal transition should have mask 1.0, got %v", mask)
	}
}
