package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// ClipNorm rescales the gradients of model in-place so that their
// global L2 norm is at most maxNorm. Gorgonia Solvers only support
// elementwise value clipping, so norm clipping must happen between the
// backward pass and the Solver step. If maxNorm <= 0, the gradients
// are left unchanged.
func ClipNorm(model []G.ValueGrad, maxNorm float64) error {
	if maxNorm <= 0 {
		return nil
	}

	grads := make([][]float64, len(model))
	var sumSquares float64
	for i, weights := range model {
		grad, err := weights.Grad()
		if err != nil {
			return fmt.Errorf("clipNorm: could not get gradient: %v", err)
		}

		data, ok := grad.Data().([]float64)
		if !ok {
			return fmt.Errorf("clipNorm: gradients must be float64, got %T",
				grad.Data())
		}
		grads[i] = data

		for _, g := range data {
			sumSquares += g * g
		}
	}

	norm := math.Sqrt(sumSquares)
	if norm <= maxNorm {
		return nil
	}

	scale := maxNorm / norm
	for _, data := range grads {
		for j := range data {
			data[j] *= scale
		}
	}

	return nil
}
