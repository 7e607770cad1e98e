// Package noise implements random processes for action exploration
package noise

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// OrnsteinUhlenbeck implements a mean-reverting correlated random walk
// used to perturb continuous actions for exploration. The process
// maintains one state variable per action dimension, updated on every
// Sample() call as:
//
//	x = x + theta*(-x) + sigma*N(0, 1)
//
// The process state is reset only at construction time. It is
// deliberately not reset between episodes so that exploration remains
// correlated across the whole run.
type OrnsteinUhlenbeck struct {
	theta float64
	sigma float64
	state []float64
	dist  distuv.Normal
}

// NewOrnsteinUhlenbeck returns a new OrnsteinUhlenbeck process over
// dims action dimensions with mean-reversion rate theta and diffusion
// scale sigma.
func NewOrnsteinUhlenbeck(dims int, theta, sigma float64,
	seed uint64) (*OrnsteinUhlenbeck, error) {
	if dims < 1 {
		return nil, fmt.Errorf("newornsteinuhlenbeck: dims must be positive "+
			"\n\twant(>0) \n\thave(%v)", dims)
	}

	source := rand.NewSource(seed)
	dist := distuv.Normal{Mu: 0.0, Sigma: 1.0, Src: source}

	return &OrnsteinUhlenbeck{
		theta: theta,
		sigma: sigma,
		state: make([]float64, dims),
		dist:  dist,
	}, nil
}

// Sample advances the process one step and returns the updated state
// as a perturbation vector of length dims.
func (o *OrnsteinUhlenbeck) Sample() *mat.VecDense {
	for i := range o.state {
		o.state[i] += o.theta*(-o.state[i]) + o.sigma*o.dist.Rand()
	}

	sample := mat.NewVecDense(len(o.state), nil)
	for i := range o.state {
		sample.SetVec(i, o.state[i])
	}
	return sample
}

// Dims returns the number of action dimensions the process perturbs
func (o *OrnsteinUhlenbeck) Dims() int {
	return len(o.state)
}
