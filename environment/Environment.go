// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import "gonum.org/v1/gonum/mat"

// Info holds auxiliary diagnostic information returned by an
// environmental step. Agents should never learn from an Info.
type Info map[string]interface{}

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Environment implements a simulated environment that an agent
// interacts with through actions, receiving observations of the
// environmental state and rewards in return.
type Environment interface {
	// Reset resets the environment between episodes and returns the
	// starting state of the next episode
	Reset() *mat.VecDense

	// Step takes one environmental step given an action, returning
	// the next state, the reward for the transition, whether the
	// episode has ended in an environmental termination, and any
	// auxiliary information
	Step(action *mat.VecDense) (*mat.VecDense, float64, bool, Info)

	// ObservationSpec describes the shape and bounds of observations
	ObservationSpec() Spec

	// ActionSpec describes the shape and bounds of legal actions
	ActionSpec() Spec

	// Close releases any resources held by the environment
	Close() error
}
