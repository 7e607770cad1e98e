// Package agent outlines the interfaces needed to implement concrete
// agents
package agent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/goddpg/timestep"
)

// Agent implements an off-policy reinforcement learning agent that
// selects continuous actions and learns from stored environmental
// transitions.
type Agent interface {
	// SelectAction returns the action to take in state. In training
	// mode, the action may be exploratory; in evaluation mode, the
	// action is the agent's current best guess at the optimal action.
	SelectAction(state *mat.VecDense) *mat.VecDense

	// Observe stores an environmental transition for later learning
	Observe(t timestep.Transition) error

	// Ready returns whether the agent has stored enough transitions
	// to learn from
	Ready() bool

	// Update performs a single learning update, returning the actor
	// and critic losses for the update
	Update() (actorLoss, criticLoss float64, err error)

	// TotalSteps returns the total number of training actions the
	// agent has selected over its lifetime
	TotalSteps() int

	// Train and Eval switch the agent between training and evaluation
	// modes
	Train()
	Eval()
	IsEval() bool

	// Save serializes the agent's learned state to the file at path.
	// Load restores a state previously produced by Save.
	Save(path string) error
	Load(path string) error

	// Close releases any resources held by the agent
	Close() error
}
