// Package timestep implements records of the agent-environment
// interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition packages together a single transition of environmental
// interaction: taking Action in State led to NextState with reward
// Reward.
//
// Done records whether NextState is a true terminal state. Episodes
// that end only because a step-count cap was reached are truncated,
// not terminated, and must be stored with Done == false so that
// learning targets still bootstrap from NextState.
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	NextState *mat.VecDense
	Done      bool
}

// New returns a new Transition with the given fields
func New(state, action *mat.VecDense, reward float64,
	nextState *mat.VecDense, done bool) Transition {
	return Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
		Done:      done,
	}
}

// Mask returns the bootstrap mask of the Transition: 0.0 at true
// termination, 1.0 otherwise.
func (t Transition) Mask() float64 {
	if t.Done {
		return 0.0
	}
	return 1.0
}

func (t Transition) String() string {
	str := "Transition | Reward: %.2f  |  Done: %v  |  State: %v  |  " +
		"Action: %v"

	return fmt.Sprintf(str, t.Reward, t.Done, t.State.RawVector().Data,
		t.Action.RawVector().Data)
}
