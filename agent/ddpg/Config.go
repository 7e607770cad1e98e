package ddpg

import (
	"fmt"

	"github.com/samuelfneumann/goddpg/agent"
	"github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/initwfn"
	"github.com/samuelfneumann/goddpg/network"
	"github.com/samuelfneumann/goddpg/solver"
)

// Config implements a configuration of the DDPG agent
type Config struct {
	// Policy network architecture. The final layer, which predicts one
	// tanh-squashed value per action dimension, is chosen by the agent
	// and should not appear in these slices.
	ActorLayers      []int
	ActorBiases      []bool
	ActorActivations []*network.Activation

	// Action-value network architecture. As with the actor, the final
	// linear layer is chosen by the agent.
	CriticLayers      []int
	CriticBiases      []bool
	CriticActivations []*network.Activation

	// Weight initialization scheme for all networks
	InitWFn *initwfn.InitWFn

	ActorSolver  *solver.Solver
	CriticSolver *solver.Solver

	// Maximum norm of the gradient for each learning step; <= 0
	// disables clipping
	ActorGradClip  float64
	CriticGradClip float64

	// Experience replay parameters
	BufferSize int
	BatchSize  int

	Gamma float64 // Reward discount rate
	Tau   float64 // Polyak averaging constant for target networks

	// Number of initial training steps on which to select actions
	// uniformly at random instead of from the policy
	InitialRandomAction int

	// Ornstein-Uhlenbeck exploration noise parameters
	NoiseTheta float64
	NoiseSigma float64
}

// Type returns the type of agent that the Config describes
func (c Config) Type() agent.Type {
	return agent.DDPG
}

// ValidAgent returns whether the argument agent is valid for the
// Config
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*DDPG)
	return ok
}

// Validate returns an error describing why the Config is invalid, or
// nil if the Config is valid
func (c Config) Validate() error {
	if len(c.ActorLayers) != len(c.ActorBiases) ||
		len(c.ActorLayers) != len(c.ActorActivations) {
		return fmt.Errorf("actor layers (%v), biases (%v), and "+
			"activations (%v) must have equal length", len(c.ActorLayers),
			len(c.ActorBiases), len(c.ActorActivations))
	}

	if len(c.CriticLayers) != len(c.CriticBiases) ||
		len(c.CriticLayers) != len(c.CriticActivations) {
		return fmt.Errorf("critic layers (%v), biases (%v), and "+
			"activations (%v) must have equal length", len(c.CriticLayers),
			len(c.CriticBiases), len(c.CriticActivations))
	}

	if c.InitWFn == nil {
		return fmt.Errorf("no weight initialization scheme")
	}

	if c.ActorSolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("both an actor and a critic solver are required")
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %v", c.BatchSize)
	}

	if c.BufferSize < c.BatchSize {
		return fmt.Errorf("buffer size (%v) must be at least the batch "+
			"size (%v)", c.BufferSize, c.BatchSize)
	}

	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("discount rate must be in [0, 1], got %v", c.Gamma)
	}

	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("polyak averaging constant must be in (0, 1], "+
			"got %v", c.Tau)
	}

	if c.NoiseSigma < 0 {
		return fmt.Errorf("noise standard deviation must be non-negative, "+
			"got %v", c.NoiseSigma)
	}

	return nil
}

// CreateAgent creates a new DDPG agent as described by the Config on
// the given environment
func (c Config) CreateAgent(env environment.Environment,
	seed uint64) (agent.Agent, error) {
	return New(env, c, seed)
}
