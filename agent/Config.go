package agent

import "github.com/samuelfneumann/goddpg/environment"

// Type describes the different types of agents that are available.
// The set of types is closed: configurations are unmarshalled into
// their concrete types directly, never through a registry.
type Type string

// Available agent types
const (
	DDPG Type = "DDPG"
)

// Config represents a configuration of an agent and can be used to
// create the agent it describes.
type Config interface {
	// CreateAgent creates the agent that the Config describes on the
	// given environment
	CreateAgent(env environment.Environment, seed uint64) (Agent, error)

	// ValidAgent returns whether the argument agent is valid for the
	// Config
	ValidAgent(Agent) bool

	// Validate returns an error describing why the Config is invalid,
	// or nil if the Config is valid
	Validate() error

	// Type returns the type of agent that the Config describes
	Type() Type
}
