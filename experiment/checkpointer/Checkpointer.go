// Package checkpointer implements functionality for periodically
// saving agent state during an experiment
package checkpointer

// Saveable is an object whose state can be saved to a file
type Saveable interface {
	Save(path string) error
}

// Checkpointer saves Saveable objects based on episode numbers
type Checkpointer interface {
	Checkpoint(episode int) error
}
