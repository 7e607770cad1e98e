// Package network implements neural network function approximators
// using Gorgonia computational graphs
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet implements a neural network function approximator. A
// NeuralNet owns the nodes of a single forward pass on some
// computational graph, together with the learnable weights of that
// pass.
//
// NeuralNets may have more than one input node. Multiple inputs are
// concatenated along the feature dimension before the first layer, so
// that e.g. an action-value network can consume a state matrix and an
// action matrix as separate inputs.
type NeuralNet interface {
	// Graph returns the computational graph the network is built on
	Graph() *G.ExprGraph

	// Clone clones the network to a new computational graph with the
	// same input batch size
	Clone() (NeuralNet, error)

	// CloneWithBatch clones the network to a new computational graph,
	// with fresh input nodes of the given batch size
	CloneWithBatch(int) (NeuralNet, error)

	// CloneWithInputsTo clones the network's layers onto an existing
	// graph, running the forward pass on the given input nodes. The
	// inputs are concatenated along axis before the first layer. This
	// is how a value network is embedded into a policy network's graph
	// so that gradients can flow through the value estimate into the
	// policy weights.
	CloneWithInputsTo(axis int, inputs []*G.Node,
		g *G.ExprGraph) (NeuralNet, error)

	// BatchSize returns the number of rows of the network's input
	BatchSize() int

	// Features returns the total number of input features, summed
	// over all input nodes
	Features() int

	// Outputs returns the number of outputs predicted per input row
	Outputs() int

	// Inputs returns the input nodes of the network, in the order in
	// which they are concatenated
	Inputs() []*G.Node

	// SetInput sets the value of the network's single input node.
	// Networks with more than one input node must have their inputs
	// set directly with gorgonia.Let on the Inputs() nodes.
	SetInput([]float64) error

	// Set hard-copies the weights of another NeuralNet into the
	// receiver
	Set(NeuralNet) error

	// Polyak sets the weights of the receiver to an exponential
	// average of its current weights and those of another NeuralNet:
	// w = tau*other + (1-tau)*w
	Polyak(other NeuralNet, tau float64) error

	// Learnables returns the learnable weight nodes of the network
	Learnables() G.Nodes

	// Model returns the learnable weight nodes with their gradients
	Model() []G.ValueGrad

	// Output returns the value of the network's prediction after the
	// graph has been run
	Output() G.Value

	// Prediction returns the node holding the network's prediction
	Prediction() *G.Node

	// GobEncode serializes the network's full weight state
	GobEncode() ([]byte, error)

	// GobDecode restores a weight state previously produced by
	// GobEncode into the existing network. The architecture of the
	// encoded network must match the receiver's.
	GobDecode([]byte) error
}

// Set hard-copies the weights of src into dest
func Set(dest, src NeuralNet) error {
	return dest.Set(src)
}

// Polyak updates the weights of dest to track those of src with rate
// tau
func Polyak(dest, src NeuralNet, tau float64) error {
	return dest.Polyak(src, tau)
}
