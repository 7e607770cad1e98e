package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer implements a single layer of a feed forward neural network
type Layer interface {
	fwd(*G.Node) (*G.Node, error)
	CloneTo(g *G.ExprGraph) Layer
	Weights() *G.Node
	Bias() *G.Node
	Activation() *Activation
}

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	if f.Weights() != nil {
		x = G.Must(G.Mul(x, f.Weights()))
	}
	if f.Bias() != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		x = G.Must(G.BroadcastAdd(x, f.Bias(), nil, []byte{0}))
	}
	if f.Activation() == nil || f.Activation().IsIdentity() {
		return x, nil
	}
	return f.Activation().fwd(x)
}

// CloneTo clones an fcLayer to a new computational graph
func (f *fcLayer) CloneTo(g *G.ExprGraph) Layer {
	var newWeights, newBias *G.Node

	if f.Weights() != nil {
		newWeights = f.Weights().CloneTo(g)
	}
	if f.Bias() != nil {
		newBias = f.Bias().CloneTo(g)
	}

	return &fcLayer{
		weights: newWeights,
		bias:    newBias,
		act:     f.act,
	}
}

func (f *fcLayer) Activation() *Activation {
	return f.act
}

func (f *fcLayer) Bias() *G.Node {
	return f.bias
}

func (f *fcLayer) Weights() *G.Node {
	return f.weights
}

// addFCLayers creates the fully connected layers of an MLP on graph g.
// For index i, sizes[i] is the number of units in layer i, biases[i]
// denotes whether layer i has a bias unit, and activations[i] is the
// activation function of layer i. The features parameter is the
// number of input features to the first layer, and prefix
// disambiguates node names when several networks share one graph.
func addFCLayers(g *G.ExprGraph, sizes []int, biases []bool,
	activations []*Activation, init G.InitWFn, features int,
	prefix string) []Layer {
	layers := make([]Layer, 0, len(sizes))

	inputs := features
	for i, size := range sizes {
		weights := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(inputs, size),
			G.WithName(fmt.Sprintf("%vL%dW", prefix, i)),
			G.WithInit(init),
		)

		var bias *G.Node
		if biases[i] {
			bias = G.NewMatrix(
				g,
				tensor.Float64,
				G.WithShape(1, size),
				G.WithName(fmt.Sprintf("%vL%dB", prefix, i)),
				G.WithInit(G.Zeroes()),
			)
		}

		layers = append(layers, &fcLayer{
			weights: weights,
			bias:    bias,
			act:     activations[i],
		})
		inputs = size
	}

	return layers
}
