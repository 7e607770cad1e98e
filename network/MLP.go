package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// mlp implements a multi-layered perceptron with a configurable number
// of output units and a configurable output activation. It satisfies
// the NeuralNet interface.
type mlp struct {
	g      *G.ExprGraph
	layers []Layer

	inputs []*G.Node
	input  *G.Node // inputs concatenated along the feature dimension

	numOutputs int
	numInputs  int
	batchSize  int

	// Architecture data needed for cloning and gobbing. These slices
	// include the final output layer.
	hiddenSizes []int
	biases      []bool
	activations []*Activation
	prefix      string

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron with a
// single input node of shape (batch, features), populating the graph
// g with the MLP.
//
// The MLP has len(hiddenSizes) hidden layers, where hiddenSizes[i] is
// the number of units in hidden layer i, biases[i] denotes whether
// hidden layer i has a bias unit, and activations[i] is the activation
// function of hidden layer i. A final layer with a bias unit and the
// outputAct activation is always appended so that the network predicts
// outputs values per input row. The init parameter determines the
// weight initialization scheme, and prefix disambiguates node names
// when several networks share a graph.
func NewMLP(features, batch, outputs int, g *G.ExprGraph, hiddenSizes []int,
	biases []bool, activations []*Activation, outputAct *Activation,
	init G.InitWFn, prefix string) (NeuralNet, error) {
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName(prefix+"Input"),
		G.WithInit(G.Zeroes()),
	)

	return NewMLPFromInputs([]*G.Node{input}, outputs, g, hiddenSizes,
		biases, activations, outputAct, init, prefix)
}

// NewMLPFromInputs creates and returns a new multi-layered perceptron
// whose forward pass runs on the given input nodes. If multiple input
// nodes are given, they are concatenated along the feature (column)
// dimension before the first layer, so that e.g. an action-value
// network can run on a state matrix node and an action matrix node.
//
// See NewMLP for the meaning of the remaining parameters.
func NewMLPFromInputs(inputs []*G.Node, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, activations []*Activation,
	outputAct *Activation, init G.InitWFn, prefix string) (NeuralNet,
	error) {
	// Ensure one activation and one bias flag per hidden layer
	if len(hiddenSizes) != len(activations) {
		msg := "newmlpfrominputs: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newmlpfrominputs: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("newmlpfrominputs: no input nodes")
	}
	for _, input := range inputs {
		if input.Graph() != g {
			return nil, fmt.Errorf("newmlpfrominputs: not all inputs " +
				"are on the target graph")
		}
	}

	// Concatenate inputs if necessary
	var input *G.Node
	if len(inputs) > 1 {
		input = G.Must(G.Concat(1, inputs...))
	} else {
		input = inputs[0]
	}

	if !input.IsMatrix() {
		return nil, fmt.Errorf("newmlpfrominputs: input must be a matrix")
	}

	batch := input.Shape()[0]
	features := input.Shape()[1]

	// Append the final output layer. The appended slices are fresh so
	// the caller's arguments are never mutated.
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	layerBiases := append(append([]bool{}, biases...), true)
	layerActivations := append(append([]*Activation{}, activations...),
		outputAct)

	layers := addFCLayers(g, sizes, layerBiases, layerActivations, init,
		features, prefix)

	// Create the network and run the forward pass on the input node
	network := mlp{
		g:           g,
		layers:      layers,
		inputs:      inputs,
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		hiddenSizes: sizes,
		biases:      layerBiases,
		activations: layerActivations,
		prefix:      prefix,
	}
	_, err := network.fwd(input)
	if err != nil {
		msg := "newmlpfrominputs: could not compute forward pass: %v"
		return nil, fmt.Errorf(msg, err)
	}

	return &network, nil
}

// Graph returns the computational graph of the mlp
func (e *mlp) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones an mlp to a new computational graph
func (e *mlp) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithBatch clones an mlp to a new computational graph with a new
// input batch size
func (e *mlp) CloneWithBatch(batchSize int) (NeuralNet, error) {
	graph := G.NewGraph()

	// Create input nodes mirroring the original inputs
	inputs := make([]*G.Node, len(e.inputs))
	for i, input := range e.inputs {
		if !input.IsMatrix() {
			return nil, fmt.Errorf("clonewithbatch: invalid input type")
		}
		inputs[i] = G.NewMatrix(
			graph,
			tensor.Float64,
			G.WithShape(batchSize, input.Shape()[1]),
			G.WithName(input.Name()),
			G.WithInit(G.Zeroes()),
		)
	}

	return e.CloneWithInputsTo(1, inputs, graph)
}

// CloneWithInputsTo clones an mlp onto an existing graph, running the
// forward pass on the given input nodes. Weight values are copied, so
// the clone must be kept synchronized with Set if it should track the
// original network.
func (e *mlp) CloneWithInputsTo(axis int, inputs []*G.Node,
	g *G.ExprGraph) (NeuralNet, error) {
	// Ensure inputs share the same graph
	for _, input := range inputs {
		if input.Graph() != g {
			return nil, fmt.Errorf("clonewithinputsto: not all inputs " +
				"have the same graph")
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("clonewithinputsto: no input nodes")
	}

	// Concatenate inputs if necessary
	var input *G.Node
	if len(inputs) > 1 {
		input = G.Must(G.Concat(axis, inputs...))
	} else {
		input = inputs[0]
	}

	if !input.IsMatrix() {
		return nil, fmt.Errorf("clonewithinputsto: input must be a matrix " +
			"node")
	}

	// Copy fully connected layers
	layers := make([]Layer, len(e.layers))
	for i := range e.layers {
		layers[i] = e.layers[i].CloneTo(g)
	}

	batchSize := input.Shape()[0]

	// Create the network and run the forward pass on the input node
	network := mlp{
		g:           g,
		layers:      layers,
		inputs:      inputs,
		input:       input,
		numOutputs:  e.numOutputs,
		numInputs:   e.numInputs,
		batchSize:   batchSize,
		hiddenSizes: e.hiddenSizes,
		biases:      e.biases,
		activations: e.activations,
		prefix:      e.prefix,
	}
	_, err := network.fwd(input)
	if err != nil {
		msg := "clonewithinputsto: could not compute forward pass: %v"
		return nil, fmt.Errorf(msg, err)
	}

	return &network, nil
}

// BatchSize returns the batch size of inputs to the network
func (e *mlp) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single input row,
// summed over all input nodes
func (e *mlp) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs predicted per input row
func (e *mlp) Outputs() int {
	return e.numOutputs
}

// Inputs returns the input nodes of the network
func (e *mlp) Inputs() []*G.Node {
	return e.inputs
}

// SetInput sets the value of the input node before running the forward
// pass. SetInput is only valid for networks with a single input node.
func (e *mlp) SetInput(input []float64) error {
	if len(e.inputs) != 1 {
		return fmt.Errorf("setinput: network has %d input nodes; use "+
			"gorgonia.Let on Inputs() instead", len(e.inputs))
	}
	if len(input) != e.numInputs*e.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", e.numInputs*e.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Set sets the weights of an mlp to be equal to the weights of another
// NeuralNet
func (dest *mlp) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(nodes) != len(sourceNodes) {
		return fmt.Errorf("set: incompatible networks\n\twant(%d "+
			"learnables)\n\thave(%d)", len(nodes), len(sourceNodes))
	}

	for i, destLearnable := range nodes {
		sourceWeights, ok := sourceNodes[i].Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("set: source weights must be dense tensors")
		}
		err := G.Let(destLearnable, sourceWeights.Clone().(*tensor.Dense))
		if err != nil {
			return err
		}
	}
	return nil
}

// Polyak sets the weights of an mlp to be an exponential average
// between its existing weights and the weights of another NeuralNet:
// w = tau*source + (1-tau)*w
func (dest *mlp) Polyak(source NeuralNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(nodes) != len(sourceNodes) {
		return fmt.Errorf("polyak: incompatible networks\n\twant(%d "+
			"learnables)\n\thave(%d)", len(nodes), len(sourceNodes))
	}

	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		scaled, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		scaledSource, err := sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		newWeights, err := scaled.Add(scaledSource)
		if err != nil {
			return err
		}

		err = G.Let(nodes[i], newWeights)
		if err != nil {
			return err
		}
	}
	return nil
}

// Learnables returns the learnable nodes in an mlp
func (e *mlp) Learnables() G.Nodes {
	// Lazy instantiation
	if e.learnables == nil {
		e.learnables = e.computeLearnables()
	}
	return e.learnables
}

// computeLearnables computes all the learnables for the network
func (e *mlp) computeLearnables() G.Nodes {
	learnables := make([]*G.Node, 0, 2*len(e.layers))

	for i := range e.layers {
		learnables = append(learnables, e.layers[i].Weights())
		if bias := e.layers[i].Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return G.Nodes(learnables)
}

// Model returns the learnable nodes with their gradients
func (e *mlp) Model() []G.ValueGrad {
	// Lazy instantiation
	if e.model == nil {
		e.model = e.computeModel()
	}
	return e.model
}

// computeModel computes the model for the network
func (e *mlp) computeModel() []G.ValueGrad {
	model := make([]G.ValueGrad, 0, 2*len(e.layers))
	for _, node := range e.Learnables() {
		model = append(model, node)
	}
	return model
}

// fwd performs the forward pass of the mlp on the input node
func (e *mlp) fwd(input *G.Node) (*G.Node, error) {
	inputShape := input.Shape()[len(input.Shape())-1]
	if inputShape != e.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			" \n\twant(%v) \n\thave(%v)", e.numInputs, inputShape)
	}

	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	e.prediction = pred
	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the output of the mlp after the graph has been run
func (e *mlp) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the mlp
func (e *mlp) Prediction() *G.Node {
	return e.prediction
}

// GobEncode implements the gob.GobEncoder interface, serializing the
// full weight state of the network together with its architecture.
func (e *mlp) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(e.numOutputs); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode number of " +
			"outputs")
	}
	if err := enc.Encode(e.numInputs); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode number of " +
			"inputs")
	}
	if err := enc.Encode(e.hiddenSizes); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode layer sizes")
	}
	if err := enc.Encode(e.biases); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode biases")
	}
	if err := enc.Encode(e.activations); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode activations")
	}

	// Store the layer weights
	for i, layer := range e.layers {
		weights := layer.Weights().Value().(*tensor.Dense)
		if err := enc.Encode(weights); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode weights "+
				"of layer %v: %v", i, err)
		}

		hasBias := layer.Bias() != nil
		if err := enc.Encode(hasBias); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode bias flag "+
				"of layer %v: %v", i, err)
		}
		if hasBias {
			bias := layer.Bias().Value().(*tensor.Dense)
			if err := enc.Encode(bias); err != nil {
				return nil, fmt.Errorf("gobencode: could not encode bias "+
					"of layer %v: %v", i, err)
			}
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface, restoring a
// weight state previously produced by GobEncode into the existing
// network. The encoded architecture must match the receiver's.
func (e *mlp) GobDecode(in []byte) error {
	buf := bytes.NewReader(in)
	dec := gob.NewDecoder(buf)

	var numOutputs int
	if err := dec.Decode(&numOutputs); err != nil {
		return fmt.Errorf("gobdecode: could not decode number of outputs")
	}

	var numInputs int
	if err := dec.Decode(&numInputs); err != nil {
		return fmt.Errorf("gobdecode: could not decode number of inputs")
	}

	var hiddenSizes []int
	if err := dec.Decode(&hiddenSizes); err != nil {
		return fmt.Errorf("gobdecode: could not decode layer sizes")
	}

	var biases []bool
	if err := dec.Decode(&biases); err != nil {
		return fmt.Errorf("gobdecode: could not decode biases")
	}

	var activations []*Activation
	if err := dec.Decode(&activations); err != nil {
		return fmt.Errorf("gobdecode: could not decode activations")
	}

	// Weight states may only be restored into a structurally identical
	// network
	if numOutputs != e.numOutputs || numInputs != e.numInputs ||
		!equalInts(hiddenSizes, e.hiddenSizes) ||
		!equalBools(biases, e.biases) {
		return fmt.Errorf("gobdecode: encoded architecture does not match " +
			"the network")
	}
	for i := range activations {
		if activations[i].String() != e.activations[i].String() {
			return fmt.Errorf("gobdecode: encoded activations do not match " +
				"the network")
		}
	}

	// Restore the layer weights into the existing graph nodes
	for i, layer := range e.layers {
		weights := new(tensor.Dense)
		if err := dec.Decode(weights); err != nil {
			return fmt.Errorf("gobdecode: could not decode weights of "+
				"layer %v: %v", i, err)
		}
		if err := G.Let(layer.Weights(), weights); err != nil {
			return fmt.Errorf("gobdecode: could not set weights of "+
				"layer %v: %v", i, err)
		}

		var hasBias bool
		if err := dec.Decode(&hasBias); err != nil {
			return fmt.Errorf("gobdecode: could not decode bias flag of "+
				"layer %v: %v", i, err)
		}
		if hasBias != (layer.Bias() != nil) {
			return fmt.Errorf("gobdecode: encoded biases do not match the "+
				"network at layer %v", i)
		}
		if hasBias {
			bias := new(tensor.Dense)
			if err := dec.Decode(bias); err != nil {
				return fmt.Errorf("gobdecode: could not decode bias of "+
					"layer %v: %v", i, err)
			}
			if err := G.Let(layer.Bias(), bias); err != nil {
				return fmt.Errorf("gobdecode: could not set bias of "+
					"layer %v: %v", i, err)
			}
		}
	}

	return nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
