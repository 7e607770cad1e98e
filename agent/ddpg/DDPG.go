// Package ddpg implements the Deep Deterministic Policy Gradient
// algorithm.
//
// DDPG is an off-policy actor-critic algorithm for continuous action
// spaces. A deterministic policy network (the actor) maps states to
// actions, and an action-value network (the critic) estimates the
// value of state-action pairs. Exploration is induced by adding
// temporally correlated Ornstein-Uhlenbeck noise to the actor's
// actions, and learning uses transitions sampled uniformly from an
// experience replay buffer. Slowly moving target copies of both
// networks stabilize the bootstrapped update targets.
package ddpg

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/expreplay"
	"github.com/samuelfneumann/goddpg/network"
	"github.com/samuelfneumann/goddpg/noise"
	"github.com/samuelfneumann/goddpg/solver"
	"github.com/samuelfneumann/goddpg/timestep"
	"github.com/samuelfneumann/goddpg/utils/floatutils"
)

// Keys under which network and solver states are stored in checkpoint
// files
const (
	actorKey        string = "actor_state"
	actorTargetKey  string = "actor_target_state"
	criticKey       string = "critic_state"
	criticTargetKey string = "critic_target_state"
	actorOptimKey   string = "actor_optim_state"
	criticOptimKey  string = "critic_optim_state"
)

// DDPG implements the Deep Deterministic Policy Gradient algorithm.
// DDPG implements the agent.Agent interface.
//
// The agent maintains five computational graphs. The behaviour actor
// selects single actions during environmental interaction. The
// training actor and training critic run on full batches and are the
// networks the solvers step; the actor's graph additionally embeds a
// copy of the critic so that the policy gradient can flow through the
// critic's weights into the actor. Finally, the target actor and
// target critic provide the slowly moving update targets.
type DDPG struct {
	// Action selection
	behaviour   network.NeuralNet
	vmBehaviour G.VM

	// Policy improvement
	trainActor   network.NeuralNet
	actorCritic  network.NeuralNet // critic copy embedded in the actor graph
	vmActor      G.VM
	actorLossVal G.Value
	actorSolver  *solver.Solver

	// Policy evaluation
	trainCritic   network.NeuralNet
	criticTargets *G.Node
	vmCritic      G.VM
	criticLossVal G.Value
	criticSolver  *solver.Solver

	// Update targets
	targetActor    network.NeuralNet
	vmTargetActor  G.VM
	targetCritic   network.NeuralNet
	vmTargetCritic G.VM

	buffer     expreplay.ExperienceReplayer
	noise      *noise.OrnsteinUhlenbeck
	actionDist *distmv.Uniform // warm-up action distribution

	obsDims    int
	actionDims int
	batchSize  int

	gamma               float64
	tau                 float64
	initialRandomAction int
	actorGradClip       float64
	criticGradClip      float64

	minAction []float64
	maxAction []float64

	totalSteps int
	eval       bool
}

// New creates and returns a new DDPG agent on the given environment
func New(env environment.Environment, c Config, seed uint64) (*DDPG, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: invalid configuration: %v", err)
	}

	obsDims := env.ObservationSpec().Dims()
	actionSpec := env.ActionSpec()
	actionDims := actionSpec.Dims()
	if actionSpec.Cardinality != environment.Continuous {
		return nil, fmt.Errorf("new: ddpg requires a continuous action space")
	}

	init := c.InitWFn.InitWFn()

	// Training actor predicts one tanh-squashed action per batch row
	gActor := G.NewGraph()
	trainActor, err := network.NewMLP(obsDims, c.BatchSize, actionDims,
		gActor, c.ActorLayers, c.ActorBiases, c.ActorActivations,
		network.TanH(), init, "Actor")
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor: %v", err)
	}

	// Training critic runs on separate state and action input nodes so
	// that stored actions, rather than the actor's actions, can be
	// evaluated
	gCritic := G.NewGraph()
	criticState := G.NewMatrix(
		gCritic,
		tensor.Float64,
		G.WithShape(c.BatchSize, obsDims),
		G.WithName("CriticStateInput"),
		G.WithInit(G.Zeroes()),
	)
	criticAction := G.NewMatrix(
		gCritic,
		tensor.Float64,
		G.WithShape(c.BatchSize, actionDims),
		G.WithName("CriticActionInput"),
		G.WithInit(G.Zeroes()),
	)
	trainCritic, err := network.NewMLPFromInputs(
		[]*G.Node{criticState, criticAction}, 1, gCritic, c.CriticLayers,
		c.CriticBiases, c.CriticActivations, network.Identity(), init,
		"Critic")
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic: %v", err)
	}

	// Critic loss is the mean squared error to externally computed
	// update targets
	criticTargets := G.NewMatrix(
		gCritic,
		tensor.Float64,
		G.WithShape(c.BatchSize, 1),
		G.WithName("UpdateTarget"),
		G.WithInit(G.Zeroes()),
	)
	criticLoss := G.Must(G.Mean(G.Must(G.Square(
		G.Must(G.Sub(trainCritic.Prediction(), criticTargets)),
	))))

	var criticLossVal G.Value
	G.Read(criticLoss, &criticLossVal)

	if _, err := G.Grad(criticLoss, trainCritic.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute critic gradient: %v",
			err)
	}
	vmCritic := G.NewTapeMachine(gCritic,
		G.BindDualValues(trainCritic.Learnables()...))

	// Embed a copy of the critic in the actor's graph, running on the
	// actor's state input and predicted actions. The policy gradient
	// flows through the copy's weights, but only the actor's weights
	// are stepped; the copy is kept synchronized with Set after each
	// critic update.
	actorCritic, err := trainCritic.CloneWithInputsTo(1,
		[]*G.Node{trainActor.Inputs()[0], trainActor.Prediction()}, gActor)
	if err != nil {
		return nil, fmt.Errorf("new: could not embed critic in actor "+
			"graph: %v", err)
	}
	if err := actorCritic.Set(trainCritic); err != nil {
		return nil, fmt.Errorf("new: could not initialize embedded "+
			"critic: %v", err)
	}

	// Actor loss is the negative mean action value of the actor's
	// actions
	actorLoss := G.Must(G.Neg(G.Must(G.Mean(actorCritic.Prediction()))))

	var actorLossVal G.Value
	G.Read(actorLoss, &actorLossVal)

	if _, err := G.Grad(actorLoss, trainActor.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute actor gradient: %v",
			err)
	}
	vmActor := G.NewTapeMachine(gActor,
		G.BindDualValues(trainActor.Learnables()...))

	// Behaviour actor selects single actions during interaction
	behaviour, err := trainActor.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour actor: %v",
			err)
	}
	if err := behaviour.Set(trainActor); err != nil {
		return nil, fmt.Errorf("new: could not initialize behaviour "+
			"actor: %v", err)
	}
	vmBehaviour := G.NewTapeMachine(behaviour.Graph())

	// Target networks begin as identical copies of the training
	// networks
	targetActor, err := trainActor.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create target actor: %v", err)
	}
	if err := targetActor.Set(trainActor); err != nil {
		return nil, fmt.Errorf("new: could not initialize target actor: %v",
			err)
	}
	vmTargetActor := G.NewTapeMachine(targetActor.Graph())

	targetCritic, err := trainCritic.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create target critic: %v", err)
	}
	if err := targetCritic.Set(trainCritic); err != nil {
		return nil, fmt.Errorf("new: could not initialize target critic: %v",
			err)
	}
	vmTargetCritic := G.NewTapeMachine(targetCritic.Graph())

	buffer, err := expreplay.New(c.BufferSize, c.BatchSize, obsDims,
		actionDims, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create replay buffer: %v", err)
	}

	ouNoise, err := noise.NewOrnsteinUhlenbeck(actionDims, c.NoiseTheta,
		c.NoiseSigma, seed+1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create exploration noise: "+
			"%v", err)
	}

	actionDist := distmv.NewUniform(actionSpec.Intervals(),
		rand.NewSource(seed+2))

	minAction := make([]float64, actionDims)
	maxAction := make([]float64, actionDims)
	for i := 0; i < actionDims; i++ {
		minAction[i] = actionSpec.LowerBound.AtVec(i)
		maxAction[i] = actionSpec.UpperBound.AtVec(i)
	}

	return &DDPG{
		behaviour:   behaviour,
		vmBehaviour: vmBehaviour,

		trainActor:   trainActor,
		actorCritic:  actorCritic,
		vmActor:      vmActor,
		actorLossVal: actorLossVal,
		actorSolver:  c.ActorSolver,

		trainCritic:   trainCritic,
		criticTargets: criticTargets,
		vmCritic:      vmCritic,
		criticLossVal: criticLossVal,
		criticSolver:  c.CriticSolver,

		targetActor:    targetActor,
		vmTargetActor:  vmTargetActor,
		targetCritic:   targetCritic,
		vmTargetCritic: vmTargetCritic,

		buffer:     buffer,
		noise:      ouNoise,
		actionDist: actionDist,

		obsDims:    obsDims,
		actionDims: actionDims,
		batchSize:  c.BatchSize,

		gamma:               c.Gamma,
		tau:                 c.Tau,
		initialRandomAction: c.InitialRandomAction,
		actorGradClip:       c.ActorGradClip,
		criticGradClip:      c.CriticGradClip,

		minAction: minAction,
		maxAction: maxAction,
	}, nil
}

// SelectAction returns the action to take in state. In training mode,
// the first InitialRandomAction selections are drawn uniformly at
// random from the action space; afterwards, actions are the policy's
// predictions perturbed by Ornstein-Uhlenbeck noise. In evaluation
// mode, the policy's prediction is returned unperturbed. Actions are
// always clipped to the legal action range.
func (d *DDPG) SelectAction(state *mat.VecDense) *mat.VecDense {
	if d.eval {
		return d.policyAction(state)
	}

	d.totalSteps++

	if d.totalSteps <= d.initialRandomAction {
		return mat.NewVecDense(d.actionDims, d.actionDist.Rand(nil))
	}

	action := d.policyAction(state)
	action.AddVec(action, d.noise.Sample())
	d.clipAction(action)

	return action
}

// policyAction runs the behaviour actor on state and returns its
// clipped prediction
func (d *DDPG) policyAction(state *mat.VecDense) *mat.VecDense {
	err := d.behaviour.SetInput(floatutils.Copy(state.RawVector().Data))
	if err != nil {
		panic(fmt.Sprintf("policyaction: could not set input: %v", err))
	}
	if err := d.vmBehaviour.RunAll(); err != nil {
		panic(fmt.Sprintf("policyaction: could not run policy: %v", err))
	}
	action := mat.NewVecDense(d.actionDims, valueToSlice(d.behaviour.Output()))
	d.vmBehaviour.Reset()

	d.clipAction(action)
	return action
}

// clipAction clips each dimension of action to the legal action range
// in-place
func (d *DDPG) clipAction(action *mat.VecDense) {
	for i := 0; i < d.actionDims; i++ {
		action.SetVec(i, floatutils.Clip(action.AtVec(i), d.minAction[i],
			d.maxAction[i]))
	}
}

// Observe stores an environmental transition in the replay buffer
func (d *DDPG) Observe(t timestep.Transition) error {
	if err := d.buffer.Add(t); err != nil {
		return fmt.Errorf("observe: could not store transition: %v", err)
	}
	return nil
}

// Ready returns whether the agent has stored enough transitions to
// learn from
func (d *DDPG) Ready() bool {
	return d.buffer.Capacity() >= d.buffer.BatchSize()
}

// TotalSteps returns the total number of training actions the agent
// has selected over its lifetime
func (d *DDPG) TotalSteps() int {
	return d.totalSteps
}

// Update performs a single learning update on a batch of transitions
// sampled uniformly from the replay buffer, returning the actor and
// critic losses for the update.
//
// First the critic is moved towards the one-step bootstrapped targets
// computed from the target networks. The actor is then moved up the
// gradient of the freshly updated critic's action values. Finally,
// both target networks are moved towards their training counterparts
// by Polyak averaging.
func (d *DDPG) Update() (actorLoss, criticLoss float64, err error) {
	states, actions, rewards, nextStates, dones, err := d.buffer.Sample()
	if err != nil {
		return 0, 0, fmt.Errorf("update: could not sample buffer: %v", err)
	}

	// Compute next actions from the target actor
	if err := d.targetActor.SetInput(nextStates); err != nil {
		return 0, 0, fmt.Errorf("update: could not set target actor "+
			"input: %v", err)
	}
	if err := d.vmTargetActor.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("update: could not run target actor: %v", err)
	}
	nextActions := valueToSlice(d.targetActor.Output())
	d.vmTargetActor.Reset()

	// Compute next action values from the target critic
	err = setInputs(d.targetCritic, d.batchSize, nextStates, nextActions)
	if err != nil {
		return 0, 0, fmt.Errorf("update: could not set target critic "+
			"inputs: %v", err)
	}
	if err := d.vmTargetCritic.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("update: could not run target critic: %v",
			err)
	}
	nextValues := valueToSlice(d.targetCritic.Output())
	d.vmTargetCritic.Reset()

	targets := tdTargets(rewards, nextValues, dones, d.gamma)

	// Critic step
	err = setInputs(d.trainCritic, d.batchSize, states, actions)
	if err != nil {
		return 0, 0, fmt.Errorf("update: could not set critic inputs: %v",
			err)
	}
	targetsTensor := tensor.New(
		tensor.WithBacking(targets),
		tensor.WithShape(d.batchSize, 1),
	)
	if err := G.Let(d.criticTargets, targetsTensor); err != nil {
		return 0, 0, fmt.Errorf("update: could not set critic targets: %v",
			err)
	}
	if err := d.vmCritic.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("update: could not run critic: %v", err)
	}
	err = solver.ClipNorm(d.trainCritic.Model(), d.criticGradClip)
	if err != nil {
		return 0, 0, fmt.Errorf("update: could not clip critic "+
			"gradient: %v", err)
	}
	if err := d.criticSolver.Step(d.trainCritic.Model()); err != nil {
		return 0, 0, fmt.Errorf("update: could not step critic: %v", err)
	}
	criticLoss = d.criticLossVal.Data().(float64)
	d.vmCritic.Reset()

	// The actor's embedded critic copy must see the updated critic
	// weights
	if err := d.actorCritic.Set(d.trainCritic); err != nil {
		return 0, 0, fmt.Errorf("update: could not sync embedded "+
			"critic: %v", err)
	}

	// Actor step
	if err := d.trainActor.SetInput(states); err != nil {
		return 0, 0, fmt.Errorf("update: could not set actor input: %v", err)
	}
	if err := d.vmActor.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("update: could not run actor: %v", err)
	}
	err = solver.ClipNorm(d.trainActor.Model(), d.actorGradClip)
	if err != nil {
		return 0, 0, fmt.Errorf("update: could not clip actor gradient: %v",
			err)
	}
	if err := d.actorSolver.Step(d.trainActor.Model()); err != nil {
		return 0, 0, fmt.Errorf("update: could not step actor: %v", err)
	}
	actorLoss = d.actorLossVal.Data().(float64)
	d.vmActor.Reset()

	// The behaviour actor must see the updated policy weights
	if err := d.behaviour.Set(d.trainActor); err != nil {
		return 0, 0, fmt.Errorf("update: could not sync behaviour "+
			"actor: %v", err)
	}

	// Move target networks towards the training networks
	if err := d.targetActor.Polyak(d.trainActor, d.tau); err != nil {
		return 0, 0, fmt.Errorf("update: could not update target actor: %v",
			err)
	}
	if err := d.targetCritic.Polyak(d.trainCritic, d.tau); err != nil {
		return 0, 0, fmt.Errorf("update: could not update target critic: %v",
			err)
	}

	return actorLoss, criticLoss, nil
}

// Train switches the agent to training mode
func (d *DDPG) Train() {
	d.eval = false
}

// Eval switches the agent to evaluation mode
func (d *DDPG) Eval() {
	d.eval = true
}

// IsEval returns whether the agent is in evaluation mode
func (d *DDPG) IsEval() bool {
	return d.eval
}

// Save serializes the agent's learned state to the file at path. The
// stored state consists of the training and target network weights and
// the solver configurations.
func (d *DDPG) Save(path string) error {
	blobs := make(map[string][]byte)

	var err error
	networks := map[string]network.NeuralNet{
		actorKey:        d.trainActor,
		actorTargetKey:  d.targetActor,
		criticKey:       d.trainCritic,
		criticTargetKey: d.targetCritic,
	}
	for key, net := range networks {
		if blobs[key], err = net.GobEncode(); err != nil {
			return fmt.Errorf("save: could not serialize %v: %v", key, err)
		}
	}

	if blobs[actorOptimKey], err = json.Marshal(d.actorSolver); err != nil {
		return fmt.Errorf("save: could not serialize actor solver: %v", err)
	}
	if blobs[criticOptimKey], err = json.Marshal(d.criticSolver); err != nil {
		return fmt.Errorf("save: could not serialize critic solver: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: could not create checkpoint file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(blobs); err != nil {
		return fmt.Errorf("save: could not write checkpoint: %v", err)
	}

	return nil
}

// Load restores a state previously produced by Save from the file at
// path. If no file exists at path, a diagnostic is printed and the
// agent's parameters are left untouched.
func (d *DDPG) Load(path string) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load: no checkpoint found at %v\n", path)
		return nil
	} else if err != nil {
		return fmt.Errorf("load: could not open checkpoint file: %v", err)
	}
	defer file.Close()

	blobs := make(map[string][]byte)
	if err := gob.NewDecoder(file).Decode(&blobs); err != nil {
		return fmt.Errorf("load: could not read checkpoint: %v", err)
	}

	networks := map[string]network.NeuralNet{
		actorKey:        d.trainActor,
		actorTargetKey:  d.targetActor,
		criticKey:       d.trainCritic,
		criticTargetKey: d.targetCritic,
	}
	for key, net := range networks {
		blob, ok := blobs[key]
		if !ok {
			return fmt.Errorf("load: checkpoint is missing %v", key)
		}
		if err := net.GobDecode(blob); err != nil {
			return fmt.Errorf("load: could not restore %v: %v", key, err)
		}
	}

	// Solvers are recreated from their stored configurations
	actorSolver := new(solver.Solver)
	if err := json.Unmarshal(blobs[actorOptimKey], actorSolver); err != nil {
		return fmt.Errorf("load: could not restore actor solver: %v", err)
	}
	d.actorSolver = actorSolver

	criticSolver := new(solver.Solver)
	if err := json.Unmarshal(blobs[criticOptimKey], criticSolver); err != nil {
		return fmt.Errorf("load: could not restore critic solver: %v", err)
	}
	d.criticSolver = criticSolver

	// Derived networks must see the restored weights
	if err := d.behaviour.Set(d.trainActor); err != nil {
		return fmt.Errorf("load: could not sync behaviour actor: %v", err)
	}
	if err := d.actorCritic.Set(d.trainCritic); err != nil {
		return fmt.Errorf("load: could not sync embedded critic: %v", err)
	}

	return nil
}

// Close releases the virtual machines backing the agent's
// computational graphs
func (d *DDPG) Close() error {
	vms := []G.VM{d.vmBehaviour, d.vmActor, d.vmCritic, d.vmTargetActor,
		d.vmTargetCritic}
	for _, vm := range vms {
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: could not close virtual machine: %v",
				err)
		}
	}
	return nil
}

// tdTargets computes the one-step bootstrapped action value targets,
// with bootstrapping masked on environmental terminations
func tdTargets(rewards, nextValues, dones []float64,
	gamma float64) []float64 {
	targets := make([]float64, len(rewards))
	for i := range targets {
		targets[i] = rewards[i] + gamma*nextValues[i]*(1.0-dones[i])
	}
	return targets
}

// setInputs sets the input nodes of a multi-input network, inferring
// each input's feature dimension from the batch size
func setInputs(net network.NeuralNet, batch int, data ...[]float64) error {
	inputs := net.Inputs()
	if len(inputs) != len(data) {
		return fmt.Errorf("setinputs: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", len(inputs), len(data))
	}

	for i, input := range inputs {
		if len(data[i])%batch != 0 {
			return fmt.Errorf("setinputs: input %v has %v values, which "+
				"cannot fill %v batch rows", i, len(data[i]), batch)
		}
		inputTensor := tensor.New(
			tensor.WithBacking(data[i]),
			tensor.WithShape(batch, len(data[i])/batch),
		)
		if err := G.Let(input, inputTensor); err != nil {
			return err
		}
	}
	return nil
}

// valueToSlice returns the data of a Value as a newly allocated slice
func valueToSlice(v G.Value) []float64 {
	switch data := v.Data().(type) {
	case float64:
		return []float64{data}
	case []float64:
		return floatutils.Copy(data)
	default:
		panic(fmt.Sprintf("valuetoslice: value must be float64, got %T",
			data))
	}
}
