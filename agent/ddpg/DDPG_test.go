package ddpg

import (
	"math"
	"path/filepath"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/initwfn"
	"github.com/samuelfneumann/goddpg/network"
	"github.com/samuelfneumann/goddpg/solver"
	"github.com/samuelfneumann/goddpg/timestep"
	"github.com/samuelfneumann/goddpg/utils/floatutils"
)

// stubEnv is a tiny continuous-action environment for exercising the
// agent without pendulum dynamics
type stubEnv struct {
	step int
}

func (s *stubEnv) Reset() *mat.VecDense {
	s.step = 0
	return mat.NewVecDense(2, []float64{0.1, -0.1})
}

func (s *stubEnv) Step(action *mat.VecDense) (*mat.VecDense, float64, bool,
	environment.Info) {
	s.step++
	state := mat.NewVecDense(2, []float64{0.1 * float64(s.step%7), -0.05})
	return state, 1.0, false, nil
}

func (s *stubEnv) ObservationSpec() environment.Spec {
	return environment.NewSpec(
		mat.NewVecDense(2, nil),
		environment.Observation,
		mat.NewVecDense(2, []float64{-1.0, -1.0}),
		mat.NewVecDense(2, []float64{1.0, 1.0}),
		environment.Continuous,
	)
}

func (s *stubEnv) ActionSpec() environment.Spec {
	return environment.NewSpec(
		mat.NewVecDense(1, nil),
		environment.Action,
		mat.NewVecDense(1, []float64{-1.0}),
		mat.NewVecDense(1, []float64{1.0}),
		environment.Continuous,
	)
}

func (s *stubEnv) Close() error { return nil }

// testConfig returns a small agent configuration suitable for unit
// tests
func testConfig(t *testing.T) Config {
	t.Helper()

	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		t.Fatalf("could not create weight initializer: %v", err)
	}
	actorSolver, err := solver.NewVanilla(0.05, 8)
	if err != nil {
		t.Fatalf("could not create actor solver: %v", err)
	}
	criticSolver, err := solver.NewVanilla(0.05, 8)
	if err != nil {
		t.Fatalf("could not create critic solver: %v", err)
	}

	return Config{
		ActorLayers:      []int{8},
		ActorBiases:      []bool{true},
		ActorActivations: []*network.Activation{network.ReLU()},

		CriticLayers:      []int{8},
		CriticBiases:      []bool{true},
		CriticActivations: []*network.Activation{network.ReLU()},

		InitWFn:      init,
		ActorSolver:  actorSolver,
		CriticSolver: criticSolver,

		ActorGradClip:  0.5,
		CriticGradClip: 1.0,

		BufferSize: 64,
		BatchSize:  8,

		Gamma: 0.99,
		Tau:   0.05,

		InitialRandomAction: 0,

		NoiseTheta: 0.15,
		NoiseSigma: 0.2,
	}
}

// newTestAgent returns a new agent on a stub environment with its
// replay buffer filled past the batch size
func newTestAgent(t *testing.T, seed uint64) *DDPG {
	t.Helper()

	env := &stubEnv{}
	agent, err := New(env, testConfig(t), seed)
	if err != nil {
		t.Fatalf("could not create agent: %v", err)
	}
	t.Cleanup(func() { agent.Close() })

	state := env.Reset()
	for i := 0; i < 16; i++ {
		action := agent.SelectAction(state)
		nextState, reward, _, _ := env.Step(action)
		transition := timestep.New(state, action, reward, nextState, false)
		if err := agent.Observe(transition); err != nil {
			t.Fatalf("could not observe transition: %v", err)
		}
		state = nextState
	}

	return agent
}

// netData returns copies of the weight values of every learnable node
// in a network
func netData(t *testing.T, net network.NeuralNet) [][]float64 {
	t.Helper()

	var data [][]float64
	for _, node := range net.Learnables() {
		values, ok := node.Value().Data().([]float64)
		if !ok {
			t.Fatalf("learnable %v does not hold []float64 data",
				node.Name())
		}
		data = append(data, append([]float64{}, values...))
	}
	return data
}

func TestNewInvalidConfig(t *testing.T) {
	config := testConfig(t)
	config.BatchSize = 0

	if _, err := New(&stubEnv{}, config, 1); err == nil {
		t.Error("creating an agent with an invalid configuration should " +
			"fail")
	}
}

func TestSelectActionBounds(t *testing.T) {
	agent := newTestAgent(t, 1)

	state := mat.NewVecDense(2, []float64{0.5, -0.5})
	for i := 0; i < 50; i++ {
		action := agent.SelectAction(state)
		if action.Len() != 1 {
			t.Fatalf("expected 1-dimensional actions, got %v", action.Len())
		}
		if action.AtVec(0) < -1.0 || action.AtVec(0) > 1.0 {
			t.Fatalf("action out of bounds: %v", action.AtVec(0))
		}
	}
}

func TestTotalSteps(t *testing.T) {
	agent := newTestAgent(t, 1)
	state := mat.NewVecDense(2, []float64{0.5, -0.5})

	// newTestAgent selects 16 training actions while filling the
	// buffer
	if agent.TotalSteps() != 16 {
		t.Fatalf("expected 16 total steps, got %v", agent.TotalSteps())
	}

	agent.SelectAction(state)
	if agent.TotalSteps() != 17 {
		t.Errorf("training action selection should increment total steps")
	}

	agent.Eval()
	agent.SelectAction(state)
	if agent.TotalSteps() != 17 {
		t.Errorf("evaluation action selection should not increment total " +
			"steps")
	}
}

// TestWarmupActions checks that actions selected before the warm-up
// step count are uniform draws over the action bounds and never come
// from the actor network.
func TestWarmupActions(t *testing.T) {
	config := testConfig(t)
	config.InitialRandomAction = 100

	agent, err := New(&stubEnv{}, config, 1)
	if err != nil {
		t.Fatalf("could not create agent: %v", err)
	}
	defer agent.Close()

	// The actor's output for a fixed state never changes between
	// updates, so warm-up draws must not track it
	state := mat.NewVecDense(2, []float64{0.5, -0.5})
	agent.Eval()
	greedy := agent.SelectAction(state).AtVec(0)
	agent.Train()

	// The warm-up distribution is seeded relative to the construction
	// seed, so its draws can be replayed exactly
	reference := distmv.NewUniform(
		[]r1.Interval{{Min: -1.0, Max: 1.0}},
		rand.NewSource(3),
	)

	sawNonGreedy := false
	for i := 0; i < 100; i++ {
		action := agent.SelectAction(state).AtVec(0)
		if action < -1.0 || action > 1.0 {
			t.Fatalf("warm-up action out of bounds: %v", action)
		}
		if want := reference.Rand(nil)[0]; action != want {
			t.Fatalf("warm-up action %v: expected uniform draw %v, got %v",
				i, want, action)
		}
		if action != greedy {
			sawNonGreedy = true
		}
	}
	if !sawNonGreedy {
		t.Error("warm-up actions should not follow the actor's output")
	}
}

func TestEvalDeterminism(t *testing.T) {
	agent := newTestAgent(t, 1)
	agent.Eval()
	if !agent.IsEval() {
		t.Fatal("agent should be in evaluation mode")
	}

	state := mat.NewVecDense(2, []float64{0.5, -0.5})
	first := agent.SelectAction(state)
	second := agent.SelectAction(state)

	if first.AtVec(0) != second.AtVec(0) {
		t.Errorf("evaluation actions for the same state should be "+
			"identical: %v != %v", first.AtVec(0), second.AtVec(0))
	}
}

func TestUpdateFiniteLosses(t *testing.T) {
	agent := newTestAgent(t, 1)
	if !agent.Ready() {
		t.Fatal("agent with a filled buffer should be ready to learn")
	}

	for i := 0; i < 3; i++ {
		actorLoss, criticLoss, err := agent.Update()
		if err != nil {
			t.Fatalf("could not update agent: %v", err)
		}
		if !floatutils.Finite(actorLoss) {
			t.Errorf("actor loss is not finite: %v", actorLoss)
		}
		if !floatutils.Finite(criticLoss) {
			t.Errorf("critic loss is not finite: %v", criticLoss)
		}
	}
}

// TestUpdatePolyakMovement checks that a single update moves each
// target network exactly tau of the way towards its freshly updated
// training network.
func TestUpdatePolyakMovement(t *testing.T) {
	agent := newTestAgent(t, 1)
	tau := agent.tau

	targetBefore := netData(t, agent.targetActor)
	criticTargetBefore := netData(t, agent.targetCritic)

	if _, _, err := agent.Update(); err != nil {
		t.Fatalf("could not update agent: %v", err)
	}

	live := netData(t, agent.trainActor)
	targetAfter := netData(t, agent.targetActor)
	for i := range targetAfter {
		for j := range targetAfter[i] {
			want := tau*live[i][j] + (1.0-tau)*targetBefore[i][j]
			if math.Abs(targetAfter[i][j]-want) > 1e-10 {
				t.Fatalf("target actor learnable %v element %v: expected "+
					"%v, got %v", i, j, want, targetAfter[i][j])
			}
		}
	}

	criticLive := netData(t, agent.trainCritic)
	criticTargetAfter := netData(t, agent.targetCritic)
	for i := range criticTargetAfter {
		for j := range criticTargetAfter[i] {
			want := tau*criticLive[i][j] +
				(1.0-tau)*criticTargetBefore[i][j]
			if math.Abs(criticTargetAfter[i][j]-want) > 1e-10 {
				t.Fatalf("target critic learnable %v element %v: expected "+
					"%v, got %v", i, j, want, criticTargetAfter[i][j])
			}
		}
	}
}

// TestUpdateSyncsBehaviour checks that the behaviour actor tracks the
// training actor after an update, so that action selection immediately
// reflects learning.
func TestUpdateSyncsBehaviour(t *testing.T) {
	agent := newTestAgent(t, 1)

	if _, _, err := agent.Update(); err != nil {
		t.Fatalf("could not update agent: %v", err)
	}

	live := netData(t, agent.trainActor)
	behaviour := netData(t, agent.behaviour)
	for i := range behaviour {
		for j := range behaviour[i] {
			if behaviour[i][j] != live[i][j] {
				t.Fatalf("behaviour actor learnable %v element %v out of "+
					"sync: %v != %v", i, j, behaviour[i][j], live[i][j])
			}
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	trained := newTestAgent(t, 1)
	for i := 0; i < 3; i++ {
		if _, _, err := trained.Update(); err != nil {
			t.Fatalf("could not update agent: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "ddpg.bin")
	if err := trained.Save(path); err != nil {
		t.Fatalf("could not save agent: %v", err)
	}

	// The restored agent starts from a different seed, so its initial
	// weights differ from the trained agent's
	restored, err := New(&stubEnv{}, testConfig(t), 99)
	if err != nil {
		t.Fatalf("could not create agent: %v", err)
	}
	defer restored.Close()
	if err := restored.Load(path); err != nil {
		t.Fatalf("could not load agent: %v", err)
	}

	pairs := []struct {
		name          string
		saved, loaded network.NeuralNet
	}{
		{"actor", trained.trainActor, restored.trainActor},
		{"target actor", trained.targetActor, restored.targetActor},
		{"critic", trained.trainCritic, restored.trainCritic},
		{"target critic", trained.targetCritic, restored.targetCritic},
	}
	for _, pair := range pairs {
		saved := netData(t, pair.saved)
		loaded := netData(t, pair.loaded)
		for i := range saved {
			for j := range saved[i] {
				if saved[i][j] != loaded[i][j] {
					t.Fatalf("%v weights not restored: %v != %v", pair.name,
						saved[i][j], loaded[i][j])
				}
			}
		}
	}

	trained.Eval()
	restored.Eval()
	state := mat.NewVecDense(2, []float64{0.5, -0.5})
	want := trained.SelectAction(state)
	got := restored.SelectAction(state)

	if want.AtVec(0) != got.AtVec(0) {
		t.Errorf("restored agent selects different actions: %v != %v",
			want.AtVec(0), got.AtVec(0))
	}
}

// TestTDTargets checks that bootstrapping is masked on terminal
// transitions, reducing the target to the immediate reward.
func TestTDTargets(t *testing.T) {
	rewards := []float64{1.0, -2.0, 0.5}
	nextValues := []float64{10.0, 10.0, -4.0}
	dones := []float64{0.0, 1.0, 0.0}
	gamma := 0.9

	targets := tdTargets(rewards, nextValues, dones, gamma)

	want := []float64{1.0 + 0.9*10.0, -2.0, 0.5 + 0.9*(-4.0)}
	for i := range want {
		if math.Abs(targets[i]-want[i]) > 1e-12 {
			t.Errorf("target %d: expected %v, got %v", i, want[i], targets[i])
		}
	}
}

// TestLoadMissingFile checks that loading from a nonexistent path
// leaves the agent's parameters untouched and reports no error.
func TestLoadMissingFile(t *testing.T) {
	agent := newTestAgent(t, 1)
	agent.Eval()

	state := mat.NewVecDense(2, []float64{0.5, -0.5})
	before := agent.SelectAction(state)

	path := filepath.Join(t.TempDir(), "does_not_exist.bin")
	if err := agent.Load(path); err != nil {
		t.Fatalf("loading a missing checkpoint should not fail: %v", err)
	}

	after := agent.SelectAction(state)
	if before.AtVec(0) != after.AtVec(0) {
		t.Errorf("loading a missing checkpoint should leave parameters "+
			"untouched: %v != %v", before.AtVec(0), after.AtVec(0))
	}
}
