package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/goddpg/agent/ddpg"
	"github.com/samuelfneumann/goddpg/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/goddpg/experiment"
	"github.com/samuelfneumann/goddpg/experiment/checkpointer"
	"github.com/samuelfneumann/goddpg/experiment/tracker"
	"github.com/samuelfneumann/goddpg/initwfn"
	"github.com/samuelfneumann/goddpg/network"
	"github.com/samuelfneumann/goddpg/solver"
)

var (
	trainConfigPath    string
	trainEpisodes      int
	trainMaxSteps      int
	trainSavePeriod    int
	trainMultipleLearn int
	trainSeed          uint64
	trainSaveDir       string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a DDPG agent on the pendulum swing-up environment",
	RunE:  runTrain,
}

func init() {
	flags := trainCmd.Flags()
	flags.StringVarP(&trainConfigPath, "config", "c", "",
		"path to a JSON agent configuration; defaults are used when empty")
	flags.IntVarP(&trainEpisodes, "episodes", "e", 200,
		"number of training episodes")
	flags.IntVar(&trainMaxSteps, "max-episode-steps", 200,
		"step limit per episode")
	flags.IntVar(&trainSavePeriod, "save-period", 20,
		"episodes between checkpoints and interim evaluations; 0 disables")
	flags.IntVar(&trainMultipleLearn, "multiple-learn", 1,
		"learning updates per environmental step")
	flags.Uint64Var(&trainSeed, "seed", 42, "random seed")
	flags.StringVarP(&trainSaveDir, "save-dir", "d", "./checkpoint",
		"directory for checkpoints and tracked data")

	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	config, err := agentConfig()
	if err != nil {
		return fmt.Errorf("train: %v", err)
	}

	env := pendulum.New(trainSeed)
	a, err := config.CreateAgent(env, trainSeed)
	if err != nil {
		return fmt.Errorf("train: could not create agent: %v", err)
	}
	defer a.Close()

	if err := os.MkdirAll(trainSaveDir, 0o755); err != nil {
		return fmt.Errorf("train: could not create save directory: %v", err)
	}

	var checkpointers []checkpointer.Checkpointer
	if trainSavePeriod > 0 {
		names := checkpointer.FilenameEnumerator(0,
			filepath.Join(trainSaveDir, "ddpg"), ".bin")
		checkpointers = append(checkpointers,
			checkpointer.NewNEpisode(trainSavePeriod, a, names))
	}

	trackers := []tracker.Tracker{
		tracker.NewReturn(filepath.Join(trainSaveDir, "returns.bin")),
		tracker.NewLive(),
	}

	trainer, err := experiment.NewTrainer(env, a, experiment.Config{
		EpisodeNum:      trainEpisodes,
		MaxEpisodeSteps: trainMaxSteps,
		SavePeriod:      trainSavePeriod,
		MultipleLearn:   trainMultipleLearn,
	}, trackers, checkpointers)
	if err != nil {
		return fmt.Errorf("train: %v", err)
	}

	if err := trainer.Run(); err != nil {
		return fmt.Errorf("train: %v", err)
	}

	final := filepath.Join(trainSaveDir, "ddpg_final.bin")
	if err := a.Save(final); err != nil {
		return fmt.Errorf("train: could not save final agent state: %v", err)
	}
	fmt.Printf("saved final agent state to %v\n", final)

	return env.Close()
}

// agentConfig returns the agent configuration to train with, either
// read from the configuration file flag or the default configuration
func agentConfig() (ddpg.Config, error) {
	if trainConfigPath == "" {
		return defaultAgentConfig()
	}

	data, err := os.ReadFile(trainConfigPath)
	if err != nil {
		return ddpg.Config{}, fmt.Errorf("could not read configuration "+
			"file: %v", err)
	}

	var config ddpg.Config
	if err := json.Unmarshal(data, &config); err != nil {
		return ddpg.Config{}, fmt.Errorf("could not parse configuration "+
			"file: %v", err)
	}

	return config, nil
}

// defaultAgentConfig returns the default DDPG configuration for the
// pendulum swing-up environment
func defaultAgentConfig() (ddpg.Config, error) {
	const batchSize = 128

	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		return ddpg.Config{}, err
	}

	actorSolver, err := solver.NewAdam(1e-4, 1e-8, 0.9, 0.999, batchSize,
		-1.0)
	if err != nil {
		return ddpg.Config{}, err
	}

	criticSolver, err := solver.NewAdam(1e-3, 1e-8, 0.9, 0.999, batchSize,
		1e-6)
	if err != nil {
		return ddpg.Config{}, err
	}

	return ddpg.Config{
		ActorLayers:      []int{256, 256},
		ActorBiases:      []bool{true, true},
		ActorActivations: []*network.Activation{network.ReLU(),
			network.ReLU()},

		CriticLayers:      []int{256, 256},
		CriticBiases:      []bool{true, true},
		CriticActivations: []*network.Activation{network.ReLU(),
			network.ReLU()},

		InitWFn: init,

		ActorSolver:  actorSolver,
		CriticSolver: criticSolver,

		ActorGradClip:  0.5,
		CriticGradClip: 1.0,

		BufferSize: 100000,
		BatchSize:  batchSize,

		Gamma: 0.99,
		Tau:   1e-3,

		InitialRandomAction: 10000,

		NoiseTheta: 0.15,
		NoiseSigma: 0.2,
	}, nil
}
