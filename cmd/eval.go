package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/goddpg/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/goddpg/experiment"
	"github.com/samuelfneumann/goddpg/utils/floatutils"
)

var (
	evalConfigPath string
	evalCheckpoint string
	evalEpisodes   int
	evalMaxSteps   int
	evalSeed       uint64
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a saved DDPG agent on the pendulum swing-up environment",
	RunE:  runEval,
}

func init() {
	flags := evalCmd.Flags()
	flags.StringVarP(&evalConfigPath, "config", "c", "",
		"path to the JSON agent configuration the checkpoint was trained "+
			"with; defaults are used when empty")
	flags.StringVarP(&evalCheckpoint, "checkpoint", "p", "",
		"path to the agent state to evaluate")
	flags.IntVarP(&evalEpisodes, "episodes", "e", 10,
		"number of evaluation episodes")
	flags.IntVar(&evalMaxSteps, "max-episode-steps", 200,
		"step limit per episode")
	flags.Uint64Var(&evalSeed, "seed", 42, "random seed")

	evalCmd.MarkFlagRequired("checkpoint")

	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	trainConfigPath = evalConfigPath
	config, err := agentConfig()
	if err != nil {
		return fmt.Errorf("eval: %v", err)
	}

	env := pendulum.New(evalSeed)
	a, err := config.CreateAgent(env, evalSeed)
	if err != nil {
		return fmt.Errorf("eval: could not create agent: %v", err)
	}
	defer a.Close()

	if err := a.Load(evalCheckpoint); err != nil {
		return fmt.Errorf("eval: could not load agent state: %v", err)
	}
	a.Eval()

	trainer, err := experiment.NewTrainer(env, a, experiment.Config{
		EpisodeNum:      evalEpisodes,
		MaxEpisodeSteps: evalMaxSteps,
		MultipleLearn:   1,
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("eval: %v", err)
	}

	scores := trainer.Evaluate(evalEpisodes)
	for i, score := range scores {
		fmt.Printf("episode %v: score %v\n", i+1, score)
	}
	fmt.Printf("mean score over %v episodes: %v\n", evalEpisodes,
		floatutils.Mean(scores))

	return env.Close()
}
