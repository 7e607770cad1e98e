// Package cmd implements the command line interface for training and
// evaluating agents
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "goddpg",
	Short: "Train and evaluate DDPG agents on continuous control tasks",
	Long: `goddpg implements the Deep Deterministic Policy Gradient
algorithm for continuous control. Agents can be trained on the bundled
pendulum swing-up environment, checkpointed periodically during
training, and evaluated greedily from saved checkpoints.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
