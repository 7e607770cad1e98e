// Package experiment implements functionality for running an
// experiment
package experiment

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/goddpg/agent"
	env "github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/experiment/checkpointer"
	"github.com/samuelfneumann/goddpg/experiment/tracker"
	"github.com/samuelfneumann/goddpg/timestep"
	"github.com/samuelfneumann/goddpg/utils/floatutils"
)

// Config represents a configuration of an experiment
type Config struct {
	// EpisodeNum is the total number of training episodes to run
	EpisodeNum int

	// MaxEpisodeSteps cuts episodes off after this many steps.
	// Episodes ended only by the cutoff are not treated as
	// environmental terminations when stored for learning.
	MaxEpisodeSteps int

	// SavePeriod is the number of episodes between checkpoints and
	// interim evaluation episodes; <= 0 disables both
	SavePeriod int

	// MultipleLearn is the number of learning updates performed per
	// environmental step once the agent is ready to learn
	MultipleLearn int
}

// Validate returns an error describing why the Config is invalid, or
// nil if the Config is valid
func (c Config) Validate() error {
	if c.EpisodeNum <= 0 {
		return fmt.Errorf("number of episodes must be positive, got %v",
			c.EpisodeNum)
	}
	if c.MaxEpisodeSteps <= 0 {
		return fmt.Errorf("episode step limit must be positive, got %v",
			c.MaxEpisodeSteps)
	}
	if c.MultipleLearn <= 0 {
		return fmt.Errorf("learning updates per step must be positive, "+
			"got %v", c.MultipleLearn)
	}
	return nil
}

// Trainer runs the episodic interaction loop between an agent and an
// environment, recording per-episode metrics with Trackers and
// periodically saving agent state with Checkpointers.
type Trainer struct {
	environment   env.Environment
	agent         agent.Agent
	config        Config
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
}

// NewTrainer creates and returns a new Trainer which trains a on e
func NewTrainer(e env.Environment, a agent.Agent, c Config,
	trackers []tracker.Tracker,
	checkpointers []checkpointer.Checkpointer) (*Trainer, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newTrainer: invalid configuration: %v", err)
	}

	return &Trainer{
		environment:   e,
		agent:         a,
		config:        c,
		trackers:      trackers,
		checkpointers: checkpointers,
	}, nil
}

// Register registers a tracker.Tracker with the (possibly already
// running) experiment. Useful if some data should only be tracked
// after a specified event.
func (t *Trainer) Register(tr tracker.Tracker) {
	t.trackers = append(t.trackers, tr)
}

// Run runs the entire experiment for all episodes, follows it with a
// final evaluation episode, then saves all tracked data
func (t *Trainer) Run() error {
	t.agent.Train()

	for iEpisode := 1; iEpisode <= t.config.EpisodeNum; iEpisode++ {
		metrics, err := t.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: episode %v failed: %v", iEpisode, err)
		}

		if t.config.SavePeriod > 0 && iEpisode%t.config.SavePeriod == 0 {
			metrics[tracker.EvalScore] = t.EvalEpisode()
		}

		for _, c := range t.checkpointers {
			if err := c.Checkpoint(iEpisode); err != nil {
				return fmt.Errorf("run: could not checkpoint after "+
					"episode %v: %v", iEpisode, err)
			}
		}

		t.track(iEpisode, metrics)
	}

	// One last greedy evaluation after all training episodes, so every
	// run ends with an evaluation regardless of the save period
	t.track(t.config.EpisodeNum, map[string]float64{
		tracker.EvalScore: t.EvalEpisode(),
	})

	for _, tr := range t.trackers {
		if err := tr.Save(); err != nil {
			return fmt.Errorf("run: could not save tracked data: %v", err)
		}
	}

	return nil
}

// RunEpisode runs a single training episode, returning the metrics of
// the episode
func (t *Trainer) RunEpisode() (map[string]float64, error) {
	state := t.environment.Reset()

	var score float64
	var actorLosses, criticLosses []float64
	episodeStep := 0
	begin := time.Now()
	done := false

	for !done {
		action := t.agent.SelectAction(state)
		nextState, reward, envDone, _ := t.environment.Step(action)
		episodeStep++

		// Episodes cut off at the step limit are not environmental
		// terminations, so bootstrapping from the next state remains
		// valid for them
		terminal := envDone && episodeStep != t.config.MaxEpisodeSteps
		transition := timestep.New(state, action, reward, nextState,
			terminal)
		if err := t.agent.Observe(transition); err != nil {
			return nil, fmt.Errorf("runEpisode: %v", err)
		}

		if t.agent.Ready() {
			for i := 0; i < t.config.MultipleLearn; i++ {
				actorLoss, criticLoss, err := t.agent.Update()
				if err != nil {
					return nil, fmt.Errorf("runEpisode: %v", err)
				}
				actorLosses = append(actorLosses, actorLoss)
				criticLosses = append(criticLosses, criticLoss)
			}
		}

		score += reward
		state = nextState
		done = envDone || episodeStep >= t.config.MaxEpisodeSteps
	}

	metrics := map[string]float64{
		tracker.Score:        score,
		tracker.StepTime:     time.Since(begin).Seconds() / float64(episodeStep),
		tracker.EpisodeSteps: float64(episodeStep),
		tracker.TotalSteps:   float64(t.agent.TotalSteps()),
	}
	if len(actorLosses) > 0 {
		actorLoss := floatutils.Mean(actorLosses)
		criticLoss := floatutils.Mean(criticLosses)
		metrics[tracker.ActorLoss] = actorLoss
		metrics[tracker.CriticLoss] = criticLoss
		metrics[tracker.TotalLoss] = actorLoss + criticLoss
	}

	return metrics, nil
}

// EvalEpisode runs a single greedy episode without learning and
// returns its score. The agent's training or evaluation mode is
// restored afterwards.
func (t *Trainer) EvalEpisode() float64 {
	wasEval := t.agent.IsEval()
	t.agent.Eval()
	defer func() {
		if !wasEval {
			t.agent.Train()
		}
	}()

	state := t.environment.Reset()
	var score float64
	for step := 0; step < t.config.MaxEpisodeSteps; step++ {
		action := t.agent.SelectAction(state)
		nextState, reward, done, _ := t.environment.Step(action)
		score += reward
		state = nextState
		if done {
			break
		}
	}

	return score
}

// Evaluate runs the given number of greedy episodes without learning,
// returning the score of each episode
func (t *Trainer) Evaluate(episodes int) []float64 {
	scores := make([]float64, episodes)
	for i := range scores {
		scores[i] = t.EvalEpisode()
	}
	return scores
}

// track records the metrics of a finished episode with each Tracker
func (t *Trainer) track(episode int, metrics map[string]float64) {
	for _, tr := range t.trackers {
		tr.Track(episode, metrics)
	}
}
