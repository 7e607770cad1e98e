// Package tracker implements Trackers, which record per-episode
// metrics in an experiment and save them after the experiment has
// finished
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Metric names recorded by the training loop
const (
	Score        string = "score"
	ActorLoss    string = "actor loss"
	CriticLoss   string = "critic loss"
	TotalLoss    string = "total loss"
	StepTime     string = "time per each step"
	EvalScore    string = "evaluation score"
	EpisodeSteps string = "episode steps"
	TotalSteps   string = "total steps"
)

// Tracker keeps track of per-episode experiment metrics and saves the
// recorded data after the experiment has finished
type Tracker interface {
	// Track records the metrics of a finished episode
	Track(episode int, metrics map[string]float64)

	// Save persists all recorded data
	Save() error
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %v", err)
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %v", err)
	}

	return data, nil
}
