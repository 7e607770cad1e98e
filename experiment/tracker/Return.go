package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Return tracks and saves the episodic return in an experiment. On
// each finished episode, the Return Tracker records the episode's
// score metric, and Save persists the scores of all recorded episodes
// in order.
type Return struct {
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker which saves its
// data to filename
func NewReturn(filename string) *Return {
	return &Return{filename: filename}
}

// Track records the score of a finished episode
func (r *Return) Track(episode int, metrics map[string]float64) {
	score, ok := metrics[Score]
	if !ok {
		return
	}
	r.episodeReturns = append(r.episodeReturns, score)
}

// Save saves the data tracked by the Return Tracker to disk
func (r *Return) Save() error {
	file, err := os.Create(r.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(r.episodeReturns); err != nil {
		return fmt.Errorf("save: could not encode return data: %v", err)
	}

	return nil
}
