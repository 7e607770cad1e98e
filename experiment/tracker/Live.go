package tracker

import (
	"fmt"
	"sort"

	"github.com/gosuri/uilive"
)

// Live prints the metrics of the most recently finished episode to the
// terminal, updating in place so that long experiments do not flood
// the scrollback. Live records nothing to disk.
type Live struct {
	writer *uilive.Writer
}

// NewLive creates and returns a new *Live Tracker and starts its
// terminal writer
func NewLive() *Live {
	writer := uilive.New()
	writer.Start()

	return &Live{writer: writer}
}

// Track prints the metrics of a finished episode, replacing the
// previously printed episode
func (l *Live) Track(episode int, metrics map[string]float64) {
	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintf(l.writer, "episode %v\n", episode)
	for _, key := range keys {
		fmt.Fprintf(l.writer.Newline(), "    %v: %v\n", key, metrics[key])
	}
	l.writer.Flush()
}

// Save stops the terminal writer. Live records nothing to disk.
func (l *Live) Save() error {
	l.writer.Stop()
	return nil
}
