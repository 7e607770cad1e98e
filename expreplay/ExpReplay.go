// Package expreplay implements experience replay buffers
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/goddpg/timestep"
	"golang.org/x/exp/rand"
)

// ExperienceReplayer implements an experience replay buffer of
// environmental transitions
type ExperienceReplayer interface {
	// Add adds a transition to the buffer, overwriting the oldest
	// stored transition once the buffer is at capacity
	Add(t timestep.Transition) error

	// Sample draws a batch of transitions uniformly at random with
	// replacement and returns the batch as five parallel stacked
	// slices: states, actions, rewards, next states, and done flags
	Sample() ([]float64, []float64, []float64, []float64, []float64, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// cache implements a concrete ExperienceReplayer. Transitions are
// stored field-wise in flat parallel caches. Insertion is a FIFO
// overwrite ring: the insertion index wraps around once maxCapacity
// transitions have been added, so the cache always holds exactly the
// most recent maxCapacity insertions.
type cache struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	nextStateCache []float64
	doneCache      []float64

	// insertions counts every Add() over the lifetime of the cache.
	// The next insertion lands at index insertions % maxCapacity.
	insertions int

	batchSize   int
	maxCapacity int
	featureSize int
	actionSize  int

	rng *rand.Rand
}

// New creates and returns a new ExperienceReplayer with room for
// maxCapacity transitions, sampling batches of batchSize. The
// featureSize and actionSize parameters define the size of the state
// and action vectors.
func New(maxCapacity, batchSize, featureSize, actionSize int,
	seed uint64) (ExperienceReplayer, error) {
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("new: batchSize must be >= 1")
	}
	if maxCapacity < batchSize {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}

	return &cache{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]float64, maxCapacity*actionSize),
		rewardCache:    make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),
		doneCache:      make([]float64, maxCapacity),

		insertions:  0,
		batchSize:   batchSize,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,

		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// BatchSize returns the number of samples returned by Sample() -
// a.k.a the batch size
func (c *cache) BatchSize() int {
	return c.batchSize
}

// Capacity returns the current number of elements in the cache that
// are available for sampling
func (c *cache) Capacity() int {
	if c.insertions < c.maxCapacity {
		return c.insertions
	}
	return c.maxCapacity
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// Add adds a transition to the cache, overwriting the oldest stored
// transition once the cache is full
func (c *cache) Add(t timestep.Transition) error {
	if t.State.Len() != c.featureSize || t.NextState.Len() != c.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)\n\thave(%v)",
			c.featureSize, t.State.Len())
	}
	if t.Action.Len() != c.actionSize {
		return fmt.Errorf("add: invalid action size \n\twant(%v)\n\thave(%v)",
			c.actionSize, t.Action.Len())
	}

	index := c.insertions % c.maxCapacity
	c.insertions++

	stateInd := index * c.featureSize
	copy(c.stateCache[stateInd:stateInd+c.featureSize],
		t.State.RawVector().Data)
	copy(c.nextStateCache[stateInd:stateInd+c.featureSize],
		t.NextState.RawVector().Data)

	actionInd := index * c.actionSize
	copy(c.actionCache[actionInd:actionInd+c.actionSize],
		t.Action.RawVector().Data)

	c.rewardCache[index] = t.Reward
	c.doneCache[index] = 1.0 - t.Mask()

	return nil
}

// Sample samples and returns a batch of transitions from the replay
// buffer. Each of the batchSize draws is independent and uniform over
// the stored transitions, so a single batch may contain repeats.
func (c *cache) Sample() ([]float64, []float64, []float64, []float64,
	[]float64, error) {
	if c.Capacity() == 0 {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errEmptyCache,
		}
		return nil, nil, nil, nil, nil, err
	}
	if c.Capacity() < c.batchSize {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
		return nil, nil, nil, nil, nil, err
	}

	indices := make([]int, c.batchSize)
	for i := range indices {
		indices[i] = c.rng.Intn(c.Capacity())
	}

	stateBatch := make([]float64, c.batchSize*c.featureSize)
	nextStateBatch := make([]float64, c.batchSize*c.featureSize)
	for i, index := range indices {
		batchStartInd := i * c.featureSize
		expStartInd := index * c.featureSize
		copy(stateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.stateCache[expStartInd:expStartInd+c.featureSize],
		)
		copy(nextStateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.nextStateCache[expStartInd:expStartInd+c.featureSize],
		)
	}

	actionBatch := make([]float64, c.batchSize*c.actionSize)
	for i, index := range indices {
		batchStartInd := i * c.actionSize
		expStartInd := index * c.actionSize
		copy(actionBatch[batchStartInd:batchStartInd+c.actionSize],
			c.actionCache[expStartInd:expStartInd+c.actionSize],
		)
	}

	rewardBatch := make([]float64, c.batchSize)
	doneBatch := make([]float64, c.batchSize)
	for i, index := range indices {
		rewardBatch[i] = c.rewardCache[index]
		doneBatch[i] = c.doneCache[index]
	}

	return stateBatch, actionBatch, rewardBatch, nextStateBatch, doneBatch,
		nil
}

// String returns the string representation of the cache
func (c *cache) String() string {
	baseStr := "Capacity: %v/%v \nStates: %v \nActions: %v \nRewards: %v" +
		" \nNext States: %v \nDones: %v"
	return fmt.Sprintf(baseStr, c.Capacity(), c.maxCapacity, c.stateCache,
		c.actionCache, c.rewardCache, c.nextStateCache, c.doneCache)
}
