package expreplay

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/goddpg/timestep"
)

// newTransition returns a transition whose fields are all derived from
// reward, so that sampled batches can be checked for internal
// consistency
func newTransition(reward float64, done bool) timestep.Transition {
	state := mat.NewVecDense(2, []float64{reward, reward + 1})
	action := mat.NewVecDense(1, []float64{reward / 10})
	next := mat.NewVecDense(2, []float64{reward + 2, reward + 3})

	return timestep.New(state, action, reward, next, done)
}

func TestSampleEmptyBuffer(t *testing.T) {
	buffer, err := New(10, 2, 2, 1, 1)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	_, _, _, _, _, err = buffer.Sample()
	if err == nil {
		t.Fatal("sampling an empty buffer should fail")
	}
	if !IsEmptyBuffer(err) {
		t.Errorf("expected an empty buffer error, got: %v", err)
	}
}

func TestSampleInsufficientSamples(t *testing.T) {
	buffer, err := New(10, 4, 2, 1, 1)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := buffer.Add(newTransition(float64(i), false)); err != nil {
			t.Fatalf("could not add transition: %v", err)
		}
	}

	_, _, _, _, _, err = buffer.Sample()
	if err == nil {
		t.Fatal("sampling fewer stored samples than the batch size should " +
			"fail")
	}
	if !IsInsufficientSamples(err) {
		t.Errorf("expected an insufficient samples error, got: %v", err)
	}
}

func TestCapacity(t *testing.T) {
	buffer, err := New(3, 1, 2, 1, 1)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	for i := 0; i < 5; i++ {
		wantCapacity := i
		if wantCapacity > 3 {
			wantCapacity = 3
		}
		if buffer.Capacity() != wantCapacity {
			t.Errorf("after %v insertions expected capacity %v, got %v",
				i, wantCapacity, buffer.Capacity())
		}
		if err := buffer.Add(newTransition(float64(i), false)); err != nil {
			t.Fatalf("could not add transition: %v", err)
		}
	}

	if buffer.MaxCapacity() != 3 {
		t.Errorf("expected max capacity 3, got %v", buffer.MaxCapacity())
	}
}

// TestFIFOOverwrite checks that once the buffer is full, new
// insertions evict the oldest stored transitions, so that the buffer
// always holds the most recent insertions.
func TestFIFOOverwrite(t *testing.T) {
	buffer, err := New(3, 3, 2, 1, 1)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	for _, reward := range []float64{1, 2, 3, 4, 5} {
		if err := buffer.Add(newTransition(reward, false)); err != nil {
			t.Fatalf("could not add transition: %v", err)
		}
	}

	// Rewards 1 and 2 should have been evicted
	seen := make(map[float64]bool)
	for draw := 0; draw < 20; draw++ {
		states, actions, rewards, nextStates, _, err := buffer.Sample()
		if err != nil {
			t.Fatalf("could not sample buffer: %v", err)
		}

		for i, reward := range rewards {
			if reward < 3 || reward > 5 {
				t.Fatalf("sampled an evicted transition with reward %v",
					reward)
			}
			seen[reward] = true

			// Each sampled row should hold the fields stored together
			// with the reward
			if states[2*i] != reward || states[2*i+1] != reward+1 {
				t.Errorf("state %v does not match reward %v",
					states[2*i:2*i+2], reward)
			}
			if nextStates[2*i] != reward+2 {
				t.Errorf("next state %v does not match reward %v",
					nextStates[2*i], reward)
			}
			if actions[i] != reward/10 {
				t.Errorf("action %v does not match reward %v", actions[i],
					reward)
			}
		}
	}

	for _, reward := range []float64{3, 4, 5} {
		if !seen[reward] {
			t.Errorf("reward %v was never sampled", reward)
		}
	}
}

func TestDoneFlags(t *testing.T) {
	buffer, err := New(1, 1, 2, 1, 1)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	if err := buffer.Add(newTransition(1, true)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}
	_, _, _, _, dones, err := buffer.Sample()
	if err != nil {
		t.Fatalf("could not sample buffer: %v", err)
	}
	if dones[0] != 1.0 {
		t.Errorf("terminal transition should be stored with done 1.0, "+
			"got %v", dones[0])
	}

	if err := buffer.Add(newTransition(2, false)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}
	_, _, _, _, dones, err = buffer.Sample()
	if err != nil {
		t.Fatalf("could not sample buffer: %v", err)
	}
	if dones[0] != 0.0 {
		t.Errorf("non-terminal transition should be stored with done 0.0, "+
			"got %v", dones[0])
	}
}

func TestAddInvalidDims(t *testing.T) {
	buffer, err := New(10, 2, 3, 1, 1)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	// Transitions from newTransition have 2-dimensional states, but
	// the buffer expects 3
	if err := buffer.Add(newTransition(1, false)); err == nil {
		t.Error("adding a transition with the wrong state size should fail")
	}
}
