// Package pendulum implements the pendulum swing-up classic control
// environment
package pendulum

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/utils/floatutils"
)

// default physical constants
const (
	AngleBound  float64 = math.Pi // +/- Angle bounds
	SpeedBound  float64 = 8.0     // +/- Speed bounds
	TorqueBound float64 = 2.0     // +/- Torque bounds

	// Starting angular velocities are drawn from a narrower interval
	// than the speed bounds so episodes do not begin mid-spin
	StartSpeedBound float64 = 1.0

	MaxAction float64 = 1.0
	MinAction float64 = -MaxAction

	dt              float64 = 0.05
	Gravity         float64 = 9.8
	Mass            float64 = 1.0
	Length          float64 = 1.0
	ActionDims      int     = 1
	ObservationDims int     = 2
)

// Pendulum implements the pendulum swing-up environment. A pendulum is
// attached to a fixed base, and an agent can swing the pendulum back
// and forth, but the swinging torque is underpowered. In order to
// swing the pendulum straight up, it must first be rocked back and
// forth, using the momentum to gradually climb higher until the
// pendulum can point straight up.
//
// State observations consist of the angle of the pendulum from the
// positive y-axis and the angular velocity of the pendulum. The
// angular velocity is clipped to [-SpeedBound, SpeedBound], and angles
// are normalized to stay within [-AngleBound, AngleBound] = [-π, π].
//
// Actions are continuous and 1-dimensional, bounded by
// [MinAction, MaxAction] = [-1, 1], and are scaled linearly to the
// torque applied at the pendulum's fixed base. Actions outside the
// legal range are clipped to stay within it.
//
// The reward on each step is the cosine of the pendulum's angle, so
// that the agent earns close to 1 per step while balancing the pendulum
// upright. The environment never signals termination itself; episodes
// end only when the caller cuts them off.
//
// Pendulum implements the environment.Environment interface
type Pendulum struct {
	environment.Starter
	dt           float64
	gravity      float64
	mass         float64
	length       float64
	angleBounds  r1.Interval
	speedBounds  r1.Interval
	torqueBounds r1.Interval
	state        *mat.VecDense
}

// New creates and returns a new pendulum swing-up environment whose
// starting states are drawn uniformly from the angle bounds and from
// [-StartSpeedBound, StartSpeedBound]
func New(seed uint64) *Pendulum {
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: -AngleBound, Max: AngleBound},
		{Min: -StartSpeedBound, Max: StartSpeedBound},
	}, seed)

	return NewWithStarter(starter)
}

// NewWithStarter creates and returns a new pendulum swing-up
// environment whose starting states are drawn from s
func NewWithStarter(s environment.Starter) *Pendulum {
	pendulum := &Pendulum{
		Starter:      s,
		dt:           dt,
		gravity:      Gravity,
		mass:         Mass,
		length:       Length,
		angleBounds:  r1.Interval{Min: -AngleBound, Max: AngleBound},
		speedBounds:  r1.Interval{Min: -SpeedBound, Max: SpeedBound},
		torqueBounds: r1.Interval{Min: -TorqueBound, Max: TorqueBound},
	}
	pendulum.Reset()

	return pendulum
}

// Reset resets the environment and returns a starting state drawn from
// the Starter
func (p *Pendulum) Reset() *mat.VecDense {
	state := p.Start()
	validateState(state, p.angleBounds, p.speedBounds)
	p.state = state

	return mat.VecDenseCopyOf(state)
}

// Step takes one environmental step given an action, which is clipped
// to the legal action range and scaled to the pendulum's torque
// bounds. The returned done flag is always false since the pendulum
// never terminates episodes on its own.
func (p *Pendulum) Step(action *mat.VecDense) (*mat.VecDense, float64,
	bool, environment.Info) {
	// Clip the action and scale it to the torque bounds
	force := floatutils.Clip(action.AtVec(0), MinAction, MaxAction)
	torque := force * (p.torqueBounds.Max / MaxAction)

	newState := p.nextState(torque)
	p.state = newState

	reward := math.Cos(newState.AtVec(0))

	return mat.VecDenseCopyOf(newState), reward, false, nil
}

// nextState computes the next state of the environment given an amount
// of torque to apply to the fixed base of the pendulum
func (p *Pendulum) nextState(torque float64) *mat.VecDense {
	th, thdot := p.state.AtVec(0), p.state.AtVec(1)

	newthdot := thdot + (-3*p.gravity/(2*p.length)*math.Sin(th+math.Pi)+
		3.0/(p.mass*math.Pow(p.length, 2))*torque)*p.dt

	newth := th + (newthdot * p.dt)

	// Clip the angular velocity
	newthdot = floatutils.ClipInterval(newthdot, p.speedBounds)

	// Normalize the angle
	newth = normalizeAngle(newth, p.angleBounds)

	return mat.NewVecDense(2, []float64{newth, newthdot})
}

// ObservationSpec returns the observation specification of the
// environment
func (p *Pendulum) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	minObs := []float64{p.angleBounds.Min, p.speedBounds.Min}
	lowerBound := mat.NewVecDense(ObservationDims, minObs)

	maxObs := []float64{p.angleBounds.Max, p.speedBounds.Max}
	upperBound := mat.NewVecDense(ObservationDims, maxObs)

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Continuous)
}

// ActionSpec returns the action specification of the environment
func (p *Pendulum) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{MinAction})
	upperBound := mat.NewVecDense(ActionDims, []float64{MaxAction})

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Continuous)
}

// Close implements the environment.Environment interface. The pendulum
// holds no external resources.
func (p *Pendulum) Close() error {
	return nil
}

// normalizeAngle normalizes the pendulum angle to the appropriate
// limits
func normalizeAngle(th float64, angleBounds r1.Interval) float64 {
	if angleBounds.Max != -angleBounds.Min {
		panic("angle bounds should be centered around 0")
	}

	if th > angleBounds.Max {
		divisor := int(th / angleBounds.Max)
		return -math.Pi + th - (angleBounds.Max * float64(divisor))
	} else if th < angleBounds.Min {
		divisor := int(th / angleBounds.Min)
		return math.Pi + th - (angleBounds.Min * float64(divisor))
	} else {
		return th
	}
}

// validateState validates the state to ensure that the angle and
// angular velocity are within the environmental limits
func validateState(obs *mat.VecDense, angleBounds, speedBounds r1.Interval) {
	thWithinBounds := obs.AtVec(0) <= angleBounds.Max &&
		obs.AtVec(0) >= angleBounds.Min
	if !thWithinBounds {
		panic("theta is not within bounds")
	}

	thdotWithinBounds := obs.AtVec(1) <= speedBounds.Max &&
		obs.AtVec(1) >= speedBounds.Min
	if !thdotWithinBounds {
		panic("theta dot is not within bounds")
	}
}
