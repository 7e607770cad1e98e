package initwfn

import G "gorgonia.org/gorgonia"

// GlorotUConfig describes Glorot Uniform weight initialization with a
// given gain.
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a Glorot Uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Type returns the type of the initialization algorithm
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// Create returns the Gorgonia initializer that the configuration
// describes
func (g GlorotUConfig) Create() G.InitWFn {
	return G.GlorotU(g.Gain)
}

// GlorotNConfig describes Glorot Normal weight initialization with a
// given gain.
type GlorotNConfig struct {
	Gain float64
}

// NewGlorotN returns a Glorot Normal weight initializer
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain})
}

// Type returns the type of the initialization algorithm
func (g GlorotNConfig) Type() Type {
	return GlorotN
}

// Create returns the Gorgonia initializer that the configuration
// describes
func (g GlorotNConfig) Create() G.InitWFn {
	return G.GlorotN(g.Gain)
}
