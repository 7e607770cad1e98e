package initwfn

import G "gorgonia.org/gorgonia"

// GaussianConfig describes Gaussian weight initialization.
type GaussianConfig struct {
	Mean   float64
	StdDev float64
}

// NewGaussian returns a Gaussian weight initializer
func NewGaussian(mean, stdDev float64) (*InitWFn, error) {
	return newInitWFn(GaussianConfig{Mean: mean, StdDev: stdDev})
}

// Type returns the type of the initialization algorithm
func (g GaussianConfig) Type() Type {
	return Gaussian
}

// Create returns the Gorgonia initializer that the configuration
// describes
func (g GaussianConfig) Create() G.InitWFn {
	return G.Gaussian(g.Mean, g.StdDev)
}

// UniformConfig describes uniform weight initialization on the
// interval [Low, High).
type UniformConfig struct {
	Low  float64
	High float64
}

// NewUniform returns a uniform weight initializer
func NewUniform(low, high float64) (*InitWFn, error) {
	return newInitWFn(UniformConfig{Low: low, High: high})
}

// Type returns the type of the initialization algorithm
func (u UniformConfig) Type() Type {
	return Uniform
}

// Create returns the Gorgonia initializer that the configuration
// describes
func (u UniformConfig) Create() G.InitWFn {
	return G.Uniform(u.Low, u.High)
}

// ZeroesConfig describes zero weight initialization.
type ZeroesConfig struct{}

// NewZeroes returns a zero weight initializer
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

// Type returns the type of the initialization algorithm
func (z ZeroesConfig) Type() Type {
	return Zeroes
}

// Create returns the Gorgonia initializer that the configuration
// describes
func (z ZeroesConfig) Create() G.InitWFn {
	return G.Zeroes()
}
