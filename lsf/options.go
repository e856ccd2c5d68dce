package lsf

import "github.com/cwbudde/algo-binspec/synth"

const (
	defaultSafetyMargin     = 0.95
	defaultOversample       = 10.0
	defaultPolynomialDegree = 6
	defaultMaxPoints        = 20_000_000
)

type config struct {
	resolvingPower   float64
	safetyMargin     float64
	oversample       float64
	polynomialDegree int
	maxPoints        int
}

// Option configures grid construction.
type Option func(*config)

func defaultConfig() config {
	return config{
		resolvingPower:   synth.DefaultResolvingPower,
		safetyMargin:     defaultSafetyMargin,
		oversample:       defaultOversample,
		polynomialDegree: defaultPolynomialDegree,
		maxPoints:        defaultMaxPoints,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithResolvingPower sets the resolving power of the synthetic spectrum.
func WithResolvingPower(r float64) Option {
	return func(c *config) {
		if r > 0 {
			c.resolvingPower = r
		}
	}
}

// WithSafetyMargin sets the factor applied to the narrowest instrumental
// width before it is compared with the synthetic width.
func WithSafetyMargin(m float64) Option {
	return func(c *config) {
		if m > 0 && m <= 1 {
			c.safetyMargin = m
		}
	}
}

// WithOversample sets how many grid samples cover one native CCD pixel at
// the narrowest synthetic width.
func WithOversample(f float64) Option {
	return func(c *config) {
		if f > 0 {
			c.oversample = f
		}
	}
}

// WithPolynomialDegree sets the degree of the polynomial describing the
// kernel width along the spectrum.
func WithPolynomialDegree(deg int) Option {
	return func(c *config) {
		if deg >= 0 {
			c.polynomialDegree = deg
		}
	}
}

// WithMaxPoints bounds the number of grid samples.
func WithMaxPoints(n int) Option {
	return func(c *config) {
		if n > 1 {
			c.maxPoints = n
		}
	}
}
