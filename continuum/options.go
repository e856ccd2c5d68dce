package continuum

const (
	defaultIterations = 3
	defaultMinPoints  = 1
)

type config struct {
	fit         FitFunc
	iterations  int
	rejection   Rejection
	grow        int
	minPoints   int
	initialMask []bool
}

// Option configures Normalize.
type Option func(*config)

func defaultConfig() config {
	return config{
		fit:        Chebyshev(DefaultDegree),
		iterations: defaultIterations,
		rejection:  SigmaClip{Lower: 5, Upper: 5},
		minPoints:  defaultMinPoints,
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

// WithFit replaces the fitting function.
func WithFit(fit FitFunc) Option {
	return func(c *config) {
		if fit != nil {
			c.fit = fit
		}
	}
}

// WithIterations sets the maximum number of clipping iterations.
func WithIterations(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.iterations = n
		}
	}
}

// WithRejection sets the rejection rule. Build it with NewRejection.
func WithRejection(r Rejection) Option {
	return func(c *config) {
		if r != nil {
			c.rejection = r
		}
	}
}

// WithGrow extends every rejection to radius neighbouring points on each side.
func WithGrow(radius int) Option {
	return func(c *config) {
		if radius >= 0 {
			c.grow = radius
		}
	}
}

// WithMinPoints sets the smallest number of surviving points for which a
// new mask is accepted.
func WithMinPoints(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.minPoints = n
		}
	}
}

// WithInitialMask restricts every fit to the points where mask is true.
// The returned curve is still evaluated everywhere.
func WithInitialMask(mask []bool) Option {
	return func(c *config) {
		c.initialMask = mask
	}
}
