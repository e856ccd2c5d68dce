package fit

const (
	defaultMaxIterations = 100
	defaultXTol          = 1e-8
	defaultFTol          = 1e-10
	defaultEventInterval = 10
)

type config struct {
	maxIterations int
	xtol          float64
	ftol          float64
	observer      func(Event)
	eventInterval int
}

// Option configures Fit.
type Option func(*config)

func defaultConfig() config {
	return config{
		maxIterations: defaultMaxIterations,
		xtol:          defaultXTol,
		ftol:          defaultFTol,
		eventInterval: defaultEventInterval,
	}
}

// WithMaxIterations bounds the number of Jacobian evaluations.
func WithMaxIterations(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithXTol sets the relative step size below which the fit has converged.
func WithXTol(tol float64) Option {
	return func(c *config) {
		if tol > 0 {
			c.xtol = tol
		}
	}
}

// WithFTol sets the relative chi^2 reduction below which the fit has
// converged.
func WithFTol(tol float64) Option {
	return func(c *config) {
		if tol > 0 {
			c.ftol = tol
		}
	}
}

// WithObserver registers a callback for progress events.
func WithObserver(f func(Event)) Option {
	return func(c *config) { c.observer = f }
}

// WithEventInterval emits an event every n iterations.
func WithEventInterval(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.eventInterval = n
		}
	}
}
