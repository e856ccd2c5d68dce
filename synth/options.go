package synth

type config struct {
	resolvingPower float64
}

// Option configures network construction.
type Option func(*config)

func defaultConfig() config {
	return config{resolvingPower: DefaultResolvingPower}
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

// WithResolvingPower sets the resolving power of the native wavelength grid.
// Non-positive values are ignored.
func WithResolvingPower(r float64) Option {
	return func(c *config) {
		if r > 0 {
			c.resolvingPower = r
		}
	}
}
