package fit

// State is the phase of a fit.
type State int

const (
	Initial State = iota
	Iterating
	Converged
	MaxIterations
	Failed
)

var stateNames = [...]string{"initial", "iterating", "converged", "max_iterations", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the fit has stopped.
func (s State) Terminal() bool {
	return s == Converged || s == MaxIterations || s == Failed
}
