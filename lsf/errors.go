package lsf

import "errors"

// ErrResolution is the category of every failure to build a degrading grid.
// The specific errors below wrap it, so errors.Is(err, ErrResolution)
// matches all of them.
var ErrResolution = errors.New("lsf: resolution error")

var (
	// ErrInsufficientResolution is returned when the synthetic spectrum is
	// not sharper than the instrumental profile.
	ErrInsufficientResolution = wrap("synthetic resolution is not higher than instrumental resolution")
	// ErrNonLinearSampling is returned when the synthetic wavelength step is
	// not constant.
	ErrNonLinearSampling = wrap("synthetic spectrum is not linearly sampled")
	// ErrGridStep is returned when the grid recurrence produces an unusable
	// step or too many samples.
	ErrGridStep = wrap("degrading grid step is not usable")
)

var (
	// ErrProfile is returned for an empty or inconsistent LSF profile.
	ErrProfile = errors.New("lsf: invalid profile")
	// ErrKernel is returned for a non-positive kernel width or shape.
	ErrKernel = errors.New("lsf: invalid kernel parameters")
	// ErrLengthMismatch is returned when wavelength and flux lengths differ.
	ErrLengthMismatch = errors.New("lsf: length mismatch")
)

type resolutionError struct {
	msg string
}

func wrap(msg string) error {
	return &resolutionError{msg: msg}
}

func (e *resolutionError) Error() string {
	return "lsf: " + e.msg
}

func (e *resolutionError) Unwrap() error {
	return ErrResolution
}
