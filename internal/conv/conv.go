package conv

import "errors"

// Errors returned by convolution functions.
var (
	ErrEmptyInput     = errors.New("conv: empty input")
	ErrEmptyKernel    = errors.New("conv: empty kernel")
	ErrLengthMismatch = errors.New("conv: buffer length mismatch")
)

// DirectThreshold is the kernel length up to which Same uses the
// time-domain sum.
const DirectThreshold = 64

// Direct performs direct time-domain linear convolution of a and b.
// Returns a new slice of length len(a) + len(b) - 1.
func Direct(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		row := out[i : i+len(b)]
		for j, bv := range b {
			row[j] += av * bv
		}
	}
	return out, nil
}

// Same convolves signal with kernel and returns the centred part of the full
// result, with len(signal) samples. Short kernels use Direct, longer ones a
// one-shot OverlapAdd.
func Same(signal, kernel []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}

	if len(kernel) <= DirectThreshold {
		full, err := Direct(signal, kernel)
		if err != nil {
			return nil, err
		}
		return trimSame(full, len(signal), len(kernel)), nil
	}

	oa, err := NewOverlapAdd(kernel, 0)
	if err != nil {
		return nil, err
	}
	return oa.ProcessSame(signal)
}

// trimSame extracts the len(signal) samples centred on the kernel origin.
func trimSame(full []float64, lenSignal, lenKernel int) []float64 {
	start := (lenKernel - 1) / 2
	return full[start : start+lenSignal]
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
