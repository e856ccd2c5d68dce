package synth

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"
)

// DefaultResolvingPower is the resolving power assumed for the network's
// native wavelength grid unless configured otherwise.
const DefaultResolvingPower = 300000.0

// leakySlope is the negative-side slope of the hidden-layer activation.
const leakySlope = 0.01

var (
	// ErrShape is returned when network arrays have inconsistent dimensions.
	ErrShape = errors.New("synth: inconsistent network shape")
	// ErrBounds is returned when a label normalisation range is empty.
	ErrBounds = errors.New("synth: invalid label bounds")
)

// Network holds the coefficients of the three-layer spectrum emulator and
// its native wavelength grid.
type Network struct {
	w0, w1, w2 *mat.Dense
	b0, b1, b2 []float64
	xMin, xMax []float64

	wavelength     []float64
	resolvingPower float64
}

// Coefficients are the raw arrays of a trained network.
// W0 is hidden1 x NumLabels, W1 is hidden2 x hidden1 and W2 is
// pixels x hidden2.
type Coefficients struct {
	W0, W1, W2 *mat.Dense
	B0, B1, B2 []float64
	XMin, XMax []float64
}

// NewNetwork validates shapes and returns a network over wavelength.
func NewNetwork(c Coefficients, wavelength []float64, opts ...Option) (*Network, error) {
	cfg := applyOptions(opts)

	if c.W0 == nil || c.W1 == nil || c.W2 == nil {
		return nil, fmt.Errorf("%w: missing weight matrix", ErrShape)
	}
	if len(c.XMin) != NumLabels || len(c.XMax) != NumLabels {
		return nil, fmt.Errorf("%w: label bounds have %d/%d entries, want %d",
			ErrShape, len(c.XMin), len(c.XMax), NumLabels)
	}
	for i := range c.XMin {
		if !(c.XMax[i] > c.XMin[i]) {
			return nil, fmt.Errorf("%w: %s range [%v, %v]", ErrBounds, LabelNames[i], c.XMin[i], c.XMax[i])
		}
	}

	h1, in := c.W0.Dims()
	if in != NumLabels || len(c.B0) != h1 {
		return nil, fmt.Errorf("%w: layer 0 is %dx%d with %d biases", ErrShape, h1, in, len(c.B0))
	}
	h2, in1 := c.W1.Dims()
	if in1 != h1 || len(c.B1) != h2 {
		return nil, fmt.Errorf("%w: layer 1 is %dx%d with %d biases", ErrShape, h2, in1, len(c.B1))
	}
	pixels, in2 := c.W2.Dims()
	if in2 != h2 || len(c.B2) != pixels {
		return nil, fmt.Errorf("%w: layer 2 is %dx%d with %d biases", ErrShape, pixels, in2, len(c.B2))
	}
	if len(wavelength) != pixels {
		return nil, fmt.Errorf("%w: %d wavelengths for %d output pixels", ErrShape, len(wavelength), pixels)
	}

	return &Network{
		w0: mat.DenseCopyOf(c.W0), w1: mat.DenseCopyOf(c.W1), w2: mat.DenseCopyOf(c.W2),
		b0: clone(c.B0), b1: clone(c.B1), b2: clone(c.B2),
		xMin: clone(c.XMin), xMax: clone(c.XMax),
		wavelength:     clone(wavelength),
		resolvingPower: cfg.resolvingPower,
	}, nil
}

// Wavelength returns the native wavelength grid. The slice must not be
// modified.
func (n *Network) Wavelength() []float64 {
	return n.wavelength
}

// ResolvingPower returns the resolving power of the native grid.
func (n *Network) ResolvingPower() float64 {
	return n.resolvingPower
}

// Pixels returns the length of the output flux array.
func (n *Network) Pixels() int {
	return len(n.wavelength)
}

// Window returns the half-open index range [lo, hi) of native wavelengths
// strictly inside (minWave, maxWave).
func (n *Network) Window(minWave, maxWave float64) (int, int) {
	lo := 0
	for lo < len(n.wavelength) && !(n.wavelength[lo] > minWave) {
		lo++
	}
	hi := lo
	for hi < len(n.wavelength) && n.wavelength[hi] < maxWave {
		hi++
	}
	return lo, hi
}

// LeakyReLU is the hidden-layer activation: z for z > 0, 0.01*z otherwise.
func LeakyReLU(z float64) float64 {
	if z > 0 {
		return z
	}
	return leakySlope * z
}

// ScaleLabels maps labels to the [-0.5, 0.5] network input range.
func (n *Network) ScaleLabels(l Labels) ([NumLabels]float64, error) {
	var out [NumLabels]float64
	if err := l.Validate(); err != nil {
		return out, err
	}
	for i, v := range l.Vector() {
		out[i] = (v-n.xMin[i])/(n.xMax[i]-n.xMin[i]) - 0.5
	}
	return out, nil
}

// Spectrum returns the synthetic flux for labels on the native grid.
func (n *Network) Spectrum(l Labels) ([]float64, error) {
	out := make([]float64, n.Pixels())
	if err := n.SpectrumTo(out, l); err != nil {
		return nil, err
	}
	return out, nil
}

// SpectrumTo writes the synthetic flux for labels into dst, which must have
// Pixels() elements.
func (n *Network) SpectrumTo(dst []float64, l Labels) error {
	if len(dst) != n.Pixels() {
		return fmt.Errorf("%w: destination has %d pixels, want %d", ErrShape, len(dst), n.Pixels())
	}
	scaled, err := n.ScaleLabels(l)
	if err != nil {
		return err
	}

	h1, _ := n.w0.Dims()
	h2, _ := n.w1.Dims()
	inside := make([]float64, h1)
	outside := make([]float64, h2)

	affine(inside, n.w0, n.b0, scaled[:])
	activate(inside)
	affine(outside, n.w1, n.b1, inside)
	activate(outside)
	affine(dst, n.w2, n.b2, outside)
	return nil
}

// affine computes dst = w*x + b row by row.
func affine(dst []float64, w *mat.Dense, b, x []float64) {
	for i := range dst {
		dst[i] = vecmath.DotProduct(w.RawRowView(i), x) + b[i]
	}
}

func activate(x []float64) {
	for i, v := range x {
		x[i] = LeakyReLU(v)
	}
}

func clone(x []float64) []float64 {
	return append([]float64(nil), x...)
}
