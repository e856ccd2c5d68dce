package synth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"
)

// ErrArchive is returned when the coefficient archive lacks an array.
var ErrArchive = errors.New("synth: invalid coefficient archive")

// Array names inside the coefficient archive.
const (
	arrayW0   = "w_array_0"
	arrayW1   = "w_array_1"
	arrayW2   = "w_array_2"
	arrayB0   = "b_array_0"
	arrayB1   = "b_array_1"
	arrayB2   = "b_array_2"
	arrayXMin = "x_min"
	arrayXMax = "x_max"
)

// LoadNetwork reads network coefficients from a NumPy .npz archive and the
// native wavelength grid from a text file with one wavelength per entry.
func LoadNetwork(archivePath, wavelengthPath string, opts ...Option) (*Network, error) {
	coeffs, err := ReadCoefficients(archivePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(wavelengthPath)
	if err != nil {
		return nil, fmt.Errorf("synth: open wavelength grid: %w", err)
	}
	defer f.Close()

	wave, err := ReadWavelengths(f)
	if err != nil {
		return nil, fmt.Errorf("synth: read %s: %w", wavelengthPath, err)
	}

	return NewNetwork(coeffs, wave, opts...)
}

// ReadCoefficients loads the six layer arrays and the label bounds from a
// .npz archive.
func ReadCoefficients(path string) (Coefficients, error) {
	var c Coefficients

	r, err := npz.Open(path)
	if err != nil {
		return c, fmt.Errorf("synth: open archive %s: %w", path, err)
	}
	defer r.Close()

	keys := make(map[string]string, len(r.Keys()))
	for _, k := range r.Keys() {
		keys[strings.TrimSuffix(k, ".npy")] = k
	}

	readMatrix := func(name string) (*mat.Dense, error) {
		key, ok := keys[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s not found", ErrArchive, name)
		}
		var m mat.Dense
		if err := r.Read(key, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArchive, name, err)
		}
		return &m, nil
	}
	readVector := func(name string) ([]float64, error) {
		key, ok := keys[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s not found", ErrArchive, name)
		}
		var v []float64
		if err := r.Read(key, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArchive, name, err)
		}
		return v, nil
	}

	if c.W0, err = readMatrix(arrayW0); err != nil {
		return c, err
	}
	if c.W1, err = readMatrix(arrayW1); err != nil {
		return c, err
	}
	if c.W2, err = readMatrix(arrayW2); err != nil {
		return c, err
	}
	if c.B0, err = readVector(arrayB0); err != nil {
		return c, err
	}
	if c.B1, err = readVector(arrayB1); err != nil {
		return c, err
	}
	if c.B2, err = readVector(arrayB2); err != nil {
		return c, err
	}
	if c.XMin, err = readVector(arrayXMin); err != nil {
		return c, err
	}
	if c.XMax, err = readVector(arrayXMax); err != nil {
		return c, err
	}
	return c, nil
}

// ReadWavelengths parses whitespace-separated wavelengths. Blank lines and
// lines starting with '#' are skipped.
func ReadWavelengths(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		for _, field := range strings.Fields(text) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out = append(out, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no wavelengths")
	}
	return out, nil
}
