// Package linelist reads the list of diagnostic absorption lines and the
// rest-frame mask windows, and summarises fit residuals around each line.
package linelist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-binspec/fit"
)

// ErrFormat is returned for lines that cannot be parsed.
var ErrFormat = errors.New("linelist: malformed line")

// Line is one diagnostic line.
type Line struct {
	Wave float64
	// Name is the element of the line; Label is the identifier as listed.
	Name  string
	Label string
}

// Hydrogen returns H-beta and H-alpha, which lead every list.
func Hydrogen() []Line {
	return []Line{
		{Wave: 4861.323, Name: "Hbeta", Label: "Hbeta"},
		{Wave: 6562.797, Name: "Halpha", Label: "Halpha"},
	}
}

// Load reads the line list at path.
func Load(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("linelist: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a whitespace-separated list of "label wavelength" rows. Text
// after ';' is a comment, "Sp" rows are skipped, and labels of five or more
// characters lose their four-character ionisation suffix in Name. The
// hydrogen lines are prepended.
func Read(r io.Reader) ([]Line, error) {
	lines := Hydrogen()
	err := scan(r, func(n int, fields []string) error {
		label := fields[0]
		if label == "Sp" {
			return nil
		}
		wave, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("%w %d: %w", ErrFormat, n, err)
		}
		name := label
		if len(label) >= 5 {
			name = label[:len(label)-4]
		}
		lines = append(lines, Line{Wave: wave, Name: name, Label: label})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// LoadWindows reads the mask windows at path.
func LoadWindows(path string) ([]fit.Window, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("linelist: %w", err)
	}
	defer f.Close()
	return ReadWindows(f)
}

// ReadWindows parses "begin end" rows of rest-frame wavelengths in Å.
func ReadWindows(r io.Reader) ([]fit.Window, error) {
	var out []fit.Window
	err := scan(r, func(n int, fields []string) error {
		begin, err1 := strconv.ParseFloat(fields[0], 64)
		end, err2 := strconv.ParseFloat(fields[1], 64)
		if err := errors.Join(err1, err2); err != nil {
			return fmt.Errorf("%w %d: %w", ErrFormat, n, err)
		}
		if end < begin {
			return fmt.Errorf("%w %d: window end %v before begin %v", ErrFormat, n, end, begin)
		}
		out = append(out, fit.Window{Begin: begin, End: end})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scan(r io.Reader, row func(n int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := sc.Text()
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return fmt.Errorf("%w %d: %q", ErrFormat, n, sc.Text())
		}
		if err := row(n, fields); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("linelist: %w", err)
	}
	return nil
}

// Residual is the fit quality around one line.
type Residual struct {
	Line Line
	// Mean is the mean absolute difference between data and model within
	// the window; Max is the largest.
	Mean, Max float64
	Pixels    int
}

// Residuals summarises |data-model| within halfWidth of every line. wave
// must be sorted ascending. Lines without pixels are omitted.
func Residuals(lines []Line, wave, data, model []float64, halfWidth float64) []Residual {
	n := min(len(wave), len(data), len(model))
	var out []Residual
	for _, l := range lines {
		lo := sort.SearchFloat64s(wave[:n], l.Wave-halfWidth)
		hi := sort.SearchFloat64s(wave[:n], l.Wave+halfWidth)
		for hi < n && wave[hi] == l.Wave+halfWidth {
			hi++
		}
		if hi <= lo {
			continue
		}
		res := Residual{Line: l, Pixels: hi - lo}
		for i := lo; i < hi; i++ {
			d := data[i] - model[i]
			if d < 0 {
				d = -d
			}
			res.Mean += d
			res.Max = max(res.Max, d)
		}
		res.Mean /= float64(res.Pixels)
		out = append(out, res)
	}
	return out
}

// Worst returns the k residuals with the largest mean, largest first.
func Worst(res []Residual, k int) []Residual {
	out := append([]Residual(nil), res...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean > out[j].Mean })
	if k < len(out) {
		out = out[:k]
	}
	return out
}
