package synth

import (
	"errors"
	"fmt"
	"math"
)

// ErrMissingLabel is returned when a stellar label required by the network
// is absent.
var ErrMissingLabel = errors.New("synth: missing stellar label")

// Label names in network input order.
const (
	LabelTeff  = "teff"
	LabelLogg  = "logg"
	LabelFeH   = "fe_h"
	LabelVmic  = "vmic"
	LabelVsini = "vsini"
)

// LabelNames lists the network inputs in order.
var LabelNames = [NumLabels]string{LabelTeff, LabelLogg, LabelFeH, LabelVmic, LabelVsini}

// NumLabels is the length of the network input vector.
const NumLabels = 5

// Labels is the label vector of one stellar component. A NaN field counts as
// absent.
type Labels struct {
	Teff  float64 // effective temperature [K]
	Logg  float64 // surface gravity [log cgs]
	FeH   float64 // metallicity [dex]
	Vmic  float64 // microturbulence [km/s]
	Vsini float64 // rotational broadening [km/s]
}

// MissingLabels returns a Labels value with every field absent.
func MissingLabels() Labels {
	nan := math.NaN()
	return Labels{Teff: nan, Logg: nan, FeH: nan, Vmic: nan, Vsini: nan}
}

// Vector returns the labels in network input order.
func (l Labels) Vector() [NumLabels]float64 {
	return [NumLabels]float64{l.Teff, l.Logg, l.FeH, l.Vmic, l.Vsini}
}

// Validate reports the first absent label.
func (l Labels) Validate() error {
	for i, v := range l.Vector() {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: %s", ErrMissingLabel, LabelNames[i])
		}
	}
	return nil
}

// LabelsFromMap builds Labels from named values. Every label in LabelNames
// must be present.
func LabelsFromMap(values map[string]float64) (Labels, error) {
	var v [NumLabels]float64
	for i, name := range LabelNames {
		x, ok := values[name]
		if !ok {
			return Labels{}, fmt.Errorf("%w: %s", ErrMissingLabel, name)
		}
		v[i] = x
	}
	return Labels{Teff: v[0], Logg: v[1], FeH: v[2], Vmic: v[3], Vsini: v[4]}, nil
}
