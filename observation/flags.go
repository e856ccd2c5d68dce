package observation

import "strings"

// Flag is the per-star quality bitfield.
type Flag uint32

// Quality bits.
const (
	FlagModel3x3x3Unavailable  Flag = 1
	FlagModelExtra6Unavailable Flag = 2
	FlagNoConvergence          Flag = 4
	FlagMissingCCDs            Flag = 8
	FlagNegativeFlux           Flag = 16
	FlagNegativeLSF            Flag = 32
)

var flagNames = []struct {
	bit  Flag
	name string
}{
	{FlagModel3x3x3Unavailable, "model_3x3x3_unavailable"},
	{FlagModelExtra6Unavailable, "model_extra6_unavailable"},
	{FlagNoConvergence, "no_convergence"},
	{FlagMissingCCDs, "missing_ccds"},
	{FlagNegativeFlux, "negative_flux"},
	{FlagNegativeLSF, "negative_lsf"},
}

// Set raises bit and reports whether it was newly set. Raising a bit twice
// leaves the value unchanged.
func (f *Flag) Set(bit Flag) bool {
	if *f&bit != 0 {
		return false
	}
	*f |= bit
	return true
}

// Has reports whether every bit in bit is set.
func (f Flag) Has(bit Flag) bool {
	return f&bit == bit
}

func (f Flag) String() string {
	if f == 0 {
		return "ok"
	}
	var parts []string
	for _, fn := range flagNames {
		if f&fn.bit != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Resolution is the spectrograph configuration.
type Resolution int

const (
	LowRes Resolution = iota
	HighRes
)

func (r Resolution) String() string {
	if r == HighRes {
		return "high-res"
	}
	return "low-res"
}
