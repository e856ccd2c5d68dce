// Package config loads the run configuration of the binspec command: a YAML
// file merged over Default, then BINSPEC_* environment overrides, then
// validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-binspec/continuum"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
)

// ErrInvalid is returned by Validate and by the loaders for values that
// cannot be used.
var ErrInvalid = errors.New("config: invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BINSPEC_"

// Config is the complete run configuration.
type Config struct {
	Network      Network      `yaml:"network"`
	Observations Observations `yaml:"observations"`
	LSF          LSF          `yaml:"lsf"`
	Continuum    Continuum    `yaml:"continuum"`
	Fit          Fit          `yaml:"fit"`
	Status       Status       `yaml:"status"`
	Results      Results      `yaml:"results"`
	// Lines is the path of the line list. Empty disables the per-line
	// diagnostics.
	Lines   string `yaml:"lines"`
	Workers int    `yaml:"workers"`
	Log     Log    `yaml:"log"`
}

// Network locates the synthetic spectrum network.
type Network struct {
	Archive        string  `yaml:"archive"`
	Wavelengths    string  `yaml:"wavelengths"`
	ResolvingPower float64 `yaml:"resolving_power"`
}

// Observations configures spectrum ingestion.
type Observations struct {
	Root                 string             `yaml:"root"`
	LSFIndex             string             `yaml:"lsf_index"`
	NeglectIRBeginning   bool               `yaml:"neglect_ir_beginning"`
	IRCutoff             float64            `yaml:"ir_cutoff"`
	NegativeFluxFraction float64            `yaml:"negative_flux_fraction"`
	CCDWindows           map[int]WaveWindow `yaml:"ccd_windows"`
}

// WaveWindow is a wavelength interval in Å.
type WaveWindow struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

// LSF configures the degrading grid.
type LSF struct {
	SafetyMargin     float64 `yaml:"safety_margin"`
	Oversample       float64 `yaml:"oversample"`
	PolynomialDegree int     `yaml:"polynomial_degree"`
	MaxGridPoints    int     `yaml:"max_grid_points"`
}

// Continuum configures the renormalisation of every model evaluation.
// Zero clipping bounds keep the default sigma clip.
type Continuum struct {
	Degree     int     `yaml:"degree"`
	Iterations int     `yaml:"iterations"`
	SigmaLower float64 `yaml:"sigma_lower"`
	SigmaUpper float64 `yaml:"sigma_upper"`
	CountBelow float64 `yaml:"count_below"`
	CountAbove float64 `yaml:"count_above"`
	Grow       int     `yaml:"grow"`
	MinPoints  int     `yaml:"min_points"`
}

// Fit configures the fitting loop.
type Fit struct {
	SharedMetallicity bool    `yaml:"shared_metallicity"`
	MaxIterations     int     `yaml:"max_iterations"`
	XTol              float64 `yaml:"xtol"`
	FTol              float64 `yaml:"ftol"`
	OutlierSigma      float64 `yaml:"outlier_sigma"`
	OutlierAbsolute   float64 `yaml:"outlier_absolute"`
	// MaskWindows is the path of a file of rest-frame windows excluded
	// from every fit. Empty disables window masking.
	MaskWindows string `yaml:"mask_windows"`
	// LineHalfWidth is the half width of the per-line residual
	// diagnostics in Å.
	LineHalfWidth float64 `yaml:"line_half_width"`
	// Refits repeats the fit from its own solution with a recomputed
	// outlier mask.
	Refits        int          `yaml:"refits"`
	EventInterval int          `yaml:"event_interval"`
	Initial       InitialGuess `yaml:"initial"`
}

// InitialGuess is the starting point of every fit.
type InitialGuess struct {
	FContr float64 `yaml:"f_contr"`
	RV1    float64 `yaml:"rv_1"`
	RV2    float64 `yaml:"rv_2"`
	Comp1  Labels  `yaml:"comp_1"`
	Comp2  Labels  `yaml:"comp_2"`
}

// Labels mirrors synth.Labels for YAML.
type Labels struct {
	Teff  float64 `yaml:"teff"`
	Logg  float64 `yaml:"logg"`
	FeH   float64 `yaml:"fe_h"`
	Vmic  float64 `yaml:"vmic"`
	Vsini float64 `yaml:"vsini"`
}

// Synth converts to synth.Labels.
func (l Labels) Synth() synth.Labels {
	return synth.Labels{Teff: l.Teff, Logg: l.Logg, FeH: l.FeH, Vmic: l.Vmic, Vsini: l.Vsini}
}

// Status configures the job-status sentinel tree.
type Status struct {
	Dir string `yaml:"dir"`
}

// Results configures the result store.
type Results struct {
	DB string `yaml:"db"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Network: Network{
			Archive:        "network.npz",
			Wavelengths:    "network_wavelengths.txt",
			ResolvingPower: synth.DefaultResolvingPower,
		},
		Observations: Observations{
			Root:                 "observations",
			NeglectIRBeginning:   true,
			IRCutoff:             observation.DefaultIRCutoff,
			NegativeFluxFraction: observation.DefaultNegativeFluxFraction,
		},
		LSF: LSF{
			SafetyMargin:     0.95,
			Oversample:       10,
			PolynomialDegree: 6,
			MaxGridPoints:    20_000_000,
		},
		Continuum: Continuum{
			Degree:     continuum.DefaultDegree,
			Iterations: 3,
			MinPoints:  100,
		},
		Fit: Fit{
			SharedMetallicity: true,
			MaxIterations:     100,
			XTol:              1e-8,
			FTol:              1e-10,
			OutlierSigma:      5,
			OutlierAbsolute:   0.2,
			LineHalfWidth:     5,
			EventInterval:     10,
			Initial: InitialGuess{
				FContr: 0.5,
				Comp1:  Labels{Teff: 5800, Logg: 4.4, FeH: 0, Vmic: 1.2, Vsini: 5},
				Comp2:  Labels{Teff: 5000, Logg: 4.5, FeH: 0, Vmic: 1.0, Vsini: 5},
			},
		},
		Status:  Status{Dir: "tracker"},
		Results: Results{DB: "binspec.db"},
		Workers: 1,
		Log:     Log{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path over Default, loads envFile (if not
// empty) into the environment, applies the BINSPEC_* overrides and
// validates the result. An empty path skips the file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates it. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ApplyEnv applies BINSPEC_* overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"NETWORK_ARCHIVE":     &c.Network.Archive,
		"NETWORK_WAVELENGTHS": &c.Network.Wavelengths,
		"OBSERVATIONS_ROOT":   &c.Observations.Root,
		"LSF_INDEX":           &c.Observations.LSFIndex,
		"STATUS_DIR":          &c.Status.Dir,
		"RESULTS_DB":          &c.Results.DB,
		"LINES":               &c.Lines,
		"FIT_MASK_WINDOWS":    &c.Fit.MaskWindows,
		"LOG_LEVEL":           &c.Log.Level,
		"LOG_FORMAT":          &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS":            &c.Workers,
		"FIT_MAX_ITERATIONS": &c.Fit.MaxIterations,
		"FIT_REFITS":         &c.Fit.Refits,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q: %w", ErrInvalid, EnvPrefix, key, v, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "NETWORK_RESOLVING_POWER"); ok {
		r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: %sNETWORK_RESOLVING_POWER=%q: %w", ErrInvalid, EnvPrefix, v, err)
		}
		c.Network.ResolvingPower = r
	}
	if v, ok := lookup(EnvPrefix + "NEGLECT_IR_BEGINNING"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sNEGLECT_IR_BEGINNING=%q: %w", ErrInvalid, EnvPrefix, v, err)
		}
		c.Observations.NeglectIRBeginning = b
	}
	return nil
}

// Validate reports the first unusable value.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if c.Network.ResolvingPower <= 0 {
		return invalid("network.resolving_power must be > 0")
	}
	if c.Observations.NeglectIRBeginning && c.Observations.IRCutoff <= 0 {
		return invalid("observations.ir_cutoff must be > 0")
	}
	if f := c.Observations.NegativeFluxFraction; f < 0 || f > 1 {
		return invalid("observations.negative_flux_fraction must be in [0, 1]")
	}
	for ccd, w := range c.Observations.CCDWindows {
		if ccd < 1 || ccd > observation.NumCCDs {
			return invalid("observations.ccd_windows: unknown CCD %d", ccd)
		}
		if !(w.Lo < w.Hi) {
			return invalid("observations.ccd_windows[%d]: lo must be below hi", ccd)
		}
	}

	if m := c.LSF.SafetyMargin; m <= 0 || m > 1 {
		return invalid("lsf.safety_margin must be in (0, 1]")
	}
	if c.LSF.Oversample <= 0 {
		return invalid("lsf.oversample must be > 0")
	}
	if c.LSF.PolynomialDegree < 0 {
		return invalid("lsf.polynomial_degree must be >= 0")
	}
	if c.LSF.MaxGridPoints <= 0 {
		return invalid("lsf.max_grid_points must be > 0")
	}

	cc := c.Continuum
	if cc.Degree < 0 {
		return invalid("continuum.degree must be >= 0")
	}
	if cc.Iterations < 0 || cc.Grow < 0 || cc.MinPoints < 0 {
		return invalid("continuum.iterations, grow and min_points must be >= 0")
	}
	if _, err := c.rejection(); err != nil {
		return fmt.Errorf("%w: continuum: %w", ErrInvalid, err)
	}

	f := c.Fit
	if f.MaxIterations < 0 || f.Refits < 0 {
		return invalid("fit.max_iterations and fit.refits must be >= 0")
	}
	if f.XTol < 0 || f.FTol < 0 {
		return invalid("fit.xtol and fit.ftol must be >= 0")
	}
	if f.EventInterval <= 0 {
		return invalid("fit.event_interval must be > 0")
	}
	if f.OutlierSigma <= 0 || f.OutlierAbsolute < 0 {
		return invalid("fit.outlier_sigma must be > 0 and fit.outlier_absolute >= 0")
	}
	if f.LineHalfWidth <= 0 {
		return invalid("fit.line_half_width must be > 0")
	}
	if p := f.Initial.FContr; p < 0 || p > 1 {
		return invalid("fit.initial.f_contr must be in [0, 1]")
	}

	if c.Workers <= 0 {
		return invalid("workers must be > 0")
	}
	if c.Status.Dir == "" || c.Results.DB == "" {
		return invalid("status.dir and results.db are required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "pretty":
	default:
		return invalid("log.format %q (use json or console)", c.Log.Format)
	}
	return nil
}

// rejection builds the renormalisation rejection rule. Without clipping
// bounds it returns nil and the model keeps its default.
func (c *Config) rejection() (continuum.Rejection, error) {
	cc := c.Continuum
	var sigma *continuum.SigmaClip
	var count *continuum.CountClip
	if cc.SigmaLower != 0 || cc.SigmaUpper != 0 {
		sigma = &continuum.SigmaClip{Lower: cc.SigmaLower, Upper: cc.SigmaUpper}
	}
	if cc.CountBelow != 0 || cc.CountAbove != 0 {
		count = &continuum.CountClip{Below: cc.CountBelow, Above: cc.CountAbove}
	}
	if sigma == nil && count == nil {
		return nil, nil
	}
	return continuum.NewRejection(sigma, count)
}
