package config

import (
	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/continuum"
	"github.com/cwbudde/algo-binspec/fit"
	"github.com/cwbudde/algo-binspec/lsf"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
)

// NetworkOptions returns the options for synth.LoadNetwork.
func (c *Config) NetworkOptions() []synth.Option {
	return []synth.Option{synth.WithResolvingPower(c.Network.ResolvingPower)}
}

// IngestOptions returns the options for observation.Ingest.
func (c *Config) IngestOptions() []observation.IngestOption {
	opts := []observation.IngestOption{observation.WithNegativeFluxFraction(c.Observations.NegativeFluxFraction)}
	if c.Observations.NeglectIRBeginning {
		opts = append(opts, observation.WithIRCutoff(c.Observations.IRCutoff))
	} else {
		opts = append(opts, observation.WithoutIRCutoff())
	}
	return opts
}

// GridOptions returns the options for the degrading grids.
func (c *Config) GridOptions() []lsf.Option {
	return []lsf.Option{
		lsf.WithSafetyMargin(c.LSF.SafetyMargin),
		lsf.WithOversample(c.LSF.Oversample),
		lsf.WithPolynomialDegree(c.LSF.PolynomialDegree),
		lsf.WithMaxPoints(c.LSF.MaxGridPoints),
	}
}

// ContinuumOptions returns the renormalisation options. Validate must have
// succeeded.
func (c *Config) ContinuumOptions() []continuum.Option {
	cc := c.Continuum
	opts := []continuum.Option{
		continuum.WithFit(continuum.Chebyshev(cc.Degree)),
		continuum.WithIterations(cc.Iterations),
		continuum.WithGrow(cc.Grow),
		continuum.WithMinPoints(cc.MinPoints),
	}
	if r, err := c.rejection(); err == nil && r != nil {
		opts = append(opts, continuum.WithRejection(r))
	}
	return opts
}

// CCDWindows returns the configured synthesis windows.
func (c *Config) CCDWindows() map[int]binary.Range {
	w := make(map[int]binary.Range, len(c.Observations.CCDWindows))
	for ccd, r := range c.Observations.CCDWindows {
		w[ccd] = binary.Range{Lo: r.Lo, Hi: r.Hi}
	}
	return w
}

// ModelOptions returns the options for binary.NewModel.
func (c *Config) ModelOptions() []binary.Option {
	return []binary.Option{
		binary.WithSharedMetallicity(c.Fit.SharedMetallicity),
		binary.WithCCDWindows(c.CCDWindows()),
		binary.WithGridOptions(c.GridOptions()...),
		binary.WithContinuum(c.ContinuumOptions()...),
	}
}

// FitOptions returns the options for fit.Fit.
func (c *Config) FitOptions() []fit.Option {
	return []fit.Option{
		fit.WithMaxIterations(c.Fit.MaxIterations),
		fit.WithXTol(c.Fit.XTol),
		fit.WithFTol(c.Fit.FTol),
		fit.WithEventInterval(c.Fit.EventInterval),
	}
}

// MaskOptions returns the outlier mask options. Line windows are added by
// the caller.
func (c *Config) MaskOptions() []fit.MaskOption {
	return []fit.MaskOption{
		fit.WithOutlierSigma(c.Fit.OutlierSigma),
		fit.WithOutlierAbsolute(c.Fit.OutlierAbsolute),
	}
}

// InitialParams returns the starting point of every fit.
func (c *Config) InitialParams() binary.Params {
	g := c.Fit.Initial
	return binary.Params{
		FContr: g.FContr,
		RV1:    g.RV1,
		RV2:    g.RV2,
		Comp1:  g.Comp1.Synth(),
		Comp2:  g.Comp2.Synth(),
	}
}
