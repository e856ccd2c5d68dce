// Package lsf degrades high-resolution synthetic spectra to the resolution of
// an observed spectrum.
//
// The instrumental line-spread function (LSF) of a CCD is given as a Gaussian
// width per pixel. Because that width varies along the detector, the
// synthetic spectrum is first resampled onto a non-uniform grid on which the
// required broadening kernel has a constant width in samples. A single
// stationary convolution then applies the LSF everywhere:
//
//	grid, err := lsf.BuildGrid(net.Wavelength(), profile, ccd.Cdelt)
//	d, err := lsf.NewDegrader(grid, ccd.LSFB)
//	degraded, err := d.Degrade(net.Wavelength(), flux)
//
// The degraded flux is sampled on grid.Wavelength. Building the grid is the
// expensive step; a [Grid] is immutable and can be reused for every spectrum
// fitted against the same CCD.
package lsf
