// Package binary models the observed spectrum of a double-lined
// spectroscopic binary.
//
// Each component is synthesised from its own labels, broadened to the
// instrumental resolution of every usable CCD, Doppler shifted by its radial
// velocity and interpolated onto the observed pixels. The components are
// weighted by the flux contribution of the primary, f*c1 + (1-f)*c2, and the
// observed counts are renormalised against the composite with a
// sigma-clipped continuum fit.
//
// [Layout] maps [Params] to the flat parameter vector an optimiser works on.
package binary
