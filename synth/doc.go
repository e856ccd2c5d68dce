// Package synth generates high-resolution synthetic stellar spectra from a
// pretrained feed-forward network.
//
// The network maps five stellar labels (effective temperature, surface
// gravity, metallicity, microturbulence and rotational broadening) to a flux
// array on its native wavelength grid. Labels are scaled to [-0.5, 0.5] with
// the per-label bounds stored alongside the weights, then passed through two
// hidden layers with a leaky rectified activation and one linear output
// layer:
//
//	net, err := synth.LoadNetwork("model.npz", "wavelength.txt")
//	flux, err := net.Spectrum(synth.Labels{Teff: 5772, Logg: 4.44, FeH: 0, Vmic: 1, Vsini: 2})
//
// A [Network] is immutable after construction and may be shared between
// goroutines.
package synth
