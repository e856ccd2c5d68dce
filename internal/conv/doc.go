// Package conv provides the linear convolution used to apply an instrumental
// line-spread kernel to a resampled synthetic spectrum.
//
// Two strategies are offered:
//
//   - Direct convolution: O(N*M) time-domain sum, used for short kernels
//   - Overlap-add (OLA): FFT-based block convolution with the kernel spectrum
//     computed once and reused for every call
//
// Both produce the full linear convolution. [Same] and [OverlapAdd.ProcessSame]
// return the centred part with the length of the input signal, matching the
// "same" output mode of common numerical libraries.
//
// Kernels applied to a spectrum are fixed for the lifetime of a fit, so callers
// that convolve repeatedly should build one [OverlapAdd] and keep it.
package conv
