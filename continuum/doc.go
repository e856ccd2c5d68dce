// Package continuum fits a smooth curve to noisy data while iteratively
// rejecting outliers.
//
// [Normalize] fits once, measures the residual scatter and then repeatedly
// rejects points with a [Rejection] rule, optionally grows each rejection to
// neighbouring samples, and refits on the survivors. Two rules exist:
// [SigmaClip] rejects residuals beyond a multiple of the scatter plus the
// per-point uncertainty, [CountClip] rejects a fixed number (or fraction) of
// the most extreme residuals on each side. Iteration stops when the mask no
// longer changes or would leave fewer than the minimum number of points.
//
// The default fit is a degree-4 Chebyshev polynomial.
package continuum
