// Package fit adjusts the parameters of a binary composite model to an
// observed spectrum.
//
// [Fit] minimises chi^2 = sum((model-flux)^2/sigma^2) over the masked
// pixels with a Levenberg-Marquardt iteration. The parameter vector follows
// a [binary.Layout]; it is made dimensionless with the layout scales, the
// Jacobian is estimated by forward differences and every step is projected
// back into the layout bounds. Progress is reported through an optional
// observer receiving an [Event] every few iterations and on termination.
//
// [OutlierMask] derives the pixel mask from an initial evaluation.
package fit
