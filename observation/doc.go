// Package observation holds the observed multi-CCD spectrum of one star and
// the quality checks applied when it is ingested.
//
// A [Provider] returns the raw per-CCD data of a star; [Ingest] turns it
// into a [Spectrum], clamping bad uncertainties, trimming the telluric start
// of the infrared CCD and dropping CCDs with negative flux or a negative
// line-spread function. Dropped CCDs raise bits in [Spectrum.Flags] and
// leave a [Warning]; a star without any usable CCD is an error.
//
// [FITSProvider] reads the reduced per-CCD FITS files of the survey archive.
package observation
