package fit

import (
	"math"

	"github.com/cwbudde/algo-binspec/binary"
)

// Window is a closed rest-frame wavelength interval excluded from a fit.
type Window struct {
	Begin, End float64
}

type maskConfig struct {
	sigma    float64
	absolute float64
	windows  []Window
}

// MaskOption configures OutlierMask.
type MaskOption func(*maskConfig)

// WithOutlierSigma sets the normalised deviation above which a pixel may be
// an outlier.
func WithOutlierSigma(s float64) MaskOption {
	return func(c *maskConfig) {
		if s > 0 {
			c.sigma = s
		}
	}
}

// WithOutlierAbsolute sets the absolute flux deviation above which a pixel
// may be an outlier.
func WithOutlierAbsolute(d float64) MaskOption {
	return func(c *maskConfig) {
		if d >= 0 {
			c.absolute = d
		}
	}
}

// WithLineWindows excludes rest-frame wavelength windows.
func WithLineWindows(w ...Window) MaskOption {
	return func(c *maskConfig) { c.windows = append(c.windows, w...) }
}

// OutlierMask returns true for pixels used in a fit. A pixel is dropped when
// it deviates from the model by more than 5 sigma and by more than 0.2 in
// normalised flux, or when its rest-frame wavelength lies in a window.
func OutlierMask(ev *binary.Evaluation, opts ...MaskOption) []bool {
	cfg := maskConfig{sigma: 5, absolute: 0.2}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	mask := make([]bool, len(ev.Flux))
	for i := range mask {
		d := math.Abs(ev.Flux[i] - ev.Model[i])
		outlier := d/math.Sqrt(ev.Sigma2[i]) > cfg.sigma && d > cfg.absolute
		mask[i] = !outlier && !inWindow(ev.RestWave[i], cfg.windows)
	}
	return mask
}

func inWindow(w float64, windows []Window) bool {
	for _, win := range windows {
		if w >= win.Begin && w <= win.End {
			return true
		}
	}
	return false
}
