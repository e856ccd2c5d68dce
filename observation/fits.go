package observation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// HDU positions inside a reduced CCD file.
const (
	hduCounts = 0
	hduRelUnc = 2
	hduLSF    = 7
)

// ErrFITS is returned for FITS files with missing HDUs or keywords.
var ErrFITS = errors.New("observation: unexpected FITS layout")

// FITSProvider reads reduced spectra laid out as
// <root>/observations/<date>/spectra/com/<id><ccd>.fits, where <date> is the
// first six digits of the identifier.
type FITSProvider struct {
	Root string
}

// NewFITSProvider returns a provider rooted at root.
func NewFITSProvider(root string) *FITSProvider {
	return &FITSProvider{Root: root}
}

// Path returns the file holding one CCD of a star.
func (p *FITSProvider) Path(id int64, ccd int) string {
	s := strconv.FormatInt(id, 10)
	night := s
	if len(night) > 6 {
		night = night[:6]
	}
	return filepath.Join(p.Root, "observations", night, "spectra", "com", s+strconv.Itoa(ccd)+".fits")
}

// Read returns the raw spectrum of id. The first CCD must exist; the others
// are optional.
func (p *FITSProvider) Read(id int64) (*Raw, error) {
	raw := &Raw{ID: id, WavelengthOK: true, CrossTalkOK: true, CCDs: make(map[int]*RawCCD, NumCCDs)}
	for ccd := 1; ccd <= NumCCDs; ccd++ {
		rc, hdr, err := p.readCCD(id, ccd)
		if err != nil {
			if ccd == 1 {
				return nil, err
			}
			continue
		}
		if ccd == 1 {
			raw.SlitMask = cardString(hdr, "SLITMASK")
			if v, ok := cardFloat(hdr, "WAV_OK"); ok {
				raw.WavelengthOK = v != 0
			}
			if v, ok := cardFloat(hdr, "CROSS_OK"); ok {
				raw.CrossTalkOK = v != 0
			}
			if v, ok := cardFloat(hdr, "PLATE"); ok {
				raw.Plate = int(v)
			}
		}
		raw.CCDs[ccd] = rc
	}
	return raw, nil
}

// ReadCCD returns one CCD of a star.
func (p *FITSProvider) ReadCCD(id int64, ccd int) (*RawCCD, error) {
	rc, _, err := p.readCCD(id, ccd)
	return rc, err
}

func (p *FITSProvider) readCCD(id int64, ccd int) (*RawCCD, *fitsio.Header, error) {
	path := p.Path(id, ccd)
	r, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingObservation, path)
		}
		return nil, nil, fmt.Errorf("observation: open %s: %w", path, err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, nil, fmt.Errorf("observation: decode %s: %w", path, err)
	}
	defer f.Close()

	hdus := f.HDUs()
	if len(hdus) <= hduLSF {
		return nil, nil, fmt.Errorf("%w: %s has %d HDUs", ErrFITS, path, len(hdus))
	}
	hdr := hdus[hduCounts].Header()

	rc := &RawCCD{}
	var ok bool
	if rc.Crval, ok = cardFloat(hdr, "CRVAL1"); !ok {
		return nil, nil, fmt.Errorf("%w: %s lacks CRVAL1", ErrFITS, path)
	}
	if rc.Cdelt, ok = cardFloat(hdr, "CDELT1"); !ok {
		return nil, nil, fmt.Errorf("%w: %s lacks CDELT1", ErrFITS, path)
	}
	rc.LSFB, _ = cardFloat(hdr, "B")

	if rc.Counts, err = readImage(hdus[hduCounts]); err != nil {
		return nil, nil, fmt.Errorf("observation: %s counts: %w", path, err)
	}
	if rc.RelUnc, err = readImage(hdus[hduRelUnc]); err != nil {
		return nil, nil, fmt.Errorf("observation: %s uncertainty: %w", path, err)
	}
	if rc.LSF, err = readImage(hdus[hduLSF]); err != nil {
		return nil, nil, fmt.Errorf("observation: %s LSF: %w", path, err)
	}
	return rc, hdr, nil
}

// readImage reads a one-dimensional image HDU of any BITPIX as float64.
func readImage(hdu fitsio.HDU) ([]float64, error) {
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%w: HDU %q is not an image", ErrFITS, hdu.Name())
	}
	hdr := img.Header()
	n := 1
	for _, d := range hdr.Axes() {
		n *= d
	}
	if len(hdr.Axes()) == 0 {
		n = 0
	}

	switch hdr.Bitpix() {
	case 8:
		return readAs[uint8](img, n)
	case 16:
		return readAs[int16](img, n)
	case 32:
		return readAs[int32](img, n)
	case 64:
		return readAs[int64](img, n)
	case -32:
		return readAs[float32](img, n)
	case -64:
		return readAs[float64](img, n)
	default:
		return nil, fmt.Errorf("%w: BITPIX %d", ErrFITS, hdr.Bitpix())
	}
}

func readAs[T uint8 | int16 | int32 | int64 | float32 | float64](img fitsio.Image, n int) ([]float64, error) {
	buf := make([]T, n)
	if err := img.Read(&buf); err != nil {
		return nil, err
	}
	out := make([]float64, len(buf))
	for i, v := range buf {
		out[i] = float64(v)
	}
	return out, nil
}

func cardFloat(hdr *fitsio.Header, name string) (float64, bool) {
	if hdr == nil {
		return 0, false
	}
	card := hdr.Get(name)
	if card == nil {
		return 0, false
	}
	return toFloat(card.Value)
}

func cardString(hdr *fitsio.Header, name string) string {
	if hdr == nil {
		return ""
	}
	card := hdr.Get(name)
	if card == nil {
		return ""
	}
	if s, ok := card.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(card.Value)
}

// toFloat converts numeric and boolean card or column values.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
