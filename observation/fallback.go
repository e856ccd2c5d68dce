package observation

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/astrogo/fitsio"
)

// highResReductionFlag marks high-resolution reductions in the LSF index.
const highResReductionFlag = 262144

// ErrNoLSFCandidate is returned when no indexed observation can donate a
// line-spread function.
var ErrNoLSFCandidate = errors.New("observation: no replacement line-spread function")

// LSFEntry describes one indexed observation and whether it has a measured
// resolution profile per CCD.
type LSFEntry struct {
	SobjectID      int64
	Pivot          int
	Plate          int
	Res            [NumCCDs]float64
	ReductionFlags int64
}

// CCDReader reads a single CCD of a star.
type CCDReader interface {
	ReadCCD(id int64, ccd int) (*RawCCD, error)
}

// LSFIndex picks the line-spread function of the closest observation made
// with the same fibre, plate and resolution setup.
type LSFIndex struct {
	entries []LSFEntry
	source  CCDReader
}

// NewLSFIndex returns an index over entries that reads donor CCDs from source.
func NewLSFIndex(entries []LSFEntry, source CCDReader) *LSFIndex {
	return &LSFIndex{entries: entries, source: source}
}

// Closest returns the identifier of the nearest usable donor.
func (x *LSFIndex) Closest(id int64, plate, ccd int, res Resolution) (int64, error) {
	if ccd < 1 || ccd > NumCCDs {
		return 0, fmt.Errorf("%w: CCD%d", ErrNoLSFCandidate, ccd)
	}
	pivot := int(id % 1000)
	best, bestDist := int64(0), int64(-1)
	for _, e := range x.entries {
		if e.Pivot != pivot || e.Plate != plate || !(e.Res[ccd-1] > 0) || e.SobjectID == id {
			continue
		}
		if (e.ReductionFlags >= highResReductionFlag) != (res == HighRes) {
			continue
		}
		d := e.SobjectID - id
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = e.SobjectID, d
		}
	}
	if bestDist < 0 {
		return 0, fmt.Errorf("%w: star %d CCD%d", ErrNoLSFCandidate, id, ccd)
	}
	return best, nil
}

// ClosestLSF implements LSFFallback.
func (x *LSFIndex) ClosestLSF(id int64, plate, ccd int, res Resolution) ([]float64, float64, error) {
	donor, err := x.Closest(id, plate, ccd, res)
	if err != nil {
		return nil, 0, err
	}
	rc, err := x.source.ReadCCD(donor, ccd)
	if err != nil {
		return nil, 0, fmt.Errorf("observation: donor %d: %w", donor, err)
	}
	return rc.LSF, rc.LSFB, nil
}

// ReadLSFIndex reads the binary table in the first extension of an LSF
// index file. Columns: sobject_id, pivot, plate, res (one value per CCD)
// and reduction_flags.
func ReadLSFIndex(path string) ([]LSFEntry, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("observation: open LSF index: %w", err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("observation: decode LSF index: %w", err)
	}
	defer f.Close()

	if len(f.HDUs()) < 2 {
		return nil, fmt.Errorf("%w: LSF index has no table", ErrFITS)
	}
	table, ok := f.HDU(1).(*fitsio.Table)
	if !ok {
		return nil, fmt.Errorf("%w: LSF index extension is not a table", ErrFITS)
	}
	rows, err := table.Read(0, table.NumRows())
	if err != nil {
		return nil, fmt.Errorf("observation: read LSF index: %w", err)
	}
	defer rows.Close()

	var entries []LSFEntry
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("observation: scan LSF index: %w", err)
		}
		e, err := entryFromRow(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("observation: read LSF index: %w", err)
	}
	return entries, nil
}

func entryFromRow(row map[string]any) (LSFEntry, error) {
	var e LSFEntry
	num := func(name string) (float64, error) {
		v, ok := toFloat(row[name])
		if !ok {
			return 0, fmt.Errorf("%w: LSF index column %q", ErrFITS, name)
		}
		return v, nil
	}
	id, err := num("sobject_id")
	if err != nil {
		return e, err
	}
	pivot, err := num("pivot")
	if err != nil {
		return e, err
	}
	plate, err := num("plate")
	if err != nil {
		return e, err
	}
	flags, err := num("reduction_flags")
	if err != nil {
		return e, err
	}
	e.SobjectID, e.Pivot, e.Plate, e.ReductionFlags = int64(id), int(pivot), int(plate), int64(flags)

	res := reflect.ValueOf(row["res"])
	if res.Kind() != reflect.Array && res.Kind() != reflect.Slice {
		return e, fmt.Errorf("%w: LSF index column \"res\" is not a vector", ErrFITS)
	}
	for i := 0; i < min(res.Len(), NumCCDs); i++ {
		e.Res[i], _ = toFloat(res.Index(i).Interface())
	}
	return e, nil
}
