package observation

import (
	"errors"
	"slices"
	"testing"
)

func rawCCD(crval, cdelt float64, n int) *RawCCD {
	rc := &RawCCD{Crval: crval, Cdelt: cdelt, LSFB: 2}
	rc.Counts = make([]float64, n)
	rc.RelUnc = make([]float64, n)
	rc.LSF = make([]float64, n)
	for i := range rc.Counts {
		rc.Counts[i] = 1000
		rc.RelUnc[i] = 0.01
		rc.LSF[i] = 0.12
	}
	return rc
}

func fullRaw() *Raw {
	return &Raw{
		ID:           210115002201239,
		Plate:        1,
		WavelengthOK: true,
		CrossTalkOK:  true,
		CCDs: map[int]*RawCCD{
			1: rawCCD(4710, 0.046, 100),
			2: rawCCD(5640, 0.055, 100),
			3: rawCCD(6475, 0.064, 100),
			4: rawCCD(7670, 0.5, 100),
		},
	}
}

func TestFlagSetOnce(t *testing.T) {
	var f Flag
	if !f.Set(FlagNegativeFlux) {
		t.Fatal("first Set should report a new bit")
	}
	if f.Set(FlagNegativeFlux) {
		t.Fatal("second Set should be a no-op")
	}
	if f != FlagNegativeFlux {
		t.Fatalf("flag = %d, want %d", f, FlagNegativeFlux)
	}
	f.Set(FlagNegativeLSF)
	if got := f.String(); got != "negative_flux|negative_lsf" {
		t.Fatalf("String() = %q", got)
	}
}

func TestIngestClean(t *testing.T) {
	s, warnings, err := Ingest(fullRaw())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !slices.Equal(s.Usable, []int{1, 2, 3, 4}) {
		t.Fatalf("usable = %v", s.Usable)
	}
	if s.Flags != 0 || len(warnings) != 0 {
		t.Fatalf("flags %v warnings %v", s.Flags, warnings)
	}
	if got := s.CCDs[2].CountsUnc[0]; got != 10 {
		t.Fatalf("counts uncertainty = %v, want 10", got)
	}
	if n := len(s.Wavelength()); n != 100+100+100+s.CCDs[4].Len() {
		t.Fatalf("concatenated wavelength length %d", n)
	}
}

func TestIngestClampsUncertainty(t *testing.T) {
	raw := fullRaw()
	raw.CCDs[1].RelUnc[3] = 0
	raw.CCDs[1].RelUnc[4] = -1
	s, warnings, err := Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := s.CCDs[1].CountsUnc[3]; got != 100 {
		t.Fatalf("clamped uncertainty = %v, want 100", got)
	}
	if got := s.CCDs[1].CountsUnc[4]; got != 100 {
		t.Fatalf("clamped uncertainty = %v, want 100", got)
	}
	if len(warnings) != 1 || warnings[0].CCD != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestIngestIRCutoff(t *testing.T) {
	s, _, err := Ingest(fullRaw())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	ir := s.CCDs[IRCCD]
	if ir.Crval != 7680.5 || ir.Len() != 79 || len(ir.LSF) != 79 || len(ir.CountsUnc) != 79 {
		t.Fatalf("IR CCD crval %v len %d", ir.Crval, ir.Len())
	}

	s, _, err = Ingest(fullRaw(), WithoutIRCutoff())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if s.CCDs[IRCCD].Len() != 100 {
		t.Fatalf("IR CCD trimmed although cutoff disabled")
	}

	s, _, err = Ingest(fullRaw(), WithIRCutoff(7700))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if s.CCDs[IRCCD].Crval != 7700.5 {
		t.Fatalf("IR CCD crval %v with custom cutoff", s.CCDs[IRCCD].Crval)
	}
}

func TestIngestNegativeFluxDroppedOnce(t *testing.T) {
	raw := fullRaw()
	for i := 0; i < 6; i++ {
		raw.CCDs[2].Counts[i] = -5
	}
	s, warnings, err := Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if slices.Contains(s.Usable, 2) {
		t.Fatalf("CCD2 still usable: %v", s.Usable)
	}
	if s.Flags != FlagNegativeFlux || len(warnings) != 1 {
		t.Fatalf("flags %v warnings %v", s.Flags, warnings)
	}

	s.Usable = append(s.Usable, 2)
	if _, err := s.Validate(DefaultNegativeFluxFraction); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.Flags != FlagNegativeFlux || slices.Contains(s.Usable, 2) {
		t.Fatalf("revalidation changed flags to %v, usable %v", s.Flags, s.Usable)
	}
}

func TestIngestNegativeFluxAtLimitKept(t *testing.T) {
	raw := fullRaw()
	for i := 0; i < 5; i++ {
		raw.CCDs[3].Counts[i] = -1
	}
	s, _, err := Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !slices.Contains(s.Usable, 3) || s.Flags != 0 {
		t.Fatalf("5%% negative counts should be tolerated: usable %v flags %v", s.Usable, s.Flags)
	}
}

func TestIngestNegativeLSF(t *testing.T) {
	raw := fullRaw()
	raw.CCDs[1].LSF[50] = -0.1
	s, _, err := Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if slices.Contains(s.Usable, 1) || !s.Flags.Has(FlagNegativeLSF) {
		t.Fatalf("usable %v flags %v", s.Usable, s.Flags)
	}
}

func TestIngestMissingCCDs(t *testing.T) {
	raw := fullRaw()
	delete(raw.CCDs, 3)
	s, _, err := Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !s.Flags.Has(FlagMissingCCDs) || !slices.Equal(s.Usable, []int{1, 2, 4}) {
		t.Fatalf("usable %v flags %v", s.Usable, s.Flags)
	}
}

func TestIngestNilCCDCountsAsMissing(t *testing.T) {
	raw := fullRaw()
	raw.CCDs[2] = nil
	s, _, err := Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !s.Flags.Has(FlagMissingCCDs) || !slices.Equal(s.Usable, []int{1, 3, 4}) {
		t.Fatalf("usable %v flags %v", s.Usable, s.Flags)
	}
}

func TestIngestNoUsableCCDs(t *testing.T) {
	raw := fullRaw()
	for _, c := range raw.CCDs {
		c.LSF[len(c.LSF)-1] = -1
	}
	s, _, err := Ingest(raw)
	if !errors.Is(err, ErrNoUsableCCDs) {
		t.Fatalf("expected ErrNoUsableCCDs, got %v", err)
	}
	if s == nil || !s.Flags.Has(FlagNegativeLSF) {
		t.Fatalf("partial spectrum should carry flags")
	}
}

func TestIngestMalformed(t *testing.T) {
	raw := fullRaw()
	raw.CCDs[2].RelUnc = raw.CCDs[2].RelUnc[:10]
	if _, _, err := Ingest(raw); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

type stubFallback struct {
	lsf   []float64
	calls int
}

func (f *stubFallback) ClosestLSF(int64, int, int, Resolution) ([]float64, float64, error) {
	f.calls++
	return f.lsf, 2.5, nil
}

func TestIngestLSFFallback(t *testing.T) {
	raw := fullRaw()
	raw.CCDs[2].LSF = []float64{0}

	s, _, err := Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if slices.Contains(s.Usable, 2) {
		t.Fatal("CCD without LSF kept although no fallback configured")
	}

	fb := &stubFallback{lsf: rawCCD(0, 1, 100).LSF}
	s, _, err = Ingest(raw, WithLSFFallback(fb))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if fb.calls != 1 || !slices.Contains(s.Usable, 2) || s.CCDs[2].LSFB != 2.5 {
		t.Fatalf("fallback calls %d usable %v", fb.calls, s.Usable)
	}
}

func TestIngestHighResWarning(t *testing.T) {
	raw := fullRaw()
	raw.SlitMask = "IN      "
	raw.WavelengthOK = false
	s, warnings, err := Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if s.Resolution != HighRes || len(warnings) != 2 {
		t.Fatalf("resolution %v warnings %v", s.Resolution, warnings)
	}
}
