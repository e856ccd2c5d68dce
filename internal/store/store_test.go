package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results", "binspec.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(run string, id int64) Record {
	return Record{
		RunID:       run,
		SobjectID:   id,
		State:       "complete",
		Agreement:   0.42,
		ReducedChi2: 1.07,
		Chi2:        321.5,
		Params: binary.Params{
			FContr: 0.63,
			RV1:    12.5,
			RV2:    -30.25,
			Comp1:  synth.Labels{Teff: 5812, Logg: 4.31, FeH: -0.1, Vmic: 1.2, Vsini: 4.5},
			Comp2:  synth.Labels{Teff: 5120, Logg: 4.52, FeH: -0.1, Vmic: 0.9, Vsini: 3.2},
		},
		Flags:       observation.FlagMissingCCDs,
		Iterations:  17,
		Evaluations: 230,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	run := NewRunID()

	want := []Record{record(run, 1), record(run, 2)}
	failed := want[1]
	failed.State, failed.Reason = "failed", "diverged"
	failed.Params.FContr = math.NaN()
	want[1] = failed

	// Saved out of order; List orders by star.
	require.NoError(t, s.Save(ctx, want[1]))
	require.NoError(t, s.Save(ctx, want[0]))
	require.NoError(t, s.Save(ctx, record(NewRunID(), 1)))

	got, err := s.List(ctx, run)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveReplaces(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	run := NewRunID()

	rec := record(run, 5)
	require.NoError(t, s.Save(ctx, rec))
	rec.Iterations = 40
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.List(ctx, run)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 40, got[0].Iterations)
}

func TestSaveRequiresRunID(t *testing.T) {
	s := openTemp(t)
	assert.ErrorIs(t, s.Save(context.Background(), record("", 1)), ErrEmptyRunID)
}

func TestRuns(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	older, newer := NewRunID(), NewRunID()
	a := record(older, 1)
	b := record(older, 2)
	b.State = "failed"
	c := record(newer, 1)
	c.CreatedAt = a.CreatedAt.Add(time.Hour)
	for _, r := range []Record{a, b, c} {
		require.NoError(t, s.Save(ctx, r))
	}

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	want := []RunSummary{
		{RunID: newer, Stars: 1, Failed: 0, Started: c.CreatedAt},
		{RunID: older, Stars: 2, Failed: 1, Started: a.CreatedAt},
	}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("Runs mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}
