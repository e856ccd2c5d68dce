// Package store keeps fit results in an SQLite database, one row per star
// and run.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/observation"
)

// ErrEmptyRunID is returned when a record has no run identifier.
var ErrEmptyRunID = errors.New("store: empty run id")

const schema = `
CREATE TABLE IF NOT EXISTS results (
	run_id       TEXT    NOT NULL,
	sobject_id   INTEGER NOT NULL,
	state        TEXT    NOT NULL,
	reason       TEXT    NOT NULL DEFAULT '',
	agreement    REAL,
	rchi2        REAL,
	chi2         REAL,
	f_contr      REAL,
	rv_1         REAL,
	teff_1       REAL,
	logg_1       REAL,
	fe_h_1       REAL,
	vmic_1       REAL,
	vsini_1      REAL,
	rv_2         REAL,
	teff_2       REAL,
	logg_2       REAL,
	fe_h_2       REAL,
	vmic_2       REAL,
	vsini_2      REAL,
	flags        INTEGER NOT NULL DEFAULT 0,
	iterations   INTEGER NOT NULL DEFAULT 0,
	evaluations  INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT    NOT NULL,
	PRIMARY KEY (run_id, sobject_id)
);
CREATE INDEX IF NOT EXISTS results_sobject ON results (sobject_id);
`

const columns = `run_id, sobject_id, state, reason, agreement, rchi2, chi2, f_contr,
	rv_1, teff_1, logg_1, fe_h_1, vmic_1, vsini_1,
	rv_2, teff_2, logg_2, fe_h_2, vmic_2, vsini_2,
	flags, iterations, evaluations, created_at`

// Record is the stored outcome of one fit.
type Record struct {
	RunID       string
	SobjectID   int64
	State       string
	Reason      string
	Agreement   float64
	ReducedChi2 float64
	Chi2        float64
	Params      binary.Params
	Flags       observation.Flag
	Iterations  int
	Evaluations int
	CreatedAt   time.Time
}

// RunSummary counts the records of one run.
type RunSummary struct {
	RunID   string
	Stars   int
	Failed  int
	Started time.Time
}

// Store is an SQLite result table.
type Store struct {
	db *sql.DB
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// One connection serialises writers and keeps an in-memory database
	// alive.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts rec, replacing an earlier record of the same star in the same
// run. A zero CreatedAt is set to the current time.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.RunID == "" {
		return ErrEmptyRunID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	p := rec.Params
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO results (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SobjectID, rec.State, rec.Reason,
		nullable(rec.Agreement), nullable(rec.ReducedChi2), nullable(rec.Chi2), nullable(p.FContr),
		nullable(p.RV1), nullable(p.Comp1.Teff), nullable(p.Comp1.Logg), nullable(p.Comp1.FeH), nullable(p.Comp1.Vmic), nullable(p.Comp1.Vsini),
		nullable(p.RV2), nullable(p.Comp2.Teff), nullable(p.Comp2.Logg), nullable(p.Comp2.FeH), nullable(p.Comp2.Vmic), nullable(p.Comp2.Vsini),
		int64(rec.Flags), rec.Iterations, rec.Evaluations, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: save %d: %w", rec.SobjectID, err)
	}
	return nil
}

// List returns the records of runID ordered by star.
func (s *Store) List(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM results WHERE run_id = ? ORDER BY sobject_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

// Runs summarises every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*), SUM(state != 'complete'), MIN(created_at)
		FROM results GROUP BY run_id ORDER BY MIN(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		if err := rows.Scan(&r.RunID, &r.Stars, &r.Failed, &started); err != nil {
			return nil, fmt.Errorf("store: runs: %w", err)
		}
		if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("store: runs: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: runs: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var f [16]sql.NullFloat64
	var flags int64
	var created string
	dest := []any{&rec.RunID, &rec.SobjectID, &rec.State, &rec.Reason}
	for i := range f {
		dest = append(dest, &f[i])
	}
	dest = append(dest, &flags, &rec.Iterations, &rec.Evaluations, &created)
	if err := rows.Scan(dest...); err != nil {
		return Record{}, fmt.Errorf("store: scan: %w", err)
	}

	v := func(i int) float64 {
		if !f[i].Valid {
			return math.NaN()
		}
		return f[i].Float64
	}
	rec.Agreement, rec.ReducedChi2, rec.Chi2 = v(0), v(1), v(2)
	rec.Params.FContr = v(3)
	rec.Params.RV1 = v(4)
	rec.Params.Comp1.Teff, rec.Params.Comp1.Logg, rec.Params.Comp1.FeH = v(5), v(6), v(7)
	rec.Params.Comp1.Vmic, rec.Params.Comp1.Vsini = v(8), v(9)
	rec.Params.RV2 = v(10)
	rec.Params.Comp2.Teff, rec.Params.Comp2.Logg, rec.Params.Comp2.FeH = v(11), v(12), v(13)
	rec.Params.Comp2.Vmic, rec.Params.Comp2.Vsini = v(14), v(15)
	rec.Flags = observation.Flag(flags)

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Record{}, fmt.Errorf("store: scan created_at: %w", err)
	}
	return rec, nil
}

// nullable maps non-finite values to NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
