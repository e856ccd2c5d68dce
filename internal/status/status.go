// Package status records the processing state of each star as empty
// sentinel files:
//
//	<dir>/pending/<id>
//	<dir>/failed/<id>_<reason>
//	<dir>/complete/<id>
//
// A star is pending while it is processed. On termination the pending file
// is removed and a failed or complete file is created.
package status

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// States of a star.
const (
	Pending  = "pending"
	Failed   = "failed"
	Complete = "complete"
)

// ErrReason is returned for failure reasons that cannot be part of a file
// name.
var ErrReason = errors.New("status: invalid failure reason")

// Tracker writes sentinel files below a directory.
type Tracker struct {
	dir string
}

// New creates the state directories below dir.
func New(dir string) (*Tracker, error) {
	for _, state := range []string{Pending, Failed, Complete} {
		if err := os.MkdirAll(filepath.Join(dir, state), 0o755); err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
	}
	return &Tracker{dir: dir}, nil
}

// Dir returns the root directory.
func (t *Tracker) Dir() string { return t.dir }

func (t *Tracker) path(state string, id int64) string {
	return filepath.Join(t.dir, state, strconv.FormatInt(id, 10))
}

// Begin marks id as pending and clears earlier terminal markers.
func (t *Tracker) Begin(id int64) error {
	if err := t.clearTerminal(id); err != nil {
		return err
	}
	return touch(t.path(Pending, id))
}

// Fail marks id as failed with reason.
func (t *Tracker) Fail(id int64, reason string) error {
	if reason == "" || strings.ContainsAny(reason, `/\`) {
		return fmt.Errorf("%w: %q", ErrReason, reason)
	}
	if err := removeIfExists(t.path(Pending, id)); err != nil {
		return err
	}
	return touch(t.path(Failed, id) + "_" + reason)
}

// Complete marks id as complete.
func (t *Tracker) Complete(id int64) error {
	if err := removeIfExists(t.path(Pending, id)); err != nil {
		return err
	}
	return touch(t.path(Complete, id))
}

// State returns the state of id, the failure reason if it failed, and
// false if id was never seen.
func (t *Tracker) State(id int64) (state, reason string, ok bool) {
	if exists(t.path(Complete, id)) {
		return Complete, "", true
	}
	if reason, found := t.failure(id); found {
		return Failed, reason, true
	}
	if exists(t.path(Pending, id)) {
		return Pending, "", true
	}
	return "", "", false
}

func (t *Tracker) failure(id int64) (string, bool) {
	prefix := strconv.FormatInt(id, 10) + "_"
	matches, err := filepath.Glob(filepath.Join(t.dir, Failed, prefix+"*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return strings.TrimPrefix(filepath.Base(matches[0]), prefix), true
}

func (t *Tracker) clearTerminal(id int64) error {
	if err := removeIfExists(t.path(Complete, id)); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(t.dir, Failed, strconv.FormatInt(id, 10)+"_*"))
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	for _, m := range matches {
		if err := removeIfExists(m); err != nil {
			return err
		}
	}
	return nil
}

func touch(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("status: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
