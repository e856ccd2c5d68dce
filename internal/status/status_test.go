package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	tr, err := New(t.TempDir())
	require.NoError(t, err)

	const id = 131216001101059

	_, _, ok := tr.State(id)
	assert.False(t, ok)

	require.NoError(t, tr.Begin(id))
	state, _, ok := tr.State(id)
	require.True(t, ok)
	assert.Equal(t, Pending, state)

	require.NoError(t, tr.Fail(id, "noCCDs"))
	state, reason, _ := tr.State(id)
	assert.Equal(t, Failed, state)
	assert.Equal(t, "noCCDs", reason)
	assert.NoFileExists(t, filepath.Join(tr.Dir(), Pending, "131216001101059"))
	assert.FileExists(t, filepath.Join(tr.Dir(), Failed, "131216001101059_noCCDs"))

	// A retry clears the failure.
	require.NoError(t, tr.Begin(id))
	require.NoError(t, tr.Complete(id))
	state, _, _ = tr.State(id)
	assert.Equal(t, Complete, state)

	entries, err := os.ReadDir(filepath.Join(tr.Dir(), Failed))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFailRejectsPathReasons(t *testing.T) {
	tr, err := New(t.TempDir())
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Fail(1, ""), ErrReason)
	assert.ErrorIs(t, tr.Fail(1, "a/b"), ErrReason)
}

func TestCompleteWithoutPending(t *testing.T) {
	tr, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, tr.Complete(7))
	state, _, ok := tr.State(7)
	assert.True(t, ok)
	assert.Equal(t, Complete, state)
}
