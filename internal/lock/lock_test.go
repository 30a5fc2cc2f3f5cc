package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbound.lock")

	l, err := Acquire(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	again, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
	assert.NoError(t, again.Release())
}

func TestReleaseDoesNotRemoveSuccessorLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbound.lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := Acquire(path)
	require.NoError(t, err)
	defer second.Release()

	require.NoError(t, first.Release())
	_, err = os.Stat(path)
	require.NoError(t, err, "a released lock must not touch the next holder's file")

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrLocked)
}
