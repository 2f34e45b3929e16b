package pidfile_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/infrastructure/pidfile"
)

func TestPIDFile_AcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	p := pidfile.New(path)

	require.NoError(t, p.Acquire(false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))

	require.NoError(t, p.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFile_RejectsSecondAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	p := pidfile.New(path)

	require.NoError(t, p.Acquire(false))

	// Same pid counts as a running owner
	err := pidfile.New(path).Acquire(false)
	assert.ErrorContains(t, err, "already running")
}

func TestPIDFile_ForceStealsLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	require.NoError(t, pidfile.New(path).Acquire(false))

	assert.NoError(t, pidfile.New(path).Acquire(true))
}

func TestPIDFile_ReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")

	// A pid that cannot exist
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0644))

	assert.NoError(t, pidfile.New(path).Acquire(false))
}

func TestPIDFile_ReplacesMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0644))

	assert.NoError(t, pidfile.New(path).Acquire(false))
}

func TestPIDFile_ReleaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetd.pid")
	p := pidfile.New(path)

	require.NoError(t, p.Acquire(false))
	require.NoError(t, p.Release())
	assert.NoError(t, p.Release())
}
