package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAtomicConfig(t *testing.T) {
	config := DefaultAtomicConfig()
	assert.Equal(t, ".treelens.tmp", config.TempSuffix)
	assert.False(t, config.BackupOriginal)
	assert.False(t, config.UseFsync)
	assert.Equal(t, 5*time.Second, config.LockTimeout)
	assert.Equal(t, time.Minute, config.StaleLock)

	w := NewAtomicWriter(AtomicWriteConfig{})
	assert.Equal(t, ".treelens.tmp", w.config.TempSuffix)
}

func TestAtomicWriterWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	w := NewAtomicWriter(DefaultAtomicConfig())
	backup, err := w.WriteFile(path, "a: 2\n")
	require.NoError(t, err)
	assert.Empty(t, backup)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 2\n", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "mode is preserved")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp or lock files are left behind")
}

func TestAtomicWriterBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	config := DefaultAtomicConfig()
	config.BackupOriginal = true
	w := NewAtomicWriter(config)
	w.now = func() time.Time { return time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC) }

	backup, err := w.WriteFile(path, "new\n")
	require.NoError(t, err)
	assert.Equal(t, path+".20260504-030201.bak", backup)

	saved, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(saved))

	fresh := filepath.Join(dir, "fresh.yaml")
	backup, err = w.WriteFile(fresh, "x: 1\n")
	require.NoError(t, err)
	assert.Empty(t, backup, "nothing to back up for a new file")
}

func TestAtomicWriterReplaceFileDetectsRace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("changed on disk\n"), 0o644))

	w := NewAtomicWriter(DefaultAtomicConfig())
	_, err := w.ReplaceFile(path, "what we parsed\n", "edited\n")
	require.ErrorIs(t, err, ErrWriteRace)
	assert.Equal(t, ECWriteRace, CodeOf(err))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "changed on disk\n", string(got))

	_, err = w.ReplaceFile(path, "changed on disk\n", "edited\n")
	require.NoError(t, err)
}

func TestAtomicWriterLocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	lock := path + ".lock"

	config := DefaultAtomicConfig()
	config.LockTimeout = 100 * time.Millisecond
	w := NewAtomicWriter(config)

	require.NoError(t, os.WriteFile(lock, []byte("1\n"), 0o644))
	_, err := w.WriteFile(path, "x\n")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timeout waiting for lock"))
	assert.Equal(t, ECWriteError, CodeOf(err))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(lock, old, old))
	_, err = w.WriteFile(path, "x\n")
	require.NoError(t, err, "stale locks are taken over")

	_, err = os.Stat(lock)
	assert.True(t, os.IsNotExist(err))
}

func TestAtomicWriterCleanup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	w := NewAtomicWriter(DefaultAtomicConfig())

	require.NoError(t, w.acquireLock(path))
	_, err := os.Stat(path + ".lock")
	require.NoError(t, err)

	w.Cleanup()
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}
