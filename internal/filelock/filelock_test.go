package filelock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	t.Run("creates file and parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deep", "nested", "state.json")
		require.NoError(t, AtomicWrite(path, []byte(`{"ok":true}`)))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, string(data))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
	})

	t.Run("replaces existing content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, AtomicWrite(path, []byte("first")))
		require.NoError(t, AtomicWrite(path, []byte("second")))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "state.json")
		require.NoError(t, AtomicWrite(path, []byte("data")))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "state.json", entries[0].Name())
	})
}

func TestFileLock(t *testing.T) {
	t.Run("lock and unlock", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prd.json.lock")
		lock := NewFileLock(path)

		require.NoError(t, lock.Lock())
		require.NoError(t, lock.Unlock())
	})

	t.Run("try lock reports contention", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prd.json.lock")

		first := NewFileLock(path)
		require.NoError(t, first.Lock())
		defer first.Unlock()

		second := NewFileLock(path)
		acquired, err := second.TryLock()
		require.NoError(t, err)
		assert.False(t, acquired)
	})

	t.Run("released lock can be reacquired", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prd.json.lock")

		first := NewFileLock(path)
		require.NoError(t, first.Lock())
		require.NoError(t, first.Unlock())

		second := NewFileLock(path)
		acquired, err := second.TryLock()
		require.NoError(t, err)
		assert.True(t, acquired)
		require.NoError(t, second.Unlock())
	})
}

func TestLockAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prd.json")
	require.NoError(t, LockAndWrite(path, []byte(`{"project":"demo"}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"project":"demo"}`, string(data))
}
