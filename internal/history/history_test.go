package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGraphFile(t *testing.T, dir, content string) string {
	t.Helper()
	file := "memory.jsonl"
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
	return file
}

func TestCommit(t *testing.T) {
	t.Parallel()

	t.Run("InitializesRepositoryOnFirstUse", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		file := writeGraphFile(t, dir, "{}\n")

		hash, err := Commit(dir, file, "first snapshot")

		require.NoError(t, err)
		assert.Len(t, hash, 40)
		_, err = os.Stat(filepath.Join(dir, ".git"))
		assert.NoError(t, err)
	})

	t.Run("UnchangedFileReturnsErrNoChanges", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		file := writeGraphFile(t, dir, "{}\n")

		_, err := Commit(dir, file, "first")
		require.NoError(t, err)

		_, err = Commit(dir, file, "again")
		assert.ErrorIs(t, err, ErrNoChanges)
	})

	t.Run("ModifiedFileCommitsAgain", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		file := writeGraphFile(t, dir, "{}\n")

		first, err := Commit(dir, file, "first")
		require.NoError(t, err)

		writeGraphFile(t, dir, "{\"changed\":true}\n")
		second, err := Commit(dir, file, "second")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})
}

func TestLog(t *testing.T) {
	t.Parallel()

	t.Run("NoRepositoryYieldsEmptyLog", func(t *testing.T) {
		t.Parallel()
		snapshots, err := Log(t.TempDir(), 10)

		require.NoError(t, err)
		assert.Empty(t, snapshots)
	})

	t.Run("NewestFirstWithLimit", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		file := writeGraphFile(t, dir, "one\n")

		_, err := Commit(dir, file, "first")
		require.NoError(t, err)
		writeGraphFile(t, dir, "two\n")
		second, err := Commit(dir, file, "second")
		require.NoError(t, err)
		writeGraphFile(t, dir, "three\n")
		third, err := Commit(dir, file, "third")
		require.NoError(t, err)

		snapshots, err := Log(dir, 2)
		require.NoError(t, err)

		require.Len(t, snapshots, 2)
		assert.Equal(t, third, snapshots[0].Hash)
		assert.Equal(t, second, snapshots[1].Hash)
		assert.Contains(t, snapshots[0].Message, "third")
	})
}
