package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCleanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "b")

	require.NoError(t, CleanDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.DirExists(t, dir)
}

func TestEnsureEmptyDir(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out", "nested")
		require.NoError(t, EnsureEmptyDir(dir))
		assert.DirExists(t, dir)
	})

	t.Run("empties existing directory", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "stale.dll"), "old artifact")

		require.NoError(t, EnsureEmptyDir(dir))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejects a file at the path", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "collision")
		writeFile(t, file, "not a dir")
		assert.Error(t, EnsureEmptyDir(file))
	})
}

func TestCopyDirContents(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "web.config"), "<config/>")
	writeFile(t, filepath.Join(src, "bin", "app.dll"), "binary")

	dst := filepath.Join(t.TempDir(), "PackageSource")
	writeFile(t, filepath.Join(dst, "leftover.txt"), "from last run")

	require.NoError(t, CopyDirContents(src, dst))

	got, err := os.ReadFile(filepath.Join(dst, "bin", "app.dll"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(got))
	assert.FileExists(t, filepath.Join(dst, "web.config"))
	assert.NoFileExists(t, filepath.Join(dst, "leftover.txt"))
}

func TestCopyDirContentsMissingSource(t *testing.T) {
	err := CopyDirContents(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}

func TestFindFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "App", "App.csproj"), "")

	t.Run("finds nested file", func(t *testing.T) {
		got, err := FindFile(root, "App.csproj")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "src", "App", "App.csproj"), got)
	})

	t.Run("empty result for absent file", func(t *testing.T) {
		got, err := FindFile(root, "Missing.csproj")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
