package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestTakeCopiesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.db")
	dst := filepath.Join(dir, "b.db")
	writeFile(t, src, "snapshot-a")

	co, err := Take(src, dst, Options{})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "snapshot-a", string(got))

	srcDigest, err := Digest(src)
	require.NoError(t, err)
	assert.Equal(t, srcDigest, co.Source.Digest)

	info, err := co.Commit()
	require.NoError(t, err)
	assert.Equal(t, srcDigest, info.Digest, "unmodified copy has the source digest")
	assert.Equal(t, dst, info.Path)

	// Discard after commit keeps the file
	require.NoError(t, co.Discard())
	_, err = os.Stat(dst)
	assert.NoError(t, err)
}

func TestTakeMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "b.db")
	writeFile(t, dst, "keep me")

	_, err := Take(filepath.Join(dir, "missing.db"), dst, Options{Force: true})
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(got), "destination must not be touched")
}

func TestTakeDestinationPolicy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.db")
	dst := filepath.Join(dir, "b.db")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")
	writeFile(t, dst+"-wal", "stale wal")

	_, err := Take(src, dst, Options{})
	require.ErrorIs(t, err, ErrDestinationExists)

	_, err = Take(src, dst, Options{Force: true})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	_, err = os.Stat(dst + "-wal")
	assert.True(t, errors.Is(err, os.ErrNotExist), "stale side files are removed on force")
}

func TestTakeSameFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.db")
	writeFile(t, src, "x")

	_, err := Take(src, src, Options{Force: true})
	require.ErrorIs(t, err, ErrSameSnapshot)

	_, err = Take(src, filepath.Join(dir, ".", "a.db"), Options{Force: true})
	require.ErrorIs(t, err, ErrSameSnapshot)
}

func TestTakeDirectories(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.db")
	writeFile(t, src, "x")
	dst := filepath.Join(dir, "nested", "deeper", "b.db")

	_, err := Take(src, dst, Options{})
	require.Error(t, err)

	_, err = Take(src, dst, Options{MakeDirs: true})
	require.NoError(t, err)
}

func TestDiscardRemovesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.db")
	dst := filepath.Join(dir, "b.db")
	writeFile(t, src, "x")

	co, err := Take(src, dst, Options{})
	require.NoError(t, err)
	writeFile(t, dst+"-journal", "partial")

	require.NoError(t, co.Discard())
	for _, p := range []string{dst, dst + "-journal"} {
		_, err := os.Stat(p)
		assert.True(t, errors.Is(err, os.ErrNotExist), p)
	}
	_, err = os.Stat(src)
	assert.NoError(t, err, "source survives discard")
}

func TestDigestChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	writeFile(t, a, "one")
	writeFile(t, b, "two")

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
	assert.Len(t, da, 16)
}

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a")
	writeFile(t, p, "some bytes")

	n, err := DiskUsage(p)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(0))

	_, err = DiskUsage(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
