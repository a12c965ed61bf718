// Package snapshot implements the copy-then-mutate discipline between
// pipeline stages.
//
// Every stage reads a source snapshot file and writes a new destination
// snapshot. The source is never opened for writing: Checkout validates both
// paths, applies the overwrite policy and copies the source into place. The
// stage then mutates the copy. A failed stage discards its destination and
// leaves the source untouched, so recovery is always "run the stage again".
//
// Overwrite policy: an existing destination is an error unless Force is set,
// in which case it is removed before the copy.
package snapshot

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrMissingInput is returned when the source snapshot does not exist.
	ErrMissingInput = errors.New("source snapshot not found")

	// ErrDestinationExists is returned when the destination exists and
	// Force is off.
	ErrDestinationExists = errors.New("destination snapshot already exists")

	// ErrSameSnapshot is returned when source and destination are one file.
	ErrSameSnapshot = errors.New("source and destination are the same snapshot")
)

// sideFiles are journal files SQLite may leave next to a database.
var sideFiles = []string{"-wal", "-shm", "-journal"}

// Options controls Take.
type Options struct {
	// Force removes an existing destination instead of failing.
	Force bool

	// MakeDirs creates the destination directory when missing.
	MakeDirs bool
}

// Info describes a snapshot file.
type Info struct {
	Path   string
	Digest string
	Bytes  int64
}

// Checkout is a destination snapshot copied from its source and owned by
// one stage invocation.
type Checkout struct {
	Source      Info
	Destination string
	done        bool
}

// Validate checks source and destination paths without touching either
// file. Take calls it first.
func Validate(src, dst string, opts Options) error {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingInput, src)
		}
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrMissingInput, src)
	}

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("failed to resolve source path: %w", err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("failed to resolve destination path: %w", err)
	}
	if absSrc == absDst {
		return fmt.Errorf("%w: %s", ErrSameSnapshot, absSrc)
	}
	if dstInfo, err := os.Stat(dst); err == nil {
		if os.SameFile(info, dstInfo) {
			return fmt.Errorf("%w: %s", ErrSameSnapshot, absSrc)
		}
		if !opts.Force {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
		}
	}

	dir := filepath.Dir(absDst)
	if _, err := os.Stat(dir); err != nil && !opts.MakeDirs {
		return fmt.Errorf("destination directory %s: %w", dir, err)
	}
	return nil
}

// Take validates the paths, applies the overwrite policy and copies src to
// dst. Nothing is modified when validation fails.
func Take(src, dst string, opts Options) (*Checkout, error) {
	if err := Validate(src, dst, opts); err != nil {
		return nil, err
	}

	if opts.MakeDirs {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create destination directory: %w", err)
		}
	}
	if opts.Force {
		if err := remove(dst); err != nil {
			return nil, err
		}
	}

	digest, err := copyFile(src, dst)
	if err != nil {
		return nil, err
	}
	size, err := DiskUsage(src)
	if err != nil {
		return nil, err
	}

	return &Checkout{
		Source:      Info{Path: src, Digest: digest, Bytes: size},
		Destination: dst,
	}, nil
}

// Commit finalizes the destination and describes it.
func (c *Checkout) Commit() (Info, error) {
	if c.done {
		return Info{}, fmt.Errorf("checkout of %s already finished", c.Destination)
	}

	digest, err := Digest(c.Destination)
	if err != nil {
		return Info{}, err
	}
	size, err := DiskUsage(c.Destination)
	if err != nil {
		return Info{}, err
	}
	c.done = true
	return Info{Path: c.Destination, Digest: digest, Bytes: size}, nil
}

// Discard removes a partially written destination. It is safe to call after
// Commit has failed and is a no-op after a successful Commit.
func (c *Checkout) Discard() error {
	if c.done {
		return nil
	}
	c.done = true
	return remove(c.Destination)
}

// Digest returns the hex xxhash64 of a snapshot's contents.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash snapshot: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DiskUsage returns the bytes allocated to a snapshot file.
func DiskUsage(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	return allocated(path, info)
}

// copyFile writes src into a temporary file beside dst, syncs it and renames
// it into place. It returns the digest of the bytes copied.
func copyFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create destination: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	h := xxhash.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), in); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to copy snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to sync destination: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close destination: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move destination into place: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func remove(path string) error {
	for _, p := range append([]string{path}, suffixed(path)...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

func suffixed(path string) []string {
	out := make([]string, 0, len(sideFiles))
	for _, s := range sideFiles {
		out = append(out, path+s)
	}
	return out
}
