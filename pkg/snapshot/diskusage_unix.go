//go:build !windows

package snapshot

import (
	"os"
	"syscall"
)

// allocated returns the bytes a snapshot occupies on disk. Stat blocks are
// 512 bytes regardless of the filesystem block size.
func allocated(path string, info os.FileInfo) (int64, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.Size(), nil
	}
	return stat.Blocks * 512, nil
}
