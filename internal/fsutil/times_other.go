//go:build !linux

package fsutil

import (
	"os"
	"time"
)

// StatTimes returns the modification time of path. Platforms without a
// portable ctime report creation as absent.
func StatTimes(path string) (ctime, mtime time.Time, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return time.Time{}, info.ModTime(), nil
}
