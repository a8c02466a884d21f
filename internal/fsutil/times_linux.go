//go:build linux

package fsutil

import (
	"time"

	"golang.org/x/sys/unix"
)

// StatTimes returns the change (ctime) and modification time of path.
func StatTimes(path string) (ctime, mtime time.Time, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, time.Time{}, err
	}
	ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	mtime = time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
	return ctime, mtime, nil
}
