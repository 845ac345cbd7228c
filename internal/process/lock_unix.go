//go:build !windows

package process

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var errLocked = errors.New("pid file is locked")

// tryLock takes a non-blocking exclusive flock. flock is released by the
// kernel when the process dies, so a crashed reporter leaves no stale lock.
func tryLock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return errLocked
	}
	return err
}

func unlock(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
