//go:build darwin

package serial

import "golang.org/x/sys/unix"

const (
	// TIOCSETA applies immediately, the TCSANOW equivalent.
	ioctlGetAttr = unix.TIOCGETA
	ioctlSetAttr = unix.TIOCSETA
)

// TIOCFLUSH takes a pointer to FREAD|FWRITE to flush both queues.
const flushReadWrite = 0x1 | 0x2

func flushIO(fd int) error {
	return ioctlRetry(func() error {
		return unix.IoctlSetPointerInt(fd, unix.TIOCFLUSH, flushReadWrite)
	})
}

func drain(fd int) error {
	return ioctlRetry(func() error {
		return unix.IoctlSetInt(fd, unix.TIOCDRAIN, 0)
	})
}
