//go:build linux

package serial

import "golang.org/x/sys/unix"

const (
	// TCSETS applies immediately, the TCSANOW equivalent.
	ioctlGetAttr = unix.TCGETS
	ioctlSetAttr = unix.TCSETS
)

func flushIO(fd int) error {
	return ioctlRetry(func() error {
		return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
	})
}

func drain(fd int) error {
	// tcdrain(3) is TCSBRK with a non-zero argument on Linux.
	return ioctlRetry(func() error {
		return unix.IoctlSetInt(fd, unix.TCSBRK, 1)
	})
}
