// Package serial provides exclusive-access raw-mode serial lines for
// USB-DMX adapters. It exposes the small set of capabilities the Enttec
// backend needs: raw-mode configuration, queue flushing, output draining and
// RTS control. The termios translation lives in the per-platform files.
package serial

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Config describes the line discipline applied by Configure. Fields map to
// termios settings; the zero value is not usable, callers fill every field.
type Config struct {
	DataBits       int           // word size in bits; only 8 is supported
	TwoStopBits    bool          // CSTOPB
	LocalControl   bool          // CLOCAL: ignore modem control lines
	EnableReceiver bool          // CREAD
	MinRead        int           // VMIN: minimum bytes per read
	ReadTimeout    time.Duration // VTIME, rounded to deciseconds
}

// Line is an open serial device. The descriptor is opened non-blocking and
// without becoming the controlling terminal.
type Line struct {
	file  *os.File
	fd    int
	saved *unix.Termios // settings before Configure, restored on Close
}

// Open opens the device at path. The line starts with whatever settings the
// previous user left behind; call Configure before writing.
func Open(path string) (*Line, error) {
	file, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Line{file: file, fd: int(file.Fd())}, nil
}

// SetExclusive requests exclusive access to the device (TIOCEXCL). Further
// opens of the same path by other processes fail until the line is closed.
func (l *Line) SetExclusive() error {
	if err := ioctlRetry(func() error {
		return unix.IoctlSetInt(l.fd, unix.TIOCEXCL, 0)
	}); err != nil {
		return fmt.Errorf("set exclusive: %w", err)
	}
	return nil
}

// Configure snapshots the current line settings and applies cfg immediately,
// without waiting for pending output to drain. The snapshot is restored when
// the line is closed.
func (l *Line) Configure(cfg Config) error {
	if cfg.DataBits != 8 {
		return fmt.Errorf("unsupported word size: %d data bits", cfg.DataBits)
	}

	old, err := getTermios(l.fd)
	if err != nil {
		return fmt.Errorf("get attributes: %w", err)
	}

	t := *old
	t.Cflag = unix.CS8
	if cfg.TwoStopBits {
		t.Cflag |= unix.CSTOPB
	}
	if cfg.LocalControl {
		t.Cflag |= unix.CLOCAL
	}
	if cfg.EnableReceiver {
		t.Cflag |= unix.CREAD
	}
	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ISIG
	t.Oflag &^= unix.OPOST

	t.Cc[unix.VMIN] = uint8(cfg.MinRead)
	vtime := cfg.ReadTimeout.Milliseconds() / 100
	if vtime > 255 {
		vtime = 255
	}
	t.Cc[unix.VTIME] = uint8(vtime)

	if err := setTermios(l.fd, &t); err != nil {
		return fmt.Errorf("set attributes: %w", err)
	}
	l.saved = old
	return nil
}

// Flush discards all bytes queued for input and output.
func (l *Line) Flush() error {
	if err := flushIO(l.fd); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Drain blocks until the output queue has been transmitted.
func (l *Line) Drain() error {
	if err := drain(l.fd); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

// ClearRTS lowers the RTS modem control line. RS-485 transceivers behind some
// adapters use RTS for transmit direction and need it held low.
func (l *Line) ClearRTS() error {
	var bits int
	err := ioctlRetry(func() error {
		var e error
		bits, e = unix.IoctlGetInt(l.fd, unix.TIOCMGET)
		return e
	})
	if err != nil {
		return fmt.Errorf("get modem bits: %w", err)
	}
	bits &^= unix.TIOCM_RTS
	if err := ioctlRetry(func() error {
		return unix.IoctlSetPointerInt(l.fd, unix.TIOCMSET, bits)
	}); err != nil {
		return fmt.Errorf("set modem bits: %w", err)
	}
	return nil
}

func (l *Line) Write(p []byte) (int, error) {
	return l.file.Write(p)
}

// Close restores the settings saved by Configure and releases the device.
func (l *Line) Close() error {
	if l.saved != nil {
		// Let pending frames reach the adapter before reconfiguring.
		_ = drain(l.fd)
		_ = setTermios(l.fd, l.saved)
		l.saved = nil
	}
	return l.file.Close()
}

// ioctlRetry reissues an ioctl interrupted by a signal.
func ioctlRetry(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}

func getTermios(fd int) (*unix.Termios, error) {
	var t *unix.Termios
	err := ioctlRetry(func() error {
		var e error
		t, e = unix.IoctlGetTermios(fd, ioctlGetAttr)
		return e
	})
	return t, err
}

func setTermios(fd int, t *unix.Termios) error {
	return ioctlRetry(func() error {
		return unix.IoctlSetTermios(fd, ioctlSetAttr, t)
	})
}
