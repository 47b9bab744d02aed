//go:build linux || darwin

package kwp

import (
	"golang.org/x/sys/unix"
)

// ttyBreak holds a second descriptor on the tty so the break condition can be
// toggled while tarm/serial owns the data path
type ttyBreak struct {
	fd int
}

func openBreakControl(path string) (breakControl, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	return &ttyBreak{fd: fd}, nil
}

func (t *ttyBreak) SetBreak(on bool) error {
	req := uint(unix.TIOCCBRK)
	if on {
		req = unix.TIOCSBRK
	}
	return unix.IoctlSetInt(t.fd, req, 0)
}

func (t *ttyBreak) Close() error {
	return unix.Close(t.fd)
}
