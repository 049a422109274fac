package iothread

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Indexes into the poll set. The wakeup is always first.
const (
	pollWakeup = iota
	pollData
	pollPCM
)

// wait blocks until one of fds is ready. Negative descriptors are
// ignored by poll(2).
func wait(fds []unix.PollFd) error {
	for i := range fds {
		fds[i].Revents = 0
	}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPoll, err)
		}
		return nil
	}
}

func ready(fd unix.PollFd) bool {
	return fd.Fd >= 0 && fd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
}

// transient reports errors after which the same call may simply be
// retried later.
func transient(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}

// disconnected reports errors meaning the remote end of a socket is gone.
func disconnected(err error) bool {
	for _, errno := range []unix.Errno{
		unix.ECONNRESET, unix.ENOTCONN, unix.ECONNABORTED, unix.ETIMEDOUT, unix.EPIPE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// readLink performs one read on a Bluetooth socket. A zero count with a
// nil error means the peer closed the socket.
func readLink(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// writeLink sends one packet on a Bluetooth socket.
func writeLink(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// linkWriter adapts a non-blocking socket to io.Writer: a full socket
// buffer writes nothing without an error.
type linkWriter int

func (w linkWriter) Write(p []byte) (int, error) {
	n, err := writeLink(int(w), p)
	if err == unix.EAGAIN {
		return 0, nil
	}
	if err != nil {
		if disconnected(err) {
			return 0, fmt.Errorf("%w: %w", ErrLinkClosed, err)
		}
		return 0, err
	}
	return n, nil
}
