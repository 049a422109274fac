package pcm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Endpoint is a FIFO-backed PCM stream in a single direction.
//
// The descriptor is owned by the endpoint. An I/O loop is the exclusive
// reader or writer once the endpoint is open; Release may be called from any
// goroutine.
type Endpoint struct {
	mu   sync.Mutex
	path string
	fd   int
}

// NewEndpoint creates a closed endpoint for the FIFO at path. An empty path
// describes an endpoint that no client requested.
func NewEndpoint(path string) *Endpoint {
	return &Endpoint{path: path, fd: -1}
}

// NewEndpointFD wraps an already open descriptor.
func NewEndpointFD(fd int) *Endpoint {
	return &Endpoint{fd: fd}
}

// Path returns the FIFO path.
func (e *Endpoint) Path() string {
	return e.path
}

// FD returns the descriptor, or -1 when the endpoint is closed.
func (e *Endpoint) FD() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fd
}

// Closed reports whether the endpoint is released.
func (e *Endpoint) Closed() bool {
	return e.FD() == -1
}

// OpenRead opens the FIFO for reading. The open does not wait for a
// writer and the descriptor stays non-blocking: callers poll it for
// POLLIN, which is raised once a writer connected and sent data, before
// reading. A FIFO whose writer never connected reports no POLLHUP.
func (e *Endpoint) OpenRead() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fd != -1 {
		return nil
	}
	if e.path == "" {
		return ErrNotRequested
	}

	for {
		fd, err := unix.Open(e.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("open %s for reading: %w", e.path, err)
		}
		e.fd = fd
		break
	}

	logrus.WithFields(logrus.Fields{
		"function": "Endpoint.OpenRead",
		"path":     e.path,
		"fd":       e.fd,
	}).Debug("Opened PCM endpoint for reading")

	return nil
}

// OpenWrite opens the FIFO for writing.
//
// A non-blocking open of a FIFO without a reader fails with ENXIO. The open
// is retried up to retries times, delay apart, so the reader has a chance
// to connect. Once open the descriptor is switched back to blocking mode.
//
// Parameters:
//   - retries: Number of open attempts, at least one is made
//   - delay: Pause between attempts
//
// Returns:
//   - error: ErrNotRequested, ErrNoReader or the open failure
func (e *Endpoint) OpenWrite(retries int, delay time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fd != -1 {
		return nil
	}
	if e.path == "" {
		return ErrNotRequested
	}
	if retries < 1 {
		retries = 1
	}

	var fd int
	var err error
	for i := 0; i < retries; i++ {
		fd, err = unix.Open(e.path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			break
		}
		if err != unix.ENXIO && err != unix.EINTR {
			return fmt.Errorf("open %s for writing: %w", e.path, err)
		}
		if i+1 < retries {
			time.Sleep(delay)
		}
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Endpoint.OpenWrite",
			"path":     e.path,
			"retries":  retries,
		}).Debug("PCM reader did not connect")
		return ErrNoReader
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set blocking mode: %w", err)
	}
	e.fd = fd

	logrus.WithFields(logrus.Fields{
		"function": "Endpoint.OpenWrite",
		"path":     e.path,
		"fd":       e.fd,
	}).Debug("Opened PCM endpoint for writing")

	return nil
}

// Read fills p completely.
//
// Returns len(p) on success. When the other side closed the stream the
// endpoint is released and Read returns 0 with a nil error; bytes already
// collected from a partial transfer are discarded with it.
func (e *Endpoint) Read(p []byte) (int, error) {
	fd := e.FD()
	if fd == -1 {
		return 0, ErrClosed
	}

	n := 0
	for n < len(p) {
		r, err := unix.Read(fd, p[n:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			if err := waitFD(fd, unix.POLLIN); err != nil {
				return 0, err
			}
			continue
		case err == unix.EBADF, err == nil && r == 0:
			e.released("Endpoint.Read")
			return 0, nil
		case err != nil:
			return 0, fmt.Errorf("pcm read: %w", err)
		}
		n += r
	}

	return n, nil
}

// ReadSome performs a single read into p. It does not wait for the buffer
// to fill, and returns 0 with a nil error when nothing is available on a
// non-blocking descriptor. Closure is reported as for Read, the caller
// tells the two apart with Closed.
func (e *Endpoint) ReadSome(p []byte) (int, error) {
	fd := e.FD()
	if fd == -1 {
		return 0, ErrClosed
	}

	for {
		r, err := unix.Read(fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, nil
		case err == unix.EBADF, err == nil && r == 0 && len(p) > 0:
			e.released("Endpoint.ReadSome")
			return 0, nil
		case err != nil:
			return 0, fmt.Errorf("pcm read: %w", err)
		}
		return r, nil
	}
}

// Write transfers p completely.
//
// A broken pipe means the reader closed the FIFO: the endpoint is released
// and Write returns 0 with a nil error.
func (e *Endpoint) Write(p []byte) (int, error) {
	fd := e.FD()
	if fd == -1 {
		return 0, ErrClosed
	}

	n := 0
	for n < len(p) {
		w, err := unix.Write(fd, p[n:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			if err := waitFD(fd, unix.POLLOUT); err != nil {
				return 0, err
			}
			continue
		case err == unix.EPIPE, err == unix.EBADF:
			e.released("Endpoint.Write")
			return 0, nil
		case err != nil:
			return 0, fmt.Errorf("pcm write: %w", err)
		}
		n += w
	}

	return n, nil
}

// SetNonblock switches the descriptor's blocking mode.
func (e *Endpoint) SetNonblock(nonblocking bool) error {
	fd := e.FD()
	if fd == -1 {
		return ErrClosed
	}
	return unix.SetNonblock(fd, nonblocking)
}

// Release closes the descriptor. It is safe to call more than once.
func (e *Endpoint) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fd == -1 {
		return nil
	}
	err := unix.Close(e.fd)
	e.fd = -1
	if err != nil && !errors.Is(err, unix.EBADF) {
		return fmt.Errorf("pcm close: %w", err)
	}
	return nil
}

func (e *Endpoint) released(function string) {
	logrus.WithFields(logrus.Fields{
		"function": function,
		"path":     e.path,
	}).Debug("PCM endpoint closed by peer")
	e.Release()
}

func waitFD(fd int, events int16) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("pcm poll: %w", err)
		}
		return nil
	}
}
