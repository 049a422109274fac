package iothread

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/btaudio/config"
)

// instantTime never advances and never sleeps, so paced loops run flat out.
type instantTime struct{}

func (instantTime) Now() time.Time       { return time.Unix(0, 0) }
func (instantTime) Sleep(d time.Duration) {}

const loopTimeout = 5 * time.Second

func quietLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.PCMOpenRetries = 1
	cfg.PCMOpenRetryDelay = 0
	return cfg
}

// socketPair returns both ends of a packet preserving local link.
func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	return fds[0], fds[1]
}

// fifo creates a named pipe for FIFO-backed endpoints.
func fifo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, unix.Mkfifo(path, 0o600))
	return path
}

// openFIFO opens the client side of a FIFO without waiting for the loop.
func openFIFO(t *testing.T, path string, mode int) int {
	t.Helper()
	fd, err := unix.Open(path, mode|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	require.NoError(t, err)
	return fd
}

func pipe(t *testing.T) (int, int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
	return p[0], p[1]
}

// pollIn waits for fd to become readable.
func pollIn(t *testing.T, fd int, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return false
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(left/time.Millisecond)+1)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		return n > 0
	}
}

// readPacket reads the next packet or chunk available on fd.
func readPacket(t *testing.T, fd int) []byte {
	t.Helper()
	require.True(t, pollIn(t, fd, loopTimeout), "nothing to read")
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		return buf[:n]
	}
}

// readFull reads exactly size bytes from a stream.
func readFull(t *testing.T, fd, size int) []byte {
	t.Helper()
	var out []byte
	for len(out) < size {
		require.True(t, pollIn(t, fd, loopTimeout), "short read: %d of %d", len(out), size)
		buf := make([]byte, size-len(out))
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		require.NotZero(t, n, "stream closed")
		out = append(out, buf[:n]...)
	}
	return out
}

func writeAll(t *testing.T, fd int, p []byte) {
	t.Helper()
	for len(p) > 0 {
		n, err := unix.Write(fd, p)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		p = p[n:]
	}
}

func waitThread(t *testing.T, th *Thread) error {
	t.Helper()
	select {
	case <-th.Done():
		return th.Wait()
	case <-time.After(loopTimeout):
		th.Cancel()
		t.Fatal("I/O loop did not exit")
		return nil
	}
}
