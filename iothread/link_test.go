package iothread

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		transient    bool
		disconnected bool
	}{
		{"interrupted", unix.EINTR, true, false},
		{"would block", unix.EAGAIN, true, false},
		{"reset", unix.ECONNRESET, false, true},
		{"not connected", unix.ENOTCONN, false, true},
		{"aborted", unix.ECONNABORTED, false, true},
		{"timed out", unix.ETIMEDOUT, false, true},
		{"broken pipe", unix.EPIPE, false, true},
		{"wrapped reset", fmt.Errorf("read: %w", unix.ECONNRESET), false, true},
		{"bad descriptor", unix.EBADF, false, false},
		{"other", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, transient(tt.err))
			assert.Equal(t, tt.disconnected, disconnected(tt.err))
		})
	}
}

func TestReady(t *testing.T) {
	assert.True(t, ready(unix.PollFd{Fd: 3, Revents: unix.POLLIN}))
	assert.True(t, ready(unix.PollFd{Fd: 3, Revents: unix.POLLHUP}))
	assert.True(t, ready(unix.PollFd{Fd: 3, Revents: unix.POLLERR}))
	assert.False(t, ready(unix.PollFd{Fd: 3, Revents: unix.POLLOUT}))
	assert.False(t, ready(unix.PollFd{Fd: -1, Revents: unix.POLLIN}))
}

func TestLinkWriter(t *testing.T) {
	a, b := socketPair(t)
	defer unix.Close(a)
	require.NoError(t, unix.SetNonblock(a, true))

	w := linkWriter(a)
	n, err := w.Write([]byte("packet"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte("packet"), readPacket(t, b))

	t.Run("full socket writes nothing", func(t *testing.T) {
		chunk := make([]byte, 1024)
		for {
			n, err := w.Write(chunk)
			require.NoError(t, err)
			if n == 0 {
				break
			}
		}
	})

	t.Run("closed peer", func(t *testing.T) {
		require.NoError(t, unix.Close(b))
		_, err := w.Write([]byte("late"))
		assert.ErrorIs(t, err, ErrLinkClosed)
	})
}
