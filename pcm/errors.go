package pcm

import "errors"

// Endpoint open errors
var (
	// ErrNotRequested is returned when the endpoint has no FIFO to open,
	// i.e. no local client asked for this direction of audio.
	ErrNotRequested = errors.New("pcm endpoint not requested")
	// ErrNoReader is returned when a write open gave up waiting for the
	// FIFO reader to appear.
	ErrNoReader = errors.New("pcm endpoint has no reader")
)

// I/O errors
var (
	// ErrClosed is returned by operations on a released endpoint.
	ErrClosed = errors.New("pcm endpoint closed")
)
