package iothread

import "errors"

var (
	// ErrInit wraps every failure that prevents a loop from starting:
	// a missing socket, a bad MTU, an unusable codec configuration.
	ErrInit = errors.New("I/O loop initialization failed")
	// ErrUnsupportedProfile is returned for transports no loop serves.
	ErrUnsupportedProfile = errors.New("unsupported transport profile")
	// ErrLinkClosed is returned when the Bluetooth socket is gone.
	ErrLinkClosed = errors.New("bluetooth link closed")
	// ErrPCMClosed is returned when no PCM endpoint is left to serve.
	ErrPCMClosed = errors.New("pcm endpoint closed")
	// ErrPoll is returned when waiting for events fails.
	ErrPoll = errors.New("transport poll failed")
)
