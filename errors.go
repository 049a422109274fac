package btaudio

import "errors"

// Engine errors
var (
	// ErrEngineClosed is returned by Start after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrAlreadyRunning is returned when a transport already has a loop.
	ErrAlreadyRunning = errors.New("transport already running")
	// ErrNotFound is returned for transports without a loop.
	ErrNotFound = errors.New("transport not running")
)
