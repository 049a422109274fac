package transport

import "errors"

var (
	// ErrNoLink is returned when the transport has no Bluetooth socket.
	ErrNoLink = errors.New("transport has no link")
	// ErrNoAcquire is returned when the link cannot be acquired on demand.
	ErrNoAcquire = errors.New("transport link cannot be acquired")
	// ErrWakeupClosed is returned when signalling a closed wakeup.
	ErrWakeupClosed = errors.New("wakeup closed")
)
