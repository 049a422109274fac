package transport

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Wakeup is an event counter that interrupts a blocking poll. Signals are
// batched: any number of Signal calls before a Drain wake the poll once.
type Wakeup struct {
	mu sync.RWMutex
	fd int
}

// NewWakeup creates a non-blocking eventfd.
func NewWakeup() (*Wakeup, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("create eventfd: %w", err)
	}
	return &Wakeup{fd: fd}, nil
}

// FD returns the descriptor to poll for readability.
func (w *Wakeup) FD() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fd
}

// Signal increments the counter.
func (w *Wakeup) Signal() error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.fd == -1 {
		return ErrWakeupClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(w.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		// EAGAIN means the counter is saturated, a wakeup is pending anyway
		if err != nil && err != unix.EAGAIN {
			return fmt.Errorf("signal eventfd: %w", err)
		}
		return nil
	}
}

// Drain resets the counter and returns the number of signals collected.
func (w *Wakeup) Drain() (uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.fd == -1 {
		return 0, ErrWakeupClosed
	}
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		switch err {
		case nil:
			return binary.NativeEndian.Uint64(buf[:]), nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, nil
		}
		return 0, fmt.Errorf("drain eventfd: %w", err)
	}
}

// Close releases the descriptor.
func (w *Wakeup) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fd == -1 {
		return nil
	}
	err := unix.Close(w.fd)
	w.fd = -1
	return err
}
