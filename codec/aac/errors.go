package aac

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for malformed A2DP AAC configurations.
	ErrInvalidConfig = errors.New("aac: invalid configuration")
	// ErrInvalidLATM is returned when an AudioMuxElement cannot be parsed.
	ErrInvalidLATM = errors.New("aac: invalid LATM element")
	// ErrTruncatedLATM is returned when an element ends before the
	// lengths it declares, e.g. while RTP fragments are still missing.
	ErrTruncatedLATM = fmt.Errorf("%w: element truncated", ErrInvalidLATM)
	// ErrUnsupportedLATM is returned for valid LATM features this package
	// does not implement, such as multiple programs or layers.
	ErrUnsupportedLATM = errors.New("aac: unsupported LATM stream")
	// ErrNoConfig is returned when a mux element reuses a stream
	// configuration that was never received.
	ErrNoConfig = errors.New("aac: stream configuration not received")
)
