package bluez

import "errors"

var (
	// ErrUnsupportedCodec is returned for A2DP codecs without an I/O loop.
	ErrUnsupportedCodec = errors.New("bluez: unsupported codec")
	// ErrUnknownProfile is returned when the transport UUID names no
	// A2DP role.
	ErrUnknownProfile = errors.New("bluez: unknown transport profile")
	// ErrPropertyType is returned when a property has an unexpected type.
	ErrPropertyType = errors.New("bluez: unexpected property type")
)
