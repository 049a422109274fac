package rtp

import "errors"

// Packetizer errors
var (
	// ErrBufferTooSmall is returned when the destination cannot hold the packet.
	ErrBufferTooSmall = errors.New("rtp: buffer too small")
	// ErrMTUTooSmall is returned when the MTU leaves no room for payload.
	ErrMTUTooSmall = errors.New("rtp: mtu too small")
	// ErrTooManyFrames is returned when a frame count does not fit the
	// 4 bit media header field.
	ErrTooManyFrames = errors.New("rtp: too many frames")
)

// Depacketizer errors
var (
	// ErrUnsupportedPayloadType is returned for packets not carrying type 96.
	ErrUnsupportedPayloadType = errors.New("rtp: unsupported payload type")
	// ErrMalformed is returned for packets too short to parse.
	ErrMalformed = errors.New("rtp: malformed packet")
)
