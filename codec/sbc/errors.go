package sbc

import "errors"

// Configuration errors
var (
	// ErrInvalidConfig is returned for parameter combinations the codec
	// cannot represent.
	ErrInvalidConfig = errors.New("sbc: invalid configuration")
	// ErrInvalidBitpool is returned when the bitpool is outside the range
	// allowed for the channel mode and subband count.
	ErrInvalidBitpool = errors.New("sbc: invalid bitpool")
)

// Frame errors
var (
	ErrSync      = errors.New("sbc: bad sync word")
	ErrCRC       = errors.New("sbc: crc mismatch")
	ErrTruncated = errors.New("sbc: truncated frame")
)
