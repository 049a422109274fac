// Package limits provides centralized transfer size limits for the Bluetooth
// audio I/O engine. This ensures consistent validation across the loops.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxMTU is the largest MTU BlueZ can report for a media transport.
	// MTUs travel as 16-bit values over D-Bus.
	MaxMTU = 0xffff

	// RTPHeaderLen is the size of an RTP fixed header without CSRC entries.
	RTPHeaderLen = 12

	// SBCPayloadHeaderLen is the size of the A2DP SBC payload descriptor.
	SBCPayloadHeaderLen = 1

	// MaxSBCFramesPerPacket is the largest frame count the 4-bit SBC
	// descriptor field can carry.
	MaxSBCFramesPerPacket = 15

	// SCOBufferSize is the size of the raw SCO receive buffer. It has to be
	// bigger than any SCO MTU seen in the wild.
	SCOBufferSize = 512
)

var (
	// ErrMTUInvalid indicates an MTU of zero or less.
	ErrMTUInvalid = errors.New("invalid MTU")

	// ErrMTUTooLarge indicates an MTU above MaxMTU.
	ErrMTUTooLarge = errors.New("MTU too large")
)

// ValidateReadMTU validates the reading MTU of a Bluetooth socket.
// A zero MTU would make every read return zero bytes, which is
// indistinguishable from the peer closing the connection.
func ValidateReadMTU(mtu int) error {
	if mtu <= 0 {
		return fmt.Errorf("%w: reading MTU %d", ErrMTUInvalid, mtu)
	}
	if mtu > MaxMTU {
		return fmt.Errorf("%w: reading MTU %d exceeds limit %d", ErrMTUTooLarge, mtu, MaxMTU)
	}
	return nil
}

// ValidateWriteMTU validates the writing MTU of a Bluetooth socket.
func ValidateWriteMTU(mtu int) error {
	if mtu <= 0 {
		return fmt.Errorf("%w: writing MTU %d", ErrMTUInvalid, mtu)
	}
	if mtu > MaxMTU {
		return fmt.Errorf("%w: writing MTU %d exceeds limit %d", ErrMTUTooLarge, mtu, MaxMTU)
	}
	return nil
}

// MinSBCWriteMTU returns the smallest writing MTU able to carry one SBC
// frame of the given length inside an RTP packet.
func MinSBCWriteMTU(frameLen int) int {
	return RTPHeaderLen + SBCPayloadHeaderLen + frameLen
}
