// Package limits provides centralized transfer size constants and validation
// functions for the Bluetooth audio I/O loops.
//
// # MTU Validation
//
// The loops refuse to start on a socket whose MTU is unset or out of range:
//
//	if err := limits.ValidateReadMTU(t.ReadMTU()); err != nil {
//	    // InitializationFailure
//	}
//
// # Wire Constants
//
//   - RTPHeaderLen (12 bytes): RTP fixed header, no CSRC list.
//   - SBCPayloadHeaderLen (1 byte): A2DP SBC media payload descriptor.
//   - MaxSBCFramesPerPacket (15): the descriptor's frame count is 4 bits wide.
//   - SCOBufferSize (512 bytes): raw SCO receive buffer, larger than any SCO MTU.
package limits
