// Package codec defines the uniform contract of the audio codec engines
// driven by the transport I/O loops.
//
// SBC, mSBC and AAC have different native shapes, but each engine is wrapped
// so that a loop only ever sees an input unit size, an output frame size and
// a pair of pure transformations over caller-owned buffers. Engines never
// hold leftover bytes between calls; partial consumption is handled by the
// caller's working buffers.
package codec

import "errors"

// Codec engine errors
var (
	// ErrInit is returned when an engine cannot be configured.
	ErrInit = errors.New("codec initialization failed")
	// ErrEncode is returned when an encode step fails.
	ErrEncode = errors.New("codec encode failed")
	// ErrDecode is returned when a decode step fails.
	ErrDecode = errors.New("codec decode failed")
	// ErrUnavailable is returned when the engine was not built into this binary.
	ErrUnavailable = errors.New("codec not available")
	// ErrShortBuffer is returned when a caller buffer cannot hold one unit.
	ErrShortBuffer = errors.New("codec buffer too short")
)

// Encoder turns PCM into encoded frames.
type Encoder interface {
	// InputUnitSize returns the number of PCM bytes consumed per call.
	InputUnitSize() int
	// OutputFrameSize returns the maximum number of bytes produced per call.
	OutputFrameSize() int
	// Encode consumes at most one input unit from pcm and writes one frame
	// into out. A zero consumed count means pcm holds less than one unit.
	Encode(pcm, out []byte) (consumed, written int, err error)
	// Close releases the engine.
	Close() error
}

// Decoder turns encoded frames into PCM.
type Decoder interface {
	// InputUnitSize returns the encoded frame size the engine expects.
	InputUnitSize() int
	// OutputFrameSize returns the PCM bytes produced per decoded frame.
	OutputFrameSize() int
	// Decode consumes one encoded frame from in and writes PCM into pcm.
	Decode(in, pcm []byte) (consumed, written int, err error)
	// Close releases the engine.
	Close() error
}

// Identifiers of the codecs carried by the transports.
type ID uint8

// A2DP codec identifiers follow the assigned numbers, HFP ones are the
// values negotiated with +BCS.
const (
	SBC  ID = 0x00
	AAC  ID = 0x02
	CVSD ID = 0x01
	MSBC ID = 0x02
)

// A2DPName returns a printable name of an A2DP codec.
func A2DPName(id ID) string {
	switch id {
	case SBC:
		return "SBC"
	case AAC:
		return "AAC"
	}
	return "unknown"
}

// HFPName returns a printable name of an HFP codec.
func HFPName(id ID) string {
	switch id {
	case CVSD:
		return "CVSD"
	case MSBC:
		return "mSBC"
	}
	return "unknown"
}
