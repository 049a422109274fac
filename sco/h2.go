package sco

import "github.com/opd-ai/btaudio/codec/sbc"

const (
	// H2Sync is the first byte of every H2 header.
	H2Sync = 0x01
	// H2HeaderLen is the size of the H2 synchronization header.
	H2HeaderLen = 2
	// PayloadLen is the size of the mSBC frame inside an H2 frame.
	PayloadLen = sbc.MSBCFrameLength
	// FrameLen is the size of a complete H2 frame, padding included.
	FrameLen = H2HeaderLen + PayloadLen + 1
	// PCMUnit is the number of PCM bytes carried by one frame.
	PCMUnit = sbc.MSBCCodeSize
)

// sequence maps the rolling frame number to the second header byte.
var sequence = [4]byte{0x08, 0x38, 0xc8, 0xf8}

// Sequence returns the second H2 header byte of frame number n.
func Sequence(n int) byte {
	return sequence[n&0x03]
}

// isHeader reports whether b starts with an H2 header followed by the
// mSBC sync word.
func isHeader(b []byte) bool {
	return len(b) > 2 && b[0] == H2Sync && b[1]&0x0f == 0x08 && b[2] == sbc.MSBCSyncWord
}
