package sco

import (
	"fmt"

	"github.com/opd-ai/btaudio/buffer"
	"github.com/opd-ai/btaudio/codec"
)

// decoderInFrames is the capacity of the link input queue in H2 frames.
const decoderInFrames = 4

// H2Decoder finds H2 frames in the raw link byte stream and decodes them.
type H2Decoder struct {
	dec       codec.Decoder
	in        *buffer.Queue
	pcm       []byte
	frames    uint64
	discarded uint64
}

// NewH2Decoder wraps an mSBC decoder.
func NewH2Decoder(dec codec.Decoder) *H2Decoder {
	return &H2Decoder{
		dec: dec,
		in:  buffer.New(decoderInFrames * FrameLen),
		pcm: make([]byte, dec.OutputFrameSize()),
	}
}

// Input returns the queue link data is read into.
func (d *H2Decoder) Input() *buffer.Queue {
	return d.in
}

// Frames returns the number of frames decoded.
func (d *H2Decoder) Frames() uint64 {
	return d.frames
}

// Discarded returns the number of bytes skipped while searching for frame
// boundaries.
func (d *H2Decoder) Discarded() uint64 {
	return d.discarded
}

// Decode scans the input queue and decodes every complete H2 frame,
// passing the PCM to emit. A nil emit drops the decoded audio.
//
// Bytes before a frame header are skipped one at a time. When the codec
// rejects a frame the whole queued backlog is dropped and the error is
// returned, so decoding resumes from fresh link data.
func (d *H2Decoder) Decode(emit func(pcm []byte) error) (int, error) {
	decoded := 0

	for d.in.Len() >= FrameLen {
		b := d.in.Bytes()
		if !isHeader(b) {
			d.in.Consume(1)
			d.discarded++
			continue
		}

		_, written, err := d.dec.Decode(b[H2HeaderLen:H2HeaderLen+PayloadLen], d.pcm)
		if err != nil {
			d.in.Reset()
			return decoded, fmt.Errorf("h2 decode: %w", err)
		}
		d.in.Consume(FrameLen)
		d.frames++
		decoded++

		if emit != nil {
			if err := emit(d.pcm[:written]); err != nil {
				return decoded, err
			}
		}
	}

	return decoded, nil
}

// Reset drops buffered link data.
func (d *H2Decoder) Reset() {
	d.in.Reset()
}
