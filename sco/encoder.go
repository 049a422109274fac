package sco

import (
	"fmt"
	"io"

	"github.com/opd-ai/btaudio/buffer"
	"github.com/opd-ai/btaudio/codec"
)

// Buffer capacities in units of PCM input and H2 frames.
const (
	encoderPCMUnits  = 4
	encoderOutFrames = 6
)

// H2Encoder packs PCM into H2 framed mSBC.
//
// PCM is appended to the PCM queue by the caller; Encode turns every
// complete input unit into one H2 frame for as long as the output queue
// has room; Flush drains the output queue in link sized chunks.
type H2Encoder struct {
	enc         codec.Encoder
	pcm         *buffer.Queue
	out         *buffer.Queue
	seq         int
	prebuffer   int
	prebuffered bool
	frames      uint64
}

// NewH2Encoder wraps an mSBC encoder. No data is flushed until
// prebufferFrames complete frames were produced.
func NewH2Encoder(enc codec.Encoder, prebufferFrames int) *H2Encoder {
	if prebufferFrames < 0 {
		prebufferFrames = 0
	}
	return &H2Encoder{
		enc:       enc,
		pcm:       buffer.New(encoderPCMUnits * enc.InputUnitSize()),
		out:       buffer.New(encoderOutFrames * FrameLen),
		prebuffer: min(prebufferFrames, encoderOutFrames),
	}
}

// PCM returns the PCM input queue.
func (e *H2Encoder) PCM() *buffer.Queue {
	return e.pcm
}

// Out returns the queue of encoded H2 frames.
func (e *H2Encoder) Out() *buffer.Queue {
	return e.out
}

// Frames returns the number of frames produced.
func (e *H2Encoder) Frames() uint64 {
	return e.frames
}

// Full reports whether no more PCM should be read until the output queue
// was flushed.
func (e *H2Encoder) Full() bool {
	return e.out.Free() < FrameLen || e.pcm.Free() == 0
}

// Encode converts complete PCM units into H2 frames.
//
// Returns the number of frames produced. An encoder failure drops the PCM
// unit that caused it and stops the current run.
func (e *H2Encoder) Encode() (int, error) {
	unit := e.enc.InputUnitSize()
	produced := 0

	for e.out.Free() >= FrameLen && e.pcm.Len() >= unit {
		frame := e.out.Tail()[:FrameLen]
		consumed, written, err := e.enc.Encode(e.pcm.Bytes(), frame[H2HeaderLen:H2HeaderLen+PayloadLen])
		if err != nil {
			e.pcm.Consume(unit)
			return produced, fmt.Errorf("h2 encode: %w", err)
		}
		if consumed == 0 {
			break
		}

		frame[0] = H2Sync
		frame[1] = Sequence(e.seq)
		e.seq = (e.seq + 1) & 0x03
		clear(frame[H2HeaderLen+written:])

		e.out.Commit(FrameLen)
		e.pcm.Consume(consumed)
		e.frames++
		produced++
	}

	return produced, nil
}

// Flush writes whole chunks of encoded data to w, at most limit bytes
// when limit is positive. A write that transfers nothing ends the flush
// without an error.
//
// Nothing is written until the prebuffer was filled once.
func (e *H2Encoder) Flush(w io.Writer, chunk, limit int) (int, error) {
	if chunk <= 0 {
		return 0, fmt.Errorf("h2 flush: invalid chunk size %d", chunk)
	}
	if !e.prebuffered {
		if e.out.Len() < max(e.prebuffer*FrameLen, chunk) {
			return 0, nil
		}
		e.prebuffered = true
	}

	total := 0
	for e.out.Len() >= chunk && (limit <= 0 || total+chunk <= limit) {
		n, err := w.Write(e.out.Bytes()[:chunk])
		if n > 0 {
			e.out.Consume(n)
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}

	return total, nil
}

// Reset drops all queued data and restarts the sequence and prebuffering.
func (e *H2Encoder) Reset() {
	e.pcm.Reset()
	e.out.Reset()
	e.seq = 0
	e.prebuffered = false
}
