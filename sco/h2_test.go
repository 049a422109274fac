package sco

import (
	"bytes"
	"errors"
	"testing"

	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/codec/sbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEncoder maps a 240 byte PCM unit to a 57 byte frame carrying the
// first 56 PCM bytes behind the mSBC sync word.
type fakeEncoder struct {
	fail bool
}

func (fakeEncoder) InputUnitSize() int   { return PCMUnit }
func (fakeEncoder) OutputFrameSize() int { return PayloadLen }
func (fakeEncoder) Close() error         { return nil }

func (f fakeEncoder) Encode(pcm, out []byte) (int, int, error) {
	if len(pcm) < PCMUnit {
		return 0, 0, nil
	}
	if f.fail {
		return 0, 0, codec.ErrEncode
	}
	out[0] = sbc.MSBCSyncWord
	copy(out[1:PayloadLen], pcm[:PayloadLen-1])
	return PCMUnit, PayloadLen, nil
}

// fakeDecoder reverses fakeEncoder. Frames whose second byte is 0xee are
// rejected.
type fakeDecoder struct{}

func (fakeDecoder) InputUnitSize() int   { return PayloadLen }
func (fakeDecoder) OutputFrameSize() int { return PCMUnit }
func (fakeDecoder) Close() error         { return nil }

func (fakeDecoder) Decode(in, pcm []byte) (int, int, error) {
	if in[0] != sbc.MSBCSyncWord || in[1] == 0xee {
		return 0, 0, codec.ErrDecode
	}
	clear(pcm[:PCMUnit])
	copy(pcm, in[1:PayloadLen])
	return PayloadLen, PCMUnit, nil
}

func pcmUnit(n int) []byte {
	unit := make([]byte, PCMUnit)
	for i := 0; i < PayloadLen-1; i++ {
		unit[i] = byte(n*3 + i)
	}
	return unit
}

func encodeUnits(t *testing.T, n int) []byte {
	t.Helper()
	enc := NewH2Encoder(fakeEncoder{}, 0)
	var stream []byte
	for i := 0; i < n; i++ {
		_, err := enc.PCM().Write(pcmUnit(i))
		require.NoError(t, err)
		frames, err := enc.Encode()
		require.NoError(t, err)
		require.Equal(t, 1, frames)
		stream = append(stream, enc.Out().Bytes()...)
		enc.Out().Consume(enc.Out().Len())
	}
	return stream
}

func TestSequenceCycles(t *testing.T) {
	stream := encodeUnits(t, 9)
	want := []byte{0x08, 0x38, 0xc8, 0xf8}
	for i := 0; i < 9; i++ {
		frame := stream[i*FrameLen : (i+1)*FrameLen]
		assert.Equal(t, byte(H2Sync), frame[0])
		assert.Equal(t, want[i%4], frame[1], "frame %d", i)
		assert.Equal(t, byte(sbc.MSBCSyncWord), frame[2])
		assert.Zero(t, frame[FrameLen-1])
	}
}

func TestEncodeKeepsLeftoverPCM(t *testing.T) {
	enc := NewH2Encoder(fakeEncoder{}, 0)
	enc.PCM().Write(pcmUnit(0))
	enc.PCM().Write(pcmUnit(1)[:100])

	frames, err := enc.Encode()
	require.NoError(t, err)
	assert.Equal(t, 1, frames)
	assert.Equal(t, 100, enc.PCM().Len())
	assert.Equal(t, FrameLen, enc.Out().Len())
}

func TestEncodeStopsWhenOutputFull(t *testing.T) {
	enc := NewH2Encoder(fakeEncoder{}, 0)
	for !enc.Full() {
		for i := 0; i < encoderPCMUnits && enc.PCM().Free() >= PCMUnit; i++ {
			enc.PCM().Write(pcmUnit(i))
		}
		_, err := enc.Encode()
		require.NoError(t, err)
	}
	assert.Equal(t, encoderOutFrames*FrameLen, enc.Out().Len())

	frames, err := enc.Encode()
	require.NoError(t, err)
	assert.Zero(t, frames)
}

func TestEncodeFailureDropsUnit(t *testing.T) {
	enc := NewH2Encoder(fakeEncoder{fail: true}, 0)
	enc.PCM().Write(pcmUnit(0))
	_, err := enc.Encode()
	assert.ErrorIs(t, err, codec.ErrEncode)
	assert.Zero(t, enc.PCM().Len())
	assert.Zero(t, enc.Out().Len())
}

type chunkWriter struct {
	writes [][]byte
	fail   error
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.fail != nil {
		return 0, w.fail
	}
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func TestFlushPrebuffers(t *testing.T) {
	enc := NewH2Encoder(fakeEncoder{}, 1)
	w := &chunkWriter{}

	n, err := enc.Flush(w, 24, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	enc.PCM().Write(pcmUnit(0))
	enc.Encode()

	n, err = enc.Flush(w, 24, 0)
	require.NoError(t, err)
	assert.Equal(t, 48, n)
	require.Len(t, w.writes, 2)
	for _, chunk := range w.writes {
		assert.Len(t, chunk, 24)
	}
	assert.Equal(t, []byte{H2Sync, 0x08}, w.writes[0][:2])
	assert.Equal(t, 12, enc.Out().Len())

	// once started, partial chunks wait for more data
	n, err = enc.Flush(w, 24, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushLimit(t *testing.T) {
	enc := NewH2Encoder(fakeEncoder{}, 1)
	enc.PCM().Write(pcmUnit(0))
	enc.PCM().Write(pcmUnit(1))
	enc.Encode()

	w := &chunkWriter{}
	n, err := enc.Flush(w, 24, 30)
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	w.fail = errors.New("link down")
	_, err = enc.Flush(w, 24, 0)
	assert.ErrorIs(t, err, w.fail)

	_, err = enc.Flush(w, 0, 0)
	assert.Error(t, err)
}

func TestEncoderReset(t *testing.T) {
	enc := NewH2Encoder(fakeEncoder{}, 1)
	enc.PCM().Write(pcmUnit(0))
	enc.Encode()
	enc.Reset()

	assert.Zero(t, enc.Out().Len())
	assert.Zero(t, enc.PCM().Len())

	enc.PCM().Write(pcmUnit(0))
	enc.Encode()
	assert.Equal(t, byte(0x08), enc.Out().Bytes()[1])
}

func feed(t *testing.T, d *H2Decoder, data []byte) {
	t.Helper()
	n, err := d.Input().Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
}

func TestDecodeRoundTripWithGarbage(t *testing.T) {
	const frames = 3
	stream := encodeUnits(t, frames)
	garbage := []byte{0x00, 0x11, 0x22, 0x33, 0x44}
	partial := stream[:25]

	d := NewH2Decoder(fakeDecoder{})
	var out [][]byte
	emit := func(pcm []byte) error {
		out = append(out, append([]byte(nil), pcm...))
		return nil
	}

	data := append(append(append([]byte(nil), garbage...), stream...), partial...)
	for len(data) > 0 {
		n := min(len(data), d.Input().Free())
		feed(t, d, data[:n])
		data = data[n:]
		_, err := d.Decode(emit)
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(len(garbage)), d.Discarded())
	assert.Equal(t, uint64(frames), d.Frames())
	require.Len(t, out, frames)
	for i, pcm := range out {
		assert.Equal(t, pcmUnit(i), pcm, "unit %d", i)
	}
	assert.Equal(t, len(partial), d.Input().Len())

	// 7.5 ms of audio per frame
	assert.Equal(t, 22500, frames*sbc.MSBCConfig().FrameDuration())
}

func TestDecodeUnalignedChunks(t *testing.T) {
	stream := encodeUnits(t, 8)
	d := NewH2Decoder(fakeDecoder{})

	decoded := 0
	for i := 0; i < len(stream); i += 24 {
		feed(t, d, stream[i:min(i+24, len(stream))])
		n, err := d.Decode(nil)
		require.NoError(t, err)
		decoded += n
	}
	assert.Equal(t, 8, decoded)
	assert.Zero(t, d.Discarded())
	assert.Zero(t, d.Input().Len())
}

func TestDecodeErrorDropsBacklog(t *testing.T) {
	stream := encodeUnits(t, 2)
	stream[3] = 0xee

	d := NewH2Decoder(fakeDecoder{})
	feed(t, d, stream)

	n, err := d.Decode(nil)
	assert.ErrorIs(t, err, codec.ErrDecode)
	assert.Zero(t, n)
	assert.Zero(t, d.Input().Len())
}

func TestDecodeEmitError(t *testing.T) {
	stream := encodeUnits(t, 2)
	d := NewH2Decoder(fakeDecoder{})
	feed(t, d, stream)

	closed := errors.New("closed")
	n, err := d.Decode(func([]byte) error { return closed })
	assert.ErrorIs(t, err, closed)
	assert.Equal(t, 1, n)
	assert.Equal(t, FrameLen, d.Input().Len())
}

func TestDecodeWithMSBC(t *testing.T) {
	enc, err := sbc.NewEncoder(sbc.MSBCConfig())
	require.NoError(t, err)
	dec, err := sbc.NewDecoder(sbc.MSBCConfig())
	require.NoError(t, err)

	h2enc := NewH2Encoder(enc, 0)
	h2dec := NewH2Decoder(dec)
	for i := 0; i < 4; i++ {
		h2enc.PCM().Write(make([]byte, PCMUnit))
	}
	frames, err := h2enc.Encode()
	require.NoError(t, err)
	assert.Equal(t, 4, frames)

	feed(t, h2dec, h2enc.Out().Bytes())
	var pcm bytes.Buffer
	n, err := h2dec.Decode(func(p []byte) error {
		pcm.Write(p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, make([]byte, 4*PCMUnit), pcm.Bytes())
}
