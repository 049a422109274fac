package sbc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/opd-ai/btaudio/codec"
)

// Decoder reconstructs interleaved s16le PCM from SBC or mSBC frames.
//
// Plain SBC frames are self-describing and decoded with the parameters of
// their own header. An mSBC decoder only accepts frames carrying the mSBC
// sync word.
type Decoder struct {
	cfg   Config
	state [2]synthesisState
}

// NewDecoder creates a decoder expecting streams of the given configuration.
func NewDecoder(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", codec.ErrInit, err)
	}
	return &Decoder{cfg: cfg}, nil
}

// InputUnitSize returns the expected frame length.
func (d *Decoder) InputUnitSize() int {
	return d.cfg.FrameLength()
}

// OutputFrameSize returns the PCM bytes produced per frame.
func (d *Decoder) OutputFrameSize() int {
	return d.cfg.CodeSize()
}

// Reset clears the filter history.
func (d *Decoder) Reset() {
	d.state = [2]synthesisState{}
}

// Close releases the decoder.
func (d *Decoder) Close() error {
	return nil
}

// Decode unpacks the frame at the start of in.
//
// Returns:
//   - consumed: Frame length in bytes
//   - written: PCM bytes stored in pcm
//   - error: codec.ErrDecode wrapping the cause, or codec.ErrShortBuffer
func (d *Decoder) Decode(in, pcm []byte) (int, int, error) {
	cfg, err := d.header(in)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", codec.ErrDecode, err)
	}

	frameLen := cfg.FrameLength()
	if len(in) < frameLen {
		return 0, 0, fmt.Errorf("%w: %w", codec.ErrDecode, ErrTruncated)
	}
	codeSize := cfg.CodeSize()
	if len(pcm) < codeSize {
		return 0, 0, codec.ErrShortBuffer
	}

	p := frameParams{cfg: cfg, channels: cfg.Channels()}
	m := cfg.Subbands

	r := bitReader{buf: in[:frameLen], pos: 32}
	if cfg.Mode == JointStereo {
		for sb := 0; sb < m; sb++ {
			p.join[sb] = r.read(1) == 1
		}
	}
	for ch := 0; ch < p.channels; ch++ {
		for sb := 0; sb < m; sb++ {
			p.sf[ch][sb] = int(r.read(4))
		}
	}
	if crc := frameCRC(in, p.sideBits()); crc != in[3] {
		return 0, 0, fmt.Errorf("%w: %w", codec.ErrDecode, ErrCRC)
	}

	p.allocate()

	fb := banks[m]
	var sbs [2][8]float64
	var out [8]float64
	for blk := 0; blk < cfg.Blocks; blk++ {
		for ch := 0; ch < p.channels; ch++ {
			for sb := 0; sb < m; sb++ {
				sbs[ch][sb] = 0
				if bits := p.bits[ch][sb]; bits > 0 {
					sbs[ch][sb] = dequantize(r.read(bits), p.sf[ch][sb], bits)
				}
			}
		}
		if cfg.Mode == JointStereo {
			for sb := 0; sb < m; sb++ {
				if p.join[sb] {
					mid, side := sbs[0][sb], sbs[1][sb]
					sbs[0][sb], sbs[1][sb] = mid+side, mid-side
				}
			}
		}
		for ch := 0; ch < p.channels; ch++ {
			d.state[ch].run(fb, sbs[ch][:m], out[:m])
			for i := 0; i < m; i++ {
				off := ((blk*m+i)*p.channels + ch) * 2
				binary.LittleEndian.PutUint16(pcm[off:], uint16(clip16(out[i])))
			}
		}
	}

	return frameLen, codeSize, nil
}

// header parses the frame header into a stream configuration.
func (d *Decoder) header(in []byte) (Config, error) {
	if len(in) < 4 {
		return Config{}, ErrTruncated
	}

	if d.cfg.MSBC {
		if in[0] != MSBCSyncWord {
			return Config{}, ErrSync
		}
		return d.cfg, nil
	}

	if in[0] != SyncWord {
		return Config{}, ErrSync
	}
	cfg := Config{
		Frequency:  Frequency(in[1] >> 6),
		Blocks:     4 * (int(in[1]>>4&0x03) + 1),
		Mode:       Mode(in[1] >> 2 & 0x03),
		Allocation: Allocation(in[1] >> 1 & 0x01),
		Subbands:   4 * (int(in[1]&0x01) + 1),
		Bitpool:    int(in[2]),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func clip16(x float64) int16 {
	x = math.Round(x)
	if x > math.MaxInt16 {
		return math.MaxInt16
	}
	if x < math.MinInt16 {
		return math.MinInt16
	}
	return int16(x)
}
