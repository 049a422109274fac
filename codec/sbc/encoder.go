package sbc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/opd-ai/btaudio/codec"
)

// Encoder produces SBC or mSBC frames from interleaved s16le PCM.
type Encoder struct {
	cfg      Config
	fb       *filterBank
	frameLen int
	codeSize int
	state    [2]analysisState
	samples  [16][2][8]float64
}

// NewEncoder creates an encoder for the given stream configuration.
func NewEncoder(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", codec.ErrInit, err)
	}
	return &Encoder{
		cfg:      cfg,
		fb:       banks[cfg.Subbands],
		frameLen: cfg.FrameLength(),
		codeSize: cfg.CodeSize(),
	}, nil
}

// Config returns the stream configuration.
func (e *Encoder) Config() Config {
	return e.cfg
}

// InputUnitSize returns the PCM bytes consumed per frame.
func (e *Encoder) InputUnitSize() int {
	return e.codeSize
}

// OutputFrameSize returns the encoded frame length.
func (e *Encoder) OutputFrameSize() int {
	return e.frameLen
}

// Reset clears the filter history.
func (e *Encoder) Reset() {
	e.state = [2]analysisState{}
}

// Close releases the encoder.
func (e *Encoder) Close() error {
	return nil
}

// Encode packs one frame. It returns zero counts when pcm holds less than
// one code size worth of samples.
func (e *Encoder) Encode(pcm, out []byte) (int, int, error) {
	if len(pcm) < e.codeSize {
		return 0, 0, nil
	}
	if len(out) < e.frameLen {
		return 0, 0, codec.ErrShortBuffer
	}

	cfg := e.cfg
	m := cfg.Subbands
	nch := cfg.Channels()

	var in [8]float64
	for blk := 0; blk < cfg.Blocks; blk++ {
		for ch := 0; ch < nch; ch++ {
			for i := 0; i < m; i++ {
				off := ((blk*m+i)*nch + ch) * 2
				in[i] = float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
			}
			e.state[ch].run(e.fb, in[:m], e.samples[blk][ch][:m])
		}
	}

	p := frameParams{cfg: cfg, channels: nch}
	for ch := 0; ch < nch; ch++ {
		for sb := 0; sb < m; sb++ {
			p.sf[ch][sb] = scaleFactor(e.maxAbs(ch, sb))
		}
	}
	if cfg.Mode == JointStereo {
		e.joinSubbands(&p)
	}
	p.allocate()

	e.pack(&p, out[:e.frameLen])
	return e.codeSize, e.frameLen, nil
}

func (e *Encoder) maxAbs(ch, sb int) float64 {
	var mx float64
	for blk := 0; blk < e.cfg.Blocks; blk++ {
		mx = math.Max(mx, math.Abs(e.samples[blk][ch][sb]))
	}
	return mx
}

// joinSubbands switches subbands to mid/side coding when it needs smaller
// scale factors. The highest subband is never joined.
func (e *Encoder) joinSubbands(p *frameParams) {
	for sb := 0; sb < e.cfg.Subbands-1; sb++ {
		var maxM, maxS float64
		for blk := 0; blk < e.cfg.Blocks; blk++ {
			l, r := e.samples[blk][0][sb], e.samples[blk][1][sb]
			maxM = math.Max(maxM, math.Abs((l+r)/2))
			maxS = math.Max(maxS, math.Abs((l-r)/2))
		}
		sfM, sfS := scaleFactor(maxM), scaleFactor(maxS)
		if sfM+sfS >= p.sf[0][sb]+p.sf[1][sb] {
			continue
		}
		p.join[sb] = true
		p.sf[0][sb], p.sf[1][sb] = sfM, sfS
		for blk := 0; blk < e.cfg.Blocks; blk++ {
			l, r := e.samples[blk][0][sb], e.samples[blk][1][sb]
			e.samples[blk][0][sb] = (l + r) / 2
			e.samples[blk][1][sb] = (l - r) / 2
		}
	}
}

func (e *Encoder) pack(p *frameParams, frame []byte) {
	cfg := e.cfg
	clear(frame)

	if cfg.MSBC {
		frame[0] = MSBCSyncWord
	} else {
		frame[0] = SyncWord
		frame[1] = uint8(cfg.Frequency)<<6 | cfg.blocksField()<<4 |
			uint8(cfg.Mode)<<2 | uint8(cfg.Allocation)<<1 | cfg.subbandsField()
		frame[2] = uint8(cfg.Bitpool)
	}

	w := bitWriter{buf: frame, pos: 32}
	if cfg.Mode == JointStereo {
		for sb := 0; sb < cfg.Subbands; sb++ {
			if p.join[sb] {
				w.write(1, 1)
			} else {
				w.write(0, 1)
			}
		}
	}
	for ch := 0; ch < p.channels; ch++ {
		for sb := 0; sb < cfg.Subbands; sb++ {
			w.write(uint32(p.sf[ch][sb]), 4)
		}
	}

	for blk := 0; blk < cfg.Blocks; blk++ {
		for ch := 0; ch < p.channels; ch++ {
			for sb := 0; sb < cfg.Subbands; sb++ {
				bits := p.bits[ch][sb]
				if bits == 0 {
					continue
				}
				w.write(quantize(e.samples[blk][ch][sb], p.sf[ch][sb], bits), bits)
			}
		}
	}

	frame[3] = frameCRC(frame, p.sideBits())
}

// scaleFactor returns the smallest sf with |x| < 2^(sf+1), capped at 15.
func scaleFactor(maxAbs float64) int {
	sf := 0
	for sf < 15 && maxAbs >= float64(uint32(2)<<uint(sf)) {
		sf++
	}
	return sf
}

func quantize(x float64, sf, bits int) uint32 {
	levels := float64(uint32(1)<<uint(bits) - 1)
	scale := float64(uint32(2) << uint(sf))
	q := math.Floor((x/scale + 1) * levels / 2)
	if q < 0 {
		q = 0
	} else if q > levels-1 {
		q = levels - 1
	}
	return uint32(q)
}

func dequantize(q uint32, sf, bits int) float64 {
	levels := float64(uint32(1)<<uint(bits) - 1)
	scale := float64(uint32(2) << uint(sf))
	return scale * ((2*float64(q)+1)/levels - 1)
}
