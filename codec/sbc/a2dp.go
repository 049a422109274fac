package sbc

import "fmt"

// A2DPConfigSize is the length of the SBC codec specific information
// element negotiated over AVDTP.
const A2DPConfigSize = 4

// ParseA2DP decodes a negotiated A2DP SBC configuration. Exactly one
// option is expected per field; the encoder runs at the maximum bitpool.
//
// Layout:
//
//	octet 0: sampling frequency (7..4) | channel mode (3..0)
//	octet 1: block length (7..4) | subbands (3..2) | allocation (1..0)
//	octet 2: minimum bitpool
//	octet 3: maximum bitpool
func ParseA2DP(blob []byte) (Config, error) {
	if len(blob) < A2DPConfigSize {
		return Config{}, fmt.Errorf("%w: configuration too short", ErrInvalidConfig)
	}

	var cfg Config
	var ok bool

	if cfg.Frequency, ok = pick(blob[0]>>4, []Frequency{Freq16000, Freq32000, Freq44100, Freq48000}); !ok {
		return Config{}, fmt.Errorf("%w: sampling frequency %#x", ErrInvalidConfig, blob[0]>>4)
	}
	if cfg.Mode, ok = pick(blob[0]&0x0f, []Mode{Mono, DualChannel, Stereo, JointStereo}); !ok {
		return Config{}, fmt.Errorf("%w: channel mode %#x", ErrInvalidConfig, blob[0]&0x0f)
	}
	if cfg.Blocks, ok = pick(blob[1]>>4, []int{4, 8, 12, 16}); !ok {
		return Config{}, fmt.Errorf("%w: block length %#x", ErrInvalidConfig, blob[1]>>4)
	}
	if cfg.Subbands, ok = pick((blob[1]>>2)&0x03, []int{4, 8}); !ok {
		return Config{}, fmt.Errorf("%w: subbands %#x", ErrInvalidConfig, (blob[1]>>2)&0x03)
	}
	if cfg.Allocation, ok = pick(blob[1]&0x03, []Allocation{SNR, Loudness}); !ok {
		return Config{}, fmt.Errorf("%w: allocation %#x", ErrInvalidConfig, blob[1]&0x03)
	}

	cfg.Bitpool = int(blob[3])
	if int(blob[2]) > cfg.Bitpool {
		return Config{}, fmt.Errorf("%w: min %d > max %d", ErrInvalidBitpool, blob[2], blob[3])
	}

	return cfg, cfg.Validate()
}

// Bytes encodes the configuration as an A2DP capability element with the
// given bitpool range.
func (c Config) Bytes(minBitpool int) []byte {
	blob := make([]byte, A2DPConfigSize)
	blob[0] = 0x80>>c.Frequency | 0x08>>c.Mode
	blob[1] = 0x80 >> (c.Blocks/4 - 1)
	if c.Subbands == 4 {
		blob[1] |= 0x08
	} else {
		blob[1] |= 0x04
	}
	if c.Allocation == SNR {
		blob[1] |= 0x02
	} else {
		blob[1] |= 0x01
	}
	blob[2] = byte(minBitpool)
	blob[3] = byte(c.Bitpool)
	return blob
}

// pick maps a one-hot field, most significant option first, to its value.
func pick[T any](field uint8, values []T) (T, bool) {
	var zero T
	n := len(values)
	for i, v := range values {
		if field == 1<<(n-1-i) {
			return v, true
		}
	}
	return zero, false
}
