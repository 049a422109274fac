package aac

import "fmt"

// ObjectType is the A2DP object type bit of the codec configuration.
type ObjectType uint8

// A2DP AAC object types.
const (
	MPEG2LC       ObjectType = 0x80
	MPEG4LC       ObjectType = 0x40
	MPEG4LTP      ObjectType = 0x20
	MPEG4Scalable ObjectType = 0x10
)

// A2DPConfigSize is the length of the AAC codec specific information
// element negotiated over AVDTP.
const A2DPConfigSize = 6

// SamplesPerFrame is the number of PCM frames in one AAC access unit.
const SamplesPerFrame = 1024

// sampleRates lists the A2DP frequency bits, most significant first.
var sampleRates = [...]int{
	8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100,
	48000, 64000, 88200, 96000,
}

// AAC sample rate index table (ISO 14496-3)
var mpeg4SampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

// Config is a negotiated A2DP AAC configuration.
type Config struct {
	ObjectType ObjectType
	SampleRate int
	Channels   int
	VBR        bool
	Bitrate    int
}

// ParseA2DP decodes a negotiated A2DP AAC configuration.
//
// Layout:
//
//	octet 0:    object type
//	octet 1-2:  sampling frequency (12 bits) | channels (2 bits) | rfa
//	octet 3-5:  VBR (1 bit) | bitrate (23 bits)
func ParseA2DP(blob []byte) (Config, error) {
	if len(blob) < A2DPConfigSize {
		return Config{}, fmt.Errorf("%w: configuration too short", ErrInvalidConfig)
	}

	var cfg Config
	for _, ot := range []ObjectType{MPEG2LC, MPEG4LC, MPEG4LTP, MPEG4Scalable} {
		if blob[0]&uint8(ot) != 0 {
			cfg.ObjectType = ot
			break
		}
	}
	if cfg.ObjectType == 0 {
		return Config{}, fmt.Errorf("%w: object type %#x", ErrInvalidConfig, blob[0])
	}

	freq := uint16(blob[1])<<4 | uint16(blob[2]>>4)
	for i, rate := range sampleRates {
		if freq&(0x800>>i) != 0 {
			cfg.SampleRate = rate
			break
		}
	}
	if cfg.SampleRate == 0 {
		return Config{}, fmt.Errorf("%w: sampling frequency %#x", ErrInvalidConfig, freq)
	}

	switch {
	case blob[2]&0x08 != 0:
		cfg.Channels = 1
	case blob[2]&0x04 != 0:
		cfg.Channels = 2
	default:
		return Config{}, fmt.Errorf("%w: channels %#x", ErrInvalidConfig, blob[2]&0x0c)
	}

	cfg.VBR = blob[3]&0x80 != 0
	cfg.Bitrate = int(blob[3]&0x7f)<<16 | int(blob[4])<<8 | int(blob[5])

	return cfg, nil
}

// Bytes encodes the configuration as an A2DP codec information element.
func (c Config) Bytes() []byte {
	blob := make([]byte, A2DPConfigSize)
	blob[0] = uint8(c.ObjectType)

	var freq uint16
	for i, rate := range sampleRates {
		if rate == c.SampleRate {
			freq = 0x800 >> i
		}
	}
	blob[1] = uint8(freq >> 4)
	blob[2] = uint8(freq&0x0f) << 4
	if c.Channels == 1 {
		blob[2] |= 0x08
	} else {
		blob[2] |= 0x04
	}

	blob[3] = uint8(c.Bitrate>>16) & 0x7f
	if c.VBR {
		blob[3] |= 0x80
	}
	blob[4] = uint8(c.Bitrate >> 8)
	blob[5] = uint8(c.Bitrate)
	return blob
}

// AudioObjectType returns the MPEG-4 audio object type of the configuration.
func (c Config) AudioObjectType() int {
	switch c.ObjectType {
	case MPEG4LTP:
		return 4
	case MPEG4Scalable:
		return 6
	}
	return 2
}

// SampleRateIndex returns the MPEG-4 sampling frequency index of rate,
// or 0x0f when the rate has no index.
func SampleRateIndex(rate int) int {
	for i, r := range mpeg4SampleRates {
		if r == rate {
			return i
		}
	}
	return 0x0f
}
