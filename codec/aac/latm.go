package aac

import (
	"bytes"
	"fmt"
)

// StreamMuxConfig is the subset of the LATM stream configuration used by
// A2DP: a single program with a single layer.
type StreamMuxConfig struct {
	AudioMuxVersion   int
	NumSubFrames      int
	AudioSpecificConf []byte
	ObjectType        int
	SampleRate        int
	ChannelConfig     int
	OtherDataBits     int
	otherDataPresent  bool
}

// LATMParser parses AudioMuxElements with muxConfigPresent set. It keeps
// the last stream configuration so elements with useSameStreamMux can be
// decoded.
type LATMParser struct {
	config *StreamMuxConfig
}

// Config returns the last received stream configuration, or nil.
func (p *LATMParser) Config() *StreamMuxConfig {
	return p.config
}

// Reset forgets the stream configuration.
func (p *LATMParser) Reset() {
	p.config = nil
}

// Parse decodes one AudioMuxElement and returns the access units it
// carries, one per sub-frame.
//
// Returns:
//   - [][]byte: Raw AAC access units
//   - bool: Whether the element carried a new stream configuration
//   - error: ErrTruncatedLATM, ErrInvalidLATM, ErrUnsupportedLATM or ErrNoConfig
func (p *LATMParser) Parse(data []byte) ([][]byte, bool, error) {
	r := &bitReader{buf: data}

	changed := false
	useSameStreamMux := r.read(1)
	if r.err != nil {
		return nil, false, r.err
	}
	if useSameStreamMux == 0 {
		cfg, err := parseStreamMuxConfig(r)
		if err != nil {
			return nil, false, err
		}
		if p.config == nil || !bytes.Equal(p.config.AudioSpecificConf, cfg.AudioSpecificConf) {
			changed = true
		}
		p.config = cfg
	}
	if p.config == nil {
		return nil, false, ErrNoConfig
	}

	units := make([][]byte, 0, p.config.NumSubFrames+1)
	for i := 0; i <= p.config.NumSubFrames; i++ {
		length := 0
		for {
			tmp := int(r.read(8))
			length += tmp
			if tmp != 255 || r.err != nil {
				break
			}
		}
		au := r.bytes(length)
		if r.err != nil {
			return nil, changed, fmt.Errorf("%w: payload of %d bytes", r.err, length)
		}
		units = append(units, au)
	}

	return units, changed, nil
}

func latmGetValue(r *bitReader) int {
	n := int(r.read(2))
	v := 0
	for i := 0; i <= n; i++ {
		v = v<<8 | int(r.read(8))
	}
	return v
}

func parseStreamMuxConfig(r *bitReader) (*StreamMuxConfig, error) {
	cfg := &StreamMuxConfig{}

	cfg.AudioMuxVersion = int(r.read(1))
	if cfg.AudioMuxVersion == 1 {
		if r.read(1) != 0 {
			return nil, fmt.Errorf("%w: audioMuxVersionA", ErrUnsupportedLATM)
		}
		latmGetValue(r) // taraBufferFullness
	}

	if r.read(1) != 1 {
		return nil, fmt.Errorf("%w: streams not time aligned", ErrUnsupportedLATM)
	}
	cfg.NumSubFrames = int(r.read(6))
	if r.read(4) != 0 {
		return nil, fmt.Errorf("%w: multiple programs", ErrUnsupportedLATM)
	}
	if r.read(3) != 0 {
		return nil, fmt.Errorf("%w: multiple layers", ErrUnsupportedLATM)
	}

	ascLen := 0
	if cfg.AudioMuxVersion == 1 {
		ascLen = latmGetValue(r)
	}
	start := r.pos
	if err := parseAudioSpecificConfig(r, cfg); err != nil {
		return nil, err
	}
	end := r.pos
	if r.err != nil {
		return nil, r.err
	}
	cfg.AudioSpecificConf = r.copyBits(start, end)
	if cfg.AudioMuxVersion == 1 {
		if ascLen < end-start {
			return nil, fmt.Errorf("%w: config length %d", ErrInvalidLATM, ascLen)
		}
		r.skip(ascLen - (end - start))
	}

	if frameLengthType := r.read(3); frameLengthType != 0 {
		return nil, fmt.Errorf("%w: frame length type %d", ErrUnsupportedLATM, frameLengthType)
	}
	r.read(8) // latmBufferFullness

	cfg.otherDataPresent = r.read(1) == 1
	if cfg.otherDataPresent {
		if cfg.AudioMuxVersion == 1 {
			cfg.OtherDataBits = latmGetValue(r)
		} else {
			for {
				esc := r.read(1)
				cfg.OtherDataBits = cfg.OtherDataBits<<8 | int(r.read(8))
				if esc == 0 || r.err != nil {
					break
				}
			}
		}
	}
	if r.read(1) == 1 {
		r.read(8) // crcCheckSum
	}

	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// parseAudioSpecificConfig reads a General Audio AudioSpecificConfig.
func parseAudioSpecificConfig(r *bitReader, cfg *StreamMuxConfig) error {
	aot := int(r.read(5))
	if aot == 31 {
		aot = 32 + int(r.read(6))
	}
	cfg.ObjectType = aot

	idx := int(r.read(4))
	if idx == 0x0f {
		cfg.SampleRate = int(r.read(24))
	} else if idx < len(mpeg4SampleRates) {
		cfg.SampleRate = mpeg4SampleRates[idx]
	} else {
		return fmt.Errorf("%w: sampling frequency index %d", ErrInvalidLATM, idx)
	}
	cfg.ChannelConfig = int(r.read(4))

	switch aot {
	case 1, 2, 3, 4, 6, 7:
	default:
		return fmt.Errorf("%w: audio object type %d", ErrUnsupportedLATM, aot)
	}
	if cfg.ChannelConfig == 0 {
		return fmt.Errorf("%w: program config element", ErrUnsupportedLATM)
	}

	// GASpecificConfig
	r.read(1) // frameLengthFlag
	if r.read(1) == 1 {
		r.read(14) // coreCoderDelay
	}
	extension := r.read(1)
	if aot == 6 || aot == 20 {
		r.read(3) // layerNr
	}
	if extension == 1 {
		r.read(1) // extensionFlag3
	}

	return r.err
}
