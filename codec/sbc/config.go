package sbc

import "fmt"

// Frequency is the sampling frequency field of the frame header.
type Frequency uint8

// Sampling frequencies.
const (
	Freq16000 Frequency = iota
	Freq32000
	Freq44100
	Freq48000
)

// Mode is the channel mode field of the frame header.
type Mode uint8

// Channel modes.
const (
	Mono Mode = iota
	DualChannel
	Stereo
	JointStereo
)

// Allocation selects the bit allocation method.
type Allocation uint8

// Allocation methods.
const (
	Loudness Allocation = iota
	SNR
)

// Frame sync words.
const (
	SyncWord     = 0x9c
	MSBCSyncWord = 0xad
)

// mSBC parameters.
const (
	MSBCFrameLength = 57
	MSBCCodeSize    = 240
	MSBCBlocks      = 15
	MSBCBitpool     = 26
)

// Config describes one SBC stream.
type Config struct {
	Frequency  Frequency
	Blocks     int
	Mode       Mode
	Allocation Allocation
	Subbands   int
	Bitpool    int
	// MSBC selects the wideband speech framing: 0xAD sync word and
	// zeroed header fields.
	MSBC bool
}

// MSBCConfig returns the fixed configuration of wideband speech.
func MSBCConfig() Config {
	return Config{
		Frequency:  Freq16000,
		Blocks:     MSBCBlocks,
		Mode:       Mono,
		Allocation: Loudness,
		Subbands:   8,
		Bitpool:    MSBCBitpool,
		MSBC:       true,
	}
}

// SampleRate returns the sampling frequency in Hz.
func (c Config) SampleRate() int {
	switch c.Frequency {
	case Freq16000:
		return 16000
	case Freq32000:
		return 32000
	case Freq44100:
		return 44100
	}
	return 48000
}

// Channels returns the number of audio channels.
func (c Config) Channels() int {
	if c.Mode == Mono {
		return 1
	}
	return 2
}

// FrameLength returns the encoded frame size in bytes.
func (c Config) FrameLength() int {
	ch := c.Channels()
	n := 4 + (4*c.Subbands*ch)/8
	switch c.Mode {
	case Mono, DualChannel:
		n += (c.Blocks*ch*c.Bitpool + 7) / 8
	case Stereo:
		n += (c.Blocks*c.Bitpool + 7) / 8
	case JointStereo:
		n += (c.Subbands + c.Blocks*c.Bitpool + 7) / 8
	}
	return n
}

// CodeSize returns the number of s16le PCM bytes per frame.
func (c Config) CodeSize() int {
	return c.Blocks * c.Subbands * c.Channels() * 2
}

// FrameDuration returns the playback time of one frame in microseconds.
func (c Config) FrameDuration() int {
	return 1000000 * c.Blocks * c.Subbands / c.SampleRate()
}

// Validate checks that the parameters describe an encodable stream.
func (c Config) Validate() error {
	if c.Frequency > Freq48000 || c.Mode > JointStereo || c.Allocation > SNR {
		return ErrInvalidConfig
	}
	if c.Subbands != 4 && c.Subbands != 8 {
		return fmt.Errorf("%w: %d subbands", ErrInvalidConfig, c.Subbands)
	}
	switch c.Blocks {
	case 4, 8, 12, 16:
	case MSBCBlocks:
		if !c.MSBC {
			return fmt.Errorf("%w: %d blocks", ErrInvalidConfig, c.Blocks)
		}
	default:
		return fmt.Errorf("%w: %d blocks", ErrInvalidConfig, c.Blocks)
	}

	max := 16 * c.Subbands
	if c.Mode == Stereo || c.Mode == JointStereo {
		max = 32 * c.Subbands
	}
	if c.Bitpool < 2 || c.Bitpool > max || c.Bitpool > 250 {
		return fmt.Errorf("%w: %d", ErrInvalidBitpool, c.Bitpool)
	}

	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("sbc(%d Hz, %d blocks, %d subbands, mode %d, alloc %d, bitpool %d)",
		c.SampleRate(), c.Blocks, c.Subbands, c.Mode, c.Allocation, c.Bitpool)
}

func (c Config) blocksField() uint8 {
	return uint8(c.Blocks/4 - 1)
}

func (c Config) subbandsField() uint8 {
	if c.Subbands == 8 {
		return 1
	}
	return 0
}
