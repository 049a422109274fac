package aac

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/btaudio/codec"
	"github.com/sirupsen/logrus"
)

// Decoder turns LATM AudioMuxElements into interleaved s16le PCM.
type Decoder struct {
	cfg      Config
	latm     LATMParser
	newLib   func() *engine
	lib      *engine
	rate     int
	channels int
}

// NewDecoder creates a decoder for a negotiated A2DP configuration. The
// underlying engine is initialized from the first in-band stream
// configuration.
func NewDecoder(cfg Config) (*Decoder, error) {
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("%w: %d channels", codec.ErrInit, cfg.Channels)
	}
	return &Decoder{
		cfg:      cfg,
		newLib:   newGoAAC,
		rate:     cfg.SampleRate,
		channels: cfg.Channels,
	}, nil
}

// InputUnitSize returns 0: mux elements have variable length.
func (d *Decoder) InputUnitSize() int {
	return 0
}

// OutputFrameSize returns the PCM bytes of one access unit.
func (d *Decoder) OutputFrameSize() int {
	return SamplesPerFrame * d.channels * 2
}

// SampleRate returns the decoded sampling frequency.
func (d *Decoder) SampleRate() int {
	return d.rate
}

// Channels returns the decoded channel count.
func (d *Decoder) Channels() int {
	return d.channels
}

// Decode parses one complete AudioMuxElement from in and decodes its
// access units into pcm. The whole input is consumed on success.
func (d *Decoder) Decode(in, pcm []byte) (int, int, error) {
	units, changed, err := d.latm.Parse(in)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", codec.ErrDecode, err)
	}

	if changed || d.lib == nil {
		if err := d.configure(); err != nil {
			return 0, 0, err
		}
	}

	written := 0
	for _, au := range units {
		samples, err := d.lib.decode(au)
		if err != nil {
			return 0, written, fmt.Errorf("%w: %w", codec.ErrDecode, err)
		}
		if written+2*len(samples) > len(pcm) {
			return 0, written, codec.ErrShortBuffer
		}
		for _, s := range samples {
			binary.LittleEndian.PutUint16(pcm[written:], uint16(s))
			written += 2
		}
	}

	return len(in), written, nil
}

func (d *Decoder) configure() error {
	if d.lib != nil {
		d.lib.close()
	}
	d.lib = d.newLib()

	asc := d.latm.Config().AudioSpecificConf
	rate, channels, err := d.lib.init(asc)
	if err != nil {
		d.lib.close()
		d.lib = nil
		return fmt.Errorf("%w: %w", codec.ErrDecode, err)
	}

	if rate != d.cfg.SampleRate || channels != d.cfg.Channels {
		logrus.WithFields(logrus.Fields{
			"function":            "Decoder.configure",
			"rate":                rate,
			"channels":            channels,
			"negotiated_rate":     d.cfg.SampleRate,
			"negotiated_channels": d.cfg.Channels,
		}).Warn("AAC stream differs from negotiated configuration")
	}
	d.rate, d.channels = rate, channels

	logrus.WithFields(logrus.Fields{
		"function": "Decoder.configure",
		"rate":     rate,
		"channels": channels,
	}).Debug("AAC decoder configured")

	return nil
}

// Close releases the decoding engine.
func (d *Decoder) Close() error {
	if d.lib != nil {
		d.lib.close()
		d.lib = nil
	}
	return nil
}
