package pcm

import (
	"encoding/binary"
	"math"

	"github.com/sirupsen/logrus"
)

// MaxVolume is the top of the Bluetooth absolute volume range.
const MaxVolume = 127

// Gain converts a 0-127 volume level into a linear multiplier on a 64 dB
// scale. A muted channel has zero gain.
func Gain(volume uint8, muted bool) float64 {
	if muted {
		return 0
	}
	if volume > MaxVolume {
		volume = MaxVolume
	}
	db := -64.0 + 64.0*float64(volume)/MaxVolume
	return math.Pow(10, db/20)
}

// Scale applies per-channel gain to interleaved s16le samples in place.
// Mono streams use g1 only. Samples that would overflow are clipped and
// the number of clipped samples is returned.
func Scale(buf []byte, channels int, g1, g2 float64) int {
	if g1 == 1 && (channels == 1 || g2 == 1) {
		return 0
	}
	if channels < 1 {
		channels = 1
	}

	clipped := 0
	samples := len(buf) / 2
	for i := 0; i < samples; i++ {
		g := g1
		if channels == 2 && i%2 == 1 {
			g = g2
		}
		s := float64(int16(binary.LittleEndian.Uint16(buf[2*i:]))) * g
		if s > math.MaxInt16 {
			s = math.MaxInt16
			clipped++
		} else if s < math.MinInt16 {
			s = math.MinInt16
			clipped++
		}
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(s)))
	}

	if clipped > 0 {
		logrus.WithFields(logrus.Fields{
			"function":      "Scale",
			"clipped_count": clipped,
			"total_samples": samples,
		}).Debug("Audio clipping detected during volume scaling")
	}

	return clipped
}
