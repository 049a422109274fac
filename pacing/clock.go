// Package pacing keeps audio transfers at a constant bit rate.
//
// A Clock tracks how many PCM frames were transferred since a reference
// point and sleeps the caller until wall-clock time catches up with the
// nominal playback time of those frames, staying 10 ms ahead so that the
// downstream buffers never starve.
package pacing

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Duration returns the nominal playback duration of frames at the given
// sampling rate, in microseconds. Integer arithmetic only, the remainder is
// multiplied before it is divided so each call is within one microsecond of
// 1e6*frames/rate.
func Duration(frames, rate uint32) uint32 {
	if rate == 0 {
		return 0
	}
	sec := uint64(frames / rate)
	res := uint64(frames % rate)
	return uint32(1000000*sec + 1000000*res/uint64(rate))
}

// Clock synchronizes transfer timing with the audio sampling frequency.
//
// The cumulative frame counter is 32 bits wide which is enough for roughly
// 24 hours of playback at 48 kHz. The counter has to be reset whenever the
// data source was idle, otherwise the next burst is judged late and the
// clock races ahead without sleeping.
//
// A Clock is owned by a single I/O loop and is not safe for concurrent use.
type Clock struct {
	rate   uint32
	ts0    time.Time
	frames uint32
	tp     TimeProvider
}

// NewClock creates a pacing clock for the given sampling rate.
//
// Parameters:
//   - rate: Sampling frequency in Hz
//   - tp: Time source, nil selects the system clock
//
// Returns:
//   - *Clock: New clock with a zero frame counter
func NewClock(rate uint32, tp TimeProvider) *Clock {
	return &Clock{
		rate: rate,
		tp:   getTimeProvider(tp),
	}
}

// Rate returns the sampling frequency in Hz.
func (c *Clock) Rate() uint32 {
	return c.rate
}

// SetRate changes the sampling frequency and resets the clock.
func (c *Clock) SetRate(rate uint32) {
	c.rate = rate
	c.Reset()
}

// Frames returns the number of frames transferred since the last reset.
func (c *Clock) Frames() uint32 {
	return c.frames
}

// Reset zeroes the transferred frame counter. The reference timestamp is
// captured again by the next Start call.
func (c *Clock) Reset() {
	c.frames = 0
}

// Start captures the reference timestamp if no frames were transferred
// since the last reset. When the loop starts there might be no data for a
// long time, so the zero point is taken once the stream actually started.
func (c *Clock) Start() {
	if c.frames == 0 {
		c.ts0 = c.tp.Now()
	}
}

// Sync accounts for frames that were just transferred and blocks until the
// wall clock matches the cumulative audio time minus the 10 ms lead.
//
// Parameters:
//   - frames: Number of PCM frames transferred by the caller
//
// Returns:
//   - uint32: Playback duration of the given frames in microseconds
func (c *Clock) Sync(frames uint32) uint32 {
	if frames == 0 || c.rate == 0 {
		return 0
	}

	duration := Duration(frames, c.rate)

	c.frames += frames
	total := c.frames

	// keep transfer 10ms ahead
	lead := c.rate / 100
	if total > lead {
		total -= lead
	} else {
		total = 0
	}

	audio := time.Duration(total/c.rate)*time.Second +
		time.Duration(uint64(total%c.rate)*uint64(time.Second)/uint64(c.rate))
	elapsed := c.tp.Now().Sub(c.ts0)

	if audio > elapsed {
		logrus.WithFields(logrus.Fields{
			"function": "Clock.Sync",
			"frames":   c.frames,
			"sleep":    audio - elapsed,
		}).Trace("Pacing transfer")
		c.tp.Sleep(audio - elapsed)
	}

	return duration
}
