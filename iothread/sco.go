package iothread

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/codec/sbc"
	"github.com/opd-ai/btaudio/limits"
	"github.com/opd-ai/btaudio/pacing"
	"github.com/opd-ai/btaudio/pcm"
	"github.com/opd-ai/btaudio/sco"
)

// Sampling rates of the voice codecs.
const (
	cvsdSampleRate = 8000
	msbcSampleRate = 16000
)

// errMicClosed stops decoding once the microphone reader went away.
var errMicClosed = errors.New("microphone endpoint closed")

// scoCodec is the transcoding strategy for one voice codec.
type scoCodec interface {
	id() codec.ID
	// link handles a readable Bluetooth socket.
	link(fd int) error
	// speaker handles a readable speaker endpoint.
	speaker() error
	// watchSpeaker reports whether speaker data is wanted.
	watchSpeaker() bool
	close()
}

type scoLoop struct {
	*env
	clock    *pacing.Clock
	spk, mic *pcm.Endpoint
	strategy scoCodec
	// spkPending is set while the speaker FIFO is open but no writer has
	// shown up yet.
	spkPending bool
}

func runSCO(ctx context.Context, e *env) error {
	s := &scoLoop{
		env:   e,
		clock: pacing.NewClock(cvsdSampleRate, e.tp),
		spk:   e.t.Speaker,
		mic:   e.t.Mic,
	}
	if s.spk == nil {
		s.spk = pcm.NewEndpoint("")
	}
	if s.mic == nil {
		s.mic = pcm.NewEndpoint("")
	}
	e.cleanup.push(func() {
		if s.strategy != nil {
			s.strategy.close()
		}
	})

	if err := s.activate(); err != nil {
		return err
	}
	return s.loop(ctx)
}

func (s *scoLoop) loop(ctx context.Context) error {
	s.fds = append(s.fds,
		unix.PollFd{Fd: -1, Events: unix.POLLIN},
		unix.PollFd{Fd: -1, Events: unix.POLLIN})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.fds[pollData].Fd, s.fds[pollPCM].Fd = -1, -1
		if s.strategy != nil {
			s.fds[pollData].Fd = int32(s.t.BTFD())
		}
		if s.spkPending || (s.strategy != nil && s.strategy.watchSpeaker()) {
			s.fds[pollPCM].Fd = int32(s.spk.FD())
		}

		if err := wait(s.fds); err != nil {
			return err
		}
		if s.drainWakeup() {
			if err := s.activate(); err != nil {
				return err
			}
			continue
		}
		if s.spkPending && ready(s.fds[pollPCM]) {
			// a speaker client connected, the data is read once the link is up
			s.spkPending = false
			if err := s.activate(); err != nil {
				return err
			}
			continue
		}

		s.clock.Start()

		if ready(s.fds[pollData]) {
			if err := s.strategy.link(int(s.fds[pollData].Fd)); err != nil {
				if errors.Is(err, ErrLinkClosed) || errors.Is(err, ErrPCMClosed) {
					return err
				}
				s.log.WithFields(logrus.Fields{
					"function": "scoLoop.loop",
					"error":    err.Error(),
				}).Debug("SCO link error")
			}
		}

		if ready(s.fds[pollPCM]) {
			if err := s.strategy.speaker(); err != nil {
				if errors.Is(err, ErrLinkClosed) || errors.Is(err, ErrPCMClosed) {
					return err
				}
				s.log.WithFields(logrus.Fields{
					"function": "scoLoop.loop",
					"error":    err.Error(),
				}).Error("SCO speaker error")
			}
		}
	}
}

// activate re-reads the transport after a wakeup: it opens the PCM
// endpoints, and holds the SCO link only while one of them has a client.
func (s *scoLoop) activate() error {
	wasClosed := s.spk.Closed()
	if err := s.spk.OpenRead(); err != nil && !errors.Is(err, pcm.ErrNotRequested) {
		s.log.WithFields(logrus.Fields{
			"function": "scoLoop.activate",
			"error":    err.Error(),
		}).Debug("Couldn't open speaker PCM")
	}
	if wasClosed && !s.spk.Closed() {
		s.spkPending = true
	}
	if err := s.mic.OpenWrite(s.cfg.PCMOpenRetries, s.cfg.PCMOpenRetryDelay); err != nil &&
		!errors.Is(err, pcm.ErrNotRequested) {
		s.log.WithFields(logrus.Fields{
			"function": "scoLoop.activate",
			"error":    err.Error(),
		}).Debug("Couldn't open microphone PCM")
	}

	if (s.spk.Closed() || s.spkPending) && s.mic.Closed() {
		// microphone audio flows even when nobody reads it, free the air time
		if err := s.t.ReleaseLinkNow(); err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "scoLoop.activate",
				"error":    err.Error(),
			}).Warn("Couldn't release SCO link")
		}
		s.clock.Reset()
		return nil
	}

	linked := s.t.BTFD() != -1
	if err := s.t.Acquire(); err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "scoLoop.activate",
			"error":    err.Error(),
		}).Warn("Couldn't acquire SCO link")
		return nil
	}
	if err := unix.SetNonblock(s.t.BTFD(), true); err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "scoLoop.activate",
			"error":    err.Error(),
		}).Warn("Couldn't set SCO socket non-blocking")
	}

	// a new link starts from fresh codec state
	id := s.t.Codec()
	if s.strategy == nil || s.strategy.id() != id || !linked {
		if s.strategy != nil {
			s.strategy.close()
			s.strategy = nil
		}
		strategy, err := s.newCodec(id)
		if err != nil {
			return err
		}
		s.strategy = strategy
		s.log.WithFields(logrus.Fields{
			"function": "scoLoop.activate",
			"codec":    codec.HFPName(id),
		}).Debug("Selected voice codec")
	}

	rate := uint32(cvsdSampleRate)
	if id == codec.MSBC {
		rate = msbcSampleRate
		if !s.spk.Closed() {
			if err := s.spk.SetNonblock(true); err != nil {
				s.log.WithFields(logrus.Fields{
					"function": "scoLoop.activate",
					"error":    err.Error(),
				}).Warn("Couldn't set speaker PCM non-blocking")
			}
		}
	}
	if s.clock.Rate() != rate {
		s.clock.SetRate(rate)
	}

	return nil
}

func (s *scoLoop) newCodec(id codec.ID) (scoCodec, error) {
	if id != codec.MSBC {
		return &cvsdCodec{
			l:       s,
			in:      make([]byte, limits.SCOBufferSize),
			out:     make([]byte, limits.SCOBufferSize),
			codecID: id,
		}, nil
	}

	// any failure here is fatal for the transport
	enc, err := sbc.NewEncoder(sbc.MSBCConfig())
	if err != nil {
		return nil, initError("mSBC encoder: %v", err)
	}
	dec, err := sbc.NewDecoder(sbc.MSBCConfig())
	if err != nil {
		enc.Close()
		return nil, initError("mSBC decoder: %v", err)
	}
	return &msbcCodec{
		l:       s,
		encoder: enc,
		decoder: dec,
		enc:     sco.NewH2Encoder(enc, s.cfg.SCOPrebufferFrames),
		dec:     sco.NewH2Decoder(dec),
	}, nil
}

// read performs one link read. It returns 0 without an error when there
// is nothing to do.
func (s *scoLoop) read(fd int, p []byte) (int, error) {
	n, err := readLink(fd, p)
	switch {
	case err != nil && disconnected(err):
		return 0, fmt.Errorf("%w: %w", ErrLinkClosed, err)
	case err != nil && transient(err):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("SCO read: %w", err)
	case n == 0 && len(p) > 0:
		s.t.CloseLink()
		return 0, ErrLinkClosed
	}
	return n, nil
}

// endpointClosed is called after one endpoint went away. The loop ends
// once no direction is left.
func (s *scoLoop) endpointClosed() error {
	if s.spk.Closed() && s.mic.Closed() {
		return ErrPCMClosed
	}
	s.log.WithField("function", "scoLoop.endpointClosed").Debug("PCM endpoint closed, other direction still open")
	return nil
}

// linkChunk is the size of one SCO packet.
func (s *scoLoop) linkChunk() int {
	if _, _, mtu := s.t.Link(); mtu > 0 {
		return mtu
	}
	return s.cfg.SCOMTU
}

// cvsdCodec passes raw samples through; the controller transcodes.
type cvsdCodec struct {
	l       *scoLoop
	in      []byte
	out     []byte
	codecID codec.ID
}

func (c *cvsdCodec) id() codec.ID { return c.codecID }
func (c *cvsdCodec) close()       {}

// watchSpeaker holds speaker data back until the packet size is known.
func (c *cvsdCodec) watchSpeaker() bool {
	_, _, mtu := c.l.t.Link()
	return mtu > 0
}

func (c *cvsdCodec) link(fd int) error {
	n, err := c.l.read(fd, c.in)
	if err != nil || n == 0 {
		return err
	}

	// the socket does not report the MTU, take the first packet size
	if _, _, mtu := c.l.t.Link(); mtu == 0 {
		c.l.t.SetMTU(n, n)
		c.l.log.WithFields(logrus.Fields{
			"function": "cvsdCodec.link",
			"mtu":      n,
		}).Debug("Detected SCO MTU")
	}

	if c.l.mic.Closed() {
		return nil
	}
	w, err := c.l.mic.Write(c.in[:n])
	if err != nil {
		return err
	}
	if w == 0 {
		return c.l.endpointClosed()
	}
	return nil
}

func (c *cvsdCodec) speaker() error {
	_, _, mtu := c.l.t.Link()
	mtu = min(mtu, len(c.out))

	n, err := c.l.spk.Read(c.out[:mtu])
	if err != nil {
		return err
	}
	if n == 0 {
		return c.l.endpointClosed()
	}

	if fd := c.l.t.BTFD(); fd != -1 {
		if _, err := writeLink(fd, c.out[:n]); err != nil {
			if disconnected(err) {
				return fmt.Errorf("%w: %w", ErrLinkClosed, err)
			}
			c.l.log.WithFields(logrus.Fields{
				"function": "cvsdCodec.speaker",
				"error":    err.Error(),
			}).Error("SCO socket write error")
		}
	}

	c.l.clock.Sync(uint32(n / 2))
	return nil
}

// msbcCodec carries H2 framed mSBC. Writes are clocked by reads: one
// link chunk goes out for every packet received.
type msbcCodec struct {
	l       *scoLoop
	encoder *sbc.Encoder
	decoder *sbc.Decoder
	enc     *sco.H2Encoder
	dec     *sco.H2Decoder
	paused  bool
}

func (m *msbcCodec) id() codec.ID { return codec.MSBC }

func (m *msbcCodec) close() {
	m.encoder.Close()
	m.decoder.Close()
}

func (m *msbcCodec) watchSpeaker() bool {
	return !m.paused
}

func (m *msbcCodec) link(fd int) error {
	in := m.dec.Input()
	n, err := m.l.read(fd, in.Tail())
	if err != nil || n == 0 {
		return err
	}
	in.Commit(n)

	if m.l.mic.Closed() {
		// nobody listens, do not build up a backlog
		in.Reset()
	} else if _, err := m.dec.Decode(m.emit); err != nil {
		if errors.Is(err, errMicClosed) {
			if err := m.l.endpointClosed(); err != nil {
				return err
			}
		} else {
			m.l.log.WithFields(logrus.Fields{
				"function": "msbcCodec.link",
				"error":    err.Error(),
			}).Error("mSBC decoding error")
		}
	}

	if m.l.spk.Closed() {
		return nil
	}
	chunk := m.l.linkChunk()
	if _, err := m.enc.Flush(linkWriter(fd), chunk, chunk); err != nil {
		if errors.Is(err, ErrLinkClosed) {
			return err
		}
		m.l.log.WithFields(logrus.Fields{
			"function": "msbcCodec.link",
			"error":    err.Error(),
		}).Warn("Couldn't write to mSBC socket")
	}
	if !m.enc.Full() {
		m.paused = false
	}
	return nil
}

func (m *msbcCodec) emit(p []byte) error {
	w, err := m.l.mic.Write(p)
	if err != nil {
		return err
	}
	if w == 0 {
		return errMicClosed
	}
	return nil
}

func (m *msbcCodec) speaker() error {
	q := m.enc.PCM()
	n, err := m.l.spk.ReadSome(q.Tail())
	if err != nil {
		return err
	}
	if n == 0 {
		if m.l.spk.Closed() {
			return m.l.endpointClosed()
		}
		return nil
	}
	q.Commit(n)

	if _, err := m.enc.Encode(); err != nil {
		m.l.log.WithFields(logrus.Fields{
			"function": "msbcCodec.speaker",
			"error":    err.Error(),
		}).Error("mSBC encoding error")
	}
	// stop reading until the link made room for another frame
	m.paused = m.enc.Full()
	return nil
}
