package iothread

import (
	"context"
	"errors"
	"fmt"

	pionrtp "github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/btaudio/buffer"
	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/codec/aac"
	"github.com/opd-ai/btaudio/codec/sbc"
	"github.com/opd-ai/btaudio/limits"
	"github.com/opd-ai/btaudio/pcm"
	"github.com/opd-ai/btaudio/rtp"
)

// sinkDecoder turns the payload of one RTP packet into PCM. A nil result
// without an error means there is nothing to play yet.
type sinkDecoder interface {
	decode(pkt *pionrtp.Packet) ([]byte, error)
}

// sbcSink decodes the SBC frames of a media packet.
type sbcSink struct {
	dec      codec.Decoder
	frameLen int
	out      []byte
	log      *logrus.Entry
}

func (s *sbcSink) decode(pkt *pionrtp.Packet) ([]byte, error) {
	frames, data, err := rtp.ParseSBCPayload(pkt.Payload)
	if err != nil {
		return nil, err
	}

	unit := s.dec.OutputFrameSize()
	written := 0
	for frames > 0 && len(data) >= s.frameLen && written+unit <= len(s.out) {
		consumed, n, err := s.dec.Decode(data, s.out[written:])
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "sbcSink.decode",
				"error":    err.Error(),
			}).Error("SBC decoding error")
			break
		}
		data = data[consumed:]
		written += n
		frames--
	}

	return s.out[:written], nil
}

// aacSink reassembles AudioMuxElements spread over several packets.
//
// Fragments of one element share a timestamp. An element is complete
// once it parses without running out of data, so both conventions for
// the marker bit are accepted.
type aacSink struct {
	dec       codec.Decoder
	pending   *buffer.Queue
	timestamp uint32
	out       []byte
	log       *logrus.Entry
}

func newAACSink(dec codec.Decoder, maxElement int, log *logrus.Entry) *aacSink {
	return &aacSink{
		dec:     dec,
		pending: buffer.New(maxElement),
		out:     make([]byte, 2*dec.OutputFrameSize()),
		log:     log,
	}
}

func (s *aacSink) decode(pkt *pionrtp.Packet) ([]byte, error) {
	if s.pending.Len() > 0 && pkt.Timestamp != s.timestamp {
		s.log.WithFields(logrus.Fields{
			"function": "aacSink.decode",
			"dropped":  s.pending.Len(),
		}).Debug("Dropping incomplete AAC element")
		s.pending.Reset()
	}
	s.timestamp = pkt.Timestamp

	if n, _ := s.pending.Write(pkt.Payload); n < len(pkt.Payload) {
		s.pending.Reset()
		return nil, fmt.Errorf("AAC element exceeds %d bytes", s.pending.Cap())
	}

	_, written, err := s.dec.Decode(s.pending.Bytes(), s.out)
	if errors.Is(err, aac.ErrTruncatedLATM) {
		return nil, nil
	}
	s.pending.Reset()
	if err != nil {
		return nil, err
	}
	return s.out[:written], nil
}

func runA2DPSinkSBC(ctx context.Context, e *env) error {
	fd, readMTU, _ := e.t.Link()
	if err := checkSinkLink(fd, readMTU); err != nil {
		return err
	}

	cfg, err := sbc.ParseA2DP(e.t.Config)
	if err != nil {
		return initError("SBC configuration: %v", err)
	}
	dec, err := sbc.NewDecoder(cfg)
	if err != nil {
		return initError("SBC decoder: %v", err)
	}
	e.cleanup.push(func() { dec.Close() })

	frameLen := cfg.FrameLength()
	s := &sbcSink{
		dec:      dec,
		frameLen: frameLen,
		out:      make([]byte, cfg.CodeSize()*(readMTU/frameLen+1)),
		log:      e.log,
	}

	return a2dpSinkLoop(ctx, e, readMTU, s)
}

func runA2DPSinkAAC(ctx context.Context, e *env) error {
	fd, readMTU, _ := e.t.Link()
	if err := checkSinkLink(fd, readMTU); err != nil {
		return err
	}

	cfg, err := aac.ParseA2DP(e.t.Config)
	if err != nil {
		return initError("AAC configuration: %v", err)
	}
	dec, err := aac.NewDecoder(cfg)
	if err != nil {
		return initError("AAC decoder: %v", err)
	}
	e.cleanup.push(func() { dec.Close() })

	return a2dpSinkLoop(ctx, e, readMTU, newAACSink(dec, limits.MaxMTU, e.log))
}

func checkSinkLink(fd, readMTU int) error {
	if fd == -1 {
		return initError("invalid BT socket: %d", fd)
	}
	// a zero MTU would read zero bytes, which looks like a closed socket
	if err := limits.ValidateReadMTU(readMTU); err != nil {
		return initError("%v", err)
	}
	return nil
}

// a2dpSinkLoop receives media packets and writes the decoded PCM.
func a2dpSinkLoop(ctx context.Context, e *env, readMTU int, dec sinkDecoder) error {
	in := make([]byte, readMTU)
	ep := e.t.PCM
	if ep == nil {
		ep = pcm.NewEndpoint("")
	}
	var depacketizer rtp.Depacketizer
	e.fds = append(e.fds, unix.PollFd{Fd: -1, Events: unix.POLLIN})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// the socket is watched only while the transport is active
		fd := -1
		if e.t.Active() {
			fd = e.t.BTFD()
		}
		e.fds[pollData].Fd = int32(fd)

		if err := wait(e.fds); err != nil {
			return err
		}
		if e.drainWakeup() {
			continue
		}
		if !ready(e.fds[pollData]) {
			continue
		}

		n, err := readLink(fd, in)
		switch {
		case err != nil && disconnected(err):
			return fmt.Errorf("%w: %w", ErrLinkClosed, err)
		case err != nil:
			if !transient(err) {
				e.log.WithFields(logrus.Fields{
					"function": "a2dpSinkLoop",
					"error":    err.Error(),
				}).Debug("BT read error")
			}
			continue
		case n == 0:
			// the remote already dropped the link, nothing to release there
			e.log.WithField("function", "a2dpSinkLoop").Debug("BT socket has been closed")
			e.t.CloseLink()
			return ErrLinkClosed
		}

		if err := ep.OpenWrite(e.cfg.PCMOpenRetries, e.cfg.PCMOpenRetryDelay); err != nil {
			if !errors.Is(err, pcm.ErrNotRequested) && !errors.Is(err, pcm.ErrNoReader) {
				e.log.WithFields(logrus.Fields{
					"function": "a2dpSinkLoop",
					"error":    err.Error(),
				}).Error("Couldn't open PCM")
			}
			continue
		}

		pkt, err := depacketizer.Parse(in[:n])
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"function": "a2dpSinkLoop",
				"error":    err.Error(),
			}).Warn("Dropping RTP packet")
			continue
		}

		out, err := dec.decode(pkt)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"function": "a2dpSinkLoop",
				"error":    err.Error(),
			}).Error("Decoding error")
			continue
		}
		if len(out) == 0 {
			continue
		}

		w, err := ep.Write(out)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"function": "a2dpSinkLoop",
				"error":    err.Error(),
			}).Error("PCM write error")
			continue
		}
		if w == 0 {
			// released, the next packet reopens the FIFO for a new client
			e.log.WithField("function", "a2dpSinkLoop").Debug("PCM client went away")
		}
	}
}
