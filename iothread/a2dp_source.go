package iothread

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/btaudio/buffer"
	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/codec/aac"
	"github.com/opd-ai/btaudio/codec/sbc"
	"github.com/opd-ai/btaudio/limits"
	"github.com/opd-ai/btaudio/pacing"
	"github.com/opd-ai/btaudio/pcm"
	"github.com/opd-ai/btaudio/rtp"
)

// sourceEncoder drains whole input units from the PCM queue into RTP
// packets passed to send, pacing the transfer as it goes. unit is the
// PCM queue size the encoder wants.
type sourceEncoder interface {
	encode(in *buffer.Queue, send func(pkt []byte) error) error
	unit() int
}

// sbcSource packs as many SBC frames per packet as the MTU allows.
type sbcSource struct {
	enc             codec.Encoder
	frameLen        int
	framesPerPacket int
	channels        int
	packetizer      *rtp.Packetizer
	clock           *pacing.Clock
	out             []byte
	log             *logrus.Entry
}

func (s *sbcSource) unit() int {
	return s.enc.InputUnitSize() * s.framesPerPacket
}

func (s *sbcSource) encode(in *buffer.Queue, send func(pkt []byte) error) error {
	codesize := s.enc.InputUnitSize()
	payload := s.out[rtp.HeaderLen+rtp.SBCHeaderLen:]

	for in.Len() >= codesize {
		frames, pcmFrames := 0, 0
		for in.Len() >= codesize && frames < s.framesPerPacket {
			consumed, _, err := s.enc.Encode(in.Bytes(), payload[frames*s.frameLen:])
			if err != nil {
				s.log.WithFields(logrus.Fields{
					"function": "sbcSource.encode",
					"error":    err.Error(),
				}).Error("SBC encoding error")
				in.Consume(codesize)
				break
			}
			in.Consume(consumed)
			pcmFrames += consumed / s.channels / 2
			frames++
		}

		if frames > 0 {
			pkt, err := s.packetizer.SBCPacket(s.out, frames, payload[:frames*s.frameLen])
			if err != nil {
				return err
			}
			if err := send(pkt); err != nil {
				return err
			}
		}

		s.packetizer.Advance(uint32(pcmFrames))
		s.clock.Sync(uint32(pcmFrames))
	}

	return nil
}

// aacSource sends every encoded AudioMuxElement, fragmented when it does
// not fit the MTU.
type aacSource struct {
	enc        codec.Encoder
	channels   int
	mtu        int
	packetizer *rtp.Packetizer
	clock      *pacing.Clock
	out        []byte
	log        *logrus.Entry
}

func (s *aacSource) unit() int {
	return s.enc.InputUnitSize()
}

func (s *aacSource) encode(in *buffer.Queue, send func(pkt []byte) error) error {
	unit := s.enc.InputUnitSize()

	for in.Len() >= unit {
		consumed, written, err := s.enc.Encode(in.Bytes(), s.out)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "aacSource.encode",
				"error":    err.Error(),
			}).Error("AAC encoding error")
			in.Consume(unit)
			continue
		}
		if consumed == 0 {
			break
		}

		if written > 0 {
			if _, err := s.packetizer.Fragments(s.out[:written], s.mtu, send); err != nil {
				return err
			}
		}

		in.Consume(consumed)
		frames := uint32(consumed / s.channels / 2)
		s.packetizer.Advance(frames)
		s.clock.Sync(frames)
	}

	return nil
}

func runA2DPSourceSBC(ctx context.Context, e *env) error {
	cfg, err := sbc.ParseA2DP(e.t.Config)
	if err != nil {
		return initError("SBC configuration: %v", err)
	}
	enc, err := sbc.NewEncoder(cfg)
	if err != nil {
		return initError("SBC encoder: %v", err)
	}
	e.cleanup.push(func() { enc.Close() })

	frameLen := cfg.FrameLength()
	_, _, mtu := e.t.Link()
	if least := limits.MinSBCWriteMTU(frameLen); mtu < least {
		e.log.WithFields(logrus.Fields{
			"function": "runA2DPSourceSBC",
			"mtu":      mtu,
			"minimum":  least,
		}).Warn("Writing MTU too small for one single SBC frame")
		mtu = least
	}
	framesPerPacket := min((mtu-rtp.HeaderLen-rtp.SBCHeaderLen)/frameLen, limits.MaxSBCFramesPerPacket)

	s := &sbcSource{
		enc:             enc,
		frameLen:        frameLen,
		framesPerPacket: framesPerPacket,
		channels:        cfg.Channels(),
		packetizer:      rtp.NewPacketizer(),
		clock:           pacing.NewClock(uint32(cfg.SampleRate()), e.tp),
		out:             make([]byte, rtp.HeaderLen+rtp.SBCHeaderLen+framesPerPacket*frameLen),
		log:             e.log,
	}

	return a2dpSourceLoop(ctx, e, s, s.clock, cfg.Channels())
}

func runA2DPSourceAAC(ctx context.Context, e *env) error {
	cfg, err := aac.ParseA2DP(e.t.Config)
	if err != nil {
		return initError("AAC configuration: %v", err)
	}
	enc, err := aac.NewEncoder(cfg, aac.EncoderOptions{
		Afterburner: e.cfg.AACAfterburner,
		VBRMode:     e.cfg.AACVBRMode,
	})
	if err != nil {
		return initError("AAC encoder: %v", err)
	}
	e.cleanup.push(func() { enc.Close() })

	_, _, mtu := e.t.Link()
	if err := limits.ValidateWriteMTU(mtu); err != nil || mtu <= rtp.HeaderLen {
		return initError("writing MTU %d cannot carry RTP payload", mtu)
	}

	s := &aacSource{
		enc:        enc,
		channels:   cfg.Channels,
		mtu:        mtu,
		packetizer: rtp.NewPacketizer(),
		clock:      pacing.NewClock(uint32(cfg.SampleRate), e.tp),
		out:        make([]byte, enc.OutputFrameSize()),
		log:        e.log,
	}

	return a2dpSourceLoop(ctx, e, s, s.clock, cfg.Channels)
}

// a2dpSourceLoop reads PCM, applies software volume and hands complete
// input units to the encoder.
func a2dpSourceLoop(ctx context.Context, e *env, enc sourceEncoder, clock *pacing.Clock, channels int) error {
	ep := e.t.PCM
	if ep == nil {
		return initError("no PCM endpoint")
	}
	if err := ep.OpenRead(); err != nil {
		return initError("open PCM: %v", err)
	}

	in := buffer.New(enc.unit())
	e.fds = append(e.fds, unix.PollFd{Fd: -1, Events: unix.POLLIN})

	send := func(pkt []byte) error {
		fd := e.t.BTFD()
		if fd == -1 {
			return ErrLinkClosed
		}
		if _, err := writeLink(fd, pkt); err != nil {
			if disconnected(err) {
				return fmt.Errorf("%w: %w", ErrLinkClosed, err)
			}
			e.log.WithFields(logrus.Fields{
				"function": "a2dpSourceLoop",
				"error":    err.Error(),
			}).Error("BT socket write error")
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.fds[pollData].Fd = -1
		if e.t.Active() {
			e.fds[pollData].Fd = int32(ep.FD())
		}

		if err := wait(e.fds); err != nil {
			return err
		}
		if e.drainWakeup() {
			// the stream may have been idle, restart timing on next data
			clock.Reset()
			continue
		}
		if !ready(e.fds[pollData]) {
			continue
		}

		tail := in.Tail()
		n, err := ep.Read(tail)
		if err != nil {
			return fmt.Errorf("pcm read: %w", err)
		}
		if n == 0 {
			return ErrPCMClosed
		}

		// the reference point is taken once data really flows
		clock.Start()

		if !e.cfg.A2DPVolume {
			v1, v2 := e.t.Volume(0), e.t.Volume(1)
			pcm.Scale(tail[:n], channels, pcm.Gain(v1.Level, v1.Muted), pcm.Gain(v2.Level, v2.Muted))
		}
		in.Commit(n)

		if err := enc.encode(in, send); err != nil {
			if errors.Is(err, ErrLinkClosed) {
				e.log.WithField("function", "a2dpSourceLoop").Debug("BT socket disconnected")
				return err
			}
			e.log.WithFields(logrus.Fields{
				"function": "a2dpSourceLoop",
				"error":    err.Error(),
			}).Error("Packetization error")
		}
	}
}
