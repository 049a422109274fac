package iothread

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/btaudio/buffer"
	"github.com/opd-ai/btaudio/hfp"
	"github.com/opd-ai/btaudio/transport"
)

// rfcommBufferSize bounds one read from the control channel together with
// the partial command line carried over from the previous read.
const rfcommBufferSize = 256

// runRFCOMM serves the AT command channel of a hands-free connection.
// Gain changes made on the paired SCO transport are pushed to the headset
// whenever the wakeup fires.
func runRFCOMM(ctx context.Context, e *env) error {
	fd := e.t.BTFD()
	if fd == -1 {
		return initError("RFCOMM link not acquired")
	}
	if e.t.SCO == nil {
		return initError("RFCOMM transport without SCO transport")
	}

	session := hfp.NewSession(e.t.SCO, e.cfg.MSBC)
	session.SetLogger(e.log)

	e.fds = append(e.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	q := buffer.New(rfcommBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wait(e.fds); err != nil {
			return err
		}

		if e.drainWakeup() {
			if err := rfcommSend(e, fd, session.GainUpdates()); err != nil {
				return err
			}
			continue
		}

		if !ready(e.fds[pollData]) {
			continue
		}

		if q.Free() == 0 {
			e.log.WithFields(logrus.Fields{
				"function": "runRFCOMM",
				"size":     q.Len(),
			}).Warn("Unterminated AT command line dropped")
			q.Reset()
		}

		n, err := readLink(fd, q.Tail())
		switch {
		case err != nil && transient(err):
			continue
		case err != nil && disconnected(err), err == nil && n == 0:
			e.t.SetState(transport.StateAborted)
			if err == nil {
				return ErrLinkClosed
			}
			return fmt.Errorf("%w: %w", ErrLinkClosed, err)
		case err != nil:
			e.log.WithFields(logrus.Fields{
				"function": "runRFCOMM",
				"error":    err.Error(),
			}).Error("RFCOMM read error")
			continue
		}

		if err := q.Commit(n); err != nil {
			return err
		}
		lines, used := hfp.CompleteLines(q.Bytes())
		if err := q.Consume(used); err != nil {
			return err
		}

		for _, line := range lines {
			cmd, err := hfp.ParseAT(line)
			if err != nil {
				e.log.WithFields(logrus.Fields{
					"function": "runRFCOMM",
					"line":     line,
					"error":    err.Error(),
				}).Warn("Invalid AT command")
				continue
			}
			if err := rfcommSend(e, fd, session.Handle(cmd)); err != nil {
				return err
			}
		}
	}
}

// rfcommSend writes each message as one framed response.
func rfcommSend(e *env, fd int, msgs []string) error {
	for _, msg := range msgs {
		e.log.WithFields(logrus.Fields{
			"function": "rfcommSend",
			"response": msg,
		}).Debug("Sending AT response")
		if _, err := writeLink(fd, []byte(hfp.Response(msg))); err != nil {
			if disconnected(err) {
				e.t.SetState(transport.StateAborted)
				return fmt.Errorf("%w: %w", ErrLinkClosed, err)
			}
			e.log.WithFields(logrus.Fields{
				"function": "rfcommSend",
				"error":    err.Error(),
			}).Error("RFCOMM write error")
		}
	}
	return nil
}
