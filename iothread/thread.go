package iothread

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/config"
	"github.com/opd-ai/btaudio/pacing"
	"github.com/opd-ai/btaudio/transport"
)

// env is what every loop body works with.
type env struct {
	t       *transport.Transport
	cfg     config.Config
	log     *logrus.Entry
	tp      pacing.TimeProvider
	cleanup cleanupStack
	fds     []unix.PollFd
}

// drainWakeup consumes a pending wakeup and reports whether there was one.
func (e *env) drainWakeup() bool {
	if e.fds[pollWakeup].Revents&unix.POLLIN == 0 {
		return false
	}
	if _, err := e.t.Wakeup.Drain(); err != nil {
		e.log.WithFields(logrus.Fields{
			"function": "env.drainWakeup",
			"error":    err.Error(),
		}).Debug("Failed to drain wakeup")
	}
	return true
}

func initError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInit, fmt.Sprintf(format, args...))
}

type loopFunc func(ctx context.Context, e *env) error

// selectLoop picks the loop body for a transport.
func selectLoop(t *transport.Transport) (loopFunc, string, error) {
	switch t.Profile {
	case transport.ProfileA2DPSink:
		if t.Codec() == codec.AAC {
			return runA2DPSinkAAC, "AAC", nil
		}
		return runA2DPSinkSBC, "SBC", nil
	case transport.ProfileA2DPSource:
		if t.Codec() == codec.AAC {
			return runA2DPSourceAAC, "AAC", nil
		}
		return runA2DPSourceSBC, "SBC", nil
	case transport.ProfileSCO:
		return runSCO, codec.HFPName(t.Codec()), nil
	case transport.ProfileRFCOMM:
		return runRFCOMM, "", nil
	}
	return nil, "", fmt.Errorf("%w: %w: %s", ErrInit, ErrUnsupportedProfile, t.Profile)
}

// Run executes the I/O loop of t in the calling goroutine until ctx is
// done or the loop fails.
//
// Parameters:
//   - ctx: Cancels the loop at its next iteration
//   - t: The transport, borrowed for the duration of the call
//   - cfg: Settings snapshot
//   - log: Log sink, nil for one derived from the standard logger
//
// Returns:
//   - error: ctx.Err() after cancellation, an ErrInit wrapped error when
//     the loop could not start, or the failure that ended it
//
// The transport release callback has been called when Run returns.
func Run(ctx context.Context, t *transport.Transport, cfg config.Config, log *logrus.Entry) error {
	return run(ctx, t, cfg, log, nil)
}

func run(ctx context.Context, t *transport.Transport, cfg config.Config, log *logrus.Entry, tp pacing.TimeProvider) error {
	if log == nil {
		log = t.Logger(nil)
	}

	loop, codecName, selErr := selectLoop(t)
	if codecName != "" {
		log = log.WithField("codec", codecName)
	}

	e := &env{
		t:   t,
		cfg: cfg,
		log: log,
		tp:  tp,
		fds: []unix.PollFd{{Fd: int32(t.Wakeup.FD()), Events: unix.POLLIN}},
	}
	// released last, after every loop resource
	e.cleanup.push(func() {
		t.Release()
		log.WithField("function", "Run").Debug("Exiting I/O loop")
	})
	defer e.cleanup.run()

	stop := context.AfterFunc(ctx, func() {
		t.Wakeup.Signal()
	})
	defer stop()

	err := selErr
	if err == nil {
		log.WithField("function", "Run").Debug("Starting I/O loop")
		err = loop(ctx, e)
	}

	fields := logrus.Fields{"function": "Run"}
	if err != nil {
		fields["error"] = err.Error()
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrInit):
		log.WithFields(fields).Error("I/O loop could not start")
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		log.WithFields(fields).Debug("I/O loop cancelled")
	case errors.Is(err, ErrLinkClosed), errors.Is(err, ErrPCMClosed):
		log.WithFields(fields).Debug("I/O loop finished")
	default:
		log.WithFields(fields).Error("I/O loop failed")
	}

	return err
}

// Thread is a loop running in its own goroutine.
type Thread struct {
	t      *transport.Transport
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs the I/O loop of t in a new goroutine.
func Start(ctx context.Context, t *transport.Transport, cfg config.Config, log *logrus.Entry) *Thread {
	return start(ctx, t, cfg, log, nil)
}

func start(ctx context.Context, t *transport.Transport, cfg config.Config, log *logrus.Entry, tp pacing.TimeProvider) *Thread {
	ctx, cancel := context.WithCancel(ctx)
	th := &Thread{
		t:      t,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(th.done)
		defer cancel()
		th.err = run(ctx, t, cfg, log, tp)
	}()
	return th
}

// Transport returns the transport the thread serves.
func (th *Thread) Transport() *transport.Transport {
	return th.t
}

// Cancel asks the loop to stop. It does not wait.
func (th *Thread) Cancel() {
	th.cancel()
}

// Done is closed when the loop has exited.
func (th *Thread) Done() <-chan struct{} {
	return th.done
}

// Wait blocks until the loop has exited and returns its error.
func (th *Thread) Wait() error {
	<-th.done
	return th.err
}
