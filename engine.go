package btaudio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/btaudio/config"
	"github.com/opd-ai/btaudio/iothread"
	"github.com/opd-ai/btaudio/transport"
)

// ExitHandler is called after the I/O loop of a transport exited. err is
// nil or context.Canceled after Stop or Close.
type ExitHandler func(id uuid.UUID, err error)

// Engine runs one I/O loop per transport.
type Engine struct {
	mu      sync.RWMutex
	cfg     config.Config
	log     *logrus.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	threads map[uuid.UUID]*iothread.Thread
	onExit  ExitHandler
	closed  bool
	wg      sync.WaitGroup
}

// NewEngine creates an engine. Every loop gets cfg; log may be nil for the
// standard logger.
func NewEngine(cfg config.Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:     cfg,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		threads: make(map[uuid.UUID]*iothread.Thread),
	}
}

// OnExit sets the handler called when a loop exits.
func (e *Engine) OnExit(h ExitHandler) {
	e.mu.Lock()
	e.onExit = h
	e.mu.Unlock()
}

// Start runs the I/O loop of t.
//
// The engine owns t from now on: the transport is closed once its loop
// exited.
//
// Parameters:
//   - t: The transport to serve
//
// Returns:
//   - *iothread.Thread: The running loop
//   - error: ErrEngineClosed or ErrAlreadyRunning
func (e *Engine) Start(t *transport.Transport) (*iothread.Thread, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if _, ok := e.threads[t.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, t.ID)
	}

	log := t.Logger(e.log)
	th := iothread.Start(e.ctx, t, e.cfg, log)
	e.threads[t.ID] = th
	e.wg.Add(1)
	go e.reap(th, log)

	log.WithFields(logrus.Fields{
		"function": "Engine.Start",
		"active":   len(e.threads),
	}).Info("Started transport I/O")

	return th, nil
}

// reap forgets a thread once its loop exited.
func (e *Engine) reap(th *iothread.Thread, log *logrus.Entry) {
	defer e.wg.Done()
	err := th.Wait()
	t := th.Transport()

	e.mu.Lock()
	if e.threads[t.ID] == th {
		delete(e.threads, t.ID)
	}
	onExit := e.onExit
	e.mu.Unlock()

	if cerr := t.Close(); cerr != nil {
		log.WithFields(logrus.Fields{
			"function": "Engine.reap",
			"error":    cerr.Error(),
		}).Warn("Failed to close transport")
	}

	fields := logrus.Fields{"function": "Engine.reap"}
	if err != nil {
		fields["error"] = err.Error()
	}
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.WithFields(fields).Info("Transport I/O stopped")
	case errors.Is(err, iothread.ErrLinkClosed), errors.Is(err, iothread.ErrPCMClosed):
		log.WithFields(fields).Info("Transport I/O finished")
	default:
		log.WithFields(fields).Error("Transport I/O failed")
	}

	if onExit != nil {
		onExit(t.ID, err)
	}
}

// Stop cancels the loop of the transport id and waits for it to exit.
// Cancellation is not reported as an error.
func (e *Engine) Stop(id uuid.UUID) error {
	e.mu.Lock()
	th, ok := e.threads[id]
	delete(e.threads, id)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	th.Cancel()
	if err := th.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Running reports whether the transport id has a loop.
func (e *Engine) Running(id uuid.UUID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.threads[id]
	return ok
}

// Active returns the ids of the running transports in a stable order.
func (e *Engine) Active() []uuid.UUID {
	e.mu.RLock()
	ids := make([]uuid.UUID, 0, len(e.threads))
	for id := range e.threads {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Close stops every loop and waits for them. Later calls to Start fail.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	active := len(e.threads)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"function": "Engine.Close",
		"active":   active,
	}).Info("Stopping all transports")

	e.cancel()
	e.wg.Wait()
	return nil
}
