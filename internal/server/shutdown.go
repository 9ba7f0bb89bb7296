// Package server holds the process lifecycle around an experiment: a signal
// driven stop request, ordered cleanup, and the gRPC status endpoint.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// StopSignal turns SIGINT/SIGTERM into a stop request. Experiments check it
// between repetitions, so a repetition that already started still finishes.
type StopSignal struct {
	stopCh   chan struct{}
	stopOnce sync.Once
	stopping atomic.Bool
	reason   atomic.Value

	// Closers to clean up on Close
	closers   []io.Closer
	closersMu sync.Mutex

	onStop      []func(reason string)
	callbacksMu sync.Mutex
}

// NewStopSignal creates a stop signal that has not fired.
func NewStopSignal() *StopSignal {
	return &StopSignal{stopCh: make(chan struct{})}
}

// RegisterCloser adds a closer run by Close, in reverse order of registration.
func (s *StopSignal) RegisterCloser(closer io.Closer) {
	s.closersMu.Lock()
	defer s.closersMu.Unlock()
	s.closers = append(s.closers, closer)
}

// OnStop registers a callback run once when the stop is requested.
func (s *StopSignal) OnStop(fn func(reason string)) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.onStop = append(s.onStop, fn)
}

// Listen requests a stop on the first SIGINT or SIGTERM until ctx is done
// or the returned function is called.
func (s *StopSignal) Listen(ctx context.Context) (release func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			s.Stop("received signal: " + sig.String())
		case <-ctx.Done():
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

// Stop requests a stop. Only the first call has an effect.
func (s *StopSignal) Stop(reason string) {
	s.stopOnce.Do(func() {
		s.reason.Store(reason)
		s.stopping.Store(true)
		close(s.stopCh)

		s.callbacksMu.Lock()
		callbacks := s.onStop
		s.callbacksMu.Unlock()
		for _, fn := range callbacks {
			fn(reason)
		}
	})
}

// Stopped returns a channel closed when a stop is requested.
func (s *StopSignal) Stopped() <-chan struct{} {
	return s.stopCh
}

// IsStopping reports whether a stop was requested.
func (s *StopSignal) IsStopping() bool {
	return s.stopping.Load()
}

// Reason returns why the stop was requested, or "".
func (s *StopSignal) Reason() string {
	r, _ := s.reason.Load().(string)
	return r
}

// Close runs every registered closer, last registered first, and joins their errors.
func (s *StopSignal) Close() error {
	s.closersMu.Lock()
	closers := s.closers
	s.closers = nil
	s.closersMu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// CloserFunc is an adapter to allow ordinary functions to be used as io.Closer.
type CloserFunc func() error

// Close calls the underlying function.
func (f CloserFunc) Close() error {
	return f()
}
