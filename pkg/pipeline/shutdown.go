package pipeline

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Shutdown is the process-wide stop flag. Loops poll Requested at the top
// of each iteration; blocking waits select on Done.
type Shutdown struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	reason string
	err    error
}

// FailureError is returned by Engine.Run when shutdown was caused by a
// fault rather than a stop request.
type FailureError struct {
	Reason string
	Err    error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// NewShutdown creates a coordinator that is not yet requested.
func NewShutdown() *Shutdown {
	ctx, cancel := context.WithCancel(context.Background())
	return &Shutdown{ctx: ctx, cancel: cancel}
}

// Request sets the flag. Only the first reason is kept.
func (s *Shutdown) Request(reason string) {
	s.request(reason, nil)
}

// Fail sets the flag because of err. If it is the first request, Err
// reports the failure.
func (s *Shutdown) Fail(reason string, err error) {
	s.request(reason, err)
}

func (s *Shutdown) request(reason string, err error) {
	s.mu.Lock()
	first := s.reason == "" && s.ctx.Err() == nil
	if first {
		s.reason = reason
		s.err = err
	}
	s.mu.Unlock()

	if first {
		entry := log.WithField("reason", reason)
		if err != nil {
			entry.WithError(err).Error("Shutdown requested after failure")
		} else {
			entry.Info("Shutdown requested")
		}
	}
	s.cancel()
}

// Err returns a *FailureError when the first request came from Fail,
// nil otherwise.
func (s *Shutdown) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	return &FailureError{Reason: s.reason, Err: s.err}
}

// Requested reports whether shutdown was requested.
func (s *Shutdown) Requested() bool {
	return s.ctx.Err() != nil
}

// Done is closed when shutdown is requested.
func (s *Shutdown) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Context is cancelled when shutdown is requested.
func (s *Shutdown) Context() context.Context {
	return s.ctx
}

// Reason returns the reason given to the first Request.
func (s *Shutdown) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}
