// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Driver runs the interpreter-side worker roles spec §5 assigns to the
// interpreter scheduling model: (a) the VM-driver thread stepping every
// session's Continuation, (b) the callback thread invoking host functions
// for WaitingForCallback frames. Transport threads (moving bytes between a
// real connection and a Session's Input/Output queues) are the caller's
// concern — iopump.go adapts an io.Reader/io.Writer pair onto them —
// because spec §1 places concrete transports out of scope.
//
// Grounded on interpreterrunner.cpp's interpreter_loop/callback_loop: poll
// every live session once per sweep, step what's ready, hand blocked
// sessions to the matching handler, and idle-wait when nothing was ready.
// Go has no single condvar-of-condvars to block on every session's queue
// at once the way the original's wake_up_interpreter does; waitForWork
// fans one goroutine per session into a shared channel instead, with a
// short poll interval as a backstop.
type Driver struct {
	collection *Collection
	opts       *Options
	sem        *semaphore.Weighted

	idlePoll time.Duration
}

// NewDriver builds a Driver over collection.
func NewDriver(collection *Collection, opts ...Option) *Driver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Driver{
		collection: collection,
		opts:       o,
		sem:        semaphore.NewWeighted(o.CallbackConcurrency),
		idlePoll:   time.Millisecond,
	}
}

// Run drives both worker roles until ctx is cancelled or a worker returns an
// error, and returns that error (ctx.Err() on cancellation). It does not
// return when every session has exited: the drive loop stops only once the
// collection is empty, and the callback loop keeps polling until ctx is
// cancelled.
func (d *Driver) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.driveLoop(ctx) })
	g.Go(func() error { return d.callbackLoop(ctx) })
	return g.Wait()
}

// driveLoop is interpreter_loop's analogue: step every non-exited session
// once per sweep, dispatch Blocked sessions to their reason's handler.
func (d *Driver) driveLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		sessions, _ := d.collection.Snapshot()
		active, ready := 0, 0
		for _, s := range sessions {
			if s.Exited() {
				continue
			}
			active++
			state := s.continuation.Step()
			// Writes complete synchronously into the continuation's own
			// output buffer (spec's "writing is infallible at the
			// protocol level") rather than blocking — drain it to the
			// transport queue after every step regardless of outcome.
			d.handleWrite(s)
			switch state {
			case Ready:
				ready++
			case Blocked:
				if d.handleBlocked(s) {
					ready++
				}
			case Exited:
				s.finish(s.continuation.Result())
			}
		}
		if active == 0 {
			if d.collection.Len() == 0 {
				return nil
			}
		}
		if ready == 0 {
			if err := d.waitForWork(ctx, sessions); err != nil {
				return err
			}
		}
	}
}

// waitForWork blocks until some session in sessions has new input, ctx is
// cancelled, or idlePoll elapses. Go has no single condvar-of-condvars to
// wait on every session's queue at once the way the original's
// wake_up_interpreter does, so it fans one goroutine per session into a
// shared wake channel instead, racing that against idlePoll as a backstop
// for sessions added to the collection after this call started. A fan-in
// goroutine whose session never gets new input before this call returns
// stays parked in ByteQueue.Wait until that session's Input is next
// notified -- Session.finish and Session.OnEOF both notify it, so none
// outlives its session.
func (d *Driver) waitForWork(ctx context.Context, sessions []*Session) error {
	woke := make(chan struct{}, 1)
	giveUp := make(chan struct{})
	defer close(giveUp)
	for _, s := range sessions {
		if s.Exited() {
			continue
		}
		go func(s *Session) {
			s.Input.Wait()
			select {
			case woke <- struct{}{}:
			case <-giveUp:
			}
		}(s)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-woke:
		return nil
	case <-time.After(d.idlePoll):
		return nil
	}
}

// handleBlocked services one Blocked session's reason exactly once,
// reporting whether it made progress (interpreterrunner.cpp's
// handle_blocked_interpreter boolean return).
func (d *Driver) handleBlocked(s *Session) bool {
	switch s.continuation.BlockReason() {
	case WaitingForRead:
		return d.handleRead(s)
	case WaitingForWrite:
		return d.handleWrite(s)
	case WaitingForCallback:
		return d.handleStartCallback(s)
	default:
		return true
	}
}

func (d *Driver) handleRead(s *Session) bool {
	buf, ok := s.Input.Pop()
	if ok {
		s.continuation.io.PushInput(buf)
		return true
	}
	if s.isEOF() {
		return true
	}
	return false
}

func (d *Driver) handleWrite(s *Session) bool {
	if out := s.continuation.io.TakeOutput(); len(out) > 0 {
		s.Output.Push(out)
	}
	return true
}

// handleStartCallback pushes a not-yet-dispatched callback request to the
// callback thread, or checks for and delivers an arrived response. It never
// does both in the same call: a request stays outstanding for exactly one
// handleBlocked call before the callback thread owns it.
func (d *Driver) handleStartCallback(s *Session) bool {
	c := s.continuation
	if v, ok := s.Callbacks.PopResponse(); ok {
		c.DeliverCallback(v)
		return true
	}
	key, args, dispatched, ok := c.PendingCallback()
	if !ok || dispatched {
		return false
	}
	s.Callbacks.PushRequest(CallbackRequest{Key: key, Args: args})
	c.MarkCallbackDispatched()
	return false
}

// callbackLoop is callback_loop's analogue: drain every session's
// outstanding callback request and invoke the matching registered
// function, bounded to CallbackConcurrency in flight at once.
func (d *Driver) callbackLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		sessions, _ := d.collection.Snapshot()
		dispatched := 0
		for _, s := range sessions {
			if s.Exited() {
				continue
			}
			req, ok := s.Callbacks.PopRequest()
			if !ok {
				continue
			}
			dispatched++
			if err := d.sem.Acquire(ctx, 1); err != nil {
				s.Callbacks.PushResponse(ErrValue(ProtocolMismatch, "driver shutting down before "+req.Key+" was invoked"))
				return err
			}
			go func(s *Session, req CallbackRequest) {
				defer d.sem.Release(1)
				d.invoke(s, req)
			}(s, req)
		}
		if dispatched == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.idlePoll):
			}
		}
	}
}

// invoke runs the registered callback, or answers with a synthetic
// ProtocolMismatch Value if none is registered for req.Key — decision
// recorded for DESIGN.md Open Question 1: at-most-once delivery, no
// requeue.
func (d *Driver) invoke(s *Session, req CallbackRequest) {
	fn, ok := d.opts.Callbacks[req.Key]
	if !ok {
		d.opts.Logger.Warn("vm: unregistered callback", zap.String("key", req.Key))
		s.Callbacks.PushResponse(ErrValue(ProtocolMismatch, "no callback registered for "+req.Key))
		return
	}
	s.Callbacks.PushResponse(fn(req.Args))
}
