// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import (
	"errors"
	"io"
	"runtime"
	"time"

	"code.hybscloud.com/netproto/wire"
)

// Transport pumps bytes between a real io.Reader/io.Writer and a Session's
// Input/Output queues — the "transport thread" role of spec §5. It is not
// itself a shipped production transport (concrete transports are out of
// scope, spec §1); it exists so a Session can be driven over an in-memory
// pipe (driver_test.go does so over net.Pipe) and so the shape of this role
// is exercised and tested.
//
// Retry-on-ErrWouldBlock follows the teacher's waitOnceOnWouldBlock idiom
// (internal.go): a zero RetryDelay yields the scheduler and retries
// immediately, a positive one sleeps, a negative one gives up without
// retrying (for non-blocking callers that poll Pump themselves).
type Transport struct {
	r io.Reader
	w io.Writer

	readBuf    []byte
	retryDelay time.Duration
}

// NewTransport wraps r/w with a default 4KiB read buffer and immediate
// (Gosched-yielding) retry on ErrWouldBlock.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{r: r, w: w, readBuf: make([]byte, 4096)}
}

// WithRetryDelay overrides the retry delay on ErrWouldBlock/ErrMore.
func (t *Transport) WithRetryDelay(d time.Duration) *Transport {
	t.retryDelay = d
	return t
}

// PumpRead reads once from the transport and pushes whatever it got onto
// s.Input, forwarding io.EOF as Session.OnEOF. Returns the error from the
// underlying Read, or nil.
func (t *Transport) PumpRead(s *Session) error {
	for {
		n, err := t.r.Read(t.readBuf)
		if n > 0 {
			buf := make([]byte, n)
			copy(buf, t.readBuf[:n])
			s.Input.Push(buf)
		}
		if err == nil {
			return nil
		}
		if err == io.EOF {
			s.OnEOF()
			return nil
		}
		if errors.Is(err, wire.ErrWouldBlock) || errors.Is(err, wire.ErrMore) {
			if !t.waitOnceOnWouldBlock() {
				return nil
			}
			continue
		}
		return err
	}
}

// PumpWrite drains s.Output and writes every pending chunk to the
// transport, retrying on ErrWouldBlock/ErrMore the same way PumpRead does.
// It returns as soon as s.Output is empty, so a caller polling it on a
// timer (as the non-blocking transport role does) never blocks here.
func (t *Transport) PumpWrite(s *Session) error {
	for {
		chunk, ok := s.Output.Pop()
		if !ok {
			return nil
		}
		if err := t.writeAll(chunk); err != nil {
			return err
		}
	}
}

// PumpWriteWait is PumpWrite's blocking counterpart, for a dedicated writer
// goroutine instead of a polling loop: when s.Output is empty it blocks on
// s.Output.WaitWhileEmpty() until the driver pushes more, rather than
// returning immediately. Exits once the session itself exits. Mirrors
// libuvserverrunner.cpp/libuvclientrunner.cpp's write-ready callback, which
// only fires once output exists instead of spinning a poller.
func (t *Transport) PumpWriteWait(s *Session) error {
	for {
		chunk, ok := s.Output.Pop()
		if !ok {
			if s.Exited() {
				return nil
			}
			s.Output.WaitWhileEmpty()
			continue
		}
		if err := t.writeAll(chunk); err != nil {
			return err
		}
	}
}

func (t *Transport) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := t.w.Write(p)
		if n > 0 {
			p = p[n:]
		}
		if err == nil {
			continue
		}
		if errors.Is(err, wire.ErrWouldBlock) || errors.Is(err, wire.ErrMore) {
			if !t.waitOnceOnWouldBlock() {
				return nil
			}
			continue
		}
		return err
	}
	return nil
}

func (t *Transport) waitOnceOnWouldBlock() bool {
	if t.retryDelay < 0 {
		return false
	}
	if t.retryDelay == 0 {
		runtime.Gosched()
		return true
	}
	time.Sleep(t.retryDelay)
	return true
}
