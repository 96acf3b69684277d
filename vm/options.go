// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import "go.uber.org/zap"

// Options configures a Driver, built up through functional options applied
// in order at construction time.
type Options struct {
	Logger               *zap.Logger
	Callbacks            map[string]Callback
	CallbackConcurrency  int64
}

// Option mutates a Driver's Options at construction time.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Logger:              zap.NewNop(),
		Callbacks:           map[string]Callback{},
		CallbackConcurrency: 1,
	}
}

// WithLogger injects a structured logger (spec's ambient logging stack:
// never a package-level global, passed in at construction).
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithCallback registers a host function a Callback opcode can invoke by
// name.
func WithCallback(key string, fn Callback) Option {
	return func(o *Options) { o.Callbacks[key] = fn }
}

// WithCallbackConcurrency bounds how many callback invocations the callback
// thread runs at once (semaphore.Weighted-backed, spec §5's "callback
// thread invokes host functions for WaitingForCallback frames" — plural,
// but still bounded).
func WithCallbackConcurrency(n int64) Option {
	return func(o *Options) { o.CallbackConcurrency = n }
}
