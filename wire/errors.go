// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"errors"

	"code.hybscloud.com/iox"
)

var (
	// ErrWouldBlock and ErrMore are re-exported the same way framer.go
	// re-exposes them: the transport pump (vm/iopump.go) speaks the same
	// non-blocking control-flow vocabulary the rest of the corpus's I/O
	// layers use, rather than inventing a second one for this module.
	ErrWouldBlock = iox.ErrWouldBlock
	ErrMore       = iox.ErrMore

	// ErrNeedMoreData reports that a parser has consumed every byte handed
	// to it so far but cannot yet complete the current message (spec §7
	// NeedMoreData: "not an error to the host, returned as a status").
	ErrNeedMoreData = errors.New("wire: need more data")

	// ErrProtocolMismatch reports that the bytes received do not match any
	// action this parser is configured to run (spec §7 ProtocolMismatch).
	ErrProtocolMismatch = errors.New("wire: protocol mismatch")

	// ErrInvalidArgument reports a nil/misconfigured parser or serializer.
	ErrInvalidArgument = errors.New("wire: invalid argument")

	// ErrTooLong reports an octet run whose length exceeds configured
	// limits before its terminator was found.
	ErrTooLong = errors.New("wire: message too long")

	// ErrTruncated reports that the stream ended (OnEOF) while a read
	// transition was still mid-parse and had not reached Complete (spec
	// §4.1/§4.6: EOF during a committed read resolves the transition, it
	// never leaves it waiting forever).
	ErrTruncated = errors.New("wire: stream ended mid-message")
)
