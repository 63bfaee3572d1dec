/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"sync"
	"time"
)

// The error kinds surfaced by the core. Every failure path records one
// of these against the owning Server's telemetry.
const (
	ErrorNone ErrorKind = iota

	// ErrorInvalidParam is API misuse: nil argument, bad config value.
	// Returned to the caller with no side effects.
	ErrorInvalidParam

	// ErrorOutOfMemory is an allocation-class failure (a buffer or
	// cache refusing to grow past its cap).
	ErrorOutOfMemory

	// ErrorParseProtocol is malformed HTTP bytes. The connection closes
	// without a response.
	ErrorParseProtocol

	// ErrorParseOversize is a URL, header, or body over its configured
	// maximum. Answered with 400 when headers were already parsed,
	// otherwise the connection closes.
	ErrorParseOversize

	// ErrorRouteNotFound produces the 404 response.
	ErrorRouteNotFound

	// ErrorRateLimited produces the 429 response with Retry-After.
	ErrorRateLimited

	// ErrorIOTransient is a retryable sendfile chunk failure.
	ErrorIOTransient

	// ErrorIOFatal is an unrecoverable socket or file error.
	ErrorIOFatal

	// ErrorUpgradeRejected is a malformed upgrade handshake.
	ErrorUpgradeRejected

	// ErrorDoubleSend is a handler sending a response twice: a
	// programming error, logged, second send ignored.
	ErrorDoubleSend

	errorKindCount
)

var errorKindNames = map[ErrorKind]string{
	ErrorNone:            "none",
	ErrorInvalidParam:    "invalid_param",
	ErrorOutOfMemory:     "out_of_memory",
	ErrorParseProtocol:   "parse_protocol",
	ErrorParseOversize:   "parse_oversize",
	ErrorRouteNotFound:   "route_not_found",
	ErrorRateLimited:     "rate_limited",
	ErrorIOTransient:     "io_transient",
	ErrorIOFatal:         "io_fatal",
	ErrorUpgradeRejected: "upgrade_rejected",
	ErrorDoubleSend:      "double_send",
}

var (
	// ErrInvalidParam is the bare invalid-parameter error for call
	// sites with nothing more specific to say.
	ErrInvalidParam = &Error{Kind: ErrorInvalidParam, Message: "invalid parameter"}

	// ErrDoubleSend is returned by Response.Send when the response was
	// already sent.
	ErrDoubleSend = &Error{Kind: ErrorDoubleSend, Message: "response already sent"}
)

type (
	// ErrorKind classifies a core failure for telemetry and disposition.
	ErrorKind int

	// An Error carries an ErrorKind plus a short human-readable string.
	Error struct {
		Kind    ErrorKind
		Message string
	}

	// Telemetry is the per-Server error bookkeeping: a counter per
	// kind, plus the time and context of the most recent error. It
	// replaces the original's process-wide statistics singleton.
	Telemetry struct {
		mu          sync.Mutex
		counts      [errorKindCount]uint64
		lastTime    time.Time
		lastContext string
	}

	// TelemetryStats is a point-in-time copy of a Telemetry.
	TelemetryStats struct {
		Counts      map[ErrorKind]uint64
		LastTime    time.Time
		LastContext string
	}
)

func (e *Error) Error() string {
	return e.Message
}

// String returns the telemetry label for the kind.
func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Record notes one occurrence of kind with a short context string.
func (t *Telemetry) Record(kind ErrorKind, context string) {
	if kind <= ErrorNone || kind >= errorKindCount {
		return
	}
	t.mu.Lock()
	t.counts[kind]++
	t.lastTime = time.Now()
	t.lastContext = context
	t.mu.Unlock()
}

// Count returns the number of recorded errors of kind.
func (t *Telemetry) Count(kind ErrorKind) uint64 {
	if kind <= ErrorNone || kind >= errorKindCount {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[kind]
}

// Snapshot copies the current statistics.
func (t *Telemetry) Snapshot() TelemetryStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := TelemetryStats{
		Counts:      make(map[ErrorKind]uint64, errorKindCount),
		LastTime:    t.lastTime,
		LastContext: t.lastContext,
	}
	for k := ErrorKind(1); k < errorKindCount; k++ {
		if t.counts[k] > 0 {
			s.Counts[k] = t.counts[k]
		}
	}
	return s
}

// Reset zeroes all counters and the last-error context.
func (t *Telemetry) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = [errorKindCount]uint64{}
	t.lastTime = time.Time{}
	t.lastContext = ""
}
