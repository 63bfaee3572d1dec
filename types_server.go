/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	// StateIdle is an accepted connection awaiting its first byte.
	StateIdle ConnState = iota

	// StateParsing has bytes arriving and the parser running.
	StateParsing

	// StateHandling means the message is complete and the middleware or
	// handler is running.
	StateHandling

	// StateWriting has a response send in progress.
	StateWriting

	// StateUpgraded means the socket was handed to another protocol.
	// This is a terminal state: the connection never touches the socket
	// again, not even to close it.
	StateUpgraded

	// StateClosing drains outstanding writes before closing.
	StateClosing

	// StateClosed is terminal; no callback touches the connection after it.
	StateClosed
)

const (
	// DefaultIdleTimeout is how long a keep-alive connection may sit
	// between requests before the server closes it.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultSendfileChunkSize bounds one streamed write.
	DefaultSendfileChunkSize = 256 << 10

	// DefaultSendfileTimeout bounds one streamed chunk.
	DefaultSendfileTimeout = 30 * time.Second

	// shutdownPollInterval is how often we poll for quiescence
	// during Server.Shutdown.
	shutdownPollInterval = 100 * time.Millisecond
)

var (
	// ErrServerClosed is returned by Serve and ListenAndServe after a
	// call to Shutdown or Close.
	ErrServerClosed = errors.New("uvhttp: Server closed")

	stateName = map[ConnState]string{
		StateIdle:     "idle",
		StateParsing:  "parsing",
		StateHandling: "handling",
		StateWriting:  "writing",
		StateUpgraded: "upgraded",
		StateClosing:  "closing",
		StateClosed:   "closed",
	}
)

type (
	// A ConnState is a position in the connection state machine. It is
	// also surfaced through the optional Server.ConnState hook.
	ConnState int

	// A Server defines parameters for running the HTTP server. The
	// zero value is a valid configuration listening on ":http" with no
	// router (every request answered 200 OK).
	Server struct {
		// Addr is the TCP address to listen on, ":http" if empty.
		Addr string

		// Router resolves paths to handlers; nil means the default
		// 200 OK responder.
		Router Router

		// IdleTimeout is the maximum time a connection waits for the
		// next request. Zero means DefaultIdleTimeout; negative
		// disables the timeout.
		IdleTimeout time.Duration

		// MaxURLBytes and MaxBodyBytes bound one request. Zero means
		// the package defaults.
		MaxURLBytes  int
		MaxBodyBytes int64

		// Logger receives connection-level diagnostics. Nil means the
		// standard logrus logger.
		Logger logrus.FieldLogger

		// Clock feeds the rate limiter; tests inject a fake one. Nil
		// means the real clock.
		Clock clockwork.Clock

		// ConnState is an optional hook called when a connection
		// changes state.
		ConnState func(net.Conn, ConnState)

		middleware MiddlewareChain
		upgrades   upgradeRegistry
		limiter    *rateLimiter
		telemetry  *Telemetry
		metrics    *serverMetrics

		initOnce sync.Once

		inShutdown atomic.Bool

		mu         sync.Mutex
		listener   net.Listener
		activeConn map[*Conn]struct{}
		doneChan   chan struct{}
	}
)

// String returns the lowercase name of the state.
func (s ConnState) String() string {
	if n, ok := stateName[s]; ok {
		return n
	}
	return "unknown"
}
