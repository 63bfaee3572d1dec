/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// init builds the lazily-constructed shared state (telemetry and
// metrics) and fills in defaults for the clock, the request limits and
// the idle timeout. The rate limiter is built by SetRateLimit.
// Configuration methods call it so they can be used in any order
// before Serve.
func (s *Server) init() {
	s.initOnce.Do(func() {
		s.telemetry = &Telemetry{}
		s.metrics = newServerMetrics()
		if s.Clock == nil {
			s.Clock = clockwork.NewRealClock()
		}
		if s.MaxURLBytes <= 0 {
			s.MaxURLBytes = DefaultMaxURLBytes
		}
		if s.MaxBodyBytes <= 0 {
			s.MaxBodyBytes = DefaultMaxBodyBytes
		}
		if s.IdleTimeout == 0 {
			s.IdleTimeout = DefaultIdleTimeout
		}
		if s.IdleTimeout < 0 {
			s.IdleTimeout = 0
		}
	})
}

func (s *Server) log() logrus.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return logrus.StandardLogger()
}

// Use appends an interceptor to the server's middleware chain. Call it
// before Serve; the chain is read-only while serving.
func (s *Server) Use(m Middleware) *Server {
	s.middleware.Use(m)
	return s
}

// SetRateLimit configures the per-server request limiter: at most
// cfg.Requests per cfg.Window, with cfg.Whitelist addresses exempt.
func (s *Server) SetRateLimit(cfg RateLimitConfig) error {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return ErrInvalidParam
	}
	s.init()
	s.limiter = newRateLimiter(cfg, s.Clock)
	return nil
}

// RegisterUpgrade adds a protocol-upgrade registration under a stable
// name. Detectors run in registration order; the first claim wins.
func (s *Server) RegisterUpgrade(name string, detect UpgradeDetector, handle UpgradeHandler, userData interface{}) error {
	return s.upgrades.register(name, detect, handle, userData)
}

// EnableWebSocket registers the built-in WebSocket handshake under the
// name "websocket". After a successful handshake the socket is handed
// to recipient together with userData.
func (s *Server) EnableWebSocket(recipient TransferFunc, userData interface{}) error {
	if recipient == nil {
		return ErrInvalidParam
	}
	return s.upgrades.register("websocket", IsWebSocketHandshake, newWebSocketHandler(recipient, userData), userData)
}

// Telemetry returns the server's error statistics.
func (s *Server) Telemetry() *Telemetry {
	s.init()
	return s.telemetry
}

// MetricsRegistry returns the server's Prometheus registry, for the
// embedder to expose however it likes.
func (s *Server) MetricsRegistry() *prometheus.Registry {
	s.init()
	return s.metrics.registry
}

// ListenAndServe listens on s.Addr and serves until Close or Shutdown.
func (s *Server) ListenAndServe() error {
	addr := s.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, spawning one goroutine per
// connection. Within a connection everything runs sequentially, which
// is what serializes callbacks per connection; the structures shared
// across connections are individually synchronized.
func (s *Server) Serve(ln net.Listener) error {
	s.init()

	s.mu.Lock()
	s.listener = ln
	if s.doneChan == nil {
		s.doneChan = make(chan struct{})
	}
	done := s.doneChan
	s.mu.Unlock()

	defer ln.Close()

	var tempDelay time.Duration // how long to sleep on accept failure
	for {
		rw, err := ln.Accept()
		if err != nil {
			select {
			case <-done:
				return ErrServerClosed
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				s.log().Warnf("accept error: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0
		c := s.newConn(rw)
		go c.serve()
	}
}

func (s *Server) newConn(rwc net.Conn) *Conn {
	c := &Conn{
		server:     s,
		rwc:        rwc,
		remoteAddr: rwc.RemoteAddr().String(),
	}
	c.bufWriter = bufio.NewWriterSize(checkConnErrorWriter{c}, 4<<10)
	c.parser = NewParser(c, ParserLimits{
		MaxURLBytes:  s.MaxURLBytes,
		MaxBodyBytes: s.MaxBodyBytes,
	})
	c.req.RemoteAddr = c.remoteAddr
	c.res.conn = c
	c.setState(StateIdle)
	s.trackConn(c, true)
	return c
}

func (s *Server) trackConn(c *Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeConn == nil {
		s.activeConn = make(map[*Conn]struct{})
	}
	if add {
		s.activeConn[c] = struct{}{}
	} else {
		delete(s.activeConn, c)
	}
}

func (s *Server) doKeepAlives() bool {
	return !s.inShutdown.Load()
}

// Close immediately closes the listener and every tracked connection.
// Upgraded connections are not touched; their sockets are no longer ours.
func (s *Server) Close() error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *multierror.Error
	if s.doneChan != nil {
		select {
		case <-s.doneChan:
		default:
			close(s.doneChan)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.listener = nil
	}
	for c := range s.activeConn {
		if c.state() != StateUpgraded {
			if err := c.rwc.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		delete(s.activeConn, c)
	}
	return result.ErrorOrNil()
}

// Shutdown stops accepting, lets in-flight requests finish, and
// returns once every connection has drained or ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	if s.doneChan != nil {
		select {
		case <-s.doneChan:
		default:
			close(s.doneChan)
		}
	}
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		idle := len(s.activeConn) == 0
		s.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
