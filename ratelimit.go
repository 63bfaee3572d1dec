/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type (
	// RateLimitConfig is the per-server limiter surface: at most
	// Requests per Window, with Whitelist addresses exempt.
	RateLimitConfig struct {
		Requests  int
		Window    time.Duration
		Whitelist []string
	}

	// rateLimiter is one token bucket shared by every connection of a
	// Server. The counter and the window advance together under one
	// lock, which is the multi-goroutine uplift of the original's
	// single-threaded counter.
	rateLimiter struct {
		mu          sync.Mutex
		limit       int
		window      time.Duration
		count       int
		windowStart time.Time

		// whitelist holds exempt client addresses for O(1) membership.
		whitelist map[string]struct{}

		clock clockwork.Clock
	}
)

func newRateLimiter(cfg RateLimitConfig, clock clockwork.Clock) *rateLimiter {
	rl := &rateLimiter{
		limit:     cfg.Requests,
		window:    cfg.Window,
		whitelist: make(map[string]struct{}, len(cfg.Whitelist)),
		clock:     clock,
	}
	for _, addr := range cfg.Whitelist {
		rl.whitelist[addr] = struct{}{}
	}
	rl.windowStart = clock.Now()
	return rl
}

// allow accounts one request from addr. It returns true when the
// request may proceed; otherwise the number of whole seconds until the
// window rolls over, for the Retry-After header.
func (rl *rateLimiter) allow(addr string) (bool, int) {
	if _, ok := rl.whitelist[addr]; ok {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	if elapsed := now.Sub(rl.windowStart); elapsed >= rl.window {
		rl.windowStart = now
		rl.count = 0
	}

	rl.count++
	if rl.count <= rl.limit {
		return true, 0
	}

	remaining := rl.window - now.Sub(rl.windowStart)
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return false, secs
}
