/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

const (
	// Continue proceeds to the next interceptor, or to the handler.
	Continue MiddlewareResult = iota

	// Stop ends the chain: the interceptor has produced the response
	// and the remainder of the chain plus the handler are skipped.
	Stop
)

type (
	// MiddlewareResult is an interceptor's verdict on the request.
	MiddlewareResult int

	// A Middleware intercepts a request before its handler. It may
	// mutate the response, stash values for later interceptors in the
	// context bag, or short-circuit by sending the response and
	// returning Stop. Sending and then returning Continue is a
	// programming error, reported as a double send.
	Middleware func(req *Request, res *Response, ctx *MiddlewareContext) MiddlewareResult

	// MiddlewareContext is the mutable bag shared by the interceptors
	// of one request cycle.
	MiddlewareContext struct {
		values map[string]interface{}
	}

	// A MiddlewareChain is an ordered list of interceptors, appended
	// before the server starts serving and read-only afterwards.
	MiddlewareChain struct {
		interceptors []Middleware
	}
)

// Set stores value under key for later interceptors and the handler.
func (c *MiddlewareContext) Set(key string, value interface{}) {
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	c.values[key] = value
}

// Get returns the value stored under key, or nil.
func (c *MiddlewareContext) Get(key string) interface{} {
	return c.values[key]
}

// Use appends an interceptor to the chain.
func (c *MiddlewareChain) Use(m Middleware) *MiddlewareChain {
	if m != nil {
		c.interceptors = append(c.interceptors, m)
	}
	return c
}

// Len returns the number of interceptors held.
func (c *MiddlewareChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.interceptors)
}

// execute runs the chain in order. It reports whether the handler
// should still run, and surfaces a double-send when an interceptor
// sent the response but answered Continue.
func (c *MiddlewareChain) execute(req *Request, res *Response, t *Telemetry) bool {
	if c == nil || len(c.interceptors) == 0 {
		return true
	}
	ctx := &MiddlewareContext{}
	for _, m := range c.interceptors {
		result := m(req, res, ctx)
		if res.Sent() && result == Continue {
			if t != nil {
				t.Record(ErrorDoubleSend, "middleware sent response and returned Continue")
			}
			return false
		}
		if result == Stop {
			return false
		}
	}
	return true
}
