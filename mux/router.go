/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mux

import (
	"strings"

	uvhttp "github.com/adam-ikari/uvhttp"
)

// New returns an empty Router with the default hybrid threshold.
func New() *Router {
	return NewWithThreshold(HybridThreshold)
}

// NewWithThreshold returns an empty Router promoting to the trie once
// the route count exceeds threshold.
func NewWithThreshold(threshold int) *Router {
	if threshold < 1 {
		threshold = 1
	}
	return &Router{
		threshold: threshold,
		seen:      make(map[string]struct{}),
	}
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Promoted reports whether the trie representation is authoritative.
func (r *Router) Promoted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trie != nil
}

// AddRoute registers handler for the (method, pattern) pair. The
// pattern is '/'-separated; each segment is a literal, a ":name"
// single-segment capture, or a terminal "*name" rest-of-path capture.
// Method is one of the request methods or ANY. Registering the route
// that takes the count past the threshold promotes the whole table to
// the trie in the same call; the array is discarded.
func (r *Router) AddRoute(method, pattern string, handler uvhttp.Handler) error {
	if handler == nil || method == "" {
		return uvhttp.ErrInvalidParam
	}
	segs, err := parsePattern(pattern)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := method + "\x00" + pattern
	if _, dup := r.seen[key]; dup {
		return ErrDuplicateRoute
	}
	r.seen[key] = struct{}{}

	rt := route{method: method, pattern: pattern, handler: handler, segs: segs}
	r.count++

	if r.trie != nil {
		r.trie.insert(rt)
		return nil
	}

	r.routes = append(r.routes, rt)
	if r.count > r.threshold {
		t := newTrie()
		for _, old := range r.routes {
			t.insert(old)
		}
		r.trie = t
		r.routes = nil
	}
	return nil
}

// FindHandler returns the handler matching path and method, with any
// captured parameter values, or nil. Candidate preference: exact
// literal match over :name capture over *name capture; within a class
// the route with more literal prefix segments wins; remaining ties go
// to insertion order. An exact-method route beats an ANY route.
func (r *Router) FindHandler(path, method string) (uvhttp.Handler, uvhttp.Params) {
	segs := splitPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.trie != nil {
		return r.trie.lookup(segs, method)
	}
	return r.scan(segs, method)
}

// scan is the array representation's lookup: a literal-preferred pass
// with early exit, then a scored pass over parameterized routes.
func (r *Router) scan(segs []string, method string) (uvhttp.Handler, uvhttp.Params) {
	// Pass 1: pure literal matches; first accepting route wins, with a
	// same-pattern exact-method route beating its ANY twin.
	var anyHit *route
	for i := range r.routes {
		rt := &r.routes[i]
		if !rt.literalOnly() {
			continue
		}
		if !rt.matchLiteral(segs) {
			continue
		}
		if rt.method == method {
			return rt.handler, nil
		}
		if rt.method == uvhttp.ANY && anyHit == nil {
			anyHit = rt
		}
	}
	if anyHit != nil {
		return anyHit.handler, nil
	}

	// Pass 2: parameterized routes, best candidate by class, literal
	// prefix length, method exactness, insertion order.
	var (
		best       *route
		bestParams uvhttp.Params
		bestClass  int
		bestPrefix int
		bestExact  bool
	)
	for i := range r.routes {
		rt := &r.routes[i]
		if rt.literalOnly() {
			continue
		}
		exact := rt.method == method
		if !exact && rt.method != uvhttp.ANY {
			continue
		}
		params, ok := rt.match(segs)
		if !ok {
			continue
		}
		class := rt.class()
		prefix := rt.literalPrefix()
		if best == nil ||
			class < bestClass ||
			(class == bestClass && prefix > bestPrefix) ||
			(class == bestClass && prefix == bestPrefix && exact && !bestExact) {
			best, bestParams, bestClass, bestPrefix, bestExact = rt, params, class, prefix, exact
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.handler, bestParams
}

func (rt *route) literalOnly() bool {
	for _, s := range rt.segs {
		if s.kind != segLiteral {
			return false
		}
	}
	return true
}

// class ranks how a route captures: 0 pure literal, 1 :name captures,
// 2 anything with a *name tail.
func (rt *route) class() int {
	class := 0
	for _, s := range rt.segs {
		switch s.kind {
		case segParam:
			if class < 1 {
				class = 1
			}
		case segWildcard:
			return 2
		}
	}
	return class
}

func (rt *route) literalPrefix() int {
	n := 0
	for _, s := range rt.segs {
		if s.kind != segLiteral {
			break
		}
		n++
	}
	return n
}

func (rt *route) matchLiteral(segs []string) bool {
	if len(rt.segs) != len(segs) {
		return false
	}
	for i, s := range rt.segs {
		if s.text != segs[i] {
			return false
		}
	}
	return true
}

// match walks the pattern against the path segments, collecting
// captures. :name values slice the original path; a *name capture that
// spans several segments is joined into a newly allocated string.
func (rt *route) match(segs []string) (uvhttp.Params, bool) {
	var params uvhttp.Params
	for i, s := range rt.segs {
		switch s.kind {
		case segLiteral:
			if i >= len(segs) || segs[i] != s.text {
				return nil, false
			}
		case segParam:
			if i >= len(segs) || segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(uvhttp.Params, 2)
			}
			params[s.text] = segs[i]
		case segWildcard:
			rest := ""
			if i < len(segs) {
				rest = strings.Join(segs[i:], "/")
			}
			if params == nil {
				params = make(uvhttp.Params, 1)
			}
			params[s.text] = rest
			return params, true
		}
	}
	if len(rt.segs) != len(segs) {
		return nil, false
	}
	return params, true
}

// parsePattern validates and splits a route pattern.
func parsePattern(pattern string) ([]segment, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, ErrBadPattern
	}
	raw := splitPath(pattern)
	segs := make([]segment, 0, len(raw))
	for i, s := range raw {
		switch {
		case strings.HasPrefix(s, ":"):
			if len(s) == 1 {
				return nil, ErrBadPattern
			}
			segs = append(segs, segment{kind: segParam, text: s[1:]})
		case strings.HasPrefix(s, "*"):
			if len(s) == 1 || i != len(raw)-1 {
				return nil, ErrBadPattern
			}
			segs = append(segs, segment{kind: segWildcard, text: s[1:]})
		case s == "":
			return nil, ErrBadPattern
		default:
			segs = append(segs, segment{kind: segLiteral, text: s})
		}
	}
	return segs, nil
}

// splitPath turns "/a/b" into ["a", "b"]; "/" is the empty list.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
