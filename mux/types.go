/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mux

import (
	"errors"
	"sync"

	uvhttp "github.com/adam-ikari/uvhttp"
)

const (
	// HybridThreshold is the route count up to which the flat-array
	// representation is used; the route after it triggers promotion to
	// the trie.
	HybridThreshold = 100

	// inlineChildren is the trie node fan-out held without spilling.
	inlineChildren = 12
)

const (
	segLiteral segKind = iota
	segParam
	segWildcard
)

var (
	// ErrBadPattern is returned by AddRoute for a malformed pattern.
	ErrBadPattern = errors.New("mux: malformed route pattern")

	// ErrDuplicateRoute is returned by AddRoute when the same
	// (method, pattern) pair was already registered.
	ErrDuplicateRoute = errors.New("mux: duplicate route")
)

type (
	segKind int

	// A segment is one '/'-delimited element of a route pattern:
	// a literal, a :name single-segment capture, or a *name
	// rest-of-path capture (terminal only).
	segment struct {
		kind segKind
		text string // literal text, or the capture name
	}

	// A route is one (pattern, method, handler) triple in the flat
	// array representation.
	route struct {
		method  string
		pattern string
		handler uvhttp.Handler
		segs    []segment
	}

	// A Router maps request paths to handlers. Up to HybridThreshold
	// routes it scans a flat array; past that, the routes are lifted
	// into an index-addressed trie and the array is discarded. At any
	// moment exactly one representation is authoritative, and the
	// promotion happens entirely under the write lock, so a concurrent
	// lookup never observes a partial trie.
	Router struct {
		mu        sync.RWMutex
		threshold int
		seen      map[string]struct{} // method+"\x00"+pattern
		routes    []route             // array representation
		trie      *trie               // authoritative once non-nil
		count     int
	}

	// trie is the promoted representation: nodes live in one arena and
	// refer to each other by index, not pointer.
	trie struct {
		nodes []node
	}

	// A node matches one path segment. Literal children are kept
	// ordered by first byte, the first inlineChildren of them in a
	// fixed array, the rest in a spill slice. Param and wildcard
	// children occupy dedicated slots and are tried, in that order,
	// only after every literal child fails.
	node struct {
		seg string

		inline    [inlineChildren]int32
		nchildren int
		spill     []int32

		paramChild    int32
		wildcardChild int32

		// terminals maps a method to the handler ending here, plus the
		// capture names of the exact pattern that registered it.
		terminals map[string]terminal
	}

	terminal struct {
		handler uvhttp.Handler
		names   []string // capture names in pattern order, wildcard last
		hasWild bool
	}
)
