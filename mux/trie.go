/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mux

import (
	"strings"

	uvhttp "github.com/adam-ikari/uvhttp"
)

func newTrie() *trie {
	t := &trie{nodes: make([]node, 1, 64)}
	t.nodes[0] = newNode("")
	return t
}

func newNode(seg string) node {
	return node{seg: seg, paramChild: -1, wildcardChild: -1}
}

func (t *trie) alloc(seg string) int32 {
	t.nodes = append(t.nodes, newNode(seg))
	return int32(len(t.nodes) - 1)
}

// insert threads one route through the arena, creating nodes on demand.
// A terminal that already holds the method keeps its first handler, the
// same first-wins outcome the array's insertion-order scan produces.
func (t *trie) insert(rt route) {
	cur := int32(0)
	var names []string
	hasWild := false

	for _, s := range rt.segs {
		switch s.kind {
		case segLiteral:
			cur = t.literalChild(cur, s.text, true)
		case segParam:
			names = append(names, s.text)
			if t.nodes[cur].paramChild < 0 {
				idx := t.alloc(":")
				t.nodes[cur].paramChild = idx
			}
			cur = t.nodes[cur].paramChild
		case segWildcard:
			names = append(names, s.text)
			hasWild = true
			if t.nodes[cur].wildcardChild < 0 {
				idx := t.alloc("*")
				t.nodes[cur].wildcardChild = idx
			}
			cur = t.nodes[cur].wildcardChild
		}
	}

	n := &t.nodes[cur]
	if n.terminals == nil {
		n.terminals = make(map[string]terminal, 1)
	}
	if _, taken := n.terminals[rt.method]; !taken {
		n.terminals[rt.method] = terminal{handler: rt.handler, names: names, hasWild: hasWild}
	}
}

// literalChild finds the child of parent matching seg, creating it when
// create is set. Children stay ordered by first byte; the first
// inlineChildren indices live in the node's fixed array, later ones in
// the spill slice.
func (t *trie) literalChild(parent int32, seg string, create bool) int32 {
	n := &t.nodes[parent]
	pos := n.nchildren
	for i := 0; i < n.nchildren; i++ {
		ci := n.child(i)
		cseg := t.nodes[ci].seg
		if cseg == seg {
			return ci
		}
		if cseg[0] > seg[0] && i < pos {
			pos = i
		}
	}
	if !create {
		return -1
	}
	idx := t.alloc(seg)
	// alloc may grow the arena; reacquire the parent.
	n = &t.nodes[parent]
	n.insertChild(pos, idx)
	return idx
}

func (n *node) child(i int) int32 {
	if i < inlineChildren {
		return n.inline[i]
	}
	return n.spill[i-inlineChildren]
}

func (n *node) insertChild(pos int, idx int32) {
	all := make([]int32, 0, n.nchildren+1)
	for i := 0; i < n.nchildren; i++ {
		all = append(all, n.child(i))
	}
	all = append(all, 0)
	copy(all[pos+1:], all[pos:])
	all[pos] = idx
	n.nchildren++
	for i, ci := range all {
		if i < inlineChildren {
			n.inline[i] = ci
		} else {
			if i-inlineChildren < len(n.spill) {
				n.spill[i-inlineChildren] = ci
			} else {
				n.spill = append(n.spill, ci)
			}
		}
	}
}

// lookup walks the path segments with backtracking. At every node the
// literal children are tried first, then the param slot, then the
// wildcard slot, which reproduces the array representation's
// literal > :name > *name preference.
func (t *trie) lookup(segs []string, method string) (uvhttp.Handler, uvhttp.Params) {
	var captured []string
	term, values, ok := t.walk(0, segs, captured, method)
	if !ok {
		return nil, nil
	}
	if len(term.names) == 0 {
		return term.handler, nil
	}
	params := make(uvhttp.Params, len(term.names))
	for i, name := range term.names {
		params[name] = values[i]
	}
	return term.handler, params
}

func (t *trie) walk(cur int32, segs []string, captured []string, method string) (terminal, []string, bool) {
	n := &t.nodes[cur]

	if len(segs) == 0 {
		if term, ok := n.terminal(method); ok {
			return term, captured, true
		}
		// *name also matches the empty remainder.
		if n.wildcardChild >= 0 {
			if term, ok := t.nodes[n.wildcardChild].terminal(method); ok {
				return term, append(captured, ""), true
			}
		}
		return terminal{}, nil, false
	}

	seg := segs[0]

	if seg != "" {
		for i := 0; i < n.nchildren; i++ {
			ci := n.child(i)
			if t.nodes[ci].seg == seg {
				if term, vals, ok := t.walk(ci, segs[1:], captured, method); ok {
					return term, vals, true
				}
				break
			}
		}
		if n.paramChild >= 0 {
			if term, vals, ok := t.walk(n.paramChild, segs[1:], append(captured, seg), method); ok {
				return term, vals, true
			}
		}
	}

	if n.wildcardChild >= 0 {
		if term, ok := t.nodes[n.wildcardChild].terminal(method); ok {
			return term, append(captured, strings.Join(segs, "/")), true
		}
	}

	return terminal{}, nil, false
}

// terminal resolves the handler set at a node for method: an exact
// method entry wins over ANY.
func (n *node) terminal(method string) (terminal, bool) {
	if n.terminals == nil {
		return terminal{}, false
	}
	if term, ok := n.terminals[method]; ok {
		return term, true
	}
	if term, ok := n.terminals[uvhttp.ANY]; ok {
		return term, true
	}
	return terminal{}, false
}
