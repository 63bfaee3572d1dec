/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"io"
	"strings"
)

// Add appends the key, value pair to the headers, after any existing
// values associated with key. It enforces the per-field and per-message
// size bounds.
func (h *Headers) Add(key, value string) error {
	if len(key) > NameMax {
		return ErrNameTooLong
	}
	if len(value) > ValueMax {
		return ErrValueTooLong
	}
	if h.count >= MaxPairs {
		return ErrTooMany
	}
	if h.count < InlineSlots {
		h.inline[h.count] = Pair{key, value}
		h.count++
		return nil
	}
	if need := h.count - InlineSlots + 1; need > cap(h.spill) {
		newCap := cap(h.spill) * 2
		if newCap == 0 {
			newCap = InlineSlots
		}
		if newCap > MaxPairs-InlineSlots {
			newCap = MaxPairs - InlineSlots
		}
		spill := make([]Pair, len(h.spill), newCap)
		copy(spill, h.spill)
		h.spill = spill
	}
	h.spill = append(h.spill, Pair{key, value})
	h.count++
	return nil
}

// Set replaces every value associated with key by the single element
// value, keeping the position of the first occurrence. If key is not
// present, Set appends.
func (h *Headers) Set(key, value string) error {
	first := -1
	for i := 0; i < h.count; i++ {
		if strings.EqualFold(h.at(i).Name, key) {
			first = i
			break
		}
	}
	if first == -1 {
		return h.Add(key, value)
	}
	if len(value) > ValueMax {
		return ErrValueTooLong
	}
	out := make([]Pair, 0, h.count)
	for i := 0; i < h.count; i++ {
		p := h.at(i)
		if strings.EqualFold(p.Name, key) {
			if i == first {
				out = append(out, Pair{p.Name, value})
			}
			continue
		}
		out = append(out, *p)
	}
	h.reload(out)
	return nil
}

// Get returns the first value associated with key, case-insensitively.
// It returns "" if the key is absent.
func (h *Headers) Get(key string) string {
	for i := 0; i < h.count; i++ {
		if p := h.at(i); strings.EqualFold(p.Name, key) {
			return p.Value
		}
	}
	return ""
}

// Has reports whether key is present.
func (h *Headers) Has(key string) bool {
	for i := 0; i < h.count; i++ {
		if strings.EqualFold(h.at(i).Name, key) {
			return true
		}
	}
	return false
}

// Values returns all values associated with key in insertion order.
func (h *Headers) Values(key string) []string {
	var vals []string
	for i := 0; i < h.count; i++ {
		if p := h.at(i); strings.EqualFold(p.Name, key) {
			vals = append(vals, p.Value)
		}
	}
	return vals
}

// Del removes every value associated with key.
func (h *Headers) Del(key string) {
	out := make([]Pair, 0, h.count)
	for i := 0; i < h.count; i++ {
		if p := h.at(i); !strings.EqualFold(p.Name, key) {
			out = append(out, *p)
		}
	}
	h.reload(out)
}

// Len returns the number of pairs held.
func (h *Headers) Len() int {
	return h.count
}

// At returns the i-th pair in insertion order.
func (h *Headers) At(i int) Pair {
	if i < 0 || i >= h.count {
		return Pair{}
	}
	return *h.at(i)
}

// Each calls fn for every pair in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for i := 0; i < h.count; i++ {
		p := h.at(i)
		fn(p.Name, p.Value)
	}
}

// Reset drops all pairs but keeps the spill capacity for reuse, so a
// keep-alive connection does not reallocate per request.
func (h *Headers) Reset() {
	h.spill = h.spill[:0]
	h.count = 0
}

// Write writes the headers in wire format, one "Name: value" line per
// pair, in insertion order.
func (h *Headers) Write(w io.Writer) error {
	for i := 0; i < h.count; i++ {
		p := h.at(i)
		for _, s := range []string{p.Name, ": ", p.Value, "\r\n"} {
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Headers) at(i int) *Pair {
	if i < InlineSlots {
		return &h.inline[i]
	}
	return &h.spill[i-InlineSlots]
}

func (h *Headers) reload(pairs []Pair) {
	h.Reset()
	for _, p := range pairs {
		if h.count < InlineSlots {
			h.inline[h.count] = p
		} else {
			h.spill = append(h.spill, p)
		}
		h.count++
	}
}
