/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersAddGet(t *testing.T) {
	var h Headers
	require.NoError(t, h.Add("Content-Type", "text/plain"))
	require.NoError(t, h.Add("X-Custom", "one"))
	require.NoError(t, h.Add("X-Custom", "two"))

	assert.Equal(t, "text/plain", h.Get("content-type"))
	assert.Equal(t, "text/plain", h.Get("CONTENT-TYPE"))
	assert.Equal(t, "", h.Get("Absent"))

	// Multiplicity preserved; Get returns the first-inserted value.
	assert.Equal(t, "one", h.Get("X-Custom"))
	assert.Equal(t, []string{"one", "two"}, h.Values("x-custom"))
	assert.Equal(t, 3, h.Len())
}

func TestHeadersInsertionOrderAcrossSpill(t *testing.T) {
	var h Headers
	total := InlineSlots + 8
	for i := 0; i < total; i++ {
		require.NoError(t, h.Add(fmt.Sprintf("X-H-%02d", i), fmt.Sprintf("v%02d", i)))
	}
	require.Equal(t, total, h.Len())

	for i := 0; i < total; i++ {
		p := h.At(i)
		assert.Equal(t, fmt.Sprintf("X-H-%02d", i), p.Name)
		assert.Equal(t, fmt.Sprintf("v%02d", i), p.Value)
	}
}

func TestHeadersLimits(t *testing.T) {
	var h Headers

	require.NoError(t, h.Add(strings.Repeat("a", NameMax), "v"))
	assert.Equal(t, ErrNameTooLong, h.Add(strings.Repeat("a", NameMax+1), "v"))

	require.NoError(t, h.Add("X-Val", strings.Repeat("b", ValueMax)))
	assert.Equal(t, ErrValueTooLong, h.Add("X-Val", strings.Repeat("b", ValueMax+1)))

	h.Reset()
	for i := 0; i < MaxPairs; i++ {
		require.NoError(t, h.Add("X-N", "v"))
	}
	assert.Equal(t, ErrTooMany, h.Add("X-N", "v"))
}

func TestHeadersSetAndDel(t *testing.T) {
	var h Headers
	require.NoError(t, h.Add("Vary", "Accept"))
	require.NoError(t, h.Add("X-Other", "keep"))
	require.NoError(t, h.Add("vary", "Cookie"))

	require.NoError(t, h.Set("Vary", "Accept, Origin"))
	assert.Equal(t, []string{"Accept, Origin"}, h.Values("Vary"))
	// The first occurrence keeps its slot.
	assert.Equal(t, "Vary", h.At(0).Name)
	assert.Equal(t, "X-Other", h.At(1).Name)

	require.NoError(t, h.Set("X-New", "fresh"))
	assert.Equal(t, "fresh", h.Get("X-New"))

	h.Del("vary")
	assert.False(t, h.Has("Vary"))
	assert.Equal(t, "keep", h.Get("X-Other"))
}

func TestHeadersReset(t *testing.T) {
	var h Headers
	for i := 0; i < InlineSlots+4; i++ {
		require.NoError(t, h.Add("X-H", "v"))
	}
	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, "", h.Get("X-H"))
	require.NoError(t, h.Add("X-After", "v"))
	assert.Equal(t, "v", h.Get("X-After"))
}

func TestHeadersWrite(t *testing.T) {
	var h Headers
	h.Add("Host", "example.com")
	h.Add("Accept", "*/*")

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))
	assert.Equal(t, "Host: example.com\r\nAccept: */*\r\n", buf.String())
}

func TestCanonicalHeaderKey(t *testing.T) {
	assert.Equal(t, "Accept-Encoding", CanonicalHeaderKey("accept-encoding"))
	assert.Equal(t, "Host", CanonicalHeaderKey("HOST"))
	// Invalid bytes leave the key untouched.
	assert.Equal(t, "spaced key", CanonicalHeaderKey("spaced key"))
}

func TestContainsToken(t *testing.T) {
	assert.True(t, ContainsToken("keep-alive, Upgrade", "upgrade"))
	assert.True(t, ContainsToken("Upgrade", "upgrade"))
	assert.True(t, ContainsToken("close", "close"))
	assert.False(t, ContainsToken("keep-alive", "close"))
	assert.False(t, ContainsToken("Upgraded", "Upgrade"))
	assert.False(t, ContainsToken("", "close"))
}

func TestParseTime(t *testing.T) {
	tm, err := ParseTime("Sun, 06 Nov 1994 08:49:37 GMT")
	require.NoError(t, err)
	assert.Equal(t, 1994, tm.Year())

	_, err = ParseTime("not a date")
	assert.Error(t, err)
}

func TestValidHeaderFieldName(t *testing.T) {
	assert.True(t, ValidHeaderFieldName("Content-Type"))
	assert.False(t, ValidHeaderFieldName(""))
	assert.False(t, ValidHeaderFieldName("Bad Name"))
	assert.False(t, ValidHeaderFieldName("Bad:Name"))
}
