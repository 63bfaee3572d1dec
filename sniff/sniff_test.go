/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package sniff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var sniffTests = []struct {
	desc string
	data []byte
	want string
}{
	{"empty", []byte{}, "text/plain; charset=utf-8"},
	{"plain text", []byte("This is not HTML."), "text/plain; charset=utf-8"},
	{"html doctype", []byte("<!DOCTYPE html><html>"), "text/html; charset=utf-8"},
	{"html with leading ws", []byte("   <html><body>"), "text/html; charset=utf-8"},
	{"xml", []byte("<?xml version=\"1.0\"?>"), "text/xml; charset=utf-8"},
	{"pdf", []byte("%PDF-1.7"), "application/pdf"},
	{"png", []byte("\x89PNG\x0d\x0a\x1a\x0a"), "image/png"},
	{"gif", []byte("GIF89a..."), "image/gif"},
	{"jpeg", []byte("\xFF\xD8\xFF\xE0"), "image/jpeg"},
	{"zip", []byte("PK\x03\x04stuff"), "application/zip"},
	{"gzip", []byte("\x1F\x8B\x08data"), "application/x-gzip"},
	{"binary garbage", []byte{0x01, 0x02, 0x03}, "application/octet-stream"},
}

func TestDetectContentType(t *testing.T) {
	for _, tt := range sniffTests {
		assert.Equalf(t, tt.want, DetectContentType(tt.data), "case %s", tt.desc)
	}
}

func TestDetectContentTypeBoundsInput(t *testing.T) {
	big := make([]byte, SniffLen*4)
	for i := range big {
		big[i] = 'a'
	}
	assert.Equal(t, "text/plain; charset=utf-8", DetectContentType(big))
}

func TestTypeByExtension(t *testing.T) {
	assert.Equal(t, "text/html; charset=utf-8", TypeByExtension(".html"))
	assert.Equal(t, "text/html; charset=utf-8", TypeByExtension(".HTML"))
	assert.Equal(t, "application/json", TypeByExtension(".json"))
	assert.Equal(t, "image/png", TypeByExtension(".png"))
	assert.Equal(t, "", TypeByExtension(".unknownext"))
	assert.Equal(t, "", TypeByExtension(""))
}
