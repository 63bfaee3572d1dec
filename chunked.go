/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"errors"
)

// maxChunkLineLength bounds a chunk-size line, extensions included.
const maxChunkLineLength = 4096

// parseChunkSizeLine turns a chunk-size line into the chunk length,
// stripping any chunk extension first.
func parseChunkSizeLine(line []byte) (int64, error) {
	line = trimTrailingWhitespace(line)
	line, err := removeChunkExtension(line)
	if err != nil {
		return 0, err
	}
	if len(line) == 0 {
		return 0, errors.New("empty chunk size")
	}
	n, err := parseHexUint(line)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func trimTrailingWhitespace(b []byte) []byte {
	for len(b) > 0 && isASCIISpace(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}

// removeChunkExtension removes any chunk-extension from p.
// For example,
//     "0" => "0"
//     "0;token" => "0"
//     "0;token=val" => "0"
//     `0;token="quoted string"` => "0"
func removeChunkExtension(p []byte) ([]byte, error) {
	for i, b := range p {
		if b == ';' {
			return p[:i], nil
		}
	}
	return p, nil
}

func parseHexUint(v []byte) (uint64, error) {
	var n uint64
	for i, b := range v {
		switch {
		case '0' <= b && b <= '9':
			b = b - '0'
		case 'a' <= b && b <= 'f':
			b = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			b = b - 'A' + 10
		default:
			return 0, errors.New("invalid byte in chunk length")
		}
		if i == 16 {
			return 0, errors.New("http chunk length too large")
		}
		n <<= 4
		n |= uint64(b)
	}
	return n, nil
}
