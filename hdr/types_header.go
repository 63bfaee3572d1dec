/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"errors"
	"time"
)

const (
	toLower = 'a' - 'A'

	//Headers
	Accept                        = "Accept"
	AcceptCharset                 = "Accept-Charset"
	AcceptEncoding                = "Accept-Encoding"
	AcceptLanguage                = "Accept-Language"
	AcceptRanges                  = "Accept-Ranges"
	AccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	AccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	AccessControlAllowMethods     = "Access-Control-Allow-Methods"
	AccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	AccessControlExposeHeaders    = "Access-Control-Expose-Headers"
	AccessControlMaxAge           = "Access-Control-Max-Age"
	Authorization                 = "Authorization"
	CacheControl                  = "Cache-Control"
	Connection                    = "Connection"
	ContentEncoding               = "Content-Encoding"
	ContentLanguage               = "Content-Language"
	ContentLength                 = "Content-Length"
	ContentRange                  = "Content-Range"
	ContentType                   = "Content-Type"
	Date                          = "Date"
	Etag                          = "Etag"
	Expect                        = "Expect"
	Expires                       = "Expires"
	Host                          = "Host"
	IfModifiedSince               = "If-Modified-Since"
	IfNoneMatch                   = "If-None-Match"
	LastModified                  = "Last-Modified"
	Location                      = "Location"
	Origin                        = "Origin"
	Pragma                        = "Pragma"
	Referer                       = "Referer"
	RetryAfter                    = "Retry-After"
	SecWebSocketAccept            = "Sec-WebSocket-Accept"
	SecWebSocketKey               = "Sec-WebSocket-Key"
	SecWebSocketVersion           = "Sec-WebSocket-Version"
	ServerHeader                  = "Server"
	TransferEncoding              = "Transfer-Encoding"
	UpgradeHeader                 = "Upgrade"
	UserAgent                     = "User-Agent"
	Vary                          = "Vary"
	Via                           = "Via"
	XForwardedFor                 = "X-Forwarded-For"
	XRealIP                       = "X-Real-Ip"

	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

	// NameMax bounds a single header field name.
	NameMax = 64
	// ValueMax bounds a single header field value.
	ValueMax = 256
	// InlineSlots is the number of pairs stored without spilling.
	InlineSlots = 32
	// MaxPairs bounds the total number of pairs, inline plus spilled.
	MaxPairs = 128
)

var (
	// ErrNameTooLong is returned by Add when the field name exceeds NameMax.
	ErrNameTooLong = errors.New("hdr: header name too long")

	// ErrValueTooLong is returned by Add when the field value exceeds ValueMax.
	ErrValueTooLong = errors.New("hdr: header value too long")

	// ErrTooMany is returned by Add once MaxPairs entries are held.
	ErrTooMany = errors.New("hdr: too many headers")

	timeFormats = []string{
		TimeFormat,
		time.RFC850,
		time.ANSIC,
	}

	// commonHeader interns common header strings.
	commonHeader = make(map[string]string)

	// isTokenTable is a copy of net/http/lex.go's isTokenTable.
	// See https://httpwg.github.io/specs/rfc7230.html#rule.token.separators
	isTokenTable = [127]bool{
		'0': true, '1': true, '2': true, '3': true, '4': true, '5': true, '6': true, '7': true,
		'8': true, '9': true,

		'a': true, 'b': true, 'c': true, 'd': true, 'e': true, 'f': true, 'g': true, 'h': true,
		'i': true, 'j': true, 'k': true, 'l': true, 'm': true, 'n': true, 'o': true, 'p': true,
		'q': true, 'r': true, 's': true, 't': true, 'u': true, 'v': true, 'w': true, 'x': true,
		'y': true, 'z': true,

		'A': true, 'B': true, 'C': true, 'D': true, 'E': true, 'F': true, 'G': true, 'H': true,
		'I': true, 'J': true, 'K': true, 'L': true, 'M': true, 'N': true, 'O': true, 'P': true,
		'Q': true, 'R': true, 'S': true, 'T': true, 'U': true, 'V': true, 'W': true, 'X': true,
		'Y': true, 'Z': true,

		'!':  true,
		'#':  true,
		'$':  true,
		'%':  true,
		'&':  true,
		'\'': true,
		'*':  true,
		'+':  true,
		'-':  true,
		'.':  true,
		'^':  true,
		'_':  true,
		'`':  true,
		'|':  true,
		'~':  true,
	}
)

type (
	// A Pair is one header field, name and value, as it arrived on the
	// wire or as it will be written.
	Pair struct {
		Name  string
		Value string
	}

	// Headers holds the key-value pairs of an HTTP message in insertion
	// order. Lookups are case-insensitive. The first InlineSlots pairs
	// live in a fixed inline array; further pairs spill into a slice
	// that doubles on demand, up to MaxPairs in total.
	Headers struct {
		inline [InlineSlots]Pair
		spill  []Pair
		count  int
	}
)
