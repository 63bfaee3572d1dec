/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/adam-ikari/uvhttp/hdr"
)

const (
	parseStartLine parseState = iota
	parseHeaders
	parseBody
	parseChunkSize
	parseChunkData
	parseChunkDataEnd
	parseTrailers
	parseComplete
)

// Slack on top of the URL limit for the method and protocol tokens when
// bounding an incomplete request line.
const startLineSlack = 32

var (
	// ErrParseProtocol is a malformed request line, header framing, or
	// chunk framing. The connection closes without a response.
	ErrParseProtocol = &Error{Kind: ErrorParseProtocol, Message: "malformed HTTP message"}

	// ErrParseURLTooLong is a request-target over the configured maximum.
	ErrParseURLTooLong = &Error{Kind: ErrorParseOversize, Message: "request URL too long"}

	// ErrParseHeaderTooLong is a header field name over its maximum.
	ErrParseHeaderTooLong = &Error{Kind: ErrorParseOversize, Message: "header name too long"}

	// ErrParseHeaderValueTooLong is a header field value over its maximum.
	ErrParseHeaderValueTooLong = &Error{Kind: ErrorParseOversize, Message: "header value too long"}

	// ErrParseBodyTooLarge is a request body over the configured maximum.
	ErrParseBodyTooLarge = &Error{Kind: ErrorParseOversize, Message: "request body too large"}
)

type (
	parseState int

	// ParserLimits bound one message. Header name and value limits are
	// fixed by the hdr package; these two are per-server configuration.
	ParserLimits struct {
		MaxURLBytes  int
		MaxBodyBytes int64
	}

	// A ParserSink receives the structured events of one message, in
	// strict order: MessageBegin, one or more URLFragment calls, paired
	// HeaderField/HeaderValue calls, zero or more BodyFragment calls,
	// MessageComplete. Fragment slices are only valid for the duration
	// of the call.
	ParserSink interface {
		MessageBegin() error
		URLFragment(frag []byte) error
		HeaderField(name []byte) error
		HeaderValue(value []byte) error
		BodyFragment(frag []byte) error
		MessageComplete() error
	}

	// A Parser consumes raw connection bytes incrementally and emits
	// one message's events at a time. After MessageComplete it stops
	// consuming: bytes beyond the message boundary stay buffered for
	// the next cycle (or are discarded by the connection on close,
	// which is what makes "Connection: close" with trailing bytes
	// harmless). Reset rearms it for the next message on the same
	// residual buffer.
	Parser struct {
		sink   ParserSink
		limits ParserLimits

		state parseState
		buf   []byte
		err   error

		method string
		proto  string

		headersDone   bool
		contentLength int64
		chunked       bool
		bodyRead      int64
		chunkRemain   int64
	}
)

// NewParser returns a Parser emitting into sink under limits. Zero
// limit fields take the package defaults.
func NewParser(sink ParserSink, limits ParserLimits) *Parser {
	if limits.MaxURLBytes <= 0 {
		limits.MaxURLBytes = DefaultMaxURLBytes
	}
	if limits.MaxBodyBytes <= 0 {
		limits.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Parser{
		sink:          sink,
		limits:        limits,
		contentLength: -1,
	}
}

// Feed appends data to the parse buffer and consumes as much of it as
// the current message allows. It may be called with nil to resume on
// residual bytes after Reset. The first error is sticky.
func (p *Parser) Feed(data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.buf = append(p.buf, data...)
	if err := p.run(); err != nil {
		p.err = err
		return err
	}
	return nil
}

// Complete reports whether the current message has fully parsed.
func (p *Parser) Complete() bool {
	return p.state == parseComplete
}

// HeadersComplete reports whether the header section finished parsing,
// which decides whether an oversize failure can still be answered 400.
func (p *Parser) HeadersComplete() bool {
	return p.headersDone
}

// Buffered returns the number of unconsumed bytes held for the next cycle.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Method returns the request method once the request line has parsed.
func (p *Parser) Method() string {
	return p.method
}

// Proto returns the protocol version once the request line has parsed.
func (p *Parser) Proto() string {
	return p.proto
}

// Reset rearms the parser for the next message of the same connection.
// Residual bytes survive; everything else is cleared.
func (p *Parser) Reset() {
	p.state = parseStartLine
	p.err = nil
	p.method = ""
	p.proto = ""
	p.headersDone = false
	p.contentLength = -1
	p.chunked = false
	p.bodyRead = 0
	p.chunkRemain = 0
}

func (p *Parser) run() error {
	for {
		switch p.state {
		case parseComplete:
			return nil

		case parseStartLine:
			line, ok := p.line()
			if !ok {
				return p.checkPartialStartLine()
			}
			if err := p.startLine(line); err != nil {
				return err
			}

		case parseHeaders:
			line, ok := p.line()
			if !ok {
				return p.checkPartialHeaderLine()
			}
			if len(line) == 0 {
				if err := p.endHeaders(); err != nil {
					return err
				}
				continue
			}
			if err := p.headerLine(line); err != nil {
				return err
			}

		case parseBody:
			if len(p.buf) == 0 {
				return nil
			}
			remain := p.contentLength - p.bodyRead
			n := int64(len(p.buf))
			if n > remain {
				n = remain
			}
			if err := p.emitBody(p.buf[:n]); err != nil {
				return err
			}
			p.buf = p.buf[n:]
			if p.bodyRead == p.contentLength {
				return p.complete()
			}
			return nil

		case parseChunkSize:
			line, ok := p.line()
			if !ok {
				if len(p.buf) > maxChunkLineLength {
					return ErrParseProtocol
				}
				return nil
			}
			size, err := parseChunkSizeLine(line)
			if err != nil {
				return ErrParseProtocol
			}
			if size == 0 {
				p.state = parseTrailers
				continue
			}
			if p.bodyRead+size > p.limits.MaxBodyBytes {
				return ErrParseBodyTooLarge
			}
			p.chunkRemain = size
			p.state = parseChunkData

		case parseChunkData:
			if len(p.buf) == 0 {
				return nil
			}
			n := int64(len(p.buf))
			if n > p.chunkRemain {
				n = p.chunkRemain
			}
			if err := p.emitBody(p.buf[:n]); err != nil {
				return err
			}
			p.buf = p.buf[n:]
			p.chunkRemain -= n
			if p.chunkRemain == 0 {
				p.state = parseChunkDataEnd
			} else {
				return nil
			}

		case parseChunkDataEnd:
			if len(p.buf) < 2 {
				return nil
			}
			if p.buf[0] != '\r' || p.buf[1] != '\n' {
				return ErrParseProtocol
			}
			p.buf = p.buf[2:]
			p.state = parseChunkSize

		case parseTrailers:
			line, ok := p.line()
			if !ok {
				if len(p.buf) > hdr.NameMax+hdr.ValueMax+2 {
					return ErrParseProtocol
				}
				return nil
			}
			if len(line) == 0 {
				return p.complete()
			}
			// Trailer fields are tolerated and dropped.
		}
	}
}

// line pops one CRLF- (or bare LF-) terminated line off the buffer.
func (p *Parser) line() ([]byte, bool) {
	i := bytes.IndexByte(p.buf, '\n')
	if i < 0 {
		return nil, false
	}
	line := p.buf[:i]
	p.buf = p.buf[i+1:]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, true
}

func (p *Parser) checkPartialStartLine() error {
	if len(p.buf) > p.limits.MaxURLBytes+startLineSlack {
		return ErrParseURLTooLong
	}
	return nil
}

func (p *Parser) checkPartialHeaderLine() error {
	colon := bytes.IndexByte(p.buf, ':')
	if colon < 0 {
		if len(p.buf) > hdr.NameMax {
			return ErrParseHeaderTooLong
		}
		return nil
	}
	if colon > hdr.NameMax {
		return ErrParseHeaderTooLong
	}
	if len(p.buf)-colon-1 > hdr.ValueMax+2 {
		return ErrParseHeaderValueTooLong
	}
	return nil
}

func (p *Parser) startLine(line []byte) error {
	if len(line) == 0 {
		// RFC 7230 3.5 tolerance: skip blank lines before the request line.
		return nil
	}
	s := string(line)
	sp1 := strings.IndexByte(s, ' ')
	sp2 := strings.LastIndexByte(s, ' ')
	if sp1 < 0 || sp2 <= sp1 {
		return ErrParseProtocol
	}
	method, target, proto := s[:sp1], s[sp1+1:sp2], s[sp2+1:]
	if !knownMethods[method] {
		return ErrParseProtocol
	}
	if proto != HTTP1_1 && proto != HTTP1_0 {
		return ErrParseProtocol
	}
	if target == "" || strings.IndexByte(target, ' ') >= 0 {
		return ErrParseProtocol
	}
	if len(target) > p.limits.MaxURLBytes {
		return ErrParseURLTooLong
	}
	p.method = method
	p.proto = proto
	p.state = parseHeaders
	if err := p.sink.MessageBegin(); err != nil {
		return err
	}
	return p.sink.URLFragment([]byte(target))
}

func (p *Parser) headerLine(line []byte) error {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return ErrParseProtocol
	}
	name := line[:colon]
	if len(name) > hdr.NameMax {
		return ErrParseHeaderTooLong
	}
	if !hdr.ValidHeaderFieldName(string(name)) {
		return ErrParseProtocol
	}
	value := trimOWS(line[colon+1:])
	if len(value) > hdr.ValueMax {
		return ErrParseHeaderValueTooLong
	}
	if !hdr.ValidHeaderFieldValue(string(value)) {
		return ErrParseProtocol
	}

	switch {
	case equalFoldBytes(name, hdr.ContentLength):
		if p.contentLength >= 0 {
			return ErrParseProtocol
		}
		n, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil || n < 0 {
			return ErrParseProtocol
		}
		p.contentLength = n
	case equalFoldBytes(name, hdr.TransferEncoding):
		if hdr.ContainsToken(string(value), DoChunked) {
			p.chunked = true
		}
	}

	if err := p.sink.HeaderField(name); err != nil {
		return err
	}
	return p.sink.HeaderValue(value)
}

func (p *Parser) endHeaders() error {
	p.headersDone = true
	switch {
	case p.chunked:
		p.state = parseChunkSize
	case p.contentLength > 0:
		if p.contentLength > p.limits.MaxBodyBytes {
			return ErrParseBodyTooLarge
		}
		p.state = parseBody
	default:
		return p.complete()
	}
	return nil
}

func (p *Parser) emitBody(frag []byte) error {
	if p.bodyRead+int64(len(frag)) > p.limits.MaxBodyBytes {
		return ErrParseBodyTooLarge
	}
	p.bodyRead += int64(len(frag))
	return p.sink.BodyFragment(frag)
}

func (p *Parser) complete() error {
	p.state = parseComplete
	return p.sink.MessageComplete()
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

func equalFoldBytes(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		cb, cs := b[i], s[i]
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if 'A' <= cs && cs <= 'Z' {
			cs += 'a' - 'A'
		}
		if cb != cs {
			return false
		}
	}
	return true
}
