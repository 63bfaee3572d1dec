/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/adam-ikari/uvhttp/hdr"
)

// Path returns the URL without its query string. An empty URL reads as "/".
func (r *Request) Path() string {
	if r.URL == "" {
		return "/"
	}
	if i := strings.IndexByte(r.URL, '?'); i >= 0 {
		return r.URL[:i]
	}
	return r.URL
}

// QueryString returns the part of the URL after '?', or "".
func (r *Request) QueryString() string {
	if i := strings.IndexByte(r.URL, '?'); i >= 0 {
		return r.URL[i+1:]
	}
	return ""
}

// QueryParam returns the first value of the named query parameter, or "".
// Values are returned as they arrived; no percent-decoding is applied.
func (r *Request) QueryParam(name string) string {
	qs := r.QueryString()
	for qs != "" {
		var pair string
		if i := strings.IndexByte(qs, '&'); i >= 0 {
			pair, qs = qs[:i], qs[i+1:]
		} else {
			pair, qs = qs, ""
		}
		if len(pair) > len(name) && pair[len(name)] == '=' && pair[:len(name)] == name {
			return pair[len(name)+1:]
		}
	}
	return ""
}

// Param returns the value captured by the named route segment, or "".
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// ClientIP returns the originating client address: the first entry of
// X-Forwarded-For when present, then X-Real-Ip, then the socket peer.
func (r *Request) ClientIP() string {
	if fwd := r.Header.Get(hdr.XForwardedFor); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return hdr.TrimString(fwd)
	}
	if real := r.Header.Get(hdr.XRealIP); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WantsClose reports whether the request forbids reusing the connection:
// an explicit "Connection: close", or HTTP/1.0 without keep-alive.
func (r *Request) WantsClose() bool {
	conn := r.Header.Get(hdr.Connection)
	if hdr.ContainsToken(conn, DoClose) {
		return true
	}
	if r.Proto == HTTP1_0 {
		return !hdr.ContainsToken(conn, DoKeepAlive)
	}
	return false
}

// Write re-serializes the request as an HTTP/1.1 message: request line,
// headers in arrival order, blank line, body. A parsed request written
// this way is byte-equivalent to its wire form modulo header ordering
// and optional whitespace.
func (r *Request) Write(w io.Writer) error {
	if _, err := io.WriteString(w, r.Method+" "+r.URL+" "+r.Proto+"\r\n"); err != nil {
		return err
	}
	if err := r.Header.Write(w); err != nil {
		return err
	}
	if _, err := w.Write(CrLf); err != nil {
		return err
	}
	if len(r.Body) > 0 {
		if _, err := w.Write(r.Body); err != nil {
			return err
		}
	}
	return nil
}

// ContentLength returns the declared Content-Length, or -1 when absent
// or unparseable.
func (r *Request) ContentLength() int64 {
	v := r.Header.Get(hdr.ContentLength)
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// reset prepares the Request for the next keep-alive cycle, retaining
// allocated capacity where it can.
func (r *Request) reset() {
	r.Method = ""
	r.URL = ""
	r.Proto = ""
	r.Header.Reset()
	r.Body = r.Body[:0]
	r.Params = nil
}
