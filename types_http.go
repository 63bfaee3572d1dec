/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

const (
	GET     = "GET"
	POST    = "POST"
	PUT     = "PUT"
	DELETE  = "DELETE"
	HEAD    = "HEAD"
	OPTIONS = "OPTIONS"
	PATCH   = "PATCH"

	// ANY is the wildcard pseudo-method: a route registered with it
	// matches every request method, and loses to an exact-method route
	// for the same pattern.
	ANY = "ANY"

	HTTP1_1 = "HTTP/1.1"
	HTTP1_0 = "HTTP/1.0"

	DoClose     = "close"
	DoKeepAlive = "keep-alive"
	DoChunked   = "chunked"

	TextPlain   = "text/plain"
	OctetStream = "application/octet-stream"

	// The content sniffing algorithm uses at most SniffLen bytes.
	SniffLen = 512
)

var (
	CrLf       = []byte("\r\n")
	DoubleCrLf = []byte("\r\n\r\n")

	colonSpace = []byte(": ")

	// knownMethods is the closed set of methods the parser accepts on a
	// request line. ANY never appears on the wire; it exists only as a
	// route constraint.
	knownMethods = map[string]bool{
		GET:     true,
		POST:    true,
		PUT:     true,
		DELETE:  true,
		HEAD:    true,
		OPTIONS: true,
		PATCH:   true,
	}
)

type (
	// A Handler responds to a parsed HTTP request by mutating the
	// Response and calling its Send method. Handlers run on the
	// connection's goroutine and must not block on long work; defer
	// such work elsewhere and reply when it completes.
	Handler func(*Request, *Response)

	// Params holds the values captured by :name and *name route
	// segments, keyed by segment name. :name values reference positions
	// in the request URL without copying; a *name value spanning several
	// segments is a newly joined string.
	Params map[string]string

	// A Router resolves a request path and method to a Handler. The
	// concrete implementation lives in the mux package; the Server only
	// depends on this lookup surface.
	Router interface {
		// FindHandler returns the handler matching path and method, with
		// any captured parameter values, or nil if no route matches.
		FindHandler(path, method string) (Handler, Params)
	}
)
