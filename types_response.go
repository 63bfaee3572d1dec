/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"io"
	"time"

	"github.com/adam-ikari/uvhttp/hdr"
)

const (
	StatusContinue           = 100
	StatusSwitchingProtocols = 101
	StatusOK                 = 200
	StatusNoContent          = 204
	StatusMovedPermanently   = 301
	StatusFound              = 302
	StatusNotModified        = 304
	StatusBadRequest         = 400
	StatusUnauthorized       = 401
	StatusForbidden          = 403
	StatusNotFound           = 404
	StatusMethodNotAllowed   = 405
	StatusRequestURITooLong  = 414
	StatusTooManyRequests    = 429
	StatusInternalServerError = 500
	StatusNotImplemented     = 501
	StatusBadGateway         = 502
	StatusServiceUnavailable = 503
)

var statusText = map[int]string{
	StatusContinue:            "Continue",
	StatusSwitchingProtocols:  "Switching Protocols",
	StatusOK:                  "OK",
	StatusNoContent:           "No Content",
	StatusMovedPermanently:    "Moved Permanently",
	StatusFound:               "Found",
	StatusNotModified:         "Not Modified",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusRequestURITooLong:   "Request URI Too Long",
	StatusTooManyRequests:     "Too Many Requests",
	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
	StatusBadGateway:          "Bad Gateway",
	StatusServiceUnavailable:  "Service Unavailable",
}

type (
	// A Response is the outbound message under construction. Exactly one
	// send is permitted; writes after Send are rejected.
	Response struct {
		// Header holds the response headers in insertion order.
		Header hdr.Headers

		status int
		body   []byte
		sent   bool

		// closeAfter requests connection teardown once the response has
		// drained, regardless of the request's keep-alive preference.
		closeAfter bool

		conn responseWriter
	}

	// StreamOptions bound one streamed (sendfile) response: the chunk
	// size of each write, the per-chunk deadline, and how many times a
	// timed-out chunk is reissued before the response fails.
	StreamOptions struct {
		ChunkSize int
		Timeout   time.Duration
		MaxRetry  int
	}

	// responseWriter is the connection-side surface a Response sends
	// through. stream is nil when the Response's in-memory body is sent;
	// otherwise stream supplies streamLen bytes chunk-by-chunk under opts.
	responseWriter interface {
		writeResponse(res *Response, stream io.Reader, streamLen int64, opts StreamOptions) error
	}
)

// StatusText returns the canonical reason phrase for code, or "" for
// unknown codes.
func StatusText(code int) string {
	return statusText[code]
}
