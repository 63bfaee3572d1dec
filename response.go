/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"io"
)

// SetStatus sets the response status code. Codes outside 100-599 are
// rejected, as are writes after Send.
func (r *Response) SetStatus(code int) error {
	if r.sent {
		return ErrDoubleSend
	}
	if code < 100 || code > 599 {
		return &Error{Kind: ErrorInvalidParam, Message: "status code out of range"}
	}
	r.status = code
	return nil
}

// Status returns the status code, defaulting to 200 when unset.
func (r *Response) Status() int {
	if r.status == 0 {
		return StatusOK
	}
	return r.status
}

// SetHeader appends the name, value pair to the response headers. A
// repeated name keeps every value; lookups return the first.
func (r *Response) SetHeader(name, value string) error {
	if r.sent {
		return ErrDoubleSend
	}
	return r.Header.Add(name, value)
}

// ReplaceHeader replaces every value of name by value.
func (r *Response) ReplaceHeader(name, value string) error {
	if r.sent {
		return ErrDoubleSend
	}
	return r.Header.Set(name, value)
}

// SetBody replaces the response body.
func (r *Response) SetBody(body []byte) error {
	if r.sent {
		return ErrDoubleSend
	}
	r.body = append(r.body[:0], body...)
	return nil
}

// SetBodyString replaces the response body with s.
func (r *Response) SetBodyString(s string) error {
	if r.sent {
		return ErrDoubleSend
	}
	r.body = append(r.body[:0], s...)
	return nil
}

// Body returns the body accumulated so far.
func (r *Response) Body() []byte {
	return r.body
}

// Sent reports whether Send has completed.
func (r *Response) Sent() bool {
	return r.sent
}

// CloseAfter marks the connection for teardown once this response has
// drained, independent of the request's keep-alive preference.
func (r *Response) CloseAfter() {
	r.closeAfter = true
}

// Send serializes the status line, headers, and body to the connection.
// Exactly one send is permitted per response; later calls return
// ErrDoubleSend and write nothing.
func (r *Response) Send() error {
	if r.sent {
		return ErrDoubleSend
	}
	r.sent = true
	return r.conn.writeResponse(r, nil, 0, StreamOptions{})
}

// SendStream sends the headers followed by size bytes read from body,
// written chunk-by-chunk under opts. Each chunk waits for the previous
// write to complete, preserving backpressure; a timed-out chunk is
// retried up to opts.MaxRetry times.
func (r *Response) SendStream(body io.Reader, size int64, opts StreamOptions) error {
	if r.sent {
		return ErrDoubleSend
	}
	if body == nil || size < 0 {
		return ErrInvalidParam
	}
	r.sent = true
	return r.conn.writeResponse(r, body, size, opts)
}

// reset prepares the Response for the next keep-alive cycle.
func (r *Response) reset() {
	r.Header.Reset()
	r.status = 0
	r.body = r.body[:0]
	r.sent = false
	r.closeAfter = false
}
