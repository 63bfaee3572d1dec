/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"github.com/adam-ikari/uvhttp/hdr"
)

const (
	// DefaultMaxURLBytes is the maximum permitted request-target length.
	DefaultMaxURLBytes = 2048

	// DefaultMaxBodyBytes is the maximum permitted request body size.
	DefaultMaxBodyBytes = 1 << 20 // 1 MiB
)

type (
	// A Request is one parsed inbound HTTP message. Its lifetime is a
	// single request cycle on the owning connection: the connection
	// resets it in place between keep-alive requests, so handlers must
	// not retain it past their return.
	Request struct {
		// Method is one of GET, POST, PUT, DELETE, HEAD, OPTIONS, PATCH.
		Method string

		// URL is the raw request-target as it arrived on the request
		// line, query string included. Set exactly once per request.
		URL string

		// Proto is HTTP1_1 or HTTP1_0.
		Proto string

		// Header holds the request headers in arrival order.
		Header hdr.Headers

		// Body is the request body, bounded by the configured maximum.
		Body []byte

		// Params holds values captured by :name and *name route
		// segments, nil when the matched route had none.
		Params Params

		// RemoteAddr is the peer's network address, "host:port".
		RemoteAddr string
	}
)
