/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"github.com/adam-ikari/uvhttp/hdr"
)

type (
	// CORSConfig drives the built-in CORS interceptor. The zero value
	// is not useful; start from DefaultCORSConfig.
	CORSConfig struct {
		// AllowOrigin is "*" or one exact origin. An exact origin is
		// echoed only when the request's Origin matches, and the
		// response gains "Vary: Origin".
		AllowOrigin string

		AllowMethods  string
		AllowHeaders  string
		ExposeHeaders string
		MaxAge        string

		// AllowCredentials adds Access-Control-Allow-Credentials: true.
		AllowCredentials bool
	}
)

// DefaultCORSConfig mirrors the permissive defaults most embedders
// start from.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS, HEAD, PATCH",
		AllowHeaders: "Content-Type, Authorization, X-Requested-With",
		MaxAge:       "86400",
	}
}

// NewCORSMiddleware returns an interceptor applying cfg. Preflight
// OPTIONS requests are answered 200 and stop the chain; other requests
// gain the configured Access-Control headers and continue.
func NewCORSMiddleware(cfg CORSConfig) Middleware {
	return func(req *Request, res *Response, _ *MiddlewareContext) MiddlewareResult {
		setCORSHeaders(req, res, &cfg)

		if req.Method == OPTIONS {
			res.SetStatus(StatusOK)
			res.Send()
			return Stop
		}
		return Continue
	}
}

func setCORSHeaders(req *Request, res *Response, cfg *CORSConfig) {
	if cfg.AllowOrigin == "*" {
		res.SetHeader(hdr.AccessControlAllowOrigin, "*")
	} else if origin := req.Header.Get(hdr.Origin); origin != "" && origin == cfg.AllowOrigin {
		res.SetHeader(hdr.AccessControlAllowOrigin, origin)
		mergeVary(res, "Origin")
	}

	if cfg.AllowMethods != "" {
		res.SetHeader(hdr.AccessControlAllowMethods, cfg.AllowMethods)
	}
	if cfg.AllowHeaders != "" {
		res.SetHeader(hdr.AccessControlAllowHeaders, cfg.AllowHeaders)
	}
	if cfg.ExposeHeaders != "" {
		res.SetHeader(hdr.AccessControlExposeHeaders, cfg.ExposeHeaders)
	}
	if cfg.AllowCredentials {
		res.SetHeader(hdr.AccessControlAllowCredentials, "true")
	}
	if cfg.MaxAge != "" {
		res.SetHeader(hdr.AccessControlMaxAge, cfg.MaxAge)
	}
}

// mergeVary adds token to the response's Vary header without losing an
// existing value.
func mergeVary(res *Response, token string) {
	existing := res.Header.Get(hdr.Vary)
	switch {
	case existing == "":
		res.Header.Set(hdr.Vary, token)
	case hdr.ContainsToken(existing, token):
		// already present
	default:
		res.Header.Set(hdr.Vary, existing+", "+token)
	}
}
