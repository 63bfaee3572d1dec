/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"net"

	"github.com/adam-ikari/uvhttp/hdr"
)

type (
	// A TransferFunc receives sole ownership of the TCP socket after a
	// protocol upgrade. The server will neither read, write, nor close
	// the socket afterwards; closing it is the recipient's job.
	TransferFunc func(sock net.Conn, userData interface{})

	// An UpgradeDetector inspects a parsed request, plus the
	// pre-extracted Upgrade and Connection header values, and reports
	// whether its protocol claims the request. Detectors run in
	// registration order; the first claim wins.
	UpgradeDetector func(req *Request, upgrade, connection string) bool

	// An UpgradeHandler runs for a claimed request. It typically sends
	// a protocol-specific response (101 for WebSocket) through the
	// normal Response API and then calls Conn.TransferOwnership. A
	// returned error counts as a rejected handshake and closes the
	// connection.
	UpgradeHandler func(req *Request, res *Response, conn *Conn) error

	upgradeRegistration struct {
		name     string
		detect   UpgradeDetector
		handle   UpgradeHandler
		userData interface{}
	}

	// upgradeRegistry is the ordered set of protocols that may take a
	// connection over. Registrations happen before the server starts
	// serving; the registry is read-only afterwards.
	upgradeRegistry struct {
		regs []upgradeRegistration
	}
)

func (r *upgradeRegistry) register(name string, detect UpgradeDetector, handle UpgradeHandler, userData interface{}) error {
	if name == "" || detect == nil || handle == nil {
		return ErrInvalidParam
	}
	for _, reg := range r.regs {
		if reg.name == name {
			return &Error{Kind: ErrorInvalidParam, Message: "upgrade protocol already registered: " + name}
		}
	}
	r.regs = append(r.regs, upgradeRegistration{name, detect, handle, userData})
	return nil
}

// claim runs the detectors in order against req and returns the first
// registration that claims it, or nil.
func (r *upgradeRegistry) claim(req *Request) *upgradeRegistration {
	if len(r.regs) == 0 {
		return nil
	}
	upgrade := req.Header.Get(hdr.UpgradeHeader)
	connection := req.Header.Get(hdr.Connection)
	for i := range r.regs {
		if r.regs[i].detect(req, upgrade, connection) {
			return &r.regs[i]
		}
	}
	return nil
}
