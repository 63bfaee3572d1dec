/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package ws is the receiving side of a WebSocket protocol upgrade:
// the core server completes the RFC 6455 handshake, releases the TCP
// socket, and hands it here. From that moment this package is the
// socket's sole owner, frame I/O included.
package ws

import (
	"io"
	"net"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/sirupsen/logrus"
)

type (
	// An EchoServer answers every data frame with an identical frame.
	// It exists both as a usable default subsystem and as the proof of
	// the ownership-transfer contract: it reads and writes the raw
	// net.Conn with no help from the HTTP server.
	EchoServer struct {
		// Logger defaults to the standard logrus logger.
		Logger logrus.FieldLogger
	}
)

// Receive takes ownership of a freshly upgraded socket and serves it
// on a new goroutine. It has the transfer-callback shape the core's
// upgrade registry expects.
func (e *EchoServer) Receive(sock net.Conn, _ interface{}) {
	go e.serve(sock)
}

func (e *EchoServer) serve(sock net.Conn) {
	defer sock.Close()
	log := e.log().WithField("remote_addr", sock.RemoteAddr().String())

	for {
		msg, op, err := wsutil.ReadClientData(sock)
		if err != nil {
			// A close frame surfaces as wsutil.ClosedError; either way
			// the socket is done.
			if err != io.EOF {
				log.Debugf("websocket read: %v", err)
			}
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}
		if err := wsutil.WriteServerMessage(sock, op, msg); err != nil {
			log.Debugf("websocket write: %v", err)
			return
		}
	}
}

func (e *EchoServer) log() logrus.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}
