/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"crypto/sha1"
	"encoding/base64"

	"github.com/adam-ikari/uvhttp/hdr"
)

// websocketGUID is the fixed RFC 6455 key suffix.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// WebSocketAccept computes the Sec-WebSocket-Accept value for a client
// key, per RFC 6455 section 4.2.2: base64(sha1(key || GUID)).
func WebSocketAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsWebSocketHandshake is the built-in WebSocket upgrade detector:
// "Upgrade: websocket" (case-insensitive) with a Connection header
// listing Upgrade (case-insensitive). The Sec-WebSocket-Key is checked
// by the handler, so a claimed handshake without one is answered 400
// rather than falling through to routing.
func IsWebSocketHandshake(req *Request, upgrade, connection string) bool {
	if !hdr.ContainsToken(upgrade, "websocket") {
		return false
	}
	return hdr.ContainsToken(connection, "Upgrade")
}

// newWebSocketHandler builds the upgrade handler completing the
// handshake and handing the socket to recipient. A request claiming
// the websocket protocol without a key is answered 400 and closed.
func newWebSocketHandler(recipient TransferFunc, userData interface{}) UpgradeHandler {
	return func(req *Request, res *Response, conn *Conn) error {
		key := req.Header.Get(hdr.SecWebSocketKey)
		if key == "" {
			res.SetStatus(StatusBadRequest)
			res.SetHeader(hdr.ContentType, TextPlain)
			res.SetBodyString("Missing Sec-WebSocket-Key header")
			res.CloseAfter()
			res.Send()
			return &Error{Kind: ErrorUpgradeRejected, Message: "missing Sec-WebSocket-Key"}
		}

		res.SetStatus(StatusSwitchingProtocols)
		res.SetHeader(hdr.UpgradeHeader, "websocket")
		res.SetHeader(hdr.Connection, "Upgrade")
		res.SetHeader(hdr.SecWebSocketAccept, WebSocketAccept(key))
		if err := res.Send(); err != nil {
			return err
		}

		conn.TransferOwnership(recipient, userData)
		return nil
	}
}
