/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package ws

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// pipeConn builds a connected TCP pair so deadlines and Close behave
// like the real transferred socket.
func pipeConn(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			done <- c
		}
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server = <-done
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	client.SetDeadline(time.Now().Add(5 * time.Second))
	return client, server
}

func TestEchoServerEchoesFrames(t *testing.T) {
	client, server := pipeConn(t)

	e := &EchoServer{Logger: quietLogger()}
	e.Receive(server, nil)

	for _, msg := range []string{"hello", "world", "третий"} {
		require.NoError(t, wsutil.WriteClientMessage(client, ws.OpText, []byte(msg)))
		got, op, err := wsutil.ReadServerData(client)
		require.NoError(t, err)
		assert.Equal(t, ws.OpText, op)
		assert.Equal(t, msg, string(got))
	}

	require.NoError(t, wsutil.WriteClientMessage(client, ws.OpBinary, []byte{0x01, 0x02}))
	got, op, err := wsutil.ReadServerData(client)
	require.NoError(t, err)
	assert.Equal(t, ws.OpBinary, op)
	assert.Equal(t, []byte{0x01, 0x02}, got)
}

func TestEchoServerClosesOnClientClose(t *testing.T) {
	client, server := pipeConn(t)

	e := &EchoServer{Logger: quietLogger()}
	e.Receive(server, nil)

	require.NoError(t, client.Close())

	// The echo goroutine releases the socket; a subsequent server-side
	// read fails because the peer is gone and the conn was closed.
	assert.Eventually(t, func() bool {
		one := make([]byte, 1)
		server.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		_, err := server.Read(one)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}
