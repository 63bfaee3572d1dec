/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp_test

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	uvhttp "github.com/adam-ikari/uvhttp"
	"github.com/adam-ikari/uvhttp/hdr"
	"github.com/adam-ikari/uvhttp/mux"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// startServer serves srv on a loopback listener and tears it down with
// the test.
func startServer(t *testing.T, srv *uvhttp.Server) string {
	t.Helper()
	if srv.Logger == nil {
		srv.Logger = quietLogger()
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return ln.Addr().String()
}

// testClient is one raw TCP connection speaking hand-written HTTP.
type testClient struct {
	t    *testing.T
	conn net.Conn
	br   *bufio.Reader
}

func dialClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	return &testClient{t: t, conn: conn, br: bufio.NewReader(conn)}
}

// roundTrip writes raw and reads one response, body drained.
func (c *testClient) roundTrip(raw string) (*http.Response, string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(raw))
	require.NoError(c.t, err)
	return c.readResponse()
}

func (c *testClient) readResponse() (*http.Response, string) {
	c.t.Helper()
	resp, err := http.ReadResponse(c.br, nil)
	require.NoError(c.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	resp.Body.Close()
	return resp, string(body)
}

func helloRouter(t *testing.T) *mux.Router {
	t.Helper()
	router := mux.New()
	require.NoError(t, router.AddRoute(uvhttp.GET, "/", func(req *uvhttp.Request, res *uvhttp.Response) {
		res.SetStatus(uvhttp.StatusOK)
		res.SetHeader(hdr.ContentType, uvhttp.TextPlain)
		res.SetBodyString("Hello, World!")
		res.Send()
	}))
	return router
}

func TestBasicGETAndKeepAlive(t *testing.T) {
	srv := &uvhttp.Server{Router: helloRouter(t)}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, body := c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "13", resp.Header.Get("Content-Length"))
	assert.Equal(t, "Hello, World!", body)

	// The connection is reused for the next request.
	resp, body = c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Hello, World!", body)
}

func TestNotFound(t *testing.T) {
	srv := &uvhttp.Server{Router: helloRouter(t)}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, body := c.roundTrip("GET /nope HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "Not Found", body)
	assert.Equal(t, uint64(1), srv.Telemetry().Count(uvhttp.ErrorRouteNotFound))
}

func TestDefaultResponderWithoutRouter(t *testing.T) {
	srv := &uvhttp.Server{}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, body := c.roundTrip("GET /whatever HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", body)
}

func TestParamRoute(t *testing.T) {
	router := mux.New()
	var got uvhttp.Params
	require.NoError(t, router.AddRoute(uvhttp.GET, "/api/users/:id", func(req *uvhttp.Request, res *uvhttp.Response) {
		res.SetStatus(uvhttp.StatusOK)
		res.SetBodyString("short")
		res.Send()
	}))
	require.NoError(t, router.AddRoute(uvhttp.GET, "/api/users/:id/posts/:post_id", func(req *uvhttp.Request, res *uvhttp.Response) {
		got = req.Params
		res.SetStatus(uvhttp.StatusOK)
		res.SetBodyString("post " + req.Param("id") + "/" + req.Param("post_id"))
		res.Send()
	}))

	srv := &uvhttp.Server{Router: router}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, body := c.roundTrip("GET /api/users/42/posts/7 HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "post 42/7", body)
	assert.Equal(t, uvhttp.Params{"id": "42", "post_id": "7"}, got)
}

func TestRateLimit(t *testing.T) {
	fc := clockwork.NewFakeClock()
	srv := &uvhttp.Server{Router: helloRouter(t), Clock: fc}
	srv.Logger = quietLogger()
	require.NoError(t, srv.SetRateLimit(uvhttp.RateLimitConfig{Requests: 2, Window: 60 * time.Second}))
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	for i := 0; i < 2; i++ {
		resp, _ := c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 200, resp.StatusCode)
	}

	resp, body := c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 429, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Equal(t, "Too Many Requests", body)
	assert.Equal(t, uint64(1), srv.Telemetry().Count(uvhttp.ErrorRateLimited))

	// A fresh window admits requests again.
	fc.Advance(60 * time.Second)
	resp, _ = c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRateLimitWhitelist(t *testing.T) {
	fc := clockwork.NewFakeClock()
	srv := &uvhttp.Server{Router: helloRouter(t), Clock: fc}
	srv.Logger = quietLogger()
	require.NoError(t, srv.SetRateLimit(uvhttp.RateLimitConfig{
		Requests:  1,
		Window:    time.Minute,
		Whitelist: []string{"127.0.0.1"},
	}))
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	for i := 0; i < 5; i++ {
		resp, _ := c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 200, resp.StatusCode)
	}
}

func TestWebSocketHandshakeAndEcho(t *testing.T) {
	var mu sync.Mutex
	states := make(map[uvhttp.ConnState]int)

	received := make(chan net.Conn, 1)
	srv := &uvhttp.Server{
		Router: helloRouter(t),
		ConnState: func(_ net.Conn, s uvhttp.ConnState) {
			mu.Lock()
			states[s]++
			mu.Unlock()
		},
	}
	require.NoError(t, srv.EnableWebSocket(func(sock net.Conn, _ interface{}) {
		received <- sock
	}, nil))
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, _ := c.roundTrip("GET /chat HTTP/1.1\r\n" +
		"Host: x\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n")
	assert.Equal(t, 101, resp.StatusCode)
	assert.Equal(t, "websocket", resp.Header.Get("Upgrade"))
	assert.Equal(t, "Upgrade", resp.Header.Get("Connection"))
	// RFC 6455 section 4.2.2 worked example.
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", resp.Header.Get("Sec-WebSocket-Accept"))

	// The socket reached the transfer recipient and still works raw.
	select {
	case sock := <-received:
		go func() {
			b := make([]byte, 4)
			if _, err := io.ReadFull(sock, b); err == nil {
				sock.Write(b)
			}
			sock.Close()
		}()
		_, err := c.conn.Write([]byte("ping"))
		require.NoError(t, err)
		reply := make([]byte, 4)
		_, err = io.ReadFull(c.br, reply)
		require.NoError(t, err)
		assert.Equal(t, "ping", string(reply))
	case <-time.After(5 * time.Second):
		t.Fatal("socket never reached the transfer recipient")
	}

	mu.Lock()
	assert.Positive(t, states[uvhttp.StateUpgraded])
	assert.Zero(t, states[uvhttp.StateClosed], "an upgraded connection must never be closed by the server")
	mu.Unlock()
}

func TestWebSocketMissingKey(t *testing.T) {
	srv := &uvhttp.Server{Router: helloRouter(t)}
	require.NoError(t, srv.EnableWebSocket(func(net.Conn, interface{}) {}, nil))
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	// A claimed handshake without the key is rejected outright.
	resp, body := c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n")
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "Missing Sec-WebSocket-Key header", body)
	assert.Equal(t, uint64(1), srv.Telemetry().Count(uvhttp.ErrorUpgradeRejected))

	// The connection closes after the rejection drains.
	_, err := c.br.ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestCustomUpgradeTakesOverSocket(t *testing.T) {
	detector := func(req *uvhttp.Request, upgrade, connection string) bool {
		return strings.EqualFold(upgrade, "ipps")
	}
	handler := func(req *uvhttp.Request, res *uvhttp.Response, conn *uvhttp.Conn) error {
		res.SetStatus(uvhttp.StatusSwitchingProtocols)
		res.SetHeader(hdr.UpgradeHeader, "ipps")
		if err := res.Send(); err != nil {
			return err
		}
		conn.TransferOwnership(func(sock net.Conn, userData interface{}) {
			go func() {
				sock.Write([]byte(userData.(string)))
				sock.Close()
			}()
		}, "raw-bytes")
		return nil
	}

	srv := &uvhttp.Server{Router: helloRouter(t)}
	require.NoError(t, srv.RegisterUpgrade("ipps", detector, handler, nil))
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, _ := c.roundTrip("GET /print HTTP/1.1\r\nHost: x\r\nUpgrade: ipps\r\nConnection: Upgrade\r\n\r\n")
	assert.Equal(t, 101, resp.StatusCode)

	rest, err := io.ReadAll(c.br)
	require.NoError(t, err)
	assert.Equal(t, "raw-bytes", string(rest))
}

func TestWebSocketEchoSubsystem(t *testing.T) {
	// Full path: handshake in the core, frames over the transferred socket.
	wsPkg := newEchoRecipient(t)
	srv := &uvhttp.Server{Router: helloRouter(t)}
	require.NoError(t, srv.EnableWebSocket(wsPkg, nil))
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, _ := c.roundTrip("GET /chat HTTP/1.1\r\n" +
		"Host: x\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"\r\n")
	require.Equal(t, 101, resp.StatusCode)

	rw := struct {
		io.Reader
		io.Writer
	}{c.br, c.conn}

	require.NoError(t, wsutil.WriteClientMessage(rw, ws.OpText, []byte("hello ws")))
	msg, op, err := wsutil.ReadServerData(rw)
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, op)
	assert.Equal(t, "hello ws", string(msg))
}

func TestConnectionCloseHonored(t *testing.T) {
	srv := &uvhttp.Server{Router: helloRouter(t)}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, body := c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Hello, World!", body)
	// ReadResponse consumes "Connection: close" into resp.Close.
	assert.True(t, resp.Close, "response must carry Connection: close")

	// The server closes after draining the response.
	_, err := c.br.ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestPipelinedBytesProcessedSequentially(t *testing.T) {
	srv := &uvhttp.Server{Router: helloRouter(t)}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	// Both requests in one write: the residual bytes of the first
	// cycle feed the second without another read.
	_, err := c.conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\nGET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, body := c.readResponse()
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "Hello, World!", body)
	}
}

func TestChunkedRequestBody(t *testing.T) {
	router := mux.New()
	require.NoError(t, router.AddRoute(uvhttp.POST, "/echo", func(req *uvhttp.Request, res *uvhttp.Response) {
		res.SetStatus(uvhttp.StatusOK)
		res.SetBody(req.Body)
		res.Send()
	}))
	srv := &uvhttp.Server{Router: router}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, body := c.roundTrip("POST /echo HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello world", body)
}

func TestOversizeURLClosesWithoutResponse(t *testing.T) {
	srv := &uvhttp.Server{Router: helloRouter(t)}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	long := strings.Repeat("a", 3000)
	_, err := c.conn.Write([]byte("GET /" + long + " HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	_, err = http.ReadResponse(c.br, nil)
	assert.Error(t, err)
	assert.Eventually(t, func() bool {
		return srv.Telemetry().Count(uvhttp.ErrorParseOversize) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOversizeBodyAnswered400(t *testing.T) {
	srv := &uvhttp.Server{Router: helloRouter(t), MaxBodyBytes: 8}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, body := c.roundTrip("POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 64\r\n\r\n" + strings.Repeat("x", 64))
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "Bad Request", body)
	assert.True(t, resp.Close, "response must carry Connection: close")
}

func TestMalformedRequestClosesSilently(t *testing.T) {
	srv := &uvhttp.Server{Router: helloRouter(t)}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	_, err := c.conn.Write([]byte("NOT-HTTP\r\n\r\n"))
	require.NoError(t, err)
	_, err = c.br.ReadByte()
	assert.Equal(t, io.EOF, err)
	assert.Eventually(t, func() bool {
		return srv.Telemetry().Count(uvhttp.ErrorParseProtocol) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCORSPreflightAndEcho(t *testing.T) {
	cfg := uvhttp.DefaultCORSConfig()
	cfg.AllowOrigin = "https://app.example"
	srv := &uvhttp.Server{Router: helloRouter(t)}
	srv.Use(uvhttp.NewCORSMiddleware(cfg))
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	// Preflight stops the chain with a 200.
	resp, _ := c.roundTrip("OPTIONS / HTTP/1.1\r\nHost: x\r\nOrigin: https://app.example\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", resp.Header.Get("Vary"))
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))

	// A matching plain request carries the headers and reaches the
	// handler.
	resp, body := c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\nOrigin: https://app.example\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Hello, World!", body)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	// A foreign origin gets no allow-origin echo.
	resp, _ = c.roundTrip("GET / HTTP/1.1\r\nHost: x\r\nOrigin: https://evil.example\r\n\r\n")
	assert.Equal(t, "", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMiddlewareShortCircuitAndDoubleSend(t *testing.T) {
	handlerRan := false
	router := mux.New()
	require.NoError(t, router.AddRoute(uvhttp.GET, "/guarded", func(req *uvhttp.Request, res *uvhttp.Response) {
		handlerRan = true
		res.SetStatus(uvhttp.StatusOK)
		res.Send()
	}))

	srv := &uvhttp.Server{Router: router}
	srv.Use(func(req *uvhttp.Request, res *uvhttp.Response, ctx *uvhttp.MiddlewareContext) uvhttp.MiddlewareResult {
		if req.Header.Get("X-Block") != "" {
			res.SetStatus(uvhttp.StatusUnauthorized)
			res.SetBodyString("blocked")
			res.Send()
			return uvhttp.Stop
		}
		if req.Header.Get("X-Buggy") != "" {
			res.SetStatus(uvhttp.StatusOK)
			res.SetBodyString("sent twice?")
			res.Send()
			return uvhttp.Continue // programming error: send then Continue
		}
		return uvhttp.Continue
	})
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	resp, body := c.roundTrip("GET /guarded HTTP/1.1\r\nHost: x\r\nX-Block: 1\r\n\r\n")
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "blocked", body)
	assert.False(t, handlerRan)

	resp, _ = c.roundTrip("GET /guarded HTTP/1.1\r\nHost: x\r\nX-Buggy: 1\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, handlerRan, "double-send middleware must still skip the handler")
	assert.Eventually(t, func() bool {
		return srv.Telemetry().Count(uvhttp.ErrorDoubleSend) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, _ = c.roundTrip("GET /guarded HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, handlerRan)
}

func TestServeReturnsErrServerClosed(t *testing.T) {
	srv := &uvhttp.Server{Logger: quietLogger()}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Close())

	select {
	case err := <-done:
		assert.Equal(t, uvhttp.ErrServerClosed, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestHEADSuppressesBody(t *testing.T) {
	router := mux.New()
	require.NoError(t, router.AddRoute(uvhttp.HEAD, "/", func(req *uvhttp.Request, res *uvhttp.Response) {
		res.SetStatus(uvhttp.StatusOK)
		res.SetHeader(hdr.ContentType, uvhttp.TextPlain)
		res.SetBodyString("Hello, World!")
		res.Send()
	}))
	srv := &uvhttp.Server{Router: router}
	addr := startServer(t, srv)
	c := dialClient(t, addr)

	_, err := c.conn.Write([]byte("HEAD / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)
	resp, err := http.ReadResponse(c.br, &http.Request{Method: "HEAD"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "13", resp.Header.Get("Content-Length"))
	resp.Body.Close()

	// Nothing further arrives: the 13 declared bytes were not sent.
	resp2, body2 := c.roundTrip("GET /missing HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 404, resp2.StatusCode)
	assert.Equal(t, "Not Found", body2)
}

// newEchoRecipient returns a transfer callback that runs its own echo
// loop over the socket with wsutil, mirroring ws.EchoServer without
// importing package ws; EchoServer itself is tested in package ws.
func newEchoRecipient(t *testing.T) uvhttp.TransferFunc {
	t.Helper()
	return func(sock net.Conn, _ interface{}) {
		go func() {
			defer sock.Close()
			for {
				msg, op, err := wsutil.ReadClientData(sock)
				if err != nil {
					return
				}
				if err := wsutil.WriteServerMessage(sock, op, msg); err != nil {
					return
				}
			}
		}()
	}
}
