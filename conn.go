/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"bufio"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/adam-ikari/uvhttp/hdr"
)

// readBufferSize is the per-connection socket read buffer.
const readBufferSize = 4 << 10

type (
	// A Conn is the server side of one accepted socket: it owns the
	// socket, one Parser, and exactly one in-flight Request/Response
	// pair, and drives them through the connection state machine. All
	// of a Conn's work happens on its own goroutine, so per-connection
	// state needs no locking.
	Conn struct {
		server *Server
		rwc    net.Conn

		bufWriter *bufio.Writer
		parser    *Parser

		req Request
		res Response

		// pendingField carries a header field name between the parser's
		// HeaderField and HeaderValue events.
		pendingField []byte

		remoteAddr string

		// wErr is the first write error on rwc, set via checkConnErrorWriter.
		wErr error

		curState atomic.Int32

		transfer *pendingTransfer
	}

	pendingTransfer struct {
		fn       TransferFunc
		userData interface{}
	}

	// checkConnErrorWriter writes to c.rwc and records the first write
	// error in c.wErr. Its ReadFrom lets io.Copy reach the TCP
	// connection's sendfile path for regular files.
	checkConnErrorWriter struct {
		con *Conn
	}
)

func (w checkConnErrorWriter) Write(p []byte) (int, error) {
	n, err := w.con.rwc.Write(p)
	if err != nil && w.con.wErr == nil {
		w.con.wErr = err
	}
	return n, err
}

func (w checkConnErrorWriter) ReadFrom(src io.Reader) (int64, error) {
	if rf, ok := w.con.rwc.(io.ReaderFrom); ok {
		n, err := rf.ReadFrom(src)
		if err != nil && w.con.wErr == nil {
			w.con.wErr = err
		}
		return n, err
	}
	n, err := io.Copy(writerOnly{w}, src)
	return n, err
}

// writerOnly hides an io.Writer value's optional ReadFrom method
// from io.Copy.
type writerOnly struct {
	io.Writer
}

func (c *Conn) state() ConnState {
	return ConnState(c.curState.Load())
}

func (c *Conn) setState(s ConnState) {
	c.curState.Store(int32(s))
	if hook := c.server.ConnState; hook != nil {
		hook(c.rwc, s)
	}
}

// TransferOwnership hands the underlying socket to fn once the current
// upgrade handler returns. The connection stops reading, its deadlines
// are cleared, and it transitions to StateUpgraded: from then on fn's
// recipient is the socket's sole owner and the server never touches it
// again, not even to close it. The transition is one-way.
func (c *Conn) TransferOwnership(fn TransferFunc, userData interface{}) {
	if fn == nil {
		return
	}
	c.transfer = &pendingTransfer{fn: fn, userData: userData}
}

// RemoteAddr returns the peer address of the underlying socket.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// serve runs the connection state machine until close or transfer.
func (c *Conn) serve() {
	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			c.server.log().Errorf("panic serving %v: %v\n%s", c.remoteAddr, err, buf)
		}
		if c.state() != StateUpgraded {
			c.setState(StateClosing)
			c.close()
			c.setState(StateClosed)
		}
		c.server.trackConn(c, false)
	}()

	buf := make([]byte, readBufferSize)

	for {
		// Residual bytes of the previous cycle parse before any read.
		if c.parser.Buffered() > 0 {
			if err := c.parser.Feed(nil); err != nil {
				c.failParse(err)
				return
			}
		}

		for !c.parser.Complete() {
			if d := c.server.IdleTimeout; d != 0 {
				c.rwc.SetReadDeadline(time.Now().Add(d))
			}
			n, err := c.rwc.Read(buf)
			if n > 0 {
				c.setState(StateParsing)
				if perr := c.parser.Feed(buf[:n]); perr != nil {
					c.failParse(perr)
					return
				}
			}
			if err != nil {
				if err != io.EOF && !isTimeout(err) {
					c.server.telemetry.Record(ErrorIOFatal, "read: "+err.Error())
				}
				return
			}
		}

		c.setState(StateHandling)
		c.server.metrics.observeRequest()
		c.handleRequest()

		if c.transfer != nil {
			c.finishUpgrade()
			return
		}

		if !c.res.Sent() {
			// The handler staged a response without sending it.
			c.res.Send()
		}

		if c.wErr != nil {
			c.server.telemetry.Record(ErrorIOFatal, "write: "+c.wErr.Error())
			return
		}

		if c.res.closeAfter || c.req.WantsClose() || !c.server.doKeepAlives() {
			// Any residual pipelined bytes are discarded; the response
			// drains through the deferred close.
			return
		}

		c.setState(StateIdle)
		c.recycle()
	}
}

// recycle rearms the connection for the next keep-alive request:
// Request and Response reset in place, headers cleared, the parser
// rearmed on whatever residual bytes it holds.
func (c *Conn) recycle() {
	c.req.reset()
	c.res.reset()
	c.pendingField = c.pendingField[:0]
	c.parser.Reset()
}

// handleRequest runs one fully parsed request through the pipeline:
// upgrade registry, then rate limiter, then middleware, then router.
func (c *Conn) handleRequest() {
	srv := c.server

	if reg := srv.upgrades.claim(&c.req); reg != nil {
		if err := reg.handle(&c.req, &c.res, c); err != nil {
			srv.telemetry.Record(ErrorUpgradeRejected, reg.name+": "+err.Error())
			c.res.closeAfter = true
			return
		}
		if c.transfer != nil {
			srv.metrics.observeUpgrade()
		}
		return
	}

	if srv.limiter != nil {
		if ok, retryAfter := srv.limiter.allow(c.req.ClientIP()); !ok {
			srv.telemetry.Record(ErrorRateLimited, c.req.ClientIP())
			srv.metrics.observeRateLimited()
			c.res.SetStatus(StatusTooManyRequests)
			c.res.SetHeader(hdr.ContentType, TextPlain)
			c.res.SetHeader(hdr.RetryAfter, strconv.Itoa(retryAfter))
			c.res.SetBodyString("Too Many Requests")
			c.res.Send()
			return
		}
	}

	if !srv.middleware.execute(&c.req, &c.res, srv.telemetry) {
		return
	}

	if srv.Router == nil {
		c.res.SetStatus(StatusOK)
		c.res.SetHeader(hdr.ContentType, TextPlain)
		c.res.SetBodyString("OK")
		c.res.Send()
		return
	}

	handler, params := srv.Router.FindHandler(c.req.Path(), c.req.Method)
	if handler == nil {
		srv.telemetry.Record(ErrorRouteNotFound, c.req.Method+" "+c.req.Path())
		c.res.SetStatus(StatusNotFound)
		c.res.SetHeader(hdr.ContentType, TextPlain)
		c.res.SetBodyString("Not Found")
		c.res.Send()
		return
	}
	c.req.Params = params
	handler(&c.req, &c.res)
}

// failParse disposes of a parse failure: oversize input after the
// headers finished still gets a 400; everything else closes silently.
func (c *Conn) failParse(err error) {
	kind := ErrorParseProtocol
	if e, ok := err.(*Error); ok {
		kind = e.Kind
	}
	c.server.telemetry.Record(kind, err.Error())
	c.server.metrics.observeError(kind)
	c.server.log().WithField("remote_addr", c.remoteAddr).Debugf("parse failed: %v", err)

	if kind == ErrorParseOversize && c.parser.HeadersComplete() && !c.res.Sent() {
		c.res.SetStatus(StatusBadRequest)
		c.res.SetHeader(hdr.ContentType, TextPlain)
		c.res.SetBodyString("Bad Request")
		c.res.closeAfter = true
		c.res.Send()
	}
}

func (c *Conn) finishUpgrade() {
	c.bufWriter.Flush()
	c.rwc.SetDeadline(time.Time{})
	c.setState(StateUpgraded)
	t := c.transfer
	c.transfer = nil
	t.fn(c.rwc, t.userData)
}

func (c *Conn) close() {
	if c.bufWriter != nil {
		c.bufWriter.Flush()
	}
	c.rwc.Close()
}

// ParserSink implementation: the parser's events populate the Request
// in place.

func (c *Conn) MessageBegin() error {
	return nil
}

func (c *Conn) URLFragment(frag []byte) error {
	c.req.URL += string(frag)
	return nil
}

func (c *Conn) HeaderField(name []byte) error {
	c.pendingField = append(c.pendingField[:0], name...)
	return nil
}

func (c *Conn) HeaderValue(value []byte) error {
	err := c.req.Header.Add(string(c.pendingField), string(value))
	switch err {
	case nil:
		return nil
	case hdr.ErrNameTooLong:
		return ErrParseHeaderTooLong
	case hdr.ErrValueTooLong:
		return ErrParseHeaderValueTooLong
	default:
		return &Error{Kind: ErrorParseOversize, Message: err.Error()}
	}
}

func (c *Conn) BodyFragment(frag []byte) error {
	c.req.Body = append(c.req.Body, frag...)
	return nil
}

func (c *Conn) MessageComplete() error {
	c.req.Method = c.parser.Method()
	c.req.Proto = c.parser.Proto()
	return nil
}

// writeResponse serializes one response. With a nil stream the body is
// res.body; otherwise streamLen bytes are copied from stream in chunks
// under opts.
func (c *Conn) writeResponse(res *Response, stream io.Reader, streamLen int64, opts StreamOptions) error {
	c.setState(StateWriting)

	status := res.Status()
	reason := StatusText(status)
	if reason == "" {
		reason = "Status"
	}

	w := c.bufWriter
	w.WriteString(HTTP1_1)
	w.WriteByte(' ')
	w.WriteString(strconv.Itoa(status))
	w.WriteByte(' ')
	w.WriteString(reason)
	w.Write(CrLf)

	bodyLen := int64(len(res.body))
	if stream != nil {
		bodyLen = streamLen
	}

	if !res.Header.Has(hdr.Date) {
		w.WriteString(hdr.Date)
		w.Write(colonSpace)
		w.WriteString(time.Now().UTC().Format(hdr.TimeFormat))
		w.Write(CrLf)
	}
	if !bodyForbidden(status) && !res.Header.Has(hdr.ContentLength) {
		w.WriteString(hdr.ContentLength)
		w.Write(colonSpace)
		w.WriteString(strconv.FormatInt(bodyLen, 10))
		w.Write(CrLf)
	}
	if (res.closeAfter || c.req.WantsClose()) && !res.Header.Has(hdr.Connection) {
		w.WriteString(hdr.Connection)
		w.Write(colonSpace)
		w.WriteString(DoClose)
		w.Write(CrLf)
	}
	res.Header.Write(w)
	w.Write(CrLf)

	if c.req.Method == HEAD || bodyForbidden(status) {
		return c.flushAndCheck()
	}

	if stream == nil {
		if len(res.body) > 0 {
			w.Write(res.body)
		}
		return c.flushAndCheck()
	}

	if err := c.flushAndCheck(); err != nil {
		return err
	}
	return c.streamBody(stream, streamLen, opts)
}

// streamBody copies size bytes to the socket in bounded chunks. Each
// chunk completes (or times out) before the next is issued, which is
// what bounds memory and gives per-chunk timeout granularity. A
// timed-out chunk resumes from the bytes already written, up to
// opts.MaxRetry times.
func (c *Conn) streamBody(src io.Reader, size int64, opts StreamOptions) error {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultSendfileChunkSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSendfileTimeout
	}

	cw := checkConnErrorWriter{c}
	var written int64
	for written < size {
		chunk := int64(opts.ChunkSize)
		if size-written < chunk {
			chunk = size - written
		}
		var sent int64
		retries := 0
		for sent < chunk {
			c.rwc.SetWriteDeadline(time.Now().Add(opts.Timeout))
			n, err := io.Copy(cw, io.LimitReader(src, chunk-sent))
			sent += n
			written += n
			if err == nil && n == 0 {
				err = io.ErrUnexpectedEOF
			}
			if err != nil {
				if isTimeout(err) && retries < opts.MaxRetry {
					retries++
					c.server.telemetry.Record(ErrorIOTransient, "sendfile chunk retry")
					c.wErr = nil
					continue
				}
				c.server.telemetry.Record(ErrorIOFatal, "sendfile: "+err.Error())
				c.res.closeAfter = true
				c.rwc.SetWriteDeadline(time.Time{})
				return err
			}
		}
	}
	c.rwc.SetWriteDeadline(time.Time{})
	return c.flushAndCheck()
}

func (c *Conn) flushAndCheck() error {
	if err := c.bufWriter.Flush(); err != nil {
		return err
	}
	return c.wErr
}

// bodyForbidden reports whether status forbids a message body.
func bodyForbidden(status int) bool {
	return status < 200 || status == StatusNoContent || status == StatusNotModified
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
