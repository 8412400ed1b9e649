// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the core protocol engine: message correlation,
// timeouts, cancellation propagation, and the stdio and in-memory
// transports. The Streamable HTTP transport lives in streamable.go, the
// legacy SSE transport in sse.go, and the WebSocket transport in
// websocket.go; all of them produce a [Connection] that this engine drives.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	internaljson "github.com/go-mcp/mcpengine/internal/json"
	"github.com/go-mcp/mcpengine/internal/jsonrpc2"
)

// JSONRPCMessage is either a [JSONRPCRequest] or a [JSONRPCResponse].
type JSONRPCMessage = jsonrpc2.Message

// JSONRPCRequest is a call (if it has an ID) or notification.
type JSONRPCRequest = jsonrpc2.Request

// JSONRPCResponse replies to a JSONRPCRequest that was a call.
type JSONRPCResponse = jsonrpc2.Response

// JSONRPCID identifies a JSONRPCRequest that expects a response.
type JSONRPCID = jsonrpc2.ID

// A Transport yields a [Connection] to a single MCP peer. Every transport
// the module defines (stdio, Streamable HTTP, SSE, WebSocket, in-memory)
// implements this interface.
type Transport interface {
	// Connect establishes the connection and returns it.
	Connect(ctx context.Context) (Connection, error)
}

// A Connection is a bidirectional JSON-RPC message stream to a peer. It is
// the boundary between the protocol engine in this file and the framing
// concerns of a specific transport.
type Connection interface {
	// Read receives the next message, blocking until one arrives or ctx is
	// done.
	Read(ctx context.Context) (JSONRPCMessage, error)
	// Write sends a message.
	Write(ctx context.Context, msg JSONRPCMessage) error
	// Close terminates the connection. Concurrent and repeated calls to
	// Close must be safe.
	Close() error
}

// sessionIDer is implemented by connections whose transport assigns a
// session ID (currently only Streamable HTTP and SSE).
type sessionIDer interface {
	SessionID() string
}

// rwc adapts a pair of io.Reader/io.WriteCloser into an io.ReadWriteCloser,
// used by the stdio transports to wrap os.Stdin/os.Stdout.
type rwc struct {
	rc io.ReadCloser
	wc io.WriteCloser
}

func (r rwc) Read(p []byte) (int, error)  { return r.rc.Read(p) }
func (r rwc) Write(p []byte) (int, error) { return r.wc.Write(p) }
func (r rwc) Close() error {
	err := r.rc.Close()
	if werr := r.wc.Close(); err == nil {
		err = werr
	}
	return err
}

// CommandTransport is a stdio [Transport]: it reads newline-delimited
// JSON-RPC messages from an io.Reader and writes them to an io.Writer. Use
// [NewStdioTransport] for the common case of standard input/output.
type CommandTransport struct {
	rwc io.ReadWriteCloser
}

// NewIOTransport returns a [Transport] that communicates over rwc using
// newline-delimited JSON.
func NewIOTransport(rwc io.ReadWriteCloser) *CommandTransport {
	return &CommandTransport{rwc: rwc}
}

// NewStdioTransport returns a [Transport] that communicates over standard
// input and output, as used by MCP servers launched as a subprocess.
func NewStdioTransport() *CommandTransport {
	return &CommandTransport{rwc: rwc{rc: io.NopCloser(os.Stdin), wc: os.Stdout}}
}

// Connect implements the [Transport] interface.
func (t *CommandTransport) Connect(context.Context) (Connection, error) {
	return newIOConn(t.rwc), nil
}

// LoggingTransport wraps another Transport, logging every message read from
// and written to the underlying connection to Writer.
type LoggingTransport struct {
	Transport Transport
	Writer    io.Writer
}

// NewLoggingTransport returns a [LoggingTransport] wrapping transport.
func NewLoggingTransport(transport Transport, w io.Writer) *LoggingTransport {
	return &LoggingTransport{Transport: transport, Writer: w}
}

func (t *LoggingTransport) Connect(ctx context.Context) (Connection, error) {
	conn, err := t.Transport.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingConn{conn: conn, w: t.Writer}, nil
}

type loggingConn struct {
	conn Connection
	mu   sync.Mutex
	w    io.Writer
}

func (c *loggingConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	msg, err := c.conn.Read(ctx)
	if err == nil {
		c.log("read", msg)
	}
	return msg, err
}

func (c *loggingConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	err := c.conn.Write(ctx, msg)
	if err == nil {
		c.log("write", msg)
	}
	return err
}

func (c *loggingConn) Close() error { return c.conn.Close() }

func (c *loggingConn) log(dir string, msg JSONRPCMessage) {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s: %s\n", dir, data)
}

// ioConn is a [Connection] over a line-delimited byte stream, with optional
// output batching (multiple writes are buffered and flushed together as a
// JSON-RPC batch once the configured batch size is reached).
type ioConn struct {
	rwc io.ReadWriteCloser
	in  *bufio.Reader

	mu            sync.Mutex
	outgoingBatch []JSONRPCMessage
	closed        bool
}

func newIOConn(rwc io.ReadWriteCloser) *ioConn {
	return &ioConn{rwc: rwc, in: bufio.NewReader(rwc)}
}

func (c *ioConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	line, err := c.in.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		if err != io.EOF {
			return nil, err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	rest, _ := io.ReadAll(dec.Buffered())
	rest = bytes.TrimLeft(rest, " \t\r\n")
	if len(rest) > 0 {
		return nil, fmt.Errorf("invalid trailing data %q at the end of stream", rune(rest[0]))
	}
	return jsonrpc2.DecodeMessage(raw)
}

func (c *ioConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	if cap(c.outgoingBatch) > 0 {
		c.outgoingBatch = append(c.outgoingBatch, msg)
		if len(c.outgoingBatch) < cap(c.outgoingBatch) {
			c.mu.Unlock()
			return nil
		}
		batch := c.outgoingBatch
		c.outgoingBatch = make([]JSONRPCMessage, 0, cap(c.outgoingBatch))
		c.mu.Unlock()
		return c.writeBatch(batch)
	}
	c.mu.Unlock()

	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	data = append(data, '\n')
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.rwc.Write(data)
	return err
}

func (c *ioConn) writeBatch(batch []JSONRPCMessage) error {
	var buf []byte
	buf = append(buf, '[')
	for i, msg := range batch {
		if i > 0 {
			buf = append(buf, ',')
		}
		data, err := jsonrpc2.EncodeMessage(msg)
		if err != nil {
			return fmt.Errorf("marshaling message: %w", err)
		}
		buf = append(buf, data...)
	}
	buf = append(buf, ']', '\n')
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.rwc.Write(buf)
	return err
}

func (c *ioConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rwc.Close()
}

// inMemoryTransport is a [Transport] connecting two in-process peers
// directly, without any wire encoding. It is used by tests and by code that
// hosts both an MCP client and server in the same process.
type inMemoryTransport struct {
	readable  chan JSONRPCMessage
	writable  chan JSONRPCMessage
	closeOnce sync.Once
	closed    chan struct{}
}

// NewInMemoryTransports returns two entangled [Transport]s: messages written
// to one are delivered to the other.
func NewInMemoryTransports() (Transport, Transport) {
	aToB := make(chan JSONRPCMessage, 64)
	bToA := make(chan JSONRPCMessage, 64)
	closed := make(chan struct{})
	a := &inMemoryTransport{readable: bToA, writable: aToB, closed: closed}
	b := &inMemoryTransport{readable: aToB, writable: bToA, closed: closed}
	return a, b
}

func (t *inMemoryTransport) Connect(context.Context) (Connection, error) {
	return t, nil
}

func (t *inMemoryTransport) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, io.EOF
	case m, ok := <-t.readable:
		if !ok {
			return nil, io.EOF
		}
		return m, nil
	}
}

func (t *inMemoryTransport) Write(ctx context.Context, msg JSONRPCMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		return io.ErrClosedPipe
	case t.writable <- msg:
		return nil
	}
}

func (t *inMemoryTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// pendingCall tracks an outstanding call awaiting a response.
type pendingCall struct {
	response chan *JSONRPCResponse
}

// resolveWithError completes a pending call as if a JSON-RPC error response
// with id had arrived, without it ever crossing the wire. Used to fail a
// task-queued call whose task was cancelled, or whose delayed delivery
// failed to write.
func (c *clientServerConn) resolveWithError(id JSONRPCID, err error) {
	c.mu.Lock()
	pc, ok := c.pending[id.String()]
	c.mu.Unlock()
	if !ok {
		return
	}
	resp, encErr := jsonrpc2.NewResponse(id, nil, err)
	if encErr != nil {
		return
	}
	select {
	case pc.response <- resp:
	default:
	}
}

// clientServerConn is the protocol engine shared by [ClientSession] and
// [ServerSession]. It correlates requests and responses over a [Connection],
// dispatches incoming calls and notifications, and propagates cancellation
// in both directions.
//
// One clientServerConn drives exactly one Connection for the lifetime of a
// session.
type clientServerConn struct {
	conn Connection

	// dispatch handles an incoming call or notification and returns its
	// result. It is set by the owning session (ServerSession or
	// ClientSession) before the read loop starts.
	dispatch func(ctx context.Context, req *JSONRPCRequest) (Result, error)

	nextID int64

	// taskRouter, if set, is consulted before every outbound call made with
	// a task-tagged context. If it reports that the call was queued, the
	// request is never written to conn: its correlation entry is kept
	// alive exactly as for a normal in-flight call, but the bytes are
	// delivered later by a tasks/result long poll instead of over the wire
	// directly. See tasks_server.go's routeTaskMessage.
	taskRouter func(taskID string, req *JSONRPCRequest) bool

	mu      sync.Mutex
	pending map[string]*pendingCall
	running map[string]context.CancelFunc // incoming calls we are handling, for cancellation
	closed  bool
	closeErr error
	done    chan struct{}
}

func newClientServerConn(conn Connection) *clientServerConn {
	return &clientServerConn{
		conn:    conn,
		pending: make(map[string]*pendingCall),
		running: make(map[string]context.CancelFunc),
		done:    make(chan struct{}),
	}
}

// call issues method with params over c and decodes the result into result
// (which must be a pointer), blocking until a response arrives, ctx is
// done, or the connection closes.
func (c *clientServerConn) call(ctx context.Context, method string, params Params, result Result) error {
	id := jsonrpc2.Int64ID(atomic.AddInt64(&c.nextID, 1))
	req, err := jsonrpc2.NewCall(id, method, params)
	if err != nil {
		return err
	}

	pc := &pendingCall{response: make(chan *JSONRPCResponse, 1)}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrConnectionClosed, jsonrpc2.ErrServerClosing)
	}
	c.pending[id.String()] = pc
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id.String())
		c.mu.Unlock()
	}()

	// A call made from inside a running task is not written to the wire: the
	// caller that would read the response has already disconnected. Instead
	// it is redirected to the task's message queue, to be delivered on a
	// future tasks/result long poll. The pending entry above stays registered
	// so the eventual reply, once delivered, resolves this call exactly as it
	// would for a directly-written request.
	queued := false
	if taskID, ok := taskIDFromContext(ctx); ok && c.taskRouter != nil {
		queued = c.taskRouter(taskID, req)
	}
	if !queued {
		if err := c.conn.Write(ctx, req); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		notif, _ := jsonrpc2.NewNotification(notificationCancelled, &CancelledParams{RequestID: id.Raw()})
		if !queued {
			_ = c.conn.Write(context.Background(), notif)
		}
		return ctx.Err()
	case resp := <-pc.response:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			return internaljson.Unmarshal(resp.Result, result)
		}
		return nil
	case <-c.done:
		return fmt.Errorf("%w: %w", ErrConnectionClosed, c.closeErrOrDefault())
	}
}

func (c *clientServerConn) closeErrOrDefault() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return jsonrpc2.ErrServerClosing
}

// notify sends method as a notification (no response expected).
func (c *clientServerConn) notify(ctx context.Context, method string, params Params) error {
	notif, err := jsonrpc2.NewNotification(method, params)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, notif)
}

// respond sends the result of handling an incoming call with the given id.
func (c *clientServerConn) respond(ctx context.Context, id JSONRPCID, result Result, handlerErr error) error {
	resp, err := jsonrpc2.NewResponse(id, result, handlerErr)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, resp)
}

// run drives the read loop until the connection is closed or ctx is done.
// For each incoming message it spawns a goroutine (for calls and
// notifications) or completes an outstanding call (for responses).
func (c *clientServerConn) run(ctx context.Context) error {
	defer func() {
		c.mu.Lock()
		c.closed = true
		if c.closeErr == nil {
			c.closeErr = ctx.Err()
		}
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		msg, err := c.conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			c.closeErr = err
			c.mu.Unlock()
			return err
		}
		switch m := msg.(type) {
		case *JSONRPCResponse:
			c.mu.Lock()
			pc := c.pending[m.ID.String()]
			c.mu.Unlock()
			if pc != nil {
				select {
				case pc.response <- m:
				default:
				}
			}
		case *JSONRPCRequest:
			if m.Method == notificationCancelled {
				var params CancelledParams
				if err := internaljson.Unmarshal(m.Params, &params); err == nil {
					c.cancelIncoming(params.RequestID)
				}
				continue
			}
			go c.handleIncoming(ctx, m)
		}
	}
}

func (c *clientServerConn) handleIncoming(ctx context.Context, req *JSONRPCRequest) {
	var cancel context.CancelFunc
	hctx := ctx
	key := ""
	if req.IsCall() {
		hctx = context.WithValue(ctx, idContextKey{}, req.ID)
		hctx, cancel = context.WithCancel(hctx)
		key = req.ID.String()
		c.mu.Lock()
		c.running[key] = cancel
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			delete(c.running, key)
			c.mu.Unlock()
			cancel()
		}()
	}

	result, err := c.dispatch(hctx, req)
	if !req.IsCall() {
		return
	}
	_ = c.respond(context.Background(), req.ID, result, err)
}

func (c *clientServerConn) cancelIncoming(rawID any) {
	id, err := jsonrpc2.MakeID(rawID)
	if err != nil {
		return
	}
	c.mu.Lock()
	cancel := c.running[id.String()]
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close terminates the underlying connection.
func (c *clientServerConn) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.closeErr == nil {
		c.closeErr = errors.New("connection closed")
	}
	c.mu.Unlock()
	return c.conn.Close()
}

// wait blocks until the read loop has exited.
func (c *clientServerConn) wait() {
	<-c.done
}

// err returns the error that caused the connection to close, or nil if it
// has not closed yet.
func (c *clientServerConn) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}
