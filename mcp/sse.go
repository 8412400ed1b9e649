// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-mcp/mcpengine/internal/jsonrpc2"
)

// An event is a single server-sent event, as defined by the SSE spec:
// https://html.spec.whatwg.org/multipage/server-sent-events.html#event-stream-interpretation
type event struct {
	name string
	id   string
	data []byte
}

// writeEvent writes e to w in SSE wire format, and flushes w if it
// implements [http.Flusher]. It returns the number of bytes written.
func writeEvent(w io.Writer, e event) (int, error) {
	var buf bytes.Buffer
	if e.name != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.name)
	}
	if e.id != "" {
		fmt.Fprintf(&buf, "id: %s\n", e.id)
	}
	for _, line := range strings.Split(string(e.data), "\n") {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}
	buf.WriteByte('\n')
	n, err := w.Write(buf.Bytes())
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

// scanEvents reads a stream of server-sent events from r, yielding each
// event in turn. Iteration stops after the first error, which may be
// io.EOF if the stream ended cleanly between events.
func scanEvents(r io.Reader) iter.Seq2[event, error] {
	return func(yield func(event, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

		var (
			cur     event
			dataBuf bytes.Buffer
			started bool
		)
		flush := func() (event, bool) {
			if !started {
				return event{}, false
			}
			cur.data = dataBuf.Bytes()
			e := cur
			cur = event{}
			dataBuf.Reset()
			started = false
			return e, true
		}
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if e, ok := flush(); ok {
					if !yield(e, nil) {
						return
					}
				}
				continue
			}
			started = true
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				cur.name = value
			case "id":
				cur.id = value
			case "data":
				if dataBuf.Len() > 0 {
					dataBuf.WriteByte('\n')
				}
				dataBuf.WriteString(value)
			default:
				// Unknown field (or a comment line starting with ':'); ignore.
			}
		}
		if err := scanner.Err(); err != nil {
			yield(event{}, err)
			return
		}
		if e, ok := flush(); ok {
			if !yield(e, nil) {
				return
			}
		}
		yield(event{}, io.EOF)
	}
}

// An SSEHandler is an [http.Handler] that serves the legacy HTTP+SSE
// transport, in which a client opens a long-lived GET connection to receive
// an event stream, and delivers its own messages over separate POST
// requests to an endpoint announced in the stream's first event.
//
// This transport was superseded by the Streamable HTTP transport, but
// remains supported for compatibility with older clients.
type SSEHandler struct {
	getServer    func(*http.Request) *Server
	maxBodyBytes int64

	// onConnection, if set, is called with each ServerSession as it is
	// created. Used by tests to observe sessions created by incoming
	// connections.
	onConnection func(*ServerSession)

	mu       sync.Mutex
	sessions map[string]*sseServerTransport
}

// SSEHandlerOptions configures an [SSEHandler].
type SSEHandlerOptions struct {
	// MaxBodyBytes bounds the size of incoming POST request bodies. See
	// [DefaultMaxBodyBytes] for the zero-value behavior.
	MaxBodyBytes int64
}

// NewSSEHandler returns a new [SSEHandler] that creates servers for
// incoming requests using getServer.
//
// The getServer function is used to create or look up servers for new
// sessions. It is OK for getServer to return the same server multiple
// times.
func NewSSEHandler(getServer func(*http.Request) *Server, opts *SSEHandlerOptions) *SSEHandler {
	var maxBodyBytes int64
	if opts != nil {
		maxBodyBytes = opts.MaxBodyBytes
	}
	return &SSEHandler{
		getServer:    getServer,
		maxBodyBytes: effectiveMaxBodyBytes(maxBodyBytes),
		sessions:     make(map[string]*sseServerTransport),
	}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		h.serveSSE(w, req)
	case http.MethodPost:
		h.serveMessage(w, req)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
	}
}

func (h *SSEHandler) serveSSE(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := randText()
	t := &sseServerTransport{
		sessionID: sessionID,
		incoming:  make(chan JSONRPCMessage, 10),
		outgoing:  make(chan event, 10),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[sessionID] = t
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, sessionID)
		h.mu.Unlock()
		t.Close()
	}()

	server := h.getServer(req)
	ss, err := server.Connect(req.Context(), t, nil)
	if err != nil {
		http.Error(w, "failed connection", http.StatusInternalServerError)
		return
	}
	t.session = ss
	if h.onConnection != nil {
		h.onConnection(ss)
	}

	endpoint := "?sessionid=" + url.QueryEscape(sessionID)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := writeEvent(w, event{name: "endpoint", data: []byte(endpoint)}); err != nil {
		return
	}

	for {
		select {
		case <-req.Context().Done():
			return
		case <-t.done:
			return
		case e := <-t.outgoing:
			if _, err := writeEvent(w, e); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) serveMessage(w http.ResponseWriter, req *http.Request) {
	sessionID := req.URL.Query().Get("sessionid")
	h.mu.Lock()
	t := h.sessions[sessionID]
	h.mu.Unlock()
	if t == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if h.maxBodyBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		if isMaxBytesError(err) {
			writeRequestBodyTooLarge(w)
			return
		}
		http.Error(w, fmt.Sprintf("failed to read body: %v", err), http.StatusBadRequest)
		return
	}
	msg, err := jsonrpc2.DecodeMessage(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to decode message: %v", err), http.StatusBadRequest)
		return
	}
	if jreq, ok := msg.(*jsonrpc2.Request); ok {
		if _, ok := t.session.receivingMethodInfos()[jreq.Method]; !ok {
			http.Error(w, fmt.Sprintf("method %q not handled", jreq.Method), http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(jreq.Method, "notifications/") && !jreq.IsCall() {
			http.Error(w, fmt.Sprintf("request for method %q missing id", jreq.Method), http.StatusBadRequest)
			return
		}
	}

	select {
	case t.incoming <- msg:
		w.WriteHeader(http.StatusAccepted)
	case <-t.done:
		http.Error(w, "session terminated", http.StatusGone)
	}
}

// sseServerTransport implements the [Connection] interface for a single SSE
// session, delivering outgoing messages as events on the session's stream
// and receiving incoming messages from HTTP POST requests.
type sseServerTransport struct {
	sessionID string
	incoming  chan JSONRPCMessage
	outgoing  chan event

	// session is set once Connect returns, before the transport is used to
	// serve any message POST request.
	session *ServerSession

	closeOnce sync.Once
	done      chan struct{}
}

// Connect implements the [Transport] interface.
func (t *sseServerTransport) Connect(context.Context) (Connection, error) {
	return t, nil
}

func (t *sseServerTransport) SessionID() string { return t.sessionID }

func (t *sseServerTransport) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, io.EOF
	case msg := <-t.incoming:
		return msg, nil
	}
}

func (t *sseServerTransport) Write(ctx context.Context, msg JSONRPCMessage) error {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return io.EOF
	case t.outgoing <- event{name: "message", data: data}:
		return nil
	}
}

func (t *sseServerTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// An SSEClientTransport is a [Transport] that connects to a server over the
// legacy HTTP+SSE transport, as announced by an "endpoint" event at the
// start of the stream.
type SSEClientTransport struct {
	// Endpoint is the URL of the server's SSE endpoint.
	Endpoint string
	// HTTPClient is the client used to make HTTP requests. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client
	// ModifyRequest, if set, is called to modify each outgoing HTTP request
	// before it is sent, for example to add authentication headers.
	ModifyRequest func(*http.Request)
}

// Connect implements the [Transport] interface, opening a GET connection to
// the endpoint, and blocking until the server announces the message POST
// endpoint in its first SSE event.
func (t *SSEClientTransport) Connect(ctx context.Context) (Connection, error) {
	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if t.ModifyRequest != nil {
		t.ModifyRequest(req)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to SSE endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("SSE endpoint returned status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	base, err := url.Parse(t.Endpoint)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	events, stop := iter.Pull2(scanEvents(resp.Body))
	e, valid, err := events()
	if !valid || err != nil {
		stop()
		resp.Body.Close()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading endpoint event: %w", err)
	}
	if e.name != "endpoint" {
		stop()
		resp.Body.Close()
		return nil, fmt.Errorf("first SSE event was %q, want %q", e.name, "endpoint")
	}
	endpointRef, err := url.Parse(string(e.data))
	if err != nil {
		stop()
		resp.Body.Close()
		return nil, fmt.Errorf("parsing endpoint event data: %w", err)
	}

	conn := &sseClientConn{
		msgEndpoint: base.ResolveReference(endpointRef),
		httpClient:  client,
		modifyReq:   t.ModifyRequest,
		body:        resp.Body,
		incoming:    make(chan JSONRPCMessage, 100),
		done:        make(chan struct{}),
	}
	go conn.receiveEvents(events, stop)
	return conn, nil
}

// sseClientConn implements the [Connection] interface for the client side
// of the legacy HTTP+SSE transport.
type sseClientConn struct {
	msgEndpoint *url.URL
	httpClient  *http.Client
	modifyReq   func(*http.Request)
	body        io.Closer

	incoming chan JSONRPCMessage

	closeOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	closeErr error
}

func (c *sseClientConn) receiveEvents(next func() (event, bool, error), stop func()) {
	defer stop()
	defer c.body.Close()
	defer c.closeWithErr(nil)
	for {
		e, valid, err := next()
		if !valid {
			if err != nil && err != io.EOF {
				c.closeWithErr(err)
			}
			return
		}
		msg, err := jsonrpc2.DecodeMessage(e.data)
		if err != nil {
			c.closeWithErr(fmt.Errorf("decoding SSE message: %w", err))
			return
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *sseClientConn) closeWithErr(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *sseClientConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closeErr != nil {
			return nil, c.closeErr
		}
		return nil, io.EOF
	case msg := <-c.incoming:
		return msg, nil
	}
}

func (c *sseClientConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.msgEndpoint.String(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.modifyReq != nil {
		c.modifyReq(req)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("message POST returned status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *sseClientConn) Close() error {
	c.closeWithErr(nil)
	return nil
}
