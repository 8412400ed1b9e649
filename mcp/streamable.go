// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-mcp/mcpengine/internal/jsonrpc2"
)

// StreamableHTTPHandler is an http.Handler serving the Streamable HTTP
// transport described at:
// https://modelcontextprotocol.io/2025/03/26/streamable-http-transport.html
//
// A single handler multiplexes many sessions, each keyed by the
// Mcp-Session-Id header; [StreamableServerTransport] implements the
// per-session half of the protocol.
type StreamableHTTPHandler struct {
	getServer    func(*http.Request) *Server
	maxBodyBytes int64

	mu       sync.Mutex
	sessions map[string]*StreamableServerTransport
}

// StreamableHTTPOptions configures a [StreamableHTTPHandler].
type StreamableHTTPOptions struct {
	// MaxBodyBytes bounds incoming POST bodies. See [DefaultMaxBodyBytes]
	// for the zero-value behavior and [effectiveMaxBodyBytes] for how
	// negative values are treated.
	MaxBodyBytes int64
}

// NewStreamableHTTPHandler builds a handler that looks up or creates a
// [*Server] for each request via getServer. getServer may return the same
// server for every call.
func NewStreamableHTTPHandler(getServer func(*http.Request) *Server, opts *StreamableHTTPOptions) *StreamableHTTPHandler {
	var maxBodyBytes int64
	if opts != nil {
		maxBodyBytes = opts.MaxBodyBytes
	}
	return &StreamableHTTPHandler{
		getServer:    getServer,
		maxBodyBytes: effectiveMaxBodyBytes(maxBodyBytes),
		sessions:     make(map[string]*StreamableServerTransport),
	}
}

// closeAll tears down every session the handler is tracking.
func (h *StreamableHTTPHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		s.Close()
	}
	h.sessions = nil
}

func (h *StreamableHTTPHandler) lookupSession(id string) *StreamableServerTransport {
	if id == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}

func (h *StreamableHTTPHandler) registerSession(s *StreamableServerTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
}

func (h *StreamableHTTPHandler) forgetSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// acceptsStreaming reports whether the Accept header (which may be repeated
// across several header lines) admits the given media types.
func acceptsStreaming(req *http.Request) (jsonOK, streamOK bool) {
	for _, c := range strings.Split(strings.Join(req.Header.Values("Accept"), ","), ",") {
		switch strings.TrimSpace(c) {
		case "application/json":
			jsonOK = true
		case "text/event-stream":
			streamOK = true
		}
	}
	return jsonOK, streamOK
}

func (h *StreamableHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	jsonOK, streamOK := acceptsStreaming(req)
	if req.Method == http.MethodGet {
		if !streamOK {
			http.Error(w, "Accept must contain 'text/event-stream' for GET requests", http.StatusBadRequest)
			return
		}
	} else if !jsonOK || !streamOK {
		http.Error(w, "Accept must contain both 'application/json' and 'text/event-stream'", http.StatusBadRequest)
		return
	}

	sessionID := req.Header.Get("Mcp-Session-Id")
	session := h.lookupSession(sessionID)
	if sessionID != "" && session == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if req.Method == http.MethodDelete {
		if session == nil {
			http.Error(w, "DELETE requires an Mcp-Session-Id header", http.StatusBadRequest)
			return
		}
		h.forgetSession(session.id)
		session.Close()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch req.Method {
	case http.MethodPost, http.MethodGet:
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		return
	}

	if session == nil {
		s := NewStreamableServerTransport(randText())
		s.maxBodyBytes = h.maxBodyBytes
		server := h.getServer(req)
		// Use req.Context() so middleware-injected values survive; the
		// jsonrpc2 layer detaches it once the long-running stream starts.
		if _, err := server.Connect(req.Context(), s, nil); err != nil {
			http.Error(w, "failed connection", http.StatusInternalServerError)
			return
		}
		h.registerSession(s)
		session = s
	}

	session.ServeHTTP(w, req)
}

// streamID identifies one logical connection within a session: each HTTP
// POST or the single hanging GET gets its own stream, so that a server
// reply can be routed back to the request that caused it. Stream 0 carries
// messages with no associated request (server-initiated notifications and
// requests sent outside a handler's context).
type streamID int64

// streamEvent pairs an outgoing SSE event with its position in the stream,
// so a reconnecting GET can resume from where it left off.
type streamEvent struct {
	idx   int
	event event
}

// StreamableServerTransport implements the server side of one Streamable
// HTTP session: it accepts concurrent HTTP requests (POSTs delivering
// client messages, a hanging GET delivering server-initiated ones) and
// fans server replies out to whichever request is waiting for them.
type StreamableServerTransport struct {
	id           string
	maxBodyBytes int64
	incoming     chan JSONRPCMessage

	nextStreamID atomic.Int64

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	// queued holds every event sent so far, per stream, so a reconnecting
	// GET (or late-arriving POST response) can replay from any index.
	// Never garbage collected: events live for the session's lifetime.
	queued map[streamID][]*streamEvent

	// claimed maps a stream to a 1-buffered channel held by whichever HTTP
	// request is currently serving it; sending on the channel wakes that
	// request to check for new events. Only one request may serve a
	// stream at a time.
	claimed map[streamID]chan struct{}

	// streamOf routes an incoming request's ID to the stream that should
	// carry its eventual reply.
	streamOf map[JSONRPCID]streamID

	// pending tracks, per stream, the request IDs still awaiting a reply.
	// A stream with no pending requests left is free to close.
	pending map[streamID]map[JSONRPCID]struct{}
}

// NewStreamableServerTransport returns a [StreamableServerTransport] for a
// fresh session identified by sessionID.
func NewStreamableServerTransport(sessionID string) *StreamableServerTransport {
	return &StreamableServerTransport{
		id:           sessionID,
		maxBodyBytes: effectiveMaxBodyBytes(0),
		incoming:     make(chan JSONRPCMessage, 10),
		done:         make(chan struct{}),
		queued:       make(map[streamID][]*streamEvent),
		claimed:      make(map[streamID]chan struct{}),
		streamOf:     make(map[JSONRPCID]streamID),
		pending:      make(map[streamID]map[JSONRPCID]struct{}),
	}
}

func (t *StreamableServerTransport) SessionID() string {
	return t.id
}

// idContextKey stamps the incoming request's JSON-RPC ID onto the handler
// context (see [ServerSession]'s dispatch loop), so that server-initiated
// calls and notifications made while handling a request can be routed to
// the same logical stream as that request's eventual reply. Only this
// transport reads the value, which keeps the mechanism out of the public
// Transport/Connection interfaces.
type idContextKey struct{}

// Connect implements the [Transport] interface.
func (t *StreamableServerTransport) Connect(context.Context) (Connection, error) {
	return t, nil
}

func (t *StreamableServerTransport) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		t.serveGET(w, req)
	case http.MethodPost:
		t.servePOST(w, req)
	default:
		// StreamableHTTPHandler.ServeHTTP already rejects other methods.
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
	}
}

func (t *StreamableServerTransport) serveGET(w http.ResponseWriter, req *http.Request) {
	id, nextIdx := streamID(0), 0
	if eid := req.Header.Get("Last-Event-ID"); eid != "" {
		var ok bool
		id, nextIdx, ok = parseEventID(eid)
		if !ok {
			http.Error(w, fmt.Sprintf("malformed Last-Event-ID %q", eid), http.StatusBadRequest)
			return
		}
		nextIdx++
	}

	t.mu.Lock()
	if _, claimed := t.claimed[id]; claimed {
		t.mu.Unlock()
		http.Error(w, "stream ID conflicts with ongoing stream", http.StatusBadRequest)
		return
	}
	wake := make(chan struct{}, 1)
	t.claimed[id] = wake
	t.mu.Unlock()

	t.streamEvents(w, req, id, nextIdx, wake)
}

// readBatch decodes a POST body as either a single JSON-RPC message or a
// JSON-RPC batch: a top-level JSON array of messages, the same wire shape
// ioConn.writeBatch produces for stdio. The bool result reports whether the
// body was a batch, which callers can use to decide whether a batched reply
// is expected back.
func readBatch(body []byte) ([]JSONRPCMessage, bool, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty body")
	}
	if trimmed[0] != '[' {
		msg, err := jsonrpc2.DecodeMessage(body)
		if err != nil {
			return nil, false, err
		}
		return []JSONRPCMessage{msg}, false, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, false, fmt.Errorf("decoding batch: %w", err)
	}
	if len(raws) == 0 {
		return nil, false, fmt.Errorf("empty batch")
	}
	msgs := make([]JSONRPCMessage, len(raws))
	for i, raw := range raws {
		msg, err := jsonrpc2.DecodeMessage(raw)
		if err != nil {
			return nil, false, fmt.Errorf("batch element %d: %w", i, err)
		}
		msgs[i] = msg
	}
	return msgs, true, nil
}

func (t *StreamableServerTransport) servePOST(w http.ResponseWriter, req *http.Request) {
	if req.Header.Get("Last-Event-ID") != "" {
		http.Error(w, "can't send Last-Event-ID for POST request", http.StatusBadRequest)
		return
	}

	if t.maxBodyBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, t.maxBodyBytes)
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		if isMaxBytesError(err) {
			writeRequestBodyTooLarge(w)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "POST requires a non-empty body", http.StatusBadRequest)
		return
	}
	incoming, _, err := readBatch(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed payload: %v", err), http.StatusBadRequest)
		return
	}

	awaited := make(map[JSONRPCID]struct{})
	for _, msg := range incoming {
		if r, ok := msg.(*JSONRPCRequest); ok && r.ID.IsValid() {
			awaited[r.ID] = struct{}{}
		}
	}

	id := streamID(t.nextStreamID.Add(1))
	wake := make(chan struct{}, 1)
	t.mu.Lock()
	if len(awaited) > 0 {
		t.pending[id] = make(map[JSONRPCID]struct{})
	}
	for reqID := range awaited {
		t.streamOf[reqID] = id
		t.pending[id][reqID] = struct{}{}
	}
	t.claimed[id] = wake
	t.mu.Unlock()

	for _, msg := range incoming {
		t.incoming <- msg
	}

	t.streamEvents(w, req, id, 0, wake)
}

// streamEvents writes SSE events for stream id to w as they become
// available, starting at nextIndex, until every request on that stream has
// been replied to (for POST) or the connection is torn down (for GET).
func (t *StreamableServerTransport) streamEvents(w http.ResponseWriter, req *http.Request, id streamID, nextIndex int, wake chan struct{}) {
	defer func() {
		t.mu.Lock()
		delete(t.claimed, id)
		t.mu.Unlock()
	}()

	if nextIndex > 0 {
		// Resuming: clamp to what's actually queued so a stale
		// Last-Event-ID can't skip ahead of real events.
		t.mu.Lock()
		if n := len(t.queued[id]); nextIndex > n {
			nextIndex = n
		}
		t.mu.Unlock()
	}

	w.Header().Set("Mcp-Session-Id", t.id)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")

	writes := 0
	for {
		t.mu.Lock()
		toSend := t.queued[id][nextIndex:]
		t.mu.Unlock()

		for _, ev := range toSend {
			if _, err := writeEvent(w, ev.event); err != nil {
				return // peer went away
			}
			writes++
			nextIndex++
		}

		t.mu.Lock()
		outstanding := len(t.pending[id])
		total := len(t.queued[id])
		t.mu.Unlock()

		if nextIndex < total {
			continue // more queued events to flush
		}
		if req.Method == http.MethodPost && outstanding == 0 {
			if writes == 0 {
				// Per spec: an accepted POST with no reply content gets a
				// bare 202, not an empty event stream.
				w.WriteHeader(http.StatusAccepted)
			}
			return
		}

		select {
		case <-wake:
		case <-t.done:
			if writes == 0 {
				http.Error(w, "session terminated", http.StatusGone)
			}
			return
		case <-req.Context().Done():
			if writes == 0 {
				w.WriteHeader(http.StatusNoContent)
			}
			return
		}
	}
}

// Event IDs encode both the logical stream and the index within it, as
// "<streamID>_<idx>", matching the reference TypeScript implementation.

func formatEventID(sid streamID, idx int) string {
	return fmt.Sprintf("%d_%d", sid, idx)
}

func parseEventID(eventID string) (sid streamID, idx int, ok bool) {
	parts := strings.Split(eventID, "_")
	if len(parts) != 2 {
		return 0, 0, false
	}
	stream, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || stream < 0 {
		return 0, 0, false
	}
	idx, err = strconv.Atoi(parts[1])
	if err != nil || idx < 0 {
		return 0, 0, false
	}
	return streamID(stream), idx, true
}

// Read implements the [Connection] interface.
func (t *StreamableServerTransport) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-t.incoming:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-t.done:
		return nil, io.EOF
	}
}

// Write implements the [Connection] interface, queuing msg onto whichever
// logical stream its originating request belongs to (or the shared stream
// 0 for unsolicited server messages), and waking any request currently
// serving that stream.
func (t *StreamableServerTransport) Write(ctx context.Context, msg JSONRPCMessage) error {
	var forRequest, replyTo JSONRPCID
	if resp, ok := msg.(*JSONRPCResponse); ok {
		forRequest = resp.ID
		replyTo = resp.ID
	} else if v := ctx.Value(idContextKey{}); v != nil {
		forRequest = v.(JSONRPCID)
	}

	var stream streamID
	if forRequest.IsValid() {
		t.mu.Lock()
		stream = t.streamOf[forRequest]
		t.mu.Unlock()
	}

	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("session is closed")
	}

	if _, ok := t.pending[stream]; !ok && stream != 0 {
		// The stream this message targets has no requests left awaiting
		// reply, so it's effectively closed; a server sending on it now is
		// a sequencing bug. Route to the shared stream instead of
		// dropping the message.
		stream = 0
	}

	idx := len(t.queued[stream])
	t.queued[stream] = append(t.queued[stream], &streamEvent{
		idx: idx,
		event: event{
			name: "message",
			id:   formatEventID(stream, idx),
			data: data,
		},
	})
	if replyTo.IsValid() {
		delete(t.pending[stream], replyTo)
		if len(t.pending[stream]) == 0 {
			delete(t.pending, stream)
		}
	}

	if c, ok := t.claimed[stream]; ok {
		select {
		case c <- struct{}{}:
		default:
		}
	}
	return nil
}

// Close implements the [Connection] interface.
func (t *StreamableServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}

// StreamableClientTransport is a [Transport] that speaks the 2025-03-26
// Streamable HTTP transport to a remote MCP endpoint.
type StreamableClientTransport struct {
	url  string
	opts StreamableClientTransportOptions
}

// StreamableClientTransportOptions configures [NewStreamableClientTransport].
type StreamableClientTransportOptions struct {
	// HTTPClient sends requests; http.DefaultClient is used if nil.
	HTTPClient *http.Client
	// MaxRetries bounds retries of a send or of re-establishing the
	// hanging GET. 0 means no retries beyond the initial attempt.
	MaxRetries int
	// InitialBackoff is the delay before the first retry; later retries
	// back off exponentially. Defaults to one second.
	InitialBackoff time.Duration
}

// NewStreamableClientTransport returns a client transport targeting the
// Streamable HTTP server at url.
func NewStreamableClientTransport(url string, opts *StreamableClientTransportOptions) *StreamableClientTransport {
	t := &StreamableClientTransport{url: url}
	if opts != nil {
		t.opts = *opts
	}
	if t.opts.InitialBackoff == 0 {
		t.opts.InitialBackoff = time.Second
	}
	return t
}

// Connect implements the [Transport] interface. The returned [Connection]
// sends messages via POST with the Mcp-Session-Id header set, receives
// them via a hanging GET, and issues a DELETE to end the logical session
// on Close.
func (t *StreamableClientTransport) Connect(ctx context.Context) (Connection, error) {
	client := t.opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	conn := &streamableClientConn{
		url:             t.url,
		client:          client,
		incoming:        make(chan []byte, 100),
		done:            make(chan struct{}),
		pendingMessages: make(chan JSONRPCMessage, 100),
		maxRetries:      t.opts.MaxRetries,
		initialBackoff:  t.opts.InitialBackoff,
		randSource:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	conn.sessionID.Store("")

	go conn.sendLoop()
	go conn.receiveLoop()

	return conn, nil
}

// streamableClientConn is the client half of a Streamable HTTP session. A
// send goroutine drains pendingMessages to POST requests with retries, and
// a receive goroutine keeps a hanging GET alive, re-establishing it (with
// Last-Event-ID replay) whenever it drops.
type streamableClientConn struct {
	url       string
	sessionID atomic.Value // string
	client    *http.Client
	incoming  chan []byte
	done      chan struct{}

	closeOnce sync.Once
	closeErr  error

	mu          sync.Mutex // guards lastEventID and err
	lastEventID string
	err         error // set once the connection is deemed unhealthy

	pendingMessages chan JSONRPCMessage

	maxRetries     int
	initialBackoff time.Duration
	randSource     *rand.Rand

	// cancelHangingGet cancels the currently active hanging GET, if any,
	// so Close can interrupt it promptly.
	cancelHangingGet context.CancelFunc
}

func (c *streamableClientConn) SessionID() string {
	return c.sessionID.Load().(string)
}

// Read implements the [Connection] interface.
func (s *streamableClientConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	case data := <-s.incoming:
		return jsonrpc2.DecodeMessage(data)
	}
}

// Write implements the [Connection] interface by enqueuing msg for the
// send goroutine; the actual POST (with retries) happens asynchronously.
func (s *streamableClientConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err != nil {
			return s.err
		}
		return io.EOF
	case s.pendingMessages <- msg:
		return nil
	}
}

// sendLoop drains pendingMessages, POSTing each with its own retry budget
// so a slow or failing send never blocks the next message from being
// dispatched.
func (s *streamableClientConn) sendLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.pendingMessages:
			ctx, cancel := context.WithCancel(context.Background())
			go s.sendWithRetries(ctx, cancel, msg)
		}
	}
}

func (s *streamableClientConn) sendWithRetries(ctx context.Context, cancel context.CancelFunc, msg JSONRPCMessage) {
	defer cancel()

	sessionID := s.sessionID.Load().(string)
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		gotSessionID, err := s.postMessage(ctx, sessionID, msg)
		if err == nil {
			if sessionID == "" && gotSessionID != "" {
				s.sessionID.Store(gotSessionID)
			}
			return
		}

		lastErr = err
		if !isRetryable(err) || attempt == s.maxRetries {
			break
		}
		if !s.sleepBackoff(ctx, attempt) {
			return
		}
	}
	s.mu.Lock()
	s.err = fmt.Errorf("failed to send message after %d retries: %w", s.maxRetries, lastErr)
	s.mu.Unlock()
	s.Close()
}

// sleepBackoff waits out an exponential-with-jitter backoff for the given
// retry attempt, returning false if ctx was cancelled first.
func (s *streamableClientConn) sleepBackoff(ctx context.Context, attempt int) bool {
	backoff := s.initialBackoff * time.Duration(1<<uint(attempt))
	jitter := time.Duration(s.randSource.Int63n(int64(backoff / 2)))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(backoff + jitter):
		return true
	}
}

// postMessage sends one JSON-RPC message via POST, returning the session
// ID the server assigned or confirmed.
func (s *streamableClientConn) postMessage(ctx context.Context, sessionID string, msg JSONRPCMessage) (string, error) {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create POST request: %w", err)
	}
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("POST request returned unexpected status %d %s: %s", resp.StatusCode, resp.Status, strings.TrimSpace(string(body))),
		}
	}

	newSessionID := resp.Header.Get("Mcp-Session-Id")
	if sessionID == "" && newSessionID == "" {
		resp.Body.Close()
		return "", fmt.Errorf("initial POST request did not return an Mcp-Session-Id")
	}
	if newSessionID == "" {
		newSessionID = sessionID
	}

	if resp.Header.Get("Content-Type") == "text/event-stream" {
		go s.consumeSSE(resp)
	} else {
		resp.Body.Close()
	}

	return newSessionID, nil
}

// receiveLoop keeps a hanging GET open for as long as the connection
// lives, reconnecting with backoff (and Last-Event-ID replay) whenever the
// GET ends with an error.
func (s *streamableClientConn) receiveLoop() {
	backoff := s.initialBackoff
	retries := 0

	for {
		select {
		case <-s.done:
			return
		default:
		}

		sessionID := s.sessionID.Load().(string)
		if sessionID == "" {
			// The first POST hasn't completed yet.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.cancelHangingGet = cancel
		lastEventID := s.lastEventID
		s.mu.Unlock()

		err := s.hangingGET(ctx, sessionID, lastEventID)

		s.mu.Lock()
		s.cancelHangingGet = nil
		s.mu.Unlock()
		cancel()

		if err == nil {
			retries = 0
			backoff = s.initialBackoff
			continue // reconnect immediately after a graceful close
		}

		if retries >= s.maxRetries {
			s.mu.Lock()
			s.err = fmt.Errorf("failed to maintain SSE connection after %d retries: %w", s.maxRetries, err)
			s.mu.Unlock()
			s.Close()
			return
		}

		delay := backoff + time.Duration(s.randSource.Int63n(int64(backoff/2)))
		select {
		case <-s.done:
			return
		case <-time.After(delay):
			retries++
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
	}
}

// hangingGET issues a single long-lived GET for the SSE stream, returning
// nil once the stream ends gracefully.
func (s *streamableClientConn) hangingGET(ctx context.Context, sessionID, lastEventID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return &httpStatusError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("GET request returned unexpected status %d %s: %s", resp.StatusCode, resp.Status, strings.TrimSpace(string(body))),
		}
	}

	return s.consumeSSE(resp)
}

// consumeSSE reads events from resp's body, forwarding each payload to
// incoming and tracking the last event ID for resumption.
func (s *streamableClientConn) consumeSSE(resp *http.Response) error {
	defer resp.Body.Close()
	for evt, err := range scanEvents(resp.Body) {
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("error scanning SSE events: %w", err)
		}
		if evt.id != "" {
			s.mu.Lock()
			s.lastEventID = evt.id
			s.mu.Unlock()
		}
		select {
		case s.incoming <- evt.data:
		case <-s.done:
			return io.EOF
		}
	}
	return nil
}

// isRetryable reports whether err represents a transient failure worth
// retrying: a 408/425/429/5xx HTTP status, or a network timeout. Explicit
// context cancellation is never retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusRequestTimeout,
			http.StatusTooEarly,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return false
}

// Close implements the [Connection] interface, stopping both background
// goroutines and best-effort notifying the server (via DELETE) that the
// logical session is over.
func (s *streamableClientConn) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		if s.cancelHangingGet != nil {
			s.cancelHangingGet()
		}
		s.mu.Unlock()
		close(s.pendingMessages)

		sessionID := s.sessionID.Load().(string)
		if sessionID == "" {
			return
		}
		req, err := http.NewRequest(http.MethodDelete, s.url, nil)
		if err != nil {
			s.closeErr = fmt.Errorf("failed to create DELETE request: %w", err)
			return
		}
		req.Header.Set("Mcp-Session-Id", sessionID)
		if _, err := s.client.Do(req); err != nil {
			s.closeErr = fmt.Errorf("failed to send DELETE request to terminate session: %w", err)
		}
	})
	return s.closeErr
}

// httpStatusError associates a non-2xx HTTP response with the error
// produced while handling it, so callers can branch on StatusCode without
// reparsing the error text.
type httpStatusError struct {
	StatusCode int
	Err        error
}

func (e *httpStatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP status %d", e.StatusCode)
}

func (e *httpStatusError) Unwrap() error {
	return e.Err
}
