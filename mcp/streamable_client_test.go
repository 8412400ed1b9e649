// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-mcp/mcpengine/internal/jsonrpc2"
)

// streamableRequestKey identifies one request a [fakeStreamableServer]
// expects, so a canned response can be matched to it by HTTP method,
// session, JSON-RPC method, and (for a resumed GET) Last-Event-ID.
type streamableRequestKey struct {
	httpMethod    string
	sessionID     string
	jsonrpcMethod string
	lastEventID   string
}

type header map[string]string

type streamableResponse struct {
	header   header
	status   int // defaults to http.StatusOK
	body     string
	optional bool // if set, the request need not arrive
}

type fakeResponses map[streamableRequestKey]*streamableResponse

// fakeStreamableServer is a scripted double for the streamable HTTP
// transport: each test declares the exact requests it expects and the
// response to hand back for each.
type fakeStreamableServer struct {
	t         *testing.T
	responses fakeResponses

	mu     sync.Mutex
	called map[streamableRequestKey]bool
}

func (s *fakeStreamableServer) missingRequests() []streamableRequestKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unused []streamableRequestKey
	for k, resp := range s.responses {
		if !s.called[k] && !resp.optional {
			unused = append(unused, k)
		}
	}
	return unused
}

func (s *fakeStreamableServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	key := streamableRequestKey{
		httpMethod:  req.Method,
		sessionID:   req.Header.Get("Mcp-Session-Id"),
		lastEventID: req.Header.Get("Last-Event-ID"),
	}
	if req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			s.t.Errorf("reading request body: %v", err)
			http.Error(w, "failed to read body", http.StatusInternalServerError)
			return
		}
		if msg, err := jsonrpc2.DecodeMessage(body); err == nil {
			if r, ok := msg.(*jsonrpc2.Request); ok {
				key.jsonrpcMethod = r.Method
			}
		}
	}

	s.mu.Lock()
	if s.called == nil {
		s.called = make(map[streamableRequestKey]bool)
	}
	s.called[key] = true
	s.mu.Unlock()

	resp, ok := s.responses[key]
	if !ok {
		s.t.Errorf("fakeStreamableServer: unexpected request %+v", key)
		http.Error(w, "no response scripted", http.StatusInternalServerError)
		return
	}

	status := resp.status
	if status == 0 {
		status = http.StatusOK
	}
	for k, v := range resp.header {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	io.WriteString(w, resp.body)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

var initResult = &InitializeResult{
	Capabilities:    &ServerCapabilities{Tools: &ToolCapabilities{ListChanged: true}},
	ProtocolVersion: "2025-06-18",
	ServerInfo:      &Implementation{Name: "testServer", Version: "v1.0.0"},
}

func jsonRPCResponseBody(t *testing.T, id int64, result any) string {
	t.Helper()
	resp, err := jsonrpc2.NewResponse(jsonrpc2.Int64ID(id), result, nil)
	if err != nil {
		t.Fatalf("building response: %v", err)
	}
	data, err := jsonrpc2.EncodeMessage(resp)
	if err != nil {
		t.Fatalf("encoding response: %v", err)
	}
	return string(data)
}

func TestStreamableClientTransportLifecycle(t *testing.T) {
	ctx := context.Background()

	fake := &fakeStreamableServer{
		responses: fakeResponses{
			{"POST", "", methodInitialize, ""}: {
				header: header{"Content-Type": "application/json", "Mcp-Session-Id": "123"},
				body:   jsonRPCResponseBody(t, 1, initResult),
			},
			{"POST", "123", notificationInitialized, ""}: {status: http.StatusAccepted},
			{"GET", "123", "", ""}: {
				header: header{"Content-Type": "text/event-stream"},
			},
			{"DELETE", "123", "", ""}: {},
		},
		t: t,
	}

	httpServer := httptest.NewServer(fake)
	defer httpServer.Close()

	transport := NewStreamableClientTransport(httpServer.URL, nil)
	client := NewClient(testImpl, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		t.Fatalf("client.Connect() failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("closing session: %v", err)
	}
	if missing := fake.missingRequests(); len(missing) > 0 {
		t.Errorf("did not receive expected requests: %v", missing)
	}
	if diff := cmp.Diff(initResult, session.InitializeResult()); diff != "" {
		t.Errorf("InitializeResult() mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamableClientRedundantDelete(t *testing.T) {
	ctx := context.Background()

	fake := &fakeStreamableServer{
		t: t,
		responses: fakeResponses{
			{"POST", "", methodInitialize, ""}: {
				header: header{"Content-Type": "application/json", "Mcp-Session-Id": "123"},
				body:   jsonRPCResponseBody(t, 1, initResult),
			},
			{"POST", "123", notificationInitialized, ""}: {status: http.StatusAccepted},
			{"GET", "123", "", ""}:                       {status: http.StatusMethodNotAllowed},
			{"POST", "123", methodListTools, ""}:         {status: http.StatusNotFound},
		},
	}

	httpServer := httptest.NewServer(fake)
	defer httpServer.Close()

	transport := NewStreamableClientTransport(httpServer.URL, nil)
	client := NewClient(testImpl, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		t.Fatalf("client.Connect() failed: %v", err)
	}
	if _, err := session.ListTools(ctx, nil); err == nil {
		t.Error("ListTools() succeeded unexpectedly")
	}
	_ = session.Wait() // must not hang
	if missing := fake.missingRequests(); len(missing) > 0 {
		t.Errorf("did not receive expected requests: %v", missing)
	}
}

func TestStreamableClientUnresumableRequest(t *testing.T) {
	// A client whose very first POST response claims to be an event stream
	// but closes with no events and no reply must fail fast rather than hang
	// waiting for a message that will never come.
	ctx := context.Background()
	fake := &fakeStreamableServer{
		t: t,
		responses: fakeResponses{
			{"POST", "", methodInitialize, ""}: {
				header: header{"Content-Type": "text/event-stream", "Mcp-Session-Id": "123"},
			},
			{"DELETE", "123", "", ""}: {optional: true},
		},
	}
	httpServer := httptest.NewServer(fake)
	defer httpServer.Close()

	transport := NewStreamableClientTransport(httpServer.URL, nil)
	client := NewClient(testImpl, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err == nil {
		session.Close()
		t.Fatal("client.Connect() succeeded unexpectedly")
	}
	if !strings.Contains(err.Error(), "EOF") && !strings.Contains(err.Error(), "closed") {
		t.Logf("Connect() error (informational): %v", err)
	}
}

func TestStreamableClientMaxRetries(t *testing.T) {
	// A POST that always fails with a retryable status should give up after
	// MaxRetries and surface that failure to the caller, instead of retrying
	// forever.
	ctx := context.Background()
	fake := &fakeStreamableServer{
		t: t,
		responses: fakeResponses{
			{"POST", "", methodInitialize, ""}: {status: http.StatusServiceUnavailable},
		},
	}
	httpServer := httptest.NewServer(fake)
	defer httpServer.Close()

	transport := NewStreamableClientTransport(httpServer.URL, &StreamableClientTransportOptions{
		MaxRetries:     1,
		InitialBackoff: 0,
	})
	client := NewClient(testImpl, nil)
	if _, err := client.Connect(ctx, transport, nil); err == nil {
		t.Fatal("client.Connect() succeeded unexpectedly")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&httpStatusError{StatusCode: http.StatusServiceUnavailable}, true},
		{&httpStatusError{StatusCode: http.StatusTooManyRequests}, true},
		{&httpStatusError{StatusCode: http.StatusBadRequest}, false},
		{&httpStatusError{StatusCode: http.StatusNotFound}, false},
		{context.Canceled, false},
		{nil, false},
	}
	for _, test := range tests {
		if got := isRetryable(test.err); got != test.want {
			t.Errorf("isRetryable(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}

func TestFormatParseEventID(t *testing.T) {
	tests := []struct {
		sid streamID
		idx int
	}{
		{0, 0},
		{1, 42},
		{999, 0},
	}
	for _, test := range tests {
		formatted := formatEventID(test.sid, test.idx)
		gotSid, gotIdx, ok := parseEventID(formatted)
		if !ok || gotSid != test.sid || gotIdx != test.idx {
			t.Errorf("parseEventID(formatEventID(%d, %d)) = (%d, %d, %v), want (%d, %d, true)",
				test.sid, test.idx, gotSid, gotIdx, ok, test.sid, test.idx)
		}
	}

	for _, bad := range []string{"", "abc", "1", "1_", "_1", "-1_0", "1_-1"} {
		if _, _, ok := parseEventID(bad); ok {
			t.Errorf("parseEventID(%q) succeeded unexpectedly", bad)
		}
	}
}
