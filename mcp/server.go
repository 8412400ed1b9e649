// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the server half of the protocol engine: the Server
// and ServerSession types, feature registries, pagination, and the built-in
// method dispatch table.

package mcp

import (
	"context"
	"encoding/base64"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yosida95/uritemplate/v3"

	internaljson "github.com/go-mcp/mcpengine/internal/json"
	"github.com/go-mcp/mcpengine/internal/jsonrpc2"
	"github.com/go-mcp/mcpengine/jsonrpc"
)

// protocolVersion is the version of the Model Context Protocol spoken by
// this implementation.
const protocolVersion = "2025-06-18"

// ErrConnectionClosed is returned by session methods, and reported through
// errors.Is, once the underlying connection has been closed.
var ErrConnectionClosed = errors.New("connection closed")

// ResourceHandler handles a resources/read request for a single resource or
// resource template.
type ResourceHandler func(context.Context, *ReadResourceRequest) (*ReadResourceResult, error)

// PromptHandler handles a prompts/get request for a single prompt.
type PromptHandler func(context.Context, *GetPromptRequest) (*GetPromptResult, error)

// featureSet is a concurrency-safe registry of server-defined features
// (tools, prompts, resources, resource templates), keyed by a string
// derived from each item via keyFunc. Iteration is always in sorted key
// order, which gives deterministic, resumable pagination.
type featureSet[T any] struct {
	keyFunc func(T) string

	mu sync.Mutex
	m  map[string]T
}

func newFeatureSet[T any](keyFunc func(T) string) *featureSet[T] {
	return &featureSet[T]{keyFunc: keyFunc, m: make(map[string]T)}
}

// add inserts or replaces items, keyed by keyFunc. Later items win over
// earlier ones with the same key, whether in this call or an earlier one.
func (s *featureSet[T]) add(items ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.m[s.keyFunc(item)] = item
	}
}

func (s *featureSet[T]) get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.m[key]
	return item, ok
}

func (s *featureSet[T]) remove(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.m, key)
	}
}

func (s *featureSet[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// snapshotSorted returns the current keys in sorted order.
func (s *featureSet[T]) snapshotSorted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// all iterates over every item, in sorted key order.
func (s *featureSet[T]) all() iter.Seq[T] {
	keys := s.snapshotSorted()
	return func(yield func(T) bool) {
		for _, k := range keys {
			item, ok := s.get(k)
			if !ok {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

// above iterates over every item whose key sorts strictly after key, in
// sorted key order. It is used to resume pagination from a cursor.
func (s *featureSet[T]) above(key string) iter.Seq[T] {
	keys := s.snapshotSorted()
	start := sort.SearchStrings(keys, key)
	if start < len(keys) && keys[start] == key {
		start++
	}
	return func(yield func(T) bool) {
		for _, k := range keys[start:] {
			item, ok := s.get(k)
			if !ok {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

// encodeCursor encodes key as an opaque pagination cursor.
func encodeCursor(key string) (string, error) {
	var buf strings.Builder
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(key); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString([]byte(buf.String())), nil
}

// decodeCursor recovers the key encoded by encodeCursor.
func decodeCursor(cursor string) (string, error) {
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("decoding cursor: %w", err)
	}
	var key string
	dec := gob.NewDecoder(strings.NewReader(string(data)))
	if err := dec.Decode(&key); err != nil {
		return "", fmt.Errorf("decoding cursor: %w", err)
	}
	return key, nil
}

// paginateList computes one page of a list operation over fs, starting
// after the cursor encoded in params, writing at most pageSize items (or a
// server-default page size if pageSize <= 0) into a freshly-populated out
// via setItems, and setting out's next cursor when more items remain.
func paginateList[T any, P listParams, R listResult](fs *featureSet[T], pageSize int, params P, out R, setItems func(R, []T)) (R, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}

	var seq iter.Seq[T]
	if cursor := *params.cursorPtr(); cursor != "" {
		key, err := decodeCursor(cursor)
		if err != nil {
			var zero R
			return zero, fmt.Errorf("invalid cursor: %w", err)
		}
		seq = fs.above(key)
	} else {
		seq = fs.all()
	}

	var page []T
	for item := range seq {
		if len(page) == pageSize {
			break
		}
		page = append(page, item)
	}
	setItems(out, page)

	// Determine whether more items remain after the page we just took, by
	// re-walking from the last item's key.
	if len(page) == pageSize {
		lastKey := fs.keyFunc(page[len(page)-1])
		hasMore := false
		for range fs.above(lastKey) {
			hasMore = true
			break
		}
		if hasMore {
			cursor, err := encodeCursor(lastKey)
			if err != nil {
				var zero R
				return zero, err
			}
			*out.nextCursorPtr() = cursor
		}
	}
	return out, nil
}

// serverResource binds a Resource to a handler; handler is nil for
// resources registered without one (as in capability-only tests).
type serverResource struct {
	resource *Resource
	handler  ResourceHandler
}

type serverResourceTemplate struct {
	template *ResourceTemplate
	handler  ResourceHandler
}

type serverPrompt struct {
	prompt  *Prompt
	handler PromptHandler
}

// validateURITemplate panics if tmpl is not a well-formed RFC 6570 URI
// template.
func validateURITemplate(tmpl string) {
	if _, err := uritemplate.New(tmpl); err != nil {
		panic(fmt.Sprintf("invalid URI template %q: %v", tmpl, err))
	}
}

// ServerOptions configures the behavior of a [Server].
type ServerOptions struct {
	// Instructions are optional instructions for using the server, returned
	// to clients in InitializeResult.
	Instructions string

	// PageSize is the maximum number of items returned in one page by the
	// tools/list, prompts/list, resources/list, resources/templates/list,
	// and tasks/list methods. The default is 1000.
	PageSize int

	// KeepAlive, if positive, causes the session to periodically ping its
	// peer, closing the connection if a ping is not answered.
	KeepAlive time.Duration

	// SubscribeHandler is called when a client subscribes to a resource. If
	// nil, resources/subscribe is not supported.
	SubscribeHandler func(context.Context, *SubscribeRequest) error
	// UnsubscribeHandler is called when a client unsubscribes from a
	// resource. If nil, resources/unsubscribe is not supported.
	UnsubscribeHandler func(context.Context, *UnsubscribeRequest) error
	// CompletionHandler serves completion/complete requests. If nil, the
	// completions capability is not advertised.
	CompletionHandler func(context.Context, *CompleteRequest) (*CompleteResult, error)

	// HasPrompts, HasResources, and HasTools force the corresponding
	// capability to be advertised even before any feature of that kind has
	// been registered, for servers that add features after connecting.
	HasPrompts   bool
	HasResources bool
	HasTools     bool

	// Tasks, if non-nil, advertises support for the task protocol for
	// long-running requests.
	Tasks *TaskCapabilities

	// SessionStateStore holds a store for [ServerSessionState]. The server
	// and its transports do not read or write it, so setting it does not
	// make sessions survive a process restart.
	SessionStateStore ServerSessionStateStore

	// SchemaCache, if non-nil, memoizes the work of resolving tool input and
	// output schemas, shared across every tool registered on the server. See
	// [NewSchemaCache].
	SchemaCache *schemaCache
}

// Server is an MCP server: a registry of tools, prompts, and resources that
// can be connected to peers over any [Transport].
//
// A single Server may be connected to many peers concurrently, each
// producing an independent [ServerSession].
type Server struct {
	impl *Implementation
	opts ServerOptions

	mu                sync.Mutex
	tools             *featureSet[*serverTool]
	prompts           *featureSet[*serverPrompt]
	resources         *featureSet[*serverResource]
	resourceTemplates *featureSet[*serverResourceTemplate]
	sessions          []*ServerSession

	tasks *serverTasks

	sendingMiddleware   []Middleware[*ServerSession]
	receivingMiddleware []Middleware[*ServerSession]

	receivingInfos map[string]methodInfo
	sendingInfos   map[string]methodInfo
}

// NewServer creates a new [Server], with the given implementation metadata
// and options. opts may be nil to accept all defaults.
func NewServer(impl *Implementation, opts *ServerOptions) *Server {
	if impl == nil {
		impl = &Implementation{}
	}
	s := &Server{
		impl:              impl,
		tools:             newFeatureSet(func(t *serverTool) string { return t.tool.Name }),
		prompts:           newFeatureSet(func(p *serverPrompt) string { return p.prompt.Name }),
		resources:         newFeatureSet(func(r *serverResource) string { return r.resource.URI }),
		resourceTemplates: newFeatureSet(func(t *serverResourceTemplate) string { return t.template.URITemplate }),
		tasks:             newServerTasks(),
	}
	if opts != nil {
		s.opts = *opts
	}
	s.receivingInfos = serverReceivingMethodInfos()
	s.sendingInfos = clientSendingAsServerMethodInfos()
	return s
}

// AddSendingMiddleware wraps the server's outgoing (session -> peer) calls
// and notifications with mw, applied in the order given: the first
// middleware is outermost.
func (s *Server) AddSendingMiddleware(mw ...Middleware[*ServerSession]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendingMiddleware = append(s.sendingMiddleware, mw...)
}

// AddReceivingMiddleware wraps dispatch of incoming calls and notifications
// with mw, applied in the order given: the first middleware is outermost.
func (s *Server) AddReceivingMiddleware(mw ...Middleware[*ServerSession]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivingMiddleware = append(s.receivingMiddleware, mw...)
}

// AddTool registers a tool with a raw [ToolHandler]; use the free function
// [AddTool] for typed arguments and results.
func (s *Server) AddTool(t *Tool, h ToolHandler) {
	st, err := newServerTool(t, h, s.opts.SchemaCache)
	if err != nil {
		panic(fmt.Sprintf("AddTool(%q): %v", t.Name, err))
	}
	s.mu.Lock()
	s.tools.add(st)
	s.mu.Unlock()
	s.notifyToolListChanged()
}

// toolForErr builds a serverTool from t and h, inferring input/output
// schemas from the handler's type parameters where t doesn't already
// specify them, and returns the resulting tool and a handler that unpacks
// and validates arguments before calling h.
func toolForErr[In, Out any](t *Tool, h TypedToolHandler[In, Out], cache *schemaCache) (*Tool, rawToolHandler, error) {
	st, err := newTypedServerTool(t, h, cache)
	if err != nil {
		return nil, nil, err
	}
	return st.tool, st.handler, nil
}

// AddTool registers a tool on s with a typed handler: arguments are
// unmarshaled and validated against a schema inferred from In (unless t
// already sets InputSchema), and the returned Out value is both validated
// against a schema inferred from Out (unless t already sets OutputSchema)
// and attached to the result as StructuredContent.
//
// AddTool panics if In or Out cannot be represented as a JSON object
// schema, or if t otherwise can't be registered.
func AddTool[In, Out any](s *Server, t *Tool, h TypedToolHandler[In, Out]) {
	tool, handler, err := toolForErr(t, h, s.opts.SchemaCache)
	if err != nil {
		panic(fmt.Sprintf("AddTool(%q): %v", t.Name, err))
	}
	st := &serverTool{tool: tool, handler: handler}
	s.mu.Lock()
	s.tools.add(st)
	s.mu.Unlock()
	s.notifyToolListChanged()
}

// AddPrompt registers a prompt and its handler. h may be nil for a prompt
// that is only ever advertised, never fetched (used by tests that only
// check capability advertisement).
func (s *Server) AddPrompt(p *Prompt, h PromptHandler) {
	s.mu.Lock()
	s.prompts.add(&serverPrompt{prompt: p, handler: h})
	s.mu.Unlock()
	s.notifyPromptListChanged()
}

// AddResource registers a resource and its handler.
func (s *Server) AddResource(r *Resource, h ResourceHandler) {
	s.mu.Lock()
	s.resources.add(&serverResource{resource: r, handler: h})
	s.mu.Unlock()
	s.notifyResourceListChanged()
}

// AddResourceTemplate registers a resource template and its handler. It
// panics if the template's URITemplate is not well-formed.
func (s *Server) AddResourceTemplate(t *ResourceTemplate, h ResourceHandler) {
	validateURITemplate(t.URITemplate)
	s.mu.Lock()
	s.resourceTemplates.add(&serverResourceTemplate{template: t, handler: h})
	s.mu.Unlock()
	s.notifyResourceListChanged()
}

func (s *Server) notifyToolListChanged() {
	s.notify(notificationToolListChanged, &ToolListChangedParams{})
}

func (s *Server) notifyPromptListChanged() {
	s.notify(notificationPromptListChanged, &PromptListChangedParams{})
}

func (s *Server) notifyResourceListChanged() {
	s.notify(notificationResourceListChanged, &ResourceListChangedParams{})
}

func (s *Server) notify(method string, params Params) {
	s.mu.Lock()
	sessions := append([]*ServerSession(nil), s.sessions...)
	s.mu.Unlock()
	notifySessions(sessions, method, params)
}

// capabilities reports the capabilities s currently advertises, based on
// its registered features and options.
func (s *Server) capabilities() *ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()

	caps := &ServerCapabilities{
		Logging: &LoggingCapabilities{},
	}
	if s.opts.CompletionHandler != nil {
		caps.Completions = &CompletionCapabilities{}
	}
	if s.prompts.len() > 0 || s.opts.HasPrompts {
		caps.Prompts = &PromptCapabilities{ListChanged: true}
	}
	if s.resources.len() > 0 || s.resourceTemplates.len() > 0 || s.opts.HasResources {
		caps.Resources = &ResourceCapabilities{ListChanged: true}
		if s.opts.SubscribeHandler != nil && s.opts.UnsubscribeHandler != nil {
			caps.Resources.Subscribe = true
		}
	}
	if s.tools.len() > 0 || s.opts.HasTools {
		caps.Tools = &ToolCapabilities{ListChanged: true}
	}
	if s.opts.Tasks != nil {
		caps.Tasks = s.opts.Tasks
	}
	return caps
}

// Connect connects s to a peer over t, returning the resulting
// [ServerSession]. opts configures the session; pass nil to accept
// defaults.
func (s *Server) Connect(ctx context.Context, t Transport, opts *ServerSessionOptions) (*ServerSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, err
	}
	ss := &ServerSession{
		server: s,
		conn:   newClientServerConn(conn),
	}
	if opts != nil {
		ss.opts = *opts
	}
	ss.conn.dispatch = func(ctx context.Context, req *jsonrpc2.Request) (Result, error) {
		return handleReceive(ctx, ss, req)
	}
	ss.conn.taskRouter = s.tasks.routeTaskMessage

	s.mu.Lock()
	s.sessions = append(s.sessions, ss)
	s.mu.Unlock()

	go func() {
		_ = ss.conn.run(ctx)
		s.mu.Lock()
		for i, sess := range s.sessions {
			if sess == ss {
				s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		if ss.keepaliveCancel != nil {
			ss.keepaliveCancel()
		}
	}()

	return ss, nil
}

// ServerSessionOptions configures a single [ServerSession].
type ServerSessionOptions struct{}

// ServerSessionState is the durable state of a [ServerSession], in the form
// a [ServerSessionStateStore] saves and loads. A [ServerSession] does not
// save or restore it itself.
type ServerSessionState struct {
	// InitializeParams records the parameters of the session's initialize
	// request.
	InitializeParams *InitializeParams `json:"initializeParams"`
	// LogLevel is the minimum logging level the peer has requested.
	LogLevel LoggingLevel `json:"logLevel"`
}

// A ServerSession is a connection between an MCP server and a single
// client peer. It implements [Session].
type ServerSession struct {
	server *Server
	opts   ServerSessionOptions
	conn   *clientServerConn

	mu               sync.Mutex
	initializeParams *InitializeParams
	initialized      bool
	logLevel         LoggingLevel

	keepaliveCancel context.CancelFunc
}

func (ss *ServerSession) sendingMethodInfos() map[string]methodInfo   { return ss.server.sendingInfos }
func (ss *ServerSession) receivingMethodInfos() map[string]methodInfo { return ss.server.receivingInfos }
func (ss *ServerSession) getConn() *clientServerConn                  { return ss.conn }

func (ss *ServerSession) sendingMethodHandler() methodHandler {
	h := MethodHandler[*ServerSession](defaultSendingMethodHandler[*ServerSession])
	addMiddleware(&h, ss.server.sendingMiddleware)
	return h
}

func (ss *ServerSession) receivingMethodHandler() methodHandler {
	h := MethodHandler[*ServerSession](defaultReceivingMethodHandler[*ServerSession])
	addMiddleware(&h, ss.server.receivingMiddleware)
	return h
}

// ID returns the session's transport-assigned ID, or "" if the transport
// does not assign one (e.g. stdio or in-memory).
func (ss *ServerSession) ID() string {
	if sider, ok := ss.conn.conn.(sessionIDer); ok {
		return sider.SessionID()
	}
	return ""
}

func (ss *ServerSession) initialize(ctx context.Context, params *InitializeParams) (*InitializeResult, error) {
	ss.mu.Lock()
	ss.initializeParams = params
	ss.mu.Unlock()

	return &InitializeResult{
		Capabilities:    ss.server.capabilities(),
		Instructions:    ss.server.opts.Instructions,
		ProtocolVersion: protocolVersion,
		ServerInfo:      ss.server.impl,
	}, nil
}

func (ss *ServerSession) initialized(ctx context.Context, params *InitializedParams) (*emptyResult, error) {
	ss.mu.Lock()
	if ss.initialized {
		ss.mu.Unlock()
		return nil, errors.New("duplicate initialized received")
	}
	ss.initialized = true
	keepAlive := ss.server.opts.KeepAlive
	ss.mu.Unlock()

	if keepAlive > 0 {
		ss.startKeepalive(keepAlive)
	}
	return &emptyResult{}, nil
}

func (ss *ServerSession) startKeepalive(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	ss.mu.Lock()
	ss.keepaliveCancel = cancel
	ss.mu.Unlock()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ss.Ping(ctx, nil); err != nil {
					ss.Close()
					return
				}
			}
		}
	}()
}

func (ss *ServerSession) ping(ctx context.Context, params *PingParams) (*emptyResult, error) {
	return &emptyResult{}, nil
}

// Ping pings the client.
func (ss *ServerSession) Ping(ctx context.Context, params *PingParams) error {
	if params == nil {
		params = &PingParams{}
	}
	_, err := handleSend[*emptyResult](ctx, ss, methodPing, params)
	return err
}

func (ss *ServerSession) listTools(ctx context.Context, params *ListToolsParams) (*ListToolsResult, error) {
	if params == nil {
		params = &ListToolsParams{}
	}
	return paginateList(ss.server.tools, ss.server.opts.PageSize, params, &ListToolsResult{}, func(r *ListToolsResult, items []*serverTool) {
		tools := make([]*Tool, len(items))
		for i, it := range items {
			tools[i] = it.tool
		}
		r.Tools = tools
	})
}

func (ss *ServerSession) listPrompts(ctx context.Context, params *ListPromptsParams) (*ListPromptsResult, error) {
	if params == nil {
		params = &ListPromptsParams{}
	}
	return paginateList(ss.server.prompts, ss.server.opts.PageSize, params, &ListPromptsResult{}, func(r *ListPromptsResult, items []*serverPrompt) {
		prompts := make([]*Prompt, len(items))
		for i, it := range items {
			prompts[i] = it.prompt
		}
		r.Prompts = prompts
	})
}

func (ss *ServerSession) getPrompt(ctx context.Context, params *GetPromptParams) (*GetPromptResult, error) {
	ss.server.mu.Lock()
	p, ok := ss.server.prompts.get(params.Name)
	ss.server.mu.Unlock()
	if !ok {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: fmt.Sprintf("unknown prompt %q", params.Name)}
	}
	if p.handler == nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: fmt.Sprintf("prompt %q has no handler", params.Name)}
	}
	return p.handler(ctx, &GetPromptRequest{Session: ss, Params: params})
}

func (ss *ServerSession) listResources(ctx context.Context, params *ListResourcesParams) (*ListResourcesResult, error) {
	if params == nil {
		params = &ListResourcesParams{}
	}
	return paginateList(ss.server.resources, ss.server.opts.PageSize, params, &ListResourcesResult{}, func(r *ListResourcesResult, items []*serverResource) {
		resources := make([]*Resource, len(items))
		for i, it := range items {
			resources[i] = it.resource
		}
		r.Resources = resources
	})
}

func (ss *ServerSession) listResourceTemplates(ctx context.Context, params *ListResourceTemplatesParams) (*ListResourceTemplatesResult, error) {
	if params == nil {
		params = &ListResourceTemplatesParams{}
	}
	return paginateList(ss.server.resourceTemplates, ss.server.opts.PageSize, params, &ListResourceTemplatesResult{}, func(r *ListResourceTemplatesResult, items []*serverResourceTemplate) {
		templates := make([]*ResourceTemplate, len(items))
		for i, it := range items {
			templates[i] = it.template
		}
		r.ResourceTemplates = templates
	})
}

func (ss *ServerSession) readResource(ctx context.Context, params *ReadResourceParams) (*ReadResourceResult, error) {
	ss.server.mu.Lock()
	r, ok := ss.server.resources.get(params.URI)
	ss.server.mu.Unlock()
	if ok {
		if r.handler == nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: fmt.Sprintf("resource %q has no handler", params.URI)}
		}
		return r.handler(ctx, &ReadResourceRequest{Session: ss, Params: params})
	}

	// Fall back to resource templates, tried in sorted URI-template order:
	// the first template whose handler returns no error wins.
	for t := range ss.server.resourceTemplates.all() {
		if t.handler == nil {
			continue
		}
		res, err := t.handler(ctx, &ReadResourceRequest{Session: ss, Params: params})
		if err == nil {
			return res, nil
		}
	}
	return nil, &jsonrpc.Error{Code: CodeResourceNotFound, Message: fmt.Sprintf("resource %q not found", params.URI)}
}

func (ss *ServerSession) subscribe(ctx context.Context, params *SubscribeParams) (*emptyResult, error) {
	if ss.server.opts.SubscribeHandler == nil {
		return nil, jsonrpc2.ErrMethodNotFound
	}
	if err := ss.server.opts.SubscribeHandler(ctx, &SubscribeRequest{Session: ss, Params: params}); err != nil {
		return nil, err
	}
	return &emptyResult{}, nil
}

func (ss *ServerSession) unsubscribe(ctx context.Context, params *UnsubscribeParams) (*emptyResult, error) {
	if ss.server.opts.UnsubscribeHandler == nil {
		return nil, jsonrpc2.ErrMethodNotFound
	}
	if err := ss.server.opts.UnsubscribeHandler(ctx, &UnsubscribeRequest{Session: ss, Params: params}); err != nil {
		return nil, err
	}
	return &emptyResult{}, nil
}

func (ss *ServerSession) complete(ctx context.Context, params *CompleteParams) (*CompleteResult, error) {
	if ss.server.opts.CompletionHandler == nil {
		return nil, jsonrpc2.ErrMethodNotFound
	}
	return ss.server.opts.CompletionHandler(ctx, &CompleteRequest{Session: ss, Params: params})
}

func (ss *ServerSession) setLevel(ctx context.Context, params *SetLoggingLevelParams) (*emptyResult, error) {
	ss.mu.Lock()
	ss.logLevel = params.Level
	ss.mu.Unlock()
	return &emptyResult{}, nil
}

// NotifyProgress sends a progress notification to the client.
func (ss *ServerSession) NotifyProgress(ctx context.Context, params *ProgressNotificationParams) error {
	return handleNotify(ctx, notificationProgress, newServerRequest(ss, params))
}

// Log sends a log message notification to the client.
func (ss *ServerSession) Log(ctx context.Context, params *LoggingMessageParams) error {
	return handleNotify(ctx, notificationLoggingMessage, newServerRequest(ss, params))
}

// ListRoots requests the list of roots exposed by the client.
func (ss *ServerSession) ListRoots(ctx context.Context, params *ListRootsParams) (*ListRootsResult, error) {
	if params == nil {
		params = &ListRootsParams{}
	}
	return handleSend[*ListRootsResult](ctx, ss, methodListRoots, params)
}

// CreateMessage asks the client to sample from an LLM.
func (ss *ServerSession) CreateMessage(ctx context.Context, params *CreateMessageParams) (*CreateMessageResult, error) {
	return handleSend[*CreateMessageResult](ctx, ss, methodCreateMessage, params)
}

// Elicit asks the client to collect additional information from the user.
func (ss *ServerSession) Elicit(ctx context.Context, params *ElicitParams) (*ElicitResult, error) {
	return handleSend[*ElicitResult](ctx, ss, methodElicit, params)
}

// Close terminates the session's connection.
func (ss *ServerSession) Close() error {
	if ss.keepaliveCancel != nil {
		ss.keepaliveCancel()
	}
	return ss.conn.close()
}

// Wait blocks until the session's connection is closed, returning the
// error that caused the closure, unless the connection closed cleanly (in
// which case it returns nil).
func (ss *ServerSession) Wait() error {
	ss.conn.wait()
	err := ss.conn.err()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// callTool dispatches tools/call, delegating to the task-aware
// implementation in tasks_server.go.
func (ss *ServerSession) callTool(ctx context.Context, params *CallToolParamsRaw) (Result, error) {
	return ss.server.callToolAny(ctx, &CallToolRequest{Session: ss, Params: params})
}

// serverRequestMethod adapts a method that takes a bundled
// *ServerRequest[P] (rather than a separate session and params) into a
// typedMethodHandler.
func serverRequestMethod[P Params, R Result](f func(*Server, context.Context, *ServerRequest[P]) (R, error)) typedMethodHandler[*ServerSession, P, R] {
	return func(ctx context.Context, ss *ServerSession, p P) (R, error) {
		return f(ss.server, ctx, newServerRequest(ss, p))
	}
}

// callToolMethodInfo hand-builds the methodInfo for tools/call, since its
// result type varies dynamically between *CallToolResult and
// *CreateTaskResult depending on whether task-augmented execution was
// requested; this cannot be expressed by the single-result-type
// newMethodInfo generator.
func callToolMethodInfo() methodInfo {
	return methodInfo{
		unmarshalParams: func(m json.RawMessage) (Params, error) {
			p := &CallToolParamsRaw{}
			if m != nil {
				if err := internaljson.Unmarshal(m, p); err != nil {
					return nil, fmt.Errorf("unmarshaling %q into a %T: %w", m, p, err)
				}
			}
			return p, nil
		},
		handleMethod: MethodHandler[*ServerSession](func(ctx context.Context, ss *ServerSession, _ string, params Params) (Result, error) {
			return ss.callTool(ctx, params.(*CallToolParamsRaw))
		}),
		newResult: func() Result { return &CallToolResult{} },
	}
}

// serverReceivingMethodInfos returns the dispatch table used by every
// ServerSession to handle incoming calls and notifications.
func serverReceivingMethodInfos() map[string]methodInfo {
	m := map[string]methodInfo{
		methodInitialize:            newMethodInfo(sessionMethod((*ServerSession).initialize)),
		notificationInitialized:     newMethodInfo(sessionMethod((*ServerSession).initialized)),
		methodPing:                  newMethodInfo(sessionMethod((*ServerSession).ping)),
		methodListTools:             newMethodInfo(sessionMethod((*ServerSession).listTools)),
		methodCallTool:              callToolMethodInfo(),
		methodListPrompts:           newMethodInfo(sessionMethod((*ServerSession).listPrompts)),
		methodGetPrompt:             newMethodInfo(sessionMethod((*ServerSession).getPrompt)),
		methodListResources:        newMethodInfo(sessionMethod((*ServerSession).listResources)),
		methodListResourceTemplates: newMethodInfo(sessionMethod((*ServerSession).listResourceTemplates)),
		methodReadResource:          newMethodInfo(sessionMethod((*ServerSession).readResource)),
		methodSubscribe:             newMethodInfo(sessionMethod((*ServerSession).subscribe)),
		methodUnsubscribe:           newMethodInfo(sessionMethod((*ServerSession).unsubscribe)),
		methodComplete:              newMethodInfo(sessionMethod((*ServerSession).complete)),
		methodSetLevel:              newMethodInfo(sessionMethod((*ServerSession).setLevel)),
		methodGetTask:               newMethodInfo(serverRequestMethod((*Server).getTask)),
		methodListTasks:             newMethodInfo(serverRequestMethod((*Server).listTasks)),
		methodCancelTask:            newMethodInfo(serverRequestMethod((*Server).cancelTask)),
		methodTaskResult:            newMethodInfo(serverRequestMethod((*Server).taskResult)),
	}
	return m
}

// clientSendingAsServerMethodInfos returns the dispatch table a
// ServerSession uses to interpret the *results* of methods it sends to the
// client (roots/list, sampling/createMessage, elicitation/create, ping), and
// to admit the notifications it sends.
func clientSendingAsServerMethodInfos() map[string]methodInfo {
	return map[string]methodInfo{
		methodPing:         {newResult: func() Result { return &emptyResult{} }},
		methodListRoots:    {newResult: func() Result { return &ListRootsResult{} }},
		methodCreateMessage: {newResult: func() Result { return &CreateMessageResult{} }},
		methodElicit:       {newResult: func() Result { return &ElicitResult{} }},
		notificationProgress:            {},
		notificationLoggingMessage:      {},
		notificationToolListChanged:     {},
		notificationPromptListChanged:   {},
		notificationResourceListChanged: {},
		notificationTaskStatus:          {},
	}
}
