// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the client half of the protocol engine: the Client
// and ClientSession types, the roots registry, and the built-in method
// dispatch table for messages received from a server.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/go-mcp/mcpengine/internal/jsonrpc2"
)

// ClientOptions configures the behavior of a [Client].
type ClientOptions struct {
	// CreateMessageHandler serves sampling/createMessage requests from a
	// server. If nil, the client does not advertise or support sampling.
	CreateMessageHandler func(context.Context, *CreateMessageRequest) (*CreateMessageResult, error)
	// ElicitationHandler serves elicitation/create requests from a server.
	// If nil, the client does not advertise or support elicitation.
	ElicitationHandler func(context.Context, *ElicitRequest) (*ElicitResult, error)
	// ElicitationCompleteHandler is called when a server reports that an
	// out-of-band (URL-mode) elicitation has completed.
	ElicitationCompleteHandler func(context.Context, *ClientSession, *ElicitationCompleteParams)

	// ToolListChangedHandler, PromptListChangedHandler, and
	// ResourceListChangedHandler are called when the server notifies the
	// client that its corresponding feature list has changed.
	ToolListChangedHandler     func(context.Context, *ClientSession, *ToolListChangedParams)
	PromptListChangedHandler   func(context.Context, *ClientSession, *PromptListChangedParams)
	ResourceListChangedHandler func(context.Context, *ClientSession, *ResourceListChangedParams)
	// ResourceUpdatedHandler is called when the server notifies the client
	// that a subscribed resource has changed.
	ResourceUpdatedHandler func(context.Context, *ClientSession, *ResourceUpdatedNotificationParams)
	// LoggingMessageHandler receives log messages sent by the server.
	LoggingMessageHandler func(context.Context, *ClientSession, *LoggingMessageParams)
	// ProgressNotificationHandler receives progress notifications sent by
	// the server in response to an in-flight request.
	ProgressNotificationHandler func(context.Context, *ClientSession, *ProgressNotificationParams)
	// TaskStatusHandler receives task status notifications sent by the
	// server for a long-running, task-augmented request.
	TaskStatusHandler func(context.Context, *ClientSession, *TaskStatusNotificationParams)

	// HasRoots forces the roots capability to be advertised even before any
	// root has been registered, for clients that add roots after connecting.
	HasRoots bool
}

// A Client is an MCP client: a peer capable of calling a server's tools,
// prompts, and resources, and of serving sampling and elicitation requests
// initiated by the server.
//
// A single Client may be connected to many servers concurrently, each
// producing an independent [ClientSession].
type Client struct {
	impl *Implementation
	opts ClientOptions

	mu       sync.Mutex
	roots    *featureSet[*Root]
	sessions []*ClientSession

	sendingMiddleware   []Middleware[*ClientSession]
	receivingMiddleware []Middleware[*ClientSession]

	receivingInfos map[string]methodInfo
	sendingInfos   map[string]methodInfo
}

// NewClient creates a new [Client], with the given implementation metadata
// and options. opts may be nil to accept all defaults.
func NewClient(impl *Implementation, opts *ClientOptions) *Client {
	if impl == nil {
		impl = &Implementation{}
	}
	c := &Client{
		impl:  impl,
		roots: newFeatureSet(func(r *Root) string { return r.URI }),
	}
	if opts != nil {
		c.opts = *opts
	}
	c.receivingInfos = clientReceivingMethodInfos()
	c.sendingInfos = clientSendingMethodInfos()
	return c
}

// AddSendingMiddleware wraps the client's outgoing (session -> peer) calls
// and notifications with mw, applied in the order given: the first
// middleware is outermost.
func (c *Client) AddSendingMiddleware(mw ...Middleware[*ClientSession]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendingMiddleware = append(c.sendingMiddleware, mw...)
}

// AddReceivingMiddleware wraps dispatch of incoming calls and notifications
// with mw, applied in the order given: the first middleware is outermost.
func (c *Client) AddReceivingMiddleware(mw ...Middleware[*ClientSession]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receivingMiddleware = append(c.receivingMiddleware, mw...)
}

// AddRoots adds the given roots to the client, replacing any with the same
// URIs, and notifies connected servers that the roots list has changed.
func (c *Client) AddRoots(roots ...*Root) {
	c.mu.Lock()
	c.roots.add(roots...)
	sessions := append([]*ClientSession(nil), c.sessions...)
	c.mu.Unlock()
	notifyRootsListChanged(sessions)
}

// RemoveRoots removes the roots with the given URIs, and notifies connected
// servers that the roots list has changed. It is not an error to remove a
// nonexistent root.
func (c *Client) RemoveRoots(uris ...string) {
	c.mu.Lock()
	c.roots.remove(uris...)
	sessions := append([]*ClientSession(nil), c.sessions...)
	c.mu.Unlock()
	notifyRootsListChanged(sessions)
}

func notifyRootsListChanged(sessions []*ClientSession) {
	for _, cs := range sessions {
		_ = handleNotifyClient(context.Background(), newClientRequest(cs, &RootsListChangedParams{}), notificationRootsListChanged)
	}
}

func (c *Client) listRoots(_ context.Context, _ *ClientSession, _ *ListRootsParams) (*ListRootsResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var roots []*Root
	for r := range c.roots.all() {
		roots = append(roots, r)
	}
	return &ListRootsResult{Roots: roots}, nil
}

func (c *Client) createMessage(ctx context.Context, cs *ClientSession, params *CreateMessageParams) (*CreateMessageResult, error) {
	if c.opts.CreateMessageHandler == nil {
		return nil, errors.New("client does not support sampling")
	}
	return c.opts.CreateMessageHandler(ctx, newClientRequest(cs, params))
}

func (c *Client) elicit(ctx context.Context, cs *ClientSession, params *ElicitParams) (*ElicitResult, error) {
	if c.opts.ElicitationHandler == nil {
		return nil, errors.New("client does not support elicitation")
	}
	return c.opts.ElicitationHandler(ctx, newClientRequest(cs, params))
}

func (c *Client) onToolListChanged(ctx context.Context, cs *ClientSession, p *ToolListChangedParams) (*emptyResult, error) {
	if c.opts.ToolListChangedHandler != nil {
		c.opts.ToolListChangedHandler(ctx, cs, p)
	}
	return &emptyResult{}, nil
}

func (c *Client) onPromptListChanged(ctx context.Context, cs *ClientSession, p *PromptListChangedParams) (*emptyResult, error) {
	if c.opts.PromptListChangedHandler != nil {
		c.opts.PromptListChangedHandler(ctx, cs, p)
	}
	return &emptyResult{}, nil
}

func (c *Client) onResourceListChanged(ctx context.Context, cs *ClientSession, p *ResourceListChangedParams) (*emptyResult, error) {
	if c.opts.ResourceListChangedHandler != nil {
		c.opts.ResourceListChangedHandler(ctx, cs, p)
	}
	return &emptyResult{}, nil
}

func (c *Client) onResourceUpdated(ctx context.Context, cs *ClientSession, p *ResourceUpdatedNotificationParams) (*emptyResult, error) {
	if c.opts.ResourceUpdatedHandler != nil {
		c.opts.ResourceUpdatedHandler(ctx, cs, p)
	}
	return &emptyResult{}, nil
}

func (c *Client) onLoggingMessage(ctx context.Context, cs *ClientSession, p *LoggingMessageParams) (*emptyResult, error) {
	if c.opts.LoggingMessageHandler != nil {
		c.opts.LoggingMessageHandler(ctx, cs, p)
	}
	return &emptyResult{}, nil
}

func (c *Client) onProgress(ctx context.Context, cs *ClientSession, p *ProgressNotificationParams) (*emptyResult, error) {
	if c.opts.ProgressNotificationHandler != nil {
		c.opts.ProgressNotificationHandler(ctx, cs, p)
	}
	return &emptyResult{}, nil
}

func (c *Client) onTaskStatus(ctx context.Context, cs *ClientSession, p *TaskStatusNotificationParams) (*emptyResult, error) {
	if c.opts.TaskStatusHandler != nil {
		c.opts.TaskStatusHandler(ctx, cs, p)
	}
	return &emptyResult{}, nil
}

func (c *Client) onElicitationComplete(ctx context.Context, cs *ClientSession, p *ElicitationCompleteParams) (*emptyResult, error) {
	if c.opts.ElicitationCompleteHandler != nil {
		c.opts.ElicitationCompleteHandler(ctx, cs, p)
	}
	return &emptyResult{}, nil
}

// capabilities reports the capabilities c currently advertises, based on its
// registered roots and options.
func (c *Client) capabilities() *ClientCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()

	caps := &ClientCapabilities{}
	if c.roots.len() > 0 || c.opts.HasRoots {
		caps.RootsV2 = &RootCapabilities{ListChanged: true}
	}
	if c.opts.CreateMessageHandler != nil {
		caps.Sampling = &SamplingCapabilities{}
	}
	if c.opts.ElicitationHandler != nil {
		caps.Elicitation = &ElicitationCapabilities{Form: &FormElicitationCapabilities{}}
	}
	return caps
}

// Connect connects c to a peer over t, performs the initialize handshake,
// and returns the resulting [ClientSession]. opts configures the session;
// pass nil to accept defaults.
func (c *Client) Connect(ctx context.Context, t Transport, opts *ClientSessionOptions) (*ClientSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, err
	}
	cs := &ClientSession{
		client: c,
		conn:   newClientServerConn(conn),
	}
	if opts != nil {
		cs.opts = *opts
	}
	cs.conn.dispatch = func(ctx context.Context, req *jsonrpc2.Request) (Result, error) {
		return handleReceive(ctx, cs, req)
	}

	c.mu.Lock()
	c.sessions = append(c.sessions, cs)
	c.mu.Unlock()

	go func() {
		_ = cs.conn.run(ctx)
		c.mu.Lock()
		for i, sess := range c.sessions {
			if sess == cs {
				c.sessions = append(c.sessions[:i], c.sessions[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
	}()

	initParams := &InitializeParams{
		Capabilities:    c.capabilities(),
		ClientInfo:      c.impl,
		ProtocolVersion: protocolVersion,
	}
	res, err := handleSend[*InitializeResult](ctx, cs, methodInitialize, initParams)
	if err != nil {
		_ = cs.Close()
		return nil, err
	}
	cs.mu.Lock()
	cs.initializeResult = res
	cs.mu.Unlock()

	if err := handleNotifyClient(ctx, newClientRequest(cs, &InitializedParams{}), notificationInitialized); err != nil {
		_ = cs.Close()
		return nil, err
	}
	return cs, nil
}

// ClientSessionOptions configures a single [ClientSession].
type ClientSessionOptions struct{}

// A ClientSession is a connection between an MCP client and a single server
// peer. It implements [Session].
type ClientSession struct {
	client *Client
	opts   ClientSessionOptions
	conn   *clientServerConn

	mu               sync.Mutex
	initializeResult *InitializeResult
}

func (cs *ClientSession) sendingMethodInfos() map[string]methodInfo   { return cs.client.sendingInfos }
func (cs *ClientSession) receivingMethodInfos() map[string]methodInfo { return cs.client.receivingInfos }
func (cs *ClientSession) getConn() *clientServerConn                  { return cs.conn }

func (cs *ClientSession) sendingMethodHandler() methodHandler {
	h := MethodHandler[*ClientSession](defaultSendingMethodHandler[*ClientSession])
	addMiddleware(&h, cs.client.sendingMiddleware)
	return h
}

func (cs *ClientSession) receivingMethodHandler() methodHandler {
	h := MethodHandler[*ClientSession](defaultReceivingMethodHandler[*ClientSession])
	addMiddleware(&h, cs.client.receivingMiddleware)
	return h
}

// InitializeResult returns the result of the initialize handshake performed
// when the session was connected.
func (cs *ClientSession) InitializeResult() *InitializeResult {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.initializeResult
}

func (cs *ClientSession) ping(ctx context.Context, params *PingParams) (*emptyResult, error) {
	return &emptyResult{}, nil
}

// Ping pings the server.
func (cs *ClientSession) Ping(ctx context.Context, params *PingParams) error {
	if params == nil {
		params = &PingParams{}
	}
	_, err := handleSend[*emptyResult](ctx, cs, methodPing, params)
	return err
}

// ListTools lists the tools currently available on the server.
func (cs *ClientSession) ListTools(ctx context.Context, params *ListToolsParams) (*ListToolsResult, error) {
	if params == nil {
		params = &ListToolsParams{}
	}
	return handleSend[*ListToolsResult](ctx, cs, methodListTools, params)
}

// Tools returns an iterator over every tool on the server, fetching pages
// as needed.
func (cs *ClientSession) Tools(ctx context.Context, params *ListToolsParams) iter.Seq2[*Tool, error] {
	return func(yield func(*Tool, error) bool) {
		for {
			res, err := cs.ListTools(ctx, params)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, t := range res.Tools {
				if !yield(t, nil) {
					return
				}
			}
			if res.NextCursor == "" {
				return
			}
			params = &ListToolsParams{Cursor: res.NextCursor}
		}
	}
}

// CallTool calls the tool named by params.Name with the given arguments.
func (cs *ClientSession) CallTool(ctx context.Context, params *CallToolParams) (*CallToolResult, error) {
	return handleSend[*CallToolResult](ctx, cs, methodCallTool, params)
}

// CallToolTask issues a task-augmented tools/call: params.Task must be
// non-nil. Rather than waiting for the tool to finish, it returns as soon as
// the server has created the task, in its initial "working" status. Use
// TaskResult to retrieve the eventual outcome.
func (cs *ClientSession) CallToolTask(ctx context.Context, params *CallToolParams) (*CreateTaskResult, error) {
	if params == nil || params.Task == nil {
		return nil, fmt.Errorf("%w: CallToolTask requires params.Task", jsonrpc2.ErrInvalidParams)
	}
	return handleSend[*CreateTaskResult](ctx, cs, methodCallTool, params)
}

// ListPrompts lists the prompts currently available on the server.
func (cs *ClientSession) ListPrompts(ctx context.Context, params *ListPromptsParams) (*ListPromptsResult, error) {
	if params == nil {
		params = &ListPromptsParams{}
	}
	return handleSend[*ListPromptsResult](ctx, cs, methodListPrompts, params)
}

// Prompts returns an iterator over every prompt on the server, fetching
// pages as needed.
func (cs *ClientSession) Prompts(ctx context.Context, params *ListPromptsParams) iter.Seq2[*Prompt, error] {
	return func(yield func(*Prompt, error) bool) {
		for {
			res, err := cs.ListPrompts(ctx, params)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, p := range res.Prompts {
				if !yield(p, nil) {
					return
				}
			}
			if res.NextCursor == "" {
				return
			}
			params = &ListPromptsParams{Cursor: res.NextCursor}
		}
	}
}

// GetPrompt fetches a prompt from the server.
func (cs *ClientSession) GetPrompt(ctx context.Context, params *GetPromptParams) (*GetPromptResult, error) {
	return handleSend[*GetPromptResult](ctx, cs, methodGetPrompt, params)
}

// ListResources lists the resources currently available on the server.
func (cs *ClientSession) ListResources(ctx context.Context, params *ListResourcesParams) (*ListResourcesResult, error) {
	if params == nil {
		params = &ListResourcesParams{}
	}
	return handleSend[*ListResourcesResult](ctx, cs, methodListResources, params)
}

// Resources returns an iterator over every resource on the server, fetching
// pages as needed.
func (cs *ClientSession) Resources(ctx context.Context, params *ListResourcesParams) iter.Seq2[*Resource, error] {
	return func(yield func(*Resource, error) bool) {
		for {
			res, err := cs.ListResources(ctx, params)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, r := range res.Resources {
				if !yield(r, nil) {
					return
				}
			}
			if res.NextCursor == "" {
				return
			}
			params = &ListResourcesParams{Cursor: res.NextCursor}
		}
	}
}

// ReadResource asks the server to read a resource and return its contents.
func (cs *ClientSession) ReadResource(ctx context.Context, params *ReadResourceParams) (*ReadResourceResult, error) {
	return handleSend[*ReadResourceResult](ctx, cs, methodReadResource, params)
}

// ListResourceTemplates lists the resource templates currently available on
// the server.
func (cs *ClientSession) ListResourceTemplates(ctx context.Context, params *ListResourceTemplatesParams) (*ListResourceTemplatesResult, error) {
	if params == nil {
		params = &ListResourceTemplatesParams{}
	}
	return handleSend[*ListResourceTemplatesResult](ctx, cs, methodListResourceTemplates, params)
}

// ResourceTemplates returns an iterator over every resource template on the
// server, fetching pages as needed.
func (cs *ClientSession) ResourceTemplates(ctx context.Context, params *ListResourceTemplatesParams) iter.Seq2[*ResourceTemplate, error] {
	return func(yield func(*ResourceTemplate, error) bool) {
		for {
			res, err := cs.ListResourceTemplates(ctx, params)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, t := range res.ResourceTemplates {
				if !yield(t, nil) {
					return
				}
			}
			if res.NextCursor == "" {
				return
			}
			params = &ListResourceTemplatesParams{Cursor: res.NextCursor}
		}
	}
}

// Subscribe asks the server to notify the session when a resource changes.
func (cs *ClientSession) Subscribe(ctx context.Context, params *SubscribeParams) error {
	_, err := handleSend[*emptyResult](ctx, cs, methodSubscribe, params)
	return err
}

// Unsubscribe asks the server to stop notifying the session about a
// resource.
func (cs *ClientSession) Unsubscribe(ctx context.Context, params *UnsubscribeParams) error {
	_, err := handleSend[*emptyResult](ctx, cs, methodUnsubscribe, params)
	return err
}

// Complete asks the server for completion suggestions for a prompt or
// resource template argument.
func (cs *ClientSession) Complete(ctx context.Context, params *CompleteParams) (*CompleteResult, error) {
	return handleSend[*CompleteResult](ctx, cs, methodComplete, params)
}

// SetLoggingLevel asks the server to only send log messages at or above the
// given level.
func (cs *ClientSession) SetLoggingLevel(ctx context.Context, params *SetLoggingLevelParams) error {
	_, err := handleSend[*emptyResult](ctx, cs, methodSetLevel, params)
	return err
}

// GetTask fetches the current status of a task previously created by a
// task-augmented tool call.
func (cs *ClientSession) GetTask(ctx context.Context, params *GetTaskParams) (*GetTaskResult, error) {
	return handleSend[*GetTaskResult](ctx, cs, methodGetTask, params)
}

// ListTasks lists the tasks outstanding on the server for this session.
func (cs *ClientSession) ListTasks(ctx context.Context, params *ListTasksParams) (*ListTasksResult, error) {
	if params == nil {
		params = &ListTasksParams{}
	}
	return handleSend[*ListTasksResult](ctx, cs, methodListTasks, params)
}

// CancelTask asks the server to cancel a task.
func (cs *ClientSession) CancelTask(ctx context.Context, params *CancelTaskParams) (*CancelTaskResult, error) {
	return handleSend[*CancelTaskResult](ctx, cs, methodCancelTask, params)
}

// TaskResult blocks until a task has reached a terminal state, then returns
// the tool call result it produced.
func (cs *ClientSession) TaskResult(ctx context.Context, params *TaskResultParams) (*CallToolResult, error) {
	return handleSend[*CallToolResult](ctx, cs, methodTaskResult, params)
}

// Close terminates the session's connection.
func (cs *ClientSession) Close() error {
	return cs.conn.close()
}

// Wait blocks until the session's connection is closed, returning the error
// that caused the closure, unless the connection closed cleanly (in which
// case it returns nil).
func (cs *ClientSession) Wait() error {
	cs.conn.wait()
	err := cs.conn.err()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// clientReceivingMethodInfos returns the dispatch table used by every
// ClientSession to handle incoming calls and notifications.
func clientReceivingMethodInfos() map[string]methodInfo {
	return map[string]methodInfo{
		methodPing:                      newMethodInfo(sessionMethod((*ClientSession).ping)),
		methodListRoots:                 newMethodInfo(clientMethod((*Client).listRoots)),
		methodCreateMessage:             newMethodInfo(clientMethod((*Client).createMessage)),
		methodElicit:                    newMethodInfo(clientMethod((*Client).elicit)),
		notificationToolListChanged:     newMethodInfo(clientMethod((*Client).onToolListChanged)),
		notificationPromptListChanged:   newMethodInfo(clientMethod((*Client).onPromptListChanged)),
		notificationResourceListChanged: newMethodInfo(clientMethod((*Client).onResourceListChanged)),
		notificationResourceUpdated:     newMethodInfo(clientMethod((*Client).onResourceUpdated)),
		notificationLoggingMessage:      newMethodInfo(clientMethod((*Client).onLoggingMessage)),
		notificationProgress:            newMethodInfo(clientMethod((*Client).onProgress)),
		notificationTaskStatus:          newMethodInfo(clientMethod((*Client).onTaskStatus)),
		notificationElicitationComplete: newMethodInfo(clientMethod((*Client).onElicitationComplete)),
	}
}

// clientSendingMethodInfos returns the dispatch table a ClientSession uses
// to interpret the results of methods it sends to the server.
func clientSendingMethodInfos() map[string]methodInfo {
	return map[string]methodInfo{
		methodInitialize:             {newResult: func() Result { return &InitializeResult{} }},
		notificationInitialized:      {},
		methodPing:                   {newResult: func() Result { return &emptyResult{} }},
		methodListTools:              {newResult: func() Result { return &ListToolsResult{} }},
		methodCallTool:               {newResult: func() Result { return &CallToolResult{} }},
		methodListPrompts:            {newResult: func() Result { return &ListPromptsResult{} }},
		methodGetPrompt:              {newResult: func() Result { return &GetPromptResult{} }},
		methodListResources:          {newResult: func() Result { return &ListResourcesResult{} }},
		methodReadResource:           {newResult: func() Result { return &ReadResourceResult{} }},
		methodListResourceTemplates:  {newResult: func() Result { return &ListResourceTemplatesResult{} }},
		methodSubscribe:              {newResult: func() Result { return &emptyResult{} }},
		methodUnsubscribe:            {newResult: func() Result { return &emptyResult{} }},
		methodComplete:               {newResult: func() Result { return &CompleteResult{} }},
		methodSetLevel:               {newResult: func() Result { return &emptyResult{} }},
		methodGetTask:                {newResult: func() Result { return &GetTaskResult{} }},
		methodListTasks:              {newResult: func() Result { return &ListTasksResult{} }},
		methodCancelTask:             {newResult: func() Result { return &CancelTaskResult{} }},
		methodTaskResult:             {newResult: func() Result { return &CallToolResult{} }},
		notificationRootsListChanged: {},
	}
}
