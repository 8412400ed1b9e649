// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

// This file holds the wire-visible request/response/notification payloads
// for protocol version 2025-06-18, grouped by the feature area that uses
// them (initialization, tools, resources, prompts, sampling, elicitation,
// roots, logging, completion) rather than alphabetically.
//
// Field names and JSON tags here are load-bearing: they mirror the MCP
// schema byte for byte, so renaming or retagging a field changes the wire
// format. To diff against a newer schema revision:
//
//   prefix=https://raw.githubusercontent.com/modelcontextprotocol/modelcontextprotocol/refs/heads/main/schema
//   sdiff -l <(curl $prefix/2025-03-26/schema.ts) <(curl $prefix/2025-06-18/schema.ts)
//
// Every *Params type also satisfies the unexported params interface
// (isParams, GetProgressToken, SetProgressToken) declared in shared.go;
// every *Result type satisfies isResult. Types whose Meta field needs no
// further comment: the field itself is documented on the Meta type.

import (
	"encoding/json"
	"fmt"
	"maps"

	internaljson "github.com/go-mcp/mcpengine/internal/json"
	"github.com/google/jsonschema-go/jsonschema"
)

// ---------------------------------------------------------------------
// Shared value types
// ---------------------------------------------------------------------

// Annotations hints at how a client should use or display an object.
type Annotations struct {
	// Audience lists the intended consumers of the annotated data, e.g.
	// []Role{"user", "assistant"} for content useful to both.
	Audience []Role `json:"audience,omitempty"`
	// LastModified is an ISO 8601 timestamp (e.g. "2025-01-12T15:00:58Z")
	// for when the annotated resource last changed.
	LastModified string `json:"lastModified,omitempty"`
	// Priority ranges from 0 (optional) to 1 (effectively required) and
	// describes how important the data is for operating the server.
	Priority float64 `json:"priority,omitempty"`
}

// IconTheme names the display background an [Icon] was designed for.
type IconTheme string

const (
	IconThemeLight IconTheme = "light"
	IconThemeDark  IconTheme = "dark"
)

// Icon is a visual identifier attached to a tool, prompt, resource, or
// implementation.
type Icon struct {
	// Source locates the icon: an http(s) URL or a data: URI.
	Source string `json:"src"`
	// MIMEType clarifies the icon's type when Source doesn't make it obvious.
	MIMEType string `json:"mimeType,omitempty"`
	// Sizes lists supported dimensions, e.g. ["48x48"] or ["any"] for
	// scalable formats.
	Sizes []string  `json:"sizes,omitempty"`
	Theme IconTheme `json:"theme,omitempty"`
}

// The sender or recipient of a conversation message.
type Role string

// shallowClone returns a shallow clone of *p, or nil if p is nil.
func shallowClone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	x := *p
	return &x
}

// ---------------------------------------------------------------------
// Initialization
// ---------------------------------------------------------------------

// An Implementation names and versions an MCP client or server.
type Implementation struct {
	Name string `json:"name"`
	// Title, when present, is preferred over Name for display.
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
	// WebsiteURL links to documentation for this implementation, if any.
	WebsiteURL string `json:"websiteUrl,omitempty"`
	Icons      []Icon `json:"icons,omitempty"`
}

// RootCapabilities describes a client's support for the roots/list method.
type RootCapabilities struct {
	// ListChanged reports support for roots/list_changed notifications.
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingCapabilities describes a client's support for sampling extras.
type SamplingCapabilities struct {
	// Context indicates support for includeContext values other than "none".
	Context *SamplingContextCapabilities `json:"context,omitempty"`
	// Tools indicates support for tools and toolChoice in sampling requests.
	Tools *SamplingToolsCapabilities `json:"tools,omitempty"`
}

type SamplingContextCapabilities struct{}
type SamplingToolsCapabilities struct{}

// ElicitationCapabilities describes a client's support for elicitation.
// If neither Form nor URL is set, "form" elicitation is assumed.
type ElicitationCapabilities struct {
	Form *FormElicitationCapabilities `json:"form,omitempty"`
	URL  *URLElicitationCapabilities  `json:"url,omitempty"`
}

type FormElicitationCapabilities struct{}
type URLElicitationCapabilities struct{}

// ClientCapabilities a client may advertise. This is not a closed set: a
// client can declare arbitrary capabilities via Experimental or Extensions.
type ClientCapabilities struct {
	// NOTE: any addition here must also be reflected in [ClientCapabilities.clone].

	// Experimental reports non-standard capabilities. Callers should not
	// modify the map after assigning it.
	Experimental map[string]any `json:"experimental,omitempty"`
	// Extensions holds per-extension settings keyed by
	// "{vendor-prefix}/{extension-name}". Use [ClientCapabilities.AddExtension]
	// so a nil settings value is normalized to an empty object. Callers
	// should not modify the map or its values after assigning it.
	Extensions map[string]any `json:"extensions,omitempty"`
	// Roots reports root support using the pre-#607 (non-pointer) shape.
	//
	// Deprecated: use RootsV2. Roots keeps being populated for backward
	// compatibility, but new fields only land on RootsV2.
	Roots struct {
		ListChanged bool `json:"listChanged,omitempty"`
	} `json:"roots,omitempty"`
	// RootsV2 is set when the client has registered roots or
	// [ClientOptions.HasRoots] is true.
	RootsV2     *RootCapabilities        `json:"-"`
	Sampling    *SamplingCapabilities    `json:"sampling,omitempty"`
	Elicitation *ElicitationCapabilities `json:"elicitation,omitempty"`
}

// AddExtension records settings for a client extension, defaulting a nil
// settings value to an empty object (the wire format requires an object,
// not null). The settings map should not be modified afterward.
func (c *ClientCapabilities) AddExtension(name string, settings map[string]any) {
	if c.Extensions == nil {
		c.Extensions = make(map[string]any)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	c.Extensions[name] = settings
}

// clone deep-enough-copies c: map values in Experimental/Extensions are
// shallow-copied, and pointer fields get their own backing struct.
func (c *ClientCapabilities) clone() *ClientCapabilities {
	cp := *c
	cp.Experimental = maps.Clone(c.Experimental)
	cp.Extensions = maps.Clone(c.Extensions)
	cp.RootsV2 = shallowClone(c.RootsV2)
	if c.Sampling != nil {
		x := *c.Sampling
		x.Tools = shallowClone(c.Sampling.Tools)
		x.Context = shallowClone(c.Sampling.Context)
		cp.Sampling = &x
	}
	if c.Elicitation != nil {
		x := *c.Elicitation
		x.Form = shallowClone(c.Elicitation.Form)
		x.URL = shallowClone(c.Elicitation.URL)
		cp.Elicitation = &x
	}
	return &cp
}

func (c *ClientCapabilities) toV2() *clientCapabilitiesV2 {
	return &clientCapabilitiesV2{ClientCapabilities: *c, Roots: c.RootsV2}
}

// clientCapabilitiesV2 corrects the #607 mistake: Roots should always have
// been a pointer to RootCapabilities, not an inline non-pointer struct.
type clientCapabilitiesV2 struct {
	ClientCapabilities
	Roots *RootCapabilities `json:"roots,omitempty"`
}

func (c *clientCapabilitiesV2) toV1() *ClientCapabilities {
	caps := c.ClientCapabilities
	caps.RootsV2 = c.Roots
	if caps.RootsV2 != nil {
		caps.Roots = *caps.RootsV2 // keep the deprecated field in sync, #607
	}
	return &caps
}

// CompletionCapabilities describes a server's support for argument
// autocompletion.
type CompletionCapabilities struct{}

// LoggingCapabilities describes a server's support for log notifications.
type LoggingCapabilities struct{}

// PromptCapabilities describes a server's support for prompts.
type PromptCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourceCapabilities describes a server's support for resources.
type ResourceCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
	// Subscribe reports support for resources/subscribe.
	Subscribe bool `json:"subscribe,omitempty"`
}

// ToolCapabilities describes a server's support for tools.
type ToolCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities a server may advertise, mirroring [ClientCapabilities]'s
// open-set design.
type ServerCapabilities struct {
	// NOTE: any addition here must also be reflected in [ServerCapabilities.clone].

	Experimental map[string]any          `json:"experimental,omitempty"`
	Extensions   map[string]any          `json:"extensions,omitempty"`
	Completions  *CompletionCapabilities `json:"completions,omitempty"`
	Logging      *LoggingCapabilities    `json:"logging,omitempty"`
	Prompts      *PromptCapabilities     `json:"prompts,omitempty"`
	Resources    *ResourceCapabilities   `json:"resources,omitempty"`
	Tools        *ToolCapabilities       `json:"tools,omitempty"`
	// Tasks is present when the server supports augmenting requests with
	// task parameters for long-running, poll/resume-able execution.
	Tasks *TaskCapabilities `json:"tasks,omitempty"`
}

// AddExtension records settings for a server extension; see
// [ClientCapabilities.AddExtension] for the nil-settings normalization rule.
func (c *ServerCapabilities) AddExtension(name string, settings map[string]any) {
	if c.Extensions == nil {
		c.Extensions = make(map[string]any)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	c.Extensions[name] = settings
}

func (c *ServerCapabilities) clone() *ServerCapabilities {
	cp := *c
	cp.Experimental = maps.Clone(c.Experimental)
	cp.Extensions = maps.Clone(c.Extensions)
	cp.Completions = shallowClone(c.Completions)
	cp.Logging = shallowClone(c.Logging)
	cp.Prompts = shallowClone(c.Prompts)
	cp.Resources = shallowClone(c.Resources)
	cp.Tools = shallowClone(c.Tools)
	cp.Tasks = shallowClone(c.Tasks)
	return &cp
}

// InitializeParams opens a session, advertising the client's capabilities
// and the protocol version it wants to speak.
type InitializeParams struct {
	Meta            `json:"_meta,omitempty"`
	Capabilities    *ClientCapabilities `json:"capabilities"`
	ClientInfo      *Implementation     `json:"clientInfo"`
	ProtocolVersion string              `json:"protocolVersion"`
}

func (p *InitializeParams) toV2() *initializeParamsV2 {
	return &initializeParamsV2{InitializeParams: *p, Capabilities: p.Capabilities.toV2()}
}

// initializeParamsV2 threads the #607 Roots-pointer fix through InitializeParams.
type initializeParamsV2 struct {
	InitializeParams
	Capabilities *clientCapabilitiesV2 `json:"capabilities"`
}

func (p *initializeParamsV2) toV1() *InitializeParams {
	p1 := p.InitializeParams
	if p.Capabilities != nil {
		p1.Capabilities = p.Capabilities.toV1()
	}
	return &p1
}

func (x *InitializeParams) isParams()              {}
func (x *InitializeParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *InitializeParams) SetProgressToken(t any) { setProgressToken(x, t) }

// InitializeResult answers an InitializeParams request, settling on a
// protocol version (which may differ from what the client asked for — the
// client must disconnect if it can't support it).
type InitializeResult struct {
	Meta         `json:"_meta,omitempty"`
	Capabilities *ServerCapabilities `json:"capabilities"`
	// Instructions give the model a hint about how to use this server,
	// suitable for inclusion in a system prompt.
	Instructions    string          `json:"instructions,omitempty"`
	ProtocolVersion string          `json:"protocolVersion"`
	ServerInfo      *Implementation `json:"serverInfo"`
}

func (*InitializeResult) isResult() {}

type InitializedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *InitializedParams) isParams()              {}
func (x *InitializedParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *InitializedParams) SetProgressToken(t any) { setProgressToken(x, t) }

// PingParams carries no data; a ping/pong round trip only confirms the
// peer is alive.
type PingParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *PingParams) isParams()              {}
func (x *PingParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *PingParams) SetProgressToken(t any) { setProgressToken(x, t) }

// CancelledParams notifies a peer that a previously issued request (by ID,
// in the same direction) is no longer wanted.
type CancelledParams struct {
	Meta `json:"_meta,omitempty"`
	// Reason is a free-form explanation that may be logged or shown to a user.
	Reason    string `json:"reason,omitempty"`
	RequestID any    `json:"requestId"`
}

func (x *CancelledParams) isParams()              {}
func (x *CancelledParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *CancelledParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ProgressNotificationParams reports incremental progress on a request
// that supplied a progress token.
type ProgressNotificationParams struct {
	Meta `json:"_meta,omitempty"`
	// ProgressToken ties this notification back to the originating request.
	ProgressToken any    `json:"progressToken"`
	Message       string `json:"message,omitempty"`
	// Progress should only increase, even when Total is unknown (zero).
	Progress float64 `json:"progress"`
	Total    float64 `json:"total,omitempty"`
}

func (*ProgressNotificationParams) isParams()                {}
func (x *ProgressNotificationParams) GetProgressToken() any  { return x.ProgressToken }
func (x *ProgressNotificationParams) SetProgressToken(t any) { x.ProgressToken = t }

// ---------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------

// CallToolParams requests execution of a named tool.
type CallToolParams struct {
	Meta `json:"_meta,omitempty"`
	Name string `json:"name"`
	// Arguments may be any JSON-marshalable value.
	Arguments any `json:"arguments,omitempty"`
	// Task requests task-augmented execution; honored only when the tool
	// advertises task support.
	Task *TaskParams `json:"task,omitempty"`
}

// CallToolParamsRaw is the server-side counterpart of CallToolParams: its
// Arguments stay as raw JSON so handlers can unmarshal and validate them
// themselves (see [AddTool]).
type CallToolParamsRaw struct {
	Meta      `json:"_meta,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Task      *TaskParams     `json:"task,omitempty"`
}

func (x *CallToolParams) isParams()              {}
func (x *CallToolParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *CallToolParams) SetProgressToken(t any) { setProgressToken(x, t) }

func (x *CallToolParamsRaw) isParams()              {}
func (x *CallToolParamsRaw) GetProgressToken() any  { return getProgressToken(x) }
func (x *CallToolParamsRaw) SetProgressToken(t any) { setProgressToken(x, t) }

// CallToolResult is a tool call's response. [ToolHandlerFor] populates most
// of it automatically; see the field docs for what it fills in.
type CallToolResult struct {
	Meta `json:"_meta,omitempty"`

	// Content is the unstructured result. If unset and a [ToolHandlerFor]
	// used structured output, it is filled in with the JSON text of that
	// output.
	Content []Content `json:"content"`

	// StructuredContent must marshal to a JSON object when set. Handlers
	// registered with [ToolHandlerFor] should leave this unset; the SDK
	// populates it from the typed Out value.
	StructuredContent any `json:"structuredContent,omitempty"`

	// IsError distinguishes a tool-level failure (reported here, in
	// Content, so the model can see and react to it) from an MCP
	// protocol-level error, which should instead be returned as a Go error
	// from the handler. Only set this for failures intrinsic to running the
	// tool, not for failures to find it or execute it at all.
	IsError bool `json:"isError,omitempty"`

	// err is the error passed to SetError; visible only server-side,
	// through getError, for use by server-side middleware.
	err error
}

// SetError records err as the tool's failure: it fills Content with the
// error text and sets IsError.
func (r *CallToolResult) SetError(err error) {
	r.Content = []Content{&TextContent{Text: err.Error()}}
	r.IsError = true
	r.err = err
}

// GetError returns the error passed to SetError, or nil. Always nil on the
// client side.
func (r *CallToolResult) GetError() error {
	return r.err
}

func (*CallToolResult) isResult() {}

func (x *CallToolResult) UnmarshalJSON(data []byte) error {
	type res CallToolResult // avoid recursion
	var wire struct {
		res
		Content []*wireContent `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	var err error
	if wire.res.Content, err = contentsFromWire(wire.Content, nil); err != nil {
		return err
	}
	*x = CallToolResult(wire.res)
	return nil
}

// ToolExecution describes whether and how a tool participates in the task
// protocol.
type ToolExecution struct {
	// TaskSupport is "forbidden" (default), "optional", or "required", and
	// gates whether a tools/call may (or must) carry task parameters.
	TaskSupport string `json:"taskSupport,omitempty"`
}

// ToolAnnotations are hints about a [Tool]'s behavior. They are advisory
// only — an untrusted server's annotations should never drive tool-use
// decisions.
type ToolAnnotations struct {
	// DestructiveHint, meaningful only when ReadOnlyHint is false, defaults
	// to true: assume a tool may make destructive changes unless told
	// otherwise.
	DestructiveHint *bool `json:"destructiveHint,omitempty"`
	// IdempotentHint, meaningful only when ReadOnlyHint is false, reports
	// that repeat calls with the same arguments have no further effect.
	IdempotentHint bool `json:"idempotentHint,omitempty"`
	// OpenWorldHint defaults to true: assume the tool interacts with an
	// open set of external entities (e.g. web search) rather than a closed
	// one (e.g. a local memory store).
	OpenWorldHint *bool  `json:"openWorldHint,omitempty"`
	ReadOnlyHint  bool   `json:"readOnlyHint,omitempty"`
	Title         string `json:"title,omitempty"`
}

// Tool is a single entry in a server's tool catalog.
type Tool struct {
	Meta        `json:"_meta,omitempty"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
	Description string           `json:"description,omitempty"`
	// InputSchema is the JSON Schema for accepted arguments. Tools
	// registered with [AddTool] get automatic input validation, but that
	// path only understands the 2020-12 draft (the SDK infers and
	// resolves schemas via github.com/google/jsonschema-go); use
	// [Server.AddTool] directly for anything else.
	//
	// On the client side, this holds the schema as decoded from the
	// server's response into a *jsonschema.Schema.
	InputSchema *jsonschema.Schema `json:"inputSchema"`
	Name        string             `json:"name"`
	// OutputSchema, when set, constrains CallToolResult.StructuredContent
	// the same way InputSchema constrains Arguments.
	OutputSchema *jsonschema.Schema `json:"outputSchema,omitempty"`
	// Title, when set, takes display precedence over Annotations.Title,
	// which in turn takes precedence over Name.
	Title string `json:"title,omitempty"`
	Icons []Icon `json:"icons,omitempty"`
	// Execution describes the tool's participation in the task protocol,
	// if any.
	Execution *ToolExecution `json:"execution,omitempty"`

	// newArgs builds a zero value of the tool's argument type for [AddTool]
	// to unmarshal into. Set by newTypedServerTool; not part of the wire format.
	newArgs func() any
}

type ListToolsParams struct {
	Meta `json:"_meta,omitempty"`
	// Cursor resumes listing after a previous page, if set.
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListToolsParams) isParams()              {}
func (x *ListToolsParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ListToolsParams) SetProgressToken(t any) { setProgressToken(x, t) }
func (x *ListToolsParams) cursorPtr() *string     { return &x.Cursor }

type ListToolsResult struct {
	Meta `json:"_meta,omitempty"`
	// NextCursor, if present, means more results are available.
	NextCursor string  `json:"nextCursor,omitempty"`
	Tools      []*Tool `json:"tools"`
}

func (x *ListToolsResult) isResult()              {}
func (x *ListToolsResult) nextCursorPtr() *string { return &x.NextCursor }

type ToolListChangedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *ToolListChangedParams) isParams()              {}
func (x *ToolListChangedParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ToolListChangedParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ---------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------

type ReadResourceParams struct {
	Meta `json:"_meta,omitempty"`
	// URI identifies the resource. Interpretation of the scheme is up to
	// the server.
	URI string `json:"uri"`
}

func (x *ReadResourceParams) isParams()              {}
func (x *ReadResourceParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ReadResourceParams) SetProgressToken(t any) { setProgressToken(x, t) }

type ReadResourceResult struct {
	Meta     `json:"_meta,omitempty"`
	Contents []*ResourceContents `json:"contents"`
}

func (*ReadResourceResult) isResult() {}

// Resource is a single entry in a server's resource catalog.
type Resource struct {
	Meta        `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Description string       `json:"description,omitempty"`
	MIMEType    string       `json:"mimeType,omitempty"`
	Name        string       `json:"name"`
	// Size, in bytes, of the raw (pre-encoding, pre-tokenization) content,
	// if known — useful for clients estimating context budget.
	Size int64 `json:"size,omitempty"`
	// Title, when unset, falls back to Name for display — except for Tool,
	// where Annotations.Title takes precedence.
	Title string `json:"title,omitempty"`
	URI   string `json:"uri"`
	Icons []Icon `json:"icons,omitempty"`
}

// ResourceTemplate describes a family of resources sharing a URI template.
type ResourceTemplate struct {
	Meta        `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Description string       `json:"description,omitempty"`
	// MIMEType should only be set if every resource matching this template
	// shares the same type.
	MIMEType string `json:"mimeType,omitempty"`
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	// URITemplate follows RFC 6570.
	URITemplate string `json:"uriTemplate"`
	Icons       []Icon `json:"icons,omitempty"`
}

type ListResourcesParams struct {
	Meta   `json:"_meta,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListResourcesParams) isParams()              {}
func (x *ListResourcesParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ListResourcesParams) SetProgressToken(t any) { setProgressToken(x, t) }
func (x *ListResourcesParams) cursorPtr() *string     { return &x.Cursor }

type ListResourcesResult struct {
	Meta       `json:"_meta,omitempty"`
	NextCursor string      `json:"nextCursor,omitempty"`
	Resources  []*Resource `json:"resources"`
}

func (x *ListResourcesResult) isResult()              {}
func (x *ListResourcesResult) nextCursorPtr() *string { return &x.NextCursor }

type ListResourceTemplatesParams struct {
	Meta   `json:"_meta,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListResourceTemplatesParams) isParams()              {}
func (x *ListResourceTemplatesParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ListResourceTemplatesParams) SetProgressToken(t any) { setProgressToken(x, t) }
func (x *ListResourceTemplatesParams) cursorPtr() *string     { return &x.Cursor }

type ListResourceTemplatesResult struct {
	Meta              `json:"_meta,omitempty"`
	NextCursor        string              `json:"nextCursor,omitempty"`
	ResourceTemplates []*ResourceTemplate `json:"resourceTemplates"`
}

func (x *ListResourceTemplatesResult) isResult()              {}
func (x *ListResourceTemplatesResult) nextCursorPtr() *string { return &x.NextCursor }

// SubscribeParams asks the server for resources/updated notifications
// whenever the named resource changes.
type SubscribeParams struct {
	Meta `json:"_meta,omitempty"`
	URI  string `json:"uri"`
}

func (x *SubscribeParams) isParams()              {}
func (x *SubscribeParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *SubscribeParams) SetProgressToken(t any) { setProgressToken(x, t) }

// UnsubscribeParams undoes a prior SubscribeParams.
type UnsubscribeParams struct {
	Meta `json:"_meta,omitempty"`
	URI  string `json:"uri"`
}

func (x *UnsubscribeParams) isParams()              {}
func (x *UnsubscribeParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *UnsubscribeParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ResourceUpdatedNotificationParams is only sent for resources a client
// subscribed to; URI may name a sub-resource of the subscribed one.
type ResourceUpdatedNotificationParams struct {
	Meta `json:"_meta,omitempty"`
	URI  string `json:"uri"`
}

func (x *ResourceUpdatedNotificationParams) isParams()              {}
func (x *ResourceUpdatedNotificationParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ResourceUpdatedNotificationParams) SetProgressToken(t any) { setProgressToken(x, t) }

type ResourceListChangedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *ResourceListChangedParams) isParams()              {}
func (x *ResourceListChangedParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ResourceListChangedParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ---------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------

type GetPromptParams struct {
	Meta      `json:"_meta,omitempty"`
	Arguments map[string]string `json:"arguments,omitempty"`
	Name      string            `json:"name"`
}

func (x *GetPromptParams) isParams()              {}
func (x *GetPromptParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *GetPromptParams) SetProgressToken(t any) { setProgressToken(x, t) }

type GetPromptResult struct {
	Meta        `json:"_meta,omitempty"`
	Description string           `json:"description,omitempty"`
	Messages    []*PromptMessage `json:"messages"`
}

func (*GetPromptResult) isResult() {}

// PromptArgument describes one argument a [Prompt] accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Prompt is a single entry in a server's prompt catalog.
type Prompt struct {
	Meta        `json:"_meta,omitempty"`
	Arguments   []*PromptArgument `json:"arguments,omitempty"`
	Description string            `json:"description,omitempty"`
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	Icons       []Icon            `json:"icons,omitempty"`
}

type ListPromptsParams struct {
	Meta   `json:"_meta,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListPromptsParams) isParams()              {}
func (x *ListPromptsParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ListPromptsParams) SetProgressToken(t any) { setProgressToken(x, t) }
func (x *ListPromptsParams) cursorPtr() *string     { return &x.Cursor }

type ListPromptsResult struct {
	Meta       `json:"_meta,omitempty"`
	NextCursor string    `json:"nextCursor,omitempty"`
	Prompts    []*Prompt `json:"prompts"`
}

func (x *ListPromptsResult) isResult()              {}
func (x *ListPromptsResult) nextCursorPtr() *string { return &x.NextCursor }

type PromptListChangedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *PromptListChangedParams) isParams()              {}
func (x *PromptListChangedParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *PromptListChangedParams) SetProgressToken(t any) { setProgressToken(x, t) }

// PromptMessage is similar to [SamplingMessage], but additionally allows
// embedding resources from the server.
type PromptMessage struct {
	Content Content `json:"content"`
	Role    Role    `json:"role"`
}

func (m *PromptMessage) UnmarshalJSON(data []byte) error {
	type msg PromptMessage // avoid recursion
	var wire struct {
		msg
		Content *wireContent `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	var err error
	if wire.msg.Content, err = contentFromWire(wire.Content, nil); err != nil {
		return err
	}
	*m = PromptMessage(wire.msg)
	return nil
}

// ---------------------------------------------------------------------
// Sampling
// ---------------------------------------------------------------------

// ModelHint nudges model selection toward models whose name contains Name
// as a substring (e.g. "sonnet" matches several Claude models). A client
// may also map the hint to an equivalent model from a different provider.
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

// ModelPreferences are a server's advisory, non-binding hints for model
// selection during sampling. Clients remain free to weigh cost, capability,
// and speed however they see fit.
type ModelPreferences struct {
	CostPriority float64 `json:"costPriority,omitempty"`
	// Hints are evaluated in order; the client should prefer the first
	// match over the numeric priorities below, but may still use the
	// priorities to break ties among ambiguous matches.
	Hints                []*ModelHint `json:"hints,omitempty"`
	IntelligencePriority float64      `json:"intelligencePriority,omitempty"`
	SpeedPriority        float64      `json:"speedPriority,omitempty"`
}

// ToolChoice controls tool invocation during sampling: "auto" (default),
// "required", or "none".
type ToolChoice struct {
	Mode string `json:"mode,omitempty"`
}

// CreateMessageParams requests that the client sample from an LLM on the
// server's behalf.
type CreateMessageParams struct {
	Meta `json:"_meta,omitempty"`
	// IncludeContext is "none" (default), "thisServer", or "allServers".
	// The latter two are soft-deprecated: servers should only send them
	// when the client's SamplingCapabilities.Context is set, and they may
	// be removed from a future spec revision. The client may ignore this
	// field regardless.
	IncludeContext string             `json:"includeContext,omitempty"`
	MaxTokens      int64              `json:"maxTokens"`
	Messages       []*SamplingMessage `json:"messages"`
	// Metadata is passed through to the LLM provider; its shape is
	// provider-specific.
	Metadata         any               `json:"metadata,omitempty"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	StopSequences    []string          `json:"stopSequences,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	Temperature      float64           `json:"temperature,omitempty"`
}

func (x *CreateMessageParams) isParams()              {}
func (x *CreateMessageParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *CreateMessageParams) SetProgressToken(t any) { setProgressToken(x, t) }

// CreateMessageWithToolsParams extends CreateMessageParams with tool
// support: messages carry array content (so a response can hold several
// tool_use blocks for parallel tool calls) and the request can advertise
// available tools and a tool choice policy.
//
// Use with [ServerSession.CreateMessageWithTools].
type CreateMessageWithToolsParams struct {
	Meta             `json:"_meta,omitempty"`
	IncludeContext   string               `json:"includeContext,omitempty"`
	MaxTokens        int64                `json:"maxTokens"`
	Messages         []*SamplingMessageV2 `json:"messages"`
	Metadata         any                  `json:"metadata,omitempty"`
	ModelPreferences *ModelPreferences    `json:"modelPreferences,omitempty"`
	StopSequences    []string             `json:"stopSequences,omitempty"`
	SystemPrompt     string               `json:"systemPrompt,omitempty"`
	Temperature      float64              `json:"temperature,omitempty"`
	Tools            []*Tool              `json:"tools,omitempty"`
	ToolChoice       *ToolChoice          `json:"toolChoice,omitempty"`
}

func (x *CreateMessageWithToolsParams) isParams()              {}
func (x *CreateMessageWithToolsParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *CreateMessageWithToolsParams) SetProgressToken(t any) { setProgressToken(x, t) }

// toBase downgrades to CreateMessageParams by taking the sole content block
// from each message, dropping Tools and ToolChoice. It errors if any
// message carries more than one content block, since SamplingMessage can't
// represent that.
func (p *CreateMessageWithToolsParams) toBase() (*CreateMessageParams, error) {
	var msgs []*SamplingMessage
	for _, m := range p.Messages {
		if len(m.Content) > 1 {
			return nil, fmt.Errorf("message has %d content blocks; use CreateMessageWithToolsHandler to support multiple content", len(m.Content))
		}
		var content Content
		if len(m.Content) > 0 {
			content = m.Content[0]
		}
		msgs = append(msgs, &SamplingMessage{Content: content, Role: m.Role})
	}
	return &CreateMessageParams{
		Meta:             p.Meta,
		IncludeContext:   p.IncludeContext,
		MaxTokens:        p.MaxTokens,
		Messages:         msgs,
		Metadata:         p.Metadata,
		ModelPreferences: p.ModelPreferences,
		StopSequences:    p.StopSequences,
		SystemPrompt:     p.SystemPrompt,
		Temperature:      p.Temperature,
	}, nil
}

// SamplingMessage is a single turn in a sampling conversation. Assistant
// turns carry text, image, audio, or tool_use content; user turns carry
// text, image, audio, or tool_result content.
type SamplingMessage struct {
	Content Content `json:"content"`
	Role    Role    `json:"role"`
}

func (m *SamplingMessage) UnmarshalJSON(data []byte) error {
	type msg SamplingMessage // avoid recursion
	var wire struct {
		msg
		Content *wireContent `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	var err error
	if wire.msg.Content, err = contentFromWire(wire.Content, map[string]bool{"text": true, "image": true, "audio": true, "tool_use": true, "tool_result": true}); err != nil {
		return err
	}
	*m = SamplingMessage(wire.msg)
	return nil
}

// SamplingMessageV2 is SamplingMessage with array content, for the
// 2025-11-25 spec revision that allows several content blocks per message
// (parallel tool calls). It will replace SamplingMessage in v2 of this
// module.
//
// A single-element Content marshals as a bare object, not a one-element
// array, for compatibility with pre-2025-11-25 peers; a bare object
// unmarshals back into a one-element slice.
type SamplingMessageV2 struct {
	Content []Content `json:"content"`
	Role    Role      `json:"role"`
}

var samplingWithToolsAllow = map[string]bool{
	"text": true, "image": true, "audio": true,
	"tool_use": true, "tool_result": true,
}

func (m *SamplingMessageV2) MarshalJSON() ([]byte, error) {
	if len(m.Content) == 1 {
		return json.Marshal(&SamplingMessage{Content: m.Content[0], Role: m.Role})
	}
	type msg SamplingMessageV2 // avoid recursion
	return json.Marshal((*msg)(m))
}

func (m *SamplingMessageV2) UnmarshalJSON(data []byte) error {
	type msg SamplingMessageV2 // avoid recursion
	var wire struct {
		msg
		Content json.RawMessage `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	var err error
	if wire.msg.Content, err = unmarshalContent(wire.Content, samplingWithToolsAllow); err != nil {
		return err
	}
	*m = SamplingMessageV2(wire.msg)
	return nil
}

// CreateMessageResult is the client's answer to a sampling/createMessage
// request. Before returning it, a well-behaved client shows the user the
// sampled message so they can veto sending it onward (human in the loop).
type CreateMessageResult struct {
	Meta    `json:"_meta,omitempty"`
	Content Content `json:"content"`
	Model   string  `json:"model"`
	Role    Role    `json:"role"`
	// StopReason is one of "endTurn", "stopSequence", "maxTokens",
	// "toolUse", or an implementation-specific value.
	StopReason string `json:"stopReason,omitempty"`
}

func (*CreateMessageResult) isResult() {}

func (r *CreateMessageResult) UnmarshalJSON(data []byte) error {
	type result CreateMessageResult // avoid recursion
	var wire struct {
		result
		Content *wireContent `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	var err error
	if wire.result.Content, err = contentFromWire(wire.Content, map[string]bool{"text": true, "image": true, "audio": true}); err != nil {
		return err
	}
	*r = CreateMessageResult(wire.result)
	return nil
}

// CreateMessageWithToolsResult answers a request that included tools.
// Content is a slice so a response can return several tool_use blocks for
// parallel tool calls.
//
// A single JSON content object unmarshals into a one-element slice, for
// clients that only ever return one block.
type CreateMessageWithToolsResult struct {
	Meta       `json:"_meta,omitempty"`
	Content    []Content `json:"content"`
	Model      string    `json:"model"`
	Role       Role      `json:"role"`
	StopReason string    `json:"stopReason,omitempty"`
}

// createMessageWithToolsResultAllow excludes tool_result: that content
// kind is only valid on the user side of the conversation.
var createMessageWithToolsResultAllow = map[string]bool{
	"text": true, "image": true, "audio": true,
	"tool_use": true,
}

func (*CreateMessageWithToolsResult) isResult() {}

func (r *CreateMessageWithToolsResult) MarshalJSON() ([]byte, error) {
	if len(r.Content) == 1 {
		return json.Marshal(&CreateMessageResult{
			Meta:       r.Meta,
			Content:    r.Content[0],
			Model:      r.Model,
			Role:       r.Role,
			StopReason: r.StopReason,
		})
	}
	type result CreateMessageWithToolsResult // avoid recursion
	return json.Marshal((*result)(r))
}

func (r *CreateMessageWithToolsResult) UnmarshalJSON(data []byte) error {
	type result CreateMessageWithToolsResult // avoid recursion
	var wire struct {
		result
		Content json.RawMessage `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	var err error
	if wire.result.Content, err = unmarshalContent(wire.Content, createMessageWithToolsResultAllow); err != nil {
		return err
	}
	*r = CreateMessageWithToolsResult(wire.result)
	return nil
}

// toWithTools upgrades a CreateMessageResult to CreateMessageWithToolsResult.
func (r *CreateMessageResult) toWithTools() *CreateMessageWithToolsResult {
	var content []Content
	if r.Content != nil {
		content = []Content{r.Content}
	}
	return &CreateMessageWithToolsResult{
		Meta:       r.Meta,
		Content:    content,
		Model:      r.Model,
		Role:       r.Role,
		StopReason: r.StopReason,
	}
}

// ---------------------------------------------------------------------
// Elicitation
// ---------------------------------------------------------------------

// ElicitParams asks the client to collect additional information from the
// user, either via a form matching a schema or by directing them to a URL.
type ElicitParams struct {
	Meta `json:"_meta,omitempty"`
	// Mode is inferred from the other fields when unset.
	Mode    string `json:"mode"`
	Message string `json:"message"`
	// RequestedSchema is a flat (non-nested), top-level-properties-only
	// JSON Schema describing the requested form fields. Validation uses
	// github.com/google/jsonschema-go, which supports draft 2020-12. Only
	// meaningful for "form" elicitation.
	//
	// On the client side, holds the default map[string]any unmarshaling.
	RequestedSchema any `json:"requestedSchema,omitempty"`
	// URL is only used for "url" elicitation.
	URL string `json:"url,omitempty"`
	// ElicitationID is only used for "url" elicitation.
	ElicitationID string `json:"elicitationId,omitempty"`
}

func (x *ElicitParams) isParams()              {}
func (x *ElicitParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ElicitParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ElicitResult is the client's response to an elicitation/create request.
type ElicitResult struct {
	Meta `json:"_meta,omitempty"`
	// Action is "accept" (user submitted/confirmed), "decline" (explicit
	// no), or "cancel" (dismissed without choosing).
	Action string `json:"action"`
	// Content holds form values matching RequestedSchema; present only
	// when Action is "accept".
	Content map[string]any `json:"content,omitempty"`
}

func (*ElicitResult) isResult() {}

// ElicitationCompleteParams tells the client an out-of-band (URL-mode)
// elicitation has finished.
type ElicitationCompleteParams struct {
	Meta `json:"_meta,omitempty"`
	// ElicitationID matches the originating elicitation/create request.
	ElicitationID string `json:"elicitationId"`
}

func (x *ElicitationCompleteParams) isParams()              {}
func (x *ElicitationCompleteParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ElicitationCompleteParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ---------------------------------------------------------------------
// Roots
// ---------------------------------------------------------------------

type ListRootsParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *ListRootsParams) isParams()              {}
func (x *ListRootsParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ListRootsParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ListRootsResult answers a roots/list request with the client's current
// set of root directories or files.
type ListRootsResult struct {
	Meta  `json:"_meta,omitempty"`
	Roots []*Root `json:"roots"`
}

func (*ListRootsResult) isResult() {}

// Root is a directory or file the server may operate on.
type Root struct {
	Meta `json:"_meta,omitempty"`
	// Name, if set, is a human-readable label for display.
	Name string `json:"name,omitempty"`
	// URI must currently use the file:// scheme; other schemes may be
	// allowed in a future protocol revision.
	URI string `json:"uri"`
}

type RootsListChangedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *RootsListChangedParams) isParams()              {}
func (x *RootsListChangedParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *RootsListChangedParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ---------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------

// LoggingLevel is an RFC 5424 syslog severity.
// https://datatracker.ietf.org/doc/html/rfc5424#section-6.2.1
type LoggingLevel string

type SetLoggingLevelParams struct {
	Meta `json:"_meta,omitempty"`
	// Level is the minimum severity the client now wants delivered as
	// notifications/message.
	Level LoggingLevel `json:"level"`
}

func (x *SetLoggingLevelParams) isParams()              {}
func (x *SetLoggingLevelParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *SetLoggingLevelParams) SetProgressToken(t any) { setProgressToken(x, t) }

type LoggingMessageParams struct {
	Meta `json:"_meta,omitempty"`
	// Data is any JSON-serializable log payload, not necessarily a string.
	Data   any          `json:"data"`
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitempty"`
}

func (x *LoggingMessageParams) isParams()              {}
func (x *LoggingMessageParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *LoggingMessageParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ---------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------

type CompleteParamsArgument struct {
	Name string `json:"name"`
	// Value is matched against completion candidates.
	Value string `json:"value"`
}

// CompleteContext carries variables already resolved earlier in a URI
// template or prompt, to narrow completion suggestions.
type CompleteContext struct {
	Arguments map[string]string `json:"arguments,omitempty"`
}

// CompleteReference names what's being completed: a prompt (by Name) or a
// resource (by URI).
type CompleteReference struct {
	Type string `json:"type"`
	// Name applies when Type is "ref/prompt".
	Name string `json:"name,omitempty"`
	// URI applies when Type is "ref/resource".
	URI string `json:"uri,omitempty"`
}

func (r *CompleteReference) UnmarshalJSON(data []byte) error {
	type wireCompleteReference CompleteReference // for naive unmarshaling
	var r2 wireCompleteReference
	if err := internaljson.Unmarshal(data, &r2); err != nil {
		return err
	}
	switch r2.Type {
	case "ref/prompt", "ref/resource":
		if r2.Type == "ref/prompt" && r2.URI != "" {
			return fmt.Errorf("reference of type %q must not have a URI set", r2.Type)
		}
		if r2.Type == "ref/resource" && r2.Name != "" {
			return fmt.Errorf("reference of type %q must not have a Name set", r2.Type)
		}
	default:
		return fmt.Errorf("unrecognized content type %q", r2.Type)
	}
	*r = CompleteReference(r2)
	return nil
}

func (r *CompleteReference) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case "ref/prompt":
		if r.URI != "" {
			return nil, fmt.Errorf("reference of type %q must not have a URI set for marshalling", r.Type)
		}
	case "ref/resource":
		if r.Name != "" {
			return nil, fmt.Errorf("reference of type %q must not have a Name set for marshalling", r.Type)
		}
	default:
		return nil, fmt.Errorf("unrecognized reference type %q for marshalling", r.Type)
	}
	type wireReference CompleteReference
	return json.Marshal(wireReference(*r))
}

type CompleteParams struct {
	Meta     `json:"_meta,omitempty"`
	Argument CompleteParamsArgument `json:"argument"`
	Context  *CompleteContext       `json:"context,omitempty"`
	Ref      *CompleteReference     `json:"ref"`
}

func (x *CompleteParams) isParams()              {}
func (x *CompleteParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *CompleteParams) SetProgressToken(t any) { setProgressToken(x, t) }

type CompletionResultDetails struct {
	// HasMore indicates more matches exist beyond Values.
	HasMore bool     `json:"hasMore,omitempty"`
	Total   int      `json:"total,omitempty"`
	Values  []string `json:"values"`
}

type CompleteResult struct {
	Meta       `json:"_meta,omitempty"`
	Completion CompletionResultDetails `json:"completion"`
}

func (*CompleteResult) isResult() {}

// ---------------------------------------------------------------------
// Method names
// ---------------------------------------------------------------------

const (
	methodCallTool                  = "tools/call"
	notificationCancelled           = "notifications/cancelled"
	methodComplete                  = "completion/complete"
	methodCreateMessage             = "sampling/createMessage"
	methodElicit                    = "elicitation/create"
	notificationElicitationComplete = "notifications/elicitation/complete"
	methodGetPrompt                 = "prompts/get"
	methodInitialize                = "initialize"
	notificationInitialized         = "notifications/initialized"
	methodListPrompts               = "prompts/list"
	methodListResourceTemplates     = "resources/templates/list"
	methodListResources             = "resources/list"
	methodListRoots                 = "roots/list"
	methodListTools                 = "tools/list"
	notificationLoggingMessage      = "notifications/message"
	methodPing                      = "ping"
	notificationProgress            = "notifications/progress"
	notificationPromptListChanged   = "notifications/prompts/list_changed"
	methodReadResource              = "resources/read"
	notificationResourceListChanged = "notifications/resources/list_changed"
	notificationResourceUpdated     = "notifications/resources/updated"
	notificationRootsListChanged    = "notifications/roots/list_changed"
	methodSetLevel                  = "logging/setLevel"
	methodSubscribe                 = "resources/subscribe"
	notificationToolListChanged     = "notifications/tools/list_changed"
	methodUnsubscribe               = "resources/unsubscribe"
	methodGetTask                   = "tasks/get"
	methodListTasks                 = "tasks/list"
	methodCancelTask                = "tasks/cancel"
	methodTaskResult                = "tasks/result"
	notificationTaskStatus          = "notifications/tasks/status"
)
