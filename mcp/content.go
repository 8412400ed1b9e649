// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"encoding/json"
	"fmt"

	internaljson "github.com/go-mcp/mcpengine/internal/json"
)

// A Content value is one block of a tool result, resource, or sampling
// message: a [TextContent], [ImageContent], [AudioContent], [ResourceLink],
// [EmbeddedResource], [ToolUseContent], or [ToolResultContent].
//
// [ToolUseContent] and [ToolResultContent] only ever appear inside sampling
// messages (CreateMessageParams/CreateMessageResult) — they are not valid in
// a tool call result.
type Content interface {
	MarshalJSON() ([]byte, error)
	fromWire(*wireContent)
}

// TextContent is plain text.
type TextContent struct {
	Text        string
	Meta        Meta
	Annotations *Annotations
}

func (c *TextContent) MarshalJSON() ([]byte, error) {
	// Marshaled by hand, rather than via wireContent, so the required "text"
	// field is always present even when c.Text is "".
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Text        string       `json:"text"`
		Meta        Meta         `json:"_meta,omitempty"`
		Annotations *Annotations `json:"annotations,omitempty"`
	}{
		Type:        "text",
		Text:        c.Text,
		Meta:        c.Meta,
		Annotations: c.Annotations,
	})
}

func (c *TextContent) fromWire(wire *wireContent) {
	c.Text = wire.Text
	c.Meta = wire.Meta
	c.Annotations = wire.Annotations
}

// ImageContent carries base64-encoded image data.
type ImageContent struct {
	Meta        Meta
	Annotations *Annotations
	Data        []byte // base64-encoded
	MIMEType    string
}

func (c *ImageContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(newBinaryContentWire("image", c.MIMEType, c.Data, c.Meta, c.Annotations))
}

func (c *ImageContent) fromWire(wire *wireContent) {
	c.MIMEType = wire.MIMEType
	c.Data = wire.Data
	c.Meta = wire.Meta
	c.Annotations = wire.Annotations
}

// AudioContent carries base64-encoded audio data.
type AudioContent struct {
	Data        []byte
	MIMEType    string
	Meta        Meta
	Annotations *Annotations
}

func (c AudioContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(newBinaryContentWire("audio", c.MIMEType, c.Data, c.Meta, c.Annotations))
}

func (c *AudioContent) fromWire(wire *wireContent) {
	c.MIMEType = wire.MIMEType
	c.Data = wire.Data
	c.Meta = wire.Meta
	c.Annotations = wire.Annotations
}

// binaryContentWire is the shared wire shape of ImageContent and
// AudioContent: both require "mimeType" and "data" even when the value is
// the zero value, so neither can be marshaled through the general-purpose
// wireContent (whose binary fields are omitempty).
type binaryContentWire struct {
	Type        string       `json:"type"`
	MIMEType    string       `json:"mimeType"`
	Data        []byte       `json:"data"`
	Meta        Meta         `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

func newBinaryContentWire(typ, mimeType string, data []byte, meta Meta, annotations *Annotations) binaryContentWire {
	if data == nil {
		data = []byte{} // avoid marshaling JSON null for a required field
	}
	return binaryContentWire{
		Type:        typ,
		MIMEType:    mimeType,
		Data:        data,
		Meta:        meta,
		Annotations: annotations,
	}
}

// ResourceLink points at a resource without embedding its contents.
type ResourceLink struct {
	URI         string
	Name        string
	Title       string
	Description string
	MIMEType    string
	Size        *int64
	Meta        Meta
	Annotations *Annotations
	// Icons for the resource link, if any.
	Icons []Icon `json:"icons,omitempty"`
}

func (c *ResourceLink) MarshalJSON() ([]byte, error) {
	return json.Marshal(&wireContent{
		Type:        "resource_link",
		URI:         c.URI,
		Name:        c.Name,
		Title:       c.Title,
		Description: c.Description,
		MIMEType:    c.MIMEType,
		Size:        c.Size,
		Meta:        c.Meta,
		Annotations: c.Annotations,
		Icons:       c.Icons,
	})
}

func (c *ResourceLink) fromWire(wire *wireContent) {
	c.URI = wire.URI
	c.Name = wire.Name
	c.Title = wire.Title
	c.Description = wire.Description
	c.MIMEType = wire.MIMEType
	c.Size = wire.Size
	c.Meta = wire.Meta
	c.Annotations = wire.Annotations
	c.Icons = wire.Icons
}

// EmbeddedResource embeds the contents of a resource inline.
type EmbeddedResource struct {
	Resource    *ResourceContents
	Meta        Meta
	Annotations *Annotations
}

func (c *EmbeddedResource) MarshalJSON() ([]byte, error) {
	return json.Marshal(&wireContent{
		Type:        "resource",
		Resource:    c.Resource,
		Meta:        c.Meta,
		Annotations: c.Annotations,
	})
}

func (c *EmbeddedResource) fromWire(wire *wireContent) {
	c.Resource = wire.Resource
	c.Meta = wire.Meta
	c.Annotations = wire.Annotations
}

// ToolUseContent is a request, embedded in a sampling message, for the
// recipient to invoke one of its own tools.
type ToolUseContent struct {
	// ID identifies this invocation, matched against a later
	// ToolResultContent's ToolUseID.
	ID string
	// Name is the tool to invoke.
	Name string
	// Input holds the call's arguments as a JSON object.
	Input map[string]any
	Meta  Meta
}

func (c *ToolUseContent) MarshalJSON() ([]byte, error) {
	input := c.Input
	if input == nil {
		input = map[string]any{} // "input" is required; never emit null
	}
	return json.Marshal(struct {
		Type  string         `json:"type"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
		Meta  Meta           `json:"_meta,omitempty"`
	}{
		Type:  "tool_use",
		ID:    c.ID,
		Name:  c.Name,
		Input: input,
		Meta:  c.Meta,
	})
}

func (c *ToolUseContent) fromWire(wire *wireContent) {
	c.ID = wire.ID
	c.Name = wire.Name
	c.Input = wire.Input
	c.Meta = wire.Meta
}

// ToolResultContent reports the outcome of invoking a tool requested by a
// preceding ToolUseContent, and is only valid inside a sampling message
// with role "user".
type ToolResultContent struct {
	// ToolUseID matches the ID of the triggering ToolUseContent.
	ToolUseID string
	// Content is the call's unstructured result.
	Content []Content
	// StructuredContent is an optional structured result, as a JSON object.
	StructuredContent any
	// IsError reports whether the tool invocation ended in an error.
	IsError bool
	Meta    Meta
}

func (c *ToolResultContent) MarshalJSON() ([]byte, error) {
	nested, err := marshalContentList(c.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type              string         `json:"type"`
		ToolUseID         string         `json:"toolUseId"`
		Content           []*wireContent `json:"content"`
		StructuredContent any            `json:"structuredContent,omitempty"`
		IsError           bool           `json:"isError,omitempty"`
		Meta              Meta           `json:"_meta,omitempty"`
	}{
		Type:              "tool_result",
		ToolUseID:         c.ToolUseID,
		Content:           nested,
		StructuredContent: c.StructuredContent,
		IsError:           c.IsError,
		Meta:              c.Meta,
	})
}

// marshalContentList marshals each element of items to its wire form. A nil
// or empty result is normalized to an empty (non-nil) slice, since "content"
// is a required array field on the wire.
func marshalContentList(items []Content) ([]*wireContent, error) {
	wires := make([]*wireContent, 0, len(items))
	for _, item := range items {
		data, err := item.MarshalJSON()
		if err != nil {
			return nil, err
		}
		var w wireContent
		if err := internaljson.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		wires = append(wires, &w)
	}
	return wires, nil
}

func (c *ToolResultContent) fromWire(wire *wireContent) {
	c.ToolUseID = wire.ToolUseID
	c.StructuredContent = wire.StructuredContent
	c.IsError = wire.IsError
	c.Meta = wire.Meta
	// wire.NestedContent is decoded separately, in contentFromWire, since it
	// needs its own recursive call into contentsFromWire.
}

// ResourceContents holds the contents of a single resource or sub-resource.
type ResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     []byte `json:"blob,omitzero"`
	Meta     Meta   `json:"_meta,omitempty"`
}

// wireContent is the on-the-wire union of every Content variant. Its Type
// field says which variant it holds; the comments below say which
// variant(s) populate each of the remaining fields.
type wireContent struct {
	Type              string            `json:"type"`
	Text              string            `json:"text,omitempty"`              // TextContent
	MIMEType          string            `json:"mimeType,omitempty"`          // ImageContent, AudioContent, ResourceLink
	Data              []byte            `json:"data,omitempty"`              // ImageContent, AudioContent
	Resource          *ResourceContents `json:"resource,omitempty"`          // EmbeddedResource
	URI               string            `json:"uri,omitempty"`               // ResourceLink
	Name              string            `json:"name,omitempty"`              // ResourceLink, ToolUseContent
	Title             string            `json:"title,omitempty"`             // ResourceLink
	Description       string            `json:"description,omitempty"`       // ResourceLink
	Size              *int64            `json:"size,omitempty"`              // ResourceLink
	Meta              Meta              `json:"_meta,omitempty"`             // all types
	Annotations       *Annotations      `json:"annotations,omitempty"`       // all types except ToolUseContent, ToolResultContent
	Icons             []Icon            `json:"icons,omitempty"`             // ResourceLink
	ID                string            `json:"id,omitempty"`                // ToolUseContent
	Input             map[string]any    `json:"input,omitempty"`             // ToolUseContent
	ToolUseID         string            `json:"toolUseId,omitempty"`         // ToolResultContent
	NestedContent     []*wireContent    `json:"content,omitempty"`           // ToolResultContent
	StructuredContent any               `json:"structuredContent,omitempty"` // ToolResultContent
	IsError           bool              `json:"isError,omitempty"`           // ToolResultContent
}

// contentKindsForToolResult is the set of content types a ToolResultContent
// may nest, mirroring what a plain tool call result allows.
var contentKindsForToolResult = map[string]bool{
	"text": true, "image": true, "audio": true,
	"resource_link": true, "resource": true,
}

// unmarshalContent decodes raw as either a single content object or a JSON
// array of them, returning a slice either way (a lone object becomes a
// one-element slice). allow, if non-nil, restricts which "type" values are
// accepted.
func unmarshalContent(raw json.RawMessage, allow map[string]bool) ([]Content, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("nil content")
	}
	var wires []*wireContent
	if err := internaljson.Unmarshal(raw, &wires); err == nil {
		return contentsFromWire(wires, allow)
	}
	var wire wireContent
	if err := internaljson.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	one, err := contentFromWire(&wire, allow)
	if err != nil {
		return nil, err
	}
	return []Content{one}, nil
}

func contentsFromWire(wires []*wireContent, allow map[string]bool) ([]Content, error) {
	items := make([]Content, 0, len(wires))
	for _, wire := range wires {
		item, err := contentFromWire(wire, allow)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func contentFromWire(wire *wireContent, allow map[string]bool) (Content, error) {
	if wire == nil {
		return nil, fmt.Errorf("nil content")
	}
	if allow != nil && !allow[wire.Type] {
		return nil, fmt.Errorf("invalid content type %q", wire.Type)
	}

	var c Content
	switch wire.Type {
	case "text":
		c = new(TextContent)
	case "image":
		c = new(ImageContent)
	case "audio":
		c = new(AudioContent)
	case "resource_link":
		c = new(ResourceLink)
	case "resource":
		c = new(EmbeddedResource)
	case "tool_use":
		c = new(ToolUseContent)
	case "tool_result":
		tr := new(ToolResultContent)
		tr.fromWire(wire)
		if wire.NestedContent != nil {
			nested, err := contentsFromWire(wire.NestedContent, contentKindsForToolResult)
			if err != nil {
				return nil, fmt.Errorf("tool_result nested content: %w", err)
			}
			tr.Content = nested
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unrecognized content type %q", wire.Type)
	}
	c.fromWire(wire)
	return c, nil
}
