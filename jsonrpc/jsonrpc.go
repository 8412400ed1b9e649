// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc exposes the wire types of the JSON-RPC 2.0 messages used
// by the MCP protocol: requests, responses, notifications, identifiers and
// errors. Transports and handler code written against the mcp package deal
// in these types at their boundary.
package jsonrpc

import (
	"io"

	"github.com/go-mcp/mcpengine/internal/jsonrpc2"
)

// Message is the interface satisfied by Request and Response.
type Message = jsonrpc2.Message

// Request is a call or notification.
type Request = jsonrpc2.Request

// Response replies to a call Request.
type Response = jsonrpc2.Response

// ID is a JSON-RPC request identifier.
type ID = jsonrpc2.ID

// Error is a JSON-RPC error object.
type Error = jsonrpc2.WireError

// The five reserved JSON-RPC error codes, matching the untyped int constants
// of [jsonrpc2], re-exported for use outside the module's internal tree.
const (
	CodeParseError     = jsonrpc2.CodeParseError
	CodeInvalidRequest = jsonrpc2.CodeInvalidRequest
	CodeMethodNotFound = jsonrpc2.CodeMethodNotFound
	CodeInvalidParams  = jsonrpc2.CodeInvalidParams
	CodeInternalError  = jsonrpc2.CodeInternalError
)

// MakeID coerces a decoded JSON value (nil, float64, or string) into an ID.
func MakeID(v any) (ID, error) { return jsonrpc2.MakeID(v) }

// StringID creates a new string request identifier.
func StringID(s string) ID { return jsonrpc2.StringID(s) }

// Int64ID creates a new integer request identifier.
func Int64ID(i int64) ID { return jsonrpc2.Int64ID(i) }

// NewCall constructs a Request expecting a response.
func NewCall(id ID, method string, params any) (*Request, error) {
	return jsonrpc2.NewCall(id, method, params)
}

// NewNotification constructs a Request with no ID.
func NewNotification(method string, params any) (*Request, error) {
	return jsonrpc2.NewNotification(method, params)
}

// NewResponse constructs a Response replying to id.
func NewResponse(id ID, result any, rerr error) (*Response, error) {
	return jsonrpc2.NewResponse(id, result, rerr)
}

// EncodeMessage marshals msg into its wire form.
func EncodeMessage(msg Message) ([]byte, error) { return jsonrpc2.EncodeMessage(msg) }

// EncodeMessageTo marshals msg and writes it to w.
func EncodeMessageTo(w io.Writer, msg Message) error {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DecodeMessage unmarshals data, which must hold a single JSON-RPC message.
func DecodeMessage(data []byte) (Message, error) { return jsonrpc2.DecodeMessage(data) }

// A Framer wraps byte streams into message Readers and Writers.
type Framer = jsonrpc2.Framer

// NDJSONFramer frames messages as newline-delimited JSON.
func NDJSONFramer() Framer { return jsonrpc2.NDJSONFramer() }

// RawFramer frames messages with no separator, relying on JSON decoder
// boundary detection.
func RawFramer() Framer { return jsonrpc2.RawFramer() }
