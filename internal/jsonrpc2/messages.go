// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the low-level JSON-RPC 2.0 message envelope
// and framing shared by the mcp package's transports.
package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ID is a request identifier, which the spec defines to be a string,
// integer, or null.
// https://www.jsonrpc.org/specification#request_object
type ID struct {
	value any
}

// MakeID coerces the given Go value to an ID. The value is assumed to be the
// default JSON unmarshaling of a request identifier: nil, float64, or
// string.
func MakeID(v any) (ID, error) {
	switch v := v.(type) {
	case nil:
		return ID{}, nil
	case float64:
		return Int64ID(int64(v)), nil
	case string:
		return StringID(v), nil
	}
	return ID{}, fmt.Errorf("%w: invalid ID type %T", ErrParse, v)
}

// StringID creates a new string request identifier.
func StringID(s string) ID { return ID{value: s} }

// Int64ID creates a new integer request identifier.
func Int64ID(i int64) ID { return ID{value: i} }

// IsValid reports whether the ID is a valid identifier. The zero ID is
// invalid.
func (id ID) IsValid() bool { return id.value != nil }

// Raw returns the underlying value of the ID: nil, int64, or string.
func (id ID) Raw() any { return id.value }

func (id ID) String() string {
	switch v := id.value.(type) {
	case nil:
		return ""
	case int64:
		return fmt.Sprintf("%d", v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Message is the interface satisfied by all jsonrpc2 message types. They
// share no common functionality, but are a closed set of concrete types
// allowed to implement this interface: *Request and *Response.
type Message interface {
	// marshal builds the wire form from the API form.
	// It is unexported, which makes the set of Message implementations
	// closed.
	marshal(to *wireCombined)
}

// Request is a Message sent to a peer to invoke behavior. If it has an ID
// it is a call; otherwise it is a notification.
type Request struct {
	// ID of this request, used to tie the Response back to the request.
	// It is the zero ID for notifications.
	ID ID
	// Method names the behavior to invoke.
	Method string
	// Params holds the method parameters, either a JSON object or array.
	Params json.RawMessage
}

// IsCall reports whether the request expects a response.
func (msg *Request) IsCall() bool { return msg.ID.IsValid() }

func (msg *Request) marshal(to *wireCombined) {
	to.ID = msg.ID.value
	to.Method = msg.Method
	to.Params = msg.Params
}

// Response is a Message replying to a call Request. It carries the same ID
// as the call it answers.
type Response struct {
	// Result is the content of a successful response.
	Result json.RawMessage
	// Error is set only if the call failed.
	Error error
	// ID of the request this is a response to.
	ID ID
}

func (msg *Response) marshal(to *wireCombined) {
	to.ID = msg.ID.value
	to.Error = toWireError(msg.Error)
	to.Result = msg.Result
}

func toWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	if werr, ok := err.(*WireError); ok {
		return werr
	}
	result := &WireError{Message: err.Error()}
	var wrapped *WireError
	if errors.As(err, &wrapped) {
		// Preserve the code of a wrapped wire error, but keep the outer
		// message so wrapping context (fmt.Errorf("%w: ...")) isn't lost.
		result.Code = wrapped.Code
	}
	return result
}

// NewNotification constructs a Request with no ID for the given method and
// parameters.
func NewNotification(method string, params any) (*Request, error) {
	p, err := marshalToRaw(params)
	return &Request{Method: method, Params: p}, err
}

// NewCall constructs a Request expecting a response, for the given id,
// method and parameters.
func NewCall(id ID, method string, params any) (*Request, error) {
	p, err := marshalToRaw(params)
	return &Request{ID: id, Method: method, Params: p}, err
}

// NewResponse constructs a Response replying to id with the given result or
// error. Both are stored as given: a non-nil result is marshaled even when
// rerr is non-nil.
func NewResponse(id ID, result any, rerr error) (*Response, error) {
	r, err := marshalToRaw(result)
	return &Response{ID: id, Result: r, Error: rerr}, err
}

// EncodeMessage marshals msg into its wire form.
func EncodeMessage(msg Message) ([]byte, error) {
	wire := wireCombined{VersionTag: wireVersion}
	msg.marshal(&wire)
	data, err := json.Marshal(&wire)
	if err != nil {
		return data, fmt.Errorf("marshaling jsonrpc message: %w", err)
	}
	return data, nil
}

// EncodeIndent is like EncodeMessage but honors a prefix and indent, for
// debug logging and golden test output.
func EncodeIndent(msg Message, prefix, indent string) ([]byte, error) {
	wire := wireCombined{VersionTag: wireVersion}
	msg.marshal(&wire)
	data, err := json.MarshalIndent(&wire, prefix, indent)
	if err != nil {
		return data, fmt.Errorf("marshaling jsonrpc message: %w", err)
	}
	return data, nil
}

// DecodeMessage unmarshals data, which must hold a single JSON-RPC message,
// into a Request or Response.
func DecodeMessage(data []byte) (Message, error) {
	msg := wireCombined{}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshaling jsonrpc message: %w", err)
	}
	if err := checkObjectCasing(data, nil); err != nil {
		return nil, fmt.Errorf("unmarshaling jsonrpc message: %w", err)
	}
	if msg.VersionTag != wireVersion {
		return nil, fmt.Errorf("invalid message version tag %s, expected %s", msg.VersionTag, wireVersion)
	}
	id, err := MakeID(msg.ID)
	if err != nil {
		return nil, err
	}
	if msg.Method != "" {
		return &Request{Method: msg.Method, ID: id, Params: msg.Params}, nil
	}
	if !id.IsValid() {
		return nil, ErrInvalidRequest
	}
	resp := &Response{ID: id, Result: msg.Result}
	if msg.Error != nil {
		resp.Error = msg.Error
	}
	return resp, nil
}

func marshalToRaw(obj any) (json.RawMessage, error) {
	if obj == nil {
		return nil, nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// wireVersion is the only value allowed in the JSON-RPC "jsonrpc" field.
const wireVersion = "2.0"

// wireCombined has the fields of both Request and Response, as sent over
// the wire. Combining the two lets Unmarshal figure out which one is in
// play before choosing a concrete type.
type wireCombined struct {
	VersionTag string          `json:"jsonrpc"`
	ID         any             `json:"id,omitempty"`
	Method     string          `json:"method,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *WireError      `json:"error,omitempty"`
}

// WireError represents a JSON-RPC error object, as sent over the wire.
type WireError struct {
	// Code is a machine-readable identifier of the error type.
	Code int64 `json:"code"`
	// Message is a short human-readable description of the error.
	Message string `json:"message"`
	// Data holds additional, application-defined information about the
	// error.
	Data json.RawMessage `json:"data,omitempty"`
}

func (err *WireError) Error() string {
	return err.Message
}
