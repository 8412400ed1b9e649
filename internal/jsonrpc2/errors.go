// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

// Reserved JSON-RPC 2.0 error codes.
// https://www.jsonrpc.org/specification#error_object
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeServerClosing is returned for calls and notifications sent to a
	// connection that is shutting down.
	CodeServerClosing = -32084
	// CodeUnhandledMethod is returned when a method has no registered
	// handler and no catch-all handler is configured.
	CodeUnhandledMethod = -32085
	// CodeCancelled is used for requests that terminated because of a
	// client-requested or context cancellation.
	CodeCancelled = -32086
)

// Sentinel errors for the standard JSON-RPC error codes. Wrap one with
// fmt.Errorf("%w: ...", ErrX) to add detail while preserving the code for
// errors.As(&*WireError).
var (
	ErrParse          error = &WireError{Code: CodeParseError, Message: "parse error"}
	ErrInvalidRequest error = &WireError{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrMethodNotFound error = &WireError{Code: CodeMethodNotFound, Message: "method not found"}
	ErrInvalidParams  error = &WireError{Code: CodeInvalidParams, Message: "invalid params"}
	ErrInternal       error = &WireError{Code: CodeInternalError, Message: "internal error"}

	// ErrServerClosing indicates that the connection is being closed or has
	// been closed.
	ErrServerClosing error = &WireError{Code: CodeServerClosing, Message: "connection is closing"}
	// ErrNotHandled indicates that no handler processed a given method. It
	// is distinct from ErrMethodNotFound: it is used internally to signal
	// that a layer of middleware should try the next handler, and is never
	// itself sent over the wire unwrapped.
	ErrNotHandled error = &WireError{Code: CodeUnhandledMethod, Message: "method not handled"}
	// ErrCancelled is returned for requests cancelled via
	// notifications/cancelled or context cancellation.
	ErrCancelled error = &WireError{Code: CodeCancelled, Message: "request cancelled"}
)
