// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file holds code shared between client and server: the generic
// method-dispatch machinery, the Params/Result marker interfaces, and the
// Meta type used for protocol-reserved metadata.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"slices"
	"strings"
	"time"

	internaljson "github.com/go-mcp/mcpengine/internal/json"
	"github.com/go-mcp/mcpengine/internal/jsonrpc2"
)

// Meta holds protocol-reserved metadata attached to params and results via
// the "_meta" wire field. It is embedded, not wrapped, so that callers can
// read and write it like an ordinary map.
type Meta map[string]any

// GetMeta returns the metadata map, or nil if none was set.
func (m Meta) GetMeta() Meta { return m }

// SetMeta replaces the metadata map.
func (m *Meta) SetMeta(v Meta) { *m = v }

const progressTokenKey = "progressToken"

// getProgressToken extracts the progress token from the embedded Meta field
// of a params struct, via reflection, so that every Params type need not
// hand-write the plumbing.
func getProgressToken(x any) any {
	mf := metaField(x)
	if !mf.IsValid() {
		return nil
	}
	m, _ := mf.Interface().(Meta)
	if m == nil {
		return nil
	}
	return m[progressTokenKey]
}

// setProgressToken sets the progress token on the embedded Meta field of a
// params struct.
func setProgressToken(x any, t any) {
	mf := metaField(x)
	if !mf.IsValid() || !mf.CanSet() {
		return
	}
	m, _ := mf.Interface().(Meta)
	if m == nil {
		m = Meta{}
	}
	m[progressTokenKey] = t
	mf.Set(reflect.ValueOf(m))
}

func metaField(x any) reflect.Value {
	v := reflect.ValueOf(x)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	return v.FieldByName("Meta")
}

// Params is the parameter (input) type for an MCP call or notification.
type Params interface {
	isParams()
	// GetProgressToken returns the progress token attached to the request,
	// or nil if none was set.
	GetProgressToken() any
	// SetProgressToken attaches a progress token to the request.
	SetProgressToken(any)
	// GetMeta returns the request's metadata map, promoted from the
	// embedded Meta field of every concrete Params type.
	GetMeta() Meta
}

// Result is the result of an MCP call.
type Result interface {
	isResult()
}

// emptyResult is returned by methods that have no meaningful result, such
// as ping and initialized. jsonrpc2 cannot send a nil success result, so an
// empty object is used instead.
type emptyResult struct {
	Meta `json:"_meta,omitempty"`
}

func (*emptyResult) isResult() {}

// ServerRequest is a request (or notification) sent to, or received by, a
// server, paired with the session it arrived on or will be sent over.
type ServerRequest[P Params] struct {
	Session *ServerSession
	Params  P
}

// ClientRequest is a request (or notification) sent to, or received by, a
// client, paired with the session it arrived on or will be sent over.
type ClientRequest[P Params] struct {
	Session *ClientSession
	Params  P
}

func newServerRequest[P Params](session *ServerSession, params P) *ServerRequest[P] {
	return &ServerRequest[P]{Session: session, Params: params}
}

func newClientRequest[P Params](session *ClientSession, params P) *ClientRequest[P] {
	return &ClientRequest[P]{Session: session, Params: params}
}

// A MethodHandler handles MCP messages. For methods, exactly one of the
// return values must be nil. For notifications, both must be nil.
type MethodHandler[S Session] func(ctx context.Context, s S, method string, params Params) (Result, error)

// methodHandler is a MethodHandler[Session] for some concrete session type.
// The underlying value is always a MethodHandler[*ClientSession] or a
// MethodHandler[*ServerSession]; using `any` here avoids a type cycle that
// would otherwise arise from Session referring back to methodHandler.
type methodHandler any

// Session is either a *ClientSession or a *ServerSession.
type Session interface {
	*ClientSession | *ServerSession

	sendingMethodInfos() map[string]methodInfo
	receivingMethodInfos() map[string]methodInfo
	sendingMethodHandler() methodHandler
	receivingMethodHandler() methodHandler
	getConn() *clientServerConn
}

// Middleware wraps a MethodHandler with additional behavior.
type Middleware[S Session] func(MethodHandler[S]) MethodHandler[S]

func addMiddleware[S Session](handlerp *MethodHandler[S], middleware []Middleware[S]) {
	for _, m := range slices.Backward(middleware) {
		*handlerp = m(*handlerp)
	}
}

// methodInfo describes how to send and receive a particular method.
type methodInfo struct {
	// unmarshalParams decodes wire params into a Params value, used on the
	// receiving side.
	unmarshalParams func(json.RawMessage) (Params, error)
	// handleMethod runs user code in response to a received call or
	// notification.
	handleMethod methodHandler
	// newResult constructs a pointer to a Result value, used on the sending
	// side to know what type to unmarshal a response into.
	newResult func() Result
}

// typedMethodHandler is a MethodHandler with concrete parameter and result
// types.
type typedMethodHandler[S Session, P Params, R Result] func(context.Context, S, P) (R, error)

func newMethodInfo[S Session, P Params, R Result](d typedMethodHandler[S, P, R]) methodInfo {
	return methodInfo{
		unmarshalParams: func(m json.RawMessage) (Params, error) {
			var p P
			if m != nil {
				if err := internaljson.Unmarshal(m, &p); err != nil {
					return nil, fmt.Errorf("unmarshaling %q into a %T: %w", m, p, err)
				}
			}
			return p, nil
		},
		handleMethod: MethodHandler[S](func(ctx context.Context, session S, _ string, params Params) (Result, error) {
			return d(ctx, session, params.(P))
		}),
		newResult: func() Result { return reflect.New(reflect.TypeFor[R]().Elem()).Interface().(R) },
	}
}

// serverMethod adapts a method on Server into a typedMethodHandler.
func serverMethod[P Params, R Result](f func(*Server, context.Context, *ServerSession, P) (R, error)) typedMethodHandler[*ServerSession, P, R] {
	return func(ctx context.Context, ss *ServerSession, p P) (R, error) {
		return f(ss.server, ctx, ss, p)
	}
}

// clientMethod adapts a method on Client into a typedMethodHandler.
func clientMethod[P Params, R Result](f func(*Client, context.Context, *ClientSession, P) (R, error)) typedMethodHandler[*ClientSession, P, R] {
	return func(ctx context.Context, cs *ClientSession, p P) (R, error) {
		return f(cs.client, ctx, cs, p)
	}
}

// sessionMethod adapts a method on a session into a typedMethodHandler.
func sessionMethod[S Session, P Params, R Result](f func(S, context.Context, P) (R, error)) typedMethodHandler[S, P, R] {
	return func(ctx context.Context, sess S, p P) (R, error) {
		return f(sess, ctx, p)
	}
}

// Reserved JSON-RPC error codes, re-exported at package level for
// convenience.
const (
	CodeParseError     = jsonrpc2.CodeParseError
	CodeInvalidRequest = jsonrpc2.CodeInvalidRequest
	CodeMethodNotFound = jsonrpc2.CodeMethodNotFound
	CodeInvalidParams  = jsonrpc2.CodeInvalidParams
	CodeInternalError  = jsonrpc2.CodeInternalError
)

// Non-standard, MCP-specific error codes.
const (
	// CodeResourceNotFound is returned when a client requests a resource
	// URI the server does not have.
	// See https://modelcontextprotocol.io/specification/2025-06-18/server/resources#error-handling
	CodeResourceNotFound = -31002
	// CodeUnsupportedMethod is returned when the method exists and was
	// invoked correctly, but the peer does not support it.
	CodeUnsupportedMethod = -31001
)

// defaultSendingMethodHandler is the base MethodHandler used to issue
// requests and notifications on a session, before any middleware is
// applied.
func defaultSendingMethodHandler[S Session](ctx context.Context, session S, method string, params Params) (Result, error) {
	info, ok := session.sendingMethodInfos()[method]
	if !ok {
		return nil, jsonrpc2.ErrNotHandled
	}
	if strings.HasPrefix(method, "notifications/") {
		return nil, session.getConn().notify(ctx, method, params)
	}
	res := info.newResult()
	// tools/call is unique among sending methods in that its wire shape
	// depends on whether task augmentation was requested: a CallToolParams
	// with a non-nil Task always gets back a CreateTaskResult (the task's
	// initial status), never a CallToolResult, so it must be decoded as
	// such rather than into the method's ordinary result shape.
	if method == methodCallTool {
		if tp, ok := params.(*CallToolParams); ok && tp.Task != nil {
			res = &CreateTaskResult{}
		}
	}
	if err := session.getConn().call(ctx, method, params, res); err != nil {
		return nil, err
	}
	return res, nil
}

// defaultReceivingMethodHandler is the base MethodHandler used to dispatch
// an incoming call or notification to user-registered handlers, before any
// middleware is applied.
func defaultReceivingMethodHandler[S Session](ctx context.Context, session S, method string, params Params) (Result, error) {
	info, ok := session.receivingMethodInfos()[method]
	if !ok {
		return nil, jsonrpc2.ErrNotHandled
	}
	return info.handleMethod.(MethodHandler[S])(ctx, session, method, params)
}

// handleNotify sends a notification on req.Session, routing it through any
// sending middleware the session has installed.
func handleNotify[P Params](ctx context.Context, method string, req *ServerRequest[P]) error {
	mh := req.Session.sendingMethodHandler().(MethodHandler[*ServerSession])
	_, err := mh(ctx, req.Session, method, req.Params)
	return err
}

// handleNotifyClient is the client-side analog of handleNotify.
func handleNotifyClient[P Params](ctx context.Context, req *ClientRequest[P], method string) error {
	mh := req.Session.sendingMethodHandler().(MethodHandler[*ClientSession])
	_, err := mh(ctx, req.Session, method, req.Params)
	return err
}

// handleSend issues a call on s, routing it through any sending middleware,
// and asserts the dynamic result type.
func handleSend[R Result, S Session](ctx context.Context, s S, method string, params Params) (R, error) {
	mh := s.sendingMethodHandler().(MethodHandler[S])
	res, err := mh(ctx, s, method, params)
	if err != nil {
		var z R
		return z, err
	}
	return res.(R), nil
}

// handleReceive decodes and dispatches an incoming request, routing it
// through any receiving middleware the session has installed.
func handleReceive[S Session](ctx context.Context, session S, req *jsonrpc2.Request) (Result, error) {
	info, ok := session.receivingMethodInfos()[req.Method]
	if !ok {
		return nil, jsonrpc2.ErrNotHandled
	}
	params, err := info.unmarshalParams(req.Params)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling params for %q: %w", req.Method, err)
	}
	mh := session.receivingMethodHandler().(MethodHandler[S])
	return mh(ctx, session, req.Method, params)
}

func callNotificationHandler[S Session, P any](ctx context.Context, h func(context.Context, S, *P), sess S, params *P) (Result, error) {
	if h != nil {
		h(ctx, sess, params)
	}
	return nil, nil
}

// notifySessions calls handleNotify on every session in a snapshot slice,
// logging (rather than returning) failures, since a single broken peer
// should never block fan-out to the rest.
func notifySessions(sessions []*ServerSession, method string, params Params) {
	if len(sessions) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range sessions {
		req := &ServerRequest[Params]{Session: s, Params: params}
		if err := handleNotify(ctx, method, req); err != nil {
			log.Printf("notifying %s: %v", method, err)
		}
	}
}

type listParams interface {
	cursorPtr() *string
}

type listResult interface {
	nextCursorPtr() *string
}
