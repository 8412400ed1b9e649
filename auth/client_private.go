// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build mcp_go_client_oauth

package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// defaultReauthLimiter bounds how often HTTPTransport will re-run the
// authorization flow in response to repeated 401s, so a server stuck
// rejecting every token doesn't drive the client into a tight retry loop
// against the authorization server.
func defaultReauthLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 1)
}

// An OAuthHandlerLegacy conducts an OAuth flow and returns a [oauth2.TokenSource] if the authorization
// is approved, or an error if not.
// The handler receives the HTTP request and response that triggered the authentication flow.
// To obtain the protected resource metadata, call [oauthex.GetProtectedResourceMetadataFromHeader].
// Deprecated: Please use the new OAuthHandler abstraction that is built
// into the streamable transport.
type OAuthHandlerLegacy func(req *http.Request, res *http.Response) (oauth2.TokenSource, error)

// TokenStore is an interface than can be used by OAuthHandler implementations
// to save tokens to a persistent storage.
type TokenStore interface {
	Save(context.Context, *oauth2.Token) error
}

type persistentTokenSource struct {
	wrapped oauth2.TokenSource
	store   TokenStore
	ctx     context.Context
}

// NewPersistentTokenSource returns a [oauth2.TokenSource] that
// persists the token to a given [TokenStore] after every successful
// [oauth2.TokenSource.Token] call.
// It is especially useful when wrapping a [oauth2.TokenSource]
// that automatically refreshes the token when it expires.
// The passed context is used for [TokenStore.Save] calls.
func NewPersistentTokenSource(ctx context.Context, wrapped oauth2.TokenSource, store TokenStore) oauth2.TokenSource {
	return &persistentTokenSource{
		wrapped: wrapped,
		store:   store,
		ctx:     ctx,
	}
}

func (t *persistentTokenSource) Token() (*oauth2.Token, error) {
	token, err := t.wrapped.Token()
	if err != nil {
		return nil, err
	}
	if err := t.store.Save(t.ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// HTTPTransport is an [http.RoundTripper] that follows the MCP
// OAuth protocol when it encounters a 401 Unauthorized response.
// Deprecated: Please use the new OAuthHandler abstraction that is built
// into the streamable transport.
type HTTPTransport struct {
	handler OAuthHandlerLegacy
	mu      sync.Mutex // protects opts.Base
	opts    HTTPTransportOptions
}

// NewHTTPTransport returns a new [*HTTPTransport].
// The handler is invoked when an HTTP request results in a 401 Unauthorized status.
// It is called only once per transport. Once a TokenSource is obtained, it is used
// for the lifetime of the transport; subsequent 401s are not processed.
// Deprecated: Please use the new OAuthHandler abstraction that is built
// into the streamable transport.
func NewHTTPTransport(handler OAuthHandlerLegacy, opts *HTTPTransportOptions) (*HTTPTransport, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	t := &HTTPTransport{
		handler: handler,
	}
	if opts != nil {
		t.opts = *opts
	}
	if t.opts.Base == nil {
		t.opts.Base = http.DefaultTransport
	}
	if t.opts.ReauthLimiter == nil {
		t.opts.ReauthLimiter = defaultReauthLimiter()
	}
	return t, nil
}

// HTTPTransportOptions are options to [NewHTTPTransport].
// Deprecated: Please use the new OAuthHandler abstraction that is built
// into the streamable transport.
type HTTPTransportOptions struct {
	// Base is the [http.RoundTripper] to use.
	// If nil, [http.DefaultTransport] is used.
	Base http.RoundTripper

	// ReauthLimiter bounds the rate at which a 401 response triggers a
	// fresh call to the OAuth handler. If nil, a limiter allowing one
	// reauthorization attempt per second is used.
	ReauthLimiter *rate.Limiter
}

// OAuthTransport is an [http.RoundTripper] that authorizes outgoing requests
// using an [OAuthHandler]: it attaches the handler's current token, and on a
// 401 or 403 response runs [OAuthHandler.Authorize] once before retrying with
// whatever token that produced.
type OAuthTransport struct {
	Handler OAuthHandler
	// Base is the underlying [http.RoundTripper]. If nil, [http.DefaultTransport]
	// is used.
	Base http.RoundTripper

	mu          sync.Mutex
	reauthLimit *rate.Limiter
}

func (t *OAuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *OAuthTransport) limiter() *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reauthLimit == nil {
		t.reauthLimit = defaultReauthLimiter()
	}
	return t.reauthLimit
}

func (t *OAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody {
		req = req.Clone(ctx)
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	if err := t.attachToken(ctx, req); err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(cloneWithBody(req, bodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	if err := t.limiter().Wait(ctx); err != nil {
		resp.Body.Close()
		return nil, err
	}
	if err := t.Handler.Authorize(ctx, req, resp); err != nil {
		return nil, err
	}
	if err := t.attachToken(ctx, req); err != nil {
		return nil, err
	}
	return t.base().RoundTrip(cloneWithBody(req, bodyBytes))
}

func (t *OAuthTransport) attachToken(ctx context.Context, req *http.Request) error {
	ts, err := t.Handler.TokenSource(ctx)
	if err != nil {
		return err
	}
	token, err := ts.Token()
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)
	return nil
}

func cloneWithBody(req *http.Request, bodyBytes []byte) *http.Request {
	if bodyBytes == nil {
		return req
	}
	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	return clone
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	base := t.opts.Base
	t.mu.Unlock()

	var (
		// If haveBody is set, the request has a nontrivial body, and we need avoid
		// reading (or closing) it multiple times. In that case, bodyBytes is its
		// content.
		haveBody  bool
		bodyBytes []byte
	)
	if req.Body != nil && req.Body != http.NoBody {
		// if we're setting Body, we must mutate first.
		req = req.Clone(req.Context())
		haveBody = true
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		// Now that we've read the request body, http.RoundTripper requires that we
		// close it.
		req.Body.Close() // ignore error
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if _, ok := base.(*oauth2.Transport); ok {
		// We failed to authorize even with a token source; give up.
		return resp, nil
	}

	resp.Body.Close()
	if err := t.opts.ReauthLimiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	// Try to authorize.
	t.mu.Lock()
	defer t.mu.Unlock()
	// If we don't have a token source, get one by following the OAuth flow.
	// (We may have obtained one while t.mu was not held above.)
	// TODO: We hold the lock for the entire OAuth flow. This could be a long
	// time. Is there a better way?
	if _, ok := t.opts.Base.(*oauth2.Transport); !ok {
		ts, err := t.handler(req, resp)
		if err != nil {
			return nil, err
		}
		t.opts.Base = &oauth2.Transport{Base: t.opts.Base, Source: ts}
	}

	// If we don't have a body, the request is reusable, though it will be cloned
	// by the base. However, if we've had to read the body, we must clone.
	if haveBody {
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	return t.opts.Base.RoundTrip(req)
}
