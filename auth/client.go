// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package auth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrNotAuthorized is returned by an [OAuthHandler] when it could not obtain
// a usable token for a request, distinguishing an authorization failure from
// a transport-level error.
var ErrNotAuthorized = errors.New("mcpengine: not authorized")

// An OAuthHandler supplies bearer tokens for outgoing requests and drives
// the OAuth flow when a server rejects those tokens.
//
// Callers obtain a handler's tokens through [OAuthHandler.TokenSource]. When
// a request fails with a status that might be fixed by re-authorizing (401
// or 403), the caller invokes [OAuthHandler.Authorize] before retrying.
type OAuthHandler interface {
	isOAuthHandler()

	// TokenSource returns a token source to be used for outgoing requests.
	TokenSource(context.Context) (oauth2.TokenSource, error)

	// Authorize runs the steps needed to recover from a failed request: req is
	// the request that was rejected and resp is the response the server sent
	// for it. A nil return means [TokenSource] is now expected to yield a
	// fresh, usable token source, and the caller should retry the request.
	// Authorize is responsible for closing resp.Body.
	Authorize(ctx context.Context, req *http.Request, resp *http.Response) error
}
