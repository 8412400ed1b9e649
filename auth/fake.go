// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// StaticOAuthHandler is an [OAuthHandler] that always hands out a fixed
// token and never runs an authorization flow. It exists for tests that need
// an OAuthHandler without standing up an authorization server.
type StaticOAuthHandler struct {
	// Token is returned by every call to TokenSource.
	Token *oauth2.Token
	// AuthorizeErr, if non-nil, is returned by every call to Authorize.
	AuthorizeErr error
}

func (h *StaticOAuthHandler) isOAuthHandler() {}

// TokenSource implements [OAuthHandler].
func (h *StaticOAuthHandler) TokenSource(context.Context) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(h.Token), nil
}

// Authorize implements [OAuthHandler]. It never touches req or resp; it
// simply reports h.AuthorizeErr.
func (h *StaticOAuthHandler) Authorize(_ context.Context, _ *http.Request, _ *http.Response) error {
	return h.AuthorizeErr
}
