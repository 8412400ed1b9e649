// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"
)

// ErrInvalidToken is returned by a [TokenVerifier] when the bearer token is
// malformed, unknown, or otherwise rejected by the verifier outright.
var ErrInvalidToken = errors.New("invalid token")

// ErrOAuth is returned by a [TokenVerifier] when verification itself failed
// for a reason attributable to the authorization server (an introspection
// call that errored, a malformed response, and so on) rather than the token
// being rejected. It is reported to the caller as a 400, distinct from the
// 401/403 responses used for token and scope problems.
var ErrOAuth = errors.New("oauth error")

// TokenInfo describes a verified bearer token.
type TokenInfo struct {
	// Scopes lists the OAuth scopes granted to the token.
	Scopes []string
	// Expiration is the time at which the token stops being valid. The zero
	// value is treated as "no expiration provided", which RequireBearerToken
	// rejects: MCP resource servers require tokens to carry an expiration.
	Expiration time.Time
	// UserID identifies the subject the token was issued to, if known.
	UserID string
}

// TokenVerifier validates a bearer token extracted from an incoming
// request and reports what it grants. req is the request the token was
// extracted from, made available so a verifier can incorporate request
// details (such as the target resource) into validation or introspection.
type TokenVerifier func(ctx context.Context, token string, req *http.Request) (*TokenInfo, error)

// RequireBearerTokenOptions configures [RequireBearerToken].
type RequireBearerTokenOptions struct {
	// Scopes lists the scopes a token must carry to be authorized. A request
	// whose token is missing any of these scopes is rejected with 403.
	Scopes []string
	// ResourceMetadataURL, if set, is advertised in the WWW-Authenticate
	// header of 401 and 403 responses, per RFC 9728, pointing the client at
	// this resource server's protected-resource metadata document.
	ResourceMetadataURL string
}

type tokenInfoContextKey struct{}

// TokenInfoFromContext returns the [TokenInfo] that [RequireBearerToken]
// verified for the current request, if any.
func TokenInfoFromContext(ctx context.Context) (*TokenInfo, bool) {
	ti, ok := ctx.Value(tokenInfoContextKey{}).(*TokenInfo)
	return ti, ok
}

// RequireBearerToken returns middleware that verifies the Authorization
// header of incoming requests using verifier, rejecting requests with no
// token, an invalid token, an expired token, or a token missing any
// required scope. On success, the verified [TokenInfo] is attached to the
// request's context, retrievable with [TokenInfoFromContext].
func RequireBearerToken(verifier TokenVerifier, opts *RequireBearerTokenOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ti, msg, code := verify(r, verifier, opts)
			if code != 0 {
				if opts != nil && opts.ResourceMetadataURL != "" {
					w.Header().Set("WWW-Authenticate", "Bearer resource_metadata="+opts.ResourceMetadataURL)
				}
				http.Error(w, msg, code)
				return
			}
			ctx := context.WithValue(r.Context(), tokenInfoContextKey{}, ti)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// verify extracts and validates the bearer token from req. It returns a
// non-nil TokenInfo and a zero code on success; otherwise it returns a
// human-readable message and the HTTP status code the caller should report.
func verify(req *http.Request, verifier TokenVerifier, opts *RequireBearerTokenOptions) (*TokenInfo, string, int) {
	if opts == nil {
		opts = &RequireBearerTokenOptions{}
	}
	scheme, token, ok := strings.Cut(req.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, "no bearer token", http.StatusUnauthorized
	}
	ti, err := verifier(req.Context(), token, req)
	if err != nil {
		if errors.Is(err, ErrOAuth) {
			return nil, "oauth error", http.StatusBadRequest
		}
		return nil, "invalid token", http.StatusUnauthorized
	}
	if ti.Expiration.IsZero() {
		return nil, "token missing expiration", http.StatusUnauthorized
	}
	if time.Now().After(ti.Expiration) {
		return nil, "token expired", http.StatusUnauthorized
	}
	for _, s := range opts.Scopes {
		if !slices.Contains(ti.Scopes, s) {
			return nil, "insufficient scope", http.StatusForbidden
		}
	}
	return ti, "", 0
}
