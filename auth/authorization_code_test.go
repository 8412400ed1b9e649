// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build mcp_go_client_oauth

package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	faketesting "github.com/go-mcp/mcpengine/internal/testing"
)

// waitForServer polls url until it responds or the deadline passes.
func waitForServer(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("server at %s did not start in time", url)
}

// unauthorizedResponse builds a synthetic 401 response to a request for
// resourceURL, with no WWW-Authenticate challenge, as Authorize would see
// from a resource server that advertises no metadata discovery hints.
func unauthorizedResponse(t *testing.T, resourceURL string) (*http.Request, *http.Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, resourceURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
	}
	return req, resp
}

// TestAuthorizationCodeFlowAgainstFakeServer drives
// AuthorizationCodeOAuthHandler through a full two-phase authorization code
// exchange against the package's fake OAuth2 authorization server, in place
// of a real one. The resource URL's origin is the fake server itself, which
// exercises the 2025-03-26 fallback rule (MCP server base URL acts as
// Authorization Server when no protected-resource metadata is discoverable).
func TestAuthorizationCodeFlowAgainstFakeServer(t *testing.T) {
	fakeServer := faketesting.NewFakeAuthServer()
	fakeServer.Start()
	defer fakeServer.Stop()
	waitForServer(t, "http://localhost:8080/.well-known/oauth-authorization-server")

	const resourceURL = "http://localhost:8080/mcp"

	var capturedAuthURL string
	handler := &AuthorizationCodeOAuthHandler{
		PreregisteredClientConfig: &PreregisteredClientConfig{
			ClientID:     "fake-client-id",
			ClientSecret: "fake-client-secret",
		},
		RedirectURL: "http://localhost/callback",
		AuthorizationURLHandler: func(ctx context.Context, authorizationURL string) error {
			capturedAuthURL = authorizationURL
			return nil
		},
	}

	// Phase 1: initiate the flow.
	req, resp := unauthorizedResponse(t, resourceURL)
	err := handler.Authorize(context.Background(), req, resp)
	if !errors.Is(err, ErrRedirected) {
		t.Fatalf("phase 1 Authorize: got %v, want ErrRedirected", err)
	}
	if capturedAuthURL == "" {
		t.Fatal("AuthorizationURLHandler was not called")
	}

	// Simulate the user being redirected to the fake server's /authorize
	// endpoint and back to our redirect URL with a code.
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	authResp, err := client.Get(capturedAuthURL)
	if err != nil {
		t.Fatalf("GET authorization URL: %v", err)
	}
	defer authResp.Body.Close()
	if authResp.StatusCode != http.StatusFound {
		t.Fatalf("authorize endpoint: got status %d, want %d", authResp.StatusCode, http.StatusFound)
	}
	loc, err := authResp.Location()
	if err != nil {
		t.Fatalf("Location(): %v", err)
	}
	query := loc.Query()
	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		t.Fatalf("redirect missing code/state: %v", loc)
	}

	if err := handler.FinalizeAuthorization(code, state); err != nil {
		t.Fatalf("FinalizeAuthorization: %v", err)
	}

	// Phase 2: exchange the authorization code for a token.
	req2, resp2 := unauthorizedResponse(t, resourceURL)
	if err := handler.Authorize(context.Background(), req2, resp2); err != nil {
		t.Fatalf("phase 2 Authorize: %v", err)
	}

	ts, err := handler.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource: %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token(): %v", err)
	}
	if tok.AccessToken == "" {
		t.Fatal("got empty access token")
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want %q", tok.TokenType, "Bearer")
	}
}
