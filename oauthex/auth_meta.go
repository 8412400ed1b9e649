// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements WWW-Authenticate challenge parsing, Authorization
// Server Metadata discovery (RFC 8414), and Dynamic Client Registration
// (RFC 7591).

//go:build mcp_go_client_oauth

package oauthex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-mcp/mcpengine/internal/util"
)

// challenge is one parsed WWW-Authenticate challenge: a scheme (e.g.
// "bearer") and its auth-param key/value pairs.
type challenge struct {
	Scheme string
	Params map[string]string
}

// ParseWWWAuthenticate parses the WWW-Authenticate header values of a 401
// response into a slice of challenges, one per header value. It does not
// attempt to split multiple challenges packed into a single header value
// with commas, since MCP resource servers send one challenge per header.
func ParseWWWAuthenticate(headers []string) ([]challenge, error) {
	challenges := make([]challenge, 0, len(headers))
	for _, h := range headers {
		c, err := parseChallenge(h)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}
	return challenges, nil
}

func parseChallenge(h string) (challenge, error) {
	h = strings.TrimSpace(h)
	if h == "" {
		return challenge{}, errors.New("empty WWW-Authenticate challenge")
	}
	scheme, rest, ok := strings.Cut(h, " ")
	if !ok {
		return challenge{Scheme: strings.ToLower(scheme), Params: map[string]string{}}, nil
	}
	params := map[string]string{}
	for _, part := range splitAuthParams(rest) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.Trim(strings.TrimSpace(v), `"`)
		params[k] = v
	}
	return challenge{Scheme: strings.ToLower(scheme), Params: params}, nil
}

// splitAuthParams splits a comma-separated list of auth-params, treating
// commas inside double-quoted values as literal.
func splitAuthParams(s string) []string {
	var parts []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ',' && !inQuotes:
			if cur.Len() > 0 {
				parts = append(parts, strings.TrimSpace(cur.String()))
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, strings.TrimSpace(cur.String()))
	}
	return parts
}

// ProtectedResourceMetadata is a resource server's metadata document, as
// defined by RFC 9728.
type ProtectedResourceMetadata struct {
	Resource                              string   `json:"resource"`
	AuthorizationServers                  []string `json:"authorization_servers,omitempty"`
	JWKSURI                                string   `json:"jwks_uri,omitempty"`
	ScopesSupported                       []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported                []string `json:"bearer_methods_supported,omitempty"`
	ResourceSigningAlgValuesSupported     []string `json:"resource_signing_alg_values_supported,omitempty"`
	ResourceName                          string   `json:"resource_name,omitempty"`
	ResourceDocumentation                 string   `json:"resource_documentation,omitempty"`
	ResourcePolicyURI                     string   `json:"resource_policy_uri,omitempty"`
	ResourceTOSURI                        string   `json:"resource_tos_uri,omitempty"`
	TLSClientCertificateBoundAccessTokens bool     `json:"tls_client_certificate_bound_access_tokens,omitempty"`
	DPoPSigningAlgValuesSupported         []string `json:"dpop_signing_alg_values_supported,omitempty"`
	DPoPBoundAccessTokensRequired         bool     `json:"dpop_bound_access_tokens_required,omitempty"`
}

// checkURLScheme rejects anything but http/https, guarding against a
// malicious metadata document pointing a client at a non-HTTP scheme (see
// golang/go#526-style advisories against XSS-capable redirects).
func checkURLScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", rawURL)
	}
	return nil
}

// getJSON issues a GET request to rawURL and decodes a JSON response of
// type T, capping the body at maxBytes.
func getJSON[T any](ctx context.Context, c *http.Client, rawURL string, maxBytes int64) (_ *T, err error) {
	defer util.Wrapf(&err, "getJSON(%q)", rawURL)
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var v T
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBytes)).Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &v, nil
}

// AuthServerMeta is an authorization server's metadata document, as defined
// by RFC 8414.
type AuthServerMeta struct {
	Issuer                 string   `json:"issuer"`
	AuthorizationEndpoint  string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint          string   `json:"token_endpoint,omitempty"`
	RegistrationEndpoint   string   `json:"registration_endpoint,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported    []string `json:"grant_types_supported,omitempty"`

	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`

	// ClientIDMetadataDocumentSupported advertises support for SEP-991
	// Client ID Metadata Document based client identification, an
	// alternative to pre-registration or Dynamic Client Registration.
	ClientIDMetadataDocumentSupported bool `json:"client_id_metadata_document_supported,omitempty"`
}

// GetAuthServerMeta fetches the authorization server metadata document for
// issuer, per RFC 8414 section 3. It returns (nil, nil) if the server has
// no metadata document (a 404 at the well-known path), letting the caller
// fall back to the 2025-03-26 predefined-endpoint scheme.
func GetAuthServerMeta(ctx context.Context, issuer string, c *http.Client) (_ *AuthServerMeta, err error) {
	defer util.Wrapf(&err, "GetAuthServerMeta(%q)", issuer)
	if err := checkURLScheme(issuer); err != nil {
		return nil, err
	}
	u, err := url.Parse(issuer)
	if err != nil {
		return nil, err
	}
	issuerPath := strings.TrimSuffix(u.Path, "/")
	u.Path = "/.well-known/oauth-authorization-server" + issuerPath

	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var asm AuthServerMeta
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&asm); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if asm.Issuer != issuer {
		return nil, fmt.Errorf("got issuer %q, want %q", asm.Issuer, issuer)
	}
	if len(asm.CodeChallengeMethodsSupported) > 0 && !slices.Contains(asm.CodeChallengeMethodsSupported, "S256") {
		return nil, fmt.Errorf("authorization server %q does not advertise PKCE S256 support, which MCP clients require", issuer)
	}
	return &asm, nil
}

// ClientRegistrationMetadata is the request body for Dynamic Client
// Registration, per RFC 7591 section 2.
type ClientRegistrationMetadata struct {
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationResponse is the authorization server's response to a
// successful Dynamic Client Registration request, per RFC 7591 section 3.2.1.
type ClientRegistrationResponse struct {
	ClientID                string `json:"client_id"`
	ClientSecret            string `json:"client_secret,omitempty"`
	ClientIDIssuedAt         int64  `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt    int64  `json:"client_secret_expires_at,omitempty"`
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method,omitempty"`
}

// oauthErrorResponse is RFC 7591 section 3.2.2's registration error shape,
// which is itself RFC 6749 section 5.2's error response shape.
type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RegisterClient performs Dynamic Client Registration (RFC 7591) against
// registrationEndpoint.
func RegisterClient(ctx context.Context, registrationEndpoint string, meta *ClientRegistrationMetadata, c *http.Client) (_ *ClientRegistrationResponse, err error) {
	defer util.Wrapf(&err, "RegisterClient(%q)", registrationEndpoint)
	if meta == nil {
		return nil, errors.New("client registration metadata must not be nil")
	}
	if registrationEndpoint == "" {
		return nil, errors.New("server metadata does not contain a registration_endpoint")
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var oe oauthErrorResponse
		if json.Unmarshal(data, &oe) == nil && oe.Error != "" {
			if oe.ErrorDescription != "" {
				return nil, fmt.Errorf("registration failed: %s (%s)", oe.Error, oe.ErrorDescription)
			}
			return nil, fmt.Errorf("registration failed: %s", oe.Error)
		}
		return nil, fmt.Errorf("registration failed with status %s", resp.Status)
	}
	var reg ClientRegistrationResponse
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decoding registration response: %w", err)
	}
	if reg.ClientID == "" {
		return nil, errors.New("registration response is missing required 'client_id' field")
	}
	return &reg, nil
}
