// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build mcp_go_client_oauth

package oauthex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseWWWAuthenticate(t *testing.T) {
	headers := []string{
		`Bearer error="invalid_token", error_description="The token expired", resource_metadata="https://example.com/.well-known/oauth-protected-resource", scope="read write"`,
	}
	cs, err := ParseWWWAuthenticate(headers)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 1 {
		t.Fatalf("got %d challenges, want 1", len(cs))
	}
	c := cs[0]
	if c.Scheme != "bearer" {
		t.Errorf("Scheme = %q, want %q", c.Scheme, "bearer")
	}
	if got, want := c.Params["error"], "invalid_token"; got != want {
		t.Errorf("Params[error] = %q, want %q", got, want)
	}
	if got, want := ResourceMetadataURL(cs), "https://example.com/.well-known/oauth-protected-resource"; got != want {
		t.Errorf("ResourceMetadataURL = %q, want %q", got, want)
	}
	if got, want := Scopes(cs), []string{"read", "write"}; !cmp.Equal(got, want) {
		t.Errorf("Scopes = %v, want %v", got, want)
	}
}

func TestGetProtectedResourceMetadata(t *testing.T) {
	const resource = "https://example.com/mcp"
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-protected-resource", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&ProtectedResourceMetadata{
			Resource:             resource,
			AuthorizationServers: []string{"https://auth.example.com"},
			ScopesSupported:      []string{"read"},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	prm, err := GetProtectedResourceMetadata(context.Background(), ProtectedResourceMetadataURL{
		URL:      ts.URL + "/.well-known/oauth-protected-resource",
		Resource: resource,
	}, ts.Client())
	if err != nil {
		t.Fatal(err)
	}
	if prm.Resource != resource {
		t.Errorf("Resource = %q, want %q", prm.Resource, resource)
	}
	if len(prm.AuthorizationServers) != 1 || prm.AuthorizationServers[0] != "https://auth.example.com" {
		t.Errorf("AuthorizationServers = %v", prm.AuthorizationServers)
	}
}

func TestGetProtectedResourceMetadataWrongResource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-protected-resource", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&ProtectedResourceMetadata{Resource: "https://wrong.example.com"})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	_, err := GetProtectedResourceMetadata(context.Background(), ProtectedResourceMetadataURL{
		URL:      ts.URL + "/.well-known/oauth-protected-resource",
		Resource: "https://example.com/mcp",
	}, ts.Client())
	if err == nil {
		t.Fatal("expected an error for mismatched resource field")
	}
}

func TestGetAuthServerMeta(t *testing.T) {
	mux := http.NewServeMux()
	var issuer string
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&AuthServerMeta{
			Issuer:                        issuer,
			AuthorizationEndpoint:         issuer + "/authorize",
			TokenEndpoint:                 issuer + "/token",
			RegistrationEndpoint:          issuer + "/register",
			CodeChallengeMethodsSupported: []string{"S256"},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	issuer = ts.URL

	asm, err := GetAuthServerMeta(context.Background(), issuer, ts.Client())
	if err != nil {
		t.Fatal(err)
	}
	if asm == nil {
		t.Fatal("got nil AuthServerMeta")
	}
	if asm.TokenEndpoint != issuer+"/token" {
		t.Errorf("TokenEndpoint = %q, want %q", asm.TokenEndpoint, issuer+"/token")
	}
}

func TestGetAuthServerMetaNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	asm, err := GetAuthServerMeta(context.Background(), ts.URL, ts.Client())
	if err != nil {
		t.Fatal(err)
	}
	if asm != nil {
		t.Errorf("got %+v, want nil", asm)
	}
}

func TestGetAuthServerMetaRequiresPKCE(t *testing.T) {
	mux := http.NewServeMux()
	var issuer string
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// code_challenge_methods_supported lists only "plain": PKCE via S256 is not advertised.
		json.NewEncoder(w).Encode(&AuthServerMeta{
			Issuer:                        issuer,
			CodeChallengeMethodsSupported: []string{"plain"},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	issuer = ts.URL

	if _, err := GetAuthServerMeta(context.Background(), issuer, ts.Client()); err == nil {
		t.Fatal("expected an error for an authorization server that does not support PKCE S256")
	}
}

func TestRegisterClient(t *testing.T) {
	testCases := []struct {
		name         string
		handler      http.HandlerFunc
		wantClientID string
		wantErr      string
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("got method %s, want POST", r.Method)
				}
				var got ClientRegistrationMetadata
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Fatal(err)
				}
				if got.ClientName != "Test App" {
					t.Errorf("ClientName = %q, want %q", got.ClientName, "Test App")
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(&ClientRegistrationResponse{ClientID: "test-client-id"})
			},
			wantClientID: "test-client-id",
		},
		{
			name: "missing client_id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"client_secret":"s"}`))
			},
			wantErr: "missing required 'client_id'",
		},
		{
			name: "standard oauth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_redirect_uri","error_description":"not valid"}`))
			},
			wantErr: "invalid_redirect_uri (not valid)",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(tc.handler)
			defer ts.Close()

			reg, err := RegisterClient(context.Background(), ts.URL, &ClientRegistrationMetadata{
				ClientName:   "Test App",
				RedirectURIs: []string{"http://localhost/cb"},
			}, ts.Client())
			if tc.wantErr != "" {
				if err == nil {
					t.Fatalf("expected an error containing %q, got nil", tc.wantErr)
				}
				if !strings.Contains(err.Error(), tc.wantErr) {
					t.Errorf("error = %q, want substring %q", err.Error(), tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reg.ClientID != tc.wantClientID {
				t.Errorf("ClientID = %q, want %q", reg.ClientID, tc.wantClientID)
			}
		})
	}
}

func TestRegisterClientNoEndpoint(t *testing.T) {
	_, err := RegisterClient(context.Background(), "", &ClientRegistrationMetadata{}, nil)
	if err == nil {
		t.Fatal("expected an error for an empty registration endpoint")
	}
}
