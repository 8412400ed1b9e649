// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements discovery and retrieval of Protected Resource
// Metadata, RFC 9728 (https://www.rfc-editor.org/rfc/rfc9728.html).

//go:build mcp_go_client_oauth

package oauthex

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-mcp/mcpengine/internal/util"
)

const wellKnownProtectedResourcePath = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadataURL pairs a candidate metadata URL with the
// resource ID that [GetProtectedResourceMetadata] must see echoed back in
// the "resource" field of the document it fetches.
type ProtectedResourceMetadataURL struct {
	// URL is where the metadata document is expected to live.
	URL string
	// Resource is the resource server's own identifier, checked against the
	// fetched document per RFC 9728 ยง3.3.
	Resource string
}

// GetProtectedResourceMetadata fetches and validates the protected-resource
// metadata document at metadataURL.URL, using c (or [http.DefaultClient] if
// c is nil).
//
// The returned document's "resource" field must equal metadataURL.Resource,
// and every authorization server URL it lists must use http or https — both
// checks guard against a metadata document smuggling an attacker-controlled
// resource identity or redirect target into the client.
func GetProtectedResourceMetadata(ctx context.Context, metadataURL ProtectedResourceMetadataURL, c *http.Client) (_ *ProtectedResourceMetadata, err error) {
	defer util.Wrapf(&err, "GetProtectedResourceMetadata(%q)", metadataURL)

	prm, err := getJSON[ProtectedResourceMetadata](ctx, c, metadataURL.URL, 1<<20)
	if err != nil {
		return nil, err
	}
	if prm.Resource != metadataURL.Resource {
		return nil, fmt.Errorf("got metadata resource %q, want %q", prm.Resource, metadataURL.Resource)
	}
	for _, authServer := range prm.AuthorizationServers {
		if err := checkURLScheme(authServer); err != nil {
			return nil, err
		}
	}
	return prm, nil
}

// ProtectedResourceMetadataURLs lists, in priority order, the URLs a client
// should try when looking for protected resource metadata for resourceURL.
// If metadataURL (typically discovered from a WWW-Authenticate challenge
// via [ResourceMetadataURL]) is non-empty it is tried first; otherwise the
// client falls back to the two locations the MCP spec mandates:
// https://modelcontextprotocol.io/specification/2025-11-25/basic/authorization#protected-resource-metadata-discovery-requirements
func ProtectedResourceMetadataURLs(metadataURL, resourceURL string) []ProtectedResourceMetadataURL {
	var candidates []ProtectedResourceMetadataURL
	if metadataURL != "" {
		candidates = append(candidates, ProtectedResourceMetadataURL{URL: metadataURL, Resource: resourceURL})
	}

	resource, err := url.Parse(resourceURL)
	if err != nil {
		return candidates
	}

	// "At the path of the server's MCP endpoint".
	atPath := *resource
	atPath.Path = wellKnownProtectedResourcePath + "/" + strings.TrimLeft(resource.Path, "/")
	candidates = append(candidates, ProtectedResourceMetadataURL{URL: atPath.String(), Resource: resourceURL})

	// "At the root".
	atRoot := *resource
	atRoot.Path = wellKnownProtectedResourcePath
	rootResource := *resource
	rootResource.Path = ""
	candidates = append(candidates, ProtectedResourceMetadataURL{URL: atRoot.String(), Resource: rootResource.String()})

	log.Printf("Resource metadata URLs: %v", candidates)
	return candidates
}

// ResourceMetadataURL extracts the resource_metadata challenge parameter
// from a set of WWW-Authenticate challenges, or returns "" if none carry one.
func ResourceMetadataURL(challenges []challenge) string {
	for _, c := range challenges {
		if u := c.Params["resource_metadata"]; u != "" {
			return u
		}
	}
	return ""
}

// Scopes extracts the space-separated scope list from the first bearer
// challenge that declares one, or returns nil if none do.
func Scopes(challenges []challenge) []string {
	for _, c := range challenges {
		if c.Scheme == "bearer" && c.Params["scope"] != "" {
			return strings.Fields(c.Params["scope"])
		}
	}
	return nil
}

// GetProtectedResourceMetadataFromID resolves and fetches protected resource
// metadata given only a resource ID (an HTTPS URL identifying the resource
// server, e.g. "https://example.com/server"), inserting the well-known path
// per RFC 9728 ยง3 to derive the metadata URL itself.
//
// Deprecated: use [GetProtectedResourceMetadata] with
// [ProtectedResourceMetadataURLs] instead.
func GetProtectedResourceMetadataFromID(ctx context.Context, resourceID string, c *http.Client) (_ *ProtectedResourceMetadata, err error) {
	defer util.Wrapf(&err, "GetProtectedResourceMetadataFromID(%q)", resourceID)

	u, err := url.Parse(resourceID)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(wellKnownProtectedResourcePath, u.Path)
	return GetProtectedResourceMetadata(ctx, ProtectedResourceMetadataURL{
		URL:      u.String(),
		Resource: resourceID,
	}, c)
}

// GetProtectedResourceMetadataFromHeader discovers a metadata URL from the
// WWW-Authenticate headers on an HTTP response and, if one is present,
// fetches and validates the corresponding document against serverURL (the
// URL the client originally requested). It returns nil, nil if no
// WWW-Authenticate header carries a resource_metadata parameter.
//
// Deprecated: use [GetProtectedResourceMetadata] with [ResourceMetadataURL]
// instead.
func GetProtectedResourceMetadataFromHeader(ctx context.Context, serverURL string, header http.Header, c *http.Client) (_ *ProtectedResourceMetadata, err error) {
	headers := header[http.CanonicalHeaderKey("WWW-Authenticate")]
	if len(headers) == 0 {
		return nil, nil
	}
	challenges, err := ParseWWWAuthenticate(headers)
	if err != nil {
		return nil, err
	}
	metadataURL := ResourceMetadataURL(challenges)
	if metadataURL == "" {
		return nil, nil
	}
	return GetProtectedResourceMetadata(ctx, ProtectedResourceMetadataURL{
		URL:      metadataURL,
		Resource: serverURL,
	}, c)
}
