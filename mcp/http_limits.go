// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"errors"
	"net/http"
)

// DefaultMaxBodyBytes bounds the size of a POSTed JSON-RPC payload when a
// transport's MaxBodyBytes option is left at its zero value. It exists so a
// client can't exhaust server memory by streaming an unbounded body at an
// HTTP handler that otherwise has no natural size limit.
const DefaultMaxBodyBytes int64 = 1_000_000

// effectiveMaxBodyBytes turns a user-supplied limit into the value actually
// enforced on the wire:
//
//	0   -> DefaultMaxBodyBytes
//	< 0 -> unlimited
//	> 0 -> used as-is
func effectiveMaxBodyBytes(configured int64) int64 {
	switch {
	case configured == 0:
		return DefaultMaxBodyBytes
	case configured < 0:
		return 0
	default:
		return configured
	}
}

// isMaxBytesError reports whether err was produced by an http.MaxBytesReader
// tripping its limit.
func isMaxBytesError(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// writeRequestBodyTooLarge responds with 413 and asks the client to close
// the connection, since a body that exceeded the limit may have left
// unread bytes trailing on the wire.
func writeRequestBodyTooLarge(w http.ResponseWriter) {
	w.Header().Set("Connection", "close")
	http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
}
