// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonschema re-exports the pieces of [github.com/google/jsonschema-go/jsonschema]
// that this module's tool and content schemas are built and resolved with,
// under a stable import path local to this module. Callers should never
// need to import the upstream package directly.
package jsonschema

import (
	"reflect"

	upstream "github.com/google/jsonschema-go/jsonschema"
)

// Ptr returns a pointer to a copy of x, for populating the optional
// pointer-typed fields of [Schema] (Minimum, MaxItems, and so on) inline.
func Ptr[T any](x T) *T {
	return upstream.Ptr(x)
}

// ForOptions configures [For] and [ForType].
type ForOptions = upstream.ForOptions

// Resolved is a [Schema] that has had its $ref and $dynamicRef pointers
// resolved, making it usable for validation.
type Resolved = upstream.Resolved

// ResolveOptions configures [Schema.Resolve].
type ResolveOptions = upstream.ResolveOptions

// Schema is a JSON Schema document.
type Schema = upstream.Schema

// For infers a JSON schema for the type argument T, honoring "jsonschema"
// and the recognized annotation struct tags (default, minimum, maximum,
// examples, readOnly, deprecated, writeOnly) on its fields.
func For[T any](opts *ForOptions) (*Schema, error) {
	return upstream.For[T](opts)
}

// ForType is [For] for a [reflect.Type] value rather than a type parameter,
// for callers (like tool registration) that only have the type at runtime.
func ForType(t reflect.Type, opts *ForOptions) (*Schema, error) {
	return upstream.ForType(t, opts)
}
