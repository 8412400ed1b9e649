// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/jsonschema-go/jsonschema"
)

// schemaCache memoizes the work of turning a Go type or a pre-built
// [jsonschema.Schema] into a resolved schema, keyed two ways: by
// reflect.Type for tools whose input/output shape is inferred from a Go
// struct, and by schema pointer identity for tools and task-result
// descriptors that register a schema literal directly.
//
// Tool registration consults it, so a deployment that builds a new
// [Server] per request (and so re-registers the same tools each time)
// resolves each schema only once. Task status and result requests
// (tasks/get, tasks/result) do not validate against schemas and do not use
// it. Create one with [NewSchemaCache] and set it on
// [ServerOptions.SchemaCache].
type schemaCache struct {
	byType   sync.Map // reflect.Type -> *cachedSchema
	bySchema sync.Map // *jsonschema.Schema -> *jsonschema.Resolved

	hits   atomic.Int64
	misses atomic.Int64
}

type cachedSchema struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewSchemaCache returns an empty, unbounded, concurrency-safe schema cache.
func NewSchemaCache() *schemaCache {
	return &schemaCache{}
}

// CacheStats reports hit/miss counters since the cache was created.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// Stats returns a snapshot of the cache's hit/miss counters.
func (c *schemaCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *schemaCache) getByType(t reflect.Type) (*jsonschema.Schema, *jsonschema.Resolved, bool) {
	v, ok := c.byType.Load(t)
	if !ok {
		c.misses.Add(1)
		return nil, nil, false
	}
	c.hits.Add(1)
	cs := v.(*cachedSchema)
	return cs.schema, cs.resolved, true
}

func (c *schemaCache) setByType(t reflect.Type, schema *jsonschema.Schema, resolved *jsonschema.Resolved) {
	c.byType.Store(t, &cachedSchema{schema: schema, resolved: resolved})
}

// getBySchema looks up a resolved schema by the pointer identity of a
// pre-defined schema. Integrators that register the same *Tool (and hence
// the same schema pointer) across requests hit this path instead of
// byType.
func (c *schemaCache) getBySchema(schema *jsonschema.Schema) (*jsonschema.Resolved, bool) {
	v, ok := c.bySchema.Load(schema)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return v.(*jsonschema.Resolved), true
}

func (c *schemaCache) setBySchema(schema *jsonschema.Schema, resolved *jsonschema.Resolved) {
	c.bySchema.Store(schema, resolved)
}
